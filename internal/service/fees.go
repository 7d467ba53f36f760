package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/listenupapp/circulation/internal/domain"
	domainerrors "github.com/listenupapp/circulation/internal/errors"
	"github.com/listenupapp/circulation/internal/store"
)

const msgNoActiveRecord = "No active borrowing record found."

// FeeService computes late fees on open loans.
type FeeService struct {
	store  store.Store
	clock  Clock
	logger *slog.Logger
}

// NewFeeService creates a fee service.
func NewFeeService(s store.Store, logger *slog.Logger) *FeeService {
	return &FeeService{store: s, logger: defaultLogger(logger)}
}

// SetClock overrides the clock fees are computed against.
func (s *FeeService) SetClock(c Clock) {
	s.clock = c
}

// CalculateLateFee returns the fee owed on the patron's open loan of a book.
// Input problems are reported in the result's Status with a zero fee; the
// error is reserved for store faults.
func (s *FeeService) CalculateLateFee(ctx context.Context, patronID string, bookID int64) (domain.LateFee, error) {
	if !domain.ValidPatronID(patronID) {
		return domain.LateFeeError(msgInvalidPatronID), nil
	}

	if _, err := s.store.GetBook(ctx, bookID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LateFeeError(msgBookNotFound), nil
		}
		return domain.LateFee{}, fmt.Errorf("get book: %w", err)
	}

	record, err := s.store.GetActiveBorrow(ctx, patronID, bookID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.LateFeeError(msgNoActiveRecord), nil
	}
	if err != nil {
		return domain.LateFee{}, fmt.Errorf("get active borrow: %w", err)
	}

	return domain.NewLateFee(record.DueDate, s.clock.now()), nil
}

// LateFeeProblem converts an error status on a fee lookup into a domain error.
// It returns nil when the lookup succeeded.
func LateFeeProblem(fee domain.LateFee) error {
	switch fee.Status {
	case msgInvalidPatronID:
		return domainerrors.Validation(fee.Status)
	case msgBookNotFound, msgNoActiveRecord:
		return domainerrors.NotFound(fee.Status)
	default:
		return nil
	}
}
