package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/listenupapp/circulation/internal/domain"
	"github.com/listenupapp/circulation/internal/store"
)

// ReportService builds patron status reports.
type ReportService struct {
	store  store.Store
	clock  Clock
	logger *slog.Logger
}

// NewReportService creates a report service.
func NewReportService(s store.Store, logger *slog.Logger) *ReportService {
	return &ReportService{store: s, logger: defaultLogger(logger)}
}

// SetClock overrides the clock used to flag overdue loans.
func (s *ReportService) SetClock(c Clock) {
	s.clock = c
}

// PatronStatus reports a patron's open loans, fees owed and full loan history.
// A malformed patron ID yields an empty report with Error set.
func (s *ReportService) PatronStatus(ctx context.Context, patronID string) (*domain.PatronReport, error) {
	if !domain.ValidPatronID(patronID) {
		return domain.PatronReportError(msgInvalidPatronID), nil
	}

	now := s.clock.now()

	active, err := s.store.ListActiveBorrows(ctx, patronID, now)
	if err != nil {
		return nil, fmt.Errorf("list active borrows: %w", err)
	}

	history, err := s.store.ListBorrowHistory(ctx, patronID)
	if err != nil {
		return nil, fmt.Errorf("list borrow history: %w", err)
	}

	return domain.NewPatronReport(patronID, active, history, now), nil
}
