package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/listenupapp/circulation/internal/domain"
	domainerrors "github.com/listenupapp/circulation/internal/errors"
	"github.com/listenupapp/circulation/internal/store"
	"github.com/listenupapp/circulation/internal/validation"
)

const (
	msgUnavailable      = "This book is currently not available."
	msgBorrowLimit      = "You have reached the maximum borrowing limit of 5 books."
	msgNoBorrowRecord   = "No borrowing record found for this patron and book."
	msgCreateRecordDB   = "Database error occurred while creating borrow record."
	msgAvailabilityDB   = "Database error occurred while updating book availability."
	msgReturnDateDB     = "Database error occurred while updating return date."
	msgLoadBookDB       = "Database error occurred while loading the book."
	msgCountBorrowingDB = "Database error occurred while checking borrowing limit."
)

// CirculationService lends and receives books.
//
// Each borrow or return writes the borrow record and the availability change
// in one store transaction, so the two never diverge.
type CirculationService struct {
	store     store.Store
	validator *validation.Validator
	clock     Clock
	logger    *slog.Logger
}

// loanRequest is the patron side of a borrow or return.
type loanRequest struct {
	PatronID string `json:"patron_id" validate:"patronid"`
}

var loanMessages = validation.Messages{
	"patron_id.patronid": msgInvalidPatronID,
}

// NewCirculationService creates a circulation service. A nil validator is
// replaced by validation.New().
func NewCirculationService(s store.Store, v *validation.Validator, logger *slog.Logger) *CirculationService {
	if v == nil {
		v = validation.New()
	}
	return &CirculationService{
		store:     s,
		validator: v,
		logger:    defaultLogger(logger),
	}
}

// SetClock overrides the clock used for borrow and return dates.
func (s *CirculationService) SetClock(c Clock) {
	s.clock = c
}

func (s *CirculationService) loadBook(ctx context.Context, patronID string, bookID int64) (*domain.Book, error) {
	if err := s.validator.ValidateWithMessages(loanRequest{PatronID: patronID}, loanMessages); err != nil {
		return nil, err
	}

	book, err := s.store.GetBook(ctx, bookID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFound(msgBookNotFound)
	}
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, msgLoadBookDB)
	}
	return book, nil
}

// BorrowBook lends one copy of a book to a patron for the loan period.
func (s *CirculationService) BorrowBook(ctx context.Context, patronID string, bookID int64) (*Receipt, error) {
	book, err := s.loadBook(ctx, patronID, bookID)
	if err != nil {
		return nil, err
	}

	if !book.IsAvailable() {
		return nil, domainerrors.Unavailable(msgUnavailable)
	}

	now := s.clock.now()
	record := domain.NewBorrowRecord(patronID, bookID, now)

	err = s.store.WithTx(ctx, func(tx store.Circulation) error {
		if err := tx.LockPatron(ctx, patronID); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, msgCountBorrowingDB)
		}

		active, err := tx.CountActiveBorrows(ctx, patronID)
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, msgCountBorrowingDB)
		}
		if active >= domain.MaxActiveBorrows {
			return domainerrors.LimitReached(msgBorrowLimit)
		}

		if err := tx.CreateBorrowRecord(ctx, record); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domainerrors.NotFound(msgBookNotFound)
			}
			return domainerrors.Wrap(err, domainerrors.CodeInternal, msgCreateRecordDB)
		}

		switch err := tx.UpdateBookAvailability(ctx, bookID, -1); {
		case err == nil:
			return nil
		case errors.Is(err, store.ErrInvariant):
			// Another borrow took the last copy since the book was loaded.
			return domainerrors.Unavailable(msgUnavailable)
		case errors.Is(err, store.ErrNotFound):
			return domainerrors.NotFound(msgBookNotFound)
		default:
			return domainerrors.Wrap(err, domainerrors.CodeInternal, msgAvailabilityDB)
		}
	})
	if err != nil {
		if !errors.Is(err, domainerrors.ErrLimitReached) && !errors.Is(err, domainerrors.ErrUnavailable) {
			s.logger.Warn("borrow failed", "patron_id", patronID, "book_id", bookID, "error", err)
		}
		return nil, asDomainError(err, msgCreateRecordDB)
	}

	book.AvailableCopies--
	s.logger.Info("book borrowed", "patron_id", patronID, "book_id", bookID, "record_id", record.ID)

	return &Receipt{
		Message: fmt.Sprintf(`Successfully borrowed "%s". Due date: %s.`, book.Title, record.DueDate.Format(domain.DateLayout)),
		Book:    book,
		Record:  record,
	}, nil
}

// ReturnBook closes the patron's oldest open loan of the book.
func (s *CirculationService) ReturnBook(ctx context.Context, patronID string, bookID int64) (*Receipt, error) {
	book, err := s.loadBook(ctx, patronID, bookID)
	if err != nil {
		return nil, err
	}

	now := s.clock.now()
	var record *domain.BorrowRecord

	err = s.store.WithTx(ctx, func(tx store.Circulation) error {
		if err := tx.LockPatron(ctx, patronID); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, msgReturnDateDB)
		}

		open, err := tx.GetActiveBorrow(ctx, patronID, bookID)
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound(msgNoBorrowRecord)
		}
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, msgReturnDateDB)
		}

		if err := tx.SetReturnDate(ctx, patronID, bookID, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domainerrors.NotFound(msgNoBorrowRecord)
			}
			return domainerrors.Wrap(err, domainerrors.CodeInternal, msgReturnDateDB)
		}

		if err := tx.UpdateBookAvailability(ctx, bookID, 1); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, msgAvailabilityDB)
		}

		open.ReturnDate = &now
		record = open
		return nil
	})
	if err != nil {
		if !errors.Is(err, domainerrors.ErrNotFound) {
			s.logger.Warn("return failed", "patron_id", patronID, "book_id", bookID, "error", err)
		}
		return nil, asDomainError(err, msgReturnDateDB)
	}

	book.AvailableCopies++
	s.logger.Info("book returned", "patron_id", patronID, "book_id", bookID, "record_id", record.ID)

	return &Receipt{
		Message: fmt.Sprintf(`Successfully returned "%s". Return date: %s.`, book.Title, now.Format(domain.DateLayout)),
		Book:    book,
		Record:  record,
	}, nil
}
