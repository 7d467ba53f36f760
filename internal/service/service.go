// Package service implements the circulation desk: catalog management,
// borrowing and returns, late fees, patron reports and fee payments.
//
// Every operation reports patron-facing failures as *errors.Error values whose
// Message is the exact text shown to the patron. Store faults are wrapped with
// errors.CodeInternal.
package service

import (
	"errors"
	"log/slog"
	"time"

	domainerrors "github.com/listenupapp/circulation/internal/errors"
)

// Patron-facing messages shared by several services.
const (
	msgInvalidPatronID = "Invalid patron ID. Must be exactly 6 digits."
	msgBookNotFound    = "Book not found."
)

// Clock returns the current time. Services default to time.Now.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}

// asDomainError passes domain errors through untouched and wraps anything
// else as an internal error with msg.
func asDomainError(err error, msg string) error {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return domainerrors.Wrap(err, domainerrors.CodeInternal, msg)
}
