package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/listenupapp/circulation/internal/domain"
	domainerrors "github.com/listenupapp/circulation/internal/errors"
	"github.com/listenupapp/circulation/internal/payment"
	"github.com/listenupapp/circulation/internal/store"
)

const (
	msgPayInvalidPatron   = "Invalid patron ID"
	msgPayBookNotFound    = "Book not found"
	msgNoLateFees         = "No late fees"
	msgPaymentFailed      = "Payment failed"
	msgInvalidTransaction = "Invalid transaction"
	msgInvalidAmount      = "Invalid amount"
	msgRefundRange        = "Amount must be >0 and ≤15"
	msgRefundFailed       = "Refund failed"
	msgHistoryUnavailable = "Payment history is not available."
	msgTxnNotFound        = "Transaction not found."
)

// TransactionLister is implemented by gateways that keep a queryable ledger.
type TransactionLister interface {
	Transaction(ctx context.Context, transactionID string) (*payment.Transaction, error)
	Transactions(ctx context.Context, patronID string) ([]*payment.Transaction, error)
}

// PaymentService charges late fees and refunds them through a payment gateway.
type PaymentService struct {
	store   store.Store
	fees    *FeeService
	gateway payment.Gateway
	logger  *slog.Logger
}

// NewPaymentService creates a payment service charging through gateway.
func NewPaymentService(s store.Store, fees *FeeService, gateway payment.Gateway, logger *slog.Logger) *PaymentService {
	return &PaymentService{
		store:   s,
		fees:    fees,
		gateway: gateway,
		logger:  defaultLogger(logger),
	}
}

// PayLateFees charges the patron the current late fee on their open loan of a
// book. Nothing is charged when no fee is owed.
func (s *PaymentService) PayLateFees(ctx context.Context, patronID string, bookID int64) (*domain.Payment, error) {
	if !domain.ValidPatronID(patronID) {
		return nil, domainerrors.Validation(msgPayInvalidPatron)
	}

	if _, err := s.store.GetBook(ctx, bookID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound(msgPayBookNotFound)
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, msgLoadBookDB)
	}

	fee, err := s.fees.CalculateLateFee(ctx, patronID, bookID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "Database error occurred while calculating the late fee.")
	}
	switch fee.Status {
	case msgBookNotFound, msgNoActiveRecord:
		return nil, domainerrors.NotFound(fee.Status)
	}

	if fee.FeeAmount <= 0 {
		return &domain.Payment{Message: msgNoLateFees}, nil
	}

	resp, err := s.gateway.Charge(ctx, patronID, fee.FeeAmount)
	if err != nil {
		s.logger.Error("payment gateway fault", "patron_id", patronID, "book_id", bookID, "error", err)
		return nil, domainerrors.Gatewayf("Payment exception: %v", err).WithCause(err)
	}
	if !resp.Succeeded() {
		reason := msgPaymentFailed
		if resp != nil && resp.Reason != "" {
			reason = resp.Reason
		}
		s.logger.Info("payment declined", "patron_id", patronID, "book_id", bookID, "reason", reason)
		return nil, domainerrors.PaymentFailed(reason)
	}

	s.logger.Info("late fee paid",
		"patron_id", patronID,
		"book_id", bookID,
		"transaction_id", resp.TransactionID,
		"amount", fee.FeeAmount,
	)

	return &domain.Payment{
		TransactionID: resp.TransactionID,
		Charged:       domain.RoundCents(fee.FeeAmount),
		DaysOverdue:   fee.DaysOverdue,
	}, nil
}

// RefundLateFeePayment refunds part or all of an earlier late fee charge.
// The amount must lie in (0, MaxLateFee].
func (s *PaymentService) RefundLateFeePayment(ctx context.Context, transactionID string, amount float64) (*domain.Refund, error) {
	if transactionID == "" {
		return nil, domainerrors.Validation(msgInvalidTransaction)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, domainerrors.Validation(msgInvalidAmount)
	}
	if amount <= 0 || amount > domain.MaxLateFee {
		return nil, domainerrors.Validation(msgRefundRange)
	}

	resp, err := s.gateway.Refund(ctx, transactionID, amount)
	if err != nil {
		s.logger.Error("refund gateway fault", "transaction_id", transactionID, "error", err)
		return nil, domainerrors.Gatewayf("Refund exception: %v", err).WithCause(err)
	}
	if !resp.Succeeded() {
		reason := msgRefundFailed
		if resp != nil && resp.Reason != "" {
			reason = resp.Reason
		}
		s.logger.Info("refund declined", "transaction_id", transactionID, "reason", reason)
		return nil, domainerrors.PaymentFailed(reason)
	}

	s.logger.Info("late fee refunded", "transaction_id", transactionID, "refund_id", resp.RefundID, "amount", amount)

	return &domain.Refund{
		RefundID: resp.RefundID,
		Refunded: domain.RoundCents(amount),
	}, nil
}

// RefundLateFeePaymentText parses a textual amount before refunding.
func (s *PaymentService) RefundLateFeePaymentText(ctx context.Context, transactionID, amount string) (*domain.Refund, error) {
	if transactionID == "" {
		return nil, domainerrors.Validation(msgInvalidTransaction)
	}
	v, err := domain.ParseAmount(amount)
	if err != nil {
		return nil, domainerrors.Validation(msgInvalidAmount)
	}
	return s.RefundLateFeePayment(ctx, transactionID, v)
}

// Transactions lists the patron's recorded charges, newest first. It needs a
// gateway that keeps a ledger.
func (s *PaymentService) Transactions(ctx context.Context, patronID string) ([]*payment.Transaction, error) {
	if !domain.ValidPatronID(patronID) {
		return nil, domainerrors.Validation(msgInvalidPatronID)
	}

	lister, ok := s.gateway.(TransactionLister)
	if !ok {
		return nil, domainerrors.Unavailable(msgHistoryUnavailable)
	}

	txns, err := lister.Transactions(ctx, patronID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, fmt.Sprintf("Could not read payments for patron %s.", patronID))
	}
	return txns, nil
}

// Transaction looks up one recorded charge with its refunds.
func (s *PaymentService) Transaction(ctx context.Context, transactionID string) (*payment.Transaction, error) {
	if transactionID == "" {
		return nil, domainerrors.Validation(msgInvalidTransaction)
	}

	lister, ok := s.gateway.(TransactionLister)
	if !ok {
		return nil, domainerrors.Unavailable(msgHistoryUnavailable)
	}

	txn, err := lister.Transaction(ctx, transactionID)
	if errors.Is(err, payment.ErrTransactionNotFound) {
		return nil, domainerrors.NotFound(msgTxnNotFound)
	}
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, fmt.Sprintf("Could not read transaction %s.", transactionID))
	}
	return txn, nil
}
