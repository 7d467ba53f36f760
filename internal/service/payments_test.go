package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/circulation/internal/errors"
	"github.com/listenupapp/circulation/internal/payment"
	"github.com/listenupapp/circulation/internal/payment/paymenttest"
)

// overdueLoan opens a loan for patron 123456 and moves the clock days past its due date.
func overdueLoan(t *testing.T, svc *testServices, days int) int64 {
	t.Helper()
	book := svc.addBook(t, "Dune", "9780441172719", 1)
	svc.borrow(t, "123456", book.ID)
	svc.setNow(daysAfterDue(days))
	return book.ID
}

func TestPayLateFees_Charges(t *testing.T) {
	svc := newTestServices(t)
	bookID := overdueLoan(t, svc, 5)

	paid, err := svc.payments.PayLateFees(context.Background(), "123456", bookID)
	require.NoError(t, err)
	assert.Equal(t, "TXN1", paid.TransactionID)
	assert.InDelta(t, 2.50, paid.Charged, 1e-9)
	assert.Equal(t, 5, paid.DaysOverdue)
	assert.Empty(t, paid.Message)

	charges := svc.gateway.Charges()
	require.Len(t, charges, 1)
	assert.Equal(t, paymenttest.ChargeCall{PatronID: "123456", Amount: 2.5}, charges[0])
}

func TestPayLateFees_NothingOwed(t *testing.T) {
	svc := newTestServices(t)
	book := svc.addBook(t, "Dune", "9780441172719", 1)
	svc.borrow(t, "123456", book.ID)

	paid, err := svc.payments.PayLateFees(context.Background(), "123456", book.ID)
	require.NoError(t, err)
	assert.Equal(t, "No late fees", paid.Message)
	assert.Empty(t, paid.TransactionID)
	assert.Empty(t, svc.gateway.Charges())
}

func TestPayLateFees_InputErrors(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	book := svc.addBook(t, "Dune", "9780441172719", 1)

	_, err := svc.payments.PayLateFees(ctx, "abcdef", book.ID)
	requireDomainError(t, err, domainerrors.CodeValidation, "Invalid patron ID")

	_, err = svc.payments.PayLateFees(ctx, "123456", 777)
	requireDomainError(t, err, domainerrors.CodeNotFound, "Book not found")

	_, err = svc.payments.PayLateFees(ctx, "123456", book.ID)
	requireDomainError(t, err, domainerrors.CodeNotFound, "No active borrowing record found.")

	assert.Empty(t, svc.gateway.Charges())
}

func TestPayLateFees_GatewayOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		gateway  *paymenttest.Gateway
		wantCode domainerrors.Code
		wantMsg  string
	}{
		{
			name:     "declined",
			gateway:  paymenttest.Declining("DECLINED"),
			wantCode: domainerrors.CodePaymentFailed,
			wantMsg:  "DECLINED",
		},
		{
			name:     "declined without reason",
			gateway:  paymenttest.Declining(""),
			wantCode: domainerrors.CodePaymentFailed,
			wantMsg:  "Payment failed",
		},
		{
			name: "nil response",
			gateway: &paymenttest.Gateway{
				ChargeFunc: func(context.Context, string, float64) (*payment.ChargeResponse, error) {
					return nil, nil
				},
			},
			wantCode: domainerrors.CodePaymentFailed,
			wantMsg:  "Payment failed",
		},
		{
			name:     "gateway fault",
			gateway:  paymenttest.Failing(errors.New("connection reset")),
			wantCode: domainerrors.CodeGateway,
			wantMsg:  "Payment exception: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestServices(t)
			svc.payments = NewPaymentService(svc.store, svc.fees, tt.gateway, nil)
			bookID := overdueLoan(t, svc, 2)

			_, err := svc.payments.PayLateFees(context.Background(), "123456", bookID)
			requireDomainError(t, err, tt.wantCode, tt.wantMsg)
			assert.Len(t, tt.gateway.Charges(), 1)
		})
	}
}

func TestRefundLateFeePayment(t *testing.T) {
	svc := newTestServices(t)

	refund, err := svc.payments.RefundLateFeePayment(context.Background(), "TXN1", 3)
	require.NoError(t, err)
	assert.Equal(t, "RFTXN1", refund.RefundID)
	assert.InDelta(t, 3.0, refund.Refunded, 1e-9)

	refund, err = svc.payments.RefundLateFeePayment(context.Background(), "TXN1", 15)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, refund.Refunded, 1e-9)

	assert.Equal(t, []paymenttest.RefundCall{
		{TransactionID: "TXN1", Amount: 3},
		{TransactionID: "TXN1", Amount: 15},
	}, svc.gateway.Refunds())
}

func TestRefundLateFeePayment_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		txnID   string
		amount  float64
		wantMsg string
	}{
		{"zero", "TXN1", 0, "Amount must be >0 and ≤15"},
		{"negative", "TXN1", -1, "Amount must be >0 and ≤15"},
		{"over cap", "TXN1", 16, "Amount must be >0 and ≤15"},
		{"just over cap", "TXN1", 15.01, "Amount must be >0 and ≤15"},
		{"empty transaction", "", 3, "Invalid transaction"},
		{"nan", "TXN1", math.NaN(), "Invalid amount"},
		{"infinite", "TXN1", math.Inf(1), "Invalid amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestServices(t)

			_, err := svc.payments.RefundLateFeePayment(context.Background(), tt.txnID, tt.amount)
			requireDomainError(t, err, domainerrors.CodeValidation, tt.wantMsg)
			assert.Empty(t, svc.gateway.Refunds())
		})
	}
}

func TestRefundLateFeePayment_GatewayOutcomes(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	svc.payments = NewPaymentService(svc.store, svc.fees, paymenttest.Declining("TOO LATE"), nil)
	_, err := svc.payments.RefundLateFeePayment(ctx, "TXN1", 2)
	requireDomainError(t, err, domainerrors.CodePaymentFailed, "TOO LATE")

	svc.payments = NewPaymentService(svc.store, svc.fees, paymenttest.Declining(""), nil)
	_, err = svc.payments.RefundLateFeePayment(ctx, "TXN1", 2)
	requireDomainError(t, err, domainerrors.CodePaymentFailed, "Refund failed")

	svc.payments = NewPaymentService(svc.store, svc.fees, paymenttest.Failing(errors.New("timeout")), nil)
	_, err = svc.payments.RefundLateFeePayment(ctx, "TXN1", 2)
	requireDomainError(t, err, domainerrors.CodeGateway, "Refund exception: timeout")
}

func TestRefundLateFeePaymentText(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	refund, err := svc.payments.RefundLateFeePaymentText(ctx, "TXN9", " 3.00 ")
	require.NoError(t, err)
	assert.Equal(t, "RFTXN9", refund.RefundID)
	assert.InDelta(t, 3.0, refund.Refunded, 1e-9)

	_, err = svc.payments.RefundLateFeePaymentText(ctx, "TXN9", "abc")
	requireDomainError(t, err, domainerrors.CodeValidation, "Invalid amount")

	_, err = svc.payments.RefundLateFeePaymentText(ctx, "TXN9", "NaN")
	requireDomainError(t, err, domainerrors.CodeValidation, "Invalid amount")

	_, err = svc.payments.RefundLateFeePaymentText(ctx, "", "3.00")
	requireDomainError(t, err, domainerrors.CodeValidation, "Invalid transaction")

	_, err = svc.payments.RefundLateFeePaymentText(ctx, "TXN9", "20")
	requireDomainError(t, err, domainerrors.CodeValidation, "Amount must be >0 and ≤15")

	assert.Len(t, svc.gateway.Refunds(), 1)
}

func TestPaymentsThroughLedger(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	ledger, err := payment.NewLedgerGateway(payment.LedgerOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	svc.payments = NewPaymentService(svc.store, svc.fees, ledger, nil)

	bookID := overdueLoan(t, svc, 10)
	paid, err := svc.payments.PayLateFees(ctx, "123456", bookID)
	require.NoError(t, err)
	require.NotEmpty(t, paid.TransactionID)
	assert.InDelta(t, 6.50, paid.Charged, 1e-9)

	txns, err := svc.payments.Transactions(ctx, "123456")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, paid.TransactionID, txns[0].ID)
	assert.Equal(t, int64(650), txns[0].AmountCents)

	refund, err := svc.payments.RefundLateFeePayment(ctx, paid.TransactionID, 4)
	require.NoError(t, err)
	assert.NotEmpty(t, refund.RefundID)

	// The ledger refuses to refund more than was charged.
	_, err = svc.payments.RefundLateFeePayment(ctx, paid.TransactionID, 3)
	requireDomainError(t, err, domainerrors.CodePaymentFailed, payment.ReasonRefundExceedsCharge)

	_, err = svc.payments.RefundLateFeePayment(ctx, "txn-missing", 1)
	requireDomainError(t, err, domainerrors.CodePaymentFailed, payment.ReasonUnknownTransaction)

	txns, err = svc.payments.Transactions(ctx, "654321")
	require.NoError(t, err)
	assert.Empty(t, txns)

	txn, err := svc.payments.Transaction(ctx, paid.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, int64(650), txn.AmountCents)
	assert.Equal(t, int64(400), txn.RefundedCents)
	require.Len(t, txn.Refunds, 1)
	assert.Equal(t, refund.RefundID, txn.Refunds[0].ID)

	_, err = svc.payments.Transaction(ctx, "txn-missing")
	requireDomainError(t, err, domainerrors.CodeNotFound, "Transaction not found.")
}

func TestTransactions_Errors(t *testing.T) {
	svc := newTestServices(t)

	_, err := svc.payments.Transactions(context.Background(), "1")
	requireDomainError(t, err, domainerrors.CodeValidation, "Invalid patron ID. Must be exactly 6 digits.")

	_, err = svc.payments.Transactions(context.Background(), "123456")
	requireDomainError(t, err, domainerrors.CodeUnavailable, "Payment history is not available.")
	_, err = svc.payments.Transaction(context.Background(), "")
	requireDomainError(t, err, domainerrors.CodeValidation, "Invalid transaction")

	_, err = svc.payments.Transaction(context.Background(), "TXN1")
	requireDomainError(t, err, domainerrors.CodeUnavailable, "Payment history is not available.")
}
