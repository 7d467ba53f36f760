package payment

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestLedger(t *testing.T) *LedgerGateway {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	g, err := NewLedgerGateway(LedgerOptions{InMemory: true, Now: clock.Now})
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return g
}

func TestLedger_Charge(t *testing.T) {
	g := newTestLedger(t)
	ctx := context.Background()

	resp, err := g.Charge(ctx, "123456", 6.5)
	require.NoError(t, err)
	assert.True(t, resp.Succeeded())
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.True(t, strings.HasPrefix(resp.TransactionID, "txn-"))
	assert.Empty(t, resp.Reason)

	txn, err := g.Transaction(ctx, resp.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, "123456", txn.PatronID)
	assert.Equal(t, int64(650), txn.AmountCents)
	assert.InDelta(t, 6.5, txn.Amount(), 0.001)
	assert.Zero(t, txn.RefundedCents)
}

func TestLedger_ChargeRejectsInvalidAmounts(t *testing.T) {
	g := newTestLedger(t)

	for _, amount := range []float64{0, -1, 0.001, math.NaN(), math.Inf(1)} {
		resp, err := g.Charge(context.Background(), "123456", amount)
		require.NoError(t, err)
		assert.False(t, resp.Succeeded(), "amount %v", amount)
		assert.Equal(t, StatusError, resp.Status)
		assert.Equal(t, ReasonInvalidAmount, resp.Reason)
	}

	txns, err := g.Transactions(context.Background(), "123456")
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestLedger_Refund(t *testing.T) {
	g := newTestLedger(t)
	ctx := context.Background()

	charge, err := g.Charge(ctx, "123456", 10)
	require.NoError(t, err)

	refund, err := g.Refund(ctx, charge.TransactionID, 3)
	require.NoError(t, err)
	assert.True(t, refund.Succeeded())
	assert.Equal(t, StatusRefunded, refund.Status)
	assert.True(t, strings.HasPrefix(refund.RefundID, "rf-"))
	assert.InDelta(t, 3.0, refund.Amount, 0.001)

	// Partial refunds accumulate up to the charged amount.
	refund, err = g.Refund(ctx, charge.TransactionID, 7)
	require.NoError(t, err)
	assert.True(t, refund.Succeeded())

	refund, err = g.Refund(ctx, charge.TransactionID, 0.01)
	require.NoError(t, err)
	assert.Equal(t, StatusError, refund.Status)
	assert.Equal(t, ReasonRefundExceedsCharge, refund.Reason)

	txn, err := g.Transaction(ctx, charge.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), txn.RefundedCents)
	assert.Len(t, txn.Refunds, 2)
}

func TestLedger_RefundDeclines(t *testing.T) {
	g := newTestLedger(t)
	ctx := context.Background()

	charge, err := g.Charge(ctx, "123456", 2)
	require.NoError(t, err)

	tests := []struct {
		name   string
		txnID  string
		amount float64
		reason string
	}{
		{"blank transaction", "", 1, ReasonInvalidRefund},
		{"zero amount", charge.TransactionID, 0, ReasonInvalidRefund},
		{"negative amount", charge.TransactionID, -2, ReasonInvalidRefund},
		{"unknown transaction", "txn-missing", 1, ReasonUnknownTransaction},
		{"more than charged", charge.TransactionID, 2.5, ReasonRefundExceedsCharge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := g.Refund(ctx, tt.txnID, tt.amount)
			require.NoError(t, err)
			assert.Equal(t, StatusError, resp.Status)
			assert.Equal(t, tt.reason, resp.Reason)
			assert.Empty(t, resp.RefundID)
		})
	}
}

func TestLedger_TransactionsNewestFirst(t *testing.T) {
	g := newTestLedger(t)
	ctx := context.Background()

	first, err := g.Charge(ctx, "123456", 1)
	require.NoError(t, err)
	second, err := g.Charge(ctx, "123456", 2)
	require.NoError(t, err)
	_, err = g.Charge(ctx, "1234567", 3)
	require.NoError(t, err)

	txns, err := g.Transactions(ctx, "123456")
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, second.TransactionID, txns[0].ID)
	assert.Equal(t, first.TransactionID, txns[1].ID)
}

func TestLedger_TransactionNotFound(t *testing.T) {
	g := newTestLedger(t)

	_, err := g.Transaction(context.Background(), "txn-nope")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestLedger_CanceledContext(t *testing.T) {
	g := newTestLedger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Charge(ctx, "123456", 1)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = g.Refund(ctx, "txn-x", 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLedger_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	g, err := NewLedgerGateway(LedgerOptions{Path: dir})
	require.NoError(t, err)
	charge, err := g.Charge(ctx, "654321", 4.5)
	require.NoError(t, err)
	require.NoError(t, g.Close())

	g2, err := NewLedgerGateway(LedgerOptions{Path: dir})
	require.NoError(t, err)
	defer g2.Close()

	txn, err := g2.Transaction(ctx, charge.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, int64(450), txn.AmountCents)
}

func TestLedger_ConcurrentRefundsNeverExceedCharge(t *testing.T) {
	g := newTestLedger(t)
	ctx := context.Background()

	charge, err := g.Charge(ctx, "123456", 5)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = g.Refund(ctx, charge.TransactionID, 1)
		}()
	}
	wg.Wait()

	txn, err := g.Transaction(ctx, charge.TransactionID)
	require.NoError(t, err)
	assert.LessOrEqual(t, txn.RefundedCents, txn.AmountCents)
	assert.Equal(t, len(txn.Refunds)*100, int(txn.RefundedCents))
}
