// Package paymenttest provides a scriptable payment.Gateway for tests.
package paymenttest

import (
	"context"
	"sync"

	"github.com/listenupapp/circulation/internal/payment"
)

// ChargeCall records one Charge invocation.
type ChargeCall struct {
	PatronID string
	Amount   float64
}

// RefundCall records one Refund invocation.
type RefundCall struct {
	TransactionID string
	Amount        float64
}

// Gateway is a fake payment.Gateway. By default every charge succeeds with
// transaction ID "TXN1" and every refund succeeds with refund ID "RF" plus the
// transaction ID.
type Gateway struct {
	ChargeFunc func(ctx context.Context, patronID string, amount float64) (*payment.ChargeResponse, error)
	RefundFunc func(ctx context.Context, transactionID string, amount float64) (*payment.RefundResponse, error)

	mu      sync.Mutex
	charges []ChargeCall
	refunds []RefundCall
}

var _ payment.Gateway = (*Gateway)(nil)

// New returns a Gateway that approves everything.
func New() *Gateway {
	return &Gateway{}
}

// Declining returns a Gateway that declines every charge and refund with reason.
func Declining(reason string) *Gateway {
	return &Gateway{
		ChargeFunc: func(context.Context, string, float64) (*payment.ChargeResponse, error) {
			return &payment.ChargeResponse{Status: payment.StatusError, Reason: reason}, nil
		},
		RefundFunc: func(context.Context, string, float64) (*payment.RefundResponse, error) {
			return &payment.RefundResponse{Status: payment.StatusError, Reason: reason}, nil
		},
	}
}

// Failing returns a Gateway whose every call fails with err.
func Failing(err error) *Gateway {
	return &Gateway{
		ChargeFunc: func(context.Context, string, float64) (*payment.ChargeResponse, error) {
			return nil, err
		},
		RefundFunc: func(context.Context, string, float64) (*payment.RefundResponse, error) {
			return nil, err
		},
	}
}

// Charge implements payment.Gateway.
func (g *Gateway) Charge(ctx context.Context, patronID string, amount float64) (*payment.ChargeResponse, error) {
	g.mu.Lock()
	g.charges = append(g.charges, ChargeCall{PatronID: patronID, Amount: amount})
	g.mu.Unlock()

	if g.ChargeFunc != nil {
		return g.ChargeFunc(ctx, patronID, amount)
	}
	return &payment.ChargeResponse{Status: payment.StatusSuccess, TransactionID: "TXN1"}, nil
}

// Refund implements payment.Gateway.
func (g *Gateway) Refund(ctx context.Context, transactionID string, amount float64) (*payment.RefundResponse, error) {
	g.mu.Lock()
	g.refunds = append(g.refunds, RefundCall{TransactionID: transactionID, Amount: amount})
	g.mu.Unlock()

	if g.RefundFunc != nil {
		return g.RefundFunc(ctx, transactionID, amount)
	}
	return &payment.RefundResponse{
		Status:   payment.StatusRefunded,
		RefundID: "RF" + transactionID,
		Amount:   amount,
	}, nil
}

// Charges returns the recorded Charge calls.
func (g *Gateway) Charges() []ChargeCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ChargeCall(nil), g.charges...)
}

// Refunds returns the recorded Refund calls.
func (g *Gateway) Refunds() []RefundCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]RefundCall(nil), g.refunds...)
}
