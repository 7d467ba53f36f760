// Package payment defines the payment gateway used to charge late fees and
// refund them, plus a ledger-backed implementation.
package payment

import "context"

// Gateway response statuses.
const (
	StatusSuccess  = "success"
	StatusRefunded = "refunded"
	StatusError    = "error"
)

// Decline reasons reported by LedgerGateway.
const (
	ReasonInvalidAmount       = "invalid amount"
	ReasonInvalidRefund       = "invalid refund"
	ReasonUnknownTransaction  = "unknown transaction"
	ReasonRefundExceedsCharge = "refund exceeds charge"
)

// Gateway charges patrons and refunds earlier charges.
//
// A declined request is a normal response with a non-success Status and a
// Reason. A returned error means the gateway itself failed.
type Gateway interface {
	Charge(ctx context.Context, patronID string, amount float64) (*ChargeResponse, error)
	Refund(ctx context.Context, transactionID string, amount float64) (*RefundResponse, error)
}

// ChargeResponse is the gateway's answer to a charge.
type ChargeResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// Succeeded reports whether the charge went through.
func (r *ChargeResponse) Succeeded() bool {
	return r != nil && r.Status == StatusSuccess
}

// RefundResponse is the gateway's answer to a refund.
type RefundResponse struct {
	Status   string  `json:"status"`
	RefundID string  `json:"refund_id,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// Succeeded reports whether the refund went through.
func (r *RefundResponse) Succeeded() bool {
	return r != nil && r.Status == StatusRefunded
}

func declineCharge(reason string) *ChargeResponse {
	return &ChargeResponse{Status: StatusError, Reason: reason}
}

func declineRefund(reason string) *RefundResponse {
	return &RefundResponse{Status: StatusError, Reason: reason}
}
