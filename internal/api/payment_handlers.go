package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/circulation/internal/domain"
	"github.com/listenupapp/circulation/internal/payment"
)

func (s *Server) registerPaymentRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "payLateFee",
		Method:      http.MethodPost,
		Path:        "/api/v1/patrons/{patronID}/books/{bookID}/late-fee/payment",
		Summary:     "Pay late fee",
		Description: "Charges the patron the current late fee on their open loan of a book",
		Tags:        []string{"Payments"},
		Middlewares: huma.Middlewares{s.rateLimitPayments},
	}, s.handlePayLateFee)

	huma.Register(s.api, huma.Operation{
		OperationID: "listPatronPayments",
		Method:      http.MethodGet,
		Path:        "/api/v1/patrons/{patronID}/payments",
		Summary:     "List payments",
		Description: "Returns the patron's recorded charges and refunds, newest first",
		Tags:        []string{"Payments"},
	}, s.handleListPayments)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPayment",
		Method:      http.MethodGet,
		Path:        "/api/v1/payments/{transactionID}",
		Summary:     "Get payment",
		Description: "Returns one recorded charge with its refunds",
		Tags:        []string{"Payments"},
	}, s.handleGetPayment)

	huma.Register(s.api, huma.Operation{
		OperationID: "refundLateFee",
		Method:      http.MethodPost,
		Path:        "/api/v1/payments/{transactionID}/refund",
		Summary:     "Refund late fee",
		Description: "Refunds part or all of an earlier late fee charge, up to 15.00",
		Tags:        []string{"Payments"},
		Middlewares: huma.Middlewares{s.rateLimitPayments},
	}, s.handleRefund)
}

// === DTOs ===

// PaymentOutput wraps the result of a late fee payment.
type PaymentOutput struct {
	Body *domain.Payment
}

// TransactionInput identifies a recorded charge.
type TransactionInput struct {
	TransactionID string `path:"transactionID" doc:"Transaction ID returned by the payment"`
}

// PaymentDetailOutput wraps one recorded charge.
type PaymentDetailOutput struct {
	Body PaymentResponse
}

// RefundInput contains parameters for a refund.
type RefundInput struct {
	TransactionID string `path:"transactionID" doc:"Transaction ID returned by the payment"`
	Body          struct {
		Amount string `json:"amount" doc:"Amount to refund in dollars, e.g. \"3.00\""`
	}
}

// RefundOutput wraps the result of a refund.
type RefundOutput struct {
	Body *domain.Refund
}

// RefundResponse is one refund in a payment listing.
type RefundResponse struct {
	ID         string    `json:"id" doc:"Refund ID"`
	Amount     float64   `json:"amount" doc:"Refunded amount in dollars"`
	RefundedAt time.Time `json:"refunded_at" doc:"When the refund was issued"`
}

// PaymentResponse is one charge in a payment listing.
type PaymentResponse struct {
	TransactionID string           `json:"transaction_id" doc:"Transaction ID"`
	Amount        float64          `json:"amount" doc:"Charged amount in dollars"`
	Refunded      float64          `json:"refunded" doc:"Total refunded in dollars"`
	ChargedAt     time.Time        `json:"charged_at" doc:"When the charge was made"`
	Refunds       []RefundResponse `json:"refunds,omitempty" doc:"Refunds issued against the charge"`
}

// PaymentListOutput wraps a patron's payment history.
type PaymentListOutput struct {
	Body []PaymentResponse
}

func toPaymentResponse(t *payment.Transaction) PaymentResponse {
	resp := PaymentResponse{
		TransactionID: t.ID,
		Amount:        t.Amount(),
		Refunded:      t.Refunded(),
		ChargedAt:     t.ChargedAt,
	}
	for _, r := range t.Refunds {
		resp.Refunds = append(resp.Refunds, RefundResponse{
			ID:         r.ID,
			Amount:     domain.CentsToDollars(int(r.AmountCents)),
			RefundedAt: r.RefundedAt,
		})
	}
	return resp
}

// === Handlers ===

func (s *Server) handlePayLateFee(ctx context.Context, input *PatronBookInput) (*PaymentOutput, error) {
	result, err := s.services.Payments.PayLateFees(ctx, input.PatronID, input.BookID)
	if err != nil {
		return nil, err
	}
	return &PaymentOutput{Body: result}, nil
}

func (s *Server) handleListPayments(ctx context.Context, input *PatronInput) (*PaymentListOutput, error) {
	txns, err := s.services.Payments.Transactions(ctx, input.PatronID)
	if err != nil {
		return nil, err
	}

	payments := make([]PaymentResponse, 0, len(txns))
	for _, t := range txns {
		payments = append(payments, toPaymentResponse(t))
	}
	return &PaymentListOutput{Body: payments}, nil
}

func (s *Server) handleGetPayment(ctx context.Context, input *TransactionInput) (*PaymentDetailOutput, error) {
	txn, err := s.services.Payments.Transaction(ctx, input.TransactionID)
	if err != nil {
		return nil, err
	}
	return &PaymentDetailOutput{Body: toPaymentResponse(txn)}, nil
}

func (s *Server) handleRefund(ctx context.Context, input *RefundInput) (*RefundOutput, error) {
	result, err := s.services.Payments.RefundLateFeePaymentText(ctx, input.TransactionID, input.Body.Amount)
	if err != nil {
		return nil, err
	}
	return &RefundOutput{Body: result}, nil
}
