package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerCirculationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "borrowBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/{id}/borrow",
		Summary:     "Borrow book",
		Description: "Lends one copy of a book to a patron for 14 days",
		Tags:        []string{"Circulation"},
	}, s.handleBorrowBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "returnBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/{id}/return",
		Summary:     "Return book",
		Description: "Closes the patron's oldest open loan of a book",
		Tags:        []string{"Circulation"},
	}, s.handleReturnBook)
}

// === DTOs ===

// LoanInput identifies the book and the patron borrowing or returning it.
type LoanInput struct {
	ID   int64 `path:"id" doc:"Book ID"`
	Body struct {
		PatronID string `json:"patron_id" doc:"6-digit patron ID"`
	}
}

// === Handlers ===

func (s *Server) handleBorrowBook(ctx context.Context, input *LoanInput) (*ReceiptOutput, error) {
	receipt, err := s.services.Circulation.BorrowBook(ctx, input.Body.PatronID, input.ID)
	if err != nil {
		return nil, err
	}
	return &ReceiptOutput{Body: receipt}, nil
}

func (s *Server) handleReturnBook(ctx context.Context, input *LoanInput) (*ReceiptOutput, error) {
	receipt, err := s.services.Circulation.ReturnBook(ctx, input.Body.PatronID, input.ID)
	if err != nil {
		return nil, err
	}
	return &ReceiptOutput{Body: receipt}, nil
}
