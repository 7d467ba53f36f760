package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/circulation/internal/domain"
	domainerrors "github.com/listenupapp/circulation/internal/errors"
	"github.com/listenupapp/circulation/internal/service"
)

func (s *Server) registerPatronRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getPatronStatus",
		Method:      http.MethodGet,
		Path:        "/api/v1/patrons/{patronID}/status",
		Summary:     "Patron status",
		Description: "Returns open loans, late fees owed and the full loan history of a patron",
		Tags:        []string{"Patrons"},
	}, s.handlePatronStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "getLateFee",
		Method:      http.MethodGet,
		Path:        "/api/v1/patrons/{patronID}/books/{bookID}/late-fee",
		Summary:     "Late fee",
		Description: "Calculates the current late fee on a patron's open loan of a book",
		Tags:        []string{"Patrons"},
	}, s.handleLateFee)
}

// === DTOs ===

// PatronInput identifies a patron by path.
type PatronInput struct {
	PatronID string `path:"patronID" doc:"6-digit patron ID"`
}

// PatronBookInput identifies a patron's loan of a book.
type PatronBookInput struct {
	PatronID string `path:"patronID" doc:"6-digit patron ID"`
	BookID   int64  `path:"bookID" doc:"Book ID"`
}

// PatronStatusOutput wraps a patron report. A malformed patron ID still
// returns the report shape, with error set and status 400.
type PatronStatusOutput struct {
	Status int
	Body   *domain.PatronReport
}

// LateFeeOutput wraps a late fee calculation. Lookup failures keep the fee
// shape, with the reason in status and a 400 or 404 response status.
type LateFeeOutput struct {
	Status int
	Body   domain.LateFee
}

// === Handlers ===

func (s *Server) handlePatronStatus(ctx context.Context, input *PatronInput) (*PatronStatusOutput, error) {
	report, err := s.services.Reports.PatronStatus(ctx, input.PatronID)
	if err != nil {
		return nil, err
	}
	out := &PatronStatusOutput{Status: http.StatusOK, Body: report}
	if report.Error != "" {
		out.Status = domainerrors.Validation(report.Error).HTTPStatus()
	}
	return out, nil
}

func (s *Server) handleLateFee(ctx context.Context, input *PatronBookInput) (*LateFeeOutput, error) {
	fee, err := s.services.Fees.CalculateLateFee(ctx, input.PatronID, input.BookID)
	if err != nil {
		return nil, err
	}
	out := &LateFeeOutput{Status: http.StatusOK, Body: fee}
	var problem *domainerrors.Error
	if errors.As(service.LateFeeProblem(fee), &problem) {
		out.Status = problem.HTTPStatus()
	}
	return out, nil
}
