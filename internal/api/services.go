package api

import "github.com/listenupapp/circulation/internal/service"

// SearchHealth reports the state of the catalog search index.
type SearchHealth interface {
	DocumentCount() (uint64, error)
}

// Services groups the services the HTTP handlers call.
type Services struct {
	Catalog     *service.CatalogService
	Circulation *service.CirculationService
	Fees        *service.FeeService
	Reports     *service.ReportService
	Payments    *service.PaymentService
	// Search is nil when the index is disabled.
	Search SearchHealth
}
