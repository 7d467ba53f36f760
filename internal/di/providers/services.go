package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/circulation/internal/logger"
	"github.com/listenupapp/circulation/internal/service"
	"github.com/listenupapp/circulation/internal/validation"
)

// ProvideValidator provides the request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideCatalogService provides the catalog service.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCatalogService(storeHandle.Store, v, searchHandle.Discoverer(), log.Logger), nil
}

// ProvideCirculationService provides the borrow and return service.
func ProvideCirculationService(i do.Injector) (*service.CirculationService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCirculationService(storeHandle.Store, v, log.Logger), nil
}

// ProvideFeeService provides the late fee service.
func ProvideFeeService(i do.Injector) (*service.FeeService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewFeeService(storeHandle.Store, log.Logger), nil
}

// ProvideReportService provides the patron report service.
func ProvideReportService(i do.Injector) (*service.ReportService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewReportService(storeHandle.Store, log.Logger), nil
}

// ProvidePaymentService provides the payment service, charging through the ledger.
func ProvidePaymentService(i do.Injector) (*service.PaymentService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	fees := do.MustInvoke[*service.FeeService](i)
	ledger := do.MustInvoke[*LedgerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewPaymentService(storeHandle.Store, fees, ledger.LedgerGateway, log.Logger), nil
}
