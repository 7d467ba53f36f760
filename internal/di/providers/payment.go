package providers

import (
	"time"

	"github.com/samber/do/v2"

	"github.com/listenupapp/circulation/internal/api"
	"github.com/listenupapp/circulation/internal/config"
	"github.com/listenupapp/circulation/internal/logger"
	"github.com/listenupapp/circulation/internal/payment"
)

// LedgerHandle wraps the payment ledger with shutdown capability.
type LedgerHandle struct {
	*payment.LedgerGateway
}

// Shutdown implements do.Shutdownable.
func (h *LedgerHandle) Shutdown() error {
	return h.Close()
}

// ProvideLedger provides the Badger-backed payment gateway.
func ProvideLedger(i do.Injector) (*LedgerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	ledger, err := payment.NewLedgerGateway(payment.LedgerOptions{
		Path:   cfg.Payment.LedgerPath,
		Logger: log.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &LedgerHandle{LedgerGateway: ledger}, nil
}

// RateLimiterHandle wraps the payment rate limiter. Limiter is nil when
// rate limiting is disabled.
type RateLimiterHandle struct {
	Limiter *api.RateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	if h.Limiter != nil {
		h.Limiter.Stop()
	}
	return nil
}

// ProvidePaymentRateLimiter provides the per-IP limiter for payment routes.
func ProvidePaymentRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Payment.RateLimitEnable {
		log.Warn("Payment rate limiting disabled")
		return &RateLimiterHandle{}, nil
	}

	log.Info("Payment rate limiting enabled",
		"per_minute", cfg.Payment.RatePerMinute,
		"burst", cfg.Payment.RateBurst,
	)

	return &RateLimiterHandle{
		Limiter: api.NewRateLimiter(cfg.Payment.RatePerMinute, time.Minute, cfg.Payment.RateBurst),
	}, nil
}
