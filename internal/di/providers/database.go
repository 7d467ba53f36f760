package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/listenupapp/circulation/internal/config"
	"github.com/listenupapp/circulation/internal/logger"
	"github.com/listenupapp/circulation/internal/store"
	"github.com/listenupapp/circulation/internal/store/postgres"
	"github.com/listenupapp/circulation/internal/store/sqlite"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the store selected by the database driver.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		db, err := postgres.Open(ctx, postgres.Options{
			DSN:      cfg.Database.URL,
			MaxConns: int32(cfg.Database.MaxConns), //nolint:gosec // validated non-negative, small
			Logger:   log.Logger,
		})
		if err != nil {
			return nil, err
		}
		return &StoreHandle{Store: db}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Database.Path, log.Logger)
		if err != nil {
			return nil, err
		}
		log.Info("Database initialized", "path", cfg.Database.Path)
		return &StoreHandle{Store: db}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}
