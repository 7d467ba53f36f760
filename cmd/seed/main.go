// Package main seeds the configured store with a sample catalog.
//
// Books go through CatalogService.AddBook, so they are validated and indexed
// exactly as API requests would be. Books whose ISBN already exists are skipped.
//
// Usage:
//
//	go run ./cmd/seed
//	go run ./cmd/seed --catalog my-books.yaml --db-path /tmp/circulation.db
package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/listenupapp/circulation/internal/config"
	domainerrors "github.com/listenupapp/circulation/internal/errors"
	"github.com/listenupapp/circulation/internal/logger"
	"github.com/listenupapp/circulation/internal/search"
	"github.com/listenupapp/circulation/internal/service"
	"github.com/listenupapp/circulation/internal/store"
	"github.com/listenupapp/circulation/internal/store/postgres"
	"github.com/listenupapp/circulation/internal/store/sqlite"
	"github.com/listenupapp/circulation/internal/validation"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// catalogFile is the YAML layout of a seed catalog.
type catalogFile struct {
	Books []struct {
		Title  string `yaml:"title"`
		Author string `yaml:"author"`
		ISBN   string `yaml:"isbn"`
		Copies int    `yaml:"copies"`
	} `yaml:"books"`
}

func main() {
	args, catalogPath := splitCatalogFlag(os.Args[1:])

	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	})

	data := defaultCatalog
	if catalogPath != "" {
		data, err = os.ReadFile(catalogPath)
		if err != nil {
			log.Fatalf("read catalog: %v", err)
		}
	}

	var catalog catalogFile
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		log.Fatalf("parse catalog: %v", err)
	}

	ctx := context.Background()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	var index service.Discoverer
	if cfg.Search.Enabled {
		idx, err := search.NewCatalogIndex(search.Options{DataPath: cfg.Search.Path, Logger: log.Logger})
		if err != nil {
			log.Fatalf("open search index: %v", err)
		}
		defer idx.Close()
		index = idx
	}

	svc := service.NewCatalogService(st, validation.New(), index, log.Logger)

	var added, skipped int
	for _, b := range catalog.Books {
		_, err := svc.AddBook(ctx, service.AddBookRequest{
			Title:       b.Title,
			Author:      b.Author,
			ISBN:        b.ISBN,
			TotalCopies: b.Copies,
		})
		switch {
		case err == nil:
			added++
		case errors.Is(err, domainerrors.ErrAlreadyExists):
			skipped++
		default:
			log.WithError(err).Error("Failed to add book", "title", b.Title, "isbn", b.ISBN)
		}
	}

	fmt.Printf("Seeded %d books (%d already present)\n", added, skipped)
}

// splitCatalogFlag pulls --catalog out of args so the rest can go to config.Load.
func splitCatalogFlag(args []string) (rest []string, catalog string) {
	for i := 0; i < len(args); i++ {
		switch a := args[i]; {
		case a == "--catalog" || a == "-catalog":
			if i+1 < len(args) {
				catalog = args[i+1]
				i++
			}
		default:
			if v, ok := strings.CutPrefix(a, "--catalog="); ok {
				catalog = v
				continue
			}
			rest = append(rest, a)
		}
	}
	return rest, catalog
}

func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.Store, error) {
	if cfg.Database.Driver == config.DriverPostgres {
		db, err := postgres.Open(ctx, postgres.Options{
			DSN:      cfg.Database.URL,
			MaxConns: int32(cfg.Database.MaxConns), //nolint:gosec // validated non-negative
			Logger:   log.Logger,
		})
		if err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := sqlite.Open(cfg.Database.Path, log.Logger)
	if err != nil {
		return nil, err
	}
	return db, nil
}
