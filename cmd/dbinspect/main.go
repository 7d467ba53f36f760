// Package main prints the catalog and, optionally, one patron's loans and
// payments from the configured store.
//
// Stop the API server first: the payment ledger takes an exclusive lock.
//
// Usage:
//
//	go run ./cmd/dbinspect
//	go run ./cmd/dbinspect --patron 123456 --db-path /tmp/circulation.db
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/listenupapp/circulation/internal/config"
	"github.com/listenupapp/circulation/internal/domain"
	"github.com/listenupapp/circulation/internal/logger"
	"github.com/listenupapp/circulation/internal/payment"
	"github.com/listenupapp/circulation/internal/service"
	"github.com/listenupapp/circulation/internal/store"
	"github.com/listenupapp/circulation/internal/store/postgres"
	"github.com/listenupapp/circulation/internal/store/sqlite"
)

func main() {
	args, patronID := splitPatronFlag(os.Args[1:])

	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	})

	ctx := context.Background()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	fmt.Println("=== Catalog ===")
	fmt.Println()

	books, err := st.ListBooks(ctx)
	if err != nil {
		log.Fatalf("list books: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tISBN\tAVAILABLE\tTITLE\tAUTHOR")
	for _, b := range books {
		fmt.Fprintf(w, "%d\t%s\t%d/%d\t%s\t%s\n", b.ID, b.ISBN, b.AvailableCopies, b.TotalCopies, b.Title, b.Author)
	}
	w.Flush()
	fmt.Printf("\n%d books\n", len(books))

	if patronID == "" {
		return
	}

	fmt.Printf("\n=== Patron %s ===\n\n", patronID)

	report, err := service.NewReportService(st, log.Logger).PatronStatus(ctx, patronID)
	if err != nil {
		log.Fatalf("patron status: %v", err)
	}
	if report.Error != "" {
		log.Fatal(report.Error, "patron_id", patronID)
	}
	printReport(report)

	ledger, err := payment.NewLedgerGateway(payment.LedgerOptions{Path: cfg.Payment.LedgerPath, Logger: log.Logger})
	if err != nil {
		log.Warn("Payment ledger unavailable", "path", cfg.Payment.LedgerPath, "error", err)
		return
	}
	defer ledger.Close()

	txns, err := ledger.Transactions(ctx, patronID)
	if err != nil {
		log.Fatalf("list payments: %v", err)
	}
	printPayments(txns)
}

func printReport(r *domain.PatronReport) {
	fmt.Printf("Open loans: %d  Late fees owed: %.2f\n\n", r.TotalBorrowed, r.TotalLateFees)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BOOK\tBORROWED\tDUE\tRETURNED\tTITLE")
	for _, h := range r.BorrowingHistory {
		returned := "-"
		if h.ReturnDate != nil {
			returned = h.ReturnDate.Format(time.DateOnly)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			h.BookID, h.BorrowDate.Format(time.DateOnly), h.DueDate.Format(time.DateOnly), returned, h.Title)
	}
	w.Flush()
}

func printPayments(txns []*payment.Transaction) {
	fmt.Printf("\nPayments: %d\n\n", len(txns))
	if len(txns) == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TRANSACTION\tCHARGED\tAMOUNT\tREFUNDED")
	for _, t := range txns {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\n", t.ID, t.ChargedAt.Format(time.RFC3339), t.Amount(), t.Refunded())
	}
	w.Flush()
}

// splitPatronFlag pulls --patron out of args so the rest can go to config.Load.
func splitPatronFlag(args []string) (rest []string, patronID string) {
	for i := 0; i < len(args); i++ {
		switch a := args[i]; {
		case a == "--patron" || a == "-patron":
			if i+1 < len(args) {
				patronID = args[i+1]
				i++
			}
		default:
			if v, ok := strings.CutPrefix(a, "--patron="); ok {
				patronID = v
				continue
			}
			rest = append(rest, a)
		}
	}
	return rest, patronID
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
