package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/listenupapp/circulation/internal/id"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Ledger key prefixes. The patron index uses inverted timestamps so forward
// iteration yields newest entries first.
const (
	txnPrefix          = "ledger:txn:"
	txnIdxPatronPrefix = "ledger:idx:patron:"
)

// maxConflictRetries bounds retries of a refund that raced another write.
const maxConflictRetries = 3

// Transaction is a ledger entry for one charge.
type Transaction struct {
	ID            string        `json:"id"`
	PatronID      string        `json:"patron_id"`
	AmountCents   int64         `json:"amount_cents"`
	RefundedCents int64         `json:"refunded_cents"`
	ChargedAt     time.Time     `json:"charged_at"`
	Refunds       []RefundEntry `json:"refunds,omitempty"`
}

// RefundEntry records one refund against a transaction.
type RefundEntry struct {
	ID          string    `json:"id"`
	AmountCents int64     `json:"amount_cents"`
	RefundedAt  time.Time `json:"refunded_at"`
}

// Amount is the charged amount in dollars.
func (t *Transaction) Amount() float64 { return float64(t.AmountCents) / 100 }

// Refunded is the refunded total in dollars.
func (t *Transaction) Refunded() float64 { return float64(t.RefundedCents) / 100 }

// LedgerOptions configures NewLedgerGateway.
type LedgerOptions struct {
	// Path is the Badger directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	Logger   *slog.Logger
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// LedgerGateway is a Gateway that settles every request against a local
// Badger ledger.
type LedgerGateway struct {
	db     *badger.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ Gateway = (*LedgerGateway)(nil)

// NewLedgerGateway opens (or creates) the ledger.
func NewLedgerGateway(opts LedgerOptions) (*LedgerGateway, error) {
	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts.SyncWrites = true
		bopts.CompactL0OnClose = true
	}
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger.Info("Payment ledger opened", "path", opts.Path, "in_memory", opts.InMemory)

	return &LedgerGateway{db: db, logger: logger, now: now}, nil
}

// Close closes the ledger database.
func (g *LedgerGateway) Close() error {
	return g.db.Close()
}

// Charge records a charge of amount dollars against the patron.
func (g *LedgerGateway) Charge(ctx context.Context, patronID string, amount float64) (*ChargeResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cents, ok := toCents(amount)
	if !ok {
		return declineCharge(ReasonInvalidAmount), nil
	}

	txnID, err := id.Generate(id.PrefixTransaction)
	if err != nil {
		return nil, err
	}

	txn := &Transaction{
		ID:          txnID,
		PatronID:    patronID,
		AmountCents: cents,
		ChargedAt:   g.now().UTC(),
	}
	data, err := json.Marshal(txn)
	if err != nil {
		return nil, fmt.Errorf("marshaling transaction: %w", err)
	}

	err = g.db.Update(func(btx *badger.Txn) error {
		if err := btx.Set([]byte(txnPrefix+txn.ID), data); err != nil {
			return err
		}
		return btx.Set(patronIndexKey(patronID, txn.ChargedAt, txn.ID), []byte{})
	})
	if err != nil {
		return nil, fmt.Errorf("recording charge: %w", err)
	}

	g.logger.Debug("charge recorded", "transaction_id", txn.ID, "patron_id", patronID, "amount_cents", cents)

	return &ChargeResponse{Status: StatusSuccess, TransactionID: txn.ID}, nil
}

// Refund returns amount dollars of an earlier charge.
func (g *LedgerGateway) Refund(ctx context.Context, transactionID string, amount float64) (*RefundResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cents, ok := toCents(amount)
	if transactionID == "" || !ok {
		return declineRefund(ReasonInvalidRefund), nil
	}

	var (
		resp *RefundResponse
		err  error
	)
	for range maxConflictRetries {
		resp, err = g.refundOnce(transactionID, cents)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("recording refund: %w", err)
	}

	if resp.Succeeded() {
		g.logger.Debug("refund recorded", "transaction_id", transactionID, "refund_id", resp.RefundID, "amount_cents", cents)
	}
	return resp, nil
}

func (g *LedgerGateway) refundOnce(transactionID string, cents int64) (*RefundResponse, error) {
	var resp *RefundResponse

	err := g.db.Update(func(btx *badger.Txn) error {
		txn, err := getTransaction(btx, transactionID)
		if errors.Is(err, badger.ErrKeyNotFound) {
			resp = declineRefund(ReasonUnknownTransaction)
			return nil
		}
		if err != nil {
			return err
		}

		if txn.RefundedCents+cents > txn.AmountCents {
			resp = declineRefund(ReasonRefundExceedsCharge)
			return nil
		}

		entry := RefundEntry{
			ID:          "rf-" + uuid.NewString(),
			AmountCents: cents,
			RefundedAt:  g.now().UTC(),
		}
		txn.Refunds = append(txn.Refunds, entry)
		txn.RefundedCents += cents

		data, err := json.Marshal(txn)
		if err != nil {
			return fmt.Errorf("marshaling transaction: %w", err)
		}
		if err := btx.Set([]byte(txnPrefix+txn.ID), data); err != nil {
			return err
		}

		resp = &RefundResponse{
			Status:   StatusRefunded,
			RefundID: entry.ID,
			Amount:   float64(cents) / 100,
		}
		return nil
	})
	return resp, err
}

// Transaction returns a single ledger entry.
func (g *LedgerGateway) Transaction(ctx context.Context, transactionID string) (*Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var txn *Transaction
	err := g.db.View(func(btx *badger.Txn) error {
		var err error
		txn, err = getTransaction(btx, transactionID)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ErrTransactionNotFound is returned by Transaction for unknown IDs.
var ErrTransactionNotFound = errors.New("transaction not found")

// Transactions lists the patron's charges, newest first.
func (g *LedgerGateway) Transactions(ctx context.Context, patronID string) ([]*Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(txnIdxPatronPrefix + patronID + ":")
	txns := make([]*Transaction, 0)

	err := g.db.View(func(btx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := btx.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			txnID := transactionIDFromIndexKey(string(it.Item().Key()), len(prefix))
			if txnID == "" {
				continue
			}

			txn, err := getTransaction(btx, txnID)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			txns = append(txns, txn)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return txns, nil
}

func getTransaction(btx *badger.Txn, transactionID string) (*Transaction, error) {
	item, err := btx.Get([]byte(txnPrefix + transactionID))
	if err != nil {
		return nil, err
	}

	var txn Transaction
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &txn)
	}); err != nil {
		return nil, fmt.Errorf("decoding transaction %s: %w", transactionID, err)
	}
	return &txn, nil
}

// toCents converts a positive, finite dollar amount to cents.
func toCents(amount float64) (int64, bool) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, false
	}
	cents := int64(math.Round(amount * 100))
	if cents <= 0 {
		return 0, false
	}
	return cents, true
}

// invertedTimestamp sorts descending under forward iteration.
func invertedTimestamp(t time.Time) string {
	return fmt.Sprintf("%019d", math.MaxInt64-t.UnixNano())
}

// patronIndexKey has the form ledger:idx:patron:{patronID}:{inverted_ts}:{txnID}.
func patronIndexKey(patronID string, at time.Time, txnID string) []byte {
	return []byte(txnIdxPatronPrefix + patronID + ":" + invertedTimestamp(at) + ":" + txnID)
}

func transactionIDFromIndexKey(key string, prefixLen int) string {
	// 19 digit timestamp plus separator.
	if len(key) <= prefixLen+20 {
		return ""
	}
	return key[prefixLen+20:]
}
