package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"

	"github.com/listenupapp/circulation/internal/domain"
	"github.com/listenupapp/circulation/internal/store"
)

type recordRow struct {
	ID         int64      `db:"id"`
	PatronID   string     `db:"patron_id"`
	BookID     int64      `db:"book_id"`
	BorrowDate time.Time  `db:"borrow_date"`
	DueDate    time.Time  `db:"due_date"`
	ReturnDate *time.Time `db:"return_date"`
}

func (r recordRow) toDomain() *domain.BorrowRecord {
	return &domain.BorrowRecord{
		ID:         r.ID,
		PatronID:   r.PatronID,
		BookID:     r.BookID,
		BorrowDate: r.BorrowDate.UTC(),
		DueDate:    r.DueDate.UTC(),
		ReturnDate: utcPtr(r.ReturnDate),
	}
}

type loanRow struct {
	BookID     int64      `db:"book_id"`
	Title      string     `db:"title"`
	Author     string     `db:"author"`
	BorrowDate time.Time  `db:"borrow_date"`
	DueDate    time.Time  `db:"due_date"`
	ReturnDate *time.Time `db:"return_date"`
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func openRecords(patronID string, bookID int64) goqu.Ex {
	return goqu.Ex{
		colPatronID:   patronID,
		colBookID:     bookID,
		colReturnDate: nil,
	}
}

// LockPatron takes a transaction-scoped advisory lock keyed by the patron ID.
// Outside a transaction the lock is released as soon as it is taken.
func (q *queries) LockPatron(ctx context.Context, patronID string) error {
	query, args, err := patronLock(patronID)
	if err != nil {
		return err
	}
	if _, err := q.q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("lock patron: %w", err)
	}
	return nil
}

func patronLock(patronID string) (string, []any, error) {
	return toSQL(dialect.Select(
		goqu.Func("pg_advisory_xact_lock", goqu.Func("hashtext", patronID)),
	).Prepared(true))
}

// CountActiveBorrows counts the patron's unreturned records.
func (q *queries) CountActiveBorrows(ctx context.Context, patronID string) (int, error) {
	query, args, err := toSQL(dialect.From(tableRecords).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.Ex{colPatronID: patronID, colReturnDate: nil}).
		Prepared(true))
	if err != nil {
		return 0, err
	}
	var n int
	if err := q.q.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active borrows: %w", err)
	}
	return n, nil
}

// GetActiveBorrow returns the patron's oldest unreturned record for the book.
func (q *queries) GetActiveBorrow(ctx context.Context, patronID string, bookID int64) (*domain.BorrowRecord, error) {
	query, args, err := toSQL(dialect.From(tableRecords).
		Select(colID, colPatronID, colBookID, colBorrowDate, colDueDate, colReturnDate).
		Where(openRecords(patronID, bookID)).
		Order(goqu.C(colBorrowDate).Asc(), goqu.C(colID).Asc()).
		Limit(1).
		Prepared(true))
	if err != nil {
		return nil, err
	}

	rows, err := q.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get active borrow: %w", err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[recordRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active borrow: %w", err)
	}
	return row.toDomain(), nil
}

// CreateBorrowRecord inserts a borrow record and sets its ID.
func (q *queries) CreateBorrowRecord(ctx context.Context, record *domain.BorrowRecord) error {
	rec := goqu.Record{
		colPatronID:   record.PatronID,
		colBookID:     record.BookID,
		colBorrowDate: record.BorrowDate.UTC(),
		colDueDate:    record.DueDate.UTC(),
	}
	if record.ReturnDate != nil {
		rec[colReturnDate] = record.ReturnDate.UTC()
	}

	query, args, err := toSQL(dialect.Insert(tableRecords).Rows(rec).Returning(colID).Prepared(true))
	if err != nil {
		return err
	}

	if err := q.q.QueryRow(ctx, query, args...).Scan(&record.ID); err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return store.ErrNotFound.WithCause(err)
		}
		return fmt.Errorf("insert borrow record: %w", err)
	}
	return nil
}

// returnUpdate closes the oldest open record for the pair. The outer
// return_date check is re-evaluated after a concurrent update, so a record is
// closed at most once.
func returnUpdate(patronID string, bookID int64, returnedAt time.Time) (string, []any, error) {
	oldest := dialect.From(tableRecords).
		Select(colID).
		Where(openRecords(patronID, bookID)).
		Order(goqu.C(colBorrowDate).Asc(), goqu.C(colID).Asc()).
		Limit(1)

	return toSQL(dialect.Update(tableRecords).
		Set(goqu.Record{colReturnDate: returnedAt.UTC()}).
		Where(
			goqu.C(colID).Eq(oldest),
			goqu.C(colReturnDate).IsNull(),
		).
		Prepared(true))
}

// SetReturnDate closes the patron's oldest unreturned record for the book.
func (q *queries) SetReturnDate(ctx context.Context, patronID string, bookID int64, returnedAt time.Time) error {
	query, args, err := returnUpdate(patronID, bookID, returnedAt)
	if err != nil {
		return err
	}

	tag, err := q.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set return date: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func selectLoans(patronID string) *goqu.SelectDataset {
	return dialect.From(goqu.T(tableRecords).As("br")).
		Join(goqu.T(tableBooks).As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("br.book_id")))).
		Select(
			goqu.I("br.book_id"),
			goqu.I("b.title"),
			goqu.I("b.author"),
			goqu.I("br.borrow_date"),
			goqu.I("br.due_date"),
			goqu.I("br.return_date"),
		).
		Where(goqu.I("br.patron_id").Eq(patronID)).
		Prepared(true)
}

func (q *queries) queryLoans(ctx context.Context, ds *goqu.SelectDataset) ([]loanRow, error) {
	query, args, err := toSQL(ds)
	if err != nil {
		return nil, err
	}
	rows, err := q.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[loanRow])
}

// ListActiveBorrows returns the patron's open loans, oldest due first.
func (q *queries) ListActiveBorrows(ctx context.Context, patronID string, now time.Time) ([]*domain.ActiveBorrow, error) {
	rows, err := q.queryLoans(ctx, selectLoans(patronID).
		Where(goqu.I("br.return_date").IsNull()).
		Order(goqu.I("br.due_date").Asc(), goqu.I("br.id").Asc()))
	if err != nil {
		return nil, fmt.Errorf("list active borrows: %w", err)
	}

	active := make([]*domain.ActiveBorrow, 0, len(rows))
	for _, r := range rows {
		rec := &domain.BorrowRecord{
			PatronID:   patronID,
			BookID:     r.BookID,
			BorrowDate: r.BorrowDate.UTC(),
			DueDate:    r.DueDate.UTC(),
		}
		active = append(active, domain.NewActiveBorrow(rec, r.Title, r.Author, now))
	}
	return active, nil
}

// ListBorrowHistory returns every loan of the patron, newest borrow first.
func (q *queries) ListBorrowHistory(ctx context.Context, patronID string) ([]*domain.HistoryEntry, error) {
	rows, err := q.queryLoans(ctx, selectLoans(patronID).
		Order(goqu.I("br.borrow_date").Desc(), goqu.I("br.id").Desc()))
	if err != nil {
		return nil, fmt.Errorf("list borrow history: %w", err)
	}

	history := make([]*domain.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		history = append(history, &domain.HistoryEntry{
			BookID:     r.BookID,
			Title:      r.Title,
			Author:     r.Author,
			BorrowDate: r.BorrowDate.UTC(),
			DueDate:    r.DueDate.UTC(),
			ReturnDate: utcPtr(r.ReturnDate),
		})
	}
	return history, nil
}
