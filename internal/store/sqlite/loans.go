package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/listenupapp/circulation/internal/domain"
	"github.com/listenupapp/circulation/internal/store"
)

type recordRow struct {
	ID         int64          `db:"id"`
	PatronID   string         `db:"patron_id"`
	BookID     int64          `db:"book_id"`
	BorrowDate string         `db:"borrow_date"`
	DueDate    string         `db:"due_date"`
	ReturnDate sql.NullString `db:"return_date"`
}

func (r *recordRow) toDomain() (*domain.BorrowRecord, error) {
	rec := &domain.BorrowRecord{
		ID:       r.ID,
		PatronID: r.PatronID,
		BookID:   r.BookID,
	}

	var err error
	if rec.BorrowDate, err = parseTime(r.BorrowDate); err != nil {
		return nil, fmt.Errorf("parse borrow_date for record %d: %w", r.ID, err)
	}
	if rec.DueDate, err = parseTime(r.DueDate); err != nil {
		return nil, fmt.Errorf("parse due_date for record %d: %w", r.ID, err)
	}
	if rec.ReturnDate, err = parseNullableTime(r.ReturnDate); err != nil {
		return nil, fmt.Errorf("parse return_date for record %d: %w", r.ID, err)
	}
	return rec, nil
}

// loanRow is a borrow record joined with its book.
type loanRow struct {
	BookID     int64          `db:"book_id"`
	Title      string         `db:"title"`
	Author     string         `db:"author"`
	BorrowDate string         `db:"borrow_date"`
	DueDate    string         `db:"due_date"`
	ReturnDate sql.NullString `db:"return_date"`
}

func (r *loanRow) toHistory() (*domain.HistoryEntry, error) {
	h := &domain.HistoryEntry{
		BookID: r.BookID,
		Title:  r.Title,
		Author: r.Author,
	}

	var err error
	if h.BorrowDate, err = parseTime(r.BorrowDate); err != nil {
		return nil, fmt.Errorf("parse borrow_date: %w", err)
	}
	if h.DueDate, err = parseTime(r.DueDate); err != nil {
		return nil, fmt.Errorf("parse due_date: %w", err)
	}
	if h.ReturnDate, err = parseNullableTime(r.ReturnDate); err != nil {
		return nil, fmt.Errorf("parse return_date: %w", err)
	}
	return h, nil
}

// LockPatron is a no-op: transactions begin IMMEDIATE, so writers are
// already serialized by the database lock.
func (q *queries) LockPatron(context.Context, string) error {
	return nil
}

// CountActiveBorrows counts the patron's unreturned records.
func (q *queries) CountActiveBorrows(ctx context.Context, patronID string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q.q, &n,
		`SELECT COUNT(*) FROM borrow_records WHERE patron_id = ? AND return_date IS NULL`, patronID)
	if err != nil {
		return 0, fmt.Errorf("count active borrows: %w", err)
	}
	return n, nil
}

// GetActiveBorrow returns the patron's oldest unreturned record for the book.
func (q *queries) GetActiveBorrow(ctx context.Context, patronID string, bookID int64) (*domain.BorrowRecord, error) {
	var row recordRow
	err := sqlx.GetContext(ctx, q.q, &row, `
		SELECT id, patron_id, book_id, borrow_date, due_date, return_date
		FROM borrow_records
		WHERE patron_id = ? AND book_id = ? AND return_date IS NULL
		ORDER BY borrow_date, id
		LIMIT 1`, patronID, bookID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active borrow: %w", err)
	}
	return row.toDomain()
}

// CreateBorrowRecord inserts a borrow record and sets its ID.
func (q *queries) CreateBorrowRecord(ctx context.Context, record *domain.BorrowRecord) error {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO borrow_records (patron_id, book_id, borrow_date, due_date, return_date)
		VALUES (?, ?, ?, ?, ?)`,
		record.PatronID,
		record.BookID,
		formatTime(record.BorrowDate),
		formatTime(record.DueDate),
		nullTimeString(record.ReturnDate),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrNotFound.WithCause(err)
		}
		return fmt.Errorf("insert borrow record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("borrow record id: %w", err)
	}
	record.ID = id
	return nil
}

// SetReturnDate closes the patron's oldest unreturned record for the book.
func (q *queries) SetReturnDate(ctx context.Context, patronID string, bookID int64, returnedAt time.Time) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE borrow_records SET return_date = ?
		WHERE id = (
			SELECT id FROM borrow_records
			WHERE patron_id = ? AND book_id = ? AND return_date IS NULL
			ORDER BY borrow_date, id
			LIMIT 1
		)`,
		formatTime(returnedAt), patronID, bookID,
	)
	if err != nil {
		return fmt.Errorf("set return date: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set return date: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListActiveBorrows returns the patron's open loans, oldest due first, flagged
// overdue relative to now.
func (q *queries) ListActiveBorrows(ctx context.Context, patronID string, now time.Time) ([]*domain.ActiveBorrow, error) {
	var rows []loanRow
	err := sqlx.SelectContext(ctx, q.q, &rows, `
		SELECT br.book_id, b.title, b.author, br.borrow_date, br.due_date, br.return_date
		FROM borrow_records br
		JOIN books b ON b.id = br.book_id
		WHERE br.patron_id = ? AND br.return_date IS NULL
		ORDER BY br.due_date, br.id`, patronID)
	if err != nil {
		return nil, fmt.Errorf("list active borrows: %w", err)
	}

	active := make([]*domain.ActiveBorrow, 0, len(rows))
	for i := range rows {
		h, err := rows[i].toHistory()
		if err != nil {
			return nil, err
		}
		rec := &domain.BorrowRecord{BookID: h.BookID, PatronID: patronID, BorrowDate: h.BorrowDate, DueDate: h.DueDate}
		active = append(active, domain.NewActiveBorrow(rec, h.Title, h.Author, now))
	}
	return active, nil
}

// ListBorrowHistory returns every loan of the patron, newest borrow first.
func (q *queries) ListBorrowHistory(ctx context.Context, patronID string) ([]*domain.HistoryEntry, error) {
	var rows []loanRow
	err := sqlx.SelectContext(ctx, q.q, &rows, `
		SELECT br.book_id, b.title, b.author, br.borrow_date, br.due_date, br.return_date
		FROM borrow_records br
		JOIN books b ON b.id = br.book_id
		WHERE br.patron_id = ?
		ORDER BY br.borrow_date DESC, br.id DESC`, patronID)
	if err != nil {
		return nil, fmt.Errorf("list borrow history: %w", err)
	}

	history := make([]*domain.HistoryEntry, 0, len(rows))
	for i := range rows {
		h, err := rows[i].toHistory()
		if err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, nil
}

func isForeignKeyViolation(err error) bool {
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
