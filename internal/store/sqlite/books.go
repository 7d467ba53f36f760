package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/listenupapp/circulation/internal/domain"
	"github.com/listenupapp/circulation/internal/store"
)

const bookColumns = `id, title, author, isbn, total_copies, available_copies, created_at`

type bookRow struct {
	ID              int64  `db:"id"`
	Title           string `db:"title"`
	Author          string `db:"author"`
	ISBN            string `db:"isbn"`
	TotalCopies     int    `db:"total_copies"`
	AvailableCopies int    `db:"available_copies"`
	CreatedAt       string `db:"created_at"`
}

func (r *bookRow) toDomain() (*domain.Book, error) {
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for book %d: %w", r.ID, err)
	}
	return &domain.Book{
		ID:              r.ID,
		Title:           r.Title,
		Author:          r.Author,
		ISBN:            r.ISBN,
		TotalCopies:     r.TotalCopies,
		AvailableCopies: r.AvailableCopies,
		CreatedAt:       createdAt,
	}, nil
}

func booksFromRows(rows []bookRow) ([]*domain.Book, error) {
	books := make([]*domain.Book, 0, len(rows))
	for i := range rows {
		b, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, nil
}

// CreateBook inserts a new book and sets its ID.
// Returns store.ErrAlreadyExists if the ISBN is already cataloged.
func (q *queries) CreateBook(ctx context.Context, book *domain.Book) error {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO books (title, author, isbn, total_copies, available_copies, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		book.Title,
		book.Author,
		book.ISBN,
		book.TotalCopies,
		book.AvailableCopies,
		formatTime(book.CreatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists.WithCause(err)
		}
		return fmt.Errorf("insert book: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("book id: %w", err)
	}
	book.ID = id
	return nil
}

// GetBook retrieves a book by ID.
func (q *queries) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	var row bookRow
	err := sqlx.GetContext(ctx, q.q, &row, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book %d: %w", id, err)
	}
	return row.toDomain()
}

// GetBookByISBN retrieves a book by its exact ISBN.
func (q *queries) GetBookByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	var row bookRow
	err := sqlx.GetContext(ctx, q.q, &row, `SELECT `+bookColumns+` FROM books WHERE isbn = ?`, isbn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book by isbn: %w", err)
	}
	return row.toDomain()
}

// GetBooksByIDs returns the books with the given IDs, ordered by title.
// Unknown IDs are skipped.
func (q *queries) GetBooksByIDs(ctx context.Context, ids []int64) ([]*domain.Book, error) {
	if len(ids) == 0 {
		return []*domain.Book{}, nil
	}

	query, args, err := sqlx.In(`SELECT `+bookColumns+` FROM books WHERE id IN (?) ORDER BY title, id`, ids)
	if err != nil {
		return nil, fmt.Errorf("build books by ids: %w", err)
	}

	var rows []bookRow
	if err := sqlx.SelectContext(ctx, q.q, &rows, q.q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get books by ids: %w", err)
	}
	return booksFromRows(rows)
}

// ListBooks returns the whole catalog ordered by title.
func (q *queries) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	var rows []bookRow
	if err := sqlx.SelectContext(ctx, q.q, &rows, `SELECT `+bookColumns+` FROM books ORDER BY title, id`); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return booksFromRows(rows)
}

// CountBooks returns the number of cataloged titles.
func (q *queries) CountBooks(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, q.q, &n, `SELECT COUNT(*) FROM books`); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return n, nil
}

// UpdateBookAvailability adjusts available copies by delta, refusing any change
// that would leave the 0..total_copies range.
func (q *queries) UpdateBookAvailability(ctx context.Context, bookID int64, delta int) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE books SET available_copies = available_copies + ?
		WHERE id = ? AND available_copies + ? BETWEEN 0 AND total_copies`,
		delta, bookID, delta,
	)
	if err != nil {
		return fmt.Errorf("update availability: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update availability: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = sqlx.GetContext(ctx, q.q, &exists, `SELECT 1 FROM books WHERE id = ?`, bookID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update availability: %w", err)
	}
	return store.ErrInvariant
}
