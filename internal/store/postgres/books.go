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

type bookRow struct {
	ID              int64     `db:"id"`
	Title           string    `db:"title"`
	Author          string    `db:"author"`
	ISBN            string    `db:"isbn"`
	TotalCopies     int       `db:"total_copies"`
	AvailableCopies int       `db:"available_copies"`
	CreatedAt       time.Time `db:"created_at"`
}

func (r bookRow) toDomain() *domain.Book {
	return &domain.Book{
		ID:              r.ID,
		Title:           r.Title,
		Author:          r.Author,
		ISBN:            r.ISBN,
		TotalCopies:     r.TotalCopies,
		AvailableCopies: r.AvailableCopies,
		CreatedAt:       r.CreatedAt.UTC(),
	}
}

func selectBooks() *goqu.SelectDataset {
	return dialect.From(tableBooks).
		Select(colID, colTitle, colAuthor, colISBN, colTotalCopies, colAvailableCopies, colCreatedAt).
		Prepared(true)
}

func (q *queries) queryBooks(ctx context.Context, ds *goqu.SelectDataset) ([]*domain.Book, error) {
	query, args, err := toSQL(ds)
	if err != nil {
		return nil, err
	}

	rows, err := q.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[bookRow])
	if err != nil {
		return nil, err
	}

	books := make([]*domain.Book, 0, len(collected))
	for _, r := range collected {
		books = append(books, r.toDomain())
	}
	return books, nil
}

func (q *queries) getBookWhere(ctx context.Context, where goqu.Ex) (*domain.Book, error) {
	books, err := q.queryBooks(ctx, selectBooks().Where(where).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, store.ErrNotFound
	}
	return books[0], nil
}

// CreateBook inserts a new book and sets its ID.
// Returns store.ErrAlreadyExists if the ISBN is already cataloged.
func (q *queries) CreateBook(ctx context.Context, book *domain.Book) error {
	query, args, err := toSQL(dialect.Insert(tableBooks).
		Rows(goqu.Record{
			colTitle:           book.Title,
			colAuthor:          book.Author,
			colISBN:            book.ISBN,
			colTotalCopies:     book.TotalCopies,
			colAvailableCopies: book.AvailableCopies,
			colCreatedAt:       book.CreatedAt.UTC(),
		}).
		Returning(colID).
		Prepared(true))
	if err != nil {
		return err
	}

	if err := q.q.QueryRow(ctx, query, args...).Scan(&book.ID); err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return store.ErrAlreadyExists.WithCause(err)
		}
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// GetBook retrieves a book by ID.
func (q *queries) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	b, err := q.getBookWhere(ctx, goqu.Ex{colID: id})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("get book %d: %w", id, err)
	}
	return b, err
}

// GetBookByISBN retrieves a book by its exact ISBN.
func (q *queries) GetBookByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	b, err := q.getBookWhere(ctx, goqu.Ex{colISBN: isbn})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("get book by isbn: %w", err)
	}
	return b, err
}

// GetBooksByIDs returns the books with the given IDs, ordered by title.
func (q *queries) GetBooksByIDs(ctx context.Context, ids []int64) ([]*domain.Book, error) {
	if len(ids) == 0 {
		return []*domain.Book{}, nil
	}
	books, err := q.queryBooks(ctx, selectBooks().
		Where(goqu.C(colID).In(ids)).
		Order(goqu.C(colTitle).Asc(), goqu.C(colID).Asc()))
	if err != nil {
		return nil, fmt.Errorf("get books by ids: %w", err)
	}
	return books, nil
}

// ListBooks returns the whole catalog ordered by title.
func (q *queries) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	books, err := q.queryBooks(ctx, selectBooks().Order(goqu.C(colTitle).Asc(), goqu.C(colID).Asc()))
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// CountBooks returns the number of cataloged titles.
func (q *queries) CountBooks(ctx context.Context) (int, error) {
	query, args, err := toSQL(dialect.From(tableBooks).Select(goqu.COUNT(goqu.Star())).Prepared(true))
	if err != nil {
		return 0, err
	}
	var n int
	if err := q.q.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return n, nil
}

// availabilityUpdate builds the guarded availability statement. It only
// matches when the result stays within 0..total_copies.
func availabilityUpdate(bookID int64, delta int) (string, []any, error) {
	return toSQL(dialect.Update(tableBooks).
		Set(goqu.Record{colAvailableCopies: goqu.L(`"available_copies" + ?`, delta)}).
		Where(
			goqu.C(colID).Eq(bookID),
			goqu.L(`"available_copies" + ? BETWEEN 0 AND "total_copies"`, delta),
		).
		Prepared(true))
}

// UpdateBookAvailability adjusts available copies by delta.
func (q *queries) UpdateBookAvailability(ctx context.Context, bookID int64, delta int) error {
	query, args, err := availabilityUpdate(bookID, delta)
	if err != nil {
		return err
	}

	tag, err := q.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update availability: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := q.GetBook(ctx, bookID); err != nil {
		return err
	}
	return store.ErrInvariant
}
