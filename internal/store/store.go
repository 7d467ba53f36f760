// Package store defines the persistence interface for the circulation server.
package store

import (
	"context"
	"time"

	"github.com/listenupapp/circulation/internal/domain"
)

// Circulation is the set of operations a borrow or return performs. Inside
// Store.WithTx they all run in one transaction.
type Circulation interface {
	// LockPatron serializes the patron's borrows and returns until the
	// enclosing transaction ends.
	LockPatron(ctx context.Context, patronID string) error

	// GetBook returns ErrNotFound when no book has the id.
	GetBook(ctx context.Context, id int64) (*domain.Book, error)

	// UpdateBookAvailability adds delta to a book's available copies. It returns
	// ErrInvariant when the result would leave 0..total_copies, and ErrNotFound
	// when the book does not exist.
	UpdateBookAvailability(ctx context.Context, bookID int64, delta int) error

	// CountActiveBorrows counts the patron's unreturned records.
	CountActiveBorrows(ctx context.Context, patronID string) (int, error)

	// GetActiveBorrow returns the patron's oldest unreturned record for a book,
	// or ErrNotFound.
	GetActiveBorrow(ctx context.Context, patronID string, bookID int64) (*domain.BorrowRecord, error)

	// CreateBorrowRecord inserts a record and sets its ID.
	CreateBorrowRecord(ctx context.Context, record *domain.BorrowRecord) error

	// SetReturnDate closes the patron's oldest unreturned record for a book.
	// Returns ErrNotFound when there is none.
	SetReturnDate(ctx context.Context, patronID string, bookID int64, returnedAt time.Time) error
}

// Store defines the interface for all persistence operations.
type Store interface {
	Circulation

	// Lifecycle
	Close() error
	Ping(ctx context.Context) error

	// Catalog
	GetBookByISBN(ctx context.Context, isbn string) (*domain.Book, error)
	GetBooksByIDs(ctx context.Context, ids []int64) ([]*domain.Book, error)
	ListBooks(ctx context.Context) ([]*domain.Book, error)
	CountBooks(ctx context.Context) (int, error)
	// CreateBook inserts a book and sets its ID. A duplicate ISBN yields ErrAlreadyExists.
	CreateBook(ctx context.Context, book *domain.Book) error

	// Patron reads
	ListActiveBorrows(ctx context.Context, patronID string, now time.Time) ([]*domain.ActiveBorrow, error)
	ListBorrowHistory(ctx context.Context, patronID string) ([]*domain.HistoryEntry, error)

	// WithTx runs fn inside a transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Circulation) error) error
}
