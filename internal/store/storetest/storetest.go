// Package storetest provides a conformance suite run against every store.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/circulation/internal/domain"
	"github.com/listenupapp/circulation/internal/store"
)

// Factory returns an empty store. It registers its own cleanup.
type Factory func(t *testing.T) store.Store

// Run exercises the full store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("CreateAndGetBook", func(t *testing.T) { testCreateAndGetBook(t, newStore(t)) })
	t.Run("DuplicateISBN", func(t *testing.T) { testDuplicateISBN(t, newStore(t)) })
	t.Run("BookNotFound", func(t *testing.T) { testBookNotFound(t, newStore(t)) })
	t.Run("ListBooksOrderedByTitle", func(t *testing.T) { testListBooksOrdered(t, newStore(t)) })
	t.Run("GetBooksByIDs", func(t *testing.T) { testGetBooksByIDs(t, newStore(t)) })
	t.Run("AvailabilityBounds", func(t *testing.T) { testAvailabilityBounds(t, newStore(t)) })
	t.Run("BorrowLifecycle", func(t *testing.T) { testBorrowLifecycle(t, newStore(t)) })
	t.Run("ReturnClosesOldestRecord", func(t *testing.T) { testReturnClosesOldest(t, newStore(t)) })
	t.Run("ActiveBorrowsFlagOverdue", func(t *testing.T) { testActiveBorrowsOverdue(t, newStore(t)) })
	t.Run("HistoryNewestFirst", func(t *testing.T) { testHistoryNewestFirst(t, newStore(t)) })
	t.Run("WithTxCommits", func(t *testing.T) { testWithTxCommits(t, newStore(t)) })
	t.Run("WithTxRollsBack", func(t *testing.T) { testWithTxRollsBack(t, newStore(t)) })
	t.Run("ConcurrentReturnsCloseOnce", func(t *testing.T) { testConcurrentReturnsCloseOnce(t, newStore(t)) })
	t.Run("ConcurrentBorrowsRespectLimit", func(t *testing.T) { testConcurrentBorrowsRespectLimit(t, newStore(t)) })
}

// baseTime is truncated to microseconds so every backend round-trips it exactly.
var baseTime = time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)

// AddBook inserts a book with the given ISBN and copies, failing the test on error.
func AddBook(t *testing.T, s store.Store, title, isbn string, copies int) *domain.Book {
	t.Helper()
	b := &domain.Book{
		Title:           title,
		Author:          "Author of " + title,
		ISBN:            isbn,
		TotalCopies:     copies,
		AvailableCopies: copies,
		CreatedAt:       baseTime,
	}
	require.NoError(t, s.CreateBook(context.Background(), b))
	return b
}

func borrow(t *testing.T, s store.Store, patronID string, bookID int64, at time.Time) *domain.BorrowRecord {
	t.Helper()
	rec := domain.NewBorrowRecord(patronID, bookID, at)
	require.NoError(t, s.CreateBorrowRecord(context.Background(), rec))
	return rec
}

func testCreateAndGetBook(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := AddBook(t, s, "The Great Gatsby", "9780743273565", 3)
	require.NotZero(t, b.ID)

	got, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Great Gatsby", got.Title)
	assert.Equal(t, "Author of The Great Gatsby", got.Author)
	assert.Equal(t, "9780743273565", got.ISBN)
	assert.Equal(t, 3, got.TotalCopies)
	assert.Equal(t, 3, got.AvailableCopies)
	assert.True(t, baseTime.Equal(got.CreatedAt))

	byISBN, err := s.GetBookByISBN(ctx, "9780743273565")
	require.NoError(t, err)
	assert.Equal(t, b.ID, byISBN.ID)

	n, err := s.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testDuplicateISBN(t *testing.T, s store.Store) {
	AddBook(t, s, "First", "9780000000001", 1)

	dup := &domain.Book{
		Title:           "Second",
		Author:          "Someone",
		ISBN:            "9780000000001",
		TotalCopies:     1,
		AvailableCopies: 1,
		CreatedAt:       baseTime,
	}
	err := s.CreateBook(context.Background(), dup)
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func testBookNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetBook(ctx, 4242)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetBook(ctx, -1)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetBookByISBN(ctx, "0000000000000")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testListBooksOrdered(t *testing.T, s store.Store) {
	AddBook(t, s, "To Kill a Mockingbird", "9780061120084", 2)
	AddBook(t, s, "1984", "9780451524935", 1)
	AddBook(t, s, "Moby Dick", "9781503280786", 1)

	books, err := s.ListBooks(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, "1984", books[0].Title)
	assert.Equal(t, "Moby Dick", books[1].Title)
	assert.Equal(t, "To Kill a Mockingbird", books[2].Title)
}

func testGetBooksByIDs(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := AddBook(t, s, "Beta", "9780000000002", 1)
	b := AddBook(t, s, "Alpha", "9780000000003", 1)

	books, err := s.GetBooksByIDs(ctx, []int64{a.ID, b.ID, 99999})
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Alpha", books[0].Title)

	empty, err := s.GetBooksByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testAvailabilityBounds(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := AddBook(t, s, "Dune", "9780441172719", 1)

	assert.ErrorIs(t, s.UpdateBookAvailability(ctx, b.ID, 1), store.ErrInvariant)

	require.NoError(t, s.UpdateBookAvailability(ctx, b.ID, -1))
	got, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableCopies)

	assert.ErrorIs(t, s.UpdateBookAvailability(ctx, b.ID, -1), store.ErrInvariant)
	assert.ErrorIs(t, s.UpdateBookAvailability(ctx, 99999, -1), store.ErrNotFound)

	require.NoError(t, s.UpdateBookAvailability(ctx, b.ID, 1))
	got, err = s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)
}

func testBorrowLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := AddBook(t, s, "Emma", "9780141439587", 2)

	rec := borrow(t, s, "123456", b.ID, baseTime)
	require.NotZero(t, rec.ID)

	n, err := s.CountActiveBorrows(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	open, err := s.GetActiveBorrow(ctx, "123456", b.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, open.ID)
	assert.True(t, rec.DueDate.Equal(open.DueDate))
	assert.Nil(t, open.ReturnDate)

	_, err = s.GetActiveBorrow(ctx, "654321", b.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.SetReturnDate(ctx, "123456", b.ID, baseTime.Add(time.Hour)))

	n, err = s.CountActiveBorrows(ctx, "123456")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.GetActiveBorrow(ctx, "123456", b.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.SetReturnDate(ctx, "123456", b.ID, baseTime.Add(2*time.Hour))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testReturnClosesOldest(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := AddBook(t, s, "Persuasion", "9780141439686", 3)

	first := borrow(t, s, "123456", b.ID, baseTime)
	borrow(t, s, "123456", b.ID, baseTime.Add(24*time.Hour))

	require.NoError(t, s.SetReturnDate(ctx, "123456", b.ID, baseTime.Add(48*time.Hour)))

	open, err := s.GetActiveBorrow(ctx, "123456", b.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, open.ID)
}

func testActiveBorrowsOverdue(t *testing.T, s store.Store) {
	ctx := context.Background()
	late := AddBook(t, s, "Late Book", "9780000000010", 1)
	fresh := AddBook(t, s, "Fresh Book", "9780000000011", 1)

	borrow(t, s, "111111", late.ID, baseTime.Add(-30*24*time.Hour))
	borrow(t, s, "111111", fresh.ID, baseTime)

	active, err := s.ListActiveBorrows(ctx, "111111", baseTime.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, active, 2)

	byTitle := map[string]*domain.ActiveBorrow{}
	for _, a := range active {
		byTitle[a.Title] = a
	}
	assert.True(t, byTitle["Late Book"].IsOverdue)
	assert.False(t, byTitle["Fresh Book"].IsOverdue)
	assert.Equal(t, "Author of Late Book", byTitle["Late Book"].Author)

	none, err := s.ListActiveBorrows(ctx, "999999", baseTime)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testHistoryNewestFirst(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := AddBook(t, s, "Old Loan", "9780000000020", 1)
	b := AddBook(t, s, "New Loan", "9780000000021", 1)

	borrow(t, s, "222222", a.ID, baseTime)
	borrow(t, s, "222222", b.ID, baseTime.Add(72*time.Hour))
	require.NoError(t, s.SetReturnDate(ctx, "222222", a.ID, baseTime.Add(24*time.Hour)))

	history, err := s.ListBorrowHistory(ctx, "222222")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "New Loan", history[0].Title)
	assert.Nil(t, history[0].ReturnDate)
	assert.Equal(t, "Old Loan", history[1].Title)
	require.NotNil(t, history[1].ReturnDate)
	assert.True(t, baseTime.Add(24*time.Hour).Equal(*history[1].ReturnDate))
}

func testWithTxCommits(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := AddBook(t, s, "Ulysses", "9780679722762", 1)

	err := s.WithTx(ctx, func(tx store.Circulation) error {
		rec := domain.NewBorrowRecord("333333", b.ID, baseTime)
		if err := tx.CreateBorrowRecord(ctx, rec); err != nil {
			return err
		}
		return tx.UpdateBookAvailability(ctx, b.ID, -1)
	})
	require.NoError(t, err)

	got, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableCopies)

	n, err := s.CountActiveBorrows(ctx, "333333")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testWithTxRollsBack(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := AddBook(t, s, "Walden", "9780691096124", 1)
	boom := errors.New("availability update failed")

	err := s.WithTx(ctx, func(tx store.Circulation) error {
		rec := domain.NewBorrowRecord("444444", b.ID, baseTime)
		if err := tx.CreateBorrowRecord(ctx, rec); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := s.CountActiveBorrows(ctx, "444444")
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)
}

// returnTx closes the patron's loan the way the circulation service does.
func returnTx(ctx context.Context, s store.Store, patronID string, bookID int64, at time.Time) error {
	return s.WithTx(ctx, func(tx store.Circulation) error {
		if err := tx.LockPatron(ctx, patronID); err != nil {
			return err
		}
		if _, err := tx.GetActiveBorrow(ctx, patronID, bookID); err != nil {
			return err
		}
		if err := tx.SetReturnDate(ctx, patronID, bookID, at); err != nil {
			return err
		}
		return tx.UpdateBookAvailability(ctx, bookID, 1)
	})
}

var errLimit = errors.New("borrow limit reached")

// borrowTx opens a loan the way the circulation service does.
func borrowTx(ctx context.Context, s store.Store, patronID string, bookID int64, at time.Time) error {
	return s.WithTx(ctx, func(tx store.Circulation) error {
		if err := tx.LockPatron(ctx, patronID); err != nil {
			return err
		}
		n, err := tx.CountActiveBorrows(ctx, patronID)
		if err != nil {
			return err
		}
		if n >= domain.MaxActiveBorrows {
			return errLimit
		}
		if err := tx.CreateBorrowRecord(ctx, domain.NewBorrowRecord(patronID, bookID, at)); err != nil {
			return err
		}
		return tx.UpdateBookAvailability(ctx, bookID, -1)
	})
}

// runConcurrently calls fn from n goroutines and returns their errors.
func runConcurrently(n int, fn func() error) []error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = fn()
		}()
	}
	wg.Wait()
	return errs
}

func testConcurrentReturnsCloseOnce(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := AddBook(t, s, "Middlemarch", "9780141439549", 3)

	// A second patron's copy keeps availability below the total, so a double
	// increment would not trip the availability bounds.
	require.NoError(t, borrowTx(ctx, s, "111111", b.ID, baseTime))
	require.NoError(t, borrowTx(ctx, s, "222222", b.ID, baseTime))

	errs := runConcurrently(8, func() error {
		return returnTx(ctx, s, "111111", b.ID, baseTime.Add(time.Hour))
	})

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, store.ErrNotFound)
	}
	assert.Equal(t, 1, succeeded)

	got, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableCopies)

	n, err := s.CountActiveBorrows(ctx, "222222")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testConcurrentBorrowsRespectLimit(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := AddBook(t, s, "Moby-Dick", "9780142437247", 10)

	for range domain.MaxActiveBorrows - 1 {
		require.NoError(t, borrowTx(ctx, s, "333333", b.ID, baseTime))
	}

	errs := runConcurrently(6, func() error {
		return borrowTx(ctx, s, "333333", b.ID, baseTime.Add(time.Hour))
	})

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, errLimit)
	}
	assert.Equal(t, 1, succeeded)

	n, err := s.CountActiveBorrows(ctx, "333333")
	require.NoError(t, err)
	assert.Equal(t, domain.MaxActiveBorrows, n)

	got, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 10-domain.MaxActiveBorrows, got.AvailableCopies)
}
