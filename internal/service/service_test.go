package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/circulation/internal/domain"
	domainerrors "github.com/listenupapp/circulation/internal/errors"
	"github.com/listenupapp/circulation/internal/payment/paymenttest"
	"github.com/listenupapp/circulation/internal/search"
	"github.com/listenupapp/circulation/internal/store"
	"github.com/listenupapp/circulation/internal/store/sqlite"
	"github.com/listenupapp/circulation/internal/validation"
)

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// daysAfterDue is the instant n whole days past the due date of a loan taken at testNow.
func daysAfterDue(n int) time.Time {
	return testNow.Add(domain.LoanPeriod).Add(time.Duration(n)*24*time.Hour + time.Hour)
}

type testServices struct {
	store       store.Store
	index       *search.CatalogIndex
	gateway     *paymenttest.Gateway
	catalog     *CatalogService
	circulation *CirculationService
	fees        *FeeService
	reports     *ReportService
	payments    *PaymentService
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	return newTestServicesWithStore(t, newTestStore(t))
}

func newTestServicesWithStore(t *testing.T, s store.Store) *testServices {
	t.Helper()

	idx, err := search.NewCatalogIndex(search.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	gw := paymenttest.New()
	fees := NewFeeService(s, nil)
	svc := &testServices{
		store:       s,
		index:       idx,
		gateway:     gw,
		catalog:     NewCatalogService(s, validation.New(), idx, nil),
		circulation: NewCirculationService(s, validation.New(), nil),
		fees:        fees,
		reports:     NewReportService(s, nil),
		payments:    NewPaymentService(s, fees, gw, nil),
	}
	svc.setNow(testNow)
	return svc
}

func (s *testServices) setNow(now time.Time) {
	clock := fixedClock(now)
	s.catalog.SetClock(clock)
	s.circulation.SetClock(clock)
	s.fees.SetClock(clock)
	s.reports.SetClock(clock)
}

func (s *testServices) addBook(t *testing.T, title, isbn string, copies int) *domain.Book {
	t.Helper()
	receipt, err := s.catalog.AddBook(context.Background(), AddBookRequest{
		Title:       title,
		Author:      "Author of " + title,
		ISBN:        isbn,
		TotalCopies: copies,
	})
	require.NoError(t, err)
	return receipt.Book
}

func (s *testServices) borrow(t *testing.T, patronID string, bookID int64) {
	t.Helper()
	_, err := s.circulation.BorrowBook(context.Background(), patronID, bookID)
	require.NoError(t, err)
}

// requireDomainError asserts err is a domain error with the given code and message.
func requireDomainError(t *testing.T, err error, code domainerrors.Code, msg string) {
	t.Helper()
	require.Error(t, err)
	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, code, domainErr.Code)
	assert.Equal(t, msg, domainErr.Message)
}

// faultyStore injects store failures around a real store.
type faultyStore struct {
	store.Store
	createBookErr   error
	availabilityErr error
	returnDateErr   error
	lockErr         error
}

func (f *faultyStore) CreateBook(ctx context.Context, b *domain.Book) error {
	if f.createBookErr != nil {
		return f.createBookErr
	}
	return f.Store.CreateBook(ctx, b)
}

func (f *faultyStore) WithTx(ctx context.Context, fn func(tx store.Circulation) error) error {
	return f.Store.WithTx(ctx, func(tx store.Circulation) error {
		return fn(&faultyTx{Circulation: tx, parent: f})
	})
}

type faultyTx struct {
	store.Circulation
	parent *faultyStore
}

func (f *faultyTx) LockPatron(ctx context.Context, patronID string) error {
	if f.parent.lockErr != nil {
		return f.parent.lockErr
	}
	return f.Circulation.LockPatron(ctx, patronID)
}

func (f *faultyTx) UpdateBookAvailability(ctx context.Context, bookID int64, delta int) error {
	if f.parent.availabilityErr != nil {
		return f.parent.availabilityErr
	}
	return f.Circulation.UpdateBookAvailability(ctx, bookID, delta)
}

func (f *faultyTx) SetReturnDate(ctx context.Context, patronID string, bookID int64, at time.Time) error {
	if f.parent.returnDateErr != nil {
		return f.parent.returnDateErr
	}
	return f.Circulation.SetReturnDate(ctx, patronID, bookID, at)
}
