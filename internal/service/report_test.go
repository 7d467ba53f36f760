package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatronStatus(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	dune := svc.addBook(t, "Dune", "9780441172719", 1)
	emma := svc.addBook(t, "Emma", "9780141439587", 1)

	svc.borrow(t, "123456", dune.ID)
	svc.setNow(testNow.Add(time.Hour))
	svc.borrow(t, "123456", emma.ID)
	_, err := svc.circulation.ReturnBook(ctx, "123456", emma.ID)
	require.NoError(t, err)

	svc.setNow(daysAfterDue(3))
	report, err := svc.reports.PatronStatus(ctx, "123456")
	require.NoError(t, err)

	assert.Empty(t, report.Error)
	assert.Equal(t, "123456", report.PatronID)
	assert.Equal(t, 1, report.TotalBorrowed)
	require.Len(t, report.CurrentlyBorrowed, 1)
	assert.Equal(t, "Dune", report.CurrentlyBorrowed[0].Title)
	assert.True(t, report.CurrentlyBorrowed[0].IsOverdue)
	assert.InDelta(t, 1.50, report.TotalLateFees, 1e-9)

	require.Len(t, report.BorrowingHistory, 2)
	assert.Equal(t, "Emma", report.BorrowingHistory[0].Title)
	assert.NotNil(t, report.BorrowingHistory[0].ReturnDate)
	assert.Equal(t, "Dune", report.BorrowingHistory[1].Title)
	assert.Nil(t, report.BorrowingHistory[1].ReturnDate)
}

func TestPatronStatus_NotOverdue(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	book := svc.addBook(t, "Dune", "9780441172719", 2)
	svc.borrow(t, "123456", book.ID)

	report, err := svc.reports.PatronStatus(ctx, "123456")
	require.NoError(t, err)
	require.Len(t, report.CurrentlyBorrowed, 1)
	assert.False(t, report.CurrentlyBorrowed[0].IsOverdue)
	assert.Zero(t, report.TotalLateFees)
}

func TestPatronStatus_UnknownPatron(t *testing.T) {
	svc := newTestServices(t)

	report, err := svc.reports.PatronStatus(context.Background(), "654321")
	require.NoError(t, err)
	assert.Empty(t, report.Error)
	assert.NotNil(t, report.CurrentlyBorrowed)
	assert.Empty(t, report.CurrentlyBorrowed)
	assert.NotNil(t, report.BorrowingHistory)
	assert.Empty(t, report.BorrowingHistory)
	assert.Zero(t, report.TotalBorrowed)
}

func TestPatronStatus_InvalidPatronID(t *testing.T) {
	svc := newTestServices(t)

	report, err := svc.reports.PatronStatus(context.Background(), "12")
	require.NoError(t, err)
	assert.Equal(t, "Invalid patron ID. Must be exactly 6 digits.", report.Error)
	assert.Empty(t, report.PatronID)
	assert.Empty(t, report.CurrentlyBorrowed)
	assert.Empty(t, report.BorrowingHistory)
	assert.Zero(t, report.TotalLateFees)
}
