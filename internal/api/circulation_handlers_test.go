package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/circulation/internal/domain"
	"github.com/listenupapp/circulation/internal/service"
)

func TestBorrowBook(t *testing.T) {
	ts := setupTestServer(t)
	book := ts.addBook(t, "Dune", "9780441172719", 1)
	path := fmt.Sprintf("/api/v1/books/%d/borrow", book.ID)

	resp := ts.api.Post(path, map[string]any{"patron_id": "123456"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	env := decodeEnvelope[service.Receipt](t, resp.Body.Bytes())
	assert.Equal(t, `Successfully borrowed "Dune". Due date: 2024-05-15.`, env.Data.Message)
	assert.Equal(t, 0, env.Data.Book.AvailableCopies)
	require.NotNil(t, env.Data.Record)
	assert.Equal(t, "123456", env.Data.Record.PatronID)

	resp = ts.api.Post(path, map[string]any{"patron_id": "654321"})
	assert.Equal(t, http.StatusConflict, resp.Code)
	errEnv := decodeError(t, resp.Body.Bytes())
	assert.Equal(t, "UNAVAILABLE", errEnv.Code)
	assert.Equal(t, "This book is currently not available.", errEnv.Message)
}

func TestBorrowBook_Errors(t *testing.T) {
	ts := setupTestServer(t)
	book := ts.addBook(t, "Dune", "9780441172719", 1)

	tests := []struct {
		name     string
		bookID   int64
		patronID string
		status   int
		code     string
		message  string
	}{
		{"invalid patron", book.ID, "12345", http.StatusBadRequest, "VALIDATION", "Invalid patron ID. Must be exactly 6 digits."},
		{"letters in patron", book.ID, "12a456", http.StatusBadRequest, "VALIDATION", "Invalid patron ID. Must be exactly 6 digits."},
		{"unknown book", 9999, "123456", http.StatusNotFound, "NOT_FOUND", "Book not found."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post(fmt.Sprintf("/api/v1/books/%d/borrow", tt.bookID), map[string]any{"patron_id": tt.patronID})

			assert.Equal(t, tt.status, resp.Code)
			env := decodeError(t, resp.Body.Bytes())
			assert.Equal(t, tt.code, env.Code)
			assert.Equal(t, tt.message, env.Message)
		})
	}
}

func TestBorrowBook_LimitReached(t *testing.T) {
	ts := setupTestServer(t)

	for i := range domain.MaxActiveBorrows {
		book := ts.addBook(t, fmt.Sprintf("Book %d", i), fmt.Sprintf("978000000000%d", i), 1)
		ts.borrow(t, "123456", book.ID)
	}
	extra := ts.addBook(t, "One Too Many", "9780000000099", 1)

	resp := ts.api.Post(fmt.Sprintf("/api/v1/books/%d/borrow", extra.ID), map[string]any{"patron_id": "123456"})

	assert.Equal(t, http.StatusConflict, resp.Code)
	env := decodeError(t, resp.Body.Bytes())
	assert.Equal(t, "LIMIT_REACHED", env.Code)
	assert.Equal(t, "You have reached the maximum borrowing limit of 5 books.", env.Message)
}

func TestReturnBook(t *testing.T) {
	ts := setupTestServer(t)
	book := ts.addBook(t, "Emma", "9780141439587", 2)
	ts.borrow(t, "123456", book.ID)
	path := fmt.Sprintf("/api/v1/books/%d/return", book.ID)

	resp := ts.api.Post(path, map[string]any{"patron_id": "123456"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	env := decodeEnvelope[service.Receipt](t, resp.Body.Bytes())
	assert.Equal(t, `Successfully returned "Emma". Return date: 2024-05-01.`, env.Data.Message)
	assert.Equal(t, 2, env.Data.Book.AvailableCopies)

	resp = ts.api.Post(path, map[string]any{"patron_id": "123456"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
	errEnv := decodeError(t, resp.Body.Bytes())
	assert.Equal(t, "No borrowing record found for this patron and book.", errEnv.Message)
}

func TestReturnBook_MissingPatron(t *testing.T) {
	ts := setupTestServer(t)
	book := ts.addBook(t, "Emma", "9780141439587", 1)

	resp := ts.api.Post(fmt.Sprintf("/api/v1/books/%d/return", book.ID), map[string]any{})

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "VALIDATION", decodeError(t, resp.Body.Bytes()).Code)
}
