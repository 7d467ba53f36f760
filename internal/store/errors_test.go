package store

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_WithCauseStillMatchesSentinel(t *testing.T) {
	cause := errors.New("sql: no rows in result set")
	err := ErrNotFound.WithCause(cause)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, "resource not found: sql: no rows in result set", err.Error())
}

func TestError_WithMessageIsDistinct(t *testing.T) {
	err := ErrNotFound.WithMessage("book not found")

	assert.Equal(t, http.StatusNotFound, err.HTTPCode())
	assert.Equal(t, "book not found", err.Error())
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestError_WrappedWithFmt(t *testing.T) {
	err := fmt.Errorf("create book: %w", ErrAlreadyExists)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	var storeErr *Error
	assert.ErrorAs(t, err, &storeErr)
	assert.Equal(t, http.StatusConflict, storeErr.HTTPCode())
}

func TestErrInvariantIsNotAlreadyExists(t *testing.T) {
	assert.NotErrorIs(t, ErrInvariant, ErrAlreadyExists)
}
