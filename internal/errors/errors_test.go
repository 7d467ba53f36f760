package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := NotFound("Book not found.")

	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrValidation))

	wrapped := fmt.Errorf("lookup: %w", err)
	assert.True(t, Is(wrapped, ErrNotFound))
}

func TestError_WrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(cause, CodeInternal, "Database error occurred while adding the book.")

	assert.Equal(t, "Database error occurred while adding the book.: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Database error occurred while adding the book.", err.Message)
}

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeAlreadyExists, http.StatusConflict},
		{CodeUnavailable, http.StatusConflict},
		{CodeLimitReached, http.StatusConflict},
		{CodeValidation, http.StatusBadRequest},
		{CodePaymentFailed, http.StatusPaymentRequired},
		{CodeGateway, http.StatusBadGateway},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeInternal, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestError_WithDetails(t *testing.T) {
	base := Validation("Title is required.")
	withDetails := base.WithDetails(map[string]string{"title": "Title is required."})

	require.NotSame(t, base, withDetails)
	assert.Nil(t, base.Details)
	assert.Equal(t, map[string]string{"title": "Title is required."}, withDetails.Details)
	assert.True(t, Is(withDetails, ErrValidation))
}

func TestError_GetStatus(t *testing.T) {
	assert.Equal(t, http.StatusPaymentRequired, PaymentFailed("DECLINED").GetStatus())
	assert.Equal(t, http.StatusNotFound, NotFound("Book not found.").WithCause(fmt.Errorf("no rows")).GetStatus())
}
