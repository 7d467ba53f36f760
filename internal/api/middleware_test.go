package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/circulation/internal/errors"
	"github.com/listenupapp/circulation/internal/store"
)

func TestEnvelopeTransformer_AlwaysIncludesVersion(t *testing.T) {
	tests := []struct {
		name   string
		status string
		input  any
	}{
		{name: "success response", status: "200", input: map[string]string{"key": "value"}},
		{name: "created response", status: "201", input: map[string]int64{"id": 123}},
		{name: "no content response", status: "204", input: nil},
		{name: "bad request error", status: "400", input: errors.New("invalid input")},
		{name: "domain error", status: "409", input: domainerrors.Unavailable("This book is currently not available.")},
		{
			name:   "api error with details",
			status: "422",
			input: &APIError{
				Code:    "VALIDATION",
				Message: "validation failed",
				Details: []string{"expected required property patron_id to be present"},
			},
		},
		{name: "internal server error", status: "500", input: errors.New("internal error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := EnvelopeTransformer(nil, tt.status, tt.input)
			require.NoError(t, err)

			jsonBytes, err := json.Marshal(result)
			require.NoError(t, err)

			var envelope map[string]any
			require.NoError(t, json.Unmarshal(jsonBytes, &envelope))

			require.Contains(t, envelope, "v", "Envelope must contain version field 'v'")
			assert.Equal(t, float64(EnvelopeVersion), envelope["v"])
			assert.NotContains(t, envelope, "version")
		})
	}
}

func TestEnvelopeTransformer_SuccessResponse(t *testing.T) {
	data := map[string]string{"title": "Dune"}

	result, err := EnvelopeTransformer(nil, "200", data)
	require.NoError(t, err)

	envelope, ok := result.(APIEnvelope)
	require.True(t, ok, "Expected APIEnvelope type")

	assert.Equal(t, EnvelopeVersion, envelope.Version)
	assert.True(t, envelope.Success)
	assert.Equal(t, data, envelope.Data)
	assert.Empty(t, envelope.Error)
}

func TestEnvelopeTransformer_ErrorResponse(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "400", errors.New("validation failed"))
	require.NoError(t, err)

	envelope, ok := result.(APIEnvelope)
	require.True(t, ok, "Expected APIEnvelope type")

	assert.False(t, envelope.Success)
	assert.Nil(t, envelope.Data)
	assert.Equal(t, "validation failed", envelope.Error)
}

func TestEnvelopeTransformer_SimpleAPIError(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "404", &APIError{Message: "Resource not found"})
	require.NoError(t, err)

	envelope, ok := result.(APIEnvelope)
	require.True(t, ok, "Expected APIEnvelope type")
	assert.False(t, envelope.Success)
	assert.Equal(t, "Resource not found", envelope.Error)
}

func TestEnvelopeTransformer_ErrorWithDetails(t *testing.T) {
	apiErr := &APIError{
		Code:    "VALIDATION",
		Message: "validation failed",
		Details: []string{"option1", "option2"},
	}

	result, err := EnvelopeTransformer(nil, "422", apiErr)
	require.NoError(t, err)

	envelope, ok := result.(APIErrorEnvelope)
	require.True(t, ok, "Expected APIErrorEnvelope type")

	assert.Equal(t, EnvelopeVersion, envelope.Version)
	assert.False(t, envelope.Success)
	assert.Equal(t, "VALIDATION", envelope.Code)
	assert.Equal(t, "validation failed", envelope.Message)
	assert.Equal(t, []string{"option1", "option2"}, envelope.Details)
}

func TestEnvelopeTransformer_DomainErrorHidesCause(t *testing.T) {
	domainErr := domainerrors.Wrap(errors.New("database is locked"), domainerrors.CodeInternal,
		"Database error occurred while updating book availability.")

	result, err := EnvelopeTransformer(nil, "500", domainErr)
	require.NoError(t, err)

	envelope, ok := result.(APIErrorEnvelope)
	require.True(t, ok, "Expected APIErrorEnvelope type")
	assert.Equal(t, "INTERNAL", envelope.Code)
	assert.Equal(t, "Database error occurred while updating book availability.", envelope.Message)
	assert.NotContains(t, envelope.Message, "locked")
}

func TestNewAPIError(t *testing.T) {
	RegisterErrorHandler()

	tests := []struct {
		name    string
		status  int
		message string
		errs    []error
		want    int
		code    string
		wantMsg string
	}{
		{
			name: "domain error wins", status: http.StatusInternalServerError, message: "unexpected error occurred",
			errs: []error{domainerrors.LimitReached("limit")}, want: http.StatusConflict, code: "LIMIT_REACHED", wantMsg: "limit",
		},
		{
			name: "store not found", status: http.StatusInternalServerError, message: "unexpected error occurred",
			errs: []error{store.ErrNotFound}, want: http.StatusNotFound, code: "NOT_FOUND", wantMsg: "resource not found",
		},
		{
			name: "schema validation", status: http.StatusUnprocessableEntity, message: "validation failed",
			want: http.StatusUnprocessableEntity, code: "VALIDATION", wantMsg: "validation failed",
		},
		{
			name: "rate limited", status: http.StatusTooManyRequests, message: "slow down",
			want: http.StatusTooManyRequests, code: "RATE_LIMITED", wantMsg: "slow down",
		},
		{
			name: "internal hides details", status: http.StatusInternalServerError, message: "unexpected error occurred",
			errs: []error{errors.New("secret path /var/db")}, want: http.StatusInternalServerError, code: "INTERNAL", wantMsg: "unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := huma.NewError(tt.status, tt.message, tt.errs...)

			apiErr, ok := err.(*APIError)
			require.True(t, ok, "Expected *APIError")
			assert.Equal(t, tt.want, apiErr.GetStatus())
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			if tt.status >= http.StatusInternalServerError {
				assert.Nil(t, apiErr.Details)
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.2:5000", "203.0.113.9"},
		{"forwarded single", map[string]string{"X-Forwarded-For": "203.0.113.9"}, "10.0.0.2:5000", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.2:5000", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.1:4321", "192.0.2.1"},
		{"remote ipv6", nil, "[2001:db8::1]:4321", "2001:db8::1"},
		{"bare remote", nil, "192.0.2.1", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/txn-1/refund", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			ctx := humatest.NewContext(&huma.Operation{}, req, httptest.NewRecorder())

			assert.Equal(t, tt.want, getClientIP(ctx))
		})
	}
}
