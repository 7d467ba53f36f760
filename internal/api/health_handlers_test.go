package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck_Success(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	health := decodeEnvelope[HealthResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Components["database"].Status)
	assert.Equal(t, "healthy", health.Components["search"].Status)
	assert.Equal(t, "0 books indexed", health.Components["search"].Message)
}

func TestHealthCheck_SearchDisabledDegrades(t *testing.T) {
	ts := setupTestServerWith(t, testOptions{noSearch: true})

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	health := decodeEnvelope[HealthResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "search index disabled", health.Components["search"].Message)
}

func TestHealthCheck_DatabaseDown(t *testing.T) {
	ts := setupTestServer(t)
	require.NoError(t, ts.store.Close())

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	health := decodeEnvelope[HealthResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, "unhealthy", health.Status)
	assert.Equal(t, "database ping failed", health.Components["database"].Message)
}
