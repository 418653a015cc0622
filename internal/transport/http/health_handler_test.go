package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	svc := new(MockLicenseService)
	svc.On("Count", mock.Anything).Return(3)

	handler := NewHealthHandler(svc, func() error { return nil })
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.Health(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 3, resp.Licenses)
	assert.Equal(t, "writable", resp.Store)
	assert.NotEmpty(t, resp.Version)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestHealth_DegradedWhenStoreUnwritable(t *testing.T) {
	svc := new(MockLicenseService)
	svc.On("Count", mock.Anything).Return(0)

	handler := NewHealthHandler(svc, func() error { return errors.New("read-only filesystem") })
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.Health(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Contains(t, resp.Store, "read-only")
}
