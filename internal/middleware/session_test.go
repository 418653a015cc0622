package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_Lifecycle(t *testing.T) {
	sm := NewSessionManager(time.Hour, slog.Default())

	id := sm.Create()
	assert.True(t, sm.Valid(id))

	sm.Destroy(id)
	assert.False(t, sm.Valid(id))

	assert.False(t, sm.Valid(""))
	assert.False(t, sm.Valid("never-issued"))
}

func TestSessionManager_Expiry(t *testing.T) {
	sm := NewSessionManager(-time.Second, slog.Default())

	id := sm.Create()
	assert.False(t, sm.Valid(id), "already-expired session must not validate")
}

func TestRequireAuth(t *testing.T) {
	sm := NewSessionManager(time.Hour, slog.Default())
	protected := sm.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("api request without session gets 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/licenses", nil)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "/errors/unauthorized")
	})

	t.Run("page request without session redirects to login", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/admin/login", rec.Header().Get("Location"))
	})

	t.Run("valid session passes through", func(t *testing.T) {
		id := sm.Create()
		req := httptest.NewRequest(http.MethodGet, "/api/admin/licenses", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: id})
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
	})
}
