package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/render"
	"github.com/google/uuid"

	apierrors "github.com/velvetthemes/licensing/internal/errors"
)

// SessionCookie is the admin session cookie name.
const SessionCookie = "velvet_session"

// SessionManager holds admin sessions in memory. Sessions do not survive a
// restart; admins log in again, which is acceptable for this surface.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]time.Time // session ID -> expiry
	ttl      time.Duration
	logger   *slog.Logger
}

// NewSessionManager creates a session manager with the given TTL.
func NewSessionManager(ttl time.Duration, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]time.Time),
		ttl:      ttl,
		logger:   logger.With(slog.String("component", "sessions")),
	}
}

// Create starts a new session and returns its ID.
func (sm *SessionManager) Create() string {
	id := uuid.New().String()
	sm.mu.Lock()
	sm.sessions[id] = time.Now().Add(sm.ttl)
	sm.mu.Unlock()
	return id
}

// Valid reports whether the session ID is live, pruning it when expired.
func (sm *SessionManager) Valid(id string) bool {
	if id == "" {
		return false
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	expiry, ok := sm.sessions[id]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(sm.sessions, id)
		return false
	}
	return true
}

// Destroy ends a session. Destroying an unknown session is a no-op.
func (sm *SessionManager) Destroy(id string) {
	sm.mu.Lock()
	delete(sm.sessions, id)
	sm.mu.Unlock()
}

// SetCookie writes the session cookie on a login response.
func (sm *SessionManager) SetCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(sm.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie on logout.
func (sm *SessionManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest extracts the session ID from the request cookie.
func (sm *SessionManager) FromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// RequireAuth gates a route group behind a valid admin session. API callers
// get a 401 problem response; dashboard page requests are redirected to the
// login form.
func (sm *SessionManager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sm.Valid(sm.FromRequest(r)) {
			next.ServeHTTP(w, r)
			return
		}

		sm.logger.WarnContext(r.Context(), "unauthenticated admin request",
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr),
		)

		if strings.HasPrefix(r.URL.Path, "/api/") {
			render.Render(w, r, apierrors.Unauthorized(r.URL.Path).
				WithExtension("trace_id", GetReqID(r.Context())))
			return
		}
		http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
	})
}
