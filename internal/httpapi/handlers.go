// Package httpapi is the HTTP delivery layer: routing, middleware, the
// authentication gatekeeper and cookie/body token delivery.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bridgelayer.app/internal/auth"
	"bridgelayer.app/internal/obs"
)

// SessionManager is the slice of the session service the HTTP layer uses.
type SessionManager interface {
	Login(ctx context.Context, req auth.LoginRequest) (*auth.Session, error)
	OAuthLogin(ctx context.Context, req auth.OAuthLoginRequest) (*auth.Session, error)
	Refresh(ctx context.Context, presented, ipAddress string) (*auth.Session, error)
	Logout(ctx context.Context, refreshToken, accessToken, ipAddress string) error
	SessionInfo(ctx context.Context, principalID string) (*auth.Session, error)
	LoadPrincipal(ctx context.Context, principalID string) (*auth.Principal, error)
}

// TokenVerifier checks access tokens and exposes lifetimes for cookie max-age.
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*auth.AccessClaims, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// TenantScope validates a principal against a requested firm slug.
type TenantScope interface {
	Validate(ctx context.Context, principal *auth.Principal, requestedSlug string) (auth.TenantContext, error)
}

// GhostManager is the slice of the ghost-session service the HTTP layer uses.
type GhostManager interface {
	Start(ctx context.Context, adminID, targetFirmID, purpose, notes string) (*auth.GhostSession, error)
	End(ctx context.Context, sessionToken, requestingAdminID string) error
	ListActive(ctx context.Context, callerID string) ([]*auth.GhostSession, error)
	Resolve(ctx context.Context, sessionToken, adminID string) (*auth.GhostSession, error)
}

// ReadyProbe checks backing-store reachability for the readiness endpoint.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options wires the API's dependencies and delivery policy.
type Options struct {
	Sessions SessionManager
	Tokens   TokenVerifier
	Tenants  TenantScope
	Ghosts   GhostManager

	ReadyProbe    ReadyProbe
	Version       string
	CookieDomain  string
	SecureCookies bool

	LoginRatePerSecond float64
	LoginRateBurst     int
}

// API is the HTTP layer.
type API struct {
	mux  *http.ServeMux
	opts Options
}

func New(opts Options) (*API, error) {
	if opts.Sessions == nil || opts.Tokens == nil || opts.Tenants == nil || opts.Ghosts == nil {
		return nil, errors.New("httpapi: all service dependencies are required")
	}
	if opts.LoginRatePerSecond <= 0 {
		opts.LoginRatePerSecond = 5
	}
	if opts.LoginRateBurst <= 0 {
		opts.LoginRateBurst = 10
	}
	a := &API{mux: http.NewServeMux(), opts: opts}

	limited := func(h http.HandlerFunc) http.Handler {
		return RateLimit(h, opts.LoginRateBurst, opts.LoginRatePerSecond)
	}

	a.mux.HandleFunc("GET /healthz", a.handleHealthz)
	a.mux.HandleFunc("GET /readyz", a.handleReadyz)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.Handle("POST /v1/auth/login", limited(a.handleLogin))
	a.mux.Handle("POST /v1/auth/oauth", limited(a.handleOAuthLogin))
	a.mux.HandleFunc("POST /v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("POST /v1/auth/logout", a.handleLogout)
	a.mux.Handle("GET /v1/auth/session", a.requireAuth(http.HandlerFunc(a.handleSessionInfo)))

	a.mux.Handle("POST /v1/admin/ghost-sessions", a.requireAuth(http.HandlerFunc(a.handleGhostStart)))
	a.mux.Handle("GET /v1/admin/ghost-sessions", a.requireAuth(http.HandlerFunc(a.handleGhostList)))
	a.mux.Handle("POST /v1/admin/ghost-sessions/{token}/end", a.requireAuth(http.HandlerFunc(a.handleGhostEnd)))

	a.mux.Handle("GET /v1/firms/{slug}/workspace",
		a.requireAuth(a.requireTenantScope(http.HandlerFunc(a.handleWorkspace))))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	return a, nil
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = SecurityHeaders(h)
	h = CORS(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "bridgelayer-auth",
		"version": a.opts.Version,
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := a.opts.ReadyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// --- helpers ---

type errorResponse struct {
	Error     string `json:"error"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg, RequestID: RequestIDFromContext(r.Context())})
}

// writeUnauthorized emits a 401 with a machine-readable reason so clients can
// distinguish "refresh now" from "re-login".
func writeUnauthorized(w http.ResponseWriter, r *http.Request, reason string) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{
		Error:     "unauthorized",
		Reason:    reason,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
