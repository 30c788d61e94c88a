package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"bridgelayer.app/internal/auth"
)

const (
	authHeader  = "Authorization"
	bearer      = "Bearer "
	ghostHeader = "X-Ghost-Session"
)

// requestToken extracts the access token. The session cookie wins over the
// Authorization header so a browser session cannot be downgraded by a stray
// header.
func requestToken(r *http.Request) string {
	if v := cookieValue(r, accessCookie); v != "" {
		return v
	}
	header := strings.TrimSpace(r.Header.Get(authHeader))
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return ""
	}
	return strings.TrimSpace(header[len(bearer):])
}

// requireAuth verifies the access token, re-loads the principal from the
// store and attaches both to the request context. The token's firm claims are
// advisory only; every authorization decision downstream works from the fresh
// principal.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := a.authenticate(w, r)
		if !ok {
			return
		}
		ctx := auth.ContextWithPrincipal(r.Context(), principal)

		if token := strings.TrimSpace(r.Header.Get(ghostHeader)); token != "" {
			if !principal.Role.IsPlatformTier() {
				writeError(w, r, http.StatusForbidden, "ghost sessions require a platform role")
				return
			}
			gs, err := a.opts.Ghosts.Resolve(ctx, token, principal.ID)
			if err != nil {
				writeError(w, r, ghostResolveStatus(err), "ghost session not available")
				return
			}
			ctx = auth.ContextWithGhostSession(ctx, gs)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// optionalAuth attaches a principal when a valid token is present and lets
// the request through anonymously otherwise.
func (a *API) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := a.opts.Tokens.VerifyAccessToken(r.Context(), token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		principal, err := a.opts.Sessions.LoadPrincipal(r.Context(), claims.Subject)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
	})
}

// requireTenantScope resolves the {slug} path segment into a tenant context.
// Must run inside requireAuth.
func (a *API) requireTenantScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			writeUnauthorized(w, r, "invalid")
			return
		}
		tc, err := a.opts.Tenants.Validate(r.Context(), principal, r.PathValue("slug"))
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrTenantNotFound):
				writeError(w, r, http.StatusNotFound, "firm not found")
			case errors.Is(err, auth.ErrNoFirmAssociation), errors.Is(err, auth.ErrAccessDenied):
				writeError(w, r, http.StatusForbidden, "forbidden")
			case errors.Is(err, auth.ErrInvalidInput):
				writeError(w, r, http.StatusBadRequest, "invalid firm")
			default:
				writeError(w, r, http.StatusInternalServerError, "tenant validation failed")
			}
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithTenant(r.Context(), tc)))
	})
}

func (a *API) authenticate(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	token := requestToken(r)
	if token == "" {
		writeUnauthorized(w, r, "invalid")
		return nil, false
	}

	claims, err := a.opts.Tokens.VerifyAccessToken(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			writeUnauthorized(w, r, "expired")
		case errors.Is(err, auth.ErrTokenRevoked):
			writeUnauthorized(w, r, "revoked")
		case errors.Is(err, auth.ErrTokenInvalid):
			writeUnauthorized(w, r, "invalid")
		default:
			writeError(w, r, http.StatusInternalServerError, "authentication error")
		}
		return nil, false
	}

	// Fresh load: a deactivation between issuance and now must bite on this
	// request, not at token expiry.
	principal, err := a.opts.Sessions.LoadPrincipal(r.Context(), claims.Subject)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAccessDenied), errors.Is(err, auth.ErrNotFound):
			writeUnauthorized(w, r, "revoked")
		default:
			writeError(w, r, http.StatusInternalServerError, "authentication error")
		}
		return nil, false
	}
	return principal, true
}

func ghostResolveStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrAlreadyEnded):
		return http.StatusConflict
	case errors.Is(err, auth.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
