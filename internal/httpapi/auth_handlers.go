package httpapi

import (
	"errors"
	"net/http"

	"bridgelayer.app/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Mode     string `json:"mode,omitempty"`
	Tenant   string `json:"tenant,omitempty"`
}

type oauthLoginRequest struct {
	Provider string `json:"provider"`
	Token    string `json:"token"`
	Mode     string `json:"mode,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type sessionResponse struct {
	Principal *auth.Principal `json:"principal"`
	Firm      *auth.Firm      `json:"firm,omitempty"`
	Tokens    *auth.TokenPair `json:"tokens,omitempty"`
}

// deliver writes a session either as cookies (web clients, tokens never
// reach page script) or with the pair in the body (API clients).
func (a *API) deliver(w http.ResponseWriter, r *http.Request, code int, sess *auth.Session) {
	resp := sessionResponse{Principal: sess.Principal, Firm: sess.Firm}
	if wantsCookies(r) {
		a.setSessionCookies(w, sess.Tokens)
	} else {
		pair := sess.Tokens
		resp.Tokens = &pair
	}
	writeJSON(w, code, resp)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := a.opts.Sessions.Login(r.Context(), auth.LoginRequest{
		Email:      req.Email,
		Password:   req.Password,
		Mode:       auth.LoginMode(req.Mode),
		TenantHint: req.Tenant,
		IPAddress:  clientIP(r),
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, auth.ErrAccessDenied):
			writeError(w, r, http.StatusForbidden, "access denied")
		default:
			writeError(w, r, http.StatusInternalServerError, "login failed")
		}
		return
	}
	a.deliver(w, r, http.StatusOK, sess)
}

func (a *API) handleOAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req oauthLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Provider == "" || req.Token == "" {
		writeError(w, r, http.StatusBadRequest, "provider and token are required")
		return
	}

	sess, err := a.opts.Sessions.OAuthLogin(r.Context(), auth.OAuthLoginRequest{
		Provider:  req.Provider,
		Token:     req.Token,
		Mode:      auth.LoginMode(req.Mode),
		IPAddress: clientIP(r),
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, auth.ErrAccessDenied):
			writeError(w, r, http.StatusForbidden, "access denied")
		default:
			writeError(w, r, http.StatusInternalServerError, "login failed")
		}
		return
	}
	a.deliver(w, r, http.StatusOK, sess)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	presented := cookieValue(r, refreshCookie)
	if presented == "" {
		var req refreshRequest
		if err := decodeJSON(w, r, &req); err == nil {
			presented = req.RefreshToken
		}
	}
	if presented == "" {
		writeError(w, r, http.StatusBadRequest, "refresh token is required")
		return
	}

	sess, err := a.opts.Sessions.Refresh(r.Context(), presented, clientIP(r))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRefresh) {
			// The old cookie is dead either way; make the client drop it.
			if wantsCookies(r) {
				a.clearSessionCookies(w)
			}
			writeUnauthorized(w, r, "invalid")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "refresh failed")
		return
	}
	a.deliver(w, r, http.StatusOK, sess)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	refresh := cookieValue(r, refreshCookie)
	access := requestToken(r)
	if refresh == "" {
		var req refreshRequest
		if err := decodeJSON(w, r, &req); err == nil {
			refresh = req.RefreshToken
		}
	}

	if err := a.opts.Sessions.Logout(r.Context(), refresh, access, clientIP(r)); err != nil {
		writeError(w, r, http.StatusInternalServerError, "logout failed")
		return
	}
	a.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, r, "invalid")
		return
	}
	sess, err := a.opts.Sessions.SessionInfo(r.Context(), principal.ID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "session lookup failed")
		return
	}
	resp := map[string]any{
		"principal": sess.Principal,
		"firm":      sess.Firm,
	}
	if gs, ok := auth.GhostSessionFromContext(r.Context()); ok {
		resp["ghost_session"] = gs
	}
	writeJSON(w, http.StatusOK, resp)
}
