package httpapi

import (
	"errors"
	"net/http"

	"bridgelayer.app/internal/auth"
)

type ghostStartRequest struct {
	TargetFirmID string `json:"target_firm_id"`
	Purpose      string `json:"purpose"`
	Notes        string `json:"notes,omitempty"`
}

func (a *API) handleGhostStart(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, r, "invalid")
		return
	}

	var req ghostStartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	gs, err := a.opts.Ghosts.Start(r.Context(), principal.ID, req.TargetFirmID, req.Purpose, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNotAuthorized):
			writeError(w, r, http.StatusForbidden, "platform role required")
		case errors.Is(err, auth.ErrTenantNotFound):
			writeError(w, r, http.StatusNotFound, "firm not found")
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, "target firm and purpose are required")
		default:
			writeError(w, r, http.StatusInternalServerError, "ghost session failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, gs)
}

func (a *API) handleGhostList(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, r, "invalid")
		return
	}

	sessions, err := a.opts.Ghosts.ListActive(r.Context(), principal.ID)
	if err != nil {
		if errors.Is(err, auth.ErrNotAuthorized) {
			writeError(w, r, http.StatusForbidden, "platform role required")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "ghost session lookup failed")
		return
	}
	if sessions == nil {
		sessions = []*auth.GhostSession{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ghost_sessions": sessions})
}

func (a *API) handleGhostEnd(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, r, "invalid")
		return
	}

	err := a.opts.Ghosts.End(r.Context(), r.PathValue("token"), principal.ID)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "ghost session not found")
		case errors.Is(err, auth.ErrAlreadyEnded):
			writeError(w, r, http.StatusConflict, "ghost session already ended")
		case errors.Is(err, auth.ErrNotAuthorized):
			writeError(w, r, http.StatusForbidden, "only the starter or a super admin may end this session")
		default:
			writeError(w, r, http.StatusInternalServerError, "ghost session failed")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
