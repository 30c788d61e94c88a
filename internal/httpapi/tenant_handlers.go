package httpapi

import (
	"net/http"

	"bridgelayer.app/internal/auth"
)

// handleWorkspace is the tenant-scoped entry point: it only runs after the
// gatekeeper has resolved the {slug} into a tenant context for the caller.
func (a *API) handleWorkspace(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, r, "invalid")
		return
	}
	tc, ok := auth.TenantFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}

	resp := map[string]any{
		"firm_id":   tc.FirmID,
		"subdomain": tc.Subdomain,
		"principal": map[string]any{
			"id":   principal.ID,
			"role": principal.Role,
		},
	}
	if gs, ok := auth.GhostSessionFromContext(r.Context()); ok {
		resp["ghost_session"] = map[string]any{
			"session_token":  gs.SessionToken,
			"target_firm_id": gs.TargetFirmID,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
