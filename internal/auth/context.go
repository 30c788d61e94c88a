package auth

import "context"

type principalContextKey struct{}
type tenantContextKey struct{}
type ghostContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal *Principal) context.Context {
	if principal == nil {
		return ctx
	}
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext extracts the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// ContextWithTenant attaches the resolved tenant scope to the context.
func ContextWithTenant(ctx context.Context, tc TenantContext) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tc)
}

// TenantFromContext extracts the tenant scope attached by the gatekeeper.
func TenantFromContext(ctx context.Context) (TenantContext, bool) {
	if ctx == nil {
		return TenantContext{}, false
	}
	v, ok := ctx.Value(tenantContextKey{}).(TenantContext)
	return v, ok
}

// ContextWithGhostSession records the ghost session applied to this request
// so downstream handlers can attribute their actions to it.
func ContextWithGhostSession(ctx context.Context, gs *GhostSession) context.Context {
	if gs == nil {
		return ctx
	}
	return context.WithValue(ctx, ghostContextKey{}, gs)
}

// GhostSessionFromContext returns the ghost session applied to this request,
// if any.
func GhostSessionFromContext(ctx context.Context) (*GhostSession, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(ghostContextKey{}).(*GhostSession)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
