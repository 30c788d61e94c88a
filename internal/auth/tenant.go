package auth

import (
	"context"
	"errors"
	"strings"
)

// TenantValidator decides whether an authenticated principal may act within a
// requested firm scope. The check runs on every tenant-scoped route; the
// authoritative source is the principal's persisted firm association, never
// the advisory firm claim inside the access token.
type TenantValidator struct {
	store Store
}

// NewTenantValidator constructs a TenantValidator.
func NewTenantValidator(store Store) (*TenantValidator, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	return &TenantValidator{store: store}, nil
}

// Validate resolves the requested slug against the principal's tier:
// platform-tier principals may enter any existing firm; firm-tier principals
// may only enter their own. On success the returned TenantContext is attached
// to the request by the gatekeeper.
func (v *TenantValidator) Validate(ctx context.Context, principal *Principal, requestedSlug string) (TenantContext, error) {
	if principal == nil {
		return TenantContext{}, ErrInvalidInput
	}
	requestedSlug = strings.TrimSpace(strings.ToLower(requestedSlug))
	if requestedSlug == "" {
		return TenantContext{}, ErrInvalidInput
	}

	if principal.Role.IsPlatformTier() {
		firm, err := v.store.Firms(ctx).FindBySlug(ctx, requestedSlug)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return TenantContext{}, ErrTenantNotFound
			}
			return TenantContext{}, err
		}
		return TenantContext{FirmID: firm.ID, Subdomain: firm.Slug}, nil
	}

	if principal.FirmID == nil {
		return TenantContext{}, ErrNoFirmAssociation
	}
	firm, err := v.store.Firms(ctx).Find(ctx, *principal.FirmID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TenantContext{}, ErrNoFirmAssociation
		}
		return TenantContext{}, err
	}
	if firm.Slug != requestedSlug {
		return TenantContext{}, ErrAccessDenied
	}
	return TenantContext{FirmID: firm.ID, Subdomain: firm.Slug}, nil
}
