package auth

import (
	"context"
	"errors"
	"testing"
)

func TestTenantValidatePlatformTierAnyFirm(t *testing.T) {
	store := newMemStore()
	store.addFirm(&Firm{ID: "firm-1", Slug: "acme-legal", Status: FirmStatusActive})
	store.addFirm(&Firm{ID: "firm-2", Slug: "other-llp", Status: FirmStatusActive})
	v, err := NewTenantValidator(store)
	if err != nil {
		t.Fatalf("NewTenantValidator: %v", err)
	}

	for _, role := range PlatformRoles {
		admin := &Principal{ID: "admin-1", Role: role, Status: UserStatusActive}
		for _, slug := range []string{"acme-legal", "other-llp"} {
			tc, err := v.Validate(context.Background(), admin, slug)
			if err != nil {
				t.Fatalf("role %s slug %s: %v", role, slug, err)
			}
			if tc.Subdomain != slug {
				t.Fatalf("role %s: unexpected subdomain %q", role, tc.Subdomain)
			}
		}
	}
}

func TestTenantValidatePlatformTierUnknownFirm(t *testing.T) {
	store := newMemStore()
	v, _ := NewTenantValidator(store)
	admin := &Principal{ID: "admin-1", Role: RoleAdmin, Status: UserStatusActive}

	if _, err := v.Validate(context.Background(), admin, "no-such-firm"); !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
}

func TestTenantValidateFirmTierOwnFirm(t *testing.T) {
	store := newMemStore()
	store.addFirm(&Firm{ID: "firm-1", Slug: "acme-legal", Status: FirmStatusActive})
	v, _ := NewTenantValidator(store)

	user := &Principal{ID: "user-1", Role: RoleAttorney, FirmID: strPtr("firm-1"), Status: UserStatusActive}
	tc, err := v.Validate(context.Background(), user, "acme-legal")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if tc.FirmID != "firm-1" || tc.Subdomain != "acme-legal" {
		t.Fatalf("unexpected tenant context: %+v", tc)
	}
}

func TestTenantValidateFirmTierMismatch(t *testing.T) {
	store := newMemStore()
	store.addFirm(&Firm{ID: "firm-1", Slug: "acme-legal", Status: FirmStatusActive})
	store.addFirm(&Firm{ID: "firm-2", Slug: "other-llp", Status: FirmStatusActive})
	v, _ := NewTenantValidator(store)

	for _, role := range FirmRoles {
		user := &Principal{ID: "user-1", Role: role, FirmID: strPtr("firm-1"), Status: UserStatusActive}
		if _, err := v.Validate(context.Background(), user, "other-llp"); !errors.Is(err, ErrAccessDenied) {
			t.Fatalf("role %s: expected ErrAccessDenied, got %v", role, err)
		}
	}
}

func TestTenantValidateNoFirmAssociation(t *testing.T) {
	store := newMemStore()
	store.addFirm(&Firm{ID: "firm-1", Slug: "acme-legal", Status: FirmStatusActive})
	v, _ := NewTenantValidator(store)

	// A firm-tier principal without a firm association can never enter a
	// tenant scope, even one that exists.
	orphan := &Principal{ID: "user-1", Role: RoleClient, Status: UserStatusActive}
	if _, err := v.Validate(context.Background(), orphan, "acme-legal"); !errors.Is(err, ErrNoFirmAssociation) {
		t.Fatalf("expected ErrNoFirmAssociation, got %v", err)
	}

	// Same outcome when the associated firm row has gone away.
	dangling := &Principal{ID: "user-2", Role: RoleClient, FirmID: strPtr("firm-gone"), Status: UserStatusActive}
	if _, err := v.Validate(context.Background(), dangling, "acme-legal"); !errors.Is(err, ErrNoFirmAssociation) {
		t.Fatalf("expected ErrNoFirmAssociation for dangling firm, got %v", err)
	}
}

func TestTenantValidateInput(t *testing.T) {
	store := newMemStore()
	v, _ := NewTenantValidator(store)

	if _, err := v.Validate(context.Background(), nil, "acme-legal"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for nil principal, got %v", err)
	}
	user := &Principal{ID: "user-1", Role: RoleAttorney, FirmID: strPtr("firm-1")}
	if _, err := v.Validate(context.Background(), user, "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank slug, got %v", err)
	}
}

func TestTenantValidateSlugNormalized(t *testing.T) {
	store := newMemStore()
	store.addFirm(&Firm{ID: "firm-1", Slug: "acme-legal", Status: FirmStatusActive})
	v, _ := NewTenantValidator(store)

	user := &Principal{ID: "user-1", Role: RoleAttorney, FirmID: strPtr("firm-1"), Status: UserStatusActive}
	tc, err := v.Validate(context.Background(), user, "  ACME-Legal ")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if tc.Subdomain != "acme-legal" {
		t.Fatalf("expected normalized subdomain, got %q", tc.Subdomain)
	}
}
