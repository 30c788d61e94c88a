package auth

import (
	"context"
	"errors"
	"testing"

	"bridgelayer.app/internal/audit"
)

func newGhostFixture(t *testing.T) (*memStore, *recordSink, *GhostService) {
	t.Helper()
	store := newMemStore()
	store.addFirm(&Firm{ID: "firm-1", Slug: "acme-legal", Status: FirmStatusActive})
	store.addUser(&Principal{ID: "admin-1", Email: "ops@bridgelayer.example", Role: RoleAdmin, Status: UserStatusActive}, "pw")
	store.addUser(&Principal{ID: "admin-2", Email: "ops2@bridgelayer.example", Role: RoleAdmin, Status: UserStatusActive}, "pw")
	store.addUser(&Principal{ID: "super-1", Email: "root@bridgelayer.example", Role: RoleSuperAdmin, Status: UserStatusActive}, "pw")
	store.addUser(&Principal{ID: "user-1", Email: "jane@acme-legal.example", Role: RoleAttorney, FirmID: strPtr("firm-1"), Status: UserStatusActive}, "pw")
	sink := &recordSink{}
	svc, err := NewGhostService(store, sink)
	if err != nil {
		t.Fatalf("NewGhostService: %v", err)
	}
	return store, sink, svc
}

func TestGhostStart(t *testing.T) {
	_, sink, svc := newGhostFixture(t)

	gs, err := svc.Start(context.Background(), "admin-1", "firm-1", "billing investigation", "ticket #4821")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if gs.SessionToken == "" {
		t.Fatal("expected a session token")
	}
	if !gs.Active() {
		t.Fatal("freshly started session must be active")
	}
	ev, ok := sink.find("admin:ghost_mode:started", audit.StatusSuccess)
	if !ok {
		t.Fatal("expected started audit event")
	}
	if ev.ActorID != "admin-1" || ev.TargetID != "firm-1" {
		t.Fatalf("unexpected audit attribution: %+v", ev)
	}
}

func TestGhostStartRequiresPlatformTier(t *testing.T) {
	_, _, svc := newGhostFixture(t)

	if _, err := svc.Start(context.Background(), "user-1", "firm-1", "snooping", ""); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized for firm-tier starter, got %v", err)
	}
}

func TestGhostStartUnknownFirm(t *testing.T) {
	_, _, svc := newGhostFixture(t)

	if _, err := svc.Start(context.Background(), "admin-1", "firm-missing", "support", ""); !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
}

func TestGhostStartValidatesInput(t *testing.T) {
	_, _, svc := newGhostFixture(t)

	if _, err := svc.Start(context.Background(), "admin-1", "firm-1", "  ", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank purpose, got %v", err)
	}
}

func TestGhostEndByStarter(t *testing.T) {
	store, sink, svc := newGhostFixture(t)

	gs, err := svc.Start(context.Background(), "admin-1", "firm-1", "support", "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := svc.End(context.Background(), gs.SessionToken, "admin-1"); err != nil {
		t.Fatalf("End: %v", err)
	}

	stored, err := store.GhostSessions(context.Background()).FindByToken(context.Background(), gs.SessionToken)
	if err != nil {
		t.Fatalf("FindByToken: %v", err)
	}
	if stored.EndedAt == nil {
		t.Fatal("expected ended_at to be set")
	}
	if _, ok := sink.find("admin:ghost_mode:ended", audit.StatusSuccess); !ok {
		t.Fatal("expected ended audit event")
	}
}

func TestGhostEndByOtherAdminDenied(t *testing.T) {
	_, _, svc := newGhostFixture(t)

	gs, err := svc.Start(context.Background(), "admin-1", "firm-1", "support", "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := svc.End(context.Background(), gs.SessionToken, "admin-2"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized for non-starter admin, got %v", err)
	}
}

func TestGhostEndBySuperAdmin(t *testing.T) {
	_, sink, svc := newGhostFixture(t)

	gs, err := svc.Start(context.Background(), "admin-1", "firm-1", "support", "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := svc.End(context.Background(), gs.SessionToken, "super-1"); err != nil {
		t.Fatalf("End by super-admin: %v", err)
	}
	ev, ok := sink.find("admin:ghost_mode:ended", audit.StatusSuccess)
	if !ok {
		t.Fatal("expected ended audit event")
	}
	if ev.ActorID != "super-1" || ev.Details["started_by"] != "admin-1" {
		t.Fatalf("audit must attribute the ender and starter separately: %+v", ev)
	}
}

func TestGhostEndTwice(t *testing.T) {
	_, _, svc := newGhostFixture(t)

	gs, err := svc.Start(context.Background(), "admin-1", "firm-1", "support", "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := svc.End(context.Background(), gs.SessionToken, "admin-1"); err != nil {
		t.Fatalf("first End: %v", err)
	}
	if err := svc.End(context.Background(), gs.SessionToken, "admin-1"); !errors.Is(err, ErrAlreadyEnded) {
		t.Fatalf("expected ErrAlreadyEnded, got %v", err)
	}
}

func TestGhostEndUnknownToken(t *testing.T) {
	_, _, svc := newGhostFixture(t)

	if err := svc.End(context.Background(), "no-such-token", "admin-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGhostListActiveScoping(t *testing.T) {
	_, _, svc := newGhostFixture(t)

	if _, err := svc.Start(context.Background(), "admin-1", "firm-1", "support a", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Start(context.Background(), "admin-2", "firm-1", "support b", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}

	mine, err := svc.ListActive(context.Background(), "admin-1")
	if err != nil {
		t.Fatalf("ListActive admin: %v", err)
	}
	if len(mine) != 1 || mine[0].AdminUserID != "admin-1" {
		t.Fatalf("admin must only see own sessions, got %d", len(mine))
	}

	all, err := svc.ListActive(context.Background(), "super-1")
	if err != nil {
		t.Fatalf("ListActive super-admin: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("super-admin must see every open session, got %d", len(all))
	}

	if _, err := svc.ListActive(context.Background(), "user-1"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized for firm-tier caller, got %v", err)
	}
}

func TestGhostResolve(t *testing.T) {
	_, sink, svc := newGhostFixture(t)

	gs, err := svc.Start(context.Background(), "admin-1", "firm-1", "support", "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	resolved, err := svc.Resolve(context.Background(), gs.SessionToken, "admin-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.TargetFirmID != "firm-1" {
		t.Fatalf("unexpected target firm: %s", resolved.TargetFirmID)
	}
	if sink.count("admin:ghost_mode:applied") != 1 {
		t.Fatal("each resolve must produce an applied audit event")
	}

	// A different admin cannot ride someone else's session token.
	if _, err := svc.Resolve(context.Background(), gs.SessionToken, "admin-2"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}

	// Ended sessions no longer resolve.
	if err := svc.End(context.Background(), gs.SessionToken, "admin-1"); err != nil {
		t.Fatalf("End: %v", err)
	}
	if _, err := svc.Resolve(context.Background(), gs.SessionToken, "admin-1"); !errors.Is(err, ErrAlreadyEnded) {
		t.Fatalf("expected ErrAlreadyEnded, got %v", err)
	}
}
