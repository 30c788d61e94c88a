package httpapi

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bridgelayer.app/internal/auth"
)

type fakeSessions struct {
	login     func(auth.LoginRequest) (*auth.Session, error)
	oauth     func(auth.OAuthLoginRequest) (*auth.Session, error)
	refresh   func(string) (*auth.Session, error)
	logout    func(refresh, access string) error
	info      func(string) (*auth.Session, error)
	principal func(string) (*auth.Principal, error)
}

func (f *fakeSessions) Login(_ context.Context, req auth.LoginRequest) (*auth.Session, error) {
	return f.login(req)
}

func (f *fakeSessions) OAuthLogin(_ context.Context, req auth.OAuthLoginRequest) (*auth.Session, error) {
	return f.oauth(req)
}

func (f *fakeSessions) Refresh(_ context.Context, presented, _ string) (*auth.Session, error) {
	return f.refresh(presented)
}

func (f *fakeSessions) Logout(_ context.Context, refreshToken, accessToken, _ string) error {
	if f.logout == nil {
		return nil
	}
	return f.logout(refreshToken, accessToken)
}

func (f *fakeSessions) SessionInfo(_ context.Context, id string) (*auth.Session, error) {
	return f.info(id)
}

func (f *fakeSessions) LoadPrincipal(_ context.Context, id string) (*auth.Principal, error) {
	return f.principal(id)
}

type fakeTokens struct {
	verify func(string) (*auth.AccessClaims, error)
}

func (f *fakeTokens) VerifyAccessToken(_ context.Context, token string) (*auth.AccessClaims, error) {
	return f.verify(token)
}

func (f *fakeTokens) AccessTTL() time.Duration  { return 15 * time.Minute }
func (f *fakeTokens) RefreshTTL() time.Duration { return 7 * 24 * time.Hour }

type fakeTenants struct {
	validate func(*auth.Principal, string) (auth.TenantContext, error)
}

func (f *fakeTenants) Validate(_ context.Context, p *auth.Principal, slug string) (auth.TenantContext, error) {
	return f.validate(p, slug)
}

type fakeGhosts struct {
	start   func(adminID, firmID, purpose, notes string) (*auth.GhostSession, error)
	end     func(token, adminID string) error
	list    func(callerID string) ([]*auth.GhostSession, error)
	resolve func(token, adminID string) (*auth.GhostSession, error)
}

func (f *fakeGhosts) Start(_ context.Context, adminID, firmID, purpose, notes string) (*auth.GhostSession, error) {
	return f.start(adminID, firmID, purpose, notes)
}

func (f *fakeGhosts) End(_ context.Context, token, adminID string) error {
	return f.end(token, adminID)
}

func (f *fakeGhosts) ListActive(_ context.Context, callerID string) ([]*auth.GhostSession, error) {
	return f.list(callerID)
}

func (f *fakeGhosts) Resolve(_ context.Context, token, adminID string) (*auth.GhostSession, error) {
	return f.resolve(token, adminID)
}

func activePrincipal(id string, role auth.Role, firmID string) *auth.Principal {
	p := &auth.Principal{ID: id, Email: id + "@example.com", Role: role, Status: auth.UserStatusActive}
	if firmID != "" {
		p.FirmID = &firmID
	}
	return p
}

func claimsFor(p *auth.Principal) *auth.AccessClaims {
	return &auth.AccessClaims{
		Role:      p.Role,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: p.ID,
			ID:      "jti-" + p.ID,
		},
	}
}

// defaultFakes wires a happy-path API around one principal; individual tests
// override the hooks they exercise.
func defaultFakes(p *auth.Principal) (*fakeSessions, *fakeTokens, *fakeTenants, *fakeGhosts) {
	sessions := &fakeSessions{
		login:     func(auth.LoginRequest) (*auth.Session, error) { return &auth.Session{Principal: p}, nil },
		oauth:     func(auth.OAuthLoginRequest) (*auth.Session, error) { return &auth.Session{Principal: p}, nil },
		refresh:   func(string) (*auth.Session, error) { return &auth.Session{Principal: p}, nil },
		info:      func(string) (*auth.Session, error) { return &auth.Session{Principal: p}, nil },
		principal: func(string) (*auth.Principal, error) { return p, nil },
	}
	tokens := &fakeTokens{verify: func(token string) (*auth.AccessClaims, error) {
		if token == "good-token" {
			return claimsFor(p), nil
		}
		return nil, auth.ErrTokenInvalid
	}}
	tenants := &fakeTenants{validate: func(_ *auth.Principal, slug string) (auth.TenantContext, error) {
		return auth.TenantContext{FirmID: "firm-1", Subdomain: slug}, nil
	}}
	ghosts := &fakeGhosts{
		start:   func(_, firmID, _, _ string) (*auth.GhostSession, error) { return &auth.GhostSession{TargetFirmID: firmID}, nil },
		end:     func(string, string) error { return nil },
		list:    func(string) ([]*auth.GhostSession, error) { return nil, nil },
		resolve: func(string, string) (*auth.GhostSession, error) { return nil, auth.ErrNotFound },
	}
	return sessions, tokens, tenants, ghosts
}

func newTestAPI(t *testing.T, sessions SessionManager, tokens TokenVerifier, tenants TenantScope, ghosts GhostManager) *API {
	t.Helper()
	api, err := New(Options{
		Sessions: sessions,
		Tokens:   tokens,
		Tenants:  tenants,
		Ghosts:   ghosts,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return api
}
