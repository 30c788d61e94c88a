package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"bridgelayer.app/internal/audit"
	"bridgelayer.app/internal/ids"
	"bridgelayer.app/internal/obs"
)

// OAuthIdentity is the verified identity returned by an OAuth provider.
type OAuthIdentity struct {
	ProviderID string
	Email      string
	FirstName  string
	LastName   string
}

// OAuthVerifier verifies a provider-issued token and returns the identity it
// asserts. Implementations live in internal/oauth.
type OAuthVerifier interface {
	Verify(ctx context.Context, providerToken string) (OAuthIdentity, error)
}

// Session is the result of a successful credential exchange.
type Session struct {
	Principal *Principal `json:"principal"`
	Firm      *Firm      `json:"firm,omitempty"`
	Tokens    TokenPair  `json:"tokens"`
}

// LoginRequest carries a password credential exchange.
type LoginRequest struct {
	Email      string
	Password   string
	Mode       LoginMode
	TenantHint string
	IPAddress  string
}

// OAuthLoginRequest carries a provider-token credential exchange.
type OAuthLoginRequest struct {
	Provider  string
	Token     string
	Mode      LoginMode
	IPAddress string
}

// SessionService orchestrates login, OAuth login, refresh and logout. It owns
// no delivery decisions: the HTTP layer decides whether the resulting pair
// travels as cookies or in the response body.
type SessionService struct {
	store     Store
	tokens    *TokenService
	verifiers map[string]OAuthVerifier
	sink      audit.Sink
	now       func() time.Time
}

// SessionOption configures SessionService behavior.
type SessionOption func(*SessionService)

// WithOAuthVerifier registers a provider verifier under its provider name.
func WithOAuthVerifier(provider string, v OAuthVerifier) SessionOption {
	return func(s *SessionService) {
		if provider != "" && v != nil {
			s.verifiers[strings.ToLower(provider)] = v
		}
	}
}

// WithSessionClock overrides the time source (useful for tests).
func WithSessionClock(fn func() time.Time) SessionOption {
	return func(s *SessionService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewSessionService constructs a SessionService.
func NewSessionService(store Store, tokens *TokenService, sink audit.Sink, opts ...SessionOption) (*SessionService, error) {
	if store == nil || tokens == nil {
		return nil, errors.New("auth: store and token service are required")
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	svc := &SessionService{
		store:     store,
		tokens:    tokens,
		verifiers: make(map[string]OAuthVerifier),
		sink:      sink,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Login authenticates an email/password pair under the requested mode. Every
// failure surfaces as ErrInvalidCredentials (or ErrAccessDenied for an
// inactive firm) with the specific cause preserved only in the audit record.
func (s *SessionService) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeFirm
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		return nil, s.failLogin(ctx, mode, "", req.IPAddress, "missing_credentials", ErrInvalidCredentials)
	}

	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			verifyDummy(req.Password)
			return nil, s.failLogin(ctx, mode, "", req.IPAddress, "unknown_email", ErrInvalidCredentials)
		}
		return nil, err
	}

	hash, err := s.store.Users(ctx).PasswordHash(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if err := VerifyPassword(hash, req.Password); err != nil {
		return nil, s.failLogin(ctx, mode, user.ID, req.IPAddress, "wrong_password", ErrInvalidCredentials)
	}
	if user.Status != UserStatusActive {
		return nil, s.failLogin(ctx, mode, user.ID, req.IPAddress, "user_disabled", ErrInvalidCredentials)
	}
	if !mode.Accepts(user.Role) {
		return nil, s.failLogin(ctx, mode, user.ID, req.IPAddress, "mode_mismatch", ErrInvalidCredentials)
	}

	firm, err := s.firmFor(ctx, user)
	if err != nil {
		return nil, err
	}
	if user.Role.IsFirmTier() {
		if firm == nil {
			return nil, s.failLogin(ctx, mode, user.ID, req.IPAddress, "no_firm_association", ErrInvalidCredentials)
		}
		if firm.Status != FirmStatusActive {
			return nil, s.failLogin(ctx, mode, user.ID, req.IPAddress, "inactive_firm", ErrAccessDenied)
		}
		if hint := strings.TrimSpace(strings.ToLower(req.TenantHint)); hint != "" && hint != firm.Slug {
			return nil, s.failLogin(ctx, mode, user.ID, req.IPAddress, "tenant_mismatch", ErrAccessDenied)
		}
	}

	pair, err := s.tokens.MintPair(ctx, user, firmIDOf(user))
	if err != nil {
		return nil, err
	}

	obs.LoginAttempts.WithLabelValues(string(mode), "success").Inc()
	s.sink.Log(ctx, audit.Event{
		Action:     "auth:login",
		ActorID:    user.ID,
		TargetType: "user",
		TargetID:   user.ID,
		Status:     audit.StatusSuccess,
		Details:    map[string]string{"mode": string(mode)},
		IPAddress:  req.IPAddress,
	})
	return &Session{Principal: user, Firm: firm, Tokens: pair}, nil
}

// OAuthLogin verifies a provider token and issues the same session shape as
// Login. Unknown identities are provisioned as firm-portal client accounts
// pending a firm association.
func (s *SessionService) OAuthLogin(ctx context.Context, req OAuthLoginRequest) (*Session, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeFirm
	}
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	verifier, ok := s.verifiers[provider]
	if !ok {
		return nil, s.failLogin(ctx, mode, "", req.IPAddress, "unknown_provider", ErrInvalidCredentials)
	}

	identity, err := verifier.Verify(ctx, req.Token)
	if err != nil {
		return nil, s.failLogin(ctx, mode, "", req.IPAddress, "provider_rejected", ErrInvalidCredentials)
	}
	email := strings.TrimSpace(strings.ToLower(identity.Email))
	if email == "" {
		return nil, s.failLogin(ctx, mode, "", req.IPAddress, "provider_no_email", ErrInvalidCredentials)
	}

	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		user, err = s.provisionOAuthUser(ctx, identity, email)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if user.Status != UserStatusActive {
		return nil, s.failLogin(ctx, mode, user.ID, req.IPAddress, "user_disabled", ErrInvalidCredentials)
	}
	if !mode.Accepts(user.Role) {
		return nil, s.failLogin(ctx, mode, user.ID, req.IPAddress, "mode_mismatch", ErrInvalidCredentials)
	}

	firm, err := s.firmFor(ctx, user)
	if err != nil {
		return nil, err
	}
	if firm != nil && firm.Status != FirmStatusActive {
		return nil, s.failLogin(ctx, mode, user.ID, req.IPAddress, "inactive_firm", ErrAccessDenied)
	}

	pair, err := s.tokens.MintPair(ctx, user, firmIDOf(user))
	if err != nil {
		return nil, err
	}

	obs.LoginAttempts.WithLabelValues(string(mode), "success").Inc()
	s.sink.Log(ctx, audit.Event{
		Action:     "auth:oauth_login",
		ActorID:    user.ID,
		TargetType: "user",
		TargetID:   user.ID,
		Status:     audit.StatusSuccess,
		Details:    map[string]string{"mode": string(mode), "provider": provider},
		IPAddress:  req.IPAddress,
	})
	return &Session{Principal: user, Firm: firm, Tokens: pair}, nil
}

// Refresh rotates a presented refresh token. The caller-facing error is the
// uniform ErrInvalidRefresh; the internal reason goes to the audit trail.
func (s *SessionService) Refresh(ctx context.Context, presented, ipAddress string) (*Session, error) {
	pair, principal, err := s.tokens.RotateRefreshToken(ctx, presented)
	if err != nil {
		reason := rotationReason(err)
		s.sink.Log(ctx, audit.Event{
			Action:    "auth:refresh",
			Status:    audit.StatusFailed,
			Reason:    reason,
			IPAddress: ipAddress,
		})
		if isRotationFailure(err) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}

	firm, err := s.firmFor(ctx, principal)
	if err != nil {
		return nil, err
	}
	s.sink.Log(ctx, audit.Event{
		Action:     "auth:refresh",
		ActorID:    principal.ID,
		TargetType: "user",
		TargetID:   principal.ID,
		Status:     audit.StatusSuccess,
		IPAddress:  ipAddress,
	})
	return &Session{Principal: principal, Firm: firm, Tokens: pair}, nil
}

// Logout revokes the presented refresh token and, when an access token is
// supplied, denylists it for the remainder of its lifetime. Logout is
// idempotent: unknown and already-revoked tokens are treated as success.
func (s *SessionService) Logout(ctx context.Context, refreshToken, accessToken, ipAddress string) error {
	if err := s.tokens.RevokeRefreshToken(ctx, refreshToken); err != nil {
		// Infrastructure failure, not a credential problem.
		return err
	}
	if accessToken != "" {
		if err := s.tokens.BlacklistAccessToken(ctx, accessToken, "logout"); err != nil {
			// Best effort: the access token still dies at natural expiry.
			obs.Logger().Printf(`{"level":"warn","msg":"logout blacklist failed","err":%q}`, err.Error())
		}
	}
	actorID := ""
	if p, ok := PrincipalFromContext(ctx); ok {
		actorID = p.ID
	}
	s.sink.Log(ctx, audit.Event{
		Action:    "auth:logout",
		ActorID:   actorID,
		Status:    audit.StatusSuccess,
		IPAddress: ipAddress,
	})
	return nil
}

// SessionInfo returns a fresh principal and firm snapshot for "who am I"
// queries. No tokens are minted.
func (s *SessionService) SessionInfo(ctx context.Context, principalID string) (*Session, error) {
	principal, err := s.LoadPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	firm, err := s.firmFor(ctx, principal)
	if err != nil {
		return nil, err
	}
	return &Session{Principal: principal, Firm: firm}, nil
}

// LoadPrincipal fetches an active principal by id. Disabled users fail with
// ErrAccessDenied so a mid-session deactivation takes effect on the next
// request, not at token expiry.
func (s *SessionService) LoadPrincipal(ctx context.Context, principalID string) (*Principal, error) {
	principal, err := s.store.Users(ctx).Find(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if principal.Status != UserStatusActive {
		return nil, ErrAccessDenied
	}
	return principal, nil
}

func (s *SessionService) provisionOAuthUser(ctx context.Context, identity OAuthIdentity, email string) (*Principal, error) {
	now := s.now().UTC()
	user := &Principal{
		ID:        ids.New(),
		Email:     email,
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		Role:      RoleClient,
		Status:    UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Users(ctx).Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *SessionService) firmFor(ctx context.Context, user *Principal) (*Firm, error) {
	if user.FirmID == nil {
		return nil, nil
	}
	firm, err := s.store.Firms(ctx).Find(ctx, *user.FirmID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return firm, nil
}

func (s *SessionService) failLogin(ctx context.Context, mode LoginMode, actorID, ip, reason string, cause error) error {
	obs.LoginAttempts.WithLabelValues(string(mode), "failed").Inc()
	s.sink.Log(ctx, audit.Event{
		Action:    "auth:login",
		ActorID:   actorID,
		Status:    audit.StatusFailed,
		Reason:    reason,
		Details:   map[string]string{"mode": string(mode)},
		IPAddress: ip,
	})
	return cause
}

func rotationReason(err error) string {
	switch {
	case errors.Is(err, ErrTokenAlreadyUsed):
		return "already_used"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAccessDenied):
		return "user_disabled"
	default:
		return "store_error"
	}
}

func isRotationFailure(err error) bool {
	return errors.Is(err, ErrTokenAlreadyUsed) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAccessDenied)
}
