package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"bridgelayer.app/internal/ids"
	"bridgelayer.app/internal/obs"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour

	tokenTypeAccess = "access"

	// refreshTokenBytes gives 256 bits of entropy per refresh token.
	refreshTokenBytes = 32
)

// Blacklist is consulted on every access-token verification so that tokens
// can be invalidated before their natural expiry. Implementations live in
// internal/blacklist.
type Blacklist interface {
	Add(ctx context.Context, jti, reason string, ttl time.Duration) error
	Contains(ctx context.Context, jti string) (bool, error)
}

// AccessClaims is the deterministic claim set carried by access tokens. The
// firm/tenant claims are advisory: authorization decisions re-check the
// principal's persisted firm association on every request.
type AccessClaims struct {
	Email     string `json:"email,omitempty"`
	Role      Role   `json:"role"`
	FirmID    string `json:"firm_id,omitempty"`
	TenantID  string `json:"tenant_id,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies access tokens and owns the refresh-token
// rotation and revocation logic.
type TokenService struct {
	store      Store
	blacklist  Blacklist
	signingKey []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// TokenOption configures TokenService behavior.
type TokenOption func(*TokenService) error

// WithSigningKey sets the process-wide HS256 signing key.
func WithSigningKey(key []byte) TokenOption {
	return func(s *TokenService) error {
		if len(key) < 32 {
			return errors.New("auth: signing key must be at least 32 bytes")
		}
		s.signingKey = key
		return nil
	}
}

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) error {
		s.issuer = strings.TrimSpace(issuer)
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithBlacklist wires the access-token denylist checked on verification.
func WithBlacklist(bl Blacklist) TokenOption {
	return func(s *TokenService) error {
		s.blacklist = bl
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewTokenService constructs a TokenService. A signing key is required.
func NewTokenService(store Store, opts ...TokenOption) (*TokenService, error) {
	svc := &TokenService{
		store:      store,
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	if len(svc.signingKey) == 0 {
		return nil, errors.New("auth: signing key is required")
	}
	return svc, nil
}

// MintAccessToken signs a short-lived access token for the principal. The
// tenantID may be empty for platform principals operating outside a firm
// scope.
func (s *TokenService) MintAccessToken(principal *Principal, tenantID string) (string, time.Time, error) {
	if principal == nil || principal.ID == "" {
		return "", time.Time{}, ErrInvalidInput
	}
	now := s.now().UTC()
	exp := now.Add(s.accessTTL)

	claims := AccessClaims{
		Email:     principal.Email,
		Role:      principal.Role,
		TenantID:  tenantID,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   principal.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	if principal.FirmID != nil {
		claims.FirmID = *principal.FirmID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

// VerifyAccessToken checks signature, expiry and blacklist membership, in
// that order. The returned claims identify the caller; authorization beyond
// identity must re-load the principal from the store.
func (s *TokenService) VerifyAccessToken(ctx context.Context, token string) (*AccessClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		obs.TokenVerifications.WithLabelValues("invalid").Inc()
		return nil, ErrTokenInvalid
	}

	claims, err := s.parseSigned(token)
	if err != nil {
		obs.TokenVerifications.WithLabelValues("invalid").Inc()
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != tokenTypeAccess {
		obs.TokenVerifications.WithLabelValues("invalid").Inc()
		return nil, ErrTokenInvalid
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		obs.TokenVerifications.WithLabelValues("invalid").Inc()
		return nil, ErrTokenInvalid
	}
	if claims.ExpiresAt == nil || s.now().After(claims.ExpiresAt.Time) {
		obs.TokenVerifications.WithLabelValues("expired").Inc()
		return nil, ErrTokenExpired
	}
	if s.blacklist != nil && claims.ID != "" {
		denied, err := s.blacklist.Contains(ctx, claims.ID)
		if err != nil {
			// A denylist outage must not silently pass revoked tokens.
			return nil, fmt.Errorf("blacklist lookup: %w", err)
		}
		if denied {
			obs.TokenVerifications.WithLabelValues("revoked").Inc()
			return nil, ErrTokenRevoked
		}
	}
	obs.TokenVerifications.WithLabelValues("ok").Inc()
	return claims, nil
}

// parseSigned validates the signature only; expiry is checked separately so
// that expired and revoked tokens report distinct reasons.
func (s *TokenService) parseSigned(token string) (*AccessClaims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	parsed, err := parser.ParseWithClaims(token, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenInvalid
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// IssueRefreshToken generates a fresh refresh token for the user and stores
// its hash. The plaintext is returned exactly once and never persisted.
func (s *TokenService) IssueRefreshToken(ctx context.Context, userID string) (string, *RefreshToken, error) {
	if strings.TrimSpace(userID) == "" {
		return "", nil, ErrInvalidInput
	}
	secret := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", nil, err
	}
	plaintext := base64.RawURLEncoding.EncodeToString(secret)

	now := s.now().UTC()
	rec := &RefreshToken{
		ID:        ids.New(),
		UserID:    userID,
		TokenHash: hashRefreshToken(plaintext),
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTTL),
	}
	if err := s.store.RefreshTokens(ctx).Create(ctx, rec); err != nil {
		return "", nil, err
	}
	return plaintext, rec, nil
}

// RotateRefreshToken exchanges a presented refresh token for a new pair,
// revoking the presented token first. The revoke is a conditional update at
// the store, so two concurrent rotations of the same token yield exactly one
// success; the loser observes ErrTokenAlreadyUsed.
func (s *TokenService) RotateRefreshToken(ctx context.Context, presented string) (TokenPair, *Principal, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		obs.RefreshRotations.WithLabelValues("invalid").Inc()
		return TokenPair{}, nil, ErrNotFound
	}

	tokens := s.store.RefreshTokens(ctx)
	record, err := tokens.FindByHash(ctx, hashRefreshToken(presented))
	if err != nil {
		obs.RefreshRotations.WithLabelValues("not_found").Inc()
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrNotFound
		}
		return TokenPair{}, nil, err
	}
	if record.Revoked() {
		obs.RefreshRotations.WithLabelValues("replayed").Inc()
		return TokenPair{}, nil, ErrTokenAlreadyUsed
	}
	if s.now().After(record.ExpiresAt) {
		obs.RefreshRotations.WithLabelValues("expired").Inc()
		return TokenPair{}, nil, ErrTokenExpired
	}

	// Revoke before minting. The conditional update is the serialization
	// point for concurrent rotations of the same token.
	if err := tokens.Revoke(ctx, record.ID, s.now().UTC()); err != nil {
		obs.RefreshRotations.WithLabelValues("replayed").Inc()
		return TokenPair{}, nil, err
	}

	principal, err := s.store.Users(ctx).Find(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrNotFound
		}
		return TokenPair{}, nil, err
	}
	if principal.Status != UserStatusActive {
		obs.RefreshRotations.WithLabelValues("denied").Inc()
		return TokenPair{}, nil, ErrAccessDenied
	}

	pair, err := s.MintPair(ctx, principal, firmIDOf(principal))
	if err != nil {
		return TokenPair{}, nil, err
	}
	obs.RefreshRotations.WithLabelValues("ok").Inc()
	return pair, principal, nil
}

// MintPair issues a fresh access/refresh pair for the principal.
func (s *TokenService) MintPair(ctx context.Context, principal *Principal, tenantID string) (TokenPair, error) {
	access, accessExp, err := s.MintAccessToken(principal, tenantID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, rec, err := s.IssueRefreshToken(ctx, principal.ID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

// RevokeRefreshToken invalidates a presented refresh token. It is idempotent:
// revoking an unknown or already-revoked token succeeds.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, presented string) error {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return nil
	}
	tokens := s.store.RefreshTokens(ctx)
	record, err := tokens.FindByHash(ctx, hashRefreshToken(presented))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if err := tokens.Revoke(ctx, record.ID, s.now().UTC()); err != nil {
		if errors.Is(err, ErrTokenAlreadyUsed) || errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// RevokeAllForUser invalidates every live refresh token a user holds. Used
// for security incidents and forced sign-out.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidInput
	}
	return s.store.RefreshTokens(ctx).RevokeAllForUser(ctx, userID, s.now().UTC())
}

// BlacklistAccessToken denylists an access token's jti until its natural
// expiry so it fails verification immediately. The token's signature must
// still check out; expiry is not required, so a just-expired token can be
// listed during incident response without error.
func (s *TokenService) BlacklistAccessToken(ctx context.Context, token, reason string) error {
	if s.blacklist == nil {
		return errors.New("auth: no blacklist configured")
	}
	claims, err := s.parseSigned(token)
	if err != nil {
		return ErrTokenInvalid
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return ErrTokenInvalid
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if ttl <= 0 {
		// Already past natural expiry; nothing to deny.
		return nil
	}
	return s.blacklist.Add(ctx, claims.ID, reason, ttl)
}

// AccessTTL exposes the configured access-token lifetime for cookie max-age.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL exposes the configured refresh-token lifetime for cookie max-age.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

func hashRefreshToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func firmIDOf(p *Principal) string {
	if p == nil || p.FirmID == nil {
		return ""
	}
	return *p.FirmID
}
