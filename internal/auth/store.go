package auth

import (
	"context"
	"time"
)

// Store describes the persistence operations the auth subsystem depends on.
// The application's wider data model (matters, documents, billing) lives
// behind its own repositories; this interface is deliberately narrow.
type Store interface {
	Users(ctx context.Context) UserStore
	Firms(ctx context.Context) FirmStore
	RefreshTokens(ctx context.Context) RefreshTokenStore
	GhostSessions(ctx context.Context) GhostSessionStore
}

// UserStore manages principals.
type UserStore interface {
	Create(ctx context.Context, u *Principal) error
	Find(ctx context.Context, id string) (*Principal, error)
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	// PasswordHash returns the stored digest for a user. Kept off Principal so
	// the digest never travels with the identity value.
	PasswordHash(ctx context.Context, id string) (string, error)
}

// FirmStore manages tenant records.
type FirmStore interface {
	Find(ctx context.Context, id string) (*Firm, error)
	FindBySlug(ctx context.Context, slug string) (*Firm, error)
}

// RefreshTokenStore manages the refresh-token lifecycle. Revoke must be a
// single conditional update: it succeeds only if the row is still unrevoked,
// which is what makes concurrent rotations of the same token race safely.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	// Revoke marks the token revoked. Returns ErrTokenAlreadyUsed when the row
	// exists but was already revoked, ErrNotFound when it does not exist.
	Revoke(ctx context.Context, id string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) error
}

// GhostSessionStore manages impersonation session records. End is conditional
// the same way Revoke is: exactly one caller can close a session.
type GhostSessionStore interface {
	Create(ctx context.Context, gs *GhostSession) error
	FindByToken(ctx context.Context, sessionToken string) (*GhostSession, error)
	// End closes the session. Returns ErrAlreadyEnded when it was already
	// closed, ErrNotFound when no such session exists.
	End(ctx context.Context, id string, at time.Time) error
	ListActive(ctx context.Context) ([]*GhostSession, error)
	ListActiveForAdmin(ctx context.Context, adminUserID string) ([]*GhostSession, error)
}
