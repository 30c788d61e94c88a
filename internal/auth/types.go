package auth

import "time"

// Role is the closed set of roles a principal can hold. Platform-tier roles
// operate the back office across all firms; firm-tier roles are always bound
// to a single firm.
type Role string

const (
	RoleSuperAdmin      Role = "super_admin"
	RoleAdmin           Role = "admin"
	RolePlatformSupport Role = "platform_support"

	RoleFirmAdmin Role = "firm_admin"
	RoleAttorney  Role = "attorney"
	RoleParalegal Role = "paralegal"
	RoleClient    Role = "client"
)

// PlatformRoles lists the admin-tier roles in a stable order.
var PlatformRoles = []Role{RoleSuperAdmin, RoleAdmin, RolePlatformSupport}

// FirmRoles lists the tenant-bound roles in a stable order.
var FirmRoles = []Role{RoleFirmAdmin, RoleAttorney, RoleParalegal, RoleClient}

// IsPlatformTier reports whether the role belongs to the platform back office.
func (r Role) IsPlatformTier() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RolePlatformSupport:
		return true
	}
	return false
}

// IsFirmTier reports whether the role is bound to a firm.
func (r Role) IsFirmTier() bool {
	switch r {
	case RoleFirmAdmin, RoleAttorney, RoleParalegal, RoleClient:
		return true
	}
	return false
}

// IsSuperAdmin reports whether the role may act on resources owned by other
// platform operators.
func (r Role) IsSuperAdmin() bool { return r == RoleSuperAdmin }

// Valid reports whether the role is a member of the closed set.
func (r Role) Valid() bool { return r.IsPlatformTier() || r.IsFirmTier() }

// LoginMode selects which side of the platform a credential exchange targets.
// The back office and the firm portal share one login pipeline; the mode only
// constrains which role tier may authenticate through it.
type LoginMode string

const (
	ModeBridgelayer LoginMode = "bridgelayer"
	ModeFirm        LoginMode = "firm"
)

// Accepts reports whether a principal holding role may log in under the mode.
func (m LoginMode) Accepts(role Role) bool {
	switch m {
	case ModeBridgelayer:
		return role.IsPlatformTier()
	case ModeFirm:
		return role.IsFirmTier()
	}
	return false
}

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"

	FirmStatusActive   = "active"
	FirmStatusInactive = "inactive"
)

// Principal is an authenticated identity. It is re-fetched from the store on
// every request; callers must not cache it across requests.
type Principal struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Role      Role      `json:"role"`
	FirmID    *string   `json:"firm_id,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Firm is a tenant boundary. The slug doubles as the subdomain requests are
// scoped under.
type Firm struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RefreshToken is the persisted form of a long-lived credential. Only the
// SHA-256 hash of the plaintext is ever stored; the plaintext is returned to
// the client exactly once at issuance.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Revoked reports whether the token has been invalidated by rotation, logout
// or an explicit revoke.
func (t *RefreshToken) Revoked() bool { return t.RevokedAt != nil }

// GhostSession records a platform operator acting inside a target firm's
// context for support. It is a record with an explicit start/end boundary,
// not a credential: request-time application goes through GhostService.Resolve.
type GhostSession struct {
	ID           string     `json:"id"`
	SessionToken string     `json:"session_token"`
	AdminUserID  string     `json:"admin_user_id"`
	TargetFirmID string     `json:"target_firm_id"`
	Purpose      string     `json:"purpose"`
	Notes        string     `json:"notes,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// Active reports whether the session window is still open.
func (g *GhostSession) Active() bool { return g.EndedAt == nil }

// TenantContext scopes a single request to one firm. It is derived per
// request by the tenant validator and carried on the request context, never
// persisted.
type TenantContext struct {
	FirmID    string `json:"firm_id"`
	Subdomain string `json:"subdomain"`
}

// TokenPair carries freshly minted credentials along with their expirations.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}
