package auth

import (
	"context"
	"database/sql"
	"time"

	"bridgelayer.app/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. Revocation and session-end are
// single conditional updates checked by affected-row count; the store never
// does read-modify-write across two statements.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(context.Context) UserStore                 { return &userStore{db: s.db} }
func (s *PGStore) Firms(context.Context) FirmStore                 { return &firmStore{db: s.db} }
func (s *PGStore) RefreshTokens(context.Context) RefreshTokenStore { return &refreshStore{db: s.db} }
func (s *PGStore) GhostSessions(context.Context) GhostSessionStore { return &ghostStore{db: s.db} }

// User store ---------------------------------------------------------------
type userStore struct{ db *sql.DB }

const userColumns = `id, email, first_name, last_name, role, firm_id, status, created_at, updated_at`

func (s *userStore) Create(ctx context.Context, u *Principal) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, first_name, last_name, role, firm_id, status) values($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Email, u.FirstName, u.LastName, string(u.Role), nullString(u.FirmID), u.Status,
	)
	return err
}

func (s *userStore) Find(ctx context.Context, id string) (*Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email)
	return scanUser(row)
}

func (s *userStore) PasswordHash(ctx context.Context, id string) (string, error) {
	row := s.db.QueryRowContext(ctx,
		`select password_hash from users where id=$1`, id)
	var hash string
	if err := row.Scan(&hash); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", err
	}
	return hash, nil
}

func scanUser(row *sql.Row) (*Principal, error) {
	var (
		u      Principal
		role   string
		firmID sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &role, &firmID, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Role = Role(role)
	if firmID.Valid {
		u.FirmID = &firmID.String
	}
	return &u, nil
}

// Firm store ---------------------------------------------------------------
type firmStore struct{ db *sql.DB }

const firmColumns = `id, slug, name, status, created_at, updated_at`

func (s *firmStore) Find(ctx context.Context, id string) (*Firm, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+firmColumns+` from firms where id=$1`, id)
	return scanFirm(row)
}

func (s *firmStore) FindBySlug(ctx context.Context, slug string) (*Firm, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+firmColumns+` from firms where slug=$1`, slug)
	return scanFirm(row)
}

func scanFirm(row *sql.Row) (*Firm, error) {
	var f Firm
	if err := row.Scan(&f.ID, &f.Slug, &f.Name, &f.Status, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

// Refresh token store ------------------------------------------------------
type refreshStore struct{ db *sql.DB }

func (s *refreshStore) Create(ctx context.Context, tok *RefreshToken) error {
	if tok.ID == "" {
		tok.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into refresh_tokens(id, user_id, token_hash, expires_at) values($1,$2,$3,$4)`,
		tok.ID, tok.UserID, tok.TokenHash, tok.ExpiresAt,
	)
	return err
}

func (s *refreshStore) FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, token_hash, created_at, expires_at, revoked_at from refresh_tokens where token_hash=$1`,
		tokenHash)
	var (
		tok     RefreshToken
		revoked sql.NullTime
	)
	if err := row.Scan(&tok.ID, &tok.UserID, &tok.TokenHash, &tok.CreatedAt, &tok.ExpiresAt, &revoked); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if revoked.Valid {
		tok.RevokedAt = &revoked.Time
	}
	return &tok, nil
}

// Revoke is the serialization point for rotation: the where-clause on
// revoked_at guarantees at most one caller ever sees an affected row.
func (s *refreshStore) Revoke(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked_at=$2 where id=$1 and revoked_at is null`,
		id, at)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTokenAlreadyUsed
	}
	return nil
}

func (s *refreshStore) RevokeAllForUser(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked_at=$2 where user_id=$1 and revoked_at is null`,
		userID, at)
	return err
}

// Ghost session store ------------------------------------------------------
type ghostStore struct{ db *sql.DB }

const ghostColumns = `id, session_token, admin_user_id, target_firm_id, purpose, notes, started_at, ended_at`

func (s *ghostStore) Create(ctx context.Context, gs *GhostSession) error {
	if gs.ID == "" {
		gs.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into ghost_sessions(id, session_token, admin_user_id, target_firm_id, purpose, notes, started_at) values($1,$2,$3,$4,$5,$6,$7)`,
		gs.ID, gs.SessionToken, gs.AdminUserID, gs.TargetFirmID, gs.Purpose, gs.Notes, gs.StartedAt,
	)
	return err
}

func (s *ghostStore) FindByToken(ctx context.Context, sessionToken string) (*GhostSession, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+ghostColumns+` from ghost_sessions where session_token=$1`, sessionToken)
	return scanGhost(row.Scan)
}

func (s *ghostStore) End(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update ghost_sessions set ended_at=$2 where id=$1 and ended_at is null`,
		id, at)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlreadyEnded
	}
	return nil
}

func (s *ghostStore) ListActive(ctx context.Context) ([]*GhostSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+ghostColumns+` from ghost_sessions where ended_at is null order by started_at desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGhosts(rows)
}

func (s *ghostStore) ListActiveForAdmin(ctx context.Context, adminUserID string) ([]*GhostSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+ghostColumns+` from ghost_sessions where admin_user_id=$1 and ended_at is null order by started_at desc`,
		adminUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGhosts(rows)
}

func collectGhosts(rows *sql.Rows) ([]*GhostSession, error) {
	var out []*GhostSession
	for rows.Next() {
		gs, err := scanGhost(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, gs)
	}
	return out, rows.Err()
}

func scanGhost(scan func(...any) error) (*GhostSession, error) {
	var (
		gs    GhostSession
		ended sql.NullTime
	)
	if err := scan(&gs.ID, &gs.SessionToken, &gs.AdminUserID, &gs.TargetFirmID, &gs.Purpose, &gs.Notes, &gs.StartedAt, &ended); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if ended.Valid {
		gs.EndedAt = &ended.Time
	}
	return &gs, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
