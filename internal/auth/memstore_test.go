package auth

import (
	"context"
	"sync"
	"time"

	"bridgelayer.app/internal/audit"
)

// memStore is an in-memory Store used across the package tests. Its Revoke
// and End honor the same compare-and-set semantics the Postgres store gets
// from conditional updates, so rotation races behave identically.
type memStore struct {
	mu      sync.Mutex
	users   map[string]*Principal
	hashes  map[string]string
	firms   map[string]*Firm
	refresh map[string]*RefreshToken
	ghosts  map[string]*GhostSession
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[string]*Principal),
		hashes:  make(map[string]string),
		firms:   make(map[string]*Firm),
		refresh: make(map[string]*RefreshToken),
		ghosts:  make(map[string]*GhostSession),
	}
}

func (m *memStore) Users(context.Context) UserStore                 { return (*memUsers)(m) }
func (m *memStore) Firms(context.Context) FirmStore                 { return (*memFirms)(m) }
func (m *memStore) RefreshTokens(context.Context) RefreshTokenStore { return (*memRefresh)(m) }
func (m *memStore) GhostSessions(context.Context) GhostSessionStore { return (*memGhosts)(m) }

func (m *memStore) addUser(u *Principal, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hash, err := HashPassword(password)
	if err != nil {
		panic(err)
	}
	cp := *u
	m.users[u.ID] = &cp
	m.hashes[u.ID] = hash
}

func (m *memStore) addFirm(f *Firm) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *f
	m.firms[f.ID] = &cp
}

type memUsers memStore

func (m *memUsers) Create(_ context.Context, u *Principal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) Find(_ context.Context, id string) (*Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUsers) PasswordHash(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.hashes[id]; ok {
		return h, nil
	}
	return "", ErrNotFound
}

type memFirms memStore

func (m *memFirms) Find(_ context.Context, id string) (*Firm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.firms[id]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *memFirms) FindBySlug(_ context.Context, slug string) (*Firm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.firms {
		if f.Slug == slug {
			cp := *f
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

type memRefresh memStore

func (m *memRefresh) Create(_ context.Context, tok *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tok
	m.refresh[tok.ID] = &cp
	return nil
}

func (m *memRefresh) FindByHash(_ context.Context, tokenHash string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tok := range m.refresh {
		if tok.TokenHash == tokenHash {
			cp := *tok
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRefresh) Revoke(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.refresh[id]
	if !ok {
		return ErrNotFound
	}
	if tok.RevokedAt != nil {
		return ErrTokenAlreadyUsed
	}
	ts := at
	tok.RevokedAt = &ts
	return nil
}

func (m *memRefresh) RevokeAllForUser(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tok := range m.refresh {
		if tok.UserID == userID && tok.RevokedAt == nil {
			ts := at
			tok.RevokedAt = &ts
		}
	}
	return nil
}

type memGhosts memStore

func (m *memGhosts) Create(_ context.Context, gs *GhostSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *gs
	m.ghosts[gs.ID] = &cp
	return nil
}

func (m *memGhosts) FindByToken(_ context.Context, sessionToken string) (*GhostSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, gs := range m.ghosts {
		if gs.SessionToken == sessionToken {
			cp := *gs
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memGhosts) End(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	gs, ok := m.ghosts[id]
	if !ok {
		return ErrNotFound
	}
	if gs.EndedAt != nil {
		return ErrAlreadyEnded
	}
	ts := at
	gs.EndedAt = &ts
	return nil
}

func (m *memGhosts) ListActive(_ context.Context) ([]*GhostSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*GhostSession
	for _, gs := range m.ghosts {
		if gs.EndedAt == nil {
			cp := *gs
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memGhosts) ListActiveForAdmin(_ context.Context, adminUserID string) ([]*GhostSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*GhostSession
	for _, gs := range m.ghosts {
		if gs.EndedAt == nil && gs.AdminUserID == adminUserID {
			cp := *gs
			out = append(out, &cp)
		}
	}
	return out, nil
}

// memBlacklist is an in-process denylist for tests.
type memBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func newMemBlacklist() *memBlacklist {
	return &memBlacklist{entries: make(map[string]time.Time)}
}

func (b *memBlacklist) Add(_ context.Context, jti, _ string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[jti] = time.Now().Add(ttl)
	return nil
}

func (b *memBlacklist) Contains(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	until, ok := b.entries[jti]
	if !ok {
		return false, nil
	}
	return time.Now().Before(until), nil
}

// recordSink captures audit events for assertions.
type recordSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *recordSink) Log(_ context.Context, ev audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordSink) find(action, status string) (audit.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.Action == action && ev.Status == status {
			return ev, true
		}
	}
	return audit.Event{}, false
}

func (s *recordSink) count(action string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Action == action {
			n++
		}
	}
	return n
}

func strPtr(s string) *string { return &s }
