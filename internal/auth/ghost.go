package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"bridgelayer.app/internal/audit"
	"bridgelayer.app/internal/ids"
	"bridgelayer.app/internal/obs"
)

// GhostService manages impersonation windows: a platform operator acting
// inside a target firm's context for support. Sessions never expire on their
// own; they are open until explicitly ended, and every lifecycle transition
// and request-time application is audited.
type GhostService struct {
	store Store
	sink  audit.Sink
	now   func() time.Time
}

// NewGhostService constructs a GhostService.
func NewGhostService(store Store, sink audit.Sink) (*GhostService, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &GhostService{store: store, sink: sink, now: time.Now}, nil
}

// WithGhostClock overrides the time source. Test hook.
func (s *GhostService) WithGhostClock(fn func() time.Time) *GhostService {
	if fn != nil {
		s.now = fn
	}
	return s
}

// Start opens a ghost session for adminID against targetFirmID. The caller
// must hold a platform-tier role and the firm must exist.
func (s *GhostService) Start(ctx context.Context, adminID, targetFirmID, purpose, notes string) (*GhostSession, error) {
	adminID = strings.TrimSpace(adminID)
	targetFirmID = strings.TrimSpace(targetFirmID)
	purpose = strings.TrimSpace(purpose)
	if adminID == "" || targetFirmID == "" || purpose == "" {
		return nil, ErrInvalidInput
	}

	admin, err := s.store.Users(ctx).Find(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if !admin.Role.IsPlatformTier() {
		return nil, ErrNotAuthorized
	}

	firm, err := s.store.Firms(ctx).Find(ctx, targetFirmID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}

	gs := &GhostSession{
		ID:           ids.New(),
		SessionToken: uuid.NewString(),
		AdminUserID:  admin.ID,
		TargetFirmID: firm.ID,
		Purpose:      purpose,
		Notes:        strings.TrimSpace(notes),
		StartedAt:    s.now().UTC(),
	}
	if err := s.store.GhostSessions(ctx).Create(ctx, gs); err != nil {
		return nil, err
	}

	obs.GhostSessionsActive.Inc()
	s.sink.Log(ctx, audit.Event{
		Action:     "admin:ghost_mode:started",
		ActorID:    admin.ID,
		TargetType: "firm",
		TargetID:   firm.ID,
		Status:     audit.StatusSuccess,
		Details:    map[string]string{"session_token": gs.SessionToken, "purpose": purpose},
	})
	return gs, nil
}

// End closes a ghost session. Only the original starter or a super-admin may
// end it; the store's conditional update guarantees a session is ended at
// most once.
func (s *GhostService) End(ctx context.Context, sessionToken, requestingAdminID string) error {
	sessionToken = strings.TrimSpace(sessionToken)
	requestingAdminID = strings.TrimSpace(requestingAdminID)
	if sessionToken == "" || requestingAdminID == "" {
		return ErrInvalidInput
	}

	gs, err := s.store.GhostSessions(ctx).FindByToken(ctx, sessionToken)
	if err != nil {
		return err
	}
	if !gs.Active() {
		return ErrAlreadyEnded
	}

	if gs.AdminUserID != requestingAdminID {
		requester, err := s.store.Users(ctx).Find(ctx, requestingAdminID)
		if err != nil {
			return err
		}
		if !requester.Role.IsSuperAdmin() {
			return ErrNotAuthorized
		}
	}

	if err := s.store.GhostSessions(ctx).End(ctx, gs.ID, s.now().UTC()); err != nil {
		return err
	}

	obs.GhostSessionsActive.Dec()
	s.sink.Log(ctx, audit.Event{
		Action:     "admin:ghost_mode:ended",
		ActorID:    requestingAdminID,
		TargetType: "firm",
		TargetID:   gs.TargetFirmID,
		Status:     audit.StatusSuccess,
		Details:    map[string]string{"session_token": gs.SessionToken, "started_by": gs.AdminUserID},
	})
	return nil
}

// ListActive returns the caller's open sessions, or every open session when
// the caller is a super-admin.
func (s *GhostService) ListActive(ctx context.Context, callerID string) ([]*GhostSession, error) {
	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		return nil, ErrInvalidInput
	}
	caller, err := s.store.Users(ctx).Find(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if !caller.Role.IsPlatformTier() {
		return nil, ErrNotAuthorized
	}
	if caller.Role.IsSuperAdmin() {
		return s.store.GhostSessions(ctx).ListActive(ctx)
	}
	return s.store.GhostSessions(ctx).ListActiveForAdmin(ctx, callerID)
}

// Resolve returns the active session identified by sessionToken, provided it
// belongs to adminID. This is the only path by which a ghost session becomes
// the effective tenant scope of a request, and each use is a discrete audit
// event attributable to the session token.
func (s *GhostService) Resolve(ctx context.Context, sessionToken, adminID string) (*GhostSession, error) {
	sessionToken = strings.TrimSpace(sessionToken)
	if sessionToken == "" || adminID == "" {
		return nil, ErrInvalidInput
	}
	gs, err := s.store.GhostSessions(ctx).FindByToken(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if !gs.Active() {
		return nil, ErrAlreadyEnded
	}
	if gs.AdminUserID != adminID {
		return nil, ErrNotAuthorized
	}
	s.sink.Log(ctx, audit.Event{
		Action:     "admin:ghost_mode:applied",
		ActorID:    adminID,
		TargetType: "firm",
		TargetID:   gs.TargetFirmID,
		Status:     audit.StatusSuccess,
		Details:    map[string]string{"session_token": gs.SessionToken},
	})
	return gs, nil
}
