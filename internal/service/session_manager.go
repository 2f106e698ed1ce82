package service

import (
	"context"
	"time"

	"savepantry/internal/entity"
	"savepantry/internal/repository"

	"github.com/google/uuid"
)

// SessionManager owns the session lifecycle: creation, sliding renewal,
// revocation and the non-premium device-cap policy. Sessions never leave a
// terminal state; a new sign-in always creates a new session.
type SessionManager struct {
	sessions repository.SessionRepository
	codec    TokenCodec
	clock    Clock
	config   AuthConfig
}

func NewSessionManager(
	sessions repository.SessionRepository,
	codec TokenCodec,
	clock Clock,
	config AuthConfig,
) *SessionManager {
	return &SessionManager{
		sessions: sessions,
		codec:    codec,
		clock:    clock,
		config:   config,
	}
}

// SessionConflict reports the device-cap violation a sign-in would cause.
type SessionConflict struct {
	ActiveSession *entity.Session
}

// CreateSession issues a fresh opaque token, persists its fingerprint and seal
// with a full TTL, and returns the raw token. The raw token is never stored.
// Device-cap policy is the caller's responsibility and must have been evaluated
// before calling this.
func (m *SessionManager) CreateSession(
	ctx context.Context,
	user *entity.User,
	deviceID string,
	deviceName string,
) (string, *entity.Session, error) {
	raw, err := m.codec.Issue()
	if err != nil {
		return "", nil, err
	}
	seal, err := m.codec.Seal(raw)
	if err != nil {
		return "", nil, err
	}

	session := &entity.Session{
		UserID:           user.ID,
		TokenHash:        seal,
		TokenFingerprint: m.codec.Fingerprint(raw),
		DeviceID:         deviceID,
		DeviceName:       deviceName,
		ExpiresAt:        m.clock.Now().Add(m.config.sessionTTL()),
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return "", nil, err
	}
	return raw, session, nil
}

// RenewIfNearExpiry extends the session to a full TTL when it has less than
// the renew window remaining. Idempotent and safe on every authenticated
// request; expired and revoked sessions are never renewed.
func (m *SessionManager) RenewIfNearExpiry(ctx context.Context, session *entity.Session) error {
	now := m.clock.Now()
	if !session.Active(now) {
		return nil
	}
	if session.ExpiresAt.Sub(now) >= m.config.renewWindow() {
		return nil
	}
	newExpiry := now.Add(m.config.sessionTTL())
	if err := m.sessions.ExtendExpiry(ctx, session.ID, newExpiry); err != nil {
		return err
	}
	session.ExpiresAt = newExpiry
	return nil
}

// ExtendNow is the explicit client-triggered renewal: it unconditionally grants
// a full TTL to an active session.
func (m *SessionManager) ExtendNow(ctx context.Context, session *entity.Session) error {
	now := m.clock.Now()
	if !session.Active(now) {
		return ErrInvalidToken
	}
	newExpiry := now.Add(m.config.sessionTTL())
	if err := m.sessions.ExtendExpiry(ctx, session.ID, newExpiry); err != nil {
		return err
	}
	session.ExpiresAt = newExpiry
	return nil
}

// ExtendByID loads a session and applies ExtendNow; used by the explicit
// renewal endpoint, where only the session id is at hand.
func (m *SessionManager) ExtendByID(ctx context.Context, sessionID uuid.UUID) (time.Time, error) {
	session, err := m.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return time.Time{}, err
	}
	if session == nil {
		return time.Time{}, ErrInvalidToken
	}
	if err := m.ExtendNow(ctx, session); err != nil {
		return time.Time{}, err
	}
	return session.ExpiresAt, nil
}

// Revoke is idempotent; revoking an already revoked session is a no-op.
func (m *SessionManager) Revoke(ctx context.Context, sessionID uuid.UUID) error {
	return m.sessions.Revoke(ctx, sessionID)
}

// RevokeAllForUser revokes every active session except the given one. Used on
// password reset, forced sign-in and premium downgrade.
func (m *SessionManager) RevokeAllForUser(ctx context.Context, userID uuid.UUID, exceptID uuid.UUID) (int64, error) {
	return m.sessions.RevokeAllByUser(ctx, userID, exceptID)
}

// EnforceSingleActiveDevice evaluates the non-premium device cap ahead of a
// sign-in. Premium users never conflict. A nil result means the sign-in may
// proceed.
func (m *SessionManager) EnforceSingleActiveDevice(
	ctx context.Context,
	user *entity.User,
	deviceID string,
) (*SessionConflict, error) {
	if user.IsPremium {
		return nil, nil
	}
	active, err := m.sessions.FindActiveByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	for i := range active {
		if active[i].DeviceID != deviceID {
			return &SessionConflict{ActiveSession: &active[i]}, nil
		}
	}
	return nil, nil
}

// EvictSurplus collapses a non-premium user back to a single active session,
// keeping the current one. Eviction is deferred while every active session is
// still within the grace window, so two devices racing a fresh premium
// purchase are not signed out while the entitlement propagates. Returns the
// number of sessions revoked.
func (m *SessionManager) EvictSurplus(
	ctx context.Context,
	user *entity.User,
	currentSessionID uuid.UUID,
) (int64, error) {
	if user.IsPremium {
		return 0, nil
	}
	active, err := m.sessions.FindActiveByUser(ctx, user.ID)
	if err != nil {
		return 0, err
	}
	if len(active) <= 1 {
		return 0, nil
	}

	graceCutoff := m.clock.Now().Add(-m.config.evictionGrace())
	allRecent := true
	for i := range active {
		if active[i].CreatedAt.Before(graceCutoff) {
			allRecent = false
			break
		}
	}
	if allRecent {
		return 0, nil
	}
	return m.sessions.RevokeAllByUser(ctx, user.ID, currentSessionID)
}

// CleanupExpired deletes naturally expired sessions and revoked sessions past
// the retention window.
func (m *SessionManager) CleanupExpired(ctx context.Context) error {
	retention := m.config.RevokedRetention
	if retention == 0 {
		retention = 15 * 24 * time.Hour
	}
	return m.sessions.CleanupExpired(ctx, retention)
}

// DeleteExpired removes a session detected as expired between lookup and
// check; expiry is otherwise handled lazily.
func (m *SessionManager) DeleteExpired(ctx context.Context, sessionID uuid.UUID) error {
	return m.sessions.Delete(ctx, sessionID)
}
