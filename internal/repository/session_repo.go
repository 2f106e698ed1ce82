package repository

import (
	"context"
	"errors"
	"time"

	"savepantry/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Session, error)
	// FindActiveByFingerprint returns a non-revoked, non-expired candidate for
	// the fingerprint. A hit is necessary but not sufficient to authenticate;
	// the caller must still verify the bcrypt seal.
	FindActiveByFingerprint(ctx context.Context, fingerprint string) (*entity.Session, error)
	FindActiveByUser(ctx context.Context, userID uuid.UUID) ([]entity.Session, error)
	ExtendExpiry(ctx context.Context, sessionID uuid.UUID, expiresAt time.Time) error
	Revoke(ctx context.Context, sessionID uuid.UUID) error
	// RevokeAllByUser revokes every active session of the user except the given
	// one (pass uuid.Nil to revoke all) and returns the number revoked.
	RevokeAllByUser(ctx context.Context, userID uuid.UUID, exceptID uuid.UUID) (int64, error)
	Delete(ctx context.Context, sessionID uuid.UUID) error
	// CleanupExpired deletes naturally expired sessions and sessions revoked
	// longer ago than the retention window.
	CleanupExpired(ctx context.Context, revokedRetention time.Duration) error
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, s *entity.Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *sessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	var session entity.Session
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&session).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &session, err
}

func (r *sessionRepository) FindActiveByFingerprint(ctx context.Context, fingerprint string) (*entity.Session, error) {
	var session entity.Session
	err := r.db.WithContext(ctx).
		Where("token_fingerprint = ? AND revoked_at IS NULL AND expires_at > NOW()", fingerprint).
		First(&session).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &session, err
}

func (r *sessionRepository) FindActiveByUser(ctx context.Context, userID uuid.UUID) ([]entity.Session, error) {
	var sessions []entity.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > NOW()", userID).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepository) ExtendExpiry(ctx context.Context, sessionID uuid.UUID, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&entity.Session{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("expires_at", expiresAt).
		Error
}

func (r *sessionRepository) Revoke(ctx context.Context, sessionID uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&entity.Session{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", &now).
		Error
}

func (r *sessionRepository) RevokeAllByUser(ctx context.Context, userID uuid.UUID, exceptID uuid.UUID) (int64, error) {
	now := time.Now()
	query := r.db.WithContext(ctx).
		Model(&entity.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID)
	if exceptID != uuid.Nil {
		query = query.Where("id <> ?", exceptID)
	}
	result := query.Update("revoked_at", &now)
	return result.RowsAffected, result.Error
}

func (r *sessionRepository) Delete(ctx context.Context, sessionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", sessionID).
		Delete(&entity.Session{}).
		Error
}

func (r *sessionRepository) CleanupExpired(ctx context.Context, revokedRetention time.Duration) error {
	cutoff := time.Now().Add(-revokedRetention)
	return r.db.WithContext(ctx).
		Where("expires_at < NOW() OR revoked_at < ?", cutoff).
		Delete(&entity.Session{}).
		Error
}
