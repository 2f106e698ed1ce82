package repository

import (
	"context"
	"errors"
	"time"

	"savepantry/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VerificationTokenRepository interface {
	Create(ctx context.Context, token *entity.VerificationToken) error
	FindValid(ctx context.Context, tokenHash string, tokenType entity.VerificationType) (*entity.VerificationToken, error)
	MarkUsed(ctx context.Context, id uuid.UUID) error
	// InvalidateAllForUser marks every outstanding token of the given type as
	// used, so only the most recently issued one can succeed.
	InvalidateAllForUser(ctx context.Context, userID uuid.UUID, tokenType entity.VerificationType) error
	// DeleteExpired removes tokens that can never validate again: expired ones
	// and used ones.
	DeleteExpired(ctx context.Context) error
}

type verificationTokenRepository struct {
	db *gorm.DB
}

func NewVerificationTokenRepository(db *gorm.DB) VerificationTokenRepository {
	return &verificationTokenRepository{db: db}
}

func (r *verificationTokenRepository) Create(ctx context.Context, t *entity.VerificationToken) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *verificationTokenRepository) FindValid(
	ctx context.Context,
	tokenHash string,
	tokenType entity.VerificationType,
) (*entity.VerificationToken, error) {
	var token entity.VerificationToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND type = ?", tokenHash, tokenType).
		Where("used_at IS NULL AND expires_at > NOW()").
		First(&token).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &token, err
}

func (r *verificationTokenRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&entity.VerificationToken{}).
		Where("id = ?", id).
		Update("used_at", &now).
		Error
}

func (r *verificationTokenRepository) InvalidateAllForUser(
	ctx context.Context,
	userID uuid.UUID,
	tokenType entity.VerificationType,
) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&entity.VerificationToken{}).
		Where("user_id = ? AND type = ? AND used_at IS NULL", userID, tokenType).
		Update("used_at", &now).
		Error
}

func (r *verificationTokenRepository) DeleteExpired(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Where("expires_at < NOW() OR used_at IS NOT NULL").
		Delete(&entity.VerificationToken{}).
		Error
}
