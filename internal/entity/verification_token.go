package entity

import (
	"time"

	"github.com/google/uuid"
)

type VerificationType string

const (
	EmailVerify   VerificationType = "email_verify"
	PasswordReset VerificationType = "password_reset"
)

// VerificationToken is a single-use, short-lived out-of-band token delivered by
// email. Only a digest of the raw token is stored; requesting a new token
// invalidates all outstanding ones of the same type.
type VerificationToken struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index"`
	User   User      `gorm:"constraint:OnDelete:CASCADE"`

	TokenHash string           `gorm:"type:varchar(64);not null;index:idx_verification_lookup"`
	Type      VerificationType `gorm:"type:verification_type;not null;index:idx_verification_lookup"`

	ExpiresAt time.Time
	UsedAt    *time.Time

	CreatedAt time.Time
}
