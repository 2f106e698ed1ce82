package entity

import (
	"time"

	"github.com/google/uuid"
)

// Session is one device installation's bearer credential. TokenFingerprint is a
// fast deterministic digest used only as the lookup key; TokenHash is the slow
// bcrypt seal that actually decides authentication.
type Session struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index"`
	User   User      `gorm:"constraint:OnDelete:CASCADE"`

	TokenHash        string `gorm:"type:text;not null"`
	TokenFingerprint string `gorm:"type:varchar(64);not null;index"`

	// DeviceID identifies an installation, not a login event.
	DeviceID   string `gorm:"type:varchar(255);not null;index"`
	DeviceName string `gorm:"type:varchar(100)"`

	ExpiresAt time.Time `gorm:"index"`
	RevokedAt *time.Time

	CreatedAt time.Time
}

// Active reports whether the session still authenticates at the given instant.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}
