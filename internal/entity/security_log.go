package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SecurityAction string

const (
	SignInSuccess    SecurityAction = "signin_success"
	SignInFailed     SecurityAction = "signin_failed"
	SignInForced     SecurityAction = "signin_forced"
	SignOut          SecurityAction = "signout"
	PasswordResetAct SecurityAction = "password_reset"
	SessionRevoked   SecurityAction = "session_revoked"
	SessionEvicted   SecurityAction = "session_evicted"
	PremiumSync      SecurityAction = "premium_sync"
	TokenAnomaly     SecurityAction = "token_anomaly"
)

type SecurityLog struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	UserID *uuid.UUID `gorm:"type:uuid;index"`
	User   *User      `gorm:"constraint:OnDelete:SET NULL"`

	IPAddress *string        `gorm:"type:varchar(45)"`
	Action    SecurityAction `gorm:"type:security_action;not null"`

	Metadata datatypes.JSON

	CreatedAt time.Time
}
