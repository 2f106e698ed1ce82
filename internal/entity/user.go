package entity

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

type Language string

const (
	LanguageFR Language = "fr"
	LanguageEN Language = "en"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Username     string    `gorm:"type:varchar(100);uniqueIndex;not null"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash *string   `gorm:"type:text"`
	Role         UserRole  `gorm:"type:user_role;default:'user';not null"`

	EmailVerifiedAt *time.Time

	// IsPremium is a cached projection of the billing oracle's truth. The
	// premium reconciler is the only writer outside of sign-up.
	IsPremium bool `gorm:"default:false;not null"`
	// BillingSubscriberID is derived from the normalized email at sign-up and
	// immutable afterwards.
	BillingSubscriberID string `gorm:"type:varchar(64);index"`

	PushToken *string  `gorm:"type:text"`
	Language  Language `gorm:"type:varchar(5);default:'fr';not null"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Sessions []Session
}
