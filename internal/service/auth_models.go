package service

import (
	"time"

	"savepantry/internal/entity"
)

type SignUpInput struct {
	Username   string
	Email      string
	Password   string
	DeviceID   string
	DeviceName string
	PushToken  *string
	Language   string
}

type SignInInput struct {
	Email      string
	Password   string
	DeviceID   string
	DeviceName string
	PushToken  *string
	// Force revokes every prior session before signing in, as the remediation
	// for a multiple_session conflict.
	Force     bool
	IPAddress *string
}

type SignInResult struct {
	Token     string
	ExpiresAt time.Time
	User      *entity.User
	Session   *entity.Session
}

type PremiumSyncResult struct {
	Premium bool
	Updated bool
}
