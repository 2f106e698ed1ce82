package service

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type AuthConfig struct {
	// SessionTTL is the lifetime granted at creation and at each renewal.
	SessionTTL time.Duration
	// RenewWindow is the remaining-TTL threshold under which sliding renewal
	// triggers.
	RenewWindow time.Duration
	// EvictionGrace defers multi-session eviction while every active session is
	// younger than this, so two devices racing a fresh premium purchase are not
	// signed out mid-propagation.
	EvictionGrace time.Duration
	// RevokedRetention keeps revoked sessions around for inspection before the
	// cleanup job deletes them.
	RevokedRetention time.Duration

	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
}

func (c AuthConfig) sessionTTL() time.Duration {
	if c.SessionTTL > 0 {
		return c.SessionTTL
	}
	return 7 * 24 * time.Hour
}

func (c AuthConfig) renewWindow() time.Duration {
	if c.RenewWindow > 0 {
		return c.RenewWindow
	}
	return 24 * time.Hour
}

func (c AuthConfig) evictionGrace() time.Duration {
	if c.EvictionGrace > 0 {
		return c.EvictionGrace
	}
	return 5 * time.Minute
}

func (c AuthConfig) verificationTokenTTL() time.Duration {
	if c.VerificationTokenTTL > 0 {
		return c.VerificationTokenTTL
	}
	return 24 * time.Hour
}

func (c AuthConfig) resetTokenTTL() time.Duration {
	if c.ResetTokenTTL > 0 {
		return c.ResetTokenTTL
	}
	return 30 * time.Minute
}

type Mailer interface {
	SendVerificationEmail(ctx context.Context, email string, token string) error
	SendPasswordResetEmail(ctx context.Context, email string, token string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash string, password string) bool
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// Sleeper abstracts the pauses in retry loops and the reconciliation sweep so
// tests can script them instead of sleeping.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type RealSleeper struct{}

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type BcryptPasswordHasher struct {
	Cost int
}

func (h BcryptPasswordHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func (h BcryptPasswordHasher) Verify(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
