package service

import (
	"context"
	"time"

	"savepantry/internal/entity"
	"savepantry/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PremiumSweeper periodically reconciles every subscriber's local premium flag
// against the billing oracle. The process bootstrap owns its lifecycle; nothing
// schedules itself at import time.
type PremiumSweeper struct {
	users         repository.UserRepository
	verifications repository.VerificationTokenRepository
	manager       *SessionManager
	billing       BillingClient
	logger        logrus.FieldLogger
	clock         Clock
	sleeper       Sleeper

	// Interval between sweeps; Pause is the fixed inter-subscriber delay that
	// keeps the oracle's rate limiter happy.
	Interval time.Duration
	Pause    time.Duration
	PageSize int

	stop chan struct{}
	done chan struct{}
}

func NewPremiumSweeper(
	users repository.UserRepository,
	verifications repository.VerificationTokenRepository,
	manager *SessionManager,
	billing BillingClient,
	logger logrus.FieldLogger,
	clock Clock,
	sleeper Sleeper,
	interval time.Duration,
	pause time.Duration,
) *PremiumSweeper {
	if interval == 0 {
		interval = 24 * time.Hour
	}
	if pause == 0 {
		pause = 100 * time.Millisecond
	}
	return &PremiumSweeper{
		users:         users,
		verifications: verifications,
		manager:       manager,
		billing:       billing,
		logger:        logger,
		clock:         clock,
		sleeper:       sleeper,
		Interval:      interval,
		Pause:         pause,
		PageSize:      200,
	}
}

func (w *PremiumSweeper) Start() {
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.loop()
}

func (w *PremiumSweeper) Stop() {
	if w.stop == nil {
		return
	}
	close(w.stop)
	<-w.done
}

func (w *PremiumSweeper) loop() {
	defer close(w.done)
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			if err := w.RunOnce(context.Background()); err != nil {
				w.logger.WithError(err).Error("premium sweep failed")
			}
		}
	}
}

// RunOnce sweeps all users with a subscriber id. A per-user oracle failure is
// logged and skipped; it never aborts the sweep. Downgraded users collapse back
// to the single-device policy immediately, keeping only the most recently
// created session. Expired session and verification-token cleanup piggyback on
// the sweep.
func (w *PremiumSweeper) RunOnce(ctx context.Context) error {
	updated := 0
	for offset := 0; ; offset += w.PageSize {
		users, err := w.users.ListWithSubscriber(ctx, w.PageSize, offset)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			break
		}
		for i := range users {
			if i > 0 || offset > 0 {
				if err := w.sleeper.Sleep(ctx, w.Pause); err != nil {
					return err
				}
			}
			if changed := w.reconcileUser(ctx, &users[i]); changed {
				updated++
			}
		}
		if len(users) < w.PageSize {
			break
		}
	}

	if err := w.manager.CleanupExpired(ctx); err != nil {
		w.logger.WithError(err).Warn("expired session cleanup failed")
	}
	if w.verifications != nil {
		if err := w.verifications.DeleteExpired(ctx); err != nil {
			w.logger.WithError(err).Warn("verification token cleanup failed")
		}
	}
	w.logger.WithField("updated", updated).Info("premium sweep finished")
	return nil
}

func (w *PremiumSweeper) reconcileUser(ctx context.Context, user *entity.User) bool {
	expiry, err := w.billing.EntitlementExpiry(ctx, user.BillingSubscriberID)
	if err != nil {
		w.logger.WithError(err).WithField("user_id", user.ID).Warn("sweep oracle call failed")
		return false
	}
	active := expiry != nil && expiry.After(w.clock.Now())
	if active == user.IsPremium {
		return false
	}

	if err := w.users.UpdatePremium(ctx, user.ID, active); err != nil {
		w.logger.WithError(err).WithField("user_id", user.ID).Error("premium flag update failed")
		return false
	}
	w.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"premium": active,
	}).Info("premium status changed")

	if !active {
		w.collapseSessions(ctx, user.ID)
	}
	return true
}

// collapseSessions enforces the device cap right after a downgrade: the most
// recently created session survives, the rest are revoked.
func (w *PremiumSweeper) collapseSessions(ctx context.Context, userID uuid.UUID) {
	active, err := w.manager.sessions.FindActiveByUser(ctx, userID)
	if err != nil {
		w.logger.WithError(err).WithField("user_id", userID).Error("session lookup failed during downgrade")
		return
	}
	if len(active) <= 1 {
		return
	}
	// FindActiveByUser orders by created_at DESC; keep the newest.
	if _, err := w.manager.RevokeAllForUser(ctx, userID, active[0].ID); err != nil {
		w.logger.WithError(err).WithField("user_id", userID).Error("session collapse failed during downgrade")
	}
}
