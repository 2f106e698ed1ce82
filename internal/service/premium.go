package service

import (
	"context"
	"time"

	"savepantry/internal/entity"
	"savepantry/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type PremiumConfig struct {
	// CacheTTL bounds the redis cache of confirmed-true entitlements. The cache
	// only ever skips redundant "is it still true" calls; it is never consulted
	// for a downgrade decision.
	CacheTTL time.Duration
	// RetryAttempts and RetryDelay bound the explicit sync endpoint's retry
	// loop against purchase-propagation delay.
	RetryAttempts int
	RetryDelay    time.Duration
}

func (c PremiumConfig) cacheTTL() time.Duration {
	if c.CacheTTL > 0 {
		return c.CacheTTL
	}
	return 5 * time.Minute
}

func (c PremiumConfig) retryAttempts() int {
	if c.RetryAttempts > 0 {
		return c.RetryAttempts
	}
	return 3
}

func (c PremiumConfig) retryDelay() time.Duration {
	if c.RetryDelay > 0 {
		return c.RetryDelay
	}
	return 2 * time.Second
}

// PremiumReconciler keeps the local premium flag — a cache of the billing
// oracle's truth — filled. Local "true" is trusted optimistically; local
// "false" is double-checked against the oracle because that is the direction a
// user has an incentive to game.
type PremiumReconciler struct {
	users   repository.UserRepository
	billing BillingClient
	cache   *redis.Client
	logger  logrus.FieldLogger
	clock   Clock
	sleeper Sleeper
	config  PremiumConfig
}

func NewPremiumReconciler(
	users repository.UserRepository,
	billing BillingClient,
	cache *redis.Client,
	logger logrus.FieldLogger,
	clock Clock,
	sleeper Sleeper,
	config PremiumConfig,
) *PremiumReconciler {
	return &PremiumReconciler{
		users:   users,
		billing: billing,
		cache:   cache,
		logger:  logger,
		clock:   clock,
		sleeper: sleeper,
		config:  config,
	}
}

// CheckStatus resolves the user's premium entitlement. Oracle unavailability
// degrades to the local flag and never fails the calling request.
func (r *PremiumReconciler) CheckStatus(ctx context.Context, user *entity.User) bool {
	if user.IsPremium {
		return true
	}
	if user.BillingSubscriberID == "" || r.billing == nil {
		return false
	}

	if r.cachedTrue(ctx, user) {
		r.persistPremium(ctx, user)
		return true
	}

	active, err := r.oracleActive(ctx, user.BillingSubscriberID)
	if err != nil {
		r.logger.WithError(err).WithField("user_id", user.ID).Warn("premium check degraded to local flag")
		return user.IsPremium
	}
	if active {
		r.persistPremium(ctx, user)
		r.cacheTrue(ctx, user)
		return true
	}
	return false
}

// CheckStatusWithRetry backs the explicit client-triggered sync. It retries on
// oracle unavailability and on a still-negative result, to tolerate the
// propagation window right after a purchase, then falls back to the best-known
// local status.
func (r *PremiumReconciler) CheckStatusWithRetry(ctx context.Context, user *entity.User) PremiumSyncResult {
	if user.IsPremium {
		return PremiumSyncResult{Premium: true}
	}
	if user.BillingSubscriberID == "" || r.billing == nil {
		return PremiumSyncResult{Premium: false}
	}

	attempts := r.config.retryAttempts()
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := r.sleeper.Sleep(ctx, r.config.retryDelay()); err != nil {
				break
			}
		}
		active, err := r.oracleActive(ctx, user.BillingSubscriberID)
		if err != nil {
			r.logger.WithError(err).WithField("user_id", user.ID).Warn("premium sync attempt failed")
			continue
		}
		if active {
			r.persistPremium(ctx, user)
			r.cacheTrue(ctx, user)
			return PremiumSyncResult{Premium: true, Updated: true}
		}
	}
	return PremiumSyncResult{Premium: user.IsPremium}
}

func (r *PremiumReconciler) oracleActive(ctx context.Context, subscriberID string) (bool, error) {
	expiry, err := r.billing.EntitlementExpiry(ctx, subscriberID)
	if err != nil {
		return false, err
	}
	return expiry != nil && expiry.After(r.clock.Now()), nil
}

func (r *PremiumReconciler) persistPremium(ctx context.Context, user *entity.User) {
	if user.IsPremium {
		return
	}
	if err := r.users.UpdatePremium(ctx, user.ID, true); err != nil {
		r.logger.WithError(err).WithField("user_id", user.ID).Error("premium cache fill failed")
		return
	}
	user.IsPremium = true
}

func (r *PremiumReconciler) cachedTrue(ctx context.Context, user *entity.User) bool {
	if r.cache == nil {
		return false
	}
	value, err := r.cache.Get(ctx, premiumCacheKey(user)).Result()
	return err == nil && value == "1"
}

func (r *PremiumReconciler) cacheTrue(ctx context.Context, user *entity.User) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, premiumCacheKey(user), "1", r.config.cacheTTL()).Err(); err != nil {
		r.logger.WithError(err).Warn("premium cache write failed")
	}
}

func premiumCacheKey(user *entity.User) string {
	return "premium:" + user.ID.String()
}
