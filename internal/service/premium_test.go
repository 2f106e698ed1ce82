package service

import (
	"context"
	"io"
	"testing"
	"time"

	"savepantry/internal/entity"
	"savepantry/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newBillingUser(t *testing.T, users *memUserRepo, premium bool) *entity.User {
	t.Helper()
	user := &entity.User{
		Username:            "alice",
		Email:               "alice@example.com",
		BillingSubscriberID: utils.SubscriberID("alice@example.com"),
		IsPremium:           premium,
	}
	require.NoError(t, users.Create(context.Background(), user))
	return user
}

func futureExpiry(clock Clock) *time.Time {
	expiry := clock.Now().Add(30 * 24 * time.Hour)
	return &expiry
}

func pastExpiry(clock Clock) *time.Time {
	expiry := clock.Now().Add(-time.Hour)
	return &expiry
}

func TestCheckStatusTrustsLocalTrue(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	users := newMemUserRepo()
	billing := &fakeBilling{}
	reconciler := NewPremiumReconciler(users, billing, nil, discardLogger(), clock, &fakeSleeper{}, PremiumConfig{})

	user := newBillingUser(t, users, true)
	assert.True(t, reconciler.CheckStatus(context.Background(), user))
	assert.Zero(t, billing.calls, "local true must not hit the oracle")
}

func TestCheckStatusDoubleChecksLocalFalse(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	users := newMemUserRepo()
	billing := &fakeBilling{responses: []billingResponse{{expiry: futureExpiry(clock)}}}
	reconciler := NewPremiumReconciler(users, billing, nil, discardLogger(), clock, &fakeSleeper{}, PremiumConfig{})

	user := newBillingUser(t, users, false)
	assert.True(t, reconciler.CheckStatus(context.Background(), user))
	assert.Equal(t, 1, billing.calls)

	// The confirmed result is persisted locally.
	stored, err := users.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPremium)
}

func TestCheckStatusExpiredEntitlementStaysFalse(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	users := newMemUserRepo()
	billing := &fakeBilling{responses: []billingResponse{{expiry: pastExpiry(clock)}}}
	reconciler := NewPremiumReconciler(users, billing, nil, discardLogger(), clock, &fakeSleeper{}, PremiumConfig{})

	user := newBillingUser(t, users, false)
	assert.False(t, reconciler.CheckStatus(context.Background(), user))
	stored, _ := users.FindByID(context.Background(), user.ID)
	assert.False(t, stored.IsPremium)
}

func TestCheckStatusDegradesToLocalOnOracleError(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	users := newMemUserRepo()
	billing := &fakeBilling{responses: []billingResponse{{err: ErrOracleUnavailable}}}
	reconciler := NewPremiumReconciler(users, billing, nil, discardLogger(), clock, &fakeSleeper{}, PremiumConfig{})

	user := newBillingUser(t, users, false)
	assert.False(t, reconciler.CheckStatus(context.Background(), user))

	// The degraded answer must not be written back as confirmed truth.
	stored, _ := users.FindByID(context.Background(), user.ID)
	assert.False(t, stored.IsPremium)
}

func TestCheckStatusServesConfirmedTrueFromCache(t *testing.T) {
	server := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	users := newMemUserRepo()
	billing := &fakeBilling{responses: []billingResponse{{expiry: futureExpiry(clock)}}}
	reconciler := NewPremiumReconciler(users, billing, cache, discardLogger(), clock, &fakeSleeper{}, PremiumConfig{CacheTTL: time.Minute})

	user := newBillingUser(t, users, false)
	require.True(t, reconciler.CheckStatus(context.Background(), user))
	require.Equal(t, 1, billing.calls)

	// A second check for a still-unpersisted-false user hits the cache, not the
	// oracle.
	user.IsPremium = false
	assert.True(t, reconciler.CheckStatus(context.Background(), user))
	assert.Equal(t, 1, billing.calls)

	// Only "1" is ever cached; expiry is bounded.
	value, err := server.Get(premiumCacheKey(user))
	require.NoError(t, err)
	assert.Equal(t, "1", value)
}

func TestCheckStatusWithRetrySucceedsMidSequence(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	users := newMemUserRepo()
	billing := &fakeBilling{responses: []billingResponse{
		{err: ErrOracleUnavailable},
		{expiry: pastExpiry(clock)},
		{expiry: futureExpiry(clock)},
	}}
	sleeper := &fakeSleeper{}
	reconciler := NewPremiumReconciler(users, billing, nil, discardLogger(), clock, sleeper, PremiumConfig{
		RetryAttempts: 3,
		RetryDelay:    2 * time.Second,
	})

	user := newBillingUser(t, users, false)
	result := reconciler.CheckStatusWithRetry(context.Background(), user)
	assert.True(t, result.Premium)
	assert.True(t, result.Updated)
	assert.Equal(t, 3, billing.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, sleeper.slept)
}

func TestCheckStatusWithRetryExhaustionFallsBackToLocal(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	users := newMemUserRepo()
	billing := &fakeBilling{responses: []billingResponse{{err: ErrOracleUnavailable}}}
	reconciler := NewPremiumReconciler(users, billing, nil, discardLogger(), clock, &fakeSleeper{}, PremiumConfig{RetryAttempts: 3})

	user := newBillingUser(t, users, false)
	result := reconciler.CheckStatusWithRetry(context.Background(), user)
	assert.False(t, result.Premium)
	assert.False(t, result.Updated)
	assert.Equal(t, 3, billing.calls)
}

func TestCheckStatusWithRetryStopsOnCancelledContext(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	users := newMemUserRepo()
	billing := &fakeBilling{responses: []billingResponse{{expiry: pastExpiry(clock)}}}
	reconciler := NewPremiumReconciler(users, billing, nil, discardLogger(), clock, &fakeSleeper{}, PremiumConfig{RetryAttempts: 5})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	user := newBillingUser(t, users, false)
	result := reconciler.CheckStatusWithRetry(ctx, user)
	assert.False(t, result.Premium)
	assert.Equal(t, 1, billing.calls, "the retry loop bails once the sleeper reports cancellation")
}
