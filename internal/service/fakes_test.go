package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"savepantry/internal/entity"

	"github.com/google/uuid"
)

// --- clock & sleeper ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeSleeper struct {
	slept []time.Duration
}

func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	return ctx.Err()
}

// --- session repository ---

type memSessionRepo struct {
	mu       sync.Mutex
	clock    Clock
	sessions map[uuid.UUID]*entity.Session
}

func newMemSessionRepo(clock Clock) *memSessionRepo {
	return &memSessionRepo{clock: clock, sessions: make(map[uuid.UUID]*entity.Session)}
}

func (r *memSessionRepo) Create(ctx context.Context, s *entity.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.clock.Now()
	}
	clone := *s
	r.sessions[s.ID] = &clone
	return nil
}

func (r *memSessionRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	clone := *s
	return &clone, nil
}

func (r *memSessionRepo) FindActiveByFingerprint(ctx context.Context, fingerprint string) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	for _, s := range r.sessions {
		if s.TokenFingerprint == fingerprint && s.Active(now) {
			clone := *s
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) FindActiveByUser(ctx context.Context, userID uuid.UUID) ([]entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	var out []entity.Session
	for _, s := range r.sessions {
		if s.UserID == userID && s.Active(now) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memSessionRepo) ExtendExpiry(ctx context.Context, sessionID uuid.UUID, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok && s.RevokedAt == nil {
		s.ExpiresAt = expiresAt
	}
	return nil
}

func (r *memSessionRepo) Revoke(ctx context.Context, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok && s.RevokedAt == nil {
		now := r.clock.Now()
		s.RevokedAt = &now
	}
	return nil
}

func (r *memSessionRepo) RevokeAllByUser(ctx context.Context, userID uuid.UUID, exceptID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	var count int64
	for _, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil && s.ID != exceptID {
			s.RevokedAt = &now
			count++
		}
	}
	return count, nil
}

func (r *memSessionRepo) Delete(ctx context.Context, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}

func (r *memSessionRepo) CleanupExpired(ctx context.Context, revokedRetention time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	cutoff := now.Add(-revokedRetention)
	for id, s := range r.sessions {
		if !s.ExpiresAt.After(now) || (s.RevokedAt != nil && s.RevokedAt.Before(cutoff)) {
			delete(r.sessions, id)
		}
	}
	return nil
}

// --- user repository ---

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*entity.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]*entity.User)}
}

func (r *memUserRepo) Create(ctx context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		// Insertion order stands in for the database's created_at ordering.
		u.CreatedAt = time.Unix(int64(len(r.users)+1), 0)
	}
	clone := *u
	r.users[u.ID] = &clone
	return nil
}

func (r *memUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	clone := *u
	return &clone, nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) Update(ctx context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *u
	r.users[u.ID] = &clone
	return nil
}

func (r *memUserRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.PasswordHash = &passwordHash
	}
	return nil
}

func (r *memUserRepo) UpdatePremium(ctx context.Context, userID uuid.UUID, premium bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.IsPremium = premium
	}
	return nil
}

func (r *memUserRepo) UpdatePushToken(ctx context.Context, userID uuid.UUID, pushToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.PushToken = &pushToken
	}
	return nil
}

func (r *memUserRepo) UpdateLanguage(ctx context.Context, userID uuid.UUID, language entity.Language) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.Language = language
	}
	return nil
}

func (r *memUserRepo) VerifyEmail(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		now := time.Now()
		u.EmailVerifiedAt = &now
	}
	return nil
}

func (r *memUserRepo) Delete(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, userID)
	return nil
}

func (r *memUserRepo) List(ctx context.Context, limit, offset int) ([]entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.User
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r *memUserRepo) ListWithSubscriber(ctx context.Context, limit, offset int) ([]entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.User
	for _, u := range r.users {
		if u.BillingSubscriberID != "" {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- verification token repository ---

type memVerificationRepo struct {
	mu     sync.Mutex
	clock  Clock
	tokens map[uuid.UUID]*entity.VerificationToken
}

func newMemVerificationRepo(clock Clock) *memVerificationRepo {
	return &memVerificationRepo{clock: clock, tokens: make(map[uuid.UUID]*entity.VerificationToken)}
}

func (r *memVerificationRepo) Create(ctx context.Context, t *entity.VerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	clone := *t
	r.tokens[t.ID] = &clone
	return nil
}

func (r *memVerificationRepo) FindValid(ctx context.Context, tokenHash string, tokenType entity.VerificationType) (*entity.VerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	for _, t := range r.tokens {
		if t.TokenHash == tokenHash && t.Type == tokenType && t.UsedAt == nil && t.ExpiresAt.After(now) {
			clone := *t
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memVerificationRepo) MarkUsed(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[id]; ok {
		now := r.clock.Now()
		t.UsedAt = &now
	}
	return nil
}

func (r *memVerificationRepo) InvalidateAllForUser(ctx context.Context, userID uuid.UUID, tokenType entity.VerificationType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	for _, t := range r.tokens {
		if t.UserID == userID && t.Type == tokenType && t.UsedAt == nil {
			t.UsedAt = &now
		}
	}
	return nil
}

func (r *memVerificationRepo) DeleteExpired(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	for id, t := range r.tokens {
		if !t.ExpiresAt.After(now) || t.UsedAt != nil {
			delete(r.tokens, id)
		}
	}
	return nil
}

// --- security log repository ---

type memSecurityLogRepo struct {
	mu   sync.Mutex
	logs []entity.SecurityLog
}

func (r *memSecurityLogRepo) Log(ctx context.Context, log *entity.SecurityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

func (r *memSecurityLogRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]entity.SecurityLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.SecurityLog
	for i := len(r.logs) - 1; i >= 0; i-- {
		if r.logs[i].UserID != nil && *r.logs[i].UserID == userID {
			out = append(out, r.logs[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memSecurityLogRepo) actions() []entity.SecurityAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.SecurityAction
	for _, l := range r.logs {
		out = append(out, l.Action)
	}
	return out
}

// --- billing oracle ---

type billingResponse struct {
	expiry *time.Time
	err    error
}

type fakeBilling struct {
	mu        sync.Mutex
	responses []billingResponse
	calls     int
}

func (b *fakeBilling) EntitlementExpiry(ctx context.Context, subscriberID string) (*time.Time, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if len(b.responses) == 0 {
		return nil, nil
	}
	response := b.responses[0]
	if len(b.responses) > 1 {
		b.responses = b.responses[1:]
	}
	return response.expiry, response.err
}
