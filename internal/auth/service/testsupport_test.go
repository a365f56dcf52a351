package service

import (
	"context"
	"sync"
	"testing"
	"time"

	attemptdomain "merchant-trust-platform/backend/internal/attempt/domain"
	challengedomain "merchant-trust-platform/backend/internal/challenge/domain"
	"merchant-trust-platform/backend/internal/devcode"
	devicedomain "merchant-trust-platform/backend/internal/device/domain"
	merchantdomain "merchant-trust-platform/backend/internal/merchant/domain"
	policyengine "merchant-trust-platform/backend/internal/policy/engine"
	"merchant-trust-platform/backend/internal/security"
	"merchant-trust-platform/backend/internal/trustscore"
	userdomain "merchant-trust-platform/backend/internal/user/domain"
)

type memUserRepo struct {
	mu      sync.Mutex
	byPhone map[string]*userdomain.User
	nextID  int64
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byPhone: make(map[string]*userdomain.User), nextID: 1}
}

func (r *memUserRepo) GetByPhone(ctx context.Context, phone string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byPhone[phone]; ok {
		u2 := *u
		return &u2, nil
	}
	return nil, nil
}

func (r *memUserRepo) Create(ctx context.Context, u *userdomain.User) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u2 := *u
	u2.ID = r.nextID
	r.nextID++
	u2.CreatedAt = time.Now().UTC()
	u2.UpdatedAt = u2.CreatedAt
	r.byPhone[u2.Phone] = &u2
	return &u2, nil
}

func (r *memUserRepo) find(id int64) *userdomain.User {
	for _, u := range r.byPhone {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (r *memUserRepo) SetPhoneVerified(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u := r.find(id); u != nil {
		u.PhoneVerified = true
	}
	return nil
}

func (r *memUserRepo) UpdatePin(ctx context.Context, id int64, pinHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u := r.find(id); u != nil {
		u.PinHash = pinHash
		u.PinFailedAttempts = 0
		u.PinLockedUntil = nil
	}
	return nil
}

func (r *memUserRepo) IncrementPinFailures(ctx context.Context, id int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u := r.find(id); u != nil {
		u.PinFailedAttempts++
		return u.PinFailedAttempts, nil
	}
	return 0, nil
}

func (r *memUserRepo) LockUntil(ctx context.Context, id int64, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u := r.find(id); u != nil {
		u.PinLockedUntil = &until
	}
	return nil
}

func (r *memUserRepo) ResetPinFailures(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u := r.find(id); u != nil {
		u.PinFailedAttempts = 0
		u.PinLockedUntil = nil
	}
	return nil
}

type memMerchantRepo struct {
	mu       sync.Mutex
	byUserID map[int64]*merchantdomain.Merchant
	nextID   int64
}

func newMemMerchantRepo() *memMerchantRepo {
	return &memMerchantRepo{byUserID: make(map[int64]*merchantdomain.Merchant), nextID: 1}
}

func (r *memMerchantRepo) GetByUserID(ctx context.Context, userID int64) (*merchantdomain.Merchant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.byUserID[userID]; ok {
		m2 := *m
		return &m2, nil
	}
	return nil, nil
}

func (r *memMerchantRepo) Create(ctx context.Context, m *merchantdomain.Merchant) (*merchantdomain.Merchant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m2 := *m
	m2.ID = r.nextID
	r.nextID++
	if m2.CreatedAt.IsZero() {
		m2.CreatedAt = time.Now().UTC()
	}
	r.byUserID[m2.UserID] = &m2
	return &m2, nil
}

type deviceKey struct {
	merchantID  int64
	fingerprint string
}

type memDeviceRepo struct {
	mu     sync.Mutex
	m      map[deviceKey]*devicedomain.Device
	nextID int64
}

func newMemDeviceRepo() *memDeviceRepo {
	return &memDeviceRepo{m: make(map[deviceKey]*devicedomain.Device), nextID: 1}
}

func (r *memDeviceRepo) GetByMerchantAndFingerprint(ctx context.Context, merchantID int64, fingerprint string) (*devicedomain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.m[deviceKey{merchantID, fingerprint}]; ok {
		d2 := *d
		return &d2, nil
	}
	return nil, nil
}

func (r *memDeviceRepo) Upsert(ctx context.Context, merchantID int64, fingerprint, name string) (*devicedomain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	key := deviceKey{merchantID, fingerprint}
	if d, ok := r.m[key]; ok {
		d.TimesUsed++
		d.LastSeen = now
		d2 := *d
		return &d2, nil
	}
	d := &devicedomain.Device{
		ID:          r.nextID,
		MerchantID:  merchantID,
		Fingerprint: fingerprint,
		Name:        name,
		TimesUsed:   1,
		FirstSeen:   now,
		LastSeen:    now,
	}
	r.nextID++
	r.m[key] = d
	d2 := *d
	return &d2, nil
}

func (r *memDeviceRepo) SetTrusted(ctx context.Context, merchantID int64, fingerprint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.m[deviceKey{merchantID, fingerprint}]; ok {
		d.Trusted = true
	}
	return nil
}

type memChallengeRepo struct {
	mu          sync.Mutex
	catalog     map[int64]*challengedomain.Challenge
	enrollments map[int64]*challengedomain.MerchantChallenge
	nextID      int64
}

func newMemChallengeRepo() *memChallengeRepo {
	return &memChallengeRepo{
		catalog:     make(map[int64]*challengedomain.Challenge),
		enrollments: make(map[int64]*challengedomain.MerchantChallenge),
		nextID:      1,
	}
}

func (r *memChallengeRepo) addChallenge(c *challengedomain.Challenge) *challengedomain.Challenge {
	r.mu.Lock()
	defer r.mu.Unlock()
	c2 := *c
	c2.ID = r.nextID
	r.nextID++
	r.catalog[c2.ID] = &c2
	return &c2
}

func (r *memChallengeRepo) GetChallenge(ctx context.Context, id int64) (*challengedomain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.catalog[id]; ok {
		c2 := *c
		return &c2, nil
	}
	return nil, nil
}

func (r *memChallengeRepo) ListActiveByCategory(ctx context.Context, category challengedomain.Category) ([]*challengedomain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*challengedomain.Challenge
	for _, c := range r.catalog {
		if c.Category == category && c.IsActive {
			c2 := *c
			out = append(out, &c2)
		}
	}
	return out, nil
}

func (r *memChallengeRepo) joined(mc *challengedomain.MerchantChallenge) *challengedomain.EnrolledChallenge {
	c := r.catalog[mc.ChallengeID]
	out := &challengedomain.EnrolledChallenge{MerchantChallenge: *mc}
	if c != nil {
		out.QuestionFr = c.QuestionFr
		out.QuestionDioula = c.QuestionDioula
		out.Category = c.Category
		out.Difficulty = c.Difficulty
	}
	return out
}

func (r *memChallengeRepo) GetEnrollment(ctx context.Context, merchantChallengeID int64) (*challengedomain.EnrolledChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mc, ok := r.enrollments[merchantChallengeID]; ok {
		return r.joined(mc), nil
	}
	return nil, nil
}

func (r *memChallengeRepo) GetPrimaryForMerchant(ctx context.Context, merchantID int64) (*challengedomain.EnrolledChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, mc := range r.enrollments {
		if mc.MerchantID == merchantID && mc.IsPrimary {
			return r.joined(mc), nil
		}
	}
	return nil, nil
}

func (r *memChallengeRepo) CreateEnrollment(ctx context.Context, mc *challengedomain.MerchantChallenge) (*challengedomain.MerchantChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mc.IsPrimary {
		for _, e := range r.enrollments {
			if e.MerchantID == mc.MerchantID {
				e.IsPrimary = false
			}
		}
	}
	mc2 := *mc
	mc2.ID = r.nextID
	r.nextID++
	mc2.CreatedAt = time.Now().UTC()
	mc2.UpdatedAt = mc2.CreatedAt
	r.enrollments[mc2.ID] = &mc2
	out := mc2
	return &out, nil
}

type memAttemptRepo struct {
	mu        sync.Mutex
	attempts  []*attemptdomain.Attempt
	nextID    int64
	createErr error
}

func newMemAttemptRepo() *memAttemptRepo {
	return &memAttemptRepo{nextID: 1}
}

func (r *memAttemptRepo) Create(ctx context.Context, a *attemptdomain.Attempt) (*attemptdomain.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	a2 := *a
	a2.ID = r.nextID
	r.nextID++
	if a2.CreatedAt.IsZero() {
		a2.CreatedAt = time.Now().UTC()
	}
	r.attempts = append(r.attempts, &a2)
	out := a2
	return &out, nil
}

func (r *memAttemptRepo) FailureCountByPhone(ctx context.Context, phone string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.attempts {
		if a.Phone == phone && !a.Success && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *memAttemptRepo) SuccessHoursByPhone(ctx context.Context, phone string, since time.Time) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[int]bool)
	var out []int
	for _, a := range r.attempts {
		if a.Phone == phone && a.Success && !a.CreatedAt.Before(since) {
			h := a.CreatedAt.UTC().Hour()
			if !seen[h] {
				seen[h] = true
				out = append(out, h)
			}
		}
	}
	return out, nil
}

func (r *memAttemptRepo) StatsByMerchant(ctx context.Context, merchantID int64, since time.Time) (*attemptdomain.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &attemptdomain.Stats{}
	sum := 0
	for _, a := range r.attempts {
		if a.CreatedAt.Before(since) {
			continue
		}
		stats.TotalAttempts++
		sum += a.TrustScore
		if a.Success {
			stats.SuccessfulAttempts++
		} else {
			stats.FailedAttempts++
		}
	}
	if stats.TotalAttempts > 0 {
		stats.AverageTrustScore = float64(sum) / float64(stats.TotalAttempts)
	}
	return stats, nil
}

type auditEvent struct {
	userID   int64
	phone    string
	action   string
	resource string
	metadata string
}

type memAuditLogger struct {
	mu     sync.Mutex
	events []auditEvent
}

func (l *memAuditLogger) LogEvent(ctx context.Context, userID int64, phone, action, resource, metadata string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, auditEvent{userID, phone, action, resource, metadata})
}

func (l *memAuditLogger) has(action string) bool {
	_, ok := l.last(action)
	return ok
}

func (l *memAuditLogger) last(action string) (auditEvent, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].action == action {
			return l.events[i], true
		}
	}
	return auditEvent{}, false
}

type memSMSSender struct {
	mu   sync.Mutex
	sent map[string]string
	fail error
}

func newMemSMSSender() *memSMSSender {
	return &memSMSSender{sent: make(map[string]string)}
}

func (s *memSMSSender) SendCode(phone, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.sent[phone] = code
	return nil
}

// testEnv bundles the service and its in-memory stores for one test.
type testEnv struct {
	svc        *AuthService
	users      *memUserRepo
	merchants  *memMerchantRepo
	devices    *memDeviceRepo
	challenges *memChallengeRepo
	attempts   *memAttemptRepo
	audit      *memAuditLogger
	sms        *memSMSSender
	codes      *devcode.MemoryStore
	tokens     *security.TokenProvider
	now        time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	env := &testEnv{
		users:      newMemUserRepo(),
		merchants:  newMemMerchantRepo(),
		devices:    newMemDeviceRepo(),
		challenges: newMemChallengeRepo(),
		attempts:   newMemAttemptRepo(),
		audit:      &memAuditLogger{},
		sms:        newMemSMSSender(),
		codes:      devcode.NewMemoryStore(),
		tokens:     tokens,
		// Midday, so the daytime score applies and no night penalty.
		now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
	}
	env.svc = NewAuthService(Deps{
		Users:              env.users,
		Merchants:          env.merchants,
		Devices:            env.devices,
		Challenges:         env.challenges,
		Attempts:           env.attempts,
		Hasher:             security.NewHasher(4),
		Tokens:             tokens,
		Engine:             trustscore.NewEngine(trustscore.DefaultConfig()),
		Policy:             policyengine.NewOPAEvaluator(""),
		CodeStore:          env.codes,
		SMS:                env.sms,
		Audit:              env.audit,
		Emitter:            nil,
		SessionTTL:         24 * time.Hour,
		PromotionThreshold: 5,
		DevCodeMode:        true,
	})
	env.svc.nowF = func() time.Time { return env.now }
	return env
}

// seedMerchant creates a verified user and merchant with a mature account.
func (env *testEnv) seedMerchant(t *testing.T, phone string) (*userdomain.User, *merchantdomain.Merchant) {
	t.Helper()
	user, err := env.users.Create(context.Background(), &userdomain.User{
		Phone:         phone,
		Name:          "Aminata Traoré",
		Role:          userdomain.RoleMerchant,
		PhoneVerified: true,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	lat, lon := 5.3364, -4.0267
	merchant, err := env.merchants.Create(context.Background(), &merchantdomain.Merchant{
		UserID:         user.ID,
		BusinessName:   "Marché de Cocody",
		UsualLatitude:  &lat,
		UsualLongitude: &lon,
		CreatedAt:      env.now.Add(-60 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("seed merchant: %v", err)
	}
	return user, merchant
}

// seedKnownDevice registers a device with the given prior usage count.
func (env *testEnv) seedKnownDevice(t *testing.T, merchantID int64, fingerprint string, timesUsed int) {
	t.Helper()
	for i := 0; i < timesUsed; i++ {
		if _, err := env.devices.Upsert(context.Background(), merchantID, fingerprint, "Tecno Spark"); err != nil {
			t.Fatalf("seed device: %v", err)
		}
	}
}

// seedEnrollment enrolls the merchant in a primary catalog question.
func (env *testEnv) seedEnrollment(t *testing.T, merchantID int64, answer string) *challengedomain.MerchantChallenge {
	t.Helper()
	c := env.challenges.addChallenge(&challengedomain.Challenge{
		QuestionFr: "Quel est le nom de votre premier marché?",
		Category:   challengedomain.CategoryBusiness,
		Difficulty: 1,
		IsActive:   true,
	})
	hash, err := security.NewHasher(4).HashAnswer(answer)
	if err != nil {
		t.Fatalf("hash answer: %v", err)
	}
	mc, err := env.challenges.CreateEnrollment(context.Background(), &challengedomain.MerchantChallenge{
		MerchantID:  merchantID,
		ChallengeID: c.ID,
		AnswerHash:  hash,
		IsPrimary:   true,
	})
	if err != nil {
		t.Fatalf("seed enrollment: %v", err)
	}
	return mc
}
