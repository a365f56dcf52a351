// Package service orchestrates merchant authentication: trust scoring,
// challenge rounds, PIN login, and session issuance.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"regexp"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	attemptdomain "merchant-trust-platform/backend/internal/attempt/domain"
	"merchant-trust-platform/backend/internal/audit"
	challengedomain "merchant-trust-platform/backend/internal/challenge/domain"
	"merchant-trust-platform/backend/internal/devcode"
	devicedomain "merchant-trust-platform/backend/internal/device/domain"
	merchantdomain "merchant-trust-platform/backend/internal/merchant/domain"
	"merchant-trust-platform/backend/internal/policy/engine"
	"merchant-trust-platform/backend/internal/security"
	"merchant-trust-platform/backend/internal/sms"
	"merchant-trust-platform/backend/internal/telemetry"
	"merchant-trust-platform/backend/internal/trustscore"
	userdomain "merchant-trust-platform/backend/internal/user/domain"
)

// Sentinel errors for the auth service; handler maps them to HTTP status codes.
var (
	ErrUnknownPhone            = errors.New("phone not registered")
	ErrMerchantNotFound        = errors.New("merchant profile not found")
	ErrNoPrimaryChallenge      = errors.New("merchant has no primary challenge enrolled")
	ErrChallengeNotFound       = errors.New("challenge not found")
	ErrInvalidCategory         = errors.New("invalid challenge category")
	ErrInvalidAnswer           = errors.New("answer must not be empty")
	ErrPhoneAlreadyRegistered  = errors.New("phone already registered")
	ErrInvalidPhone            = errors.New("invalid phone number")
	ErrInvalidPin              = errors.New("PIN must be 4 to 6 digits")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrPinLocked               = errors.New("account temporarily locked")
	ErrInvalidVerificationCode = errors.New("invalid or expired verification code")
	ErrPhoneNotVerified        = errors.New("phone not verified")
)

// Status is the outcome of a login step as shown to the client.
type Status string

const (
	StatusApproved          Status = "APPROVED"
	StatusChallengeRequired Status = "CHALLENGE_REQUIRED"
	StatusFallbackAgent     Status = "FALLBACK_AGENT"
)

const (
	pinMaxFailures  = 3
	pinLockDuration = 15 * time.Minute
	codeTTL         = 10 * time.Minute
	failureWindow   = 24 * time.Hour
	historyWindow   = 30 * 24 * time.Hour
	usualHourSpread = 2
)

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByPhone(ctx context.Context, phone string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) (*userdomain.User, error)
	SetPhoneVerified(ctx context.Context, id int64) error
	UpdatePin(ctx context.Context, id int64, pinHash string) error
	IncrementPinFailures(ctx context.Context, id int64) (int, error)
	LockUntil(ctx context.Context, id int64, until time.Time) error
	ResetPinFailures(ctx context.Context, id int64) error
}

// MerchantRepo is the minimal merchant repository needed by the auth service.
type MerchantRepo interface {
	GetByUserID(ctx context.Context, userID int64) (*merchantdomain.Merchant, error)
	Create(ctx context.Context, m *merchantdomain.Merchant) (*merchantdomain.Merchant, error)
}

// DeviceRepo is the minimal device repository needed by the auth service.
type DeviceRepo interface {
	GetByMerchantAndFingerprint(ctx context.Context, merchantID int64, fingerprint string) (*devicedomain.Device, error)
	Upsert(ctx context.Context, merchantID int64, fingerprint, name string) (*devicedomain.Device, error)
	SetTrusted(ctx context.Context, merchantID int64, fingerprint string) error
}

// ChallengeRepo is the minimal challenge repository needed by the auth service.
type ChallengeRepo interface {
	GetChallenge(ctx context.Context, id int64) (*challengedomain.Challenge, error)
	ListActiveByCategory(ctx context.Context, category challengedomain.Category) ([]*challengedomain.Challenge, error)
	GetEnrollment(ctx context.Context, merchantChallengeID int64) (*challengedomain.EnrolledChallenge, error)
	GetPrimaryForMerchant(ctx context.Context, merchantID int64) (*challengedomain.EnrolledChallenge, error)
	CreateEnrollment(ctx context.Context, mc *challengedomain.MerchantChallenge) (*challengedomain.MerchantChallenge, error)
}

// AttemptRepo is the minimal attempt repository needed by the auth service.
type AttemptRepo interface {
	Create(ctx context.Context, a *attemptdomain.Attempt) (*attemptdomain.Attempt, error)
	FailureCountByPhone(ctx context.Context, phone string, since time.Time) (int, error)
	SuccessHoursByPhone(ctx context.Context, phone string, since time.Time) ([]int, error)
	StatsByMerchant(ctx context.Context, merchantID int64, since time.Time) (*attemptdomain.Stats, error)
}

// Deps bundles the auth service dependencies.
type Deps struct {
	Users      UserRepo
	Merchants  MerchantRepo
	Devices    DeviceRepo
	Challenges ChallengeRepo
	Attempts   AttemptRepo

	Hasher *security.Hasher
	Tokens *security.TokenProvider
	Engine *trustscore.Engine
	Policy engine.Evaluator

	CodeStore devcode.Store
	SMS       sms.Sender
	Audit     audit.AuditLogger
	Emitter   telemetry.EventEmitter

	SessionTTL         time.Duration
	PromotionThreshold int
	DevCodeMode        bool
}

// AuthService implements the risk-adaptive login flows.
type AuthService struct {
	users      UserRepo
	merchants  MerchantRepo
	devices    DeviceRepo
	challenges ChallengeRepo
	attempts   AttemptRepo

	hasher *security.Hasher
	tokens *security.TokenProvider
	engine *trustscore.Engine
	policy engine.Evaluator

	codeStore devcode.Store
	sms       sms.Sender
	audit     audit.AuditLogger
	emitter   telemetry.EventEmitter

	sessionTTL         time.Duration
	promotionThreshold int
	devCodeMode        bool

	tracer    trace.Tracer
	decisions metric.Int64Counter

	nowF func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(deps Deps) *AuthService {
	meter := otel.Meter("mtp.auth")
	decisions, err := meter.Int64Counter("auth.decisions",
		metric.WithDescription("login decisions by outcome"))
	if err != nil {
		log.Printf("auth: create decisions counter: %v", err)
	}
	return &AuthService{
		users:              deps.Users,
		merchants:          deps.Merchants,
		devices:            deps.Devices,
		challenges:         deps.Challenges,
		attempts:           deps.Attempts,
		hasher:             deps.Hasher,
		tokens:             deps.Tokens,
		engine:             deps.Engine,
		policy:             deps.Policy,
		codeStore:          deps.CodeStore,
		sms:                deps.SMS,
		audit:              deps.Audit,
		emitter:            deps.Emitter,
		sessionTTL:         deps.SessionTTL,
		promotionThreshold: deps.PromotionThreshold,
		devCodeMode:        deps.DevCodeMode,
		tracer:             otel.Tracer("mtp.auth"),
		decisions:          decisions,
		nowF:               func() time.Time { return time.Now().UTC() },
	}
}

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9]{8,15}$`)
	pinPattern   = regexp.MustCompile(`^[0-9]{4,6}$`)
)

func validatePhone(phone string) error {
	if !phonePattern.MatchString(phone) {
		return ErrInvalidPhone
	}
	return nil
}

func validatePin(pin string) error {
	if !pinPattern.MatchString(pin) {
		return ErrInvalidPin
	}
	return nil
}

// generateCode returns a random 6-digit verification code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// isUsualHour reports whether hour falls within the spread of any hour at
// which the merchant has logged in successfully before.
func isUsualHour(hour int, successHours []int) bool {
	for _, h := range successHours {
		diff := hour - h
		if diff < 0 {
			diff = -diff
		}
		// Hours wrap at midnight.
		if diff > 12 {
			diff = 24 - diff
		}
		if diff <= usualHourSpread {
			return true
		}
	}
	return false
}
