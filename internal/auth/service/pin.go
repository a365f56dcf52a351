package service

import (
	"context"
	"log"
	"strings"
	"time"

	merchantdomain "merchant-trust-platform/backend/internal/merchant/domain"
	userdomain "merchant-trust-platform/backend/internal/user/domain"
)

// RegisterInput creates a merchant account with a PIN.
type RegisterInput struct {
	Phone        string
	Name         string
	Pin          string
	BusinessName string
}

// RegisterWithPhone creates the user and merchant profile and sends a phone
// verification code. The account cannot log in with a PIN until the phone is
// verified.
func (s *AuthService) RegisterWithPhone(ctx context.Context, in RegisterInput) (*userdomain.User, error) {
	phone := strings.TrimSpace(in.Phone)
	if err := validatePhone(phone); err != nil {
		return nil, err
	}
	if err := validatePin(in.Pin); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, ErrInvalidCredentials
	}

	existing, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrPhoneAlreadyRegistered
	}

	pinHash, err := s.hasher.Hash([]byte(in.Pin))
	if err != nil {
		return nil, err
	}
	user, err := s.users.Create(ctx, &userdomain.User{
		Phone:       phone,
		Name:        strings.TrimSpace(in.Name),
		Role:        userdomain.RoleMerchant,
		PinHash:     pinHash,
		LoginMethod: "pin",
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.merchants.Create(ctx, &merchantdomain.Merchant{
		UserID:       user.ID,
		BusinessName: strings.TrimSpace(in.BusinessName),
	}); err != nil {
		return nil, err
	}

	if err := s.SendVerificationCode(ctx, phone); err != nil {
		// Registration stands; the merchant can request a new code.
		log.Printf("auth: send verification code for %s: %v", phone, err)
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, user.ID, phone, "user.registered", "user", "")
	}
	return user, nil
}

// SendVerificationCode generates a 6-digit code for the phone and delivers it
// by SMS, or stores it for dev retrieval when dev code mode is on.
func (s *AuthService) SendVerificationCode(ctx context.Context, phone string) error {
	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUnknownPhone
	}
	return s.sendCode(ctx, user)
}

func (s *AuthService) sendCode(ctx context.Context, user *userdomain.User) error {
	code, err := generateCode()
	if err != nil {
		return err
	}
	s.codeStore.Put(ctx, user.Phone, code, s.nowF().Add(codeTTL))

	if s.devCodeMode {
		return nil
	}
	return s.sms.SendCode(user.Phone, code)
}

// VerifyPhone consumes the verification code and marks the phone verified.
func (s *AuthService) VerifyPhone(ctx context.Context, phone, code string) error {
	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUnknownPhone
	}

	stored, ok := s.codeStore.Consume(ctx, phone)
	if !ok || stored != code {
		return ErrInvalidVerificationCode
	}
	if err := s.users.SetPhoneVerified(ctx, user.ID); err != nil {
		return err
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, user.ID, phone, "phone.verified", "user", "")
	}
	return nil
}

// PinLoginResult is the outcome of a successful PIN login.
type PinLoginResult struct {
	SessionToken     string
	SessionExpiresAt time.Time
	UserID           int64
	MerchantID       int64
}

// LoginWithPin authenticates with phone and PIN. Three wrong PINs lock the
// account for fifteen minutes.
func (s *AuthService) LoginWithPin(ctx context.Context, phone, pin, deviceFingerprint, deviceName string) (*PinLoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.LoginWithPin")
	defer span.End()

	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PinHash == "" {
		return nil, ErrInvalidCredentials
	}
	if !user.PhoneVerified {
		return nil, ErrPhoneNotVerified
	}
	now := s.nowF()
	if user.Locked(now) {
		return nil, ErrPinLocked
	}

	if err := s.hasher.Compare(user.PinHash, []byte(pin)); err != nil {
		failures, incErr := s.users.IncrementPinFailures(ctx, user.ID)
		if incErr != nil {
			return nil, incErr
		}
		if failures >= pinMaxFailures {
			if lockErr := s.users.LockUntil(ctx, user.ID, now.Add(pinLockDuration)); lockErr != nil {
				return nil, lockErr
			}
			if s.audit != nil {
				s.audit.LogEvent(ctx, user.ID, phone, "pin.locked", "user", "")
			}
			return nil, ErrPinLocked
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.users.ResetPinFailures(ctx, user.ID); err != nil {
		return nil, err
	}

	merchant, err := s.merchants.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}
	device, err := s.devices.Upsert(ctx, merchant.ID, deviceFingerprint, deviceName)
	if err != nil {
		return nil, err
	}

	token, _, expiresAt, err := s.tokens.IssueSession(user.ID, merchant.ID, device.Fingerprint, 0)
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, user.ID, phone, "pin.login", "session", "")
	}
	return &PinLoginResult{
		SessionToken:     token,
		SessionExpiresAt: expiresAt,
		UserID:           user.ID,
		MerchantID:       merchant.ID,
	}, nil
}

// RequestPinReset sends a verification code that authorizes a PIN reset.
func (s *AuthService) RequestPinReset(ctx context.Context, phone string) error {
	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUnknownPhone
	}
	if err := s.sendCode(ctx, user); err != nil {
		return err
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, user.ID, phone, "pin.reset_requested", "user", "")
	}
	return nil
}

// ResetPin sets a new PIN after verifying the reset code. Clears any lockout.
func (s *AuthService) ResetPin(ctx context.Context, phone, code, newPin string) error {
	if err := validatePin(newPin); err != nil {
		return err
	}
	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUnknownPhone
	}

	stored, ok := s.codeStore.Consume(ctx, phone)
	if !ok || stored != code {
		return ErrInvalidVerificationCode
	}

	pinHash, err := s.hasher.Hash([]byte(newPin))
	if err != nil {
		return err
	}
	if err := s.users.UpdatePin(ctx, user.ID, pinHash); err != nil {
		return err
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, user.ID, phone, "pin.reset", "user", "")
	}
	return nil
}
