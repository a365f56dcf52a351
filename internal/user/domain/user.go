package domain

import (
	"errors"
	"time"
)

// User is the account behind a merchant. Phone is the login key and unique.
type User struct {
	ID                int64
	Phone             string
	Name              string
	Role              string
	PinHash           string // bcrypt; empty until a PIN is registered
	PinFailedAttempts int
	PinLockedUntil    *time.Time
	PhoneVerified     bool
	LoginMethod       string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const (
	RoleMerchant = "merchant"
	RoleAgent    = "agent"
)

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Phone == "" {
		return errors.New("phone is required")
	}
	if u.Name == "" {
		return errors.New("name is required")
	}
	if u.Role == "" {
		u.Role = RoleMerchant
	}
	return nil
}

// Locked reports whether the account is PIN-locked at the given time.
func (u *User) Locked(now time.Time) bool {
	return u.PinLockedUntil != nil && u.PinLockedUntil.After(now)
}
