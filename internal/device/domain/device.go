package domain

import "time"

// Device is one recognized device for one merchant. (MerchantID, Fingerprint)
// is unique. TimesUsed increments on every login attempt; Trusted flips to
// true once the promotion policy fires after an allow decision and never
// reverts automatically.
type Device struct {
	ID          int64
	MerchantID  int64
	Fingerprint string
	Name        string
	TimesUsed   int
	Trusted     bool
	FirstSeen   time.Time
	LastSeen    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
