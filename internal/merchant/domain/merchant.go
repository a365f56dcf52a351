package domain

import "time"

// Merchant is the business profile linked 1:1 to a user. UsualLatitude and
// UsualLongitude, when set, locate the merchant's market stall and feed the
// location signal of the trust score.
type Merchant struct {
	ID             int64
	UserID         int64
	BusinessName   string
	UsualLatitude  *float64
	UsualLongitude *float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AccountAgeDays returns whole days since the merchant record was created.
func (m *Merchant) AccountAgeDays(now time.Time) int {
	age := now.Sub(m.CreatedAt)
	if age < 0 {
		return 0
	}
	return int(age.Hours() / 24)
}
