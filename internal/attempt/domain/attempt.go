package domain

import "time"

// Attempt is one immutable audit row per orchestrator step. Rows are only ever
// appended; there is no update or delete path.
type Attempt struct {
	ID                int64
	UserID            *int64 // nil when the phone was not registered
	Phone             string
	DeviceFingerprint string
	TrustScore        int
	Decision          string // allow | challenge | validate
	Latitude          *float64
	Longitude         *float64
	ChallengeID       *int64
	ChallengePassed   *bool
	IP                string
	UserAgent         string
	Success           bool
	CreatedAt         time.Time
}

// Stats summarizes a merchant's attempts over a window, for agent dashboards.
type Stats struct {
	TotalAttempts      int
	SuccessfulAttempts int
	FailedAttempts     int
	AverageTrustScore  float64
}
