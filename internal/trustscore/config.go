package trustscore

// DeviceWeights are the points granted for device recognition, by prior
// successful uses of the fingerprint.
type DeviceWeights struct {
	Established int // >= 10 prior uses
	Familiar    int // >= 4
	Seen        int // >= 1
}

// SocialWeights are the points granted for a correct challenge answer, by
// attempt number. Attempt 4 and beyond always scores 0.
type SocialWeights struct {
	FirstAttempt  int
	SecondAttempt int
	ThirdAttempt  int
}

// LocationWeights are the points granted by distance band from the usual
// location. Neutral applies when no distance can be established.
type LocationWeights struct {
	Close   int
	Near    int
	Region  int
	Neutral int
}

// TimeWeights are the points granted by login time.
type TimeWeights struct {
	UsualWindow int
	Daytime     int
}

// HistoryWeights are the points granted for a clean recent history.
type HistoryWeights struct {
	Clean       int // zero incidents in 30 days and mature account
	OneIncident int
}

// Weights groups the five sub-score weight tables.
type Weights struct {
	Device   DeviceWeights
	Social   SocialWeights
	Location LocationWeights
	Time     TimeWeights
	History  HistoryWeights
}

// Penalties are subtracted from the summed sub-scores, one per true anomaly.
type Penalties struct {
	NewDevice      int
	FarFromUsual   int
	NightTime      int
	RecentFailures int
	VPNDetected    int
}

// Thresholds hold the decision boundaries and the context cut-offs used to
// band distances and hours.
type Thresholds struct {
	Immediate      int // score >= Immediate -> allow
	Challenge      int // score >= Challenge -> challenge, below -> validate
	HighConfidence int // allow with score >= HighConfidence -> high confidence
	MaxScore       int

	CloseKm float64
	NearKm  float64
	FarKm   float64 // beyond this, UNUSUAL_LOCATION

	DayStartHour      int
	DayEndHour        int
	NightStartHour    int
	NightEndHour      int
	MatureAccountDays int
}

// Config is the full, immutable weighting for an Engine. Deployments tune a
// copy of DefaultConfig rather than mutating package state.
type Config struct {
	Weights    Weights
	Penalties  Penalties
	Thresholds Thresholds
}

// DefaultConfig returns the standard weighting: device 30, social 40,
// location 15, time 10, history 5, with decision boundaries at 70 and 40.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Device:   DeviceWeights{Established: 30, Familiar: 20, Seen: 10},
			Social:   SocialWeights{FirstAttempt: 40, SecondAttempt: 25, ThirdAttempt: 15},
			Location: LocationWeights{Close: 15, Near: 10, Region: 5, Neutral: 5},
			Time:     TimeWeights{UsualWindow: 10, Daytime: 5},
			History:  HistoryWeights{Clean: 5, OneIncident: 2},
		},
		Penalties: Penalties{
			NewDevice:      20,
			FarFromUsual:   15,
			NightTime:      10,
			RecentFailures: 10,
			VPNDetected:    25,
		},
		Thresholds: Thresholds{
			Immediate:      70,
			Challenge:      40,
			HighConfidence: 85,
			MaxScore:       100,

			CloseKm: 1,
			NearKm:  10,
			FarKm:   50,

			DayStartHour:      6,
			DayEndHour:        20,
			NightStartHour:    22,
			NightEndHour:      5,
			MatureAccountDays: 30,
		},
	}
}
