// Package trustscore computes a bounded trust score for a login attempt from
// device, social-proof, location, time, and history signals. Calculate is pure:
// callers supply the current hour and all counters explicitly, so identical
// inputs always produce identical results.
package trustscore

import "math"

// Decision is the outcome of scoring a login attempt.
type Decision string

const (
	// DecisionAllow grants immediate access.
	DecisionAllow Decision = "allow"
	// DecisionChallenge requires a knowledge-challenge round trip.
	DecisionChallenge Decision = "challenge"
	// DecisionValidate escalates to a field agent.
	DecisionValidate Decision = "validate"
)

// Confidence qualifies how strongly the score supports the decision.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Risk flags emitted verbatim for downstream display and audit.
const (
	FlagNewDevice       = "NEW_DEVICE"
	FlagVPNDetected     = "VPN_DETECTED"
	FlagUnusualTime     = "UNUSUAL_TIME"
	FlagUnusualLocation = "UNUSUAL_LOCATION"
	FlagRecentFailures  = "RECENT_FAILURES"
	FlagLowTrustScore   = "LOW_TRUST_SCORE"
)

// DeviceContext describes the device presenting the login attempt.
type DeviceContext struct {
	Fingerprint     string
	IsKnown         bool
	TimesSeenBefore int
	LastSeenDaysAgo int
}

// SocialContext describes an optional knowledge-challenge answer.
// QuestionDifficulty is carried for audit only and does not weigh into the score.
type SocialContext struct {
	AnswerProvided     bool
	AnswerCorrect      bool
	AttemptNumber      int
	QuestionDifficulty int
}

// LocationContext describes where the attempt came from. Coordinates may be
// absent (feature phones without GPS); DistanceFromUsualKm, when set by the
// caller, takes precedence over the Haversine computation.
type LocationContext struct {
	CurrentLatitude    *float64
	CurrentLongitude   *float64
	UsualLatitude      *float64
	UsualLongitude     *float64
	DistanceFromUsualKm *float64
}

// TimeContext describes when the attempt happened.
type TimeContext struct {
	CurrentHour      int
	CurrentDayOfWeek int
	IsUsualTime      bool
}

// HistoryContext summarizes the merchant's authentication history.
// ConsecutiveFailures is a rolling count of failed attempts in the last 24h,
// not a true consecutive streak; a success inside the window does not reset it.
type HistoryContext struct {
	TotalSuccessfulLogins int
	IncidentsLast30Days   int
	ConsecutiveFailures   int
	AccountAgeDays        int
}

// AnomalyContext holds the anomaly signals derived from the other contexts.
type AnomalyContext struct {
	IsNewDevice      bool
	IsVPNDetected    bool
	IsNightTime      bool
	IsFarFromUsual   bool
	HasRecentFailures bool
}

// Context is the full input to Calculate. Social is optional: the zero value
// (AnswerProvided false) scores 0 social points.
type Context struct {
	Device      DeviceContext
	Social      SocialContext
	Location    LocationContext
	Time        TimeContext
	History     HistoryContext
	VPNDetected bool
}

// Result holds the sub-scores, penalties, final score, and decision for one
// scored attempt. TotalScore is always an integer in [0, 100].
type Result struct {
	DeviceScore   int
	SocialScore   int
	LocationScore int
	TimeScore     int
	HistoryScore  int
	Penalties     int
	TotalScore    int

	Decision   Decision
	Confidence Confidence
	RiskFlags  []string
	Anomalies  AnomalyContext
}

const earthRadiusKm = 6371

// HaversineKm returns the great-circle distance in kilometers between two
// coordinate pairs.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// Engine scores login contexts against an immutable Config.
type Engine struct {
	cfg Config
}

// NewEngine returns an Engine using cfg. Pass DefaultConfig() for the
// standard weighting.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Calculate scores ctx and returns the decision. It has no side effects and
// reads no ambient state.
func (e *Engine) Calculate(ctx Context) Result {
	deviceScore := e.deviceScore(ctx.Device)
	socialScore := e.socialScore(ctx.Social)

	distanceKm, distanceKnown := e.distanceKm(ctx.Location)
	locationScore := e.locationScore(distanceKm, distanceKnown)
	timeScore := e.timeScore(ctx.Time)
	historyScore := e.historyScore(ctx.History)

	anomalies := e.detectAnomalies(ctx, distanceKm, distanceKnown)
	penalties := e.penalties(anomalies)

	raw := deviceScore + socialScore + locationScore + timeScore + historyScore - penalties
	total := clamp(raw, 0, e.cfg.Thresholds.MaxScore)

	decision, confidence := e.decide(total)

	return Result{
		DeviceScore:   deviceScore,
		SocialScore:   socialScore,
		LocationScore: locationScore,
		TimeScore:     timeScore,
		HistoryScore:  historyScore,
		Penalties:     penalties,
		TotalScore:    total,
		Decision:      decision,
		Confidence:    confidence,
		RiskFlags:     e.riskFlags(anomalies, total),
		Anomalies:     anomalies,
	}
}

func (e *Engine) deviceScore(d DeviceContext) int {
	if !d.IsKnown {
		return 0
	}
	w := e.cfg.Weights.Device
	switch {
	case d.TimesSeenBefore >= 10:
		return w.Established
	case d.TimesSeenBefore >= 4:
		return w.Familiar
	case d.TimesSeenBefore >= 1:
		return w.Seen
	default:
		return 0
	}
}

func (e *Engine) socialScore(s SocialContext) int {
	if !s.AnswerProvided || !s.AnswerCorrect {
		return 0
	}
	w := e.cfg.Weights.Social
	switch s.AttemptNumber {
	case 1:
		return w.FirstAttempt
	case 2:
		return w.SecondAttempt
	case 3:
		return w.ThirdAttempt
	default:
		return 0
	}
}

// distanceKm resolves the distance once. A caller-supplied distance wins over
// the Haversine computation; distanceKnown is false when neither is available.
func (e *Engine) distanceKm(l LocationContext) (float64, bool) {
	if l.DistanceFromUsualKm != nil {
		return *l.DistanceFromUsualKm, true
	}
	if l.CurrentLatitude == nil || l.CurrentLongitude == nil ||
		l.UsualLatitude == nil || l.UsualLongitude == nil {
		return 0, false
	}
	return HaversineKm(*l.CurrentLatitude, *l.CurrentLongitude, *l.UsualLatitude, *l.UsualLongitude), true
}

func (e *Engine) locationScore(distanceKm float64, distanceKnown bool) int {
	w := e.cfg.Weights.Location
	if !distanceKnown {
		return w.Neutral
	}
	switch {
	case distanceKm < e.cfg.Thresholds.CloseKm:
		return w.Close
	case distanceKm < e.cfg.Thresholds.NearKm:
		return w.Near
	case distanceKm < e.cfg.Thresholds.FarKm:
		return w.Region
	default:
		return 0
	}
}

func (e *Engine) timeScore(t TimeContext) int {
	w := e.cfg.Weights.Time
	if t.IsUsualTime {
		return w.UsualWindow
	}
	if t.CurrentHour >= e.cfg.Thresholds.DayStartHour && t.CurrentHour <= e.cfg.Thresholds.DayEndHour {
		return w.Daytime
	}
	return 0
}

func (e *Engine) historyScore(h HistoryContext) int {
	w := e.cfg.Weights.History
	if h.IncidentsLast30Days == 0 && h.AccountAgeDays > e.cfg.Thresholds.MatureAccountDays {
		return w.Clean
	}
	if h.IncidentsLast30Days == 1 {
		return w.OneIncident
	}
	return 0
}

func (e *Engine) detectAnomalies(ctx Context, distanceKm float64, distanceKnown bool) AnomalyContext {
	return AnomalyContext{
		IsNewDevice:      !ctx.Device.IsKnown || ctx.Device.TimesSeenBefore == 0,
		IsVPNDetected:    ctx.VPNDetected,
		IsNightTime:      ctx.Time.CurrentHour >= e.cfg.Thresholds.NightStartHour || ctx.Time.CurrentHour <= e.cfg.Thresholds.NightEndHour,
		IsFarFromUsual:   distanceKnown && distanceKm > e.cfg.Thresholds.FarKm,
		HasRecentFailures: ctx.History.ConsecutiveFailures > 0,
	}
}

// penalties sums the penalty for each true anomaly. Individual penalties are
// not floored; only the final total score is clamped.
func (e *Engine) penalties(a AnomalyContext) int {
	p := e.cfg.Penalties
	total := 0
	if a.IsNewDevice {
		total += p.NewDevice
	}
	if a.IsFarFromUsual {
		total += p.FarFromUsual
	}
	if a.IsNightTime {
		total += p.NightTime
	}
	if a.HasRecentFailures {
		total += p.RecentFailures
	}
	if a.IsVPNDetected {
		total += p.VPNDetected
	}
	return total
}

func (e *Engine) decide(score int) (Decision, Confidence) {
	t := e.cfg.Thresholds
	if score >= t.Immediate {
		if score >= t.HighConfidence {
			return DecisionAllow, ConfidenceHigh
		}
		return DecisionAllow, ConfidenceMedium
	}
	if score >= t.Challenge {
		return DecisionChallenge, ConfidenceMedium
	}
	return DecisionValidate, ConfidenceLow
}

func (e *Engine) riskFlags(a AnomalyContext, score int) []string {
	flags := []string{}
	if a.IsNewDevice {
		flags = append(flags, FlagNewDevice)
	}
	if a.IsVPNDetected {
		flags = append(flags, FlagVPNDetected)
	}
	if a.IsNightTime {
		flags = append(flags, FlagUnusualTime)
	}
	if a.IsFarFromUsual {
		flags = append(flags, FlagUnusualLocation)
	}
	if a.HasRecentFailures {
		flags = append(flags, FlagRecentFailures)
	}
	if score < e.cfg.Thresholds.Challenge {
		flags = append(flags, FlagLowTrustScore)
	}
	return flags
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
