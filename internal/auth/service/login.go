package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	attemptdomain "merchant-trust-platform/backend/internal/attempt/domain"
	challengedomain "merchant-trust-platform/backend/internal/challenge/domain"
	devicedomain "merchant-trust-platform/backend/internal/device/domain"
	merchantdomain "merchant-trust-platform/backend/internal/merchant/domain"
	"merchant-trust-platform/backend/internal/telemetry"
	"merchant-trust-platform/backend/internal/trustscore"
	userdomain "merchant-trust-platform/backend/internal/user/domain"
)

// LoginInput carries the client context for a login step.
type LoginInput struct {
	Phone             string
	DeviceFingerprint string
	DeviceName        string
	Latitude          *float64
	Longitude         *float64
	IP                string
	UserAgent         string
}

// ChallengeQuestion is the question presented to the merchant when a
// challenge round is required.
type ChallengeQuestion struct {
	MerchantChallengeID int64
	ChallengeID         int64
	QuestionFr          string
	QuestionDioula      string
	Category            challengedomain.Category
	Difficulty          int
}

// LoginResult is the outcome of InitiateLogin or AnswerChallenge.
type LoginResult struct {
	Status           Status
	TrustScore       int
	Confidence       trustscore.Confidence
	RiskFlags        []string
	SessionToken     string
	SessionExpiresAt time.Time
	Challenge        *ChallengeQuestion
	UserMessage      string
}

// User-facing messages; the client renders these verbatim along with icons,
// so they are written for low-literacy users.
const (
	msgApproved  = "Bienvenue! Connexion réussie."
	msgChallenge = "Répondez à votre question de sécurité."
	msgFallback  = "Un agent va vous contacter pour vérifier votre identité."
)

// InitiateLogin scores a login attempt and either approves it, asks the
// merchant's primary security question, or escalates to a field agent.
// An unregistered phone is still recorded in the attempt ledger.
func (s *AuthService) InitiateLogin(ctx context.Context, in LoginInput) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.InitiateLogin")
	defer span.End()

	user, merchant, err := s.lookupMerchant(ctx, in)
	if err != nil {
		return nil, err
	}

	scoreCtx, err := s.buildScoreContext(ctx, in, merchant)
	if err != nil {
		return nil, err
	}
	result := s.engine.Calculate(scoreCtx)
	span.SetAttributes(
		attribute.Int("trust_score", result.TotalScore),
		attribute.String("decision", string(result.Decision)),
	)

	device, err := s.devices.Upsert(ctx, merchant.ID, in.DeviceFingerprint, in.DeviceName)
	if err != nil {
		return nil, err
	}

	out := &LoginResult{
		TrustScore: result.TotalScore,
		Confidence: result.Confidence,
		RiskFlags:  result.RiskFlags,
	}

	var challengeID *int64
	switch result.Decision {
	case trustscore.DecisionAllow:
		if err := s.approve(ctx, user, merchant, device, out); err != nil {
			return nil, err
		}
	case trustscore.DecisionChallenge:
		primary, err := s.challenges.GetPrimaryForMerchant(ctx, merchant.ID)
		if err != nil {
			return nil, err
		}
		if primary == nil {
			return nil, ErrNoPrimaryChallenge
		}
		challengeID = &primary.ChallengeID
		out.Status = StatusChallengeRequired
		out.UserMessage = msgChallenge
		out.Challenge = &ChallengeQuestion{
			MerchantChallengeID: primary.ID,
			ChallengeID:         primary.ChallengeID,
			QuestionFr:          primary.QuestionFr,
			QuestionDioula:      primary.QuestionDioula,
			Category:            primary.Category,
			Difficulty:          primary.Difficulty,
		}
	default:
		out.Status = StatusFallbackAgent
		out.UserMessage = msgFallback
	}

	if err := s.recordAttempt(ctx, &user.ID, in, result, challengeID, nil, out.Status == StatusApproved); err != nil {
		return nil, err
	}
	s.observeDecision(ctx, user, merchant, in, result)
	return out, nil
}

// AnswerInput carries a merchant's answer to their security question.
type AnswerInput struct {
	LoginInput
	MerchantChallengeID int64
	Answer              string
	AttemptNumber       int
}

// AnswerChallenge verifies the answer and resolves the pending login on that
// alone. The risk signals already had their say when InitiateLogin asked the
// question; a correct answer settles the attempt at full trust, a wrong one
// hands the merchant to an agent. A wrong answer is an outcome
// (FALLBACK_AGENT), not an error.
func (s *AuthService) AnswerChallenge(ctx context.Context, in AnswerInput) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.AnswerChallenge")
	defer span.End()

	user, merchant, err := s.lookupMerchant(ctx, in.LoginInput)
	if err != nil {
		return nil, err
	}

	enrollment, err := s.challenges.GetEnrollment(ctx, in.MerchantChallengeID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil || enrollment.MerchantID != merchant.ID {
		return nil, ErrChallengeNotFound
	}

	correct := s.hasher.CompareAnswer(enrollment.AnswerHash, in.Answer) == nil

	result := trustscore.Result{
		TotalScore: 0,
		Decision:   trustscore.DecisionValidate,
		Confidence: trustscore.ConfidenceLow,
		RiskFlags:  []string{},
	}
	if correct {
		result = trustscore.Result{
			TotalScore: 100,
			Decision:   trustscore.DecisionAllow,
			Confidence: trustscore.ConfidenceHigh,
			RiskFlags:  []string{},
		}
	}
	span.SetAttributes(
		attribute.Int("trust_score", result.TotalScore),
		attribute.Bool("challenge_passed", correct),
	)

	out := &LoginResult{
		TrustScore: result.TotalScore,
		Confidence: result.Confidence,
		RiskFlags:  result.RiskFlags,
	}

	if correct {
		// InitiateLogin already upserted this device when it issued the
		// challenge; reuse that row so times_used counts one per login.
		device, err := s.devices.GetByMerchantAndFingerprint(ctx, merchant.ID, in.DeviceFingerprint)
		if err != nil {
			return nil, err
		}
		if device == nil {
			device, err = s.devices.Upsert(ctx, merchant.ID, in.DeviceFingerprint, in.DeviceName)
			if err != nil {
				return nil, err
			}
		}
		if err := s.approve(ctx, user, merchant, device, out); err != nil {
			return nil, err
		}
	} else {
		// One challenge round only: a failed answer hands the merchant to an
		// agent rather than looping on questions.
		out.Status = StatusFallbackAgent
		out.UserMessage = msgFallback
	}

	if err := s.recordAttempt(ctx, &user.ID, in.LoginInput, result, &enrollment.ChallengeID, &correct, out.Status == StatusApproved); err != nil {
		return nil, err
	}
	s.observeDecision(ctx, user, merchant, in.LoginInput, result)
	return out, nil
}

// lookupMerchant resolves phone to user and merchant. An unknown phone is
// recorded in the ledger before failing; a user without a merchant profile is
// a hard error.
func (s *AuthService) lookupMerchant(ctx context.Context, in LoginInput) (*userdomain.User, *merchantdomain.Merchant, error) {
	user, err := s.users.GetByPhone(ctx, in.Phone)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		if err := s.recordAttempt(ctx, nil, in, trustscore.Result{Decision: trustscore.DecisionValidate}, nil, nil, false); err != nil {
			return nil, nil, err
		}
		return nil, nil, ErrUnknownPhone
	}
	merchant, err := s.merchants.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	if merchant == nil {
		return nil, nil, ErrMerchantNotFound
	}
	return user, merchant, nil
}

// buildScoreContext assembles the scoring input from the device registry, the
// attempt ledger, and the merchant profile.
func (s *AuthService) buildScoreContext(ctx context.Context, in LoginInput, merchant *merchantdomain.Merchant) (trustscore.Context, error) {
	now := s.nowF()

	device, err := s.devices.GetByMerchantAndFingerprint(ctx, merchant.ID, in.DeviceFingerprint)
	if err != nil {
		return trustscore.Context{}, err
	}
	deviceCtx := trustscore.DeviceContext{Fingerprint: in.DeviceFingerprint}
	if device != nil {
		deviceCtx.IsKnown = true
		deviceCtx.TimesSeenBefore = device.TimesUsed
		deviceCtx.LastSeenDaysAgo = int(now.Sub(device.LastSeen).Hours() / 24)
	}

	recentFailures, err := s.attempts.FailureCountByPhone(ctx, in.Phone, now.Add(-failureWindow))
	if err != nil {
		return trustscore.Context{}, err
	}
	incidents, err := s.attempts.FailureCountByPhone(ctx, in.Phone, now.Add(-historyWindow))
	if err != nil {
		return trustscore.Context{}, err
	}
	successHours, err := s.attempts.SuccessHoursByPhone(ctx, in.Phone, now.Add(-historyWindow))
	if err != nil {
		return trustscore.Context{}, err
	}

	return trustscore.Context{
		Device: deviceCtx,
		Location: trustscore.LocationContext{
			CurrentLatitude:  in.Latitude,
			CurrentLongitude: in.Longitude,
			UsualLatitude:    merchant.UsualLatitude,
			UsualLongitude:   merchant.UsualLongitude,
		},
		Time: trustscore.TimeContext{
			CurrentHour:      now.Hour(),
			CurrentDayOfWeek: int(now.Weekday()),
			IsUsualTime:      isUsualHour(now.Hour(), successHours),
		},
		History: trustscore.HistoryContext{
			IncidentsLast30Days: incidents,
			ConsecutiveFailures: recentFailures,
			AccountAgeDays:      merchant.AccountAgeDays(now),
		},
	}, nil
}

// approve issues the session token and runs the device trust promotion policy.
func (s *AuthService) approve(ctx context.Context, user *userdomain.User, merchant *merchantdomain.Merchant, device *devicedomain.Device, out *LoginResult) error {
	token, _, expiresAt, err := s.tokens.IssueSession(user.ID, merchant.ID, device.Fingerprint, out.TrustScore)
	if err != nil {
		return err
	}
	out.Status = StatusApproved
	out.UserMessage = msgApproved
	out.SessionToken = token
	out.SessionExpiresAt = expiresAt

	promotion, err := s.policy.EvaluatePromotion(ctx, device, string(trustscore.DecisionAllow), s.promotionThreshold)
	if err != nil {
		log.Printf("auth: promotion policy: %v", err)
		return nil
	}
	if promotion.Promote {
		if err := s.devices.SetTrusted(ctx, merchant.ID, device.Fingerprint); err != nil {
			log.Printf("auth: promote device: %v", err)
			return nil
		}
		if s.audit != nil {
			s.audit.LogEvent(ctx, user.ID, user.Phone, "device.trust_promoted", "device",
				device.Fingerprint)
		}
	}
	return nil
}

// recordAttempt appends one ledger row. The ledger is the input to future
// scoring, so a write failure fails the login rather than leaving a gap.
func (s *AuthService) recordAttempt(ctx context.Context, userID *int64, in LoginInput, result trustscore.Result, challengeID *int64, challengePassed *bool, success bool) error {
	_, err := s.attempts.Create(ctx, &attemptdomain.Attempt{
		UserID:            userID,
		Phone:             in.Phone,
		DeviceFingerprint: in.DeviceFingerprint,
		TrustScore:        result.TotalScore,
		Decision:          string(result.Decision),
		Latitude:          in.Latitude,
		Longitude:         in.Longitude,
		ChallengeID:       challengeID,
		ChallengePassed:   challengePassed,
		IP:                in.IP,
		UserAgent:         in.UserAgent,
		Success:           success,
		CreatedAt:         s.nowF(),
	})
	return err
}

// observeDecision emits the decision to telemetry and the audit trail.
func (s *AuthService) observeDecision(ctx context.Context, user *userdomain.User, merchant *merchantdomain.Merchant, in LoginInput, result trustscore.Result) {
	if s.decisions != nil {
		s.decisions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("decision", string(result.Decision)),
		))
	}
	if s.emitter != nil {
		event := &telemetry.DecisionEvent{
			Phone:             in.Phone,
			MerchantID:        merchant.ID,
			DeviceFingerprint: in.DeviceFingerprint,
			TrustScore:        result.TotalScore,
			Decision:          string(result.Decision),
			RiskFlags:         result.RiskFlags,
			CreatedAt:         s.nowF(),
		}
		if err := s.emitter.Emit(ctx, event); err != nil {
			log.Printf("auth: emit decision event: %v", err)
		}
	}
	if s.audit != nil {
		meta, _ := json.Marshal(map[string]interface{}{
			"trust_score": result.TotalScore,
			"decision":    string(result.Decision),
			"risk_flags":  result.RiskFlags,
		})
		s.audit.LogEvent(ctx, user.ID, user.Phone, "auth.decision", "login", string(meta))
	}
}
