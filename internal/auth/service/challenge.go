package service

import (
	"context"
	"fmt"
	"strings"

	attemptdomain "merchant-trust-platform/backend/internal/attempt/domain"
	challengedomain "merchant-trust-platform/backend/internal/challenge/domain"
)

// SetupInput enrolls a merchant in one catalog question.
type SetupInput struct {
	Phone       string
	ChallengeID int64
	Answer      string
	IsPrimary   bool
}

// SetupChallenge stores the merchant's hashed answer for a catalog question.
// When IsPrimary is true any previous primary enrollment is demoted.
func (s *AuthService) SetupChallenge(ctx context.Context, in SetupInput) (*challengedomain.MerchantChallenge, error) {
	user, err := s.users.GetByPhone(ctx, in.Phone)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnknownPhone
	}
	merchant, err := s.merchants.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}

	challenge, err := s.challenges.GetChallenge(ctx, in.ChallengeID)
	if err != nil {
		return nil, err
	}
	if challenge == nil || !challenge.IsActive {
		return nil, ErrChallengeNotFound
	}

	if strings.TrimSpace(in.Answer) == "" {
		return nil, ErrInvalidAnswer
	}
	answerHash, err := s.hasher.HashAnswer(in.Answer)
	if err != nil {
		return nil, err
	}

	enrollment, err := s.challenges.CreateEnrollment(ctx, &challengedomain.MerchantChallenge{
		MerchantID:  merchant.ID,
		ChallengeID: challenge.ID,
		AnswerHash:  answerHash,
		IsPrimary:   in.IsPrimary,
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		s.audit.LogEvent(ctx, user.ID, user.Phone, "challenge.enrolled", "challenge",
			fmt.Sprintf(`{"challenge_id":%d,"is_primary":%t}`, challenge.ID, in.IsPrimary))
	}
	return enrollment, nil
}

// ChallengesByCategory lists active catalog questions for one category, so a
// merchant can pick questions they can answer.
func (s *AuthService) ChallengesByCategory(ctx context.Context, category challengedomain.Category) ([]*challengedomain.Challenge, error) {
	if !challengedomain.ValidCategory(category) {
		return nil, ErrInvalidCategory
	}
	return s.challenges.ListActiveByCategory(ctx, category)
}

// Stats aggregates the merchant's attempts over the history window, for agent
// dashboards.
func (s *AuthService) Stats(ctx context.Context, phone string) (*attemptdomain.Stats, error) {
	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnknownPhone
	}
	merchant, err := s.merchants.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}
	return s.attempts.StatsByMerchant(ctx, merchant.ID, s.nowF().Add(-historyWindow))
}
