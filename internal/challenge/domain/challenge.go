package domain

import "time"

// Category classifies catalog questions by the kind of knowledge they probe.
type Category string

const (
	CategoryFamily    Category = "family"
	CategoryLocation  Category = "location"
	CategoryBusiness  Category = "business"
	CategoryCommunity Category = "community"
)

// ValidCategory reports whether c is one of the four catalog categories.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryFamily, CategoryLocation, CategoryBusiness, CategoryCommunity:
		return true
	}
	return false
}

// Challenge is a catalog question. Immutable once a merchant has answered
// against it; deactivation is the only lifecycle change.
type Challenge struct {
	ID             int64
	QuestionFr     string
	QuestionDioula string
	Category       Category
	Difficulty     int // 1..3
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MerchantChallenge is a merchant's enrollment in one catalog question. The
// answer is stored as a salted one-way hash, never plaintext. At most one row
// per merchant is primary.
type MerchantChallenge struct {
	ID          int64
	MerchantID  int64
	ChallengeID int64
	AnswerHash  string
	IsPrimary   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EnrolledChallenge is a MerchantChallenge joined with its catalog question,
// as the orchestrator needs both the hash and the question text.
type EnrolledChallenge struct {
	MerchantChallenge
	QuestionFr     string
	QuestionDioula string
	Category       Category
	Difficulty     int
}
