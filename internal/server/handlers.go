package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"merchant-trust-platform/backend/internal/auth/service"
	challengedomain "merchant-trust-platform/backend/internal/challenge/domain"
)

// serviceError maps an auth service sentinel error onto an HTTP status and a
// stable error code. Unmapped errors become 500s.
func (s *Server) serviceError(c *gin.Context, err error) {
	type mapping struct {
		target error
		status int
		code   string
	}
	mappings := []mapping{
		{service.ErrUnknownPhone, http.StatusNotFound, "unknown_phone"},
		{service.ErrMerchantNotFound, http.StatusNotFound, "merchant_not_found"},
		{service.ErrChallengeNotFound, http.StatusNotFound, "challenge_not_found"},
		{service.ErrNoPrimaryChallenge, http.StatusConflict, "no_primary_challenge"},
		{service.ErrPhoneAlreadyRegistered, http.StatusConflict, "phone_already_registered"},
		{service.ErrInvalidPhone, http.StatusBadRequest, "invalid_phone"},
		{service.ErrInvalidPin, http.StatusBadRequest, "invalid_pin"},
		{service.ErrInvalidAnswer, http.StatusBadRequest, "invalid_answer"},
		{service.ErrInvalidCategory, http.StatusBadRequest, "invalid_category"},
		{service.ErrInvalidVerificationCode, http.StatusBadRequest, "invalid_verification_code"},
		{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{service.ErrPhoneNotVerified, http.StatusForbidden, "phone_not_verified"},
		{service.ErrPinLocked, http.StatusLocked, "pin_locked"},
	}
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, gin.H{"error": m.code, "message": m.target.Error()})
			return
		}
	}
	s.logger.Error("internal error", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "something went wrong"})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": message})
}

type loginContext struct {
	Phone             string   `json:"phone" binding:"required"`
	DeviceFingerprint string   `json:"device_fingerprint" binding:"required"`
	DeviceName        string   `json:"device_name"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
}

func (r loginContext) input(c *gin.Context) service.LoginInput {
	return service.LoginInput{
		Phone:             r.Phone,
		DeviceFingerprint: r.DeviceFingerprint,
		DeviceName:        r.DeviceName,
		Latitude:          r.Latitude,
		Longitude:         r.Longitude,
		IP:                c.ClientIP(),
		UserAgent:         c.Request.UserAgent(),
	}
}

func loginJSON(res *service.LoginResult) gin.H {
	out := gin.H{
		"status":       res.Status,
		"trust_score":  res.TrustScore,
		"confidence":   res.Confidence,
		"risk_flags":   res.RiskFlags,
		"user_message": res.UserMessage,
	}
	if res.SessionToken != "" {
		out["session_token"] = res.SessionToken
		out["session_expires_at"] = res.SessionExpiresAt
	}
	if res.Challenge != nil {
		out["challenge"] = gin.H{
			"merchant_challenge_id": res.Challenge.MerchantChallengeID,
			"challenge_id":          res.Challenge.ChallengeID,
			"question_fr":           res.Challenge.QuestionFr,
			"question_dioula":       res.Challenge.QuestionDioula,
			"category":              res.Challenge.Category,
			"difficulty":            res.Challenge.Difficulty,
		}
	}
	return out
}

// initiateLogin handles POST /v1/auth/login/initiate.
func (s *Server) initiateLogin(c *gin.Context) {
	var req loginContext
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "phone and device_fingerprint required")
		return
	}
	res, err := s.auth.InitiateLogin(c.Request.Context(), req.input(c))
	if err != nil {
		s.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, loginJSON(res))
}

// answerChallenge handles POST /v1/auth/challenge/answer.
func (s *Server) answerChallenge(c *gin.Context) {
	var req struct {
		loginContext
		MerchantChallengeID int64  `json:"merchant_challenge_id" binding:"required"`
		Answer              string `json:"answer" binding:"required"`
		AttemptNumber       int    `json:"attempt_number"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "phone, device_fingerprint, merchant_challenge_id and answer required")
		return
	}
	res, err := s.auth.AnswerChallenge(c.Request.Context(), service.AnswerInput{
		LoginInput:          req.input(c),
		MerchantChallengeID: req.MerchantChallengeID,
		Answer:              req.Answer,
		AttemptNumber:       req.AttemptNumber,
	})
	if err != nil {
		s.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, loginJSON(res))
}

// setupChallenge handles POST /v1/auth/challenge/setup.
func (s *Server) setupChallenge(c *gin.Context) {
	var req struct {
		Phone       string `json:"phone" binding:"required"`
		ChallengeID int64  `json:"challenge_id" binding:"required"`
		Answer      string `json:"answer" binding:"required"`
		IsPrimary   bool   `json:"is_primary"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "phone, challenge_id and answer required")
		return
	}
	enrollment, err := s.auth.SetupChallenge(c.Request.Context(), service.SetupInput{
		Phone:       req.Phone,
		ChallengeID: req.ChallengeID,
		Answer:      req.Answer,
		IsPrimary:   req.IsPrimary,
	})
	if err != nil {
		s.serviceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"merchant_challenge_id": enrollment.ID,
		"challenge_id":          enrollment.ChallengeID,
		"is_primary":            enrollment.IsPrimary,
	})
}

// challengesByCategory handles GET /v1/challenges/:category.
func (s *Server) challengesByCategory(c *gin.Context) {
	category := challengedomain.Category(c.Param("category"))
	challenges, err := s.auth.ChallengesByCategory(c.Request.Context(), category)
	if err != nil {
		s.serviceError(c, err)
		return
	}
	out := make([]gin.H, 0, len(challenges))
	for _, ch := range challenges {
		out = append(out, gin.H{
			"id":              ch.ID,
			"question_fr":     ch.QuestionFr,
			"question_dioula": ch.QuestionDioula,
			"category":        ch.Category,
			"difficulty":      ch.Difficulty,
		})
	}
	c.JSON(http.StatusOK, gin.H{"challenges": out})
}

// stats handles GET /v1/auth/stats?phone=...
func (s *Server) stats(c *gin.Context) {
	phone := c.Query("phone")
	if phone == "" {
		badRequest(c, "phone query parameter required")
		return
	}
	stats, err := s.auth.Stats(c.Request.Context(), phone)
	if err != nil {
		s.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_attempts":      stats.TotalAttempts,
		"successful_attempts": stats.SuccessfulAttempts,
		"failed_attempts":     stats.FailedAttempts,
		"average_trust_score": stats.AverageTrustScore,
	})
}

// register handles POST /v1/auth/register.
func (s *Server) register(c *gin.Context) {
	var req struct {
		Phone        string `json:"phone" binding:"required"`
		Name         string `json:"name" binding:"required"`
		Pin          string `json:"pin" binding:"required"`
		BusinessName string `json:"business_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "phone, name and pin required")
		return
	}
	user, err := s.auth.RegisterWithPhone(c.Request.Context(), service.RegisterInput{
		Phone:        req.Phone,
		Name:         req.Name,
		Pin:          req.Pin,
		BusinessName: req.BusinessName,
	})
	if err != nil {
		s.serviceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"user_id":        user.ID,
		"phone":          user.Phone,
		"phone_verified": user.PhoneVerified,
	})
}

// sendVerificationCode handles POST /v1/auth/verification-code.
func (s *Server) sendVerificationCode(c *gin.Context) {
	var req struct {
		Phone string `json:"phone" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "phone required")
		return
	}
	if err := s.auth.SendVerificationCode(c.Request.Context(), req.Phone); err != nil {
		s.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

// verifyPhone handles POST /v1/auth/verify-phone.
func (s *Server) verifyPhone(c *gin.Context) {
	var req struct {
		Phone string `json:"phone" binding:"required"`
		Code  string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "phone and code required")
		return
	}
	if err := s.auth.VerifyPhone(c.Request.Context(), req.Phone, req.Code); err != nil {
		s.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true})
}

// loginWithPin handles POST /v1/auth/login/pin.
func (s *Server) loginWithPin(c *gin.Context) {
	var req struct {
		Phone             string `json:"phone" binding:"required"`
		Pin               string `json:"pin" binding:"required"`
		DeviceFingerprint string `json:"device_fingerprint" binding:"required"`
		DeviceName        string `json:"device_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "phone, pin and device_fingerprint required")
		return
	}
	res, err := s.auth.LoginWithPin(c.Request.Context(), req.Phone, req.Pin, req.DeviceFingerprint, req.DeviceName)
	if err != nil {
		s.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_token":      res.SessionToken,
		"session_expires_at": res.SessionExpiresAt,
		"user_id":            res.UserID,
		"merchant_id":        res.MerchantID,
	})
}

// requestPinReset handles POST /v1/auth/pin-reset/request.
func (s *Server) requestPinReset(c *gin.Context) {
	var req struct {
		Phone string `json:"phone" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "phone required")
		return
	}
	if err := s.auth.RequestPinReset(c.Request.Context(), req.Phone); err != nil {
		s.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

// resetPin handles POST /v1/auth/pin-reset/confirm.
func (s *Server) resetPin(c *gin.Context) {
	var req struct {
		Phone  string `json:"phone" binding:"required"`
		Code   string `json:"code" binding:"required"`
		NewPin string `json:"new_pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "phone, code and new_pin required")
		return
	}
	if err := s.auth.ResetPin(c.Request.Context(), req.Phone, req.Code, req.NewPin); err != nil {
		s.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

// devVerificationCode handles GET /v1/dev/verification-code?phone=...
// Registered only when dev code mode is enabled.
func (s *Server) devVerificationCode(c *gin.Context) {
	phone := c.Query("phone")
	if phone == "" {
		badRequest(c, "phone query parameter required")
		return
	}
	code, ok := s.codes.Get(c.Request.Context(), phone)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "code_not_found", "message": "no active code for phone"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"phone": phone, "code": code})
}
