// Package server exposes the authentication flows over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	attemptdomain "merchant-trust-platform/backend/internal/attempt/domain"
	"merchant-trust-platform/backend/internal/auth/service"
	challengedomain "merchant-trust-platform/backend/internal/challenge/domain"
	"merchant-trust-platform/backend/internal/config"
	"merchant-trust-platform/backend/internal/devcode"
	"merchant-trust-platform/backend/internal/security"
	userdomain "merchant-trust-platform/backend/internal/user/domain"
)

// AuthService is the slice of the auth service the HTTP layer calls.
type AuthService interface {
	InitiateLogin(ctx context.Context, in service.LoginInput) (*service.LoginResult, error)
	AnswerChallenge(ctx context.Context, in service.AnswerInput) (*service.LoginResult, error)
	SetupChallenge(ctx context.Context, in service.SetupInput) (*challengedomain.MerchantChallenge, error)
	ChallengesByCategory(ctx context.Context, category challengedomain.Category) ([]*challengedomain.Challenge, error)
	Stats(ctx context.Context, phone string) (*attemptdomain.Stats, error)
	RegisterWithPhone(ctx context.Context, in service.RegisterInput) (*userdomain.User, error)
	SendVerificationCode(ctx context.Context, phone string) error
	VerifyPhone(ctx context.Context, phone, code string) error
	LoginWithPin(ctx context.Context, phone, pin, deviceFingerprint, deviceName string) (*service.PinLoginResult, error)
	RequestPinReset(ctx context.Context, phone string) error
	ResetPin(ctx context.Context, phone, code, newPin string) error
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg    *config.Config
	auth   AuthService
	tokens *security.TokenProvider
	codes  devcode.Store
	logger *slog.Logger

	router  *gin.Engine
	httpSrv *http.Server
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New builds the server and registers all routes.
func New(cfg *config.Config, auth AuthService, tokens *security.TokenProvider, codes devcode.Store, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		auth:   auth,
		tokens: tokens,
		codes:  codes,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.router.Use(gin.Recovery(), s.loggingMiddleware())
	s.setupRoutes()

	s.httpSrv = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)

	v1 := s.router.Group("/v1")

	v1.POST("/auth/register", s.register)
	v1.POST("/auth/verification-code", s.sendVerificationCode)
	v1.POST("/auth/verify-phone", s.verifyPhone)
	v1.POST("/auth/login/pin", s.loginWithPin)
	v1.POST("/auth/pin-reset/request", s.requestPinReset)
	v1.POST("/auth/pin-reset/confirm", s.resetPin)

	v1.POST("/auth/login/initiate", s.initiateLogin)
	v1.POST("/auth/challenge/answer", s.answerChallenge)
	v1.GET("/challenges/:category", s.challengesByCategory)

	// Session-holder routes: challenge enrollment happens after a PIN login,
	// stats back the agent dashboard.
	protected := v1.Group("", s.sessionMiddleware())
	protected.POST("/auth/challenge/setup", s.setupChallenge)
	protected.GET("/auth/stats", s.stats)

	if s.cfg.CodeReturnToClient {
		v1.GET("/dev/verification-code", s.devVerificationCode)
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "env": s.cfg.Env})
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.HTTPAddr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// Router returns the underlying router, for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
