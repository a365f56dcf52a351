package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	attemptrepo "merchant-trust-platform/backend/internal/attempt/repository"
	"merchant-trust-platform/backend/internal/audit"
	auditrepo "merchant-trust-platform/backend/internal/audit/repository"
	"merchant-trust-platform/backend/internal/auth/service"
	challengerepo "merchant-trust-platform/backend/internal/challenge/repository"
	"merchant-trust-platform/backend/internal/config"
	"merchant-trust-platform/backend/internal/db"
	"merchant-trust-platform/backend/internal/devcode"
	devicerepo "merchant-trust-platform/backend/internal/device/repository"
	merchantrepo "merchant-trust-platform/backend/internal/merchant/repository"
	policyengine "merchant-trust-platform/backend/internal/policy/engine"
	"merchant-trust-platform/backend/internal/security"
	"merchant-trust-platform/backend/internal/server"
	"merchant-trust-platform/backend/internal/sms"
	mtpotel "merchant-trust-platform/backend/internal/telemetry/otel"
	"merchant-trust-platform/backend/internal/trustscore"
	userrepo "merchant-trust-platform/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := mtpotel.NewProviders(ctx, cfg.OTLPEndpoint, "auth-backend", cfg.Env, false)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	privPEM, err := security.LoadPEM(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	privateKey, err := security.ParsePrivateKey(string(privPEM))
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	pubPEM, err := security.LoadPEM(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	publicKey, err := security.ParsePublicKey(string(pubPEM))
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.SessionTTL())

	codes := devcode.NewMemoryStore()
	auth := service.NewAuthService(service.Deps{
		Users:              userrepo.NewPostgresRepository(conn),
		Merchants:          merchantrepo.NewPostgresRepository(conn),
		Devices:            devicerepo.NewPostgresRepository(conn),
		Challenges:         challengerepo.NewPostgresRepository(conn),
		Attempts:           attemptrepo.NewPostgresRepository(conn),
		Hasher:             security.NewHasher(cfg.BcryptCost),
		Tokens:             tokens,
		Engine:             trustscore.NewEngine(trustscore.DefaultConfig()),
		Policy:             policyengine.NewOPAEvaluator(cfg.TrustPromotionPolicy),
		CodeStore:          codes,
		SMS:                sms.NewGatewayClient(cfg.SMSAPIKey, cfg.SMSBaseURL, cfg.SMSSender),
		Audit:              audit.NewLogger(auditrepo.NewPostgresRepository(conn), nil),
		Emitter:            mtpotel.NewEventEmitter(providers.LoggerProvider),
		SessionTTL:         cfg.SessionTTL(),
		PromotionThreshold: cfg.TrustPromotionThreshold,
		DevCodeMode:        cfg.CodeReturnToClient,
	})

	srv := server.New(cfg, auth, tokens, codes)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
	log.Println("server stopped")
}
