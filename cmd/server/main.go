package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"alawein/internal/api"
	"alawein/internal/api/handlers"
	"alawein/internal/api/middleware"
	"alawein/internal/engine/billing"
	"alawein/internal/engine/mailer"
	"alawein/internal/engine/scanner"
	"alawein/internal/pkg/logger"
	"alawein/internal/platform/audit"
	"alawein/internal/platform/auth"
	"alawein/internal/platform/config"
	"alawein/internal/platform/database"
	"alawein/internal/platform/idempotency"
	"alawein/internal/platform/repositories"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db, "up"); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	// Repositories
	profileRepo := repositories.NewProfileRepository(db.DB)
	keyRepo := repositories.NewAPIKeyRepository(db.DB)
	orgRepo := repositories.NewOrganizationRepository(db.DB)
	subRepo := repositories.NewSubscriptionRepository(db.DB)
	waitlistRepo := repositories.NewWaitlistRepository(db.DB)
	resultRepo := repositories.NewResultRepository(db.DB)

	// Idempotency window: Redis when configured, otherwise process memory.
	var idemStore idempotency.Store
	var redisPinger handlers.Pinger
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer client.Close()
		store := idempotency.NewRedisStore(client, cfg.Idempotency.Window)
		idemStore, redisPinger = store, store
	} else {
		log.Warn().Msg("No Redis configured, idempotency keys are kept in memory")
		idemStore = idempotency.NewMemoryStore(cfg.Idempotency.Window)
	}

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	hasher := auth.NewKeyHasher(cfg.APIKeys.Pepper, cfg.APIKeys.Prefix)
	auditLogger := audit.NewLogger(db.DB)
	defer auditLogger.Wait()

	provider, err := billing.NewProvider(cfg.Billing)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure billing provider")
	}
	billingSvc := billing.NewService(provider, profileRepo, subRepo, cfg.Billing)
	scannerSvc := scanner.NewService(scanner.NewRuleAnalyzer(), resultRepo)

	templates, err := mailer.LoadTemplates()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse email templates")
	}
	sender, err := mailer.NewSender(cfg.Email)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure email provider")
	}
	mailerSvc := mailer.NewService(sender, templates, cfg.Email)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc, hasher, keyRepo, profileRepo)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit)
	go rateLimiter.Run(ctx)

	deps := &api.Dependencies{
		RestHandler: handlers.NewRestHandler(
			handlers.NewAPIKeyHandler(keyRepo, hasher, auditLogger),
			handlers.NewOrgHandler(orgRepo, auditLogger),
			handlers.NewWaitlistHandler(waitlistRepo, auditLogger),
			handlers.NewAccountHandler(profileRepo, subRepo, resultRepo),
		),
		CheckoutHandler:       handlers.NewCheckoutHandler(billingSvc, auditLogger),
		ScannerHandler:        handlers.NewScannerHandler(scannerSvc),
		EmailHandler:          handlers.NewEmailHandler(mailerSvc),
		BillingWebhookHandler: handlers.NewBillingWebhookHandler(provider, billingSvc),
		HealthHandler:         handlers.NewHealthHandler(db, redisPinger),
		MetricsHandler:        handlers.NewMetricsHandler(),
		AuditHandler:          handlers.NewAuditHandler(auditLogger),
		AuthMiddleware:        authMiddleware,
		RateLimiter:           rateLimiter,
		Idempotency:           idemStore,
		CORS:                  cfg.CORS,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	log.Info().Str("addr", srv.Addr).Msg("Server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Server stopped")
}
