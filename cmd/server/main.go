package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quad/internal/auth"
	"quad/internal/auth/local"
	"quad/internal/auth/supabase"
	"quad/internal/config"
	"quad/internal/database"
	"quad/internal/handlers"
	"quad/internal/logging"
	"quad/internal/repository"
	"quad/internal/security"
	"quad/internal/service"
	"quad/internal/templates"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if cfg.AppBaseURL == "" {
		cfg.AppBaseURL = "http://localhost:" + cfg.ServerPort
	}

	logger, err := logging.New(cfg.EffectiveLogLevel(), cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	readiness := handlers.NewReadiness(
		handlers.StepDatabase,
		handlers.StepMigrations,
		handlers.StepTemplates,
		handlers.StepServices,
	)

	// Listen before initializing so /healthz can report progress
	mux := http.NewServeMux()
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handlers.Recover(logger, handlers.Logging(logger, readiness.Gate(mux))),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("url", cfg.AppBaseURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database with config (supports sqlite, postgres, mysql)
	readiness.SetCurrentStep(handlers.StepDatabase)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	readiness.CompleteStep(handlers.StepDatabase)
	logger.Info("Database connection established", zap.String("type", cfg.DatabaseType))

	// Run migrations
	readiness.SetCurrentStep(handlers.StepMigrations)
	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	readiness.CompleteStep(handlers.StepMigrations)
	logger.Info("Migrations completed successfully")

	// Load templates
	readiness.SetCurrentStep(handlers.StepTemplates)
	tmpl, err := templates.Load()
	if err != nil {
		logger.Fatal("Failed to load templates", zap.Error(err))
	}
	readiness.CompleteStep(handlers.StepTemplates)

	readiness.SetCurrentStep(handlers.StepServices)

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	issueRepo := repository.NewIssueRepository(db)

	// Initialize services
	emailService, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, logger)
	if err != nil {
		logger.Fatal("Failed to initialize email service", zap.Error(err))
	}

	var cleanups []func(context.Context) error

	var provider auth.Provider
	switch cfg.AuthProvider {
	case "supabase":
		client, err := supabase.NewClient(supabase.Config{
			URL:       cfg.SupabaseURL,
			AnonKey:   cfg.SupabaseAnonKey,
			JWTSecret: cfg.SupabaseJWTSecret,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize auth provider", zap.Error(err))
		}
		provider = client
	case "local":
		if !cfg.AuthAutoConfirm && !emailService.IsEnabled() {
			logger.Warn("Email is disabled and AUTH_AUTOCONFIRM is off: confirmation links are only logged at debug level")
		}
		localProvider := local.NewProvider(accountRepo, emailService, local.Options{
			AppBaseURL:      cfg.AppBaseURL,
			SessionDuration: cfg.SessionDuration,
			AutoConfirm:     cfg.AuthAutoConfirm,
		}, logger)
		cleanups = append(cleanups, localProvider.Cleanup)
		provider = localProvider
	default:
		logger.Fatal("Unsupported auth provider", zap.String("provider", cfg.AuthProvider))
	}
	logger.Info("Auth provider configured", zap.String("provider", cfg.AuthProvider))

	provisioningService := service.NewProvisioningService(provider, profileRepo, issueRepo, cfg.AppBaseURL+"/auth/confirm", logger)
	sessionService := service.NewSessionService(provider, cfg.AppBaseURL, logger)

	var limiter security.RateLimiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unreachable, rate limiting will fail open until it recovers", zap.Error(err))
		}
		limiter = security.NewRedisRateLimiter(redisClient, cfg.RateLimitRequests, cfg.RateLimitWindow)
		logger.Info("Rate limiting backed by Redis", zap.String("addr", cfg.RedisAddr))
	} else {
		memoryLimiter := security.NewMemoryRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
		cleanups = append(cleanups, func(context.Context) error {
			memoryLimiter.Cleanup()
			return nil
		})
		limiter = memoryLimiter
	}

	secret := cfg.SessionSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn("SESSION_SECRET not set, CSRF tokens will not survive a restart")
	}

	// Initialize handlers
	middleware := handlers.NewMiddleware(sessionService, limiter, security.NewCSRFGenerator(secret), cfg.TrustProxy, logger)
	authHandler := handlers.NewAuthHandler(provisioningService, sessionService, middleware, tmpl, logger)
	dashboardHandler := handlers.NewDashboardHandler(profileRepo, middleware, tmpl, logger)

	handlers.RegisterRoutes(mux, middleware, authHandler, dashboardHandler, readiness)
	readiness.CompleteStep(handlers.StepServices)
	readiness.MarkReady()
	logger.Info("Server ready")

	// Start background cleanup of expired sessions, tokens and limiter state
	go runCleanup(ctx, logger, cleanups)

	// Wait for interrupt signal
	<-ctx.Done()
	logger.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

// runCleanup periodically runs every cleanup until ctx is cancelled
func runCleanup(ctx context.Context, logger *zap.Logger, cleanups []func(context.Context) error) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, cleanup := range cleanups {
				if err := cleanup(ctx); err != nil {
					logger.Error("Cleanup failed", zap.Error(err))
				}
			}
			logger.Debug("Expired sessions and tokens cleaned up")
		}
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
