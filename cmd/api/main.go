package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/biasharahub/biashara/internal/ai"
	"github.com/biasharahub/biashara/internal/auth"
	"github.com/biasharahub/biashara/internal/background"
	"github.com/biasharahub/biashara/internal/config"
	"github.com/biasharahub/biashara/internal/database"
	"github.com/biasharahub/biashara/internal/events"
	"github.com/biasharahub/biashara/internal/handlers"
	"github.com/biasharahub/biashara/internal/messaging"
	"github.com/biasharahub/biashara/internal/metrics"
	middlewareCustom "github.com/biasharahub/biashara/internal/middleware"
	"github.com/biasharahub/biashara/internal/models"
	"github.com/biasharahub/biashara/internal/negotiation"
	"github.com/biasharahub/biashara/internal/ratelimit"
	"github.com/biasharahub/biashara/internal/repositories"
	"github.com/biasharahub/biashara/internal/routes"
	"github.com/biasharahub/biashara/internal/services"
	pkgauth "github.com/biasharahub/biashara/pkg/auth"
	pkghttp "github.com/biasharahub/biashara/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env), slog.String("base_domain", cfg.Server.BaseDomain))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := db.Migrate(ctx)
		cancel()
		if err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Initialize repositories
	platformUsers := repositories.NewPlatformUserRepository(db)
	tenantUsers := repositories.NewTenantUserRepository(db)
	tenants := repositories.NewTenantRepository(db)
	attempts := repositories.NewLoginAttemptRepository(db)
	revocations := repositories.NewSessionRevocationRepository(db)
	auditLogs := repositories.NewAuditLogRepository(db)

	// Bootstrap the first platform owner if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensurePlatformOwner(ctx, platformUsers, cfg.Auth.BootstrapEmail, cfg.Auth.BootstrapPass, logger); err != nil {
		logger.Error("failed to ensure platform owner", slog.Any("error", err))
	}
	cancel()

	appMetrics := metrics.New()

	ipConfig, err := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("invalid trusted proxies", slog.Any("error", err))
		os.Exit(1)
	}

	// Login limiter: Redis when configured so every replica shares the counters
	limiterCfg := ratelimit.Config{Max: cfg.RateLimit.LoginMax, Window: cfg.RateLimit.LoginWindow}
	var (
		limiter       ratelimit.Limiter
		memoryLimiter *ratelimit.MemoryLimiter
		redisClient   *redis.Client
	)
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter = ratelimit.NewRedisLimiter(redisClient, limiterCfg)
		logger.Info("login rate limiter backed by redis", slog.String("addr", cfg.Redis.Addr))
	} else {
		memoryLimiter = ratelimit.NewMemoryLimiter(limiterCfg)
		limiter = memoryLimiter
		logger.Info("login rate limiter running in process")
	}

	// Event publishing is optional
	var publisher *events.Publisher
	var eventSink services.EventPublisher
	if cfg.NATS.URL != "" {
		publisher, err = events.Connect(cfg.NATS.URL, "biashara-api", logger)
		if err != nil {
			logger.Error("failed to connect to NATS", slog.Any("error", err))
			os.Exit(1)
		}
		eventSink = publisher
	}

	// Email
	var mailer services.EmailService
	if cfg.Email.AWSRegion != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		ses, err := services.NewAWSSESEmailService(ctx, cfg.Email.AWSRegion, cfg.Email.From, logger)
		cancel()
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		mailer = ses
	} else {
		mailer = services.NewLogEmailService(logger)
	}

	dispatcherConfig := services.DefaultDispatcherConfig()
	dispatcherConfig.Dropped = appMetrics
	dispatcher := services.NewDispatcher(dispatcherConfig, logger)
	auditService := services.NewAuditService(auditLogs, eventSink, dispatcher, logger)

	// Sessions and authentication
	sessions := auth.NewSessionManager(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		Base:   cfg.Auth.TimingBase,
		Jitter: cfg.Auth.TimingJitter,
	})
	authService := services.NewAuthService(services.AuthServiceDeps{
		Realms: []services.Realm{
			services.NewPlatformRealm(platformUsers),
			services.NewTenantRealm(tenants, tenantUsers),
		},
		Attempts:    attempts,
		Revocations: revocations,
		Limiter:     limiter,
		Sessions:    sessions,
		Timing:      timingDelay,
		Auditor:     auditService,
		Mailer:      mailer,
		Dispatcher:  dispatcher,
		Observer:    appMetrics,
		Logger:      logger,
	}, services.AuthConfig{
		LockThreshold:   cfg.Auth.LockThreshold,
		LockDuration:    cfg.Auth.LockDuration,
		ValidateTimeout: cfg.Auth.ValidateTimeout,
	})

	scheme := "https"
	if !cfg.Auth.CookieSecure {
		scheme = "http"
	}
	tenantService := services.NewTenantService(tenants, auditService, mailer, eventSink, dispatcher, services.TenantServiceConfig{
		BaseDomain: cfg.Server.BaseDomain,
		Scheme:     scheme,
	}, logger)

	// AI routing and negotiation
	fast := ai.NewResilientBackend(newAIBackend(ai.BackendFast, cfg.AI.Fast), cfg.AI.Fast.Timeout, logger)
	quality := ai.NewResilientBackend(newAIBackend(ai.BackendQuality, cfg.AI.Quality), cfg.AI.Quality.Timeout, logger)

	negotiations, err := negotiation.NewManager(negotiation.ManagerConfig{
		Ladder:     negotiation.DefaultLadder(),
		FloorRatio: cfg.Negotiation.FloorRatio,
		IdleTTL:    cfg.Negotiation.IdleTTL,
	}, negotiation.NewPhrasebook(), logger)
	if err != nil {
		logger.Error("invalid negotiation config", slog.Any("error", err))
		os.Exit(1)
	}

	router := ai.NewRouter(ai.RouterDeps{
		Fast:       fast,
		Quality:    quality,
		Negotiator: negotiations,
		Observer:   appMetrics,
		Logger:     logger,
	})

	whatsapp := messaging.NewWhatsAppClient(cfg.WhatsApp.APIBase, cfg.WhatsApp.AccessToken, &http.Client{Timeout: 15 * time.Second})
	conversations := services.NewConversationStore(20)
	// worst case: urgency on the fast backend, then intent and reply on the quality one
	chatConfig := services.InboundChatDispatcherConfig(cfg.AI.Fast.Timeout + 2*cfg.AI.Quality.Timeout)
	chatConfig.Dropped = appMetrics
	chatDispatcher := services.NewDispatcher(chatConfig, logger)
	chatService := services.NewChatService(router, tenants, whatsapp, conversations, chatDispatcher, logger)

	// Scheduled cleanup
	staleAttempts := cfg.Auth.LockDuration * 2
	if staleAttempts < 24*time.Hour {
		staleAttempts = 24 * time.Hour
	}
	jobs := []background.Job{
		{Name: "session_revocations", Run: revocations.CleanupExpired},
		{Name: "login_attempts", Run: func(ctx context.Context) (int64, error) {
			return attempts.DeleteStale(ctx, staleAttempts)
		}},
		{Name: "audit_logs", Run: func(ctx context.Context) (int64, error) {
			return auditLogs.Cleanup(ctx, cfg.Cleanup.AuditRetentionDays)
		}},
		background.CountJob("negotiations", negotiations.Evict),
		background.CountJob("conversations", func() int { return conversations.Evict(cfg.Negotiation.IdleTTL) }),
	}
	if memoryLimiter != nil {
		jobs = append(jobs, background.CountJob("rate_limit_buckets", memoryLimiter.Sweep))
	}
	cleanupManager := background.NewCleanupManager(cfg.Cleanup.Schedule, appMetrics, logger, jobs...)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	if err := cleanupManager.Start(cleanupCtx); err != nil {
		logger.Error("failed to start cleanup", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize handlers
	cookies := auth.CookieConfig{Secure: cfg.Auth.CookieSecure, SameSite: "lax"}
	h := routes.Handlers{
		Auth: handlers.NewAuthHandler(authService, cookies, ipConfig, logger),
		Chat: handlers.NewChatHandler(chatService, logger),
		Webhook: handlers.NewWebhookHandler(chatService, handlers.WebhookConfig{
			VerifyToken: cfg.WhatsApp.VerifyToken,
			AppSecret:   cfg.WhatsApp.AppSecret,
		}, logger),
		Tenant:  handlers.NewTenantHandler(tenantService, logger),
		Health:  handlers.NewHealthHandler(db),
		Metrics: appMetrics.Handler(),
	}
	resolver := auth.NewResolver(authService, sessions, auth.ResolverConfig{
		BaseDomain: cfg.Server.BaseDomain,
		Cookies:    cookies,
	}, logger)

	// Setup router
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	mux.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.Env, cfg.Server.BaseDomain, cfg.Server.AllowedOrigins)))
	mux.Use(middlewareCustom.SecureLogger(logger, appMetrics))
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(mux, h, resolver, routes.Limits{
		ChatPerMinute:     cfg.RateLimit.ChatPerMinute,
		WebhookPerMinute:  cfg.RateLimit.WebhookPerMin,
		RegisterPerMinute: cfg.RateLimit.RegisterPerMin,
		IPConfig:          ipConfig,
		Observer:          appMetrics,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	cleanupCancel()
	cleanupManager.Stop()

	if err := chatDispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("inbound chat messages abandoned", slog.Any("error", err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("background tasks abandoned", slog.Any("error", err))
	}
	publisher.Close()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close error", slog.Any("error", err))
		}
	}

	logger.Info("server stopped gracefully")
}

func newAIBackend(name string, c config.AIBackendConfig) ai.Backend {
	return ai.NewHTTPBackend(name, c.URL, c.APIKey, c.Model, &http.Client{Timeout: c.Timeout + 5*time.Second})
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensurePlatformOwner creates the first platform owner when none exists and
// PLATFORM_OWNER_EMAIL and PLATFORM_OWNER_PASSWORD are set.
func ensurePlatformOwner(ctx context.Context, users *repositories.PlatformUserRepository, email, password string, logger *slog.Logger) error {
	if email == "" || password == "" {
		logger.Info("no bootstrap credentials set, skipping platform owner creation")
		return nil
	}

	owners, err := users.CountByRole(ctx, models.PlatformRoleOwner)
	if err != nil {
		return fmt.Errorf("failed to count platform owners: %w", err)
	}
	if owners > 0 {
		logger.Info("platform owner already exists")
		return nil
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return fmt.Errorf("bootstrap password rejected: %w", err)
	}
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap password: %w", err)
	}

	_, err = users.Create(ctx, &models.PlatformUser{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		FullName:     "Platform Owner",
		PasswordHash: hash,
		Role:         models.PlatformRoleOwner,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("failed to create platform owner: %w", err)
	}

	logger.Info("platform owner created")
	return nil
}
