package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database    DatabaseConfig
	Server      ServerConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	Redis       RedisConfig
	NATS        NATSConfig
	AI          AIConfig
	WhatsApp    WhatsAppConfig
	Email       EmailConfig
	Negotiation NegotiationConfig
	Cleanup     CleanupConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	MigrateOnStart    bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	BaseDomain     string // e.g. biashara.co.ke; tenants live at {subdomain}.{BaseDomain}
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	SessionSecret   string
	SessionTTL      time.Duration
	ValidateTimeout time.Duration
	CookieSecure    bool
	LockThreshold   int
	LockDuration    time.Duration
	TimingBase      time.Duration
	TimingJitter    time.Duration
	BootstrapEmail  string
	BootstrapPass   string
}

type RateLimitConfig struct {
	LoginMax       int
	LoginWindow    time.Duration
	ChatPerMinute  int
	WebhookPerMin  int
	RegisterPerMin int
}

type RedisConfig struct {
	Addr     string // empty selects the in-process limiter
	Password string
	DB       int
}

type NATSConfig struct {
	URL string // empty disables event publishing
}

type AIBackendConfig struct {
	URL     string // OpenAI-compatible API base, e.g. https://api.openai.com/v1
	APIKey  string
	Model   string
	Timeout time.Duration
}

type AIConfig struct {
	Fast    AIBackendConfig
	Quality AIBackendConfig
}

type WhatsAppConfig struct {
	APIBase     string
	AccessToken string
	VerifyToken string
	AppSecret   string
}

type EmailConfig struct {
	AWSRegion string // empty logs emails instead of sending
	From      string
}

type NegotiationConfig struct {
	FloorRatio float64
	IdleTTL    time.Duration
}

type CleanupConfig struct {
	Schedule           string
	AuditRetentionDays int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	secret := getEnv("SESSION_SECRET", "")
	if secret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "biashara"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			MigrateOnStart:    getEnvAsBool("MIGRATE_ON_START", true),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			BaseDomain:     strings.ToLower(getEnv("BASE_DOMAIN", "localhost")),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			SessionSecret:   secret,
			SessionTTL:      getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			ValidateTimeout: getEnvAsDuration("SESSION_VALIDATE_TIMEOUT", 2*time.Second),
			CookieSecure:    getEnvAsBool("COOKIE_SECURE", env == "production"),
			LockThreshold:   getEnvAsInt("AUTH_LOCK_THRESHOLD", 5),
			LockDuration:    getEnvAsDuration("AUTH_LOCK_DURATION", 30*time.Minute),
			TimingBase:      time.Duration(getEnvAsInt("AUTH_TIMING_BASE_MS", 300)) * time.Millisecond,
			TimingJitter:    time.Duration(getEnvAsInt("AUTH_TIMING_RANDOM_MS", 150)) * time.Millisecond,
			BootstrapEmail:  getEnv("PLATFORM_OWNER_EMAIL", ""),
			BootstrapPass:   getEnv("PLATFORM_OWNER_PASSWORD", ""),
		},
		RateLimit: RateLimitConfig{
			LoginMax:       getEnvAsInt("RATE_LIMIT_LOGIN_MAX", 10),
			LoginWindow:    getEnvAsDuration("RATE_LIMIT_LOGIN_WINDOW", 15*time.Minute),
			ChatPerMinute:  getEnvAsInt("RATE_LIMIT_CHAT_PER_MINUTE", 30),
			WebhookPerMin:  getEnvAsInt("RATE_LIMIT_WEBHOOK_PER_MINUTE", 600),
			RegisterPerMin: getEnvAsInt("RATE_LIMIT_REGISTER_PER_MINUTE", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		AI: AIConfig{
			Fast: AIBackendConfig{
				URL:     getEnv("AI_FAST_URL", ""),
				APIKey:  getEnv("AI_FAST_API_KEY", ""),
				Model:   getEnv("AI_FAST_MODEL", ""),
				Timeout: getEnvAsDuration("AI_FAST_TIMEOUT", 5*time.Second),
			},
			Quality: AIBackendConfig{
				URL:     getEnv("AI_QUALITY_URL", ""),
				APIKey:  getEnv("AI_QUALITY_API_KEY", ""),
				Model:   getEnv("AI_QUALITY_MODEL", ""),
				Timeout: getEnvAsDuration("AI_QUALITY_TIMEOUT", 20*time.Second),
			},
		},
		WhatsApp: WhatsAppConfig{
			APIBase:     getEnv("WHATSAPP_API_BASE", "https://graph.facebook.com/v19.0"),
			AccessToken: getEnv("WHATSAPP_ACCESS_TOKEN", ""),
			VerifyToken: getEnv("WHATSAPP_VERIFY_TOKEN", ""),
			AppSecret:   getEnv("WHATSAPP_APP_SECRET", ""),
		},
		Email: EmailConfig{
			AWSRegion: getEnv("EMAIL_AWS_REGION", ""),
			From:      getEnv("EMAIL_FROM", "no-reply@biashara.co.ke"),
		},
		Negotiation: NegotiationConfig{
			FloorRatio: getEnvAsFloat("NEGOTIATION_FLOOR_RATIO", 0.8),
			IdleTTL:    getEnvAsDuration("NEGOTIATION_IDLE_TTL", 2*time.Hour),
		},
		Cleanup: CleanupConfig{
			Schedule:           getEnv("CLEANUP_SCHEDULE", "0 */15 * * * *"),
			AuditRetentionDays: getEnvAsInt("AUDIT_RETENTION_DAYS", 90),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateSessionSecret(secret, env); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.LockThreshold < 1 {
		return fmt.Errorf("AUTH_LOCK_THRESHOLD must be at least 1")
	}
	if c.Auth.LockDuration <= 0 {
		return fmt.Errorf("AUTH_LOCK_DURATION must be positive")
	}
	if c.RateLimit.LoginMax < 1 || c.RateLimit.LoginWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_LOGIN_MAX and RATE_LIMIT_LOGIN_WINDOW must be positive")
	}
	if c.Negotiation.FloorRatio <= 0 || c.Negotiation.FloorRatio > 1 {
		return fmt.Errorf("NEGOTIATION_FLOOR_RATIO must be in (0, 1]")
	}
	if c.Server.Env == "production" && c.WhatsApp.VerifyToken != "" && c.WhatsApp.AppSecret == "" {
		return fmt.Errorf("WHATSAPP_APP_SECRET is required when the webhook is enabled in production")
	}
	return nil
}

// validateSessionSecret enforces minimum security standards for the session signing key
func validateSessionSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32 // 256 bits
	}

	if len(secret) < minLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak || strings.Repeat(weak, len(secretLower)/max(len(weak), 1)) == secretLower {
			return fmt.Errorf("SESSION_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return getEnvAsList("ALLOWED_ORIGINS")
	}

	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
	}
}
