package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("SESSION_SECRET", "test-secret-32-characters-long!!")
	t.Setenv("DB_PASSWORD", "test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Auth.LockThreshold)
	assert.Equal(t, 30*time.Minute, cfg.Auth.LockDuration)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 2*time.Second, cfg.Auth.ValidateTimeout)
	assert.Equal(t, 10, cfg.RateLimit.LoginMax)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.LoginWindow)
	assert.Equal(t, 5*time.Second, cfg.AI.Fast.Timeout)
	assert.Equal(t, 20*time.Second, cfg.AI.Quality.Timeout)
	assert.InDelta(t, 0.8, cfg.Negotiation.FloorRatio, 1e-9)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
	assert.False(t, cfg.Auth.CookieSecure)
}

func TestLoad_CustomValues(t *testing.T) {
	setRequired(t)
	t.Setenv("AUTH_LOCK_THRESHOLD", "3")
	t.Setenv("AUTH_LOCK_DURATION", "10m")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 172.16.0.0/12")
	t.Setenv("BASE_DOMAIN", "Biashara.CO.KE")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Auth.LockThreshold)
	assert.Equal(t, 10*time.Minute, cfg.Auth.LockDuration)
	assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.0/12"}, cfg.Server.TrustedProxies)
	assert.Equal(t, "biashara.co.ke", cfg.Server.BaseDomain)
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	setRequired(t)
	t.Setenv("SESSION_TTL", "forever")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
}

func TestLoad_RequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("DB_PASSWORD", "test")

	_, err := Load()
	assert.ErrorContains(t, err, "SESSION_SECRET is required")
}

func TestLoad_RejectsBadThreshold(t *testing.T) {
	setRequired(t)
	t.Setenv("AUTH_LOCK_THRESHOLD", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateSessionSecret(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		env     string
		wantErr bool
	}{
		{"long enough for development", "0123456789abcdef", "development", false},
		{"too short for production", "0123456789abcdef", "production", true},
		{"exact repetition of weak word", "passwordpassword", "development", true},
		{"strong production secret", "k7Hq2vN9xR4mW8pL3tY6bJ1cF5gD0sZa", "production", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSessionSecret(tt.secret, tt.env)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
