package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Environment)

	assert.Equal(t, 100, cfg.Location.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.Location.BatchInterval)
	assert.Equal(t, 5*time.Minute, cfg.Location.StaleAfter)

	assert.Equal(t, 3, cfg.Matching.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Matching.AttemptBackoff)
	assert.Equal(t, 10, cfg.Matching.CandidateLimit)
	assert.Equal(t, 10*time.Second, cfg.Matching.LockTTL)
	assert.Equal(t, 0.5, cfg.Matching.RatingTieBreakKm)

	assert.Equal(t, 50.0, cfg.Pricing.BaseFare)
	assert.Equal(t, 12.0, cfg.Pricing.PerKmRate)
	assert.Equal(t, 2.0, cfg.Pricing.PerMinRate)
	assert.Equal(t, 1.0, cfg.Pricing.DefaultSurge)

	assert.Equal(t, 3, cfg.Payments.MaxAttempts)
	assert.Equal(t, time.Hour, cfg.Payments.IdempotencyTTL)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	os.Clearenv()
	t.Setenv("LOCATION_BATCH_SIZE", "250")
	t.Setenv("LOCATION_BATCH_INTERVAL_MS", "2500")
	t.Setenv("MATCH_MAX_ATTEMPTS", "5")
	t.Setenv("MATCH_SEARCH_RADIUS_KM", "7.5")
	t.Setenv("PRICING_DEFAULT_SURGE", "1.4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.Location.BatchSize)
	assert.Equal(t, 2500*time.Millisecond, cfg.Location.BatchInterval)
	assert.Equal(t, 5, cfg.Matching.MaxAttempts)
	assert.Equal(t, 7.5, cfg.Matching.SearchRadiusKm)
	assert.Equal(t, 1.4, cfg.Pricing.DefaultSurge)
}

func TestLoadInvalidValues(t *testing.T) {
	os.Clearenv()
	t.Setenv("LOCATION_BATCH_SIZE", "0")

	_, err := Load()
	assert.Error(t, err)

	os.Clearenv()
	t.Setenv("PRICING_DEFAULT_SURGE", "0.5")

	_, err = Load()
	assert.Error(t, err)
}

func TestDatabaseDSNPrefersURL(t *testing.T) {
	cfg := DatabaseConfig{
		URL:  "postgres://app:secret@db:5432/ridecore",
		Host: "ignored",
	}
	assert.Equal(t, "postgres://app:secret@db:5432/ridecore", cfg.DSN())

	cfg = DatabaseConfig{
		Host:     "localhost",
		Port:     "5432",
		User:     "postgres",
		Password: "postgres",
		DBName:   "ridecore",
		SSLMode:  "disable",
	}
	assert.Contains(t, cfg.DSN(), "dbname=ridecore")
}

func TestBreakerSettingsOverrides(t *testing.T) {
	os.Clearenv()
	t.Setenv("CB_SERVICE_OVERRIDES", `{"stripe":{"failure_threshold":10,"timeout_seconds":5}}`)

	cfg, err := Load()
	require.NoError(t, err)

	settings := cfg.Resilience.CircuitBreaker.SettingsFor("stripe")
	assert.Equal(t, 10, settings.FailureThreshold)
	assert.Equal(t, 5, settings.TimeoutSeconds)
	assert.Equal(t, 1, settings.SuccessThreshold)

	defaults := cfg.Resilience.CircuitBreaker.SettingsFor("twilio")
	assert.Equal(t, 5, defaults.FailureThreshold)
	assert.Equal(t, 30, defaults.TimeoutSeconds)
}
