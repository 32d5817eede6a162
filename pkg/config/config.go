package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	NATS          NATSConfig
	Location      LocationConfig
	Matching      MatchingConfig
	Pricing       PricingConfig
	Payments      PaymentsConfig
	Notifications NotificationsConfig
	Sentry        SentryConfig
	Tracing       TracingConfig
	Resilience    ResilienceConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port            string
	Environment     string
	ServiceName     string
	ReadTimeout     int    // seconds
	WriteTimeout    int    // seconds
	RequestTimeout  int    // seconds, per-request deadline middleware
	ShutdownTimeout int    // seconds
	CORSOrigins     string // comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration. URL wins over the discrete
// fields when set.
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration. Redis backs the lock service, the
// idempotency store, and the shared object cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NATSConfig holds the update bus broker configuration. An empty URL selects
// the in-process bus.
type NATSConfig struct {
	URL string
}

// LocationConfig tunes the location ingest pipeline
type LocationConfig struct {
	BatchSize       int           // flush when the buffer reaches this length
	BatchInterval   time.Duration // flush this long after the first queued ping
	BufferHighWater int           // drop-oldest threshold
	StaleAfter      time.Duration // geo index eviction bound
	SweepInterval   time.Duration // geo index housekeeping cadence
}

// MatchingConfig tunes the driver matching loop
type MatchingConfig struct {
	MaxAttempts      int
	AttemptBackoff   time.Duration
	SearchRadiusKm   float64
	CandidateLimit   int
	LockTTL          time.Duration
	RatingTieBreakKm float64 // distance delta below which rating decides
}

// PricingConfig holds fare defaults used when no active pricing row exists
// for a (region, ride type) pair.
type PricingConfig struct {
	Region       string
	BaseFare     float64
	PerKmRate    float64
	PerMinRate   float64
	DefaultSurge float64
	Currency     string
}

// PaymentsConfig tunes payment settlement
type PaymentsConfig struct {
	MaxAttempts    int
	IdempotencyTTL time.Duration
	StripeAPIKey   string
}

// NotificationsConfig holds the optional SMS and push sender credentials.
// Senders stay disabled when their credentials are absent.
type NotificationsConfig struct {
	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioFromNumber    string
	FirebaseProjectID   string
	FirebaseCredentials string
}

// SentryConfig holds error reporting configuration
type SentryConfig struct {
	DSN string
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRate   float64
}

// ResilienceConfig groups runtime resilience controls
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// CircuitBreakerConfig captures default and per-dependency breaker tuning
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	TimeoutSeconds   int
	IntervalSeconds  int
	ServiceOverrides map[string]CircuitBreakerSettings
}

// CircuitBreakerSettings overrides defaults for a specific dependency
type CircuitBreakerSettings struct {
	FailureThreshold int `json:"failure_threshold"`
	SuccessThreshold int `json:"success_threshold"`
	TimeoutSeconds   int `json:"timeout_seconds"`
	IntervalSeconds  int `json:"interval_seconds"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			ServiceName:     getEnv("SERVICE_NAME", "ridecore"),
			ReadTimeout:     getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout:    getEnvAsInt("WRITE_TIMEOUT", 10),
			RequestTimeout:  getEnvAsInt("REQUEST_TIMEOUT", 30),
			ShutdownTimeout: getEnvAsInt("SHUTDOWN_TIMEOUT", 10),
			CORSOrigins:     getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ridecore"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		Location: LocationConfig{
			BatchSize:       getEnvAsInt("LOCATION_BATCH_SIZE", 100),
			BatchInterval:   time.Duration(getEnvAsInt("LOCATION_BATCH_INTERVAL_MS", 10000)) * time.Millisecond,
			BufferHighWater: getEnvAsInt("LOCATION_BUFFER_HIGH_WATER", 10000),
			StaleAfter:      time.Duration(getEnvAsInt("LOCATION_STALE_AFTER_SECONDS", 300)) * time.Second,
			SweepInterval:   time.Duration(getEnvAsInt("LOCATION_SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
		},
		Matching: MatchingConfig{
			MaxAttempts:      getEnvAsInt("MATCH_MAX_ATTEMPTS", 3),
			AttemptBackoff:   time.Duration(getEnvAsInt("MATCH_BACKOFF_MS", 5000)) * time.Millisecond,
			SearchRadiusKm:   getEnvAsFloat("MATCH_SEARCH_RADIUS_KM", 5.0),
			CandidateLimit:   getEnvAsInt("MATCH_CANDIDATE_LIMIT", 10),
			LockTTL:          time.Duration(getEnvAsInt("MATCH_LOCK_TTL_SECONDS", 10)) * time.Second,
			RatingTieBreakKm: getEnvAsFloat("MATCH_RATING_TIEBREAK_KM", 0.5),
		},
		Pricing: PricingConfig{
			Region:       getEnv("PRICING_REGION", "default"),
			BaseFare:     getEnvAsFloat("PRICING_BASE_FARE", 50),
			PerKmRate:    getEnvAsFloat("PRICING_PER_KM_RATE", 12),
			PerMinRate:   getEnvAsFloat("PRICING_PER_MIN_RATE", 2),
			DefaultSurge: getEnvAsFloat("PRICING_DEFAULT_SURGE", 1.0),
			Currency:     getEnv("PRICING_CURRENCY", "INR"),
		},
		Payments: PaymentsConfig{
			MaxAttempts:    getEnvAsInt("PAYMENT_MAX_ATTEMPTS", 3),
			IdempotencyTTL: time.Duration(getEnvAsInt("PAYMENT_IDEMPOTENCY_TTL_SECONDS", 3600)) * time.Second,
			StripeAPIKey:   getEnv("STRIPE_API_KEY", ""),
		},
		Notifications: NotificationsConfig{
			TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
			TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
			TwilioFromNumber:    getEnv("TWILIO_FROM_NUMBER", ""),
			FirebaseProjectID:   getEnv("FIREBASE_PROJECT_ID", ""),
			FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		},
		Sentry: SentryConfig{
			DSN: getEnv("SENTRY_DSN", ""),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvAsBool("TRACING_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvAsFloat("TRACING_SAMPLE_RATE", 0.1),
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          getEnvAsBool("CB_ENABLED", true),
				FailureThreshold: getEnvAsInt("CB_FAILURE_THRESHOLD", 5),
				SuccessThreshold: getEnvAsInt("CB_SUCCESS_THRESHOLD", 1),
				TimeoutSeconds:   getEnvAsInt("CB_TIMEOUT_SECONDS", 30),
				IntervalSeconds:  getEnvAsInt("CB_INTERVAL_SECONDS", 60),
			},
		},
	}

	if breakerOverrides := getEnv("CB_SERVICE_OVERRIDES", ""); breakerOverrides != "" {
		var serviceConfig map[string]CircuitBreakerSettings
		if err := json.Unmarshal([]byte(breakerOverrides), &serviceConfig); err != nil {
			return nil, fmt.Errorf("invalid CB_SERVICE_OVERRIDES value: %w", err)
		}
		cfg.Resilience.CircuitBreaker.ServiceOverrides = serviceConfig
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Location.BatchSize <= 0 {
		return fmt.Errorf("LOCATION_BATCH_SIZE must be positive, got %d", c.Location.BatchSize)
	}
	if c.Location.BatchInterval <= 0 {
		return fmt.Errorf("LOCATION_BATCH_INTERVAL_MS must be positive")
	}
	if c.Matching.MaxAttempts <= 0 {
		return fmt.Errorf("MATCH_MAX_ATTEMPTS must be positive, got %d", c.Matching.MaxAttempts)
	}
	if c.Pricing.DefaultSurge < 1.0 {
		return fmt.Errorf("PRICING_DEFAULT_SURGE must be >= 1.0, got %v", c.Pricing.DefaultSurge)
	}
	if c.Payments.MaxAttempts <= 0 {
		return fmt.Errorf("PAYMENT_MAX_ATTEMPTS must be positive, got %d", c.Payments.MaxAttempts)
	}
	return nil
}

// SettingsFor returns effective breaker settings for a specific dependency
func (c CircuitBreakerConfig) SettingsFor(service string) CircuitBreakerSettings {
	settings := CircuitBreakerSettings{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		TimeoutSeconds:   c.TimeoutSeconds,
		IntervalSeconds:  c.IntervalSeconds,
	}

	if override, ok := c.ServiceOverrides[service]; ok {
		if override.FailureThreshold > 0 {
			settings.FailureThreshold = override.FailureThreshold
		}
		if override.SuccessThreshold > 0 {
			settings.SuccessThreshold = override.SuccessThreshold
		}
		if override.TimeoutSeconds > 0 {
			settings.TimeoutSeconds = override.TimeoutSeconds
		}
		if override.IntervalSeconds > 0 {
			settings.IntervalSeconds = override.IntervalSeconds
		}
	}

	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = 1
	}
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.TimeoutSeconds <= 0 {
		settings.TimeoutSeconds = 30
	}
	if settings.IntervalSeconds <= 0 {
		settings.IntervalSeconds = 60
	}

	return settings
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
