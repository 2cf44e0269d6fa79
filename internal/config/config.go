package config

import "time"

// Config represents the complete application configuration.
//
// Layers, lowest precedence first: built-in defaults, the YAML config file,
// environment variables ({PREFIX}SECTION_KEY plus the legacy provider names),
// runtime overrides.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
	Store     StoreConfig     `mapstructure:"store"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Gate      GateConfig      `mapstructure:"gate"`
	Call      CallConfig      `mapstructure:"call"`
	Vapi      VapiConfig      `mapstructure:"vapi"`
	Recaptcha RecaptchaConfig `mapstructure:"recaptcha"`
	Paystack  PaystackConfig  `mapstructure:"paystack"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Store backends.
const (
	BackendMemory = "memory"
	BackendLibsql = "libsql"
	BackendRedis  = "redis"
)

// StoreConfig selects where rate-limit entries and the blacklist live.
type StoreConfig struct {
	Backend   string      `mapstructure:"backend"`
	Path      string      `mapstructure:"path"`
	URL       string      `mapstructure:"url"`
	AuthToken string      `mapstructure:"auth_token"`
	Redis     RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains the redis backend connection settings.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// RateLimitConfig holds the limiter policy and the blacklist seed.
type RateLimitConfig struct {
	Window             time.Duration `mapstructure:"window"`
	BlockDuration      time.Duration `mapstructure:"block_duration"`
	CleanupInterval    time.Duration `mapstructure:"cleanup_interval"`
	MaxCallsPerIP      int           `mapstructure:"max_calls_per_ip"`
	MaxCallsPerPhone   int           `mapstructure:"max_calls_per_phone"`
	BlacklistThreshold int           `mapstructure:"blacklist_threshold"`
	Blacklist          []string      `mapstructure:"blacklist"`
	BlacklistFile      string        `mapstructure:"blacklist_file"`
}

// GateConfig holds the bot-detection thresholds.
type GateConfig struct {
	MinScore     float64       `mapstructure:"min_score"`
	NeutralScore float64       `mapstructure:"neutral_score"`
	MinFillTime  time.Duration `mapstructure:"min_fill_time"`
	RequireToken bool          `mapstructure:"require_token"`

	// FailClosed rejects requests when the verifier is configured but
	// unreachable. Off by default: an outage lets traffic through with the
	// neutral score.
	FailClosed bool `mapstructure:"fail_closed"`
}

// CallConfig shapes the outbound call order.
type CallConfig struct {
	MaxDuration time.Duration `mapstructure:"max_duration"`
}

// VapiConfig contains the voice-call provider credentials.
type VapiConfig struct {
	PrivateKey    string        `mapstructure:"private_key"`
	AssistantID   string        `mapstructure:"assistant_id"`
	PhoneNumberID string        `mapstructure:"phone_number_id"`
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// RecaptchaConfig contains the bot-score verifier settings. An empty secret
// disables verification.
type RecaptchaConfig struct {
	SecretKey string        `mapstructure:"secret_key"`
	VerifyURL string        `mapstructure:"verify_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// PaystackConfig contains the payment provider settings.
type PaystackConfig struct {
	SecretKey string        `mapstructure:"secret_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}
