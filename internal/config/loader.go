// Package config provides centralized configuration management for callgate.
// Defaults, an optional YAML file, environment variables and runtime overrides
// are layered with viper and decoded into Config with mapstructure.
package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/callgate/callgate/internal/appid"
)

var (
	appConfig *Config
	usedFile  string
	configMu  sync.RWMutex
)

// legacyEnv lists provider variable names accepted without the app prefix, as
// deployed landing pages already export them.
var legacyEnv = map[string][]string{
	"vapi.private_key":     {"VAPI_PRIVATE_KEY"},
	"vapi.assistant_id":    {"VAPI_ASSISTANT_ID", "VITE_VAPI_ASSISTANT_ID"},
	"vapi.phone_number_id": {"VAPI_PHONE_NUMBER_ID"},
	"recaptcha.secret_key": {"RECAPTCHA_SECRET_KEY"},
	"paystack.secret_key":  {"PAYSTACK_SECRET_KEY"},
}

// Load builds the configuration. path selects an explicit config file; when
// empty the XDG config directory and ./config are searched and a missing file
// is not an error.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, path string, runtimeOverrides ...map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if err := readConfigFile(v, path); err != nil {
		return nil, err
	}

	if err := bindEnv(v, appid.EnvPrefix(ctx)); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	for _, overrides := range runtimeOverrides {
		for key, value := range flatten("", overrides) {
			v.Set(key, value)
		}
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	normalize(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	setConfig(cfg, v.ConfigFileUsed())
	return cfg, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// ConfigFileUsed returns the file the last successful Load read, if any.
func ConfigFileUsed() string {
	configMu.RLock()
	defer configMu.RUnlock()
	return usedFile
}

func setConfig(cfg *Config, file string) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
	usedFile = file
}

// Validate rejects policy values the limiter and gate cannot work with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	rl := cfg.RateLimit
	switch {
	case rl.Window <= 0:
		return errors.New("rate_limit.window must be positive")
	case rl.BlockDuration <= 0:
		return errors.New("rate_limit.block_duration must be positive")
	case rl.CleanupInterval <= 0:
		return errors.New("rate_limit.cleanup_interval must be positive")
	case rl.MaxCallsPerIP <= 0 || rl.MaxCallsPerPhone <= 0:
		return errors.New("rate_limit max calls must be positive")
	case rl.BlacklistThreshold <= 0:
		return errors.New("rate_limit.blacklist_threshold must be positive")
	}

	if cfg.Gate.MinScore < 0 || cfg.Gate.MinScore > 1 {
		return fmt.Errorf("gate.min_score must be within [0,1], got %v", cfg.Gate.MinScore)
	}
	if cfg.Gate.NeutralScore < 0 || cfg.Gate.NeutralScore > 1 {
		return fmt.Errorf("gate.neutral_score must be within [0,1], got %v", cfg.Gate.NeutralScore)
	}

	switch cfg.Store.Backend {
	case BackendMemory, BackendLibsql:
	case BackendRedis:
		if strings.TrimSpace(cfg.Store.Redis.Addr) == "" {
			return errors.New("store.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}

	return nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir := gfconfig.GetAppConfigDir(appid.DefaultBinaryName); strings.TrimSpace(dir) != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// bindEnv maps every known key to {PREFIX}SECTION_KEY, plus legacy names.
func bindEnv(v *viper.Viper, prefix string) error {
	keys := v.AllKeys()
	sort.Strings(keys)
	for _, key := range keys {
		names := []string{key, envName(prefix, key)}
		names = append(names, legacyEnv[key]...)
		if err := v.BindEnv(names...); err != nil {
			return err
		}
	}
	return nil
}

func envName(prefix, key string) string {
	return prefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("health.enabled", true)

	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")
	v.SetDefault("store.redis.addr", "")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.key_prefix", "callgate:")

	v.SetDefault("rate_limit.window", "15m")
	v.SetDefault("rate_limit.block_duration", "1h")
	v.SetDefault("rate_limit.cleanup_interval", "30m")
	v.SetDefault("rate_limit.max_calls_per_ip", 3)
	v.SetDefault("rate_limit.max_calls_per_phone", 2)
	v.SetDefault("rate_limit.blacklist_threshold", 5)
	v.SetDefault("rate_limit.blacklist", []string{})
	v.SetDefault("rate_limit.blacklist_file", "")

	v.SetDefault("gate.min_score", 0.6)
	v.SetDefault("gate.neutral_score", 0.5)
	v.SetDefault("gate.min_fill_time", "3s")
	v.SetDefault("gate.require_token", true)
	v.SetDefault("gate.fail_closed", false)

	v.SetDefault("call.max_duration", "180s")

	v.SetDefault("vapi.private_key", "")
	v.SetDefault("vapi.assistant_id", "")
	v.SetDefault("vapi.phone_number_id", "")
	v.SetDefault("vapi.base_url", "https://api.vapi.ai")
	v.SetDefault("vapi.timeout", "0s")

	v.SetDefault("recaptcha.secret_key", "")
	v.SetDefault("recaptcha.verify_url", "https://www.google.com/recaptcha/api/siteverify")
	v.SetDefault("recaptcha.timeout", "0s")

	v.SetDefault("paystack.secret_key", "")
	v.SetDefault("paystack.base_url", "https://api.paystack.co")
	v.SetDefault("paystack.timeout", "0s")
}

func normalize(cfg *Config) {
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendMemory
	}
	if cfg.Store.Backend == BackendLibsql && strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	seed := make([]string, 0, len(cfg.RateLimit.Blacklist))
	for _, number := range cfg.RateLimit.Blacklist {
		if trimmed := strings.TrimSpace(number); trimmed != "" {
			seed = append(seed, trimmed)
		}
	}
	cfg.RateLimit.Blacklist = seed
}

// flatten turns nested override maps into dotted viper keys.
func flatten(prefix string, values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for key, value := range values {
		full := strings.ToLower(key)
		if prefix != "" {
			full = prefix + "." + full
		}
		if nested, ok := value.(map[string]any); ok {
			for k, v := range flatten(full, nested) {
				out[k] = v
			}
			continue
		}
		out[full] = value
	}
	return out
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(appid.DefaultBinaryName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultStorePath returns the XDG-compliant path to the libsql database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(appid.DefaultBinaryName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + appid.DefaultBinaryName + ".db"
	}
	return filepath.Join(dataDir, appid.DefaultBinaryName+".db")
}
