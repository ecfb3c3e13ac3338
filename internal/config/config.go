// Package config loads runtime settings from the environment (and an optional
// .env file), applies defaults, and validates them.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"

	// DevJWTSecret is only accepted when APP_ENV is development or test.
	DevJWTSecret = "livechat-development-secret-do-not-use-in-prod"

	minJWTSecretLength = 32
)

// RateLimitConfig defines per-connection limits for inbound socket frames.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// APIRateLimitConfig defines the per-IP budget for /api requests.
type APIRateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Config holds every runtime setting of the service.
type Config struct {
	AppEnv          string
	Port            string
	DatabaseURL     string
	JWTSecret       string
	JWTTTL          time.Duration
	BcryptCost      int
	AllowedOrigins  []string
	MaxMessageSize  int64
	RateLimit       RateLimitConfig
	SendBufferSize  int
	APIRateLimit    APIRateLimitConfig
	TrustProxy      bool
	LogLevel        string
	LogFormat       string
	UserCacheSize   int
	ShutdownTimeout time.Duration
}

// Default returns the configuration used when no environment overrides exist.
func Default() *Config {
	return &Config{
		AppEnv:         EnvDevelopment,
		Port:           ":8080",
		JWTSecret:      DevJWTSecret,
		JWTTTL:         time.Hour,
		BcryptCost:     10,
		AllowedOrigins: []string{"http://localhost:8080"},
		MaxMessageSize: 512,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		SendBufferSize: 256,
		APIRateLimit: APIRateLimitConfig{
			Requests: 1000,
			Window:   15 * time.Minute,
		},
		LogLevel:        "info",
		LogFormat:       "json",
		UserCacheSize:   1024,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg := FromViper(newViper())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	def := Default()

	v := viper.New()
	v.SetDefault("APP_ENV", def.AppEnv)
	v.SetDefault("SERVER_PORT", def.Port)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TTL", def.JWTTTL)
	v.SetDefault("BCRYPT_COST", def.BcryptCost)
	v.SetDefault("ALLOWED_ORIGINS", strings.Join(def.AllowedOrigins, ","))
	v.SetDefault("MAX_MESSAGE_SIZE", def.MaxMessageSize)
	v.SetDefault("RATE_LIMIT_BURST", def.RateLimit.Burst)
	v.SetDefault("RATE_LIMIT_REFILL_INTERVAL", "1")
	v.SetDefault("SEND_BUFFER_SIZE", def.SendBufferSize)
	v.SetDefault("API_RATE_LIMIT", def.APIRateLimit.Requests)
	v.SetDefault("API_RATE_WINDOW", def.APIRateLimit.Window)
	v.SetDefault("TRUST_PROXY", false)
	v.SetDefault("LOG_LEVEL", def.LogLevel)
	v.SetDefault("LOG_FORMAT", def.LogFormat)
	v.SetDefault("USER_CACHE_SIZE", def.UserCacheSize)
	v.SetDefault("SHUTDOWN_TIMEOUT", def.ShutdownTimeout)
	v.AutomaticEnv()
	return v
}

// FromViper builds a sanitized Config from v. Invalid numeric values fall
// back to defaults; Validate reports the problems that cannot be defaulted.
func FromViper(v *viper.Viper) *Config {
	def := Default()

	cfg := &Config{
		AppEnv:         strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV"))),
		Port:           v.GetString("SERVER_PORT"),
		DatabaseURL:    strings.TrimSpace(v.GetString("DATABASE_URL")),
		JWTSecret:      v.GetString("JWT_SECRET"),
		JWTTTL:         v.GetDuration("JWT_TTL"),
		BcryptCost:     v.GetInt("BCRYPT_COST"),
		AllowedOrigins: parseOrigins(v.GetString("ALLOWED_ORIGINS")),
		MaxMessageSize: v.GetInt64("MAX_MESSAGE_SIZE"),
		RateLimit: RateLimitConfig{
			Burst:          v.GetInt("RATE_LIMIT_BURST"),
			RefillInterval: parseRefillInterval(v.GetString("RATE_LIMIT_REFILL_INTERVAL"), def.RateLimit.RefillInterval),
		},
		SendBufferSize: v.GetInt("SEND_BUFFER_SIZE"),
		APIRateLimit: APIRateLimitConfig{
			Requests: v.GetInt("API_RATE_LIMIT"),
			Window:   v.GetDuration("API_RATE_WINDOW"),
		},
		TrustProxy:      v.GetBool("TRUST_PROXY"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFormat:       v.GetString("LOG_FORMAT"),
		UserCacheSize:   v.GetInt("USER_CACHE_SIZE"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
	}

	if cfg.JWTSecret == "" && cfg.allowsDevSecret() {
		cfg.JWTSecret = DevJWTSecret
	}

	return sanitize(cfg, def)
}

func sanitize(cfg, def *Config) *Config {
	if cfg.AppEnv == "" {
		cfg.AppEnv = def.AppEnv
	}
	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	if !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}
	if cfg.JWTTTL <= 0 {
		cfg.JWTTTL = def.JWTTTL
	}
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = def.BcryptCost
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = def.SendBufferSize
	}
	if cfg.APIRateLimit.Requests <= 0 {
		cfg.APIRateLimit.Requests = def.APIRateLimit.Requests
	}
	if cfg.APIRateLimit.Window <= 0 {
		cfg.APIRateLimit.Window = def.APIRateLimit.Window
	}
	if cfg.UserCacheSize <= 0 {
		cfg.UserCacheSize = def.UserCacheSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	return cfg
}

// Validate reports settings that cannot be defaulted safely.
func (c *Config) Validate() error {
	var errs []error

	switch c.AppEnv {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		errs = append(errs, fmt.Errorf("APP_ENV must be one of development, production, test (got %q)", c.AppEnv))
	}

	switch {
	case c.JWTSecret == "":
		errs = append(errs, errors.New("JWT_SECRET is required"))
	case c.JWTSecret == DevJWTSecret && !c.allowsDevSecret():
		errs = append(errs, errors.New("JWT_SECRET must be set outside development"))
	case len(c.JWTSecret) < minJWTSecretLength:
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength))
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 31 (got %d)", c.BcryptCost))
	}

	if len(c.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("ALLOWED_ORIGINS must list at least one origin or *"))
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

func (c *Config) allowsDevSecret() bool {
	return c.AppEnv == EnvDevelopment || c.AppEnv == EnvTest
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseRefillInterval accepts whole seconds ("2") or a Go duration ("500ms").
func parseRefillInterval(value string, defaultValue time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
