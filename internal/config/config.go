package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTP           HTTPConfig
	DatabaseURL    string
	Auth           AuthConfig
	RateLimit      RateLimitConfig
	Media          MediaConfig
	AuditLogFile   string
	LogLevel       string
	TracingEnabled bool
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type AuthConfig struct {
	JWTSecret         string
	SessionTTL        time.Duration
	BcryptCost        int
	BootstrapUsername string
	BootstrapPassword string
	BootstrapEmail    string
}

// RateLimitConfig keys clients by socket address unless TrustProxy is set, in
// which case X-Forwarded-For and X-Real-IP are honoured.
type RateLimitConfig struct {
	Requests   int
	Window     time.Duration
	TrustProxy bool
}

// MediaConfig selects the image store: S3 when S3.Bucket is set, the local
// directory otherwise.
type MediaConfig struct {
	Dir     string
	BaseURL string
	S3      S3Config
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PublicURL string
}

// DefaultJWTSecret is only accepted for in-memory storage.
const DefaultJWTSecret = "change-me-in-production"

var defaults = map[string]any{
	"HTTP_ADDR":                 ":4000",
	"HTTP_READ_TIMEOUT_SEC":     10,
	"HTTP_WRITE_TIMEOUT_SEC":    15,
	"HTTP_SHUTDOWN_TIMEOUT_SEC": 20,
	"DATABASE_URL":              "",
	"AUTH_JWT_SECRET":           DefaultJWTSecret,
	"AUTH_SESSION_TTL_SEC":      7 * 24 * 3600,
	"AUTH_BCRYPT_COST":          10,
	"AUTH_BOOTSTRAP_USERNAME":   "admin",
	"AUTH_BOOTSTRAP_PASSWORD":   "admin123",
	"AUTH_BOOTSTRAP_EMAIL":      "admin@example.com",
	"RATE_LIMIT_REQUESTS":       100,
	"RATE_LIMIT_WINDOW_SEC":     15 * 60,
	"RATE_LIMIT_TRUST_PROXY":    false,
	"MEDIA_DIR":                 "./data/media",
	"MEDIA_BASE_URL":            "/media",
	"S3_BUCKET":                 "",
	"S3_REGION":                 "us-east-1",
	"S3_ENDPOINT":               "",
	"S3_ACCESS_KEY":             "",
	"S3_SECRET_KEY":             "",
	"S3_PUBLIC_URL":             "",
	"AUDIT_LOG_FILE":            "./data/audit.log",
	"LOG_LEVEL":                 "info",
	"TRACING_ENABLED":           false,
}

// Load reads configuration from the environment, falling back to an optional
// env file (CONFIG_ENV_FILE, default .env) and then to defaults.
func Load() (Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	envFile := os.Getenv("CONFIG_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read %s: %w", envFile, err)
		}
	}

	seconds := func(key string) time.Duration {
		return time.Duration(v.GetInt(key)) * time.Second
	}

	cfg := Config{
		HTTP: HTTPConfig{
			Addr:            strings.TrimSpace(v.GetString("HTTP_ADDR")),
			ReadTimeout:     seconds("HTTP_READ_TIMEOUT_SEC"),
			WriteTimeout:    seconds("HTTP_WRITE_TIMEOUT_SEC"),
			ShutdownTimeout: seconds("HTTP_SHUTDOWN_TIMEOUT_SEC"),
		},
		DatabaseURL: v.GetString("DATABASE_URL"),
		Auth: AuthConfig{
			JWTSecret:         v.GetString("AUTH_JWT_SECRET"),
			SessionTTL:        seconds("AUTH_SESSION_TTL_SEC"),
			BcryptCost:        v.GetInt("AUTH_BCRYPT_COST"),
			BootstrapUsername: v.GetString("AUTH_BOOTSTRAP_USERNAME"),
			BootstrapPassword: v.GetString("AUTH_BOOTSTRAP_PASSWORD"),
			BootstrapEmail:    v.GetString("AUTH_BOOTSTRAP_EMAIL"),
		},
		RateLimit: RateLimitConfig{
			Requests:   v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:     seconds("RATE_LIMIT_WINDOW_SEC"),
			TrustProxy: v.GetBool("RATE_LIMIT_TRUST_PROXY"),
		},
		Media: MediaConfig{
			Dir:     v.GetString("MEDIA_DIR"),
			BaseURL: v.GetString("MEDIA_BASE_URL"),
			S3: S3Config{
				Bucket:    v.GetString("S3_BUCKET"),
				Region:    v.GetString("S3_REGION"),
				Endpoint:  v.GetString("S3_ENDPOINT"),
				AccessKey: v.GetString("S3_ACCESS_KEY"),
				SecretKey: v.GetString("S3_SECRET_KEY"),
				PublicURL: v.GetString("S3_PUBLIC_URL"),
			},
		},
		AuditLogFile:   v.GetString("AUDIT_LOG_FILE"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		TracingEnabled: v.GetBool("TRACING_ENABLED"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if cfg.HTTP.Addr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.HTTP.ReadTimeout <= 0 || cfg.HTTP.WriteTimeout <= 0 || cfg.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be > 0")
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET must not be empty")
	}
	if cfg.DatabaseURL != "" && cfg.Auth.JWTSecret == DefaultJWTSecret {
		return fmt.Errorf("AUTH_JWT_SECRET must be set when DATABASE_URL is set")
	}
	if cfg.Auth.SessionTTL <= 0 {
		return fmt.Errorf("AUTH_SESSION_TTL_SEC must be > 0")
	}
	if cfg.Auth.BcryptCost <= 0 {
		return fmt.Errorf("AUTH_BCRYPT_COST must be > 0")
	}
	if cfg.Auth.BootstrapUsername == "" {
		return fmt.Errorf("AUTH_BOOTSTRAP_USERNAME must not be empty")
	}
	if cfg.Auth.BootstrapPassword == "" {
		return fmt.Errorf("AUTH_BOOTSTRAP_PASSWORD must not be empty")
	}
	if cfg.Auth.BootstrapEmail == "" {
		return fmt.Errorf("AUTH_BOOTSTRAP_EMAIL must not be empty")
	}
	if cfg.RateLimit.Requests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if cfg.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_SEC must be > 0")
	}
	if cfg.Media.S3.Bucket == "" && cfg.Media.Dir == "" {
		return fmt.Errorf("MEDIA_DIR must not be empty when S3_BUCKET is unset")
	}
	if cfg.AuditLogFile == "" {
		return fmt.Errorf("AUDIT_LOG_FILE must not be empty")
	}
	return nil
}
