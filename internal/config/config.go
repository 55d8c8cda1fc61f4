package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server        ServerConfig        `envconfig:"SERVER"`
	App           AppConfig           `envconfig:"APP"`
	Redis         RedisConfig         `envconfig:"REDIS"`
	JWT           JWTConfig           `envconfig:"JWT"`
	DynamoDB      DynamoDBConfig      `envconfig:"DYNAMODB"`
	RateLimit     RateLimitConfig     `envconfig:"RATE_LIMIT"`
	Observability ObservabilityConfig `envconfig:"OBSERVABILITY"`
	CORS          CORSConfig          `envconfig:"CORS"`
	Log           LogConfig           `envconfig:"LOG"`
	AWS           AWSConfig           `envconfig:"AWS"`
}

type AWSConfig struct {
	Region     string `envconfig:"REGION" default:"ap-northeast-2"`
	Profile    string `envconfig:"PROFILE" default:""`
	SecretName string `envconfig:"SECRET_NAME" default:""`
}

type ServerConfig struct {
	Port         string        `envconfig:"PORT" default:"8000"`
	Environment  string        `envconfig:"ENVIRONMENT" default:"development"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
}

// AppConfig carries deployment-facing knobs: the public URL and base path are
// only used to compute the redirect appended to verification and reset
// emails, the probe address feeds the connectivity check.
type AppConfig struct {
	PublicURL         string        `envconfig:"PUBLIC_URL" default:"http://localhost:5173"`
	BasePath          string        `envconfig:"BASE_PATH" default:"/"`
	NetworkProbeAddr  string        `envconfig:"NETWORK_PROBE_ADDR" default:"1.1.1.1:443"`
	NetworkProbeLimit time.Duration `envconfig:"NETWORK_PROBE_LIMIT" default:"3s"`
}

type RedisConfig struct {
	Address             string        `envconfig:"ADDRESS" default:"localhost:6379"`
	Password            string        `envconfig:"PASSWORD" default:""`
	Database            int           `envconfig:"DATABASE" default:"0"`
	MaxRetries          int           `envconfig:"MAX_RETRIES" default:"3"`
	PoolSize            int           `envconfig:"POOL_SIZE" default:"100"`
	PoolTimeout         time.Duration `envconfig:"POOL_TIMEOUT" default:"4s"`
	TLSEnabled          bool          `envconfig:"TLS_ENABLED" default:"false"`
	PasswordFromSecrets bool          `envconfig:"PASSWORD_FROM_SECRETS" default:"false"`
}

type JWTConfig struct {
	Secret       string        `envconfig:"SECRET" default:"change-me-in-production"` // For self-issued JWT
	Issuer       string        `envconfig:"ISSUER" default:"accounts-api"`
	Audience     string        `envconfig:"AUDIENCE" default:"accounts-app"`
	ExpiresIn    time.Duration `envconfig:"EXPIRES_IN" default:"24h"`
	JWKSEndpoint string        `envconfig:"JWKS_ENDPOINT" required:"false"` // Set when an external identity provider issues tokens
	CacheTTL     time.Duration `envconfig:"CACHE_TTL" default:"10m"`
}

type DynamoDBConfig struct {
	UsersTableName   string `envconfig:"USERS_TABLE_NAME" default:"accounts-users"`
	RecordsTableName string `envconfig:"RECORDS_TABLE_NAME" default:"accounts-data-records"`
	Region           string `envconfig:"REGION" default:"ap-northeast-2"`
}

type RateLimitConfig struct {
	RPS         int           `envconfig:"RPS" default:"50"`
	Burst       int           `envconfig:"BURST" default:"100"`
	WindowSize  time.Duration `envconfig:"WINDOW_SIZE" default:"1s"`
	Enabled     bool          `envconfig:"ENABLED" default:"true"`
	ExemptPaths []string      `envconfig:"EXEMPT_PATHS" default:"/healthz,/readyz,/metrics"`
}

type ObservabilityConfig struct {
	MetricsPath    string  `envconfig:"METRICS_PATH" default:"/metrics"`
	OTLPEndpoint   string  `envconfig:"OTLP_ENDPOINT" default:"http://localhost:4318"`
	TracingEnabled bool    `envconfig:"TRACING_ENABLED" default:"true"`
	SampleRate     float64 `envconfig:"SAMPLE_RATE" default:"0.1"`
}

type CORSConfig struct {
	AllowOrigins string `envconfig:"ALLOW_ORIGINS" default:"*"`
}

type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"`
}

func Load() (*Config, error) {
	var cfg Config

	// Load from environment variables
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	// Additional processing for slice fields that envconfig doesn't handle well
	if exemptPaths := os.Getenv("RATE_LIMIT_EXEMPT_PATHS"); exemptPaths != "" {
		cfg.RateLimit.ExemptPaths = strings.Split(exemptPaths, ",")
		for i := range cfg.RateLimit.ExemptPaths {
			cfg.RateLimit.ExemptPaths[i] = strings.TrimSpace(cfg.RateLimit.ExemptPaths[i])
		}
	}

	// Validate required fields
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoginRedirectURL is appended to outgoing verification emails
func (c *AppConfig) LoginRedirectURL() string {
	return c.redirectURL("login")
}

// ResetPasswordRedirectURL is appended to outgoing password-reset emails
func (c *AppConfig) ResetPasswordRedirectURL() string {
	return c.redirectURL("reset-password")
}

func (c *AppConfig) redirectURL(page string) string {
	base := strings.TrimSuffix(c.PublicURL, "/")
	path := c.BasePath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return base + path + page
}

func validateConfig(cfg *Config) error {
	// Validate port
	if port, err := strconv.Atoi(cfg.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", cfg.Server.Port)
	}

	// Validate sample rate
	if cfg.Observability.SampleRate < 0 || cfg.Observability.SampleRate > 1 {
		return fmt.Errorf("invalid tracing sample rate: %f", cfg.Observability.SampleRate)
	}

	if cfg.DynamoDB.UsersTableName == "" || cfg.DynamoDB.RecordsTableName == "" {
		return fmt.Errorf("dynamodb table names must not be empty")
	}

	return nil
}
