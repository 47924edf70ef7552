// Package config defines the process configuration for billingsync.
// Configuration is loaded once at startup and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format fails startup.
package config

import (
	"time"

	"billingsync/internal/types"
)

// SecretString is an alias for types.SecretString so config consumers do not
// need to import types just to unmask a secret.
type SecretString = types.SecretString

// Config is the top-level configuration struct.
// Sub-components receive only the subsets they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"billingsync"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Stripe        StripeConfig
	Auth          AuthConfig
	Redis         RedisConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not env.
	Build BuildInfo
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// SiteURL is the public origin used to build checkout redirect URLs
	// (no trailing slash), e.g. https://app.example.com
	SiteURL        string        `envconfig:"SITE_URL" validate:"required,url"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
}

// DatabaseConfig holds the datastore connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"0"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds regional configuration for SSM and CloudWatch.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`
	// LocalStack support (empty in prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// StripeConfig holds payment provider credentials.
type StripeConfig struct {
	SecretKey      SecretString `envconfig:"STRIPE_SECRET_KEY" validate:"required"`
	WebhookSecret  SecretString `envconfig:"STRIPE_WEBHOOK_SECRET" validate:"required"`
	PublishableKey string       `envconfig:"STRIPE_PUBLISHABLE_KEY" validate:"required"`
	// BaseURL overrides the API origin (stripe-mock, tests).
	BaseURL string `envconfig:"STRIPE_API_BASE" default:"https://api.stripe.com"`
	// MaxRetries is the number of outbound retries after the first attempt.
	MaxRetries int `envconfig:"STRIPE_MAX_RETRIES" default:"0" validate:"min=0,max=5"`
}

// AuthConfig holds the datastore auth service's token signing secret.
type AuthConfig struct {
	JWTSecret   SecretString `envconfig:"SUPABASE_JWT_SECRET" validate:"required"`
	JWTAudience string       `envconfig:"SUPABASE_JWT_AUDIENCE" default:"authenticated"`
	// CookieName is consulted when no Authorization header is present.
	CookieName string `envconfig:"AUTH_COOKIE_NAME" default:"sb-access-token"`
}

// RedisConfig configures the optional catalog cache. An empty URL disables it.
type RedisConfig struct {
	URL        SecretString  `envconfig:"REDIS_URL"`
	CatalogTTL time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"5m"`
}

// SecurityConfig holds CORS settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// ObservabilityConfig holds metrics settings.
type ObservabilityConfig struct {
	MetricsEnabled  bool   `envconfig:"METRICS_ENABLED" default:"false"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"BillingSync"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
