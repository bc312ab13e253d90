package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Security  SecurityConfig  `mapstructure:"security"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Events    EventsConfig    `mapstructure:"events"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// APIKey protects the /api/v1 routes when set. Sent as "Authorization: Bearer <key>".
	APIKey         string   `mapstructure:"api_key"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
}

// RateLimitingConfig holds rate limiting configuration
type RateLimitingConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	DispatchLimit  int           `mapstructure:"dispatch_limit"`
	DispatchWindow time.Duration `mapstructure:"dispatch_window"`
}

// DispatchConfig controls how a campaign is worked through.
type DispatchConfig struct {
	// Workers is the number of recipients processed in parallel. 1 keeps the loop sequential.
	Workers int `mapstructure:"workers"`
	// SendTimeout bounds a single provider call.
	SendTimeout time.Duration `mapstructure:"send_timeout"`
	// ClaimLease is how long a claimed recipient stays reserved for one invocation.
	// It must exceed two SendTimeouts plus a margin. Expired claims can be taken over by a later invocation.
	ClaimLease time.Duration `mapstructure:"claim_lease"`
	// LockTTL is the lifetime of the per-campaign Redis lock.
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// ProvidersConfig holds the static provider configuration. Active rows in the
// provider_configs table are layered on top of it for each dispatch.
type ProvidersConfig struct {
	SMS        SMSConfig        `mapstructure:"sms"`
	Email      EmailConfig      `mapstructure:"email"`
	Substitute SubstituteConfig `mapstructure:"substitute"`
}

// SMSConfig holds SMSAPI gateway configuration
type SMSConfig struct {
	// Token enables the real SMS provider when non-empty
	Token         string        `mapstructure:"token"`
	From          string        `mapstructure:"from"`
	Endpoint      string        `mapstructure:"endpoint"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
}

// EmailConfig holds email sending configuration
type EmailConfig struct {
	// Transport is "console", "local", "gmail" or "ses". Console and local use the substitute provider.
	Transport   string           `mapstructure:"transport"`
	FromAddress string           `mapstructure:"from_address"`
	FromName    string           `mapstructure:"from_name"`
	Gmail       GmailEmailConfig `mapstructure:"gmail"`
	SES         SESEmailConfig   `mapstructure:"ses"`
}

// GmailEmailConfig holds Gmail API configuration
type GmailEmailConfig struct {
	// CredentialsJSON is the service account credentials JSON content
	CredentialsJSON string `mapstructure:"credentials_json"`
	// ClientID for OAuth2 token-based auth (alternative to service account)
	ClientID string `mapstructure:"client_id"`
	// ClientSecret for OAuth2 token-based auth
	ClientSecret string `mapstructure:"client_secret"`
	// RefreshToken for OAuth2 token-based auth
	RefreshToken string `mapstructure:"refresh_token"`
}

// SESEmailConfig holds Amazon SES configuration. Credentials come from the default AWS chain.
type SESEmailConfig struct {
	Region string `mapstructure:"region"`
}

// SubstituteConfig tunes the no-network providers
type SubstituteConfig struct {
	MinDelay         time.Duration `mapstructure:"min_delay"`
	MaxDelay         time.Duration `mapstructure:"max_delay"`
	EmailFailureRate float64       `mapstructure:"email_failure_rate"`
	SMSFailureRate   float64       `mapstructure:"sms_failure_rate"`
}

// EventsConfig selects where dispatch outcome events go
type EventsConfig struct {
	// Transport is "none", "kafka" or "redis"
	Transport string   `mapstructure:"transport"`
	Brokers   []string `mapstructure:"brokers"`
	Topic     string   `mapstructure:"topic"`
	// Channel is the Redis pub/sub channel used by the redis transport
	Channel string `mapstructure:"channel"`
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from .env, config file and environment variables
func Load() (*Config, error) {
	// A missing .env is fine; real deployments set the environment directly
	_ = godotenv.Load()

	v := viper.New()

	// Set config file name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/herald")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("HERALD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// claimLeaseMargin covers rate limiter waits and storage round trips on top of
// the provider calls made under one claim
const claimLeaseMargin = 30 * time.Second

// Validate checks values that would otherwise fail at dispatch time
func (c *Config) Validate() error {
	var errs []error
	if c.Dispatch.Workers < 1 {
		errs = append(errs, fmt.Errorf("dispatch.workers must be at least 1, got %d", c.Dispatch.Workers))
	}
	if c.Dispatch.SendTimeout <= 0 {
		errs = append(errs, errors.New("dispatch.send_timeout must be positive"))
	}
	// A recipient may need one provider call per channel before its outcome is saved
	if floor := 2*c.Dispatch.SendTimeout + claimLeaseMargin; c.Dispatch.ClaimLease <= floor {
		errs = append(errs, fmt.Errorf("dispatch.claim_lease must exceed twice dispatch.send_timeout plus %s, got %s (need more than %s)",
			claimLeaseMargin, c.Dispatch.ClaimLease, floor))
	}
	for name, rate := range map[string]float64{
		"providers.substitute.email_failure_rate": c.Providers.Substitute.EmailFailureRate,
		"providers.substitute.sms_failure_rate":   c.Providers.Substitute.SMSFailureRate,
	} {
		if rate < 0 || rate > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1], got %v", name, rate))
		}
	}
	if c.Providers.Substitute.MaxDelay < c.Providers.Substitute.MinDelay {
		errs = append(errs, errors.New("providers.substitute.max_delay must not be below min_delay"))
	}
	switch c.Events.Transport {
	case "", "none", "redis":
	case "kafka":
		if len(c.Events.Brokers) == 0 || c.Events.Topic == "" {
			errs = append(errs, errors.New("events.brokers and events.topic are required for the kafka transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown events.transport %q", c.Events.Transport))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	// Dispatch runs inside the request, so writes get a generous timeout
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "herald")
	v.SetDefault("database.user", "herald")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 25)

	// Redis defaults
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.dispatch_limit", 10)
	v.SetDefault("security.rate_limiting.dispatch_window", "1m")

	// Dispatch defaults
	v.SetDefault("dispatch.workers", 1)
	v.SetDefault("dispatch.send_timeout", "30s")
	v.SetDefault("dispatch.claim_lease", "2m")
	v.SetDefault("dispatch.lock_ttl", "15m")

	// Provider defaults
	v.SetDefault("providers.sms.token", "")
	v.SetDefault("providers.sms.from", "")
	v.SetDefault("providers.sms.endpoint", "https://api.smsapi.pl")
	v.SetDefault("providers.sms.timeout", "15s")
	v.SetDefault("providers.sms.rate_per_second", 0)

	v.SetDefault("providers.email.transport", "console")
	v.SetDefault("providers.email.from_address", "noreply@example.com")
	v.SetDefault("providers.email.from_name", "")
	v.SetDefault("providers.email.ses.region", "eu-central-1")

	v.SetDefault("providers.substitute.min_delay", "100ms")
	v.SetDefault("providers.substitute.max_delay", "500ms")
	v.SetDefault("providers.substitute.email_failure_rate", 0.05)
	v.SetDefault("providers.substitute.sms_failure_rate", 0.03)

	// Events defaults
	v.SetDefault("events.transport", "none")
	v.SetDefault("events.brokers", []string{})
	v.SetDefault("events.topic", "herald.dispatch")
	v.SetDefault("events.channel", "herald:dispatch")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
