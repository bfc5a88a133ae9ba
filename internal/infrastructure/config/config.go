package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	LocalStore    LocalStoreConfig    `mapstructure:"local_store"`
	Checkout      CheckoutConfig      `mapstructure:"checkout"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Auth          AuthConfig          `mapstructure:"auth"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTExpiry time.Duration `mapstructure:"jwt_expiry"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

// LocalStoreConfig configures the SQLite file backing the locally durable tier.
type LocalStoreConfig struct {
	Path string `mapstructure:"path"`
}

// CheckoutConfig holds the recovery protocol settings.
type CheckoutConfig struct {
	ReturnURL        string        `mapstructure:"return_url"`
	IntentTTL        time.Duration `mapstructure:"intent_ttl"`
	EphemeralTTL     time.Duration `mapstructure:"ephemeral_ttl"`
	CreateTimeout    time.Duration `mapstructure:"create_timeout"`
	JoinCodeAttempts uint          `mapstructure:"join_code_attempts"`
	ReplayWindow     time.Duration `mapstructure:"replay_window"`
	LockTTL          time.Duration `mapstructure:"lock_ttl"`
}

// GatewayConfig configures the payment gateway client.
type GatewayConfig struct {
	Name                    string        `mapstructure:"name"`
	Sandbox                 bool          `mapstructure:"sandbox"`
	SupportsSessions        bool          `mapstructure:"supports_sessions"`
	HostedURL               string        `mapstructure:"hosted_url"`
	Latency                 time.Duration `mapstructure:"latency"`
	FailureRate             float64       `mapstructure:"failure_rate"`
	CircuitBreakerThreshold uint32        `mapstructure:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `mapstructure:"circuit_breaker_timeout"`
}

type WorkerConfig struct {
	BatchSize          int64         `mapstructure:"batch_size"`
	BlockDuration      time.Duration `mapstructure:"block_duration"`
	OutboxPollInterval time.Duration `mapstructure:"outbox_poll_interval"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
	ConsumerGroup      string        `mapstructure:"consumer_group"`
	IdempotencyTTL     time.Duration `mapstructure:"idempotency_ttl"`
}

type ObservabilityConfig struct {
	LogLevel      string `mapstructure:"log_level"`
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`
	EnableMetrics bool   `mapstructure:"enable_metrics"`
	EnableTracing bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("TRIPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/tripcheckout")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.LocalStore.Path == "" {
		errs = append(errs, fmt.Errorf("local_store.path is required"))
	}
	if u, err := url.Parse(c.Checkout.ReturnURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("checkout.return_url must be an absolute URL"))
	}
	if c.Checkout.IntentTTL <= 0 {
		errs = append(errs, fmt.Errorf("checkout.intent_ttl must be positive"))
	}
	if c.Checkout.CreateTimeout <= 0 {
		errs = append(errs, fmt.Errorf("checkout.create_timeout must be positive"))
	}
	if c.Checkout.JoinCodeAttempts == 0 || c.Checkout.JoinCodeAttempts > 10 {
		errs = append(errs, fmt.Errorf("checkout.join_code_attempts must be between 1 and 10"))
	}
	if c.Checkout.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("checkout.lock_ttl must be positive"))
	}
	if c.Gateway.FailureRate < 0 || c.Gateway.FailureRate > 1 {
		errs = append(errs, fmt.Errorf("gateway.failure_rate must be between 0 and 1"))
	}
	if c.Worker.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("worker.batch_size must be positive"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("auth.jwt_secret is required"))
	}

	// Production environment checks
	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
		if c.Gateway.Sandbox {
			errs = append(errs, fmt.Errorf("gateway.sandbox must be disabled in production"))
		}
	}

	// JWT secret length validation
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "trips")
	v.SetDefault("database.database", "trips")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.migrations_path", "internal/infrastructure/postgres/migrations")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Local store defaults
	v.SetDefault("local_store.path", "data/intents.db")

	// Checkout defaults
	v.SetDefault("checkout.return_url", "http://localhost:8080/api/v1/checkout/return")
	v.SetDefault("checkout.intent_ttl", "24h")
	v.SetDefault("checkout.ephemeral_ttl", "2h")
	v.SetDefault("checkout.create_timeout", "15s")
	v.SetDefault("checkout.join_code_attempts", 5)
	v.SetDefault("checkout.replay_window", "30m")
	v.SetDefault("checkout.lock_ttl", "30s")

	// Gateway defaults
	v.SetDefault("gateway.name", "sandbox")
	v.SetDefault("gateway.sandbox", true)
	v.SetDefault("gateway.supports_sessions", true)
	v.SetDefault("gateway.hosted_url", "http://localhost:8080/sandbox/checkout")
	v.SetDefault("gateway.latency", "100ms")
	v.SetDefault("gateway.failure_rate", 0.0)
	v.SetDefault("gateway.circuit_breaker_threshold", 10)
	v.SetDefault("gateway.circuit_breaker_timeout", "30s")

	// Worker defaults
	v.SetDefault("worker.batch_size", 10)
	v.SetDefault("worker.block_duration", "1s")
	v.SetDefault("worker.outbox_poll_interval", "2s")
	v.SetDefault("worker.sweep_interval", "5m")
	v.SetDefault("worker.consumer_group", "trip-membership-repair")
	v.SetDefault("worker.idempotency_ttl", "24h")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.otlp_endpoint", "http://localhost:4318/v1/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", false)

	// Auth defaults
	v.SetDefault("auth.jwt_expiry", "24h")

	// Instance ID
	v.SetDefault("instance_id", "trips-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// DatabaseURL returns the URL form golang-migrate expects.
func (c *DatabaseConfig) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
