package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/partaj/referral-api/pkg/messaging/redis"
	"github.com/partaj/referral-api/pkg/worker"
)

type ServerConfig struct {
	Port           int           `yaml:"port" envconfig:"SERVER_PORT"`
	ReadTimeout    time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
	MaxHeaderBytes int           `yaml:"max_header_bytes" envconfig:"SERVER_MAX_HEADER_BYTES"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" envconfig:"DB_HOST" validate:"required"`
	Port     int    `yaml:"port" envconfig:"DB_PORT"`
	User     string `yaml:"user" envconfig:"DB_USER"`
	Password string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name     string `yaml:"name" envconfig:"DB_NAME" validate:"required"`
	SSLMode  string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
}

type JWTConfig struct {
	Secret             string `yaml:"secret" envconfig:"JWT_SECRET" validate:"required"`
	RefreshSecret      string `yaml:"refresh_secret" envconfig:"JWT_REFRESH_SECRET"`
	ExpiryHours        int    `yaml:"expiry_hours" envconfig:"JWT_EXPIRY_HOURS"`
	RefreshExpiryHours int    `yaml:"refresh_expiry_hours" envconfig:"JWT_REFRESH_EXPIRY_HOURS"`
}

type RedisConfig struct {
	URL          string        `yaml:"url" envconfig:"REDIS_URL"`
	MaxRetries   int           `yaml:"max_retries" envconfig:"REDIS_MAX_RETRIES"`
	RetryBackoff time.Duration `yaml:"retry_backoff" envconfig:"REDIS_RETRY_BACKOFF"`
	PoolSize     int           `yaml:"pool_size" envconfig:"REDIS_POOL_SIZE"`
	MinIdleConns int           `yaml:"min_idle_conns" envconfig:"REDIS_MIN_IDLE_CONNS"`
}

type SMTPConfig struct {
	Host        string `yaml:"host" envconfig:"SMTP_HOST"`
	Port        int    `yaml:"port" envconfig:"SMTP_PORT"`
	Username    string `yaml:"username" envconfig:"SMTP_USERNAME"`
	Password    string `yaml:"password" envconfig:"SMTP_PASSWORD"`
	FromAddress string `yaml:"from_address" envconfig:"SMTP_FROM_ADDRESS"`
	FromName    string `yaml:"from_name" envconfig:"SMTP_FROM_NAME"`
	BaseURL     string `yaml:"base_url" envconfig:"EMAIL_BASE_URL"`
	ReplyTo     string `yaml:"reply_to" envconfig:"EMAIL_REPLY_TO"`
	Enabled     bool   `yaml:"enabled" envconfig:"EMAIL_ENABLED"`
}

type OutboxConfig struct {
	BatchSize     int           `yaml:"batch_size" envconfig:"OUTBOX_BATCH_SIZE"`
	PollInterval  time.Duration `yaml:"poll_interval" envconfig:"OUTBOX_POLL_INTERVAL"`
	RetryAttempts int           `yaml:"retry_attempts" envconfig:"OUTBOX_RETRY_ATTEMPTS"`
	RetryDelay    time.Duration `yaml:"retry_delay" envconfig:"OUTBOX_RETRY_DELAY"`
	RetentionDays int           `yaml:"retention_days" envconfig:"OUTBOX_RETENTION_DAYS"`
}

type ScannerConfig struct {
	URL     string        `yaml:"url" envconfig:"SCANNER_URL"`
	Timeout time.Duration `yaml:"timeout" envconfig:"SCANNER_TIMEOUT"`
	Enabled bool          `yaml:"enabled" envconfig:"SCANNER_ENABLED"`
}

// PermissionConfig tunes role resolution. AmbiguousRolePolicy is either
// "highest" (pick the highest-ranked role and log a warning) or "reject".
type PermissionConfig struct {
	AmbiguousRolePolicy string        `yaml:"ambiguous_role_policy" envconfig:"PERMISSION_AMBIGUOUS_ROLE_POLICY" validate:"omitempty,oneof=highest reject"`
	CacheTTL            time.Duration `yaml:"cache_ttl" envconfig:"PERMISSION_CACHE_TTL"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled" envconfig:"PROMETHEUS_ENABLED"`
	MetricsPath       string `yaml:"metrics_path" envconfig:"METRICS_PATH"`
}

type SecurityConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	AllowedMethods []string `yaml:"allowed_methods" envconfig:"ALLOWED_METHODS"`
	AllowedHeaders []string `yaml:"allowed_headers" envconfig:"ALLOWED_HEADERS"`
}

type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" envconfig:"RATE_LIMIT_ENABLED"`
	RequestsPerSecond float64 `yaml:"requests_per_second" envconfig:"RATE_LIMIT_RPS"`
	Burst             int     `yaml:"burst" envconfig:"RATE_LIMIT_BURST"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Redis      RedisConfig      `yaml:"redis"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Outbox     OutboxConfig     `yaml:"outbox"`
	Scanner    ScannerConfig    `yaml:"scanner"`
	Permission PermissionConfig `yaml:"permission"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Security   SecurityConfig   `yaml:"security"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

// LoadConfig reads config.yml from the usual locations, then overlays any
// environment variables so container deployments can override the file.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/app")
	viper.AddConfigPath("/app/config")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process env overrides: %w", err)
	}

	config.applyDefaults()

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.JWT.ExpiryHours == 0 {
		c.JWT.ExpiryHours = 24
	}
	if c.JWT.RefreshExpiryHours == 0 {
		c.JWT.RefreshExpiryHours = 24 * 7
	}
	if c.Outbox.BatchSize == 0 {
		c.Outbox.BatchSize = 100
	}
	if c.Outbox.PollInterval == 0 {
		c.Outbox.PollInterval = 5 * time.Second
	}
	if c.Outbox.RetryAttempts == 0 {
		c.Outbox.RetryAttempts = 3
	}
	if c.Outbox.RetryDelay == 0 {
		c.Outbox.RetryDelay = time.Minute
	}
	if c.Outbox.RetentionDays == 0 {
		c.Outbox.RetentionDays = 7
	}
	if c.Scanner.Timeout == 0 {
		c.Scanner.Timeout = 30 * time.Second
	}
	if c.Permission.AmbiguousRolePolicy == "" {
		c.Permission.AmbiguousRolePolicy = "highest"
	}
	if c.Permission.CacheTTL == 0 {
		c.Permission.CacheTTL = 5 * time.Minute
	}
	if c.Monitoring.MetricsPath == "" {
		c.Monitoring.MetricsPath = "/metrics"
	}
}

func (c *OutboxConfig) ToWorkerConfig() worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     c.BatchSize,
		PollInterval:  c.PollInterval,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
	}
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}
