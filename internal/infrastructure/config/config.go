package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Billing   BillingConfig
	Payment   PaymentConfig
	Events    EventsConfig
	HTTP      HTTPConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json console"`
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string `validate:"oneof=development test staging production"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string `validate:"required"`
	Port            int    `validate:"gt=0,lte=65535"`
	User            string `validate:"required"`
	Password        string
	DBName          string `validate:"required"`
	SSLMode         string
	MaxOpenConns    int `validate:"gt=0"`
	MaxIdleConns    int `validate:"gte=0"`
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	LogLevel        string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// BillingConfig holds charge engine, dispatcher and scheduler settings
type BillingConfig struct {
	MaxAttempts        int           `validate:"gte=1"`
	RetryInterval      time.Duration `validate:"gte=0"`
	ExponentialBackoff bool
	MaxRetryInterval   time.Duration `validate:"gte=0"`
	MaxConcurrency     int           `validate:"gte=0"`
	MonthlyCron        string        `validate:"required"`
	Timezone           string
	LockTTL            time.Duration `validate:"gt=0"`
	LockBackend        string        `validate:"oneof=memory redis none"`
	RunOnStart         bool
	SchedulerEnabled   bool
}

// PaymentConfig selects and configures the payment provider
type PaymentConfig struct {
	Mode        string        `validate:"oneof=simulated http"`
	Endpoint    string        `validate:"required_if=Mode http,omitempty,url"`
	APIKey      string
	Timeout     time.Duration `validate:"gt=0"`
	SuccessRate float64       `validate:"gte=0,lte=1"`
}

// EventsConfig selects where billing events go besides the in-process bus
type EventsConfig struct {
	LogEnabled    bool
	StoreEnabled  bool
	StreamEnabled bool
	StreamName    string
	StreamMaxLen  int64 `validate:"gte=0"`
}

// HTTPConfig holds admin API server configuration
type HTTPConfig struct {
	Port              string `validate:"required"`
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	AdminSecret       string // plain text or bcrypt hash; empty disables auth
	TokenIssuer       string
	TokenTTL          time.Duration
	RevocationBackend string `validate:"oneof=memory redis"`
	ProfileRequests   bool   // label request goroutines by route for Pyroscope
}

// StorageConfig holds batch report archive settings
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	Region          string
	Bucket          string `validate:"required_if=Enabled true"`
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	Prefix          string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 `validate:"gte=0,lte=1"`
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings
	// Continuous profiling
	ProfilingEnabled  bool
	PyroscopeEndpoint string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with BILLING_ prefix (e.g., BILLING_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	return FromViper(v)
}

// FromViper builds the configuration from an already prepared viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("BILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setViperDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Billing: BillingConfig{
			MaxAttempts:        v.GetInt("billing.max_attempts"),
			RetryInterval:      v.GetDuration("billing.retry_interval"),
			ExponentialBackoff: v.GetBool("billing.exponential_backoff"),
			MaxRetryInterval:   v.GetDuration("billing.max_retry_interval"),
			MaxConcurrency:     v.GetInt("billing.max_concurrency"),
			MonthlyCron:        v.GetString("billing.monthly_cron"),
			Timezone:           v.GetString("billing.timezone"),
			LockTTL:            v.GetDuration("billing.lock_ttl"),
			LockBackend:        v.GetString("billing.lock_backend"),
			RunOnStart:         v.GetBool("billing.run_on_start"),
			SchedulerEnabled:   v.GetBool("billing.scheduler_enabled"),
		},
		Payment: PaymentConfig{
			Mode:        v.GetString("payment.mode"),
			Endpoint:    v.GetString("payment.endpoint"),
			APIKey:      v.GetString("payment.api_key"),
			Timeout:     v.GetDuration("payment.timeout"),
			SuccessRate: v.GetFloat64("payment.success_rate"),
		},
		Events: EventsConfig{
			LogEnabled:    v.GetBool("events.log_enabled"),
			StoreEnabled:  v.GetBool("events.store_enabled"),
			StreamEnabled: v.GetBool("events.stream_enabled"),
			StreamName:    v.GetString("events.stream_name"),
			StreamMaxLen:  v.GetInt64("events.stream_max_len"),
		},
		HTTP: HTTPConfig{
			Port:              v.GetString("http.port"),
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			AdminSecret:       v.GetString("http.admin_secret"),
			TokenIssuer:       v.GetString("http.token_issuer"),
			TokenTTL:          v.GetDuration("http.token_ttl"),
			RevocationBackend: v.GetString("http.revocation_backend"),
			ProfileRequests:   v.GetBool("http.profile_requests"),
		},
		Storage: StorageConfig{
			Enabled:         v.GetBool("storage.enabled"),
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			Bucket:          v.GetString("storage.bucket"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
			Prefix:          v.GetString("storage.prefix"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			PyroscopeEndpoint: v.GetString("telemetry.pyroscope_endpoint"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setViperDefaults registers defaults for booleans, which cannot be told apart from unset after loading
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("billing.scheduler_enabled", true)
	v.SetDefault("events.log_enabled", true)
	v.SetDefault("events.store_enabled", true)
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("http.profile_requests", true)
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "antaeus-billing"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "antaeus"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Billing.MaxAttempts == 0 {
		cfg.Billing.MaxAttempts = 5
	}
	if cfg.Billing.RetryInterval == 0 {
		cfg.Billing.RetryInterval = time.Second
	}
	if cfg.Billing.MonthlyCron == "" {
		cfg.Billing.MonthlyCron = "0 0 1 * *"
	}
	if cfg.Billing.Timezone == "" {
		cfg.Billing.Timezone = "UTC"
	}
	if cfg.Billing.LockTTL == 0 {
		cfg.Billing.LockTTL = 5 * time.Minute
	}
	if cfg.Billing.LockBackend == "" {
		cfg.Billing.LockBackend = "memory"
	}
	if cfg.Payment.Mode == "" {
		cfg.Payment.Mode = "simulated"
	}
	if cfg.Payment.Timeout == 0 {
		cfg.Payment.Timeout = 10 * time.Second
	}
	if cfg.Payment.SuccessRate == 0 {
		cfg.Payment.SuccessRate = 0.8
	}
	if cfg.Events.StreamName == "" {
		cfg.Events.StreamName = "billing-events"
	}
	if cfg.Events.StreamMaxLen == 0 {
		cfg.Events.StreamMaxLen = 100000
	}
	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = "7000"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.TokenIssuer == "" {
		cfg.HTTP.TokenIssuer = "antaeus-billing"
	}
	if cfg.HTTP.TokenTTL == 0 {
		cfg.HTTP.TokenTTL = time.Hour
	}
	if cfg.HTTP.RevocationBackend == "" {
		cfg.HTTP.RevocationBackend = "memory"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "billing-reports"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.PyroscopeEndpoint == "" {
		cfg.Telemetry.PyroscopeEndpoint = "http://localhost:4040"
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validate performs validation on the configuration
func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if _, err := time.LoadLocation(c.Billing.Timezone); err != nil {
		return fmt.Errorf("billing.timezone: %w", err)
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if len(c.HTTP.AdminSecret) < 32 {
			return fmt.Errorf("http.admin_secret must be at least 32 characters in production")
		}
		if c.Payment.Mode == "simulated" {
			return fmt.Errorf("payment.mode cannot be 'simulated' in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	return nil
}

// Location returns the time zone used to evaluate the monthly cron expression
func (b *BillingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
