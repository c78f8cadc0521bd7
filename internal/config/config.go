package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Polling    PollingConfig    `mapstructure:"polling"`
	Generation GenerationConfig `mapstructure:"generation"`
	Storage    StorageConfig    `mapstructure:"storage"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`   // sqlite file
	URL             string        `mapstructure:"url"`    // full postgres DSN, wins over the fields below
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		if c.URL != "" {
			return c.URL
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path
}

// QueueConfig controls request lifetime and the expiry sweep.
type QueueConfig struct {
	RequestTTL           time.Duration `mapstructure:"request_ttl"`
	AssignmentStaleAfter time.Duration `mapstructure:"assignment_stale_after"`
	SweepEnabled         bool          `mapstructure:"sweep_enabled"`
	SweepSchedule        string        `mapstructure:"sweep_schedule"`
	SweepBatchSize       int           `mapstructure:"sweep_batch_size"`
}

// PollingConfig is advertised to wizard clients and bounds the SSE stream.
type PollingConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxDuration time.Duration `mapstructure:"max_duration"`
}

type StorageConfig struct {
	Type           string `mapstructure:"type"` // r2, s3, s3compatible
	Endpoint       string `mapstructure:"endpoint"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	UseSSL         bool   `mapstructure:"use_ssl"`
	Bucket         string `mapstructure:"bucket"`
	Region         string `mapstructure:"region"`
	PublicURL      string `mapstructure:"public_url"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// Enabled reports whether enough is configured to talk to object storage.
func (c *StorageConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.Queue.RequestTTL <= 0 {
		return fmt.Errorf("queue.request_ttl must be positive")
	}
	if c.Queue.AssignmentStaleAfter <= 0 {
		return fmt.Errorf("queue.assignment_stale_after must be positive")
	}
	if c.Queue.AssignmentStaleAfter > c.Queue.RequestTTL {
		return fmt.Errorf("queue.assignment_stale_after (%s) must not exceed queue.request_ttl (%s)",
			c.Queue.AssignmentStaleAfter, c.Queue.RequestTTL)
	}
	if c.Queue.SweepBatchSize <= 0 {
		return fmt.Errorf("queue.sweep_batch_size must be positive")
	}
	if c.Polling.Interval <= 0 || c.Polling.MaxDuration < c.Polling.Interval {
		return fmt.Errorf("polling.interval must be positive and not exceed polling.max_duration")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if c.Generation.Enabled {
		if err := c.Generation.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("storage.public_url", "S3_PUBLIC_URL")
	v.BindEnv("generation.api_key", "OPENAI_API_KEY")
	v.BindEnv("generation.base_url", "OPENAI_BASE_URL")
	v.BindEnv("generation.model", "GENERATION_MODEL")
	v.BindEnv("queue.request_ttl", "QUEUE_REQUEST_TTL")
	v.BindEnv("queue.sweep_schedule", "QUEUE_SWEEP_SCHEDULE")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Generation.ResolveEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/sitequeue.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "sitequeue")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("queue.request_ttl", "24h")
	v.SetDefault("queue.assignment_stale_after", "2h")
	v.SetDefault("queue.sweep_enabled", true)
	v.SetDefault("queue.sweep_schedule", "@every 1m")
	v.SetDefault("queue.sweep_batch_size", 200)

	v.SetDefault("polling.interval", "5s")
	v.SetDefault("polling.max_duration", "15m")

	v.SetDefault("generation.enabled", false)
	v.SetDefault("generation.provider", "openai-compatible")
	v.SetDefault("generation.model", "gpt-4o-mini")
	v.SetDefault("generation.base_url", "https://api.openai.com/v1")
	v.SetDefault("generation.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("generation.timeout", "60s")
	v.SetDefault("generation.max_tokens", 1200)
	v.SetDefault("generation.cost_per_1k_tokens", 0.002)

	v.SetDefault("storage.type", "")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "site-assets")
	v.SetDefault("storage.max_upload_bytes", 10<<20)
}
