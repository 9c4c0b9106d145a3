package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers
const (
	DriverSupabase = "supabase"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Supabase SupabaseConfig `mapstructure:"supabase"`
	Store    StoreConfig    `mapstructure:"store"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
	// CORSOrigins lists exact origins or single-label wildcards such as
	// https://*.example.com. Empty allows every origin.
	CORSOrigins []string `mapstructure:"cors_origins"`
	// RateLimit is the per-user request budget per minute
	RateLimit int `mapstructure:"rate_limit"`
}

// SupabaseConfig holds Supabase-specific configuration
type SupabaseConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
}

// StoreConfig selects where events are read from and predictions written to
type StoreConfig struct {
	Driver         string `mapstructure:"driver"`
	DatabaseURL    string `mapstructure:"database_url"`
	SQLitePath     string `mapstructure:"sqlite_path"`
	MaxConnections int32  `mapstructure:"max_connections"`
}

// RedisConfig enables the distributed item lock when Addr is set
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AnalysisConfig tunes the prediction run and its daily schedule
type AnalysisConfig struct {
	Workers         int           `mapstructure:"workers"`
	StaleAfter      time.Duration `mapstructure:"stale_after"`
	RetentionDays   int           `mapstructure:"retention_days"`
	RunTimeout      time.Duration `mapstructure:"run_timeout"`
	Schedule        string        `mapstructure:"schedule"`
	Timezone        string        `mapstructure:"timezone"`
	ScheduleEnabled bool          `mapstructure:"schedule_enabled"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	Backend string `mapstructure:"backend"`
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Load reads configuration from .env, environment variables and config files
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path
// searches ./config.yaml and ./config/config.yaml.
func LoadFile(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("LARDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Also bind to non-prefixed environment variables commonly set by hosts
	_ = v.BindEnv("server.port", "LARDER_SERVER_PORT", "PORT")
	_ = v.BindEnv("supabase.url", "LARDER_SUPABASE_URL", "SUPABASE_URL")
	_ = v.BindEnv("supabase.service_key", "LARDER_SUPABASE_SERVICE_KEY", "SUPABASE_SERVICE_KEY")
	_ = v.BindEnv("store.database_url", "LARDER_STORE_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("redis.addr", "LARDER_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("server.cors_origins", "LARDER_SERVER_CORS_ORIGINS", "CORS_ALLOWED_ORIGINS")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// It's okay if config file doesn't exist
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.rate_limit", 300)

	v.SetDefault("store.driver", DriverSupabase)
	v.SetDefault("store.sqlite_path", "larder.db")
	v.SetDefault("store.max_connections", 10)

	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("analysis.workers", 4)
	v.SetDefault("analysis.stale_after", 6*time.Hour)
	v.SetDefault("analysis.retention_days", 90)
	v.SetDefault("analysis.run_timeout", 10*time.Minute)
	v.SetDefault("analysis.schedule", "0 6 * * *")
	v.SetDefault("analysis.timezone", "Asia/Kolkata")
	v.SetDefault("analysis.schedule_enabled", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.backend", "slog")
}

// loadDotEnv loads the first .env file found. Values already present in
// the environment win.
func loadDotEnv() error {
	for _, path := range []string{".env", "config/.env"} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		return nil
	}
	return nil
}

// Validate checks that all required configuration values are present
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSupabase:
		if c.Supabase.URL == "" {
			return fmt.Errorf("SUPABASE_URL is required")
		}
		if c.Supabase.ServiceKey == "" {
			return fmt.Errorf("SUPABASE_SERVICE_KEY is required")
		}
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if c.Server.RateLimit < 1 {
		return fmt.Errorf("server.rate_limit must be at least 1")
	}
	if c.Analysis.Workers < 1 {
		return fmt.Errorf("analysis.workers must be at least 1")
	}
	if c.Analysis.RetentionDays < 1 {
		return fmt.Errorf("analysis.retention_days must be at least 1")
	}
	if c.Analysis.ScheduleEnabled {
		if _, err := time.LoadLocation(c.Analysis.Timezone); err != nil {
			return fmt.Errorf("invalid analysis.timezone %q: %w", c.Analysis.Timezone, err)
		}
	}
	return nil
}
