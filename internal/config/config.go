package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Autosave  AutosaveConfig  `mapstructure:"autosave"`
	Retention RetentionConfig `mapstructure:"retention"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// StoreConfig selects the draft store backend: memory, redis or postgres.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RemoteConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	TimeoutSeconds int           `mapstructure:"timeout_seconds"`
	MaxFailures    int           `mapstructure:"max_failures"`
	OpenTimeout    time.Duration `mapstructure:"open_timeout"`
}

type AutosaveConfig struct {
	QuietPeriod time.Duration `mapstructure:"quiet_period"`
}

type RetentionConfig struct {
	MaxAgeDays     int           `mapstructure:"max_age_days"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	SessionMaxIdle time.Duration `mapstructure:"session_max_idle"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// EnvOverrides holds the subset of settings that deployments commonly inject
// through the environment instead of the yaml file.
type EnvOverrides struct {
	RedisURL      string `envconfig:"REDIS_URL"`
	DatabaseHost  string `envconfig:"DB_HOST"`
	DatabaseUser  string `envconfig:"DB_USER"`
	DatabasePass  string `envconfig:"DB_PASSWORD"`
	RemoteBaseURL string `envconfig:"RECORD_SERVICE_URL"`
}

// ApplyEnv layers environment overrides over the loaded config.
func (c *Config) ApplyEnv() error {
	var env EnvOverrides
	if err := envconfig.Process("draftapi", &env); err != nil {
		return fmt.Errorf("failed to process env overrides: %w", err)
	}
	if env.RedisURL != "" {
		c.Redis.URL = env.RedisURL
	}
	if env.DatabaseHost != "" {
		c.Database.Host = env.DatabaseHost
	}
	if env.DatabaseUser != "" {
		c.Database.User = env.DatabaseUser
	}
	if env.DatabasePass != "" {
		c.Database.Password = env.DatabasePass
	}
	if env.RemoteBaseURL != "" {
		c.Remote.BaseURL = env.RemoteBaseURL
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Autosave.QuietPeriod == 0 {
		c.Autosave.QuietPeriod = time.Second
	}
	if c.Retention.MaxAgeDays == 0 {
		c.Retention.MaxAgeDays = 30
	}
	if c.Retention.SweepInterval == 0 {
		c.Retention.SweepInterval = time.Hour
	}
	if c.Retention.SessionMaxIdle == 0 {
		c.Retention.SessionMaxIdle = 12 * time.Hour
	}
	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 50
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 100
	}
}
