package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/amar74/n-be-sub001/internal/configloader"
)

const (
	defaultServerPort      = 8070
	defaultServerTimeout   = 30
	defaultDatabasePort    = 5432
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5
	defaultRedisAddress    = "localhost:6379"

	defaultFreshnessWindow  = 24 * time.Hour
	defaultMaxChildLinks    = 10
	defaultExcerptRunes     = 2000
	defaultFetchTimeout     = 30 * time.Second
	defaultHostRateInterval = 2 * time.Second
	defaultPollInterval     = 30 * time.Second
	defaultMaxConsecFails   = 3
	defaultAIModel          = "claude-sonnet-4-5"
	defaultAIMaxTokens      = 1024
)

type Config struct {
	Debug     bool            `env:"APP_DEBUG" yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AI        AIConfig        `yaml:"ai"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Host         string        `env:"SERVER_HOST"  yaml:"host"`
	Port         int           `env:"SERVER_PORT"  yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Host            string        `env:"DB_HOST"     yaml:"host"`
	Port            int           `env:"DB_PORT"     yaml:"port"`
	User            string        `env:"DB_USER"     yaml:"user"`
	Password        string        `env:"DB_PASSWORD" yaml:"password"`
	DBName          string        `env:"DB_NAME"     yaml:"dbname"`
	SSLMode         string        `env:"DB_SSLMODE"  yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig holds Redis connection settings for event publishing.
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS"        yaml:"address"`
	Password string `env:"REDIS_PASSWORD"       yaml:"password"`
	DB       int    `env:"REDIS_DB"             yaml:"db"`
	Enabled  bool   `env:"REDIS_EVENTS_ENABLED" yaml:"enabled"` // Feature flag for event publishing
}

// AIConfig holds settings for the summarization model.
type AIConfig struct {
	APIKey    string `env:"ANTHROPIC_API_KEY" yaml:"api_key"`
	Model     string `env:"AI_MODEL"          yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	Enabled   bool   `env:"AI_ENABLED"        yaml:"enabled"`
}

// ScraperConfig controls fetch behavior and extraction limits.
type ScraperConfig struct {
	// FreshnessWindow is how long a scraped URL stays fresh; a URL seen
	// within the window is skipped rather than re-fetched.
	FreshnessWindow time.Duration `env:"SCRAPER_FRESHNESS_WINDOW" yaml:"freshness_window"`
	// MaxChildLinks caps how many opportunity links are followed from a
	// landing page in one run.
	MaxChildLinks    int           `env:"SCRAPER_MAX_CHILD_LINKS" yaml:"max_child_links"`
	ExcerptRunes     int           `yaml:"excerpt_runes"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
	UserAgent        string        `yaml:"user_agent"`
	HostRateInterval time.Duration `yaml:"host_rate_interval"`
}

// SchedulerConfig controls the agent due-poll loop.
type SchedulerConfig struct {
	Enabled             bool          `env:"SCHEDULER_ENABLED" yaml:"enabled"`
	PollInterval        time.Duration `yaml:"poll_interval"`
	MaxConsecutiveFails int           `yaml:"max_consecutive_fails"`
}

func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("server.host is required")
	}
	if c.Server.Port <= 0 {
		return errors.New("server.port is required and must be positive")
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.Port <= 0 {
		return errors.New("database.port is required and must be positive")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.DBName == "" {
		return errors.New("database.dbname is required")
	}
	if c.AI.Enabled && c.AI.APIKey == "" {
		return errors.New("ai.api_key is required when ai.enabled is true")
	}
	return nil
}

func Load(path string) (*Config, error) {
	cfg, err := configloader.LoadWithDefaults(path, setDefaults)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultServerTimeout * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultServerTimeout * time.Second
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = defaultDatabasePort
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = defaultConnMaxLifetime * time.Minute
	}
	if cfg.Redis.Address == "" {
		cfg.Redis.Address = defaultRedisAddress
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = defaultAIModel
	}
	if cfg.AI.MaxTokens == 0 {
		cfg.AI.MaxTokens = defaultAIMaxTokens
	}
	if cfg.Scraper.FreshnessWindow == 0 {
		cfg.Scraper.FreshnessWindow = defaultFreshnessWindow
	}
	if cfg.Scraper.MaxChildLinks == 0 {
		cfg.Scraper.MaxChildLinks = defaultMaxChildLinks
	}
	if cfg.Scraper.ExcerptRunes == 0 {
		cfg.Scraper.ExcerptRunes = defaultExcerptRunes
	}
	if cfg.Scraper.FetchTimeout == 0 {
		cfg.Scraper.FetchTimeout = defaultFetchTimeout
	}
	if cfg.Scraper.UserAgent == "" {
		cfg.Scraper.UserAgent = "OpportunityBot/1.0"
	}
	if cfg.Scraper.HostRateInterval == 0 {
		cfg.Scraper.HostRateInterval = defaultHostRateInterval
	}
	if cfg.Scheduler.PollInterval == 0 {
		cfg.Scheduler.PollInterval = defaultPollInterval
	}
	if cfg.Scheduler.MaxConsecutiveFails == 0 {
		cfg.Scheduler.MaxConsecutiveFails = defaultMaxConsecFails
	}
}
