package config

import (
	"embed"
	"fmt"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

//go:embed example.yaml
var exampleConfig embed.FS

// Config represents the complete tideline configuration
type Config struct {
	Site    Site    `yaml:"site"`
	Server  Server  `yaml:"server"`
	Relays  Relays  `yaml:"relays"`
	Feed    Feed    `yaml:"feed"`
	Caching Caching `yaml:"caching"`
	Logging Logging `yaml:"logging"`
}

// Site contains site metadata
type Site struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// Server contains HTTP server settings
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Relays contains the initial relay set and query policy
type Relays struct {
	Defaults []RelayEntry `yaml:"defaults"`
	Policy   RelayPolicy  `yaml:"policy"`
}

// RelayEntry describes a single relay and its read/write role
type RelayEntry struct {
	URL   string `yaml:"url"`
	Read  bool   `yaml:"read"`
	Write bool   `yaml:"write"`
}

// RelayPolicy contains relay query policies
type RelayPolicy struct {
	QueryTimeoutMs     int `yaml:"query_timeout_ms"`     // primary feed queries
	SecondaryTimeoutMs int `yaml:"secondary_timeout_ms"` // zap/comment/profile queries
}

// Feed contains feed pipeline settings
type Feed struct {
	PageSize    int    `yaml:"page_size"`
	DefaultSort string `yaml:"default_sort"` // hot|recent|top
}

// Caching contains caching configuration
type Caching struct {
	Enabled  bool     `yaml:"enabled"`
	Engine   string   `yaml:"engine"` // memory|redis
	RedisURL string   `yaml:"redis_url"`
	TTL      CacheTTL `yaml:"ttl"`
}

// CacheTTL contains TTL settings per aggregation namespace, in seconds
type CacheTTL struct {
	Zaps        int `yaml:"zaps"`
	Comments    int `yaml:"comments"`
	Eligibility int `yaml:"eligibility"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
}

// Load reads and parses a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills in missing configuration fields with sensible defaults
func applyDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Site.Title == "" {
		cfg.Site.Title = defaults.Site.Title
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaults.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Relays.Defaults) == 0 {
		cfg.Relays.Defaults = defaults.Relays.Defaults
	}
	if cfg.Relays.Policy.QueryTimeoutMs == 0 {
		cfg.Relays.Policy.QueryTimeoutMs = defaults.Relays.Policy.QueryTimeoutMs
	}
	if cfg.Relays.Policy.SecondaryTimeoutMs == 0 {
		cfg.Relays.Policy.SecondaryTimeoutMs = defaults.Relays.Policy.SecondaryTimeoutMs
	}
	if cfg.Feed.PageSize == 0 {
		cfg.Feed.PageSize = defaults.Feed.PageSize
	}
	if cfg.Feed.DefaultSort == "" {
		cfg.Feed.DefaultSort = defaults.Feed.DefaultSort
	}
	if cfg.Caching.Engine == "" {
		cfg.Caching.Engine = defaults.Caching.Engine
	}
	if cfg.Caching.TTL.Zaps == 0 {
		cfg.Caching.TTL.Zaps = defaults.Caching.TTL.Zaps
	}
	if cfg.Caching.TTL.Comments == 0 {
		cfg.Caching.TTL.Comments = defaults.Caching.TTL.Comments
	}
	if cfg.Caching.TTL.Eligibility == 0 {
		cfg.Caching.TTL.Eligibility = defaults.Caching.TTL.Eligibility
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaults.Logging.Format
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) error {
	if redisURL := os.Getenv("TIDELINE_REDIS_URL"); redisURL != "" {
		cfg.Caching.RedisURL = redisURL
	}
	if addr := os.Getenv("TIDELINE_LISTEN"); addr != "" {
		host, port, ok := strings.Cut(addr, ":")
		if !ok {
			return fmt.Errorf("TIDELINE_LISTEN must be host:port, got %q", addr)
		}
		cfg.Server.Host = host
		if _, err := fmt.Sscanf(port, "%d", &cfg.Server.Port); err != nil {
			return fmt.Errorf("TIDELINE_LISTEN has invalid port %q: %w", port, err)
		}
	}
	return nil
}

// GetExampleConfig returns the embedded example configuration
func GetExampleConfig() ([]byte, error) {
	return exampleConfig.ReadFile("example.yaml")
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Site: Site{
			Title:       "Tideline",
			Description: "The front page of Nostr",
		},
		Server: Server{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Relays: Relays{
			Defaults: []RelayEntry{
				{URL: "wss://relay.damus.io", Read: true, Write: true},
				{URL: "wss://relay.primal.net", Read: true, Write: true},
				{URL: "wss://nos.lol", Read: true, Write: true},
			},
			Policy: RelayPolicy{
				QueryTimeoutMs:     8000,
				SecondaryTimeoutMs: 5000,
			},
		},
		Feed: Feed{
			PageSize:    50,
			DefaultSort: "hot",
		},
		Caching: Caching{
			Enabled: true,
			Engine:  "memory",
			TTL: CacheTTL{
				Zaps:        30,
				Comments:    30,
				Eligibility: 60,
			},
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks if a configuration is valid
func Validate(cfg *Config) error {
	if err := validation.ValidateStruct(cfg,
		validation.Field(&cfg.Site),
		validation.Field(&cfg.Server),
		validation.Field(&cfg.Feed),
		validation.Field(&cfg.Caching),
		validation.Field(&cfg.Logging),
	); err != nil {
		return err
	}

	if len(cfg.Relays.Defaults) == 0 {
		return fmt.Errorf("at least one default relay is required")
	}
	for _, r := range cfg.Relays.Defaults {
		if !strings.HasPrefix(r.URL, "wss://") && !strings.HasPrefix(r.URL, "ws://") {
			return fmt.Errorf("relay url must start with ws:// or wss://: %s", r.URL)
		}
	}
	return nil
}

// Validate implements validation.Validatable
func (s Site) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Title, validation.Required, validation.Length(1, 100)),
	)
}

// Validate implements validation.Validatable
func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// Validate implements validation.Validatable
func (f Feed) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.PageSize, validation.Required, validation.Min(1), validation.Max(500)),
		validation.Field(&f.DefaultSort, validation.Required, validation.In("hot", "recent", "top")),
	)
}

// Validate implements validation.Validatable
func (c Caching) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Engine, validation.Required, validation.In("memory", "redis")),
		validation.Field(&c.TTL),
	)
}

// Validate implements validation.Validatable
func (t CacheTTL) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Zaps, validation.Min(1), validation.Max(3600)),
		validation.Field(&t.Comments, validation.Min(1), validation.Max(3600)),
		validation.Field(&t.Eligibility, validation.Min(1), validation.Max(3600)),
	)
}

// Validate implements validation.Validatable
func (l Logging) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.Required, validation.In("debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.Required, validation.In("text", "json")),
	)
}
