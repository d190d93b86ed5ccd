package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration. Durations are written as
// Go duration strings in YAML ("1h", "100ms") and compiled on Load.
type Config struct {
	Server struct {
		Address string `yaml:"address"`
	} `yaml:"server"`

	GitHub struct {
		Token      string `yaml:"token"`
		APIURL     string `yaml:"apiUrl"`
		GraphQLURL string `yaml:"graphqlUrl"`
		TTL        string `yaml:"ttl"`

		ttl time.Duration
	} `yaml:"github"`

	Roblox struct {
		UniverseURL   string `yaml:"universeUrl"`
		GamesURL      string `yaml:"gamesUrl"`
		ThumbnailsURL string `yaml:"thumbnailsUrl"`
		TTL           string `yaml:"ttl"`
		Pace          string `yaml:"pace"`

		ttl  time.Duration
		pace time.Duration
	} `yaml:"roblox"`

	Cache struct {
		Backend string `yaml:"backend"`

		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`

		LevelDB struct {
			Path string `yaml:"path"`
		} `yaml:"leveldb"`

		Postgres struct {
			DSN string `yaml:"dsn"`
		} `yaml:"postgres"`
	} `yaml:"cache"`

	Client struct {
		Timeout string `yaml:"timeout"`

		timeout time.Duration
	} `yaml:"client"`
}

// Backends accepted in cache.backend.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendLevelDB  = "leveldb"
	BackendPostgres = "postgres"
)

// Default returns a configuration that runs without any file present:
// in-memory cache, public API endpoints, 1h TTLs.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	if err := cfg.compile(); err != nil {
		// defaults are statically valid
		panic(err)
	}
	return cfg
}

// Load reads a YAML config file, applies defaults and env overrides, and
// compiles duration fields.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.compile(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if addr := os.Getenv("PORTFOLIO_PROXY_ADDR"); addr != "" {
		c.Server.Address = addr
	}

	if c.GitHub.APIURL == "" {
		c.GitHub.APIURL = "https://api.github.com"
	}
	if c.GitHub.GraphQLURL == "" {
		c.GitHub.GraphQLURL = "https://api.github.com/graphql"
	}
	if c.GitHub.TTL == "" {
		c.GitHub.TTL = "1h"
	}
	if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
		c.GitHub.Token = tok
	}

	if c.Roblox.UniverseURL == "" {
		c.Roblox.UniverseURL = "https://apis.roblox.com"
	}
	if c.Roblox.GamesURL == "" {
		c.Roblox.GamesURL = "https://games.roblox.com"
	}
	if c.Roblox.ThumbnailsURL == "" {
		c.Roblox.ThumbnailsURL = "https://thumbnails.roblox.com"
	}
	if c.Roblox.TTL == "" {
		c.Roblox.TTL = "1h"
	}
	if c.Roblox.Pace == "" {
		c.Roblox.Pace = "100ms"
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = BackendMemory
	}
	if c.Cache.Redis.Addr == "" {
		c.Cache.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Cache.LevelDB.Path == "" {
		c.Cache.LevelDB.Path = "portfolio-proxy.db"
	}

	if c.Client.Timeout == "" {
		c.Client.Timeout = "10s"
	}
}

func (c *Config) compile() error {
	var err error
	if c.GitHub.ttl, err = parseDuration("github.ttl", c.GitHub.TTL); err != nil {
		return err
	}
	if c.Roblox.ttl, err = parseDuration("roblox.ttl", c.Roblox.TTL); err != nil {
		return err
	}
	if c.Roblox.pace, err = parseDuration("roblox.pace", c.Roblox.Pace); err != nil {
		return err
	}
	if c.Client.timeout, err = parseDuration("client.timeout", c.Client.Timeout); err != nil {
		return err
	}

	switch c.Cache.Backend {
	case BackendMemory, BackendRedis, BackendLevelDB, BackendPostgres:
	default:
		return fmt.Errorf("config: unknown cache.backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == BackendPostgres && c.Cache.Postgres.DSN == "" {
		return fmt.Errorf("config: cache.postgres.dsn is required for the postgres backend")
	}
	return nil
}

func parseDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive, got %s", field, value)
	}
	return d, nil
}

// GitHubTTL returns the compiled contribution-stats cache lifetime.
func (c Config) GitHubTTL() time.Duration { return c.GitHub.ttl }

// RobloxTTL returns the compiled game-catalog cache lifetime.
func (c Config) RobloxTTL() time.Duration { return c.Roblox.ttl }

// RobloxPace returns the minimum interval between universe lookups.
func (c Config) RobloxPace() time.Duration { return c.Roblox.pace }

// ClientTimeout returns the outbound HTTP timeout.
func (c Config) ClientTimeout() time.Duration { return c.Client.timeout }
