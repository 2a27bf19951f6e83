// Package config loads whatschanged settings from a TOML file, a .env file
// and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/whatschanged/whatschanged/pkg/cache"
	errs "github.com/whatschanged/whatschanged/pkg/errors"
)

const appName = "whatschanged"

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// Environment variables that override file settings.
const (
	EnvGitHubToken       = "GITHUB_ACCESS_TOKEN"
	EnvGitHubTokenLegacy = "GITHUB_TOKEN"
	EnvDatabase          = "WHATSCHANGED_DB"
	EnvRedisAddr         = "WHATSCHANGED_REDIS_ADDR"
	EnvPort              = "PORT"
)

const (
	defaultConcurrency = 10
	maxConcurrency     = 50
	defaultAddr        = ":3000"
)

type Config struct {
	GitHubToken    string        `toml:"github_token"`
	GitHubAPIURL   string        `toml:"github_api_url"`
	NpmRegistryURL string        `toml:"npm_registry_url"`
	Concurrency    int           `toml:"concurrency"`
	CacheTTL       time.Duration `toml:"cache_ttl"`
	Store          StoreConfig   `toml:"store"`
	Serve          ServeConfig   `toml:"serve"`
}

type StoreConfig struct {
	Backend       string `toml:"backend"`
	Path          string `toml:"path"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

type ServeConfig struct {
	Addr      string `toml:"addr"`
	RedisAddr string `toml:"redis_addr"`
}

// DefaultPath returns $XDG_CONFIG_HOME/whatschanged/config.toml, falling
// back to ~/.config.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName, "config.toml")
}

// DataDir returns $XDG_DATA_HOME/whatschanged, falling back to ~/.local/share.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", appName)
}

// CacheDir returns $XDG_CACHE_HOME/whatschanged, falling back to ~/.cache.
func CacheDir() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// Load reads the TOML file at path, then .env in the working directory, then
// the environment. A missing file at path is not an error when path is the
// default location; pass "" to use it.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := &Config{}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !errors.Is(err, fs.ErrNotExist) || explicit {
				return nil, errs.Wrap(errs.ErrCodeInvalidConfig, err, "load %s", path)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errs.Wrap(errs.ErrCodeInvalidConfig, err, "load .env")
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvGitHubToken); v != "" {
		c.GitHubToken = v
	} else if v := os.Getenv(EnvGitHubTokenLegacy); v != "" {
		c.GitHubToken = v
	}
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Serve.RedisAddr = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		if _, err := strconv.Atoi(v); err == nil {
			c.Serve.Addr = ":" + v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Concurrency == 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = cache.TTLRegistry
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendSQLite
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(DataDir(), "releases.db")
	}
	if c.Store.MongoDatabase == "" {
		c.Store.MongoDatabase = appName
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = defaultAddr
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite:
	case BackendMongo:
		if c.Store.MongoURI == "" {
			return errs.New(errs.ErrCodeInvalidConfig, "store.mongo_uri is required for the mongo backend")
		}
	default:
		return errs.New(errs.ErrCodeInvalidConfig, "unknown store backend %q (want %s or %s)", c.Store.Backend, BackendSQLite, BackendMongo)
	}
	if c.Concurrency < 1 || c.Concurrency > maxConcurrency {
		return errs.New(errs.ErrCodeInvalidConfig, "concurrency must be between 1 and %d, got %d", maxConcurrency, c.Concurrency)
	}
	if c.CacheTTL < 0 {
		return errs.New(errs.ErrCodeInvalidConfig, "cache_ttl must not be negative")
	}
	for name, u := range map[string]string{"github_api_url": c.GitHubAPIURL, "npm_registry_url": c.NpmRegistryURL} {
		if u == "" {
			continue
		}
		if err := errs.ValidateURL(u); err != nil {
			return errs.Wrap(errs.ErrCodeInvalidConfig, err, "%s", name)
		}
	}
	return nil
}
