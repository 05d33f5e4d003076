// Package config loads the modmarket configuration file.
//
// The file is TOML and every key is optional; missing keys keep their
// defaults:
//
//	[marketplace]
//	url = "https://marketplace.example.com/api/v1/"
//	app_version = "1.2.0"
//	validate_ssl = true
//	ca_bundle = "/etc/modmarket/cacert.pem"
//
//	[paths]
//	modules = "/var/www/app/protected/modules"
//	runtime = "/var/www/app/protected/runtime"
//
//	[cache]
//	backend = "redis"          # file, redis, memory, none
//	redis_addr = "localhost:6379"
//
//	[settings]
//	backend = "mongo"          # file, mongo
//	mongo_uri = "mongodb://localhost:27017"
//
//	[api]
//	listen = "127.0.0.1:8080"
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	errs "github.com/matzehuels/modmarket/pkg/errors"
)

const appName = "modmarket"

// Cache backends.
const (
	CacheFile   = "file"
	CacheRedis  = "redis"
	CacheMemory = "memory"
	CacheNone   = "none"
)

// Settings backends.
const (
	SettingsFile  = "file"
	SettingsMongo = "mongo"
)

// Config is the complete application configuration.
type Config struct {
	Marketplace Marketplace `toml:"marketplace"`
	Paths       Paths       `toml:"paths"`
	Cache       Cache       `toml:"cache"`
	Settings    Settings    `toml:"settings"`
	API         API         `toml:"api"`
}

// Marketplace configures the remote catalog.
type Marketplace struct {
	URL         string `toml:"url"`
	AppVersion  string `toml:"app_version"`
	ValidateSSL bool   `toml:"validate_ssl"`
	CABundle    string `toml:"ca_bundle"`
}

// Paths locates the host application's directories.
type Paths struct {
	Modules string `toml:"modules"`
	Runtime string `toml:"runtime"`
}

// Cache selects the catalog cache backend.
type Cache struct {
	Backend       string `toml:"backend"`
	Dir           string `toml:"dir"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	Prefix        string `toml:"prefix"`
}

// Settings selects the runtime settings store.
type Settings struct {
	Backend         string `toml:"backend"`
	File            string `toml:"file"`
	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

// API configures the admin HTTP server.
type API struct {
	Listen string `toml:"listen"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	data := dataDir()
	return Config{
		Marketplace: Marketplace{
			URL:         "https://marketplace.example.com/api/v1/",
			AppVersion:  "1.0.0",
			ValidateSSL: true,
		},
		Paths: Paths{
			Modules: filepath.Join(data, "modules"),
			Runtime: filepath.Join(data, "runtime"),
		},
		Cache: Cache{
			Backend:   CacheFile,
			Dir:       cacheDir(),
			RedisAddr: "localhost:6379",
		},
		Settings: Settings{
			Backend:         SettingsFile,
			File:            filepath.Join(configDir(), "settings.toml"),
			MongoURI:        "mongodb://localhost:27017",
			MongoDatabase:   appName,
			MongoCollection: "settings",
		},
		API: API{Listen: "127.0.0.1:8080"},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/modmarket/config.toml.
func DefaultPath() string {
	return filepath.Join(configDir(), "config.toml")
}

// Load reads path on top of the defaults. A missing file yields the
// defaults; an empty path means [DefaultPath].
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would only fail later at first use.
func (c Config) Validate() error {
	if err := errs.ValidateURL(c.Marketplace.URL); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidInput, err, "marketplace.url")
	}
	if c.Paths.Modules == "" || c.Paths.Runtime == "" {
		return errs.New(errs.ErrCodeInvalidInput, "paths.modules and paths.runtime are required")
	}
	switch c.Cache.Backend {
	case CacheFile, CacheRedis, CacheMemory, CacheNone:
	default:
		return errs.New(errs.ErrCodeInvalidInput, "unknown cache backend %q", c.Cache.Backend)
	}
	switch c.Settings.Backend {
	case SettingsFile, SettingsMongo:
	default:
		return errs.New(errs.ErrCodeInvalidInput, "unknown settings backend %q", c.Settings.Backend)
	}
	return nil
}

// Write stores cfg at path. An existing file is only replaced when
// overwrite is set.
func Write(path string, cfg Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// =============================================================================
// XDG Paths
// =============================================================================

func configDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

func cacheDir() string {
	return xdgDir("XDG_CACHE_HOME", ".cache")
}

func dataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}
	return filepath.Join(home, fallback, appName)
}
