// Package cli implements the modmarket command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/modmarket/internal/config"
	"github.com/matzehuels/modmarket/pkg/cache"
	"github.com/matzehuels/modmarket/pkg/installer"
	"github.com/matzehuels/modmarket/pkg/marketplace"
	"github.com/matzehuels/modmarket/pkg/registry"
	"github.com/matzehuels/modmarket/pkg/settings"
	"github.com/matzehuels/modmarket/pkg/updates"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "modmarket"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// loadConfig reads the file named by --config, or the default location.
func (c *CLI) loadConfig() (config.Config, error) {
	return config.Load(c.configPath)
}

// =============================================================================
// Service Factory
// =============================================================================

// services bundles everything a command needs to talk to the marketplace
// and the local module directory.
type services struct {
	cfg       config.Config
	cache     cache.Cache
	settings  settings.Store
	catalog   *marketplace.Client
	registry  *registry.DirRegistry
	installer *installer.Installer
	updates   *updates.Checker

	closers []func() error
}

// openServices builds the service graph from the configuration file.
// Callers must Close the result.
func (c *CLI) openServices(ctx context.Context) (*services, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	return newServices(ctx, cfg, c.Logger)
}

func newServices(ctx context.Context, cfg config.Config, logger *log.Logger) (*services, error) {
	s := &services{cfg: cfg}

	store, closeStore, err := openSettings(ctx, cfg.Settings)
	if err != nil {
		return nil, err
	}
	s.settings = store
	if closeStore != nil {
		s.closers = append(s.closers, closeStore)
	}

	c, err := openCache(ctx, cfg.Cache)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.cache = c
	s.closers = append(s.closers, c.Close)

	s.catalog, err = marketplace.NewClient(marketplace.Config{
		BaseURL:     cfg.Marketplace.URL,
		AppVersion:  cfg.Marketplace.AppVersion,
		ValidateSSL: cfg.Marketplace.ValidateSSL,
		CABundle:    cfg.Marketplace.CABundle,
	}, store, c, logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.registry = registry.NewDirRegistry(cfg.Paths.Modules, logger)
	s.installer = installer.New(installer.Config{
		ModulesDir: cfg.Paths.Modules,
		RuntimeDir: cfg.Paths.Runtime,
	}, s.catalog, s.registry, logger)
	s.updates = updates.NewChecker(s.catalog, s.registry, logger)
	return s, nil
}

// Close releases backend connections.
func (s *services) Close() error {
	var errList []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errList = append(errList, err)
		}
	}
	s.closers = nil
	return errors.Join(errList...)
}

func openCache(ctx context.Context, cfg config.Cache) (cache.Cache, error) {
	var c cache.Cache
	switch cfg.Backend {
	case config.CacheNone:
		return cache.NewNullCache(), nil
	case config.CacheMemory:
		c = cache.NewMemoryCache()
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		c = rc
	default:
		fc, err := cache.NewFileCache(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("open file cache: %w", err)
		}
		c = fc
	}
	if cfg.Prefix != "" {
		c = cache.Scoped(c, cfg.Prefix)
	}
	return c, nil
}

func openSettings(ctx context.Context, cfg config.Settings) (settings.Store, func() error, error) {
	if cfg.Backend != config.SettingsMongo {
		return settings.NewFileStore(cfg.File), nil, nil
	}
	ms, err := settings.NewMongoStore(ctx, settings.MongoConfig{
		URI:        cfg.MongoURI,
		Database:   cfg.MongoDatabase,
		Collection: cfg.MongoCollection,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open settings store: %w", err)
	}
	return ms, func() error { return ms.Close(context.Background()) }, nil
}
