// Package updates finds installed modules with a newer compatible release
// on the marketplace.
package updates

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/modmarket/pkg/marketplace"
	"github.com/matzehuels/modmarket/pkg/registry"
	"github.com/matzehuels/modmarket/pkg/version"
)

// Catalog provides the marketplace module list.
type Catalog interface {
	FetchCatalog(ctx context.Context) (marketplace.Catalog, error)
}

// Registry reports installed modules.
type Registry interface {
	Has(id string) bool
	Module(id string) (*registry.Module, error)
}

// Checker compares installed versions against the catalog.
type Checker struct {
	Catalog  Catalog
	Registry Registry
	Logger   *log.Logger
}

// NewChecker creates a checker. A nil logger falls back to log.Default().
func NewChecker(catalog Catalog, reg Registry, logger *log.Logger) *Checker {
	if logger == nil {
		logger = log.Default()
	}
	return &Checker{Catalog: catalog, Registry: reg, Logger: logger}
}

// ListAvailableUpdates returns the catalog entries of installed modules
// whose latest compatible version is strictly newer than the installed
// one. Installed modules that cannot be loaded are logged and skipped.
func (c *Checker) ListAvailableUpdates(ctx context.Context) (map[string]marketplace.Module, error) {
	catalog, err := c.Catalog.FetchCatalog(ctx)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]marketplace.Module)
	for id, m := range catalog {
		candidate := m.CompatibleVersion()
		if candidate == "" || !c.Registry.Has(id) {
			continue
		}
		installed, err := c.Registry.Module(id)
		if err != nil || installed == nil {
			c.Logger.Error("could not load module to get updates", "module", id, "err", err)
			continue
		}
		if version.Newer(candidate, installed.Version) {
			updates[id] = m
		}
	}
	return updates, nil
}
