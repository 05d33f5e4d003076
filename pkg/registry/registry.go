// Package registry tracks the modules installed in a modules directory.
//
// Every module lives in its own folder named after its id and describes
// itself in module.toml:
//
//	id = "calendar"
//	name = "Calendar"
//	version = "1.4.0"
//
//	[hooks]
//	install = "calendar.migrate"
//	update = "calendar.migrate"
//
// Hook names refer to procedures registered with [RegisterHook]. A module
// that ships an autostart.toml is bootstrapped right after installation;
// the file may override the hook names of module.toml.
//
// The table of hooks starts empty and the modmarket binary registers none.
// A host that embeds this package registers its procedures, typically from
// an init function, before the first install or update:
//
//	func init() {
//	    registry.RegisterHook("calendar.migrate", migrateCalendar)
//	}
//
// A module naming a hook that was never registered fails its install or
// update with [errors.ErrCodeInternal]. [DirRegistry.MissingHooks] reports
// such modules ahead of time, and `modmarket installed` lists them.
//
// [errors.ErrCodeInternal]: https://pkg.go.dev/github.com/matzehuels/modmarket/pkg/errors#ErrCodeInternal
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	errs "github.com/matzehuels/modmarket/pkg/errors"
)

// File names inside a module folder.
const (
	DescriptorFile = "module.toml"
	AutostartFile  = "autostart.toml"
)

// HookNames names the lifecycle hooks of a module.
type HookNames struct {
	Install string `toml:"install"`
	Update  string `toml:"update"`
}

// Module is an installed module.
type Module struct {
	ID          string    `toml:"id"`
	Name        string    `toml:"name"`
	Version     string    `toml:"version"`
	Description string    `toml:"description"`
	Hooks       HookNames `toml:"hooks"`

	Dir string `toml:"-"`
}

type autostart struct {
	Hooks HookNames `toml:"hooks"`
}

// DirRegistry is a registry backed by a modules directory. Loaded
// descriptors are kept until [DirRegistry.Flush].
type DirRegistry struct {
	dir    string
	logger *log.Logger

	mu     sync.Mutex
	loaded map[string]*Module
}

// NewDirRegistry creates a registry over dir.
func NewDirRegistry(dir string, logger *log.Logger) *DirRegistry {
	if logger == nil {
		logger = log.Default()
	}
	return &DirRegistry{dir: dir, logger: logger, loaded: make(map[string]*Module)}
}

// Dir returns the modules directory.
func (r *DirRegistry) Dir() string { return r.dir }

// Has reports whether a module descriptor exists for id.
func (r *DirRegistry) Has(id string) bool {
	if errs.ValidateModuleID(id) != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(r.dir, id, DescriptorFile))
	return err == nil && info.Mode().IsRegular()
}

// Module loads the descriptor of an installed module.
func (r *DirRegistry) Module(id string) (*Module, error) {
	if err := errs.ValidateModuleID(id); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.loaded[id]; ok {
		return m, nil
	}

	dir := filepath.Join(r.dir, id)
	var m Module
	if _, err := toml.DecodeFile(filepath.Join(dir, DescriptorFile), &m); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.New(errs.ErrCodeModuleNotInstalled, "module %s is not installed", id)
		}
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "could not load module %s", id)
	}
	if m.ID == "" {
		m.ID = id
	}
	if m.ID != id {
		return nil, errs.New(errs.ErrCodeInternal, "module folder %s declares id %s", id, m.ID)
	}
	m.Dir = dir
	r.loaded[id] = &m
	return &m, nil
}

// List returns all loadable modules sorted by id. Folders without a valid
// descriptor are logged and skipped.
func (r *DirRegistry) List() ([]*Module, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read modules directory: %w", err)
	}

	var mods []*Module
	for _, e := range entries {
		if !e.IsDir() || !r.Has(e.Name()) {
			continue
		}
		m, err := r.Module(e.Name())
		if err != nil {
			r.logger.Warn("skipping module", "id", e.Name(), "err", err)
			continue
		}
		mods = append(mods, m)
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].ID < mods[j].ID })
	return mods, nil
}

// RemoveFolder deletes the folder of module id. A missing folder is not
// an error.
func (r *DirRegistry) RemoveFolder(id string) error {
	if err := errs.ValidateModuleID(id); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.loaded, id)
	r.mu.Unlock()

	if err := os.RemoveAll(filepath.Join(r.dir, id)); err != nil {
		return errs.Wrap(errs.ErrCodeNotWritable, err, "could not remove module folder %s", id)
	}
	return nil
}

// Flush forgets all loaded descriptors.
func (r *DirRegistry) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = make(map[string]*Module)
}

// HasAutostart reports whether module id ships a bootstrap file.
func (r *DirRegistry) HasAutostart(id string) bool {
	_, err := os.Stat(filepath.Join(r.dir, id, AutostartFile))
	return err == nil
}

// Install runs the install hook of module id.
func (r *DirRegistry) Install(ctx context.Context, id string) error {
	return r.runHook(ctx, id, func(h HookNames) string { return h.Install })
}

// Update runs the update hook of module id.
func (r *DirRegistry) Update(ctx context.Context, id string) error {
	return r.runHook(ctx, id, func(h HookNames) string { return h.Update })
}

// MissingHooks returns the hook names module id refers to that have no
// registered procedure, in install, update order.
func (r *DirRegistry) MissingHooks(id string) ([]string, error) {
	m, err := r.Module(id)
	if err != nil {
		return nil, err
	}
	hooks, err := effectiveHooks(m)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, name := range []string{hooks.Install, hooks.Update} {
		if name == "" || (len(missing) > 0 && missing[len(missing)-1] == name) {
			continue
		}
		if _, ok := LookupHook(name); !ok {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// effectiveHooks merges the hook names of module.toml with the overrides
// of autostart.toml, if the module ships one.
func effectiveHooks(m *Module) (HookNames, error) {
	hooks := m.Hooks
	var as autostart
	if _, err := toml.DecodeFile(filepath.Join(m.Dir, AutostartFile), &as); err == nil {
		if as.Hooks.Install != "" {
			hooks.Install = as.Hooks.Install
		}
		if as.Hooks.Update != "" {
			hooks.Update = as.Hooks.Update
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return HookNames{}, errs.Wrap(errs.ErrCodeInternal, err, "could not read %s of module %s", AutostartFile, m.ID)
	}
	return hooks, nil
}

func (r *DirRegistry) runHook(ctx context.Context, id string, pick func(HookNames) string) error {
	m, err := r.Module(id)
	if err != nil {
		return err
	}

	hooks, err := effectiveHooks(m)
	if err != nil {
		return err
	}
	name := pick(hooks)
	if name == "" {
		return nil
	}

	fn, ok := LookupHook(name)
	if !ok {
		return errs.New(errs.ErrCodeInternal, "module %s requires unknown hook %q", id, name)
	}
	r.logger.Debug("running module hook", "module", id, "hook", name)
	return fn(ctx, m)
}
