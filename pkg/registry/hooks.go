package registry

import (
	"context"
	"sort"
	"sync"
)

// HookFunc is a lifecycle procedure run after a module is placed on disk.
type HookFunc func(ctx context.Context, m *Module) error

var (
	hookTable = make(map[string]HookFunc)
	hookMu    sync.RWMutex
)

// RegisterHook makes fn available under name. Module descriptors refer to
// hooks by name; nothing shipped inside a module archive is ever executed.
// Registering a name twice replaces the earlier hook.
func RegisterHook(name string, fn HookFunc) {
	if name == "" || fn == nil {
		return
	}
	hookMu.Lock()
	defer hookMu.Unlock()
	hookTable[name] = fn
}

// LookupHook returns the hook registered under name.
func LookupHook(name string) (HookFunc, bool) {
	hookMu.RLock()
	defer hookMu.RUnlock()
	fn, ok := hookTable[name]
	return fn, ok
}

// Hooks returns the registered hook names in sorted order. `modmarket
// installed` logs them at debug level.
func Hooks() []string {
	hookMu.RLock()
	defer hookMu.RUnlock()
	names := make([]string, 0, len(hookTable))
	for name := range hookTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func unregisterHook(name string) {
	hookMu.Lock()
	defer hookMu.Unlock()
	delete(hookTable, name)
}
