// Package store selects and opens the TableStore backend named in the
// configuration. Backends register themselves from init functions; import
// internal/store/all to make every built-in backend available.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/csvappend/internal/config"
	"github.com/JonMunkholm/csvappend/internal/core"
)

// Opener builds a TableStore from the application config.
type Opener func(ctx context.Context, cfg *config.Config) (core.TableStore, error)

var (
	registry   = make(map[string]Opener)
	registryMu sync.RWMutex
)

// Register adds a backend under name.
// Panics if a backend with the same name is already registered.
func Register(name string, open Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name = strings.ToLower(strings.TrimSpace(name))
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("store backend already registered: %s", name))
	}
	registry[name] = open
}

// Open opens the backend named by cfg.Store.Backend.
func Open(ctx context.Context, cfg *config.Config) (core.TableStore, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Store.Backend))

	registryMu.RLock()
	open, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown store backend %q (registered: %s)", cfg.Store.Backend, strings.Join(Backends(), ", "))
	}
	return open(ctx, cfg)
}

// Backends returns the registered backend names.
// Sorted alphabetically.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
