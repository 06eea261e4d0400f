package dex

import (
	"context"
	"fmt"
	"sort"
	"sync"

	xerrors "github.com/sameermankotia/AptosAI/internal/errors"
)

// Registry maps plugin names to plugin instances. Registration is
// last-write-wins; dispatching to an unregistered name fails with a
// plugin-not-found error. The lock only guards the map: dispatched calls run
// concurrently and plugins must tolerate that.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds or replaces the plugin stored under name.
func (r *Registry) Register(name string, plugin Plugin) {
	if name == "" || plugin == nil {
		return
	}
	r.mu.Lock()
	r.plugins[name] = plugin
	r.mu.Unlock()
}

// Dispatch forwards an action to the named plugin.
func (r *Registry) Dispatch(ctx context.Context, name, action string, params map[string]any) (any, error) {
	r.mu.RLock()
	plugin, ok := r.plugins[name]
	r.mu.RUnlock()
	if !ok {
		return nil, xerrors.New(xerrors.CodePluginNotFound, fmt.Sprintf("plugin %q is not registered", name))
	}
	return plugin.Execute(ctx, action, params)
}

// Names returns the registered plugin names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
