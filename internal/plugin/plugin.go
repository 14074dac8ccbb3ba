// Package plugin loads the sources the recorder drives: statically
// registered Go plugins linked into the binary, or (on platforms that
// support it) dynamically loaded shared objects, both addressed by the
// same settings-string routing (§6.3).
package plugin

import (
	"sync"

	"github.com/skywing/fdrlog/internal/ferr"
	"github.com/skywing/fdrlog/internal/registry"
)

// Plugin is the lifecycle contract every source plugin implements: Init
// parses its settings string and returns the registry.Source it will
// drive, Shutdown releases whatever Init acquired. A failing Init makes
// Load return a KindPlugin error (§7) for that plugin alone; a failing
// Shutdown is collected by ShutdownAll while the others proceed.
type Plugin interface {
	Init(settings string) (registry.Source, error)
	Shutdown() error
}

// Factory constructs a fresh, uninitialized Plugin instance.
type Factory func() Plugin

// staticRegistry holds every plugin linked into this binary, keyed by
// the name used in configuration.
var staticRegistry = struct {
	mu    sync.Mutex
	byName map[string]Factory
}{byName: map[string]Factory{}}

// Register adds a statically linked plugin factory under name. Called
// from each plugin package's init() function.
func Register(name string, f Factory) {
	staticRegistry.mu.Lock()
	defer staticRegistry.mu.Unlock()
	staticRegistry.byName[name] = f
}

// Load instantiates the named plugin and initializes it with settings.
func Load(name, settings string) (Plugin, registry.Source, error) {
	staticRegistry.mu.Lock()
	f, ok := staticRegistry.byName[name]
	staticRegistry.mu.Unlock()
	if !ok {
		var err error
		f, err = loadDynamic(name)
		if err != nil {
			return nil, nil, ferr.Plugin("plugin", "Load", err)
		}
	}

	p := f()
	src, err := p.Init(settings)
	if err != nil {
		return nil, nil, ferr.Plugin("plugin", "Load", err)
	}
	return p, src, nil
}

// ShutdownAll calls Shutdown on every plugin in plugins, collecting each
// failure as a KindPlugin error rather than aborting on it — a dying plugin doesn't block
// the others from releasing their own resources.
func ShutdownAll(plugins []Plugin) []error {
	var errs []error
	for _, p := range plugins {
		if err := p.Shutdown(); err != nil {
			errs = append(errs, ferr.Plugin("plugin", "ShutdownAll", err))
		}
	}
	return errs
}
