// Package plugins implements manifest validation, plugin discovery
// (built-in and dynamically loaded), and the registry the Parallel
// Dispatcher looks handlers up in.
package plugins

import (
	"fmt"
	"plugin"
	"sync"

	"github.com/askr-bot/askr/internal/eventkind"
	"github.com/askr-bot/askr/internal/logger"
)

// BoundHandler is a single registered handler, identified by the plugin it
// came from and the symbol name it was declared under. SOPath is empty for
// built-in plugins; the Sandbox Runner uses it to tell its spawned worker
// how to re-resolve the same handler in a fresh process image.
type BoundHandler struct {
	PluginName string
	SymbolName string
	SOPath     string
	Fn         HandlerFunc
}

// Identity is what Lookup dedups on: the same handler reached through two
// inherited kinds only fires once.
func (h BoundHandler) Identity() string {
	return h.PluginName + "#" + h.SymbolName
}

// UnconditionalHandler pairs a handler with its minute-modulus interval.
type UnconditionalHandler struct {
	BoundHandler
	Interval int
}

// LoadedPlugin is one successfully validated and registered plugin.
type LoadedPlugin struct {
	Name     string
	Manifest Manifest
	SOPath   string
}

// Registry holds every loaded plugin and the kind-indexed handler lists the
// dispatcher reads from. Readers take RLock; Load/bootstrap takes Lock.
type Registry struct {
	mu             sync.RWMutex
	plugins        map[string]*LoadedPlugin
	byKind         map[eventkind.Kind][]BoundHandler
	initializers   []BoundHandler
	unconditionals []UnconditionalHandler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]*LoadedPlugin),
		byKind:  make(map[eventkind.Kind][]BoundHandler),
	}
}

// Register validates a plugin's manifest against its resolved handler
// symbols and, if valid, adds it to the registry. resolve looks up a
// HandlerFunc by exported symbol name (built-in map lookup, or a loaded
// .so's Lookup). Equivalent to RegisterWithSource(name, "", manifest, resolve).
func (r *Registry) Register(name string, manifest Manifest, resolve func(symbol string) (HandlerFunc, bool)) error {
	return r.RegisterWithSource(name, "", manifest, resolve)
}

// RegisterWithSource is Register, additionally stamping soPath (empty for
// built-in plugins) onto every handler it binds, so the Sandbox Runner knows
// how its worker should re-resolve the handler.
//
// An unresolved symbol, like a malformed manifest entry, drops only the
// entry it belongs to: it is logged and the plugin still registers with
// whatever entries did resolve. The plugin as a whole only fails to
// register when its manifest can't be read at all (handled by the caller
// before Parse ever runs).
func (r *Registry) RegisterWithSource(name, soPath string, manifest Manifest, resolve func(symbol string) (HandlerFunc, bool)) error {
	byKind, initializer, unconditional := manifest.Parse()

	resolvedByKind := make(map[eventkind.Kind]BoundHandler, len(byKind))
	for kind, entry := range byKind {
		fn, ok := resolve(entry.SymbolName)
		if !ok {
			logger.Plugins().Error().Str("plugin", name).Str("symbol", entry.SymbolName).Str("kind", string(kind)).
				Msg("manifest names unresolved symbol, dropping entry")
			continue
		}
		resolvedByKind[kind] = BoundHandler{PluginName: name, SymbolName: entry.SymbolName, SOPath: soPath, Fn: fn}
	}

	var resolvedInit *BoundHandler
	if initializer != nil {
		fn, ok := resolve(initializer.SymbolName)
		if !ok {
			logger.Plugins().Error().Str("plugin", name).Str("symbol", initializer.SymbolName).
				Msg("manifest names unresolved INITIALIZER symbol, dropping entry")
		} else {
			resolvedInit = &BoundHandler{PluginName: name, SymbolName: initializer.SymbolName, SOPath: soPath, Fn: fn}
		}
	}

	var resolvedUncond *UnconditionalHandler
	if unconditional != nil {
		fn, ok := resolve(unconditional.SymbolName)
		if !ok {
			logger.Plugins().Error().Str("plugin", name).Str("symbol", unconditional.SymbolName).
				Msg("manifest names unresolved UNCONDITIONAL symbol, dropping entry")
		} else {
			resolvedUncond = &UnconditionalHandler{
				BoundHandler: BoundHandler{PluginName: name, SymbolName: unconditional.SymbolName, SOPath: soPath, Fn: fn},
				Interval:     unconditional.Interval,
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.plugins[name] = &LoadedPlugin{Name: name, Manifest: manifest, SOPath: soPath}
	for kind, bound := range resolvedByKind {
		r.byKind[kind] = append(r.byKind[kind], bound)
	}
	if resolvedInit != nil {
		r.initializers = append(r.initializers, *resolvedInit)
	}
	if resolvedUncond != nil {
		r.unconditionals = append(r.unconditionals, *resolvedUncond)
	}

	logger.Plugins().Info().Str("plugin", name).Int("handlers", len(resolvedByKind)).Msg("plugin registered")
	return nil
}

// Lookup returns every handler bound to kind or to a kind it inherits from,
// deduplicated by handler identity and preserving first-seen order.
func (r *Registry) Lookup(kind eventkind.Kind) []BoundHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []BoundHandler
	seen := make(map[string]bool)
	for _, k := range eventkind.ExpandInherited(kind) {
		for _, h := range r.byKind[k] {
			if !seen[h.Identity()] {
				seen[h.Identity()] = true
				out = append(out, h)
			}
		}
	}
	return out
}

// Initializers returns every INITIALIZER handler, in registration order.
func (r *Registry) Initializers() []BoundHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]BoundHandler, len(r.initializers))
	copy(out, r.initializers)
	return out
}

// Unconditionals returns every UNCONDITIONAL handler whose interval divides
// minute.
func (r *Registry) Unconditionals(minute int) []BoundHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []BoundHandler
	for _, u := range r.unconditionals {
		if u.Interval > 0 && minute%u.Interval == 0 {
			out = append(out, u.BoundHandler)
		}
	}
	return out
}

// HasUnconditionals reports whether any UNCONDITIONAL handler is registered
// — the scheduler only needs to run when this is true.
func (r *Registry) HasUnconditionals() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.unconditionals) > 0
}

// Purge removes a plugin and every handler it contributed — used when an
// INITIALIZER fails and the plugin must be dropped from the live registry.
func (r *Registry) Purge(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.plugins, name)
	for kind, handlers := range r.byKind {
		kept := handlers[:0]
		for _, h := range handlers {
			if h.PluginName != name {
				kept = append(kept, h)
			}
		}
		r.byKind[kind] = kept
	}
	keptInit := r.initializers[:0]
	for _, h := range r.initializers {
		if h.PluginName != name {
			keptInit = append(keptInit, h)
		}
	}
	r.initializers = keptInit

	keptUncond := r.unconditionals[:0]
	for _, u := range r.unconditionals {
		if u.PluginName != name {
			keptUncond = append(keptUncond, u)
		}
	}
	r.unconditionals = keptUncond
}

// Plugins returns the names of every currently loaded plugin.
func (r *Registry) Plugins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	return names
}

// Built-in plugin registry: compiled-in plugins register themselves from an
// init() function, the same auto-registration pattern used for
// build-time-known plugins before DiscoverAll runs.
var (
	builtinMu      sync.RWMutex
	builtinPlugins = make(map[string]builtinPlugin)
)

type builtinPlugin struct {
	manifest Manifest
	handlers map[string]HandlerFunc
}

// RegisterBuiltin registers a compiled-in plugin under name.
func RegisterBuiltin(name string, manifest Manifest, handlers map[string]HandlerFunc) {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	if _, exists := builtinPlugins[name]; exists {
		logger.Plugins().Warn().Str("plugin", name).Msg("built-in plugin already registered, overwriting")
	}
	builtinPlugins[name] = builtinPlugin{manifest: manifest, handlers: handlers}
}

// builtinNames returns every registered built-in plugin name.
func builtinNames() []string {
	builtinMu.RLock()
	defer builtinMu.RUnlock()
	names := make([]string, 0, len(builtinPlugins))
	for name := range builtinPlugins {
		names = append(names, name)
	}
	return names
}

func getBuiltin(name string) (builtinPlugin, bool) {
	builtinMu.RLock()
	defer builtinMu.RUnlock()
	p, ok := builtinPlugins[name]
	return p, ok
}

// BuiltinHandler resolves a single handler symbol from a registered
// built-in plugin. The sandbox worker process uses this to re-resolve the
// handler it was told to invoke, without sharing any state with the host
// process that looked the handler up for dispatch.
func BuiltinHandler(pluginName, symbol string) (HandlerFunc, bool) {
	b, ok := getBuiltin(pluginName)
	if !ok {
		return nil, false
	}
	fn, ok := b.handlers[symbol]
	return fn, ok
}

// DynamicHandler resolves a single handler symbol from a plugin shared
// object on disk, mirroring how Discovery resolves manifest symbols.
func DynamicHandler(soPath, symbol string) (HandlerFunc, error) {
	p, err := plugin.Open(soPath)
	if err != nil {
		return nil, fmt.Errorf("plugins: open %s: %w", soPath, err)
	}
	sym, err := p.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("plugins: %s: lookup %s: %w", soPath, symbol, err)
	}
	fn, ok := sym.(func(*HandlerContext) (any, error))
	if !ok {
		return nil, fmt.Errorf("plugins: %s: symbol %s has wrong type %T", soPath, symbol, sym)
	}
	return HandlerFunc(fn), nil
}
