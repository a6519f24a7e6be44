package plugins

import (
	"fmt"
	"path/filepath"
	"plugin"
	"strings"

	"github.com/askr-bot/askr/internal/logger"
)

// Discovery scans configured directories for dynamically loaded plugins
// (Go shared objects built with -buildmode=plugin) and combines them with
// every build-time registered built-in plugin.
//
// Dynamic plugins are version-locked to the host binary's Go toolchain and
// cannot be unloaded once opened — both are native limitations of the
// `plugin` package, inherited rather than worked around, since no
// alternative dynamic-loading mechanism is available in the standard
// library or anywhere in the example corpus.
type Discovery struct {
	dirs []string
}

// NewDiscovery returns a Discovery scanning dirs, in order, for ".so" files.
func NewDiscovery(dirs ...string) *Discovery {
	if len(dirs) == 0 {
		dirs = []string{"./plugins"}
	}
	return &Discovery{dirs: dirs}
}

// DiscoverAll loads every built-in plugin, then every dynamic plugin found
// under the configured directories, into reg. It returns one error per
// plugin that failed to validate or load rather than aborting on the first
// failure — a broken plugin must not take the rest of the fleet down.
func (d *Discovery) DiscoverAll(reg *Registry) []error {
	var errs []error

	for _, name := range builtinNames() {
		if err := d.loadBuiltinPlugin(reg, name); err != nil {
			errs = append(errs, err)
		}
	}

	paths, err := d.findSharedObjects()
	if err != nil {
		errs = append(errs, fmt.Errorf("discovery: scan plugin dirs: %w", err))
	}
	for _, path := range paths {
		if err := d.loadDynamicPlugin(reg, path); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

func (d *Discovery) loadBuiltinPlugin(reg *Registry, name string) error {
	b, ok := getBuiltin(name)
	if !ok {
		return fmt.Errorf("discovery: built-in plugin %s vanished between listing and load", name)
	}
	resolve := func(symbol string) (HandlerFunc, bool) {
		fn, ok := b.handlers[symbol]
		return fn, ok
	}
	return reg.Register(name, b.manifest, resolve)
}

func (d *Discovery) findSharedObjects() ([]string, error) {
	var out []string
	for _, dir := range d.dirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*.so"))
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)

		nested, err := filepath.Glob(filepath.Join(dir, "*", "*.so"))
		if err != nil {
			return nil, err
		}
		out = append(out, nested...)
	}
	return out, nil
}

func (d *Discovery) loadDynamicPlugin(reg *Registry, path string) error {
	name := pluginNameFromPath(path)

	p, err := plugin.Open(path)
	if err != nil {
		return fmt.Errorf("discovery: open %s: %w", path, err)
	}

	manifestSym, err := p.Lookup("Manifest")
	if err != nil {
		return fmt.Errorf("discovery: %s: no exported Manifest: %w", path, err)
	}
	manifest, ok := manifestSym.(*Manifest)
	if !ok {
		return fmt.Errorf("discovery: %s: Manifest has wrong type %T", path, manifestSym)
	}

	resolve := func(symbol string) (HandlerFunc, bool) {
		sym, err := p.Lookup(symbol)
		if err != nil {
			return nil, false
		}
		fn, ok := sym.(func(*HandlerContext) (any, error))
		if !ok {
			return nil, false
		}
		return HandlerFunc(fn), true
	}

	if err := reg.RegisterWithSource(name, path, *manifest, resolve); err != nil {
		return err
	}
	logger.Plugins().Info().Str("plugin", name).Str("path", path).Msg("dynamic plugin loaded")
	return nil
}

func pluginNameFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".so")
	base = strings.TrimPrefix(base, "askr-")
	return base
}
