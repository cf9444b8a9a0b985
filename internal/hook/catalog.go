package hook

import (
	"log/slog"
	"strings"

	"github.com/roach88/gitgate/internal/hookrun"
)

// Plugin is one compiled-in policy module. Loading a plugin means calling
// Register, which hooks its checks into the registry as a side effect.
type Plugin struct {
	// Name is the plugin's identity, e.g. "checklog" or a fully-qualified
	// form like "example.com/hooks/checklog".
	Name string

	Register func(*Registry)
}

// Catalog maps configured plugin names to compiled-in implementations.
// There is no runtime code loading: discovery resolves names against this
// static table.
type Catalog struct {
	plugins map[string]Plugin
}

// NewCatalog builds a catalog. Duplicate names are a programming error and
// are rejected.
func NewCatalog(plugins ...Plugin) (*Catalog, error) {
	c := &Catalog{plugins: make(map[string]Plugin, len(plugins))}
	for _, p := range plugins {
		if _, dup := c.plugins[p.Name]; dup {
			return nil, hookrun.NewConfigError("", "plugin %q registered twice", p.Name)
		}
		c.plugins[p.Name] = p
	}
	return c, nil
}

// Lookup resolves a configured name: an exact match first (this is how a
// fully-qualified identity bypasses short-name resolution), then a
// case-insensitive short-name match.
func (c *Catalog) Lookup(name string) (Plugin, bool) {
	if p, ok := c.plugins[name]; ok {
		return p, true
	}
	for key, p := range c.plugins {
		if strings.EqualFold(shortName(key), shortName(name)) {
			return p, true
		}
	}
	return Plugin{}, false
}

// shortName strips any qualifying path or dotted prefix.
func shortName(name string) string {
	if i := strings.LastIndexAny(name, "/."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// falsy mirrors the configuration boolean's false spellings.
func falsy(v string) bool {
	switch strings.ToLower(v) {
	case "0", "no", "off", "false", "":
		return true
	}
	return false
}

// LoadPlugins loads every check enabled by gitgate.plugin. An environment
// variable named after a check's short name overrides its configuration:
// a falsy value skips the check even though the option lists it as
// enabled, a truthy value keeps it. Unknown names are configuration
// errors.
func LoadPlugins(ctx *hookrun.Context, catalog *Catalog, r *Registry) error {
	for _, value := range ctx.ConfigAll("gitgate", "plugin") {
		for _, name := range strings.Fields(value) {
			if v, set := ctx.Getenv(shortName(name)); set && falsy(v) {
				slog.Debug("plugin disabled by environment",
					"run", ctx.RunID, "plugin", name)
				continue
			}
			p, ok := catalog.Lookup(name)
			if !ok {
				return hookrun.NewConfigError("gitgate.plugin", "unknown plugin %q", name)
			}
			p.Register(r)
			slog.Debug("plugin loaded", "run", ctx.RunID, "plugin", p.Name)
		}
	}
	return nil
}
