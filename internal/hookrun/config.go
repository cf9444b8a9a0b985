package hookrun

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// Configuration is read once per run with "git config --list -z" and parsed
// into a two-level section -> key -> ordered values mapping. In the -z
// format each NUL-terminated record is "section.key\nvalue"; a record with
// no newline is a valueless option, which git defines as boolean true.
//
// A key may carry multiple values (outer scopes first, more specific scopes
// later); the last value wins for single-valued reads.

// configDefaults are applied only when the option is absent.
var configDefaults = map[[2]string]string{
	{"gitgate", "externals"}:    "true",
	{"gitgate", "abort-commit"}: "true",
}

func (c *Context) loadConfig() error {
	if c.config != nil || c.configErr != nil {
		return c.configErr
	}
	out, err := c.Git.Output("config", "--list", "-z")
	if err != nil {
		// Sticky: a repository whose configuration cannot be listed must not
		// degrade into "no configuration" on later reads.
		c.configErr = fmt.Errorf("listing configuration: %w", err)
		return c.configErr
	}
	cfg := make(map[string]map[string][]string)
	add := func(key, value string) {
		dot := strings.LastIndex(key, ".")
		if dot <= 0 || dot == len(key)-1 {
			return
		}
		section, name := key[:dot], key[dot+1:]
		if cfg[section] == nil {
			cfg[section] = make(map[string][]string)
		}
		cfg[section][name] = append(cfg[section][name], value)
	}
	for _, record := range strings.Split(out, "\x00") {
		if record == "" {
			continue
		}
		if nl := strings.IndexByte(record, '\n'); nl >= 0 {
			add(record[:nl], record[nl+1:])
		} else {
			// Valueless option: boolean true.
			add(record, "true")
		}
	}
	for def, value := range configDefaults {
		if cfg[def[0]] == nil {
			cfg[def[0]] = make(map[string][]string)
		}
		if len(cfg[def[0]][def[1]]) == 0 {
			cfg[def[0]][def[1]] = []string{value}
		}
	}
	c.config = cfg
	slog.Debug("configuration loaded", "run", c.RunID, "sections", len(cfg))
	return nil
}

// LoadConfig forces the configuration read. Dispatch calls this before the
// first check runs so that a broken repository fails the run immediately
// instead of surfacing as empty reads later.
func (c *Context) LoadConfig() error { return c.loadConfig() }

// ConfigAll returns every value of section.key in declaration order, outer
// scopes first. The configuration is read and memoized on first use. A load
// failure yields an empty list here; callers that must distinguish a broken
// repository from an unconfigured one call LoadConfig first and propagate
// its error, and the typed reads do so themselves.
func (c *Context) ConfigAll(section, key string) []string {
	if err := c.loadConfig(); err != nil {
		slog.Error("config read failed", "run", c.RunID, "error", err)
		return nil
	}
	if sec, ok := c.config[section]; ok {
		return sec[key]
	}
	return nil
}

// ConfigValue returns the effective (last) value of section.key.
func (c *Context) ConfigValue(section, key string) (string, bool) {
	values := c.ConfigAll(section, key)
	if len(values) == 0 {
		return "", false
	}
	return values[len(values)-1], true
}

// ConfigBool reads section.key as a boolean. yes/on/true/1 are true;
// no/off/false/0 and the empty string are false; anything else is a
// configuration error. def is returned when the option is absent.
func (c *Context) ConfigBool(section, key string, def bool) (bool, error) {
	if err := c.loadConfig(); err != nil {
		return def, err
	}
	v, ok := c.ConfigValue(section, key)
	if !ok {
		return def, nil
	}
	switch strings.ToLower(v) {
	case "yes", "on", "true", "1":
		return true, nil
	case "no", "off", "false", "0", "":
		return false, nil
	}
	return false, NewConfigError(section+"."+key, "invalid boolean value %q", v)
}

var scaledIntRE = regexp.MustCompile(`^([+-]?[0-9]+)([kKmMgG])?$`)

// ConfigInt reads section.key as an integer with an optional k/m/g scale
// suffix (1024, 1024², 1024³). The second result reports presence.
func (c *Context) ConfigInt(section, key string) (int64, bool, error) {
	if err := c.loadConfig(); err != nil {
		return 0, false, err
	}
	v, ok := c.ConfigValue(section, key)
	if !ok {
		return 0, false, nil
	}
	m := scaledIntRE.FindStringSubmatch(v)
	if m == nil {
		return 0, false, NewConfigError(section+"."+key, "invalid integer value %q", v)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false, NewConfigError(section+"."+key, "invalid integer value %q", v)
	}
	switch strings.ToLower(m[2]) {
	case "k":
		n *= 1 << 10
	case "m":
		n *= 1 << 20
	case "g":
		n *= 1 << 30
	}
	return n, true, nil
}
