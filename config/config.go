// Package config implements the process-wide configuration store: a typed
// key/value space seeded from a main INI file plus an optional override
// file, with runtime overrides installed by API calls taking precedence over
// both.
//
// Lookup order for every getter is: runtime override -> override file ->
// main file -> built-in default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/ini.v1"

	"github.com/zifproj/zif"
)

// SchemaVersion is the only supported value of the main file's
// config_schema_version key.
const SchemaVersion = 1

// Built-in defaults, injected at startup before any file is loaded.
var builtinDefaults = map[string]string{
	"cachedir":           "/var/cache/zif",
	"reposdir":           "/etc/zif/repos.d",
	"pidfile":            "/var/run/zif",
	"metadata_expire":    "6h",
	"mirrorlist_expire":  "1d",
	"connection_timeout": "5s",
	"retries":            "3",
	"throttle":           "0",
	"network":            "true",
	"basearch":           "x86_64",
	"releasever":         "",
	"lock_compat":        "false",
}

// basearchSets maps a configured basearch to the set of architectures that
// are considered compatible with it ("the base architecture set").
var basearchSets = map[string][]string{
	"x86_64":  {"x86_64", "noarch"},
	"i386":    {"i386", "i486", "i586", "i686", "noarch"},
	"aarch64": {"aarch64", "noarch"},
	"ppc64le": {"ppc64le", "noarch"},
	"s390x":   {"s390x", "noarch"},
}

// Configuration is the process-wide key/value configuration store.
//
// A Configuration must not be copied after first use.
type Configuration struct {
	mu sync.RWMutex

	filename string
	override string

	main     *ini.File
	overlay  *ini.File
	loaded   bool
	runtime  map[string]string
}

// New returns a Configuration seeded only with built-in defaults. Call
// [Configuration.SetFilename] to load a main file.
func New() *Configuration {
	return &Configuration{runtime: make(map[string]string)}
}

// SetFilename loads "path" as the main config file ([main] section). If path
// is empty, any previously loaded file is dropped and only defaults/runtime
// overrides remain in effect.
func (c *Configuration) SetFilename(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filename = path
	c.main = nil
	c.loaded = false
	return c.loadLocked()
}

// SetOverrideFilename loads "path" as the override config file.
func (c *Configuration) SetOverrideFilename(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.override = path
	c.overlay = nil
	c.loaded = false
	return c.loadLocked()
}

// Reload marks the loaded config stale, so the next getter reparses the main
// and override files from disk. Intended to be called from a
// [monitor.Watcher] listener; runtime overrides are not cleared.
func (c *Configuration) Reload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
}

func (c *Configuration) loadLocked() error {
	if c.loaded {
		return nil
	}
	if c.filename != "" {
		f, err := ini.Load(c.filename)
		if err != nil {
			return &zif.Error{Op: "config.SetFilename", Kind: zif.ErrMalformed, Inner: err}
		}
		if !f.Section("main").HasKey("config_schema_version") {
			return &zif.Error{Op: "config.SetFilename", Kind: zif.ErrMalformed,
				Message: "config_schema_version missing from main file"}
		}
		v, err := f.Section("main").Key("config_schema_version").Int()
		if err != nil || v != SchemaVersion {
			return &zif.Error{Op: "config.SetFilename", Kind: zif.ErrMalformed,
				Message: fmt.Sprintf("unsupported config_schema_version: %q", f.Section("main").Key("config_schema_version").String())}
		}
		c.main = f
	}
	// An override file can be named explicitly, or by the main file's
	// override_config key; the key's value may contain $srcdir (or any
	// other substitution) and a named-but-absent file is not an error.
	override := c.override
	if override == "" && c.main != nil {
		if k, err := c.main.Section("main").GetKey("override_config"); err == nil {
			override = c.expandLocked(k.String())
			if _, err := os.Stat(override); err != nil {
				override = ""
			}
		}
	}
	if override != "" {
		f, err := ini.Load(override)
		if err != nil {
			return &zif.Error{Op: "config.SetOverrideFilename", Kind: zif.ErrMalformed, Inner: err}
		}
		c.overlay = f
	}
	c.loaded = true
	return nil
}

// lookupLocked walks the lookup tiers without locking or lazy reloading.
// Caller must hold c.mu.
func (c *Configuration) lookupLocked(key string) (string, bool) {
	if v, ok := c.runtime[key]; ok {
		return v, true
	}
	if c.overlay != nil {
		if k, err := c.overlay.Section("main").GetKey(key); err == nil {
			return k.String(), true
		}
	}
	if c.main != nil {
		if k, err := c.main.Section("main").GetKey(key); err == nil {
			return k.String(), true
		}
	}
	if v, ok := builtinDefaults[key]; ok {
		return v, true
	}
	return "", false
}

// expandLocked is ExpandSubstitutions for callers already holding c.mu.
func (c *Configuration) expandLocked(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}
	releasever, _ := c.lookupLocked("releasever")
	basearch, _ := c.lookupLocked("basearch")
	srcdir, _ := c.lookupLocked("srcdir")
	r := strings.NewReplacer(
		"$releasever", releasever,
		"$basearch", basearch,
		"$srcdir", srcdir,
	)
	return r.Replace(text)
}

// lookup walks the lookup tiers and reports the raw string value and whether
// it was found anywhere.
func (c *Configuration) lookup(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.loadLocked() // Best-effort lazy reparse; errors surface via explicit SetFilename calls.
	return c.lookupLocked(key)
}

// SetString installs a runtime-override value for key.
//
// Setting the same value twice is a no-op. Setting a different value while
// one is already present fails.
func (c *Configuration) SetString(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.runtime[key]; ok {
		if cur == value {
			return nil
		}
		return &zif.Error{Op: "config.SetString", Kind: zif.ErrInternal,
			Message: fmt.Sprintf("key %q already set to a different value", key)}
	}
	c.runtime[key] = value
	return nil
}

// SetBool is a convenience wrapper around [Configuration.SetString].
func (c *Configuration) SetBool(key string, value bool) error {
	return c.SetString(key, strconv.FormatBool(value))
}

// SetUint is a convenience wrapper around [Configuration.SetString].
func (c *Configuration) SetUint(key string, value uint64) error {
	return c.SetString(key, strconv.FormatUint(value, 10))
}

// Unset removes any runtime-override value for key.
func (c *Configuration) Unset(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.runtime, key)
}

// ResetDefaults clears all runtime overrides.
func (c *Configuration) ResetDefaults() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runtime = make(map[string]string)
}

// missing constructs the "no tier supplies this key" error.
func missing(key string) error {
	return &zif.Error{Op: "config.Get", Kind: zif.ErrFailedToFind, Message: fmt.Sprintf("key %q not set", key)}
}

// GetString returns the tiered value for key.
func (c *Configuration) GetString(key string) (string, error) {
	v, ok := c.lookup(key)
	if !ok {
		return "", missing(key)
	}
	return c.ExpandSubstitutions(v), nil
}

// GetBool interprets the tiered value for key as a boolean: "true", "yes",
// and "1" (case-insensitive) are true; everything else, including absence of
// the "true" spelling, is false. GetBool never fails due to an unparseable
// value -- only when the key is entirely missing.
func (c *Configuration) GetBool(key string) (bool, error) {
	v, err := c.GetString(key)
	if err != nil {
		return false, err
	}
	return BooleanFromText(v), nil
}

// BooleanFromText implements the config-file boolean coercion: "true", "yes", "1"
// (case-insensitive) are true; everything else is false.
func BooleanFromText(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true
	default:
		return false
	}
}

// GetUint parses the tiered value for key as an unsigned integer.
func (c *Configuration) GetUint(key string) (uint64, error) {
	v, err := c.GetString(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, &zif.Error{Op: "config.GetUint", Kind: zif.ErrMalformed, Inner: err}
	}
	return n, nil
}

// GetDuration parses the tiered value for key as a duration. Accepts bare
// integers (interpreted as seconds) and integers suffixed with s, m, h, or d.
func (c *Configuration) GetDuration(key string) (time.Duration, error) {
	v, err := c.GetString(key)
	if err != nil {
		return 0, err
	}
	d, err := ParseDuration(v)
	if err != nil {
		return 0, &zif.Error{Op: "config.GetDuration", Kind: zif.ErrMalformed, Inner: err}
	}
	return d, nil
}

// ParseDuration parses the config-file duration grammar: a bare integer (seconds)
// or an integer suffixed with s, m, h, or d.
func ParseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("config: empty duration")
	}
	unit := time.Second
	numeric := v
	switch v[len(v)-1] {
	case 's':
		unit, numeric = time.Second, v[:len(v)-1]
	case 'm':
		unit, numeric = time.Minute, v[:len(v)-1]
	case 'h':
		unit, numeric = time.Hour, v[:len(v)-1]
	case 'd':
		unit, numeric = 24*time.Hour, v[:len(v)-1]
	}
	n, err := strconv.ParseInt(numeric, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: malformed duration %q: %w", v, err)
	}
	return time.Duration(n) * unit, nil
}

// GetStrv parses the tiered value for key as a comma-separated vector of
// strings.
func (c *Configuration) GetStrv(key string) ([]string, error) {
	v, err := c.GetString(key)
	if err != nil {
		return nil, err
	}
	if v == "" {
		return nil, nil
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

// GetEnum parses the tiered value for key using a caller-supplied mapping
// from raw string to T.
func GetEnum[T any](c *Configuration, key string, mapping map[string]T) (T, error) {
	var zero T
	v, err := c.GetString(key)
	if err != nil {
		return zero, err
	}
	t, ok := mapping[v]
	if !ok {
		return zero, &zif.Error{Op: "config.GetEnum", Kind: zif.ErrMalformed,
			Message: fmt.Sprintf("value %q not a recognized enum member for key %q", v, key)}
	}
	return t, nil
}

// ExpandSubstitutions replaces $releasever, $basearch, and $srcdir in text
// with their current configured values. Substitution happens on demand, not
// at file-read time.
func (c *Configuration) ExpandSubstitutions(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.loadLocked()
	return c.expandLocked(text)
}

// BasearchArray reports the base architecture set for the configured
// basearch, e.g. {i386, i486, i586, i686, noarch} for basearch=i386.
func (c *Configuration) BasearchArray() []string {
	basearch, ok := c.lookup("basearch")
	if !ok {
		basearch = "x86_64"
	}
	if set, ok := basearchSets[basearch]; ok {
		out := make([]string, len(set))
		copy(out, set)
		return out
	}
	return []string{basearch, "noarch"}
}
