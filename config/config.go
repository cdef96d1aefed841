package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ResolverConfig configures the layered resolver.
type ResolverConfig struct {
	// EnvPrefix is prepended to upper-cased keys for environment lookup:
	// "jira_url" is read from STORYFLOW_JIRA_URL.
	EnvPrefix string

	// EnvAliases maps a key to an unprefixed variable that is consulted
	// when the prefixed one is unset, e.g. "jira_token" -> "JIRA_API_TOKEN".
	EnvAliases map[string]string

	// GlobalConfigDir is the directory under ~/.config/.
	GlobalConfigDir string

	// LocalConfigName is the local file looked up in the current directory
	// and its parents up to the git root.
	LocalConfigName string

	// ConfigFile, when set, replaces the global file (the --config flag).
	ConfigFile string

	Defaults map[string]string

	// ValidKeys restricts which file keys are honored. Nil allows all.
	ValidKeys []string

	ErrWriter io.Writer
}

// Resolver merges configuration layers.
type Resolver struct {
	config     ResolverConfig
	globalPath string
	localPath  string

	// Warnings collects non-fatal issues during resolution.
	Warnings []string
}

// NewResolver creates a resolver rooted at the working directory.
func NewResolver(cfg ResolverConfig) *Resolver {
	r := &Resolver{config: cfg}
	if r.config.ErrWriter == nil {
		r.config.ErrWriter = os.Stderr
	}

	switch {
	case cfg.ConfigFile != "":
		r.globalPath = cfg.ConfigFile
	case cfg.GlobalConfigDir != "":
		if home, err := os.UserHomeDir(); err == nil {
			r.globalPath = filepath.Join(home, ".config", cfg.GlobalConfigDir, "config.yaml")
		}
	}

	if cfg.LocalConfigName != "" {
		r.localPath = findLocalConfig(".", cfg.LocalConfigName)
	}
	return r
}

// NewResolverWithPaths creates a resolver with explicit file paths.
func NewResolverWithPaths(cfg ResolverConfig, globalPath, localPath string) *Resolver {
	r := &Resolver{config: cfg, globalPath: globalPath, localPath: localPath}
	if r.config.ErrWriter == nil {
		r.config.ErrWriter = os.Stderr
	}
	return r
}

func (r *Resolver) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
	if r.config.ErrWriter != nil {
		fmt.Fprintf(r.config.ErrWriter, "Warning: %s\n", msg)
	}
}

// Resolved holds the merged key/value view and where each value came from.
type Resolved struct {
	values  map[string]string
	sources map[string]Source
}

// Get returns the value for a key, or empty string if not set.
func (c *Resolved) Get(key string) string {
	return c.values[key]
}

// Source returns the source of a key's value.
func (c *Resolved) Source(key string) Source {
	return c.sources[key]
}

// Set overrides a key, recording source.
func (c *Resolved) Set(key, value string, source Source) {
	c.values[key] = value
	c.sources[key] = source
}

// All returns a copy of all key-value pairs.
func (c *Resolved) All() map[string]string {
	result := make(map[string]string, len(c.values))
	for k, v := range c.values {
		result[k] = v
	}
	return result
}

// Resolve merges defaults, the global file, the local file and the
// environment, in increasing priority.
func (r *Resolver) Resolve() *Resolved {
	cfg := &Resolved{
		values:  make(map[string]string),
		sources: make(map[string]Source),
	}

	for key, value := range r.config.Defaults {
		cfg.Set(key, value, SourceDefault)
	}
	r.applyFile(cfg, r.globalPath, SourceGlobal)
	r.applyFile(cfg, r.localPath, SourceLocal)
	r.applyEnv(cfg)
	return cfg
}

// ResolveWithFlags resolves and then applies non-empty flag values.
func (r *Resolver) ResolveWithFlags(flags map[string]string) *Resolved {
	cfg := r.Resolve()
	for key, value := range flags {
		if value != "" {
			cfg.Set(key, value, SourceFlag)
		}
	}
	return cfg
}

func (r *Resolver) applyFile(cfg *Resolved, path string, source Source) {
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if source == SourceGlobal && r.config.ConfigFile != "" {
			r.warn(fmt.Sprintf("could not read %s: %v", path, err))
		}
		return
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		r.warn(fmt.Sprintf("could not parse %s: %v", path, err))
		return
	}

	for key, value := range parsed {
		if len(r.config.ValidKeys) > 0 && !contains(r.config.ValidKeys, key) {
			r.warn(fmt.Sprintf("%s: unknown key %q", path, key))
			continue
		}
		if s := toString(value); s != "" {
			cfg.Set(key, s, source)
		}
	}
}

func (r *Resolver) applyEnv(cfg *Resolved) {
	keys := make(map[string]bool)
	for k := range r.config.Defaults {
		keys[k] = true
	}
	for k := range cfg.values {
		keys[k] = true
	}
	for k := range r.config.EnvAliases {
		keys[k] = true
	}
	for _, k := range r.config.ValidKeys {
		keys[k] = true
	}

	for key := range keys {
		if r.config.EnvPrefix != "" {
			envKey := r.config.EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
			if value := os.Getenv(envKey); value != "" {
				cfg.Set(key, value, SourceEnv)
				continue
			}
		}
		if alias, ok := r.config.EnvAliases[key]; ok {
			if value := os.Getenv(alias); value != "" {
				cfg.Set(key, value, SourceEnv)
			}
		}
	}
}

// GlobalPath returns the path to the global config file.
func (r *Resolver) GlobalPath() string {
	return r.globalPath
}

// LocalPath returns the path to the local config file, if one was found.
func (r *Resolver) LocalPath() string {
	return r.localPath
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int, int64, float64:
		return fmt.Sprintf("%v", val)
	default:
		return ""
	}
}

// findLocalConfig walks up from startDir looking for name, stopping at the
// first directory containing .git.
func findLocalConfig(startDir, name string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return ""
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
