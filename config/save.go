package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// SaveConfig writes keys to config files, backing `storyflow config set`.
type SaveConfig struct {
	// GlobalConfigDir is the directory under ~/.config/.
	GlobalConfigDir string

	// ConfigFile, when set, is written instead of the global file.
	ConfigFile string

	// LocalConfigName is the local file name, e.g. ".storyflow.yaml".
	LocalConfigName string

	ValidKeys []string
}

// NewSaveConfig mirrors a resolver configuration.
func NewSaveConfig(rc ResolverConfig) SaveConfig {
	return SaveConfig{
		GlobalConfigDir: rc.GlobalConfigDir,
		ConfigFile:      rc.ConfigFile,
		LocalConfigName: rc.LocalConfigName,
		ValidKeys:       rc.ValidKeys,
	}
}

// GlobalPath returns the file SaveGlobal writes to.
func (c SaveConfig) GlobalPath() (string, error) {
	if c.ConfigFile != "" {
		return c.ConfigFile, nil
	}
	if c.GlobalConfigDir == "" {
		return "", fmt.Errorf("global config directory not configured")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", c.GlobalConfigDir, "config.yaml"), nil
}

// SaveGlobal sets key in the global config file. The file may hold
// credentials, so it is private to the user.
func (c SaveConfig) SaveGlobal(key, value string) error {
	if err := c.checkKey(key); err != nil {
		return err
	}
	path, err := c.GlobalPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return writeKey(path, 0o600, func(m map[string]any) { m[key] = parseValue(value) })
}

// SaveLocal sets key in the local config file inside dir.
func (c SaveConfig) SaveLocal(dir, key, value string) error {
	if dir == "" {
		return fmt.Errorf("directory is required")
	}
	if c.LocalConfigName == "" {
		return fmt.Errorf("local config name not configured")
	}
	if err := c.checkKey(key); err != nil {
		return err
	}
	path := filepath.Join(dir, c.LocalConfigName)
	return writeKey(path, 0o644, func(m map[string]any) { m[key] = parseValue(value) })
}

// DeleteGlobalKey removes key from the global config. A missing file is
// not an error.
func (c SaveConfig) DeleteGlobalKey(key string) error {
	path, err := c.GlobalPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return writeKey(path, 0o600, func(m map[string]any) { delete(m, key) })
}

func (c SaveConfig) checkKey(key string) error {
	if len(c.ValidKeys) > 0 && !contains(c.ValidKeys, key) {
		return fmt.Errorf("unknown config key: %s\n\nValid keys: %s",
			key, strings.Join(c.ValidKeys, ", "))
	}
	return nil
}

// writeKey loads path, applies edit and writes it back. Malformed files
// are replaced.
func writeKey(path string, perm os.FileMode, edit func(map[string]any)) error {
	var existing map[string]any
	if data, err := os.ReadFile(path); err == nil {
		_ = yaml.Unmarshal(data, &existing)
	}
	if existing == nil {
		existing = make(map[string]any)
	}

	edit(existing)

	data, err := yaml.Marshal(existing)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, perm)
}

// parseValue stores booleans and integers unquoted.
func parseValue(value string) any {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(value); err == nil && strconv.Itoa(n) == value {
		return n
	}
	return value
}
