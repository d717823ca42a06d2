// Package config handles configuration loading and engine home resolution.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Config types
// ---------------------------------------------------------------------------

// StartupCommand names a command to run once the engine has initialised.
// An empty Name means every command registered by the app instance.
type StartupCommand struct {
	AppInstance string `yaml:"app_instance"`
	Name        string `yaml:"name"`
}

// EngineConfig holds settings for the in-host engine.
type EngineConfig struct {
	Name         string           `yaml:"name"`
	MenuName     string           `yaml:"menu_name"`
	RunAtStartup []StartupCommand `yaml:"run_at_startup"`
}

// SoftwareConfig controls how installed copies of the host are discovered.
type SoftwareConfig struct {
	ProductName    string              `yaml:"product_name"`
	MinimumVersion string              `yaml:"minimum_version"`
	Versions       []string            `yaml:"versions"`     // optional allow-list
	DefaultIcon    string              `yaml:"default_icon"` // bundled fallback icon
	IconName       string              `yaml:"icon_name"`
	Components     map[string]string   `yaml:"components"` // placeholder -> regex fragment
	Templates      map[string][]string `yaml:"templates"`  // GOOS -> executable templates
}

// LaunchConfig controls the environment prepared for a new host process.
type LaunchConfig struct {
	StartupDir string `yaml:"startup_dir"`
}

// Config is the root per-home configuration.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Software SoftwareConfig `yaml:"software"`
	Launch   LaunchConfig   `yaml:"launch"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Name:     "tk-krita",
			MenuName: "Shotgun",
		},
		Software: SoftwareConfig{
			ProductName:    "Krita",
			MinimumVersion: "4.0.0",
			IconName:       "krita.png",
			Components: map[string]string{
				"version": `[\d.]+`,
				"mach":    `x[\d_]+`,
			},
			Templates: map[string][]string{
				// darwin and windows installs have no version in their path.
				"linux":   {"$HOME/Applications/krita-{version}-{mach}.appimage"},
				"darwin":  {},
				"windows": {},
			},
		},
	}
}

// Load reads a per-home config.yaml from path.
// If the file does not exist it returns Default() with no error.
// Missing keys retain their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	// Unmarshal into a plain map so we can apply only the keys that are present.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if eng, ok := raw["engine"].(map[string]any); ok {
		if v, ok := eng["name"].(string); ok && v != "" {
			cfg.Engine.Name = v
		}
		if v, ok := eng["menu_name"].(string); ok && v != "" {
			cfg.Engine.MenuName = v
		}
		if v, ok := eng["run_at_startup"].([]any); ok {
			cmds, err := parseStartupCommands(v)
			if err != nil {
				return nil, fmt.Errorf("config: %w", err)
			}
			cfg.Engine.RunAtStartup = cmds
		}
	}

	if sw, ok := raw["software"].(map[string]any); ok {
		if v, ok := sw["product_name"].(string); ok && v != "" {
			cfg.Software.ProductName = v
		}
		if v, ok := sw["minimum_version"]; ok {
			cfg.Software.MinimumVersion = scalarString(v)
		}
		if v, ok := sw["versions"].([]any); ok {
			cfg.Software.Versions = stringList(v)
		}
		if v, ok := sw["default_icon"].(string); ok {
			cfg.Software.DefaultIcon = v
		}
		if v, ok := sw["icon_name"].(string); ok && v != "" {
			cfg.Software.IconName = v
		}
		if v, ok := sw["components"].(map[string]any); ok {
			for key, frag := range v {
				if s, ok := frag.(string); ok && s != "" {
					cfg.Software.Components[key] = s
				}
			}
		}
		if v, ok := sw["templates"].(map[string]any); ok {
			for goos, list := range v {
				items, _ := list.([]any)
				cfg.Software.Templates[goos] = stringList(items)
			}
		}
	}

	if l, ok := raw["launch"].(map[string]any); ok {
		if v, ok := l["startup_dir"].(string); ok {
			cfg.Launch.StartupDir = v
		}
	}

	return cfg, nil
}

func parseStartupCommands(items []any) ([]StartupCommand, error) {
	cmds := make([]StartupCommand, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("run_at_startup[%d]: expected a mapping", i)
		}
		app, _ := m["app_instance"].(string)
		if app == "" {
			return nil, fmt.Errorf("run_at_startup[%d]: app_instance is required", i)
		}
		name, _ := m["name"].(string)
		cmds = append(cmds, StartupCommand{AppInstance: app, Name: name})
	}
	return cmds, nil
}

// scalarString renders YAML scalars as strings; "4.0" decodes as a float.
func scalarString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func stringList(items []any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := scalarString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Home resolution
// ---------------------------------------------------------------------------

// HomeEnv names the environment variable that overrides the engine home.
const HomeEnv = "TK_KRITA_HOME"

// globalConfigPath returns the path to the global tk-krita config file.
// This file stores only home (and future global settings).
func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "tk-krita", "config.yaml"), nil
}

// NormalizePath expands ~ and environment variables and makes the path absolute.
func NormalizePath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return filepath.Abs(os.ExpandEnv(path))
}

// ResolveHome returns the engine home path and the source of the resolution.
// Priority: TK_KRITA_HOME env → persisted global config → ~/.tk-krita
// source is one of "env", "config", or "default".
func ResolveHome() (path, source string) {
	if env := os.Getenv(HomeEnv); env != "" {
		p, err := NormalizePath(env)
		if err == nil {
			return p, "env"
		}
	}

	if persisted, ok, _ := GetPersistedHome(); ok {
		return persisted, "config"
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tk-krita"), "default"
}

// GetHome returns the resolved engine home path.
func GetHome() string {
	path, _ := ResolveHome()
	return path
}

// GetPersistedHome reads home from the global config.
// Returns ("", false, nil) if not set.
func GetPersistedHome() (string, bool, error) {
	cfgPath, err := globalConfigPath()
	if err != nil {
		return "", false, err
	}

	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return "", false, nil
	}

	val, _ := raw["home"].(string)
	val = strings.TrimSpace(val)
	if val == "" {
		return "", false, nil
	}

	p, err := NormalizePath(val)
	if err != nil {
		return "", false, err
	}
	return p, true, nil
}

// SetPersistedHome normalizes path and persists it in the global config.
// Returns the normalized path.
func SetPersistedHome(path string) (string, error) {
	normalized, err := NormalizePath(path)
	if err != nil {
		return "", err
	}

	cfgPath, err := globalConfigPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return "", err
	}

	// Read existing global config, preserving any other keys.
	var raw map[string]any
	if data, err := os.ReadFile(cfgPath); err == nil {
		_ = yaml.Unmarshal(data, &raw)
	}
	if raw == nil {
		raw = make(map[string]any)
	}
	raw["home"] = normalized

	out, err := yaml.Marshal(raw)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(cfgPath, out, 0o600); err != nil {
		return "", err
	}
	return normalized, nil
}

// ClearPersistedHome removes home from the global config.
// Returns true if the key was present and removed.
// If the file becomes empty after removal it is deleted.
func ClearPersistedHome() (bool, error) {
	cfgPath, err := globalConfigPath()
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return false, nil
	}

	if _, ok := raw["home"]; !ok {
		return false, nil
	}
	delete(raw, "home")

	if len(raw) == 0 {
		_ = os.Remove(cfgPath)
		return true, nil
	}

	out, err := yaml.Marshal(raw)
	if err != nil {
		return false, err
	}
	return true, os.WriteFile(cfgPath, out, 0o600)
}

// ---------------------------------------------------------------------------
// Derived paths
// ---------------------------------------------------------------------------

// ConfigPath returns the per-home config.yaml path.
func ConfigPath(home string) string { return filepath.Join(home, "config.yaml") }

// RegistryPath returns the per-home project registry database path.
func RegistryPath(home string) string { return filepath.Join(home, "registry.db") }

// StartupDir returns the directory holding the host-side startup extension.
func (c *Config) StartupDir(home string) string {
	if c.Launch.StartupDir != "" {
		return c.Launch.StartupDir
	}
	return filepath.Join(home, "startup")
}

// DefaultIcon returns the bundled icon used when no platform icon is found.
func (c *Config) DefaultIcon(home string) string {
	if c.Software.DefaultIcon != "" {
		return c.Software.DefaultIcon
	}
	return filepath.Join(home, "icon_256.png")
}
