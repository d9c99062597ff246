// Package config loads the lazyops TOML configuration: the list of
// Azure DevOps projects the dashboard can point at, plus tunable
// settings and theme colors.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ProjectConfig identifies one Azure DevOps board.
type ProjectConfig struct {
	Name         string `toml:"name"`
	Organization string `toml:"organization"`
	Project      string `toml:"project"`
	Team         string `toml:"team"`
	Repository   string `toml:"repository"`
}

// Settings holds tunable behavior.
type Settings struct {
	// RefreshInterval is the auto-refresh period in seconds, 0 disables.
	RefreshInterval int `toml:"refresh_interval"`
	// PageJump is the row count for half-page navigation.
	PageJump int `toml:"page_jump"`
	// APITimeout is the az invocation timeout in seconds.
	APITimeout int `toml:"api_timeout"`
	// APIDelayMS is the pause between background relation fetches.
	APIDelayMS int `toml:"api_delay_ms"`
	// CacheExpiry is the cache staleness threshold in seconds.
	CacheExpiry int `toml:"cache_expiry"`
	// States overrides the built-in work-item state list.
	States []string `toml:"states"`
}

// Theme holds hex color overrides for the UI.
type Theme struct {
	Border      string `toml:"border"`
	BorderFocus string `toml:"border_active"`
	SelectedBg  string `toml:"selected_bg"`
	Text        string `toml:"text"`
	TextMuted   string `toml:"text_muted"`
	Highlight   string `toml:"highlight"`
}

// Config is the top-level configuration file.
type Config struct {
	Projects       []ProjectConfig `toml:"projects"`
	DefaultProject string          `toml:"default_project"`
	Settings       Settings        `toml:"settings"`
	Theme          Theme           `toml:"theme"`
}

// defaultStates is the board's state list when the config does not
// override it. "All" is the filter wildcard.
var defaultStates = []string{
	"All", "New", "In Progress", "Done In Stage",
	"Done Not Released", "Done", "Tested w/Bugs", "Removed",
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Settings: Settings{
			RefreshInterval: 300,
			PageJump:        10,
			APITimeout:      30,
			APIDelayMS:      100,
			CacheExpiry:     3600,
		},
		Theme: Theme{
			Border:      "#5c6370",
			BorderFocus: "#61afef",
			SelectedBg:  "#2c323c",
			Text:        "#abb2bf",
			TextMuted:   "#5c6370",
			Highlight:   "#61afef",
		},
	}
}

// StateList returns the configured work-item states, or the defaults
// when none are set.
func (s Settings) StateList() []string {
	if len(s.States) > 0 {
		return s.States
	}
	return defaultStates
}

// Project looks up a project by name.
func (c *Config) Project(name string) (ProjectConfig, bool) {
	for _, p := range c.Projects {
		if p.Name == name {
			return p, true
		}
	}
	return ProjectConfig{}, false
}

// Paths returns the candidate config file locations in lookup order.
func Paths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "lazyops", "config.toml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".lazyops.toml"))
	}
	return paths
}

// Load reads the first config file found among Paths. A missing file
// is not an error; the defaults are returned along with an empty path.
func Load() (*Config, string, error) {
	for _, path := range Paths() {
		cfg, err := LoadFrom(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, path, err
		}
		return cfg, path, nil
	}
	return Default(), "", nil
}

// LoadFrom reads and parses one config file. Defaults fill any field
// the file leaves unset.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
