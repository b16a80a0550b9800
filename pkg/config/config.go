// Package config handles loading and saving nv configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/nv/config.yaml
//   - Data:    ~/.local/share/nv/ (custom sibling order database)
//   - State:   ~/.local/state/nv/ (expansion state cache)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const appName = "nv"

// Bookmark is a named directory that can be opened by name.
type Bookmark struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// ExplorerConfig tunes the sync core.
type ExplorerConfig struct {
	EvictionDelay    time.Duration `yaml:"eviction_delay,omitempty"`     // Keep collapsed subtrees this long (-1s: never evict)
	HoverExpandDelay time.Duration `yaml:"hover_expand_delay,omitempty"` // Drag hover before a folder opens
	SelectionMode    string        `yaml:"selection_mode,omitempty"`     // single, contiguous, discontiguous
	QueueSize        int           `yaml:"queue_size,omitempty"`         // Initial UI task queue capacity
}

// WatchConfig controls directory watching.
type WatchConfig struct {
	Debounce     time.Duration `yaml:"debounce,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	ForcePoll    bool          `yaml:"force_poll,omitempty"`
	Disabled     bool          `yaml:"disabled,omitempty"`
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	DefaultView      string  `yaml:"default_view,omitempty"` // tree, list, table, split
	SplitRatio       float64 `yaml:"split_ratio,omitempty"`  // Tree pane share in split view (0.2-0.8)
	ShowDescriptions bool    `yaml:"show_descriptions,omitempty"`
	ShowHidden       bool    `yaml:"show_hidden,omitempty"`
}

// Config is the top-level configuration for nv.
type Config struct {
	Bookmarks []Bookmark     `yaml:"bookmarks,omitempty"`
	Explorer  ExplorerConfig `yaml:"explorer,omitempty"`
	Watch     WatchConfig    `yaml:"watch,omitempty"`
	UI        UIConfig       `yaml:"ui,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Explorer: ExplorerConfig{
			EvictionDelay:    15 * time.Second,
			HoverExpandDelay: 700 * time.Millisecond,
			SelectionMode:    "discontiguous",
			QueueSize:        256,
		},
		Watch: WatchConfig{
			Debounce:     200 * time.Millisecond,
			PollInterval: 2 * time.Second,
		},
		UI: UIConfig{
			DefaultView:      "split",
			SplitRatio:       0.4,
			ShowDescriptions: true,
		},
	}
}

// ConfigDir returns the XDG config directory for nv.
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DataDir returns the XDG data directory for nv.
func DataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// StateDir returns the XDG state directory for nv.
func StateDir() string {
	return xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, fallback, appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// OrderDBPath returns the path of the custom sibling order database.
func OrderDBPath() string {
	dir := DataDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "order.db")
}

// ExpansionStatePath returns the path of the persisted expansion state.
func ExpansionStatePath() string {
	dir := StateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "expanded.json")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path, then applies environment
// overrides. Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	for i := range cfg.Bookmarks {
		cfg.Bookmarks[i].Path = expandHome(cfg.Bookmarks[i].Path)
	}
	cfg.normalize()
	cfg.applyEnv()

	return cfg, nil
}

// normalize replaces out-of-range values with defaults.
func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Explorer.HoverExpandDelay < 0 {
		c.Explorer.HoverExpandDelay = 0
	}
	if c.Explorer.QueueSize <= 0 {
		c.Explorer.QueueSize = def.Explorer.QueueSize
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = def.Watch.Debounce
	}
	if c.Watch.PollInterval <= 0 {
		c.Watch.PollInterval = def.Watch.PollInterval
	}
	if c.UI.SplitRatio < 0.2 || c.UI.SplitRatio > 0.8 {
		c.UI.SplitRatio = def.UI.SplitRatio
	}
	switch c.UI.DefaultView {
	case "tree", "list", "table", "split":
	default:
		c.UI.DefaultView = def.UI.DefaultView
	}
}

// applyEnv applies NV_* environment overrides.
func (c *Config) applyEnv() {
	if ms, ok := envInt("NV_EVICTION_DELAY_MS"); ok {
		c.Explorer.EvictionDelay = time.Duration(ms) * time.Millisecond
	}
	if ms, ok := envInt("NV_DEBOUNCE_MS"); ok && ms > 0 {
		c.Watch.Debounce = time.Duration(ms) * time.Millisecond
	}
	if envBool("NV_FORCE_POLL") {
		c.Watch.ForcePoll = true
	}
	if mode := strings.TrimSpace(os.Getenv("NV_SELECTION_MODE")); mode != "" {
		c.Explorer.SelectionMode = mode
	}
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// FindBookmark returns the bookmark with the given name, or nil.
func (c Config) FindBookmark(name string) *Bookmark {
	for i := range c.Bookmarks {
		if strings.EqualFold(c.Bookmarks[i].Name, name) {
			return &c.Bookmarks[i]
		}
	}
	return nil
}

// SetBookmark adds or replaces a bookmark. An empty path removes it.
func (c *Config) SetBookmark(name, path string) {
	for i := range c.Bookmarks {
		if strings.EqualFold(c.Bookmarks[i].Name, name) {
			if path == "" {
				c.Bookmarks = append(c.Bookmarks[:i], c.Bookmarks[i+1:]...)
			} else {
				c.Bookmarks[i].Path = path
			}
			return
		}
	}
	if path != "" {
		c.Bookmarks = append(c.Bookmarks, Bookmark{Name: name, Path: path})
	}
}

// ResolvedPath returns the bookmark path with ~ expanded.
func (b Bookmark) ResolvedPath() string {
	return expandHome(b.Path)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func envInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(name string) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
