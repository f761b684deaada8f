// Package config holds all chatharvest configuration: browser launch
// settings, the completion-detection timing knobs, output/state paths, and
// the per-site locator profiles. Everything is constructed once at startup
// and passed by reference into the components; there are no mutable globals.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	// Site selects the active site profile (deepseek, kimi, doubao, ...).
	Site string `yaml:"site"`

	Browser BrowserConfig `yaml:"browser"`
	Timing  TimingConfig  `yaml:"timing"`
	Paths   PathsConfig   `yaml:"paths"`
	Logging LoggingConfig `yaml:"logging"`

	// Sites maps profile name -> locator profile. Profiles for the
	// built-in sites are merged in; a config file can override or extend.
	Sites map[string]SiteProfile `yaml:"sites"`
}

// BrowserConfig configures the automated browser.
type BrowserConfig struct {
	// Bin is the browser binary; empty lets the launcher auto-detect.
	Bin      string   `yaml:"bin"`
	Headless bool     `yaml:"headless"`
	Launch   []string `yaml:"launch"` // extra launch flags, e.g. --lang=zh-CN

	ViewportWidth       int `yaml:"viewport_width"`
	ViewportHeight      int `yaml:"viewport_height"`
	NavigationTimeoutMs int `yaml:"navigation_timeout_ms"`
}

// NavigationTimeout returns the navigation timeout.
func (c BrowserConfig) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// TimingConfig holds the completion-detector and pacing knobs. The UI offers
// only weak completion signals, so these are heuristics, not contracts.
type TimingConfig struct {
	PollTickMs       int `yaml:"poll_tick_ms"`        // response sampling interval
	StableTicks      int `yaml:"stable_ticks"`        // consecutive no-change ticks to complete
	IdleTimeoutSec   int `yaml:"idle_timeout_sec"`    // force-complete after no text change
	StartGraceSec    int `yaml:"start_grace_sec"`     // max wait for generation to begin
	SoftStopSec      int `yaml:"soft_stop_sec"`       // attempt forced stop after this
	OverallSec       int `yaml:"overall_sec"`         // per-prompt ceiling
	LoginWaitSec     int `yaml:"login_wait_sec"`      // manual login bound
	LoginPollSec     int `yaml:"login_poll_sec"`      // chat-ready poll interval
	HumanDelayMinMs  int `yaml:"human_delay_min_ms"`  // pacing between UI actions
	HumanDelayMaxMs  int `yaml:"human_delay_max_ms"`
}

func (t TimingConfig) PollTick() time.Duration      { return time.Duration(t.PollTickMs) * time.Millisecond }
func (t TimingConfig) IdleTimeout() time.Duration   { return time.Duration(t.IdleTimeoutSec) * time.Second }
func (t TimingConfig) StartGrace() time.Duration    { return time.Duration(t.StartGraceSec) * time.Second }
func (t TimingConfig) SoftStop() time.Duration      { return time.Duration(t.SoftStopSec) * time.Second }
func (t TimingConfig) Overall() time.Duration       { return time.Duration(t.OverallSec) * time.Second }
func (t TimingConfig) LoginWait() time.Duration     { return time.Duration(t.LoginWaitSec) * time.Second }
func (t TimingConfig) LoginPoll() time.Duration     { return time.Duration(t.LoginPollSec) * time.Second }
func (t TimingConfig) HumanDelayMin() time.Duration { return time.Duration(t.HumanDelayMinMs) * time.Millisecond }
func (t TimingConfig) HumanDelayMax() time.Duration { return time.Duration(t.HumanDelayMaxMs) * time.Millisecond }

// PathsConfig locates inputs, outputs, and per-worker state on disk.
type PathsConfig struct {
	InputDir   string `yaml:"input_dir"`   // *_input_prompts.txt location
	OutputDir  string `yaml:"output_dir"`  // ledgers + transcripts + logs
	StateDir   string `yaml:"state_dir"`   // cookie/storage blobs per site
	ProfileDir string `yaml:"profile_dir"` // browser user-data dir (one per worker)
}

// LoggingConfig configures the category logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration with built-in site
// profiles applied.
func DefaultConfig() *Config {
	cfg := &Config{
		Site: "deepseek",
		Browser: BrowserConfig{
			Headless:            false, // manual login needs a visible window
			ViewportWidth:       1920,
			ViewportHeight:      1080,
			NavigationTimeoutMs: 30000,
		},
		Timing: TimingConfig{
			PollTickMs:      400,
			StableTicks:     3,
			IdleTimeoutSec:  10,
			StartGraceSec:   30,
			SoftStopSec:     240,
			OverallSec:      300,
			LoginWaitSec:    300,
			LoginPollSec:    3,
			HumanDelayMinMs: 700,
			HumanDelayMaxMs: 2200,
		},
		Paths: PathsConfig{
			InputDir:   ".",
			OutputDir:  "output",
			StateDir:   "state",
			ProfileDir: filepath.Join("state", "profile"),
		},
		Logging: LoggingConfig{
			DebugMode: true,
			Level:     "info",
		},
		Sites: builtinSites(),
	}
	return cfg
}

// Load reads a YAML config file and merges it over the defaults. A missing
// path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Profile returns the active site's locator profile.
func (c *Config) Profile() (SiteProfile, error) {
	p, ok := c.Sites[c.Site]
	if !ok {
		return SiteProfile{}, fmt.Errorf("unknown site profile: %q", c.Site)
	}
	return p, nil
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.Site == "" {
		c.Site = def.Site
	}
	if c.Browser.ViewportWidth == 0 {
		c.Browser.ViewportWidth = def.Browser.ViewportWidth
	}
	if c.Browser.ViewportHeight == 0 {
		c.Browser.ViewportHeight = def.Browser.ViewportHeight
	}
	if c.Browser.NavigationTimeoutMs == 0 {
		c.Browser.NavigationTimeoutMs = def.Browser.NavigationTimeoutMs
	}

	t, dt := &c.Timing, def.Timing
	if t.PollTickMs == 0 {
		t.PollTickMs = dt.PollTickMs
	}
	if t.StableTicks == 0 {
		t.StableTicks = dt.StableTicks
	}
	if t.IdleTimeoutSec == 0 {
		t.IdleTimeoutSec = dt.IdleTimeoutSec
	}
	if t.StartGraceSec == 0 {
		t.StartGraceSec = dt.StartGraceSec
	}
	if t.SoftStopSec == 0 {
		t.SoftStopSec = dt.SoftStopSec
	}
	if t.OverallSec == 0 {
		t.OverallSec = dt.OverallSec
	}
	if t.LoginWaitSec == 0 {
		t.LoginWaitSec = dt.LoginWaitSec
	}
	if t.LoginPollSec == 0 {
		t.LoginPollSec = dt.LoginPollSec
	}
	if t.HumanDelayMinMs == 0 {
		t.HumanDelayMinMs = dt.HumanDelayMinMs
	}
	if t.HumanDelayMaxMs == 0 {
		t.HumanDelayMaxMs = dt.HumanDelayMaxMs
	}

	if c.Paths.InputDir == "" {
		c.Paths.InputDir = def.Paths.InputDir
	}
	if c.Paths.OutputDir == "" {
		c.Paths.OutputDir = def.Paths.OutputDir
	}
	if c.Paths.StateDir == "" {
		c.Paths.StateDir = def.Paths.StateDir
	}
	if c.Paths.ProfileDir == "" {
		c.Paths.ProfileDir = def.Paths.ProfileDir
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}

	// Built-in profiles back any site the file did not define.
	if c.Sites == nil {
		c.Sites = map[string]SiteProfile{}
	}
	for name, p := range builtinSites() {
		if _, ok := c.Sites[name]; !ok {
			c.Sites[name] = p
		}
	}
}
