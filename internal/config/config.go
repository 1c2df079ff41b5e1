package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete heist configuration
type Config struct {
	Planner  PlannerConfig  `mapstructure:"planner"`
	Scripts  ScriptsConfig  `mapstructure:"scripts"`
	Hosts    HostsConfig    `mapstructure:"hosts"`
	Mailbox  MailboxConfig  `mapstructure:"mailbox"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Purchase PurchaseConfig `mapstructure:"purchase"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Status   StatusConfig   `mapstructure:"status"`
	Sim      SimConfig      `mapstructure:"sim"`
}

// PlannerConfig tunes the batch planner
type PlannerConfig struct {
	// HomeHost is the always-on host the planner itself runs on
	HomeHost string `mapstructure:"home_host"`
	// HomeReserveGB is capacity on HomeHost that is never scheduled
	HomeReserveGB float64 `mapstructure:"home_reserve_gb"`
	// MaxAwaits caps the number of workers a single plan may spawn
	MaxAwaits int `mapstructure:"max_awaits"`
	// YieldInterval is how long the batching loop runs before yielding
	YieldInterval time.Duration `mapstructure:"yield_interval"`
	// PackRatio is the share of free capacity one batch may be estimated to use
	PackRatio float64 `mapstructure:"pack_ratio"`
	// MaxHackCandidates bounds the hacks-per-batch search space
	MaxHackCandidates int `mapstructure:"max_hack_candidates"`
}

// ScriptsConfig names the worker programs
type ScriptsConfig struct {
	Hack    string   `mapstructure:"hack"`
	Grow    string   `mapstructure:"grow"`
	Weaken  string   `mapstructure:"weaken"`
	Share   string   `mapstructure:"share"`
	Library []string `mapstructure:"library"`
}

// All returns every file that must be present on a worker host.
func (s ScriptsConfig) All() []string {
	files := []string{s.Hack, s.Grow, s.Weaken, s.Share}
	return append(files, s.Library...)
}

// HostsConfig controls which servers may be scheduled
type HostsConfig struct {
	// Exclude holds glob patterns of hostnames never used as workers or targets
	Exclude []string `mapstructure:"exclude"`
}

// MailboxConfig controls per-identity mailboxes
type MailboxConfig struct {
	// Capacity bounds each mailbox; -1 means unbounded
	Capacity int `mapstructure:"capacity"`
}

// ExecutorConfig controls plan execution
type ExecutorConfig struct {
	// Share fills leftover capacity with share workers while a plan runs
	Share bool `mapstructure:"share"`
}

// PurchaseConfig controls automatic server purchases
type PurchaseConfig struct {
	Enabled  bool    `mapstructure:"enabled"`
	MinRAMGB float64 `mapstructure:"min_ram_gb"`
}

// LoggingConfig controls debug logging
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format is json or text
	Format string `mapstructure:"format"`
	// Dir holds heist.log; empty writes to stderr
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the size at which heist.log rotates (0 = never)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files kept
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress"`
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables it
	Addr string `mapstructure:"addr"`
}

// StatusConfig controls the worker status side files
type StatusConfig struct {
	// Dir is where run/<pid>.txt status files are written
	Dir string `mapstructure:"dir"`
}

// SimConfig controls the simulated cluster
type SimConfig struct {
	// World is the YAML file describing servers and the player
	World string `mapstructure:"world"`
	// TimeScale multiplies every simulated operation duration
	TimeScale float64 `mapstructure:"time_scale"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Planner: PlannerConfig{
			HomeHost:          "home",
			HomeReserveGB:     256,
			MaxAwaits:         1_000_000,
			YieldInterval:     20 * time.Millisecond,
			PackRatio:         0.5,
			MaxHackCandidates: 1_000_000,
		},
		Scripts: ScriptsConfig{
			Hack:    "hack.js",
			Grow:    "grow.js",
			Weaken:  "weaken.js",
			Share:   "share.js",
			Library: []string{"lib/dan.js"},
		},
		Hosts: HostsConfig{
			Exclude: []string{},
		},
		Mailbox: MailboxConfig{
			Capacity: 50,
		},
		Executor: ExecutorConfig{
			Share: true,
		},
		Purchase: PurchaseConfig{
			Enabled:  true,
			MinRAMGB: 2,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Metrics: MetricsConfig{
			Addr: "",
		},
		Status: StatusConfig{
			Dir: ".heist",
		},
		Sim: SimConfig{
			World:     "",
			TimeScale: 0.001,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	setDefaults(viper.GetViper())
}

// DefaultSettings returns the defaults as nested maps keyed like the config
// file.
func DefaultSettings() map[string]any {
	v := viper.New()
	setDefaults(v)
	return v.AllSettings()
}

func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("planner.home_host", defaults.Planner.HomeHost)
	v.SetDefault("planner.home_reserve_gb", defaults.Planner.HomeReserveGB)
	v.SetDefault("planner.max_awaits", defaults.Planner.MaxAwaits)
	v.SetDefault("planner.yield_interval", defaults.Planner.YieldInterval)
	v.SetDefault("planner.pack_ratio", defaults.Planner.PackRatio)
	v.SetDefault("planner.max_hack_candidates", defaults.Planner.MaxHackCandidates)

	v.SetDefault("scripts.hack", defaults.Scripts.Hack)
	v.SetDefault("scripts.grow", defaults.Scripts.Grow)
	v.SetDefault("scripts.weaken", defaults.Scripts.Weaken)
	v.SetDefault("scripts.share", defaults.Scripts.Share)
	v.SetDefault("scripts.library", defaults.Scripts.Library)

	v.SetDefault("hosts.exclude", defaults.Hosts.Exclude)

	v.SetDefault("mailbox.capacity", defaults.Mailbox.Capacity)

	v.SetDefault("executor.share", defaults.Executor.Share)

	v.SetDefault("purchase.enabled", defaults.Purchase.Enabled)
	v.SetDefault("purchase.min_ram_gb", defaults.Purchase.MinRAMGB)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.dir", defaults.Logging.Dir)
	v.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	v.SetDefault("logging.compress", defaults.Logging.Compress)

	v.SetDefault("metrics.addr", defaults.Metrics.Addr)

	v.SetDefault("status.dir", defaults.Status.Dir)

	v.SetDefault("sim.world", defaults.Sim.World)
	v.SetDefault("sim.time_scale", defaults.Sim.TimeScale)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "heist")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".heist"
	}
	return filepath.Join(home, ".config", "heist")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
