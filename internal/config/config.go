package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the nohands configuration file
type Config struct {
	App     AppConfig     `toml:"app"`
	Window  WindowConfig  `toml:"window"`
	Content ContentConfig `toml:"content"`
	Idle    IdleConfig    `toml:"idle"`
	IPC     IPCConfig     `toml:"ipc"`
	Logging LoggingConfig `toml:"logging"`
}

// AppConfig contains application identity settings
type AppConfig struct {
	// ID keys the instance lock and the autolaunch entry.
	ID string `toml:"id"`
}

// WindowConfig contains primary window settings
type WindowConfig struct {
	// Renderer is the command that displays the primary window. The
	// placeholders {url} and {profile} are substituted at launch.
	Renderer    []string `toml:"renderer"`
	StopTimeout Duration `toml:"stop_timeout"`
}

// ContentConfig contains settings for the bundled content server
type ContentConfig struct {
	BundleDir string `toml:"bundle_dir"` // empty means Paths.BundleDir
	Listen    string `toml:"listen"`
}

// IdleConfig contains idle query settings
type IdleConfig struct {
	QueryTimeout Duration `toml:"query_timeout"`
}

// IPCConfig contains per-peer request limits
type IPCConfig struct {
	RatePerSecond float64 `toml:"rate_per_second"`
	Burst         int     `toml:"burst"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text, json
}

// Duration is a time.Duration that reads and writes as a TOML string ("2s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		App: AppConfig{
			ID: "nohands",
		},
		Window: WindowConfig{
			Renderer: []string{
				"chromium",
				"--app={url}",
				"--start-maximized",
				"--user-data-dir={profile}",
			},
			StopTimeout: Duration{10 * time.Second},
		},
		Content: ContentConfig{
			BundleDir: "",
			Listen:    "127.0.0.1:0",
		},
		Idle: IdleConfig{
			QueryTimeout: Duration{2 * time.Second},
		},
		IPC: IPCConfig{
			RatePerSecond: 20,
			Burst:         40,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFrom loads the configuration from a specific file
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if no config file exists
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// SaveTo saves the configuration to a specific file
func (c *Config) SaveTo(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.ID == "" {
		return fmt.Errorf("app id must not be empty")
	}

	if len(c.Window.Renderer) == 0 || c.Window.Renderer[0] == "" {
		return fmt.Errorf("window renderer command must not be empty")
	}

	if c.Window.StopTimeout.Duration <= 0 {
		return fmt.Errorf("invalid window stop timeout: %s", c.Window.StopTimeout)
	}

	if _, _, err := net.SplitHostPort(c.Content.Listen); err != nil {
		return fmt.Errorf("invalid content listen address %q: %w", c.Content.Listen, err)
	}

	if c.Idle.QueryTimeout.Duration <= 0 {
		return fmt.Errorf("invalid idle query timeout: %s", c.Idle.QueryTimeout)
	}

	if c.IPC.RatePerSecond <= 0 || c.IPC.Burst < 1 {
		return fmt.Errorf("invalid ipc rate limit: %v/s burst %d", c.IPC.RatePerSecond, c.IPC.Burst)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}
