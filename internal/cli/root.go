package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nohands.dev/go/nohands/internal/config"
	"nohands.dev/go/nohands/internal/ipc"
)

var (
	version   = "dev"
	cfgFile   string
	logLevel  string
	logFormat string
)

func SetVersion(v string) {
	version = v
}

// RootCmd is the root command, exported for documentation generation
var RootCmd = &cobra.Command{
	Use:   "nohands [args...]",
	Short: "Desktop time-tracking shell",
	Long: `nohands - desktop time-tracking shell

Running nohands with no subcommand starts the application: it takes the
single-instance lock, opens the primary window and serves the renderer.
If nohands is already running, the new launch hands its arguments to the
running instance, which brings its window to the front, and exits.

The other subcommands talk to the running instance.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runApp,
}

// For internal use, keep an alias
var rootCmd = RootCmd

func Execute() error {
	return RootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.config/nohands/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text, json")
}

// loadConfig reads --config or the default file
func loadConfig(paths *config.Paths) (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = paths.ConfigFile
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// connect dials the running instance
func connect() (*ipc.Client, error) {
	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("get paths: %w", err)
	}

	c, err := ipc.ConnectTo(paths.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("nohands is not running")
	}
	return c, nil
}

// call runs one method on the running instance
func call(method string, params, result any) error {
	c, err := connect()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return c.CallResult(ctx, method, params, result)
}
