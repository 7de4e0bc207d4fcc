package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"nohands.dev/go/nohands/internal/autostart"
	"nohands.dev/go/nohands/internal/config"
)

func init() {
	rootCmd.AddCommand(autostartCmd)
	autostartCmd.AddCommand(autostartEnableCmd)
	autostartCmd.AddCommand(autostartDisableCmd)
	autostartCmd.AddCommand(autostartStatusCmd)
}

var autostartCmd = &cobra.Command{
	Use:   "autostart",
	Short: "Manage launch at login",
	Long: `Manage whether nohands starts when you log in.

Production builds enable this on every start; use these commands to
inspect or change it by hand.`,
}

var autostartEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Start nohands at login",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := autostartManager()
		if err != nil {
			return err
		}
		if err := m.Enable(); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("Autostart enabled"))
		return nil
	},
}

var autostartDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Stop starting nohands at login",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := autostartManager()
		if err != nil {
			return err
		}
		if err := m.Disable(); err != nil {
			return err
		}
		fmt.Println("Autostart disabled")
		return nil
	},
}

var autostartStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether nohands starts at login",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := autostartManager()
		if err != nil {
			return err
		}
		status, err := m.Status()
		if err != nil {
			return err
		}

		state := "disabled"
		if status.Enabled {
			state = "enabled"
		}
		fmt.Println(row("Autostart:", stateStyle(state).Render(state)))
		fmt.Println(row("Location:", status.Location))
		if status.Command != "" {
			fmt.Println(row("Command:", status.Command))
		}
		return nil
	},
}

func autostartManager() (autostart.Manager, error) {
	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("get paths: %w", err)
	}
	cfg, err := loadConfig(paths)
	if err != nil {
		return nil, err
	}
	return autostart.New(autostart.Options{Name: cfg.App.ID}), nil
}
