package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"nohands.dev/go/nohands/internal/lifecycle"
	"nohands.dev/go/nohands/internal/window"
)

func init() {
	rootCmd.AddCommand(activateCmd)
}

var activateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Reopen the primary window",
	Long: `Ask the running instance to reopen its primary window if the window
was closed while the app kept running. With a window open this does nothing.`,
	Args: cobra.NoArgs,
	RunE: runActivate,
}

func runActivate(cmd *cobra.Command, args []string) error {
	var res struct {
		Created bool         `json:"created"`
		Window  window.State `json:"window"`
	}
	if err := call(lifecycle.MethodActivate, nil, &res); err != nil {
		return err
	}

	if res.Created {
		fmt.Println(okStyle.Render("Window reopened"))
	} else {
		fmt.Println(dimStyle.Render("Window already open"))
	}
	return nil
}
