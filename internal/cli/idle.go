package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nohands.dev/go/nohands/internal/idle"
)

var idleLocal bool

func init() {
	rootCmd.AddCommand(idleCmd)
	idleCmd.Flags().BoolVar(&idleLocal, "local", false, "query the host directly instead of the running instance")
}

var idleCmd = &cobra.Command{
	Use:   "idle",
	Short: "Print seconds since the last user input",
	Long: `Print how long the user has been idle, in whole seconds, as the
running instance reports it to the renderer.

Examples:
  nohands idle
  nohands idle --local`,
	Args: cobra.NoArgs,
	RunE: runIdle,
}

func runIdle(cmd *cobra.Command, args []string) error {
	var reply idle.Reply

	if idleLocal {
		bridge := idle.NewBridge(idle.NewQuerier(), nil, 0, nil)
		r, err := bridge.Query(cmd.Context())
		if err != nil {
			return err
		}
		reply = r
	} else if err := call(idle.MethodGetIdleTime, nil, &reply); err != nil {
		return err
	}

	fmt.Printf("%d\n", reply.IdleSeconds)
	if reply.IdleSeconds >= 60 {
		fmt.Println(dimStyle.Render(formatDuration(time.Duration(reply.IdleSeconds) * time.Second)))
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		return "0s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}
