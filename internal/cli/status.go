package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nohands.dev/go/nohands/internal/config"
	"nohands.dev/go/nohands/internal/instance"
	"nohands.dev/go/nohands/internal/lifecycle"
)

var statusJSON bool

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print raw JSON")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running instance's state",
	Long: `Show the lifecycle state, primary window state and uptime of the
running nohands instance.

Examples:
  nohands status
  nohands status --json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	var status lifecycle.Status
	if err := call(lifecycle.MethodStatus, nil, &status); err != nil {
		paths, perr := config.GetPaths()
		if perr != nil {
			return err
		}
		return explainUnreachable(err, paths.LockFile)
	}

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	fmt.Println(row("State:", stateStyle(string(status.State)).Render(string(status.State))))
	fmt.Println(row("Window:", stateStyle(string(status.Window)).Render(string(status.Window))))
	fmt.Println(row("Windows opened:", fmt.Sprintf("%d", status.WindowsCreated)))
	fmt.Println(row("Mode:", status.Mode))
	fmt.Println(row("PID:", fmt.Sprintf("%d", status.PID)))
	fmt.Println(row("Uptime:", status.Uptime))
	return nil
}

// explainUnreachable names the lock holder when the instance holds the lock
// but does not answer, e.g. while it is still starting or is hung
func explainUnreachable(err error, lockPath string) error {
	pid, perr := instance.HolderPID(lockPath)
	if perr != nil {
		return err
	}
	return fmt.Errorf("nohands (pid %d) holds the instance lock but does not answer: %w", pid, err)
}
