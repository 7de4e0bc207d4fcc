package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"nohands.dev/go/nohands/internal/config"
)

var (
	// Set via ldflags
	commit    = "unknown"
	buildDate = "unknown"

	versionFull bool
	versionJSON bool
)

// SetBuildInfo sets build information from ldflags
func SetBuildInfo(c, d string) {
	commit = c
	buildDate = d
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionFull, "full", false, "include commit, build date and dependencies")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print as JSON")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version and the build's default mode (development or
production). --full adds the commit, build date, toolchain and modules.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeVersion(cmd.OutOrStdout(), buildVersion(versionFull), versionJSON)
	},
}

type versionInfo struct {
	Version  string   `json:"version"`
	Mode     string   `json:"mode"`
	Commit   string   `json:"commit,omitempty"`
	Built    string   `json:"built,omitempty"`
	Go       string   `json:"go,omitempty"`
	Platform string   `json:"platform,omitempty"`
	Modules  []string `json:"modules,omitempty"`
}

func buildVersion(full bool) versionInfo {
	v := versionInfo{Version: version, Mode: config.DefaultMode}
	if !full {
		return v
	}

	v.Commit = commit
	v.Built = buildDate
	v.Go = runtime.Version()
	v.Platform = runtime.GOOS + "/" + runtime.GOARCH

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && v.Commit == "unknown":
			v.Commit = s.Value
			if len(v.Commit) > 8 {
				v.Commit = v.Commit[:8]
			}
		case s.Key == "vcs.time" && v.Built == "unknown":
			v.Built = s.Value
		}
	}
	for _, dep := range info.Deps {
		if dep.Replace != nil {
			dep = dep.Replace
		}
		v.Modules = append(v.Modules, dep.Path+" "+dep.Version)
	}
	return v
}

func writeVersion(w io.Writer, v versionInfo, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	fmt.Fprintf(w, "nohands %s (%s build)\n", v.Version, v.Mode)
	if v.Go == "" {
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, row("Commit:", v.Commit))
	fmt.Fprintln(w, row("Built:", v.Built))
	fmt.Fprintln(w, row("Go:", v.Go))
	fmt.Fprintln(w, row("Platform:", v.Platform))
	if len(v.Modules) > 0 {
		fmt.Fprintln(w, row("Modules:", ""))
		for _, m := range v.Modules {
			fmt.Fprintln(w, "  "+dimStyle.Render(m))
		}
	}
	return nil
}
