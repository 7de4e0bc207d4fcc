// Package main provides the entrypoint for nohands.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"go.uber.org/automaxprocs/maxprocs"
	"golang.design/x/hotkey/mainthread"

	"nohands.dev/go/nohands/internal/cli"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version)
	cli.SetBuildInfo(commit, buildDate)

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, v ...any) {
		slog.Debug(fmt.Sprintf(format, v...))
	})); err != nil {
		slog.Warn("set GOMAXPROCS", "error", err)
	}

	// global hotkeys need the main OS thread on macOS
	code := 0
	mainthread.Init(func() {
		if err := cli.Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			code = 1
		}
	})
	os.Exit(code)
}
