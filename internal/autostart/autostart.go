// Package autostart registers the application to launch at user login.
package autostart

import (
	"os"
	"strings"
)

// Status describes the login item
type Status struct {
	Enabled  bool   `json:"enabled"`
	Location string `json:"location"`
	Command  string `json:"command,omitempty"`
}

// Manager turns launch-at-login on and off. Enable and Disable are
// idempotent.
type Manager interface {
	Enable() error
	Disable() error
	IsEnabled() bool
	Status() (Status, error)
}

// Options configures New
type Options struct {
	// Name is the login item's display name and identifier
	Name string
	// ExecPath defaults to the running executable
	ExecPath string
	Args     []string
	// HomeDir overrides the user's home directory
	HomeDir string
}

func (o *Options) defaults() {
	if o.Name == "" {
		o.Name = "nohands"
	}
	if o.ExecPath == "" {
		o.ExecPath, _ = os.Executable()
	}
	if o.HomeDir == "" {
		o.HomeDir, _ = os.UserHomeDir()
	}
}

// commandLine quotes the executable for shells and launchers that split
// on spaces
func commandLine(exec string, args []string) string {
	parts := []string{quote(exec)}
	for _, a := range args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}
