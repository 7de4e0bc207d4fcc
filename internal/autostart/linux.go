//go:build linux

package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const desktopEntry = `[Desktop Entry]
Type=Application
Name=%s
Exec=%s
Terminal=false
X-GNOME-Autostart-enabled=true
`

type linuxManager struct {
	path    string
	command string
}

// New returns an XDG autostart entry manager
func New(opts Options) Manager {
	opts.defaults()

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		configDir = filepath.Join(opts.HomeDir, ".config")
	}

	return &linuxManager{
		path:    filepath.Join(configDir, "autostart", opts.Name+".desktop"),
		command: commandLine(opts.ExecPath, opts.Args),
	}
}

func (m *linuxManager) Enable() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("create autostart dir: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(m.path), ".desktop")
	content := fmt.Sprintf(desktopEntry, name, m.command)
	if err := os.WriteFile(m.path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write desktop entry: %w", err)
	}
	return nil
}

func (m *linuxManager) Disable() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove desktop entry: %w", err)
	}
	return nil
}

func (m *linuxManager) IsEnabled() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

func (m *linuxManager) Status() (Status, error) {
	status := Status{Location: m.path}

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return status, nil
	}
	if err != nil {
		return status, fmt.Errorf("read desktop entry: %w", err)
	}

	status.Enabled = true
	for _, line := range strings.Split(string(data), "\n") {
		if cmd, ok := strings.CutPrefix(line, "Exec="); ok {
			status.Command = cmd
		}
	}
	return status, nil
}
