//go:build darwin

package autostart

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
)

const launchAgentPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>%s</string>
    <key>ProgramArguments</key>
    <array>
%s    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>ProcessType</key>
    <string>Interactive</string>
</dict>
</plist>
`

type darwinManager struct {
	label     string
	plistPath string
	args      []string
}

// New returns a LaunchAgent manager. The agent is only written, not loaded,
// so enabling does not start a second copy now.
func New(opts Options) Manager {
	opts.defaults()

	label := "dev.nohands." + opts.Name
	return &darwinManager{
		label:     label,
		plistPath: filepath.Join(opts.HomeDir, "Library", "LaunchAgents", label+".plist"),
		args:      append([]string{opts.ExecPath}, opts.Args...),
	}
}

func (m *darwinManager) Enable() error {
	if err := os.MkdirAll(filepath.Dir(m.plistPath), 0755); err != nil {
		return fmt.Errorf("create LaunchAgents dir: %w", err)
	}

	var args strings.Builder
	for _, a := range m.args {
		fmt.Fprintf(&args, "        <string>%s</string>\n", html.EscapeString(a))
	}

	content := fmt.Sprintf(launchAgentPlist, m.label, args.String())
	if err := os.WriteFile(m.plistPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("write plist: %w", err)
	}
	return nil
}

func (m *darwinManager) Disable() error {
	if err := os.Remove(m.plistPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove plist: %w", err)
	}
	return nil
}

func (m *darwinManager) IsEnabled() bool {
	_, err := os.Stat(m.plistPath)
	return err == nil
}

func (m *darwinManager) Status() (Status, error) {
	return Status{
		Enabled:  m.IsEnabled(),
		Location: m.plistPath,
		Command:  commandLine(m.args[0], m.args[1:]),
	}, nil
}
