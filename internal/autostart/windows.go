//go:build windows

package autostart

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"
)

const runKey = `Software\Microsoft\Windows\CurrentVersion\Run`

type windowsManager struct {
	name    string
	command string
}

// New returns a manager for the per-user Run registry key
func New(opts Options) Manager {
	opts.defaults()
	return &windowsManager{
		name:    opts.Name,
		command: commandLine(opts.ExecPath, opts.Args),
	}
}

func (m *windowsManager) Enable() error {
	key, _, err := registry.CreateKey(registry.CURRENT_USER, runKey, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open Run key: %w", err)
	}
	defer key.Close()

	if err := key.SetStringValue(m.name, m.command); err != nil {
		return fmt.Errorf("set Run value: %w", err)
	}
	return nil
}

func (m *windowsManager) Disable() error {
	key, err := registry.OpenKey(registry.CURRENT_USER, runKey, registry.SET_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open Run key: %w", err)
	}
	defer key.Close()

	if err := key.DeleteValue(m.name); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return fmt.Errorf("delete Run value: %w", err)
	}
	return nil
}

func (m *windowsManager) IsEnabled() bool {
	status, err := m.Status()
	return err == nil && status.Enabled
}

func (m *windowsManager) Status() (Status, error) {
	status := Status{Location: `HKCU\` + runKey + `\` + m.name}

	key, err := registry.OpenKey(registry.CURRENT_USER, runKey, registry.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return status, nil
		}
		return status, fmt.Errorf("open Run key: %w", err)
	}
	defer key.Close()

	cmd, _, err := key.GetStringValue(m.name)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return status, nil
		}
		return status, fmt.Errorf("read Run value: %w", err)
	}

	status.Enabled = true
	status.Command = cmd
	return status, nil
}
