// Package shortcut registers system-wide keyboard shortcuts written as
// accelerators such as "CommandOrControl+Shift+J".
package shortcut

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Modifier is a platform-neutral modifier key
type Modifier string

const (
	ModCtrl  Modifier = "ctrl"
	ModShift Modifier = "shift"
	ModAlt   Modifier = "alt"
	// ModSuper is Command on macOS, the Windows key on Windows and Super
	// on Linux
	ModSuper Modifier = "super"
)

// ErrUnsupported is returned by Register where no shortcut backend exists
var ErrUnsupported = errors.New("global shortcuts are not supported on this platform")

// Accelerator is a parsed shortcut. Key is a lower-case key name such as
// "j", "5", "f5" or "space".
type Accelerator struct {
	Text string
	Mods []Modifier
	Key  string
}

var modifiers = map[string]Modifier{
	"commandorcontrol": commandOrControl,
	"cmdorctrl":        commandOrControl,
	"command":          ModSuper,
	"cmd":              ModSuper,
	"super":            ModSuper,
	"meta":             ModSuper,
	"control":          ModCtrl,
	"ctrl":             ModCtrl,
	"shift":            ModShift,
	"alt":              ModAlt,
	"option":           ModAlt,
}

var keyAliases = map[string]string{
	"enter": "return",
	"esc":   "escape",
}

// Keys lists the key names Parse accepts, besides a-z and 0-9
var Keys = []string{
	"space", "return", "escape", "delete", "tab",
	"left", "right", "up", "down",
	"f1", "f2", "f3", "f4", "f5", "f6", "f7", "f8", "f9", "f10", "f11", "f12",
}

func knownKey(name string) bool {
	if len(name) == 1 && (name[0] >= 'a' && name[0] <= 'z' || name[0] >= '0' && name[0] <= '9') {
		return true
	}
	for _, k := range Keys {
		if k == name {
			return true
		}
	}
	return false
}

// Parse reads an accelerator. Modifiers and key are joined by "+", are
// case-insensitive, and the key comes last.
func Parse(s string) (Accelerator, error) {
	parts := strings.Split(s, "+")
	if len(parts) == 0 || strings.TrimSpace(s) == "" {
		return Accelerator{}, errors.New("empty accelerator")
	}

	acc := Accelerator{Text: s}
	seen := make(map[Modifier]bool)

	for i, part := range parts {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			return Accelerator{}, fmt.Errorf("accelerator %q: empty part", s)
		}

		if i == len(parts)-1 {
			if alias, ok := keyAliases[name]; ok {
				name = alias
			}
			if !knownKey(name) {
				return Accelerator{}, fmt.Errorf("accelerator %q: unknown key %q", s, part)
			}
			acc.Key = name
			break
		}

		mod, ok := modifiers[name]
		if !ok {
			return Accelerator{}, fmt.Errorf("accelerator %q: unknown modifier %q", s, part)
		}
		if !seen[mod] {
			seen[mod] = true
			acc.Mods = append(acc.Mods, mod)
		}
	}

	return acc, nil
}

// binding is one shortcut registered with the host
type binding interface {
	Register() error
	Unregister() error
	Keydown() <-chan struct{}
}

var newBinding = func(acc Accelerator) binding {
	return newHostBinding(acc)
}

type entry struct {
	b    binding
	done chan struct{}
}

// Manager owns registered shortcuts
type Manager struct {
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// NewManager creates a manager with nothing registered
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:  logger.With("component", "shortcut"),
		entries: make(map[string]*entry),
	}
}

// Register binds accel to fn. fn runs on a listener goroutine.
func (m *Manager) Register(accel string, fn func()) error {
	acc, err := Parse(accel)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[accel]; ok {
		return fmt.Errorf("shortcut %s is already registered", accel)
	}

	b := newBinding(acc)
	if err := b.Register(); err != nil {
		return fmt.Errorf("register %s: %w", accel, err)
	}

	e := &entry{b: b, done: make(chan struct{})}
	m.entries[accel] = e

	go func() {
		keydown := b.Keydown()
		for {
			select {
			case <-e.done:
				return
			case _, ok := <-keydown:
				if !ok {
					return
				}
				m.logger.Debug("shortcut pressed", "accelerator", accel)
				fn()
			}
		}
	}()

	m.logger.Info("shortcut registered", "accelerator", accel)
	return nil
}

// Registered reports whether accel is bound
func (m *Manager) Registered(accel string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[accel]
	return ok
}

// UnregisterAll releases every shortcut
func (m *Manager) UnregisterAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for accel, e := range m.entries {
		close(e.done)
		if err := e.b.Unregister(); err != nil {
			m.logger.Warn("unregister shortcut", "accelerator", accel, "error", err)
		}
		delete(m.entries, accel)
	}
}
