// Package window owns the application's single primary window.
package window

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// DevToolsMode selects where developer tools open
type DevToolsMode string

const (
	DevToolsDocked   DevToolsMode = "docked"
	DevToolsUndocked DevToolsMode = "undocked"
)

// Window is one top-level application window
type Window interface {
	Load(url string) error
	Maximize() error
	RemoveMenu() error
	OpenDevTools(mode DevToolsMode) error
	IsMinimized() bool
	Restore() error
	Center() error
	Focus() error
	Close() error
	// Closed is closed once the window is gone, whoever closed it
	Closed() <-chan struct{}
}

// Factory makes new windows
type Factory interface {
	Open(ctx context.Context) (Window, error)
}

// State is the manager's view of its window
type State string

const (
	StateNone      State = "none"
	StateCreated   State = "created"
	StateDestroyed State = "destroyed"
)

// ErrNoFactory is returned by Create when the manager cannot make windows
var ErrNoFactory = errors.New("window factory is not configured")

// Options configures a Manager
type Options struct {
	Factory Factory
	// URL is loaded into every new window
	URL string
	// OpenDevTools opens docked developer tools on every new window
	OpenDevTools bool
	Logger       *slog.Logger
}

type setupStep struct {
	name string
	fn   func() error
}

// Manager holds at most one live window. It is not safe for concurrent
// use; the lifecycle coordinator calls it from its loop only.
type Manager struct {
	opts     Options
	logger   *slog.Logger
	win      Window
	state    State
	created  int
	onClosed func(Window)
}

// NewManager creates a manager with no window
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		opts:   opts,
		logger: opts.Logger.With("component", "window"),
		state:  StateNone,
	}
}

// OnClosed sets the function told about a window closing. It runs on the
// watcher goroutine and should hand off to the caller's loop.
func (m *Manager) OnClosed(fn func(Window)) {
	m.onClosed = fn
}

// Current returns the live window or nil
func (m *Manager) Current() Window {
	return m.win
}

// State returns the lifecycle state
func (m *Manager) State() State {
	return m.state
}

// Created returns how many windows this manager has made
func (m *Manager) Created() int {
	return m.created
}

// Create makes the primary window unless one is live. With a live window
// it focuses that one and reports created=false.
func (m *Manager) Create(ctx context.Context) (Window, bool, error) {
	if m.win != nil {
		if err := m.win.Focus(); err != nil {
			m.logger.Warn("focus existing window", "error", err)
		}
		return m.win, false, nil
	}
	if m.opts.Factory == nil {
		return nil, false, ErrNoFactory
	}

	w, err := m.opts.Factory.Open(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("open window: %w", err)
	}

	// cosmetic steps only warn; a window that cannot load is useless
	for _, step := range []setupStep{
		{"maximize", w.Maximize},
		{"remove menu", w.RemoveMenu},
	} {
		if err := step.fn(); err != nil {
			m.logger.Warn("window setup step failed", "step", step.name, "error", err)
		}
	}

	if err := w.Load(m.opts.URL); err != nil {
		_ = w.Close()
		return nil, false, fmt.Errorf("load %s: %w", m.opts.URL, err)
	}

	if m.opts.OpenDevTools {
		if err := w.OpenDevTools(DevToolsDocked); err != nil {
			m.logger.Warn("open devtools", "error", err)
		}
	}

	m.win = w
	m.state = StateCreated
	m.created++

	go m.watch(w)

	m.logger.Info("window created", "url", m.opts.URL)
	return w, true, nil
}

func (m *Manager) watch(w Window) {
	<-w.Closed()
	if fn := m.onClosed; fn != nil {
		fn(w)
	}
}

// Release drops the reference to w after it closed. It reports false when
// w is not the live window.
func (m *Manager) Release(w Window) bool {
	if m.win == nil || m.win != w {
		return false
	}
	m.win = nil
	m.state = StateDestroyed
	m.logger.Info("window closed")
	return true
}

// Activate creates the window when none is live and otherwise does nothing
func (m *Manager) Activate(ctx context.Context) (bool, error) {
	if m.win != nil {
		return false, nil
	}
	_, created, err := m.Create(ctx)
	return created, err
}

// Reveal brings the live window to the front: restore if minimized, then
// center and focus. It reports false when there is no window.
func (m *Manager) Reveal() bool {
	w := m.win
	if w == nil {
		return false
	}

	if w.IsMinimized() {
		if err := w.Restore(); err != nil {
			m.logger.Warn("restore window", "error", err)
		}
	}
	if err := w.Center(); err != nil {
		m.logger.Warn("center window", "error", err)
	}
	if err := w.Focus(); err != nil {
		m.logger.Warn("focus window", "error", err)
	}
	return true
}

// OpenDevTools opens developer tools on the live window, if any
func (m *Manager) OpenDevTools(mode DevToolsMode) error {
	if m.win == nil {
		return nil
	}
	return m.win.OpenDevTools(mode)
}

// Close closes the live window and drops the reference
func (m *Manager) Close() error {
	w := m.win
	if w == nil {
		return nil
	}
	m.win = nil
	m.state = StateDestroyed
	return w.Close()
}
