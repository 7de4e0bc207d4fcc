package window

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"nohands.dev/go/nohands/internal/ipc"
)

// Events pushed to the renderer, and the method it uses to sync state
const (
	EventMaximize = "window.maximize"
	EventMenu     = "window.menu"
	EventDevTools = "window.devtools"
	EventRestore  = "window.restore"
	EventCenter   = "window.center"
	EventFocus    = "window.focus"
	EventLoad     = "window.load"
	EventClose    = "window.close"

	MethodState = "window.state"
)

const defaultStopTimeout = 10 * time.Second

// RendererOptions configures RendererFactory
type RendererOptions struct {
	// Command launches the renderer. {url} and {profile} are replaced in
	// every argument.
	Command     []string
	ProfileDir  string
	StopTimeout time.Duration
	// Events carries window controls to the connected renderer
	Events ipc.Broadcaster
	Logger *slog.Logger
}

// RendererFactory opens windows backed by a renderer process, typically a
// Chromium-family browser in app mode that talks back over the IPC
// websocket.
type RendererFactory struct {
	opts   RendererOptions
	logger *slog.Logger

	mu      sync.Mutex
	current *ProcessWindow
}

// NewRendererFactory creates a factory
func NewRendererFactory(opts RendererOptions) *RendererFactory {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = defaultStopTimeout
	}
	return &RendererFactory{
		opts:   opts,
		logger: opts.Logger.With("component", "renderer"),
	}
}

// Open returns a window whose process starts on its first Load
func (f *RendererFactory) Open(ctx context.Context) (Window, error) {
	if len(f.opts.Command) == 0 {
		return nil, errors.New("renderer command is empty")
	}

	w := &ProcessWindow{
		opts:   f.opts,
		logger: f.logger,
		closed: make(chan struct{}),
	}

	f.mu.Lock()
	f.current = w
	f.mu.Unlock()

	return w, nil
}

// Register installs the window.state method. The renderer calls it on
// connect to learn the desired state and whenever its own state changes.
func (f *RendererFactory) Register(r ipc.Registrar) {
	r.Handle(MethodState, func(_ context.Context, _ *ipc.Peer, params json.RawMessage) (any, error) {
		f.mu.Lock()
		w := f.current
		f.mu.Unlock()

		if w == nil {
			return nil, ipc.Errorf(ipc.ErrCodeUnavailable, "no window")
		}

		var report StateReport
		if err := ipc.DecodeParams(params, &report); err != nil {
			return nil, err
		}
		return w.report(report), nil
	})
}

// StateReport is what the renderer tells us about itself
type StateReport struct {
	Minimized *bool `json:"minimized,omitempty"`
	Focused   *bool `json:"focused,omitempty"`
}

// DesiredState is what the renderer should look like
type DesiredState struct {
	URL       string       `json:"url"`
	Maximized bool         `json:"maximized"`
	MenuShown bool         `json:"menu_shown"`
	DevTools  DevToolsMode `json:"devtools,omitempty"`
	Minimized bool         `json:"minimized"`
	Focused   bool         `json:"focused"`
}

// ProcessWindow is a Window backed by a renderer process
type ProcessWindow struct {
	opts   RendererOptions
	logger *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	done    chan struct{}
	state   DesiredState
	closing bool

	closed    chan struct{}
	closeOnce sync.Once
}

func (w *ProcessWindow) send(event string, payload any) {
	if w.opts.Events != nil {
		w.opts.Events.Broadcast(event, payload)
	}
}

// Load starts the renderer on url, or navigates a running one
func (w *ProcessWindow) Load(url string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closing {
		return errors.New("window is closed")
	}

	w.state.URL = url
	if w.cmd != nil {
		w.send(EventLoad, map[string]string{"url": url})
		return nil
	}
	return w.startLocked(url)
}

func (w *ProcessWindow) startLocked(url string) error {
	args := ExpandCommand(w.opts.Command, url, w.opts.ProfileDir)

	cmd := exec.Command(args[0], args[1:]...) //nolint:gosec // command from user config
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting renderer: %w", err)
	}
	w.cmd = cmd

	w.logger.Info("renderer process started", "pid", cmd.Process.Pid, "command", args[0])

	// Wait in the background so an exit closes the window
	w.done = make(chan struct{})
	done := w.done
	go func() {
		err := cmd.Wait()
		w.mu.Lock()
		w.cmd = nil
		close(done)
		w.mu.Unlock()

		if err != nil && !w.isClosing() {
			w.logger.Warn("renderer process exited with error", "error", err)
		} else {
			w.logger.Info("renderer process exited")
		}
		w.markClosed()
	}()

	return nil
}

// ExpandCommand substitutes {url} and {profile} in every argument
func ExpandCommand(command []string, url, profile string) []string {
	r := strings.NewReplacer("{url}", url, "{profile}", profile)
	out := make([]string, len(command))
	for i, arg := range command {
		out[i] = r.Replace(arg)
	}
	return out
}

func (w *ProcessWindow) Maximize() error {
	w.mu.Lock()
	w.state.Maximized = true
	w.state.Minimized = false
	w.mu.Unlock()

	w.send(EventMaximize, nil)
	return nil
}

func (w *ProcessWindow) RemoveMenu() error {
	w.mu.Lock()
	w.state.MenuShown = false
	w.mu.Unlock()

	w.send(EventMenu, map[string]bool{"visible": false})
	return nil
}

func (w *ProcessWindow) OpenDevTools(mode DevToolsMode) error {
	w.mu.Lock()
	w.state.DevTools = mode
	w.mu.Unlock()

	w.send(EventDevTools, map[string]DevToolsMode{"mode": mode})
	return nil
}

func (w *ProcessWindow) IsMinimized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Minimized
}

func (w *ProcessWindow) Restore() error {
	w.mu.Lock()
	w.state.Minimized = false
	w.mu.Unlock()

	w.send(EventRestore, nil)
	return nil
}

func (w *ProcessWindow) Center() error {
	w.send(EventCenter, nil)
	return nil
}

func (w *ProcessWindow) Focus() error {
	w.send(EventFocus, nil)
	return nil
}

func (w *ProcessWindow) Closed() <-chan struct{} {
	return w.closed
}

func (w *ProcessWindow) report(r StateReport) DesiredState {
	w.mu.Lock()
	defer w.mu.Unlock()

	if r.Minimized != nil {
		w.state.Minimized = *r.Minimized
	}
	if r.Focused != nil {
		w.state.Focused = *r.Focused
	}
	return w.state
}

func (w *ProcessWindow) isClosing() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closing
}

func (w *ProcessWindow) markClosed() {
	w.closeOnce.Do(func() { close(w.closed) })
}

// Close asks the renderer to close, then stops its process: interrupt
// first, kill after the stop timeout.
func (w *ProcessWindow) Close() error {
	w.mu.Lock()
	if w.closing {
		w.mu.Unlock()
		<-w.closed
		return nil
	}
	w.closing = true

	if w.cmd == nil || w.cmd.Process == nil {
		w.mu.Unlock()
		w.markClosed()
		return nil
	}

	proc := w.cmd.Process
	done := w.done
	w.mu.Unlock()

	w.send(EventClose, nil)
	w.logger.Info("stopping renderer process", "pid", proc.Pid)

	var err error
	if runtime.GOOS == "windows" {
		// os.Interrupt is not supported on Windows
		err = proc.Kill()
	} else {
		err = proc.Signal(os.Interrupt)
	}
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("stopping renderer: %w", err)
	}

	select {
	case <-done:
	case <-time.After(w.opts.StopTimeout):
		w.logger.Warn("renderer did not exit in time, force killing")
		if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("force killing renderer: %w", err)
		}
		<-done
	}

	<-w.closed
	return nil
}
