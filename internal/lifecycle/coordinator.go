// Package lifecycle runs the application from a held instance lock to
// process exit. Every host callback is posted to one loop goroutine, which
// is the only place the window reference is touched.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"nohands.dev/go/nohands/internal/events"
	"nohands.dev/go/nohands/internal/idle"
	"nohands.dev/go/nohands/internal/instance"
	"nohands.dev/go/nohands/internal/ipc"
	"nohands.dev/go/nohands/internal/power"
	"nohands.dev/go/nohands/internal/window"
)

// State of the coordinator
type State string

const (
	StateStarting     State = "starting"
	StateReady        State = "ready"
	StateShuttingDown State = "shutting-down"
	StateTerminated   State = "terminated"
)

// DevToolsShortcut opens undocked developer tools on the primary window
const DevToolsShortcut = "CommandOrControl+Shift+J"

// IPC methods served by the coordinator
const (
	MethodActivate = "activate"
	MethodStatus   = "status"
)

var (
	ErrLockNotHeld = errors.New("instance lock is not held")
	ErrAlreadyRun  = errors.New("coordinator already ran")
)

// LockHolder reports whether this process owns the instance lock
type LockHolder interface {
	Held() bool
}

// DataStore is the persistence collaborator
type DataStore interface {
	StartListening(r ipc.Registrar) error
	OnClose() error
	OnShutdown() error
}

// Shortcuts registers global keyboard shortcuts
type Shortcuts interface {
	Register(accel string, fn func()) error
	UnregisterAll()
}

// Autostart enables launch at login
type Autostart interface {
	Enable() error
}

// Options configures a Coordinator
type Options struct {
	Policy  Policy
	Guard   LockHolder
	Bus     *events.Bus
	Windows *window.Manager
	Store   DataStore
	IPC     ipc.Registrar

	// Broadcast, when set, receives every bus event for subscribed peers
	Broadcast ipc.Broadcaster

	Monitor     power.Monitor
	Idle        idle.Querier
	IdleTimeout time.Duration

	Shortcuts Shortcuts
	Autostart Autostart
	// DevTooling is the development-only startup step
	DevTooling func(context.Context) error
	// GracefulExit closes when a development parent asks to quit
	GracefulExit <-chan struct{}

	Logger *slog.Logger
}

// Status is a point-in-time view for the status method
type Status struct {
	State          State        `json:"state"`
	Window         window.State `json:"window"`
	WindowsCreated int          `json:"windows_created"`
	PID            int          `json:"pid"`
	Mode           string       `json:"mode"`
	StartTime      time.Time    `json:"start_time"`
	Uptime         string       `json:"uptime"`
	ShutdownReason string       `json:"shutdown_reason,omitempty"`
}

// Coordinator is the top-level state machine
type Coordinator struct {
	opts   Options
	logger *slog.Logger
	bus    *events.Bus
	queue  *queue

	relay  *power.Relay
	bridge *idle.Bridge

	// winCtx outlives Run's ctx so windows are closed in order, not killed
	winCtx context.Context

	ran atomic.Bool

	mu        sync.RWMutex
	state     State
	startTime time.Time
	winState  window.State
	winCount  int
	reason    string
}

// New creates a coordinator
func New(opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("component", "lifecycle")

	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus(opts.Logger, 0)
	}
	if opts.Windows == nil {
		opts.Windows = window.NewManager(window.Options{Logger: opts.Logger})
	}

	c := &Coordinator{
		opts:     opts,
		logger:   logger,
		bus:      bus,
		queue:    newQueue(),
		state:    StateStarting,
		winState: window.StateNone,
	}

	if opts.Monitor != nil {
		c.relay = power.NewRelay(opts.Monitor, c, opts.Logger)
	}
	if opts.Idle != nil {
		c.bridge = idle.NewBridge(opts.Idle, c, opts.IdleTimeout, opts.Logger)
	}
	return c
}

// Bus returns the event bus
func (c *Coordinator) Bus() *events.Bus {
	return c.bus
}

// State returns the current state
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Status returns a snapshot safe to call from any goroutine
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Status{
		State:          c.state,
		Window:         c.winState,
		WindowsCreated: c.winCount,
		PID:            os.Getpid(),
		Mode:           c.opts.Policy.Mode,
		StartTime:      c.startTime,
		ShutdownReason: c.reason,
	}
	if !c.startTime.IsZero() {
		s.Uptime = time.Since(c.startTime).Round(time.Second).String()
	}
	return s
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()

	c.logger.Info("lifecycle state changed", "from", prev, "to", s)
}

// syncWindow copies the manager's view for Status. Loop only.
func (c *Coordinator) syncWindow() {
	c.mu.Lock()
	c.winState = c.opts.Windows.State()
	c.winCount = c.opts.Windows.Created()
	c.mu.Unlock()
}

func (c *Coordinator) post(fn func()) bool {
	return c.queue.post(fn)
}

// Emit hands an event to the loop. app-shutdown and app-close go through
// shutdown arbitration; everything else is published as is.
func (c *Coordinator) Emit(t events.Type, payload any) {
	c.post(func() { c.dispatch(t, payload) })
}

// EmitAck is Emit with done run once the event has been handled on the
// loop, or right away if the loop has stopped.
func (c *Coordinator) EmitAck(t events.Type, payload any, done func()) {
	if !c.post(func() {
		defer done()
		c.dispatch(t, payload)
	}) {
		done()
	}
}

func (c *Coordinator) dispatch(t events.Type, payload any) {
	switch t {
	case events.AppShutdown:
		reason := events.ReasonHostShutdown
		if p, ok := payload.(events.Shutdown); ok && p.Reason != "" {
			reason = p.Reason
		}
		c.requestShutdown(reason)
	case events.AppClose:
		reason := events.ReasonHostSuspend
		if p, ok := payload.(events.Close); ok && p.Reason != "" {
			reason = p.Reason
		}
		c.requestClose(reason)
	default:
		c.publish(t, payload)
	}
}

func (c *Coordinator) publish(t events.Type, payload any) {
	if err := c.bus.Publish(t, payload); err != nil {
		c.logger.Error("publish event", "type", t, "error", err)
	}
}

// Run starts the application and blocks until it terminates. The instance
// lock must already be held.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.opts.Guard != nil && !c.opts.Guard.Held() {
		return ErrLockNotHeld
	}
	if !c.ran.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}

	c.mu.Lock()
	c.startTime = time.Now()
	c.mu.Unlock()

	c.winCtx = context.WithoutCancel(ctx)
	c.opts.Windows.OnClosed(func(w window.Window) {
		c.post(func() { c.windowClosed(w) })
	})

	if err := c.start(ctx); err != nil {
		c.terminate()
		return err
	}

	c.setState(StateReady)
	c.loop(ctx)
	return nil
}

// start performs the one-time startup sequence
func (c *Coordinator) start(ctx context.Context) error {
	if c.opts.Shortcuts != nil {
		err := c.opts.Shortcuts.Register(DevToolsShortcut, func() {
			c.post(c.openDevTools)
		})
		if err != nil {
			c.logger.Warn("register devtools shortcut", "shortcut", DevToolsShortcut, "error", err)
		}
	}

	if c.opts.Policy.EnableAutostart && c.opts.Autostart != nil {
		if err := c.opts.Autostart.Enable(); err != nil {
			c.logger.Warn("enable autostart", "error", err)
		}
	}

	if c.opts.Policy.InstallDevTooling && c.opts.DevTooling != nil {
		if err := c.opts.DevTooling(ctx); err != nil {
			c.logger.Warn("development tooling failed", "error", err)
		}
	}

	if c.opts.Broadcast != nil {
		if _, err := c.bus.Subscribe(c.forward); err != nil {
			return fmt.Errorf("subscribe broadcaster: %w", err)
		}
	}

	if _, _, err := c.opts.Windows.Create(c.winCtx); err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	c.syncWindow()

	if c.opts.Store != nil {
		if _, err := c.bus.Subscribe(c.storeHandler, events.AppShutdown, events.AppClose); err != nil {
			return fmt.Errorf("subscribe store: %w", err)
		}
		if err := c.opts.Store.StartListening(c.opts.IPC); err != nil {
			return fmt.Errorf("start data store: %w", err)
		}
	}

	c.registerHandlers()

	if c.relay != nil {
		if err := c.relay.Start(ctx); err != nil {
			c.logger.Warn("power signals unavailable", "error", err)
		}
	}
	return nil
}

func (c *Coordinator) registerHandlers() {
	if c.opts.IPC == nil {
		return
	}
	if c.bridge != nil {
		c.bridge.Register(c.opts.IPC)
	}
	instance.Serve(c.opts.IPC, c.secondInstance)
	c.opts.IPC.Handle(MethodActivate, c.handleActivate)
	c.opts.IPC.Handle(MethodStatus, func(context.Context, *ipc.Peer, json.RawMessage) (any, error) {
		return c.Status(), nil
	})
}

func (c *Coordinator) loop(ctx context.Context) {
	done := ctx.Done()
	for {
		select {
		case <-c.queue.ready:
			for _, fn := range c.queue.drain() {
				fn()
				if c.State() == StateTerminated {
					return
				}
			}
		case <-done:
			done = nil
			c.logger.Info("interrupted")
			c.requestShutdown(events.ReasonInterrupt)
		case <-c.opts.GracefulExit:
			c.gracefulExit()
		}

		if c.State() == StateTerminated {
			return
		}
	}
}

// requestShutdown is first-wins: only the trigger that finds the app ready
// publishes app-shutdown and terminates
func (c *Coordinator) requestShutdown(reason string) {
	if s := c.State(); s != StateReady {
		c.logger.Debug("shutdown request ignored", "reason", reason, "state", s)
		return
	}

	c.mu.Lock()
	c.reason = reason
	c.mu.Unlock()

	c.setState(StateShuttingDown)
	c.publish(events.AppShutdown, events.Shutdown{Reason: reason})
	c.terminate()
}

// requestClose tells the store to save without leaving ready
func (c *Coordinator) requestClose(reason string) {
	if s := c.State(); s != StateReady {
		c.logger.Debug("close request ignored", "reason", reason, "state", s)
		return
	}
	c.publish(events.AppClose, events.Close{Reason: reason})
}

// gracefulExit quits straight from ready without shutdown events
func (c *Coordinator) gracefulExit() {
	if s := c.State(); s != StateReady {
		return
	}
	c.logger.Info("graceful exit requested")

	c.mu.Lock()
	c.reason = "graceful-exit"
	c.mu.Unlock()

	c.terminate()
}

func (c *Coordinator) windowClosed(w window.Window) {
	if !c.opts.Windows.Release(w) {
		return
	}
	c.syncWindow()

	quit := c.opts.Policy.QuitOnAllWindowsClosed
	c.publish(events.AllWindowsClosed, events.WindowsClosed{QuitRequested: quit})
	if quit {
		c.requestShutdown(events.ReasonWindowsClosed)
	}
}

// secondInstance runs on an IPC goroutine and must not block
func (c *Coordinator) secondInstance(msg instance.SecondInstance) {
	c.post(func() {
		c.logger.Info("second instance launched", "pid", msg.PID, "args", msg.Args)
		c.publish(events.ActivationRequested, events.Activation{
			Source:     events.SourceSecondInstance,
			Args:       msg.Args,
			WorkingDir: msg.WorkingDir,
		})
		if c.State() == StateReady {
			c.opts.Windows.Reveal()
		}
	})
}

type activateResult struct {
	Created bool         `json:"created"`
	Window  window.State `json:"window"`
}

func (c *Coordinator) handleActivate(ctx context.Context, _ *ipc.Peer, _ json.RawMessage) (any, error) {
	type outcome struct {
		res activateResult
		err error
	}
	ch := make(chan outcome, 1)

	ok := c.post(func() {
		res, err := c.reactivate()
		ch <- outcome{res, err}
	})
	if !ok {
		return nil, ipc.Errorf(ipc.ErrCodeUnavailable, "application is exiting")
	}

	select {
	case out := <-ch:
		return out.res, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// reactivate recreates the window when none is live. Loop only.
func (c *Coordinator) reactivate() (activateResult, error) {
	if s := c.State(); s != StateReady {
		return activateResult{}, ipc.Errorf(ipc.ErrCodeUnavailable, "application is %s", s)
	}

	c.publish(events.ActivationRequested, events.Activation{Source: events.SourceReactivate})

	created, err := c.opts.Windows.Activate(c.winCtx)
	c.syncWindow()
	if err != nil {
		c.logger.Error("recreate window", "error", err)
		return activateResult{}, ipc.Errorf(ipc.ErrCodeInternalError, "create window: %v", err)
	}
	return activateResult{Created: created, Window: c.opts.Windows.State()}, nil
}

func (c *Coordinator) openDevTools() {
	if err := c.opts.Windows.OpenDevTools(window.DevToolsUndocked); err != nil {
		c.logger.Warn("open devtools", "error", err)
	}
}

func (c *Coordinator) storeHandler(e events.Event) {
	var err error
	switch e.Type {
	case events.AppShutdown:
		err = c.opts.Store.OnShutdown()
	case events.AppClose:
		err = c.opts.Store.OnClose()
	}
	if err != nil {
		c.logger.Error("data store flush", "event", e.Type, "error", err)
	}
}

func (c *Coordinator) forward(e events.Event) {
	c.opts.Broadcast.Broadcast(string(e.Type), e)
}

// terminate tears down in order and moves to terminated. Loop only.
func (c *Coordinator) terminate() {
	if err := c.opts.Windows.Close(); err != nil {
		c.logger.Warn("close window", "error", err)
	}
	c.syncWindow()

	if c.relay != nil {
		if err := c.relay.Stop(); err != nil {
			c.logger.Warn("stop power relay", "error", err)
		}
	}
	if c.opts.Shortcuts != nil {
		c.opts.Shortcuts.UnregisterAll()
	}

	c.queue.close()
	c.setState(StateTerminated)
}
