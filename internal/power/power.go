// Package power relays host suspend, resume and shutdown notifications
// into internal events.
package power

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"nohands.dev/go/nohands/internal/events"
)

// Kind of host power notification
type Kind string

const (
	Suspend  Kind = "suspend"
	Resume   Kind = "resume"
	Shutdown Kind = "shutdown"
)

// Notification is one host power notification. A monitor that can delay
// the host action passes a non-nil prevent func.
type Notification struct {
	Kind   Kind
	Source string

	prevent   func()
	prevented atomic.Bool

	handled     func()
	handledOnce sync.Once
}

// NewNotification builds a notification; prevent may be nil
func NewNotification(kind Kind, source string, prevent func()) *Notification {
	return &Notification{Kind: kind, Source: source, prevent: prevent}
}

// PreventDefault asks the host to hold off its default action
func (n *Notification) PreventDefault() {
	if n.prevented.Swap(true) {
		return
	}
	if n.prevent != nil {
		n.prevent()
	}
}

// DefaultPrevented reports whether PreventDefault was called
func (n *Notification) DefaultPrevented() bool {
	return n.prevented.Load()
}

// OnHandled sets fn to run once the app has finished reacting to n
func (n *Notification) OnHandled(fn func()) *Notification {
	n.handled = fn
	return n
}

// Handled runs the OnHandled func at most once
func (n *Notification) Handled() {
	n.handledOnce.Do(func() {
		if n.handled != nil {
			n.handled()
		}
	})
}

// Monitor delivers host power notifications until stopped
type Monitor interface {
	Start(ctx context.Context, fn func(*Notification)) error
	Stop() error
}

// Emitter publishes internal events
type Emitter interface {
	Emit(t events.Type, payload any)
}

// AckEmitter is an Emitter that can report when an event has been fully
// handled. done may also run if the event is dropped.
type AckEmitter interface {
	Emitter
	EmitAck(t events.Type, payload any, done func())
}

// ErrStarted is returned when a relay or monitor is started twice
var ErrStarted = errors.New("already started")

// Relay maps power notifications to events:
//
//	suspend  -> host-suspend, app-close
//	resume   -> host-resume
//	shutdown -> host-shutdown, app-shutdown (default prevented first)
type Relay struct {
	monitor Monitor
	emit    Emitter
	logger  *slog.Logger

	mu      sync.Mutex
	started bool
}

// NewRelay creates a relay
func NewRelay(monitor Monitor, emit Emitter, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		monitor: monitor,
		emit:    emit,
		logger:  logger.With("component", "power"),
	}
}

// Start subscribes to the monitor
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrStarted
	}
	if err := r.monitor.Start(ctx, r.Handle); err != nil {
		return err
	}
	r.started = true
	return nil
}

// Handle relays a single notification
func (r *Relay) Handle(n *Notification) {
	signal := events.PowerSignal{Source: n.Source}

	r.logger.Info("host power notification", "kind", n.Kind, "source", n.Source)

	switch n.Kind {
	case Suspend:
		r.emit.Emit(events.HostSuspend, signal)
		r.emitAck(events.AppClose, events.Close{Reason: events.ReasonHostSuspend}, n.Handled)
	case Resume:
		r.emit.Emit(events.HostResume, signal)
		n.Handled()
	case Shutdown:
		n.PreventDefault()
		r.emit.Emit(events.HostShutdown, signal)
		r.emitAck(events.AppShutdown, events.Shutdown{Reason: events.ReasonHostShutdown}, n.Handled)
	default:
		r.logger.Warn("unknown power notification", "kind", n.Kind)
		n.Handled()
	}
}

func (r *Relay) emitAck(t events.Type, payload any, done func()) {
	if ae, ok := r.emit.(AckEmitter); ok {
		ae.EmitAck(t, payload, done)
		return
	}
	r.emit.Emit(t, payload)
	done()
}

// Stop stops the monitor, releasing anything it holds
func (r *Relay) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return nil
	}
	r.started = false
	return r.monitor.Stop()
}

// multiMonitor fans several monitors into one callback
type multiMonitor []Monitor

// Combine merges monitors; notifications from all of them reach fn
func Combine(monitors ...Monitor) Monitor {
	if len(monitors) == 1 {
		return monitors[0]
	}
	return multiMonitor(monitors)
}

func (m multiMonitor) Start(ctx context.Context, fn func(*Notification)) error {
	for i, mon := range m {
		if err := mon.Start(ctx, fn); err != nil {
			for _, started := range m[:i] {
				_ = started.Stop()
			}
			return err
		}
	}
	return nil
}

func (m multiMonitor) Stop() error {
	var errs []error
	for _, mon := range m {
		if err := mon.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
