//go:build linux

package power

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"
)

const (
	logindDest      = "org.freedesktop.login1"
	logindPath      = dbus.ObjectPath("/org/freedesktop/login1")
	logindInterface = "org.freedesktop.login1.Manager"

	signalPrepareForSleep    = logindInterface + ".PrepareForSleep"
	signalPrepareForShutdown = logindInterface + ".PrepareForShutdown"
)

// LogindMonitor listens to systemd-logind. It holds delay inhibitor locks
// so the host waits for us, up to logind's InhibitDelayMaxSec, before
// sleeping or powering off.
type LogindMonitor struct {
	who    string
	logger *slog.Logger

	mu         sync.Mutex
	conn       *dbus.Conn
	manager    dbus.BusObject
	sleepFD    int
	shutdownFD int
	signals    chan *dbus.Signal
	done       chan struct{}
	wg         sync.WaitGroup
}

// NewLogindMonitor connects to the system bus. It fails when there is no
// bus or no logind on it.
func NewLogindMonitor(who string, logger *slog.Logger) (*LogindMonitor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}

	manager := conn.Object(logindDest, logindPath)
	if _, err := manager.GetProperty(logindInterface + ".InhibitDelayMaxUSec"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("logind not available: %w", err)
	}

	return &LogindMonitor{
		who:        who,
		logger:     logger.With("component", "logind"),
		conn:       conn,
		manager:    manager,
		sleepFD:    -1,
		shutdownFD: -1,
	}, nil
}

func (m *LogindMonitor) Start(ctx context.Context, fn func(*Notification)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done != nil {
		return ErrStarted
	}

	for _, member := range []string{"PrepareForSleep", "PrepareForShutdown"} {
		if err := m.conn.AddMatchSignal(
			dbus.WithMatchObjectPath(logindPath),
			dbus.WithMatchInterface(logindInterface),
			dbus.WithMatchMember(member),
		); err != nil {
			return fmt.Errorf("match %s: %w", member, err)
		}
	}

	m.sleepFD = m.inhibit("sleep")
	m.shutdownFD = m.inhibit("shutdown")

	m.signals = make(chan *dbus.Signal, 8)
	m.conn.Signal(m.signals)
	m.done = make(chan struct{})

	signals, done := m.signals, m.done
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				m.dispatch(sig, fn)
			}
		}
	}()

	return nil
}

func (m *LogindMonitor) dispatch(sig *dbus.Signal, fn func(*Notification)) {
	if len(sig.Body) == 0 {
		return
	}
	active, ok := sig.Body[0].(bool)
	if !ok {
		return
	}

	switch sig.Name {
	case signalPrepareForSleep:
		if active {
			m.mu.Lock()
			held := m.sleepFD
			m.mu.Unlock()
			// the host sleeps once app-close has been handled
			fn(NewNotification(Suspend, "logind", nil).OnHandled(func() {
				m.releaseHeld(&m.sleepFD, held)
			}))
		} else {
			m.mu.Lock()
			if m.sleepFD < 0 {
				m.sleepFD = m.inhibit("sleep")
			}
			m.mu.Unlock()
			fn(NewNotification(Resume, "logind", nil))
		}

	case signalPrepareForShutdown:
		if !active {
			// shutdown was cancelled
			m.mu.Lock()
			if m.shutdownFD < 0 {
				m.shutdownFD = m.inhibit("shutdown")
			}
			m.mu.Unlock()
			return
		}
		n := NewNotification(Shutdown, "logind", nil)
		fn(n)
		if !n.DefaultPrevented() {
			m.release(&m.shutdownFD)
		}
		// otherwise the lock is held until Stop, once we have shut down
	}
}

// inhibit takes a delay lock; callers hold m.mu or have exclusive access
func (m *LogindMonitor) inhibit(what string) int {
	var fd dbus.UnixFD
	err := m.manager.Call(logindInterface+".Inhibit", 0,
		what, m.who, "save application state", "delay",
	).Store(&fd)
	if err != nil {
		m.logger.Warn("take inhibitor lock", "what", what, "error", err)
		return -1
	}
	m.logger.Debug("inhibitor lock taken", "what", what, "fd", fd)
	return int(fd)
}

func (m *LogindMonitor) release(fd *int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked(fd)
}

// releaseHeld releases *fd only if it is still the lock taken as held, so a
// late acknowledgement cannot drop a lock re-taken on resume
func (m *LogindMonitor) releaseHeld(fd *int, held int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if held < 0 || *fd != held {
		return
	}
	m.releaseLocked(fd)
}

func (m *LogindMonitor) releaseLocked(fd *int) {
	if *fd < 0 {
		return
	}
	if err := unix.Close(*fd); err != nil {
		m.logger.Warn("release inhibitor lock", "error", err)
	}
	*fd = -1
}

// Stop releases the inhibitor locks and the bus connection
func (m *LogindMonitor) Stop() error {
	m.mu.Lock()
	if m.done != nil {
		close(m.done)
		m.done = nil
		m.conn.RemoveSignal(m.signals)
	}
	m.mu.Unlock()

	m.wg.Wait()

	m.release(&m.sleepFD)
	m.release(&m.shutdownFD)

	return m.conn.Close()
}

// NewMonitor returns logind plus SIGTERM handling when the system bus is
// reachable, and the signal monitor with sleep detection otherwise.
// handleTerm is false when SIGTERM belongs to the development graceful
// exit.
func NewMonitor(appID string, handleTerm bool, logger *slog.Logger) Monitor {
	logind, err := NewLogindMonitor(fmt.Sprintf("%s (pid %d)", appID, os.Getpid()), logger)
	if err != nil {
		if logger != nil {
			logger.Info("logind unavailable, using signal monitor", "error", err)
		}
		return NewSignalMonitor(SignalOptions{HandleTerm: handleTerm, WatchSleep: true})
	}
	if !handleTerm {
		return logind
	}
	return Combine(logind, NewSignalMonitor(SignalOptions{HandleTerm: true}))
}
