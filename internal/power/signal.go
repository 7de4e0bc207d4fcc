package power

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// SignalOptions configures SignalMonitor
type SignalOptions struct {
	// HandleTerm treats SIGTERM as a host shutdown. On Windows the console
	// shutdown and logoff events arrive as SIGTERM too.
	HandleTerm bool
	// WatchSleep reports a suspend/resume pair after a detected wake
	WatchSleep bool
}

// SignalMonitor is the portable monitor built from process signals and a
// tick-gap sleep detector
type SignalMonitor struct {
	opts SignalOptions

	mu      sync.Mutex
	sigCh   chan os.Signal
	watcher *SleepWatcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewSignalMonitor creates a monitor
func NewSignalMonitor(opts SignalOptions) *SignalMonitor {
	return &SignalMonitor{opts: opts}
}

func (m *SignalMonitor) Start(ctx context.Context, fn func(*Notification)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done != nil {
		return ErrStarted
	}
	m.done = make(chan struct{})

	if m.opts.HandleTerm {
		// once notified, SIGTERM no longer terminates the process; that is
		// the prevented default
		m.sigCh = make(chan os.Signal, 1)
		signal.Notify(m.sigCh, syscall.SIGTERM)

		sigCh, done := m.sigCh, m.done
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for {
				select {
				case <-done:
					return
				case <-ctx.Done():
					return
				case <-sigCh:
					fn(NewNotification(Shutdown, "signal", nil))
				}
			}
		}()
	}

	if m.opts.WatchSleep {
		m.watcher = NewSleepWatcher(func(time.Duration) {
			fn(NewNotification(Suspend, "sleepwatch", nil))
			fn(NewNotification(Resume, "sleepwatch", nil))
		})
		m.watcher.Start()
	}

	return nil
}

func (m *SignalMonitor) Stop() error {
	m.mu.Lock()
	if m.done == nil {
		m.mu.Unlock()
		return nil
	}
	if m.sigCh != nil {
		signal.Stop(m.sigCh)
		m.sigCh = nil
	}
	if m.watcher != nil {
		m.watcher.Stop()
		m.watcher = nil
	}
	close(m.done)
	m.done = nil
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}
