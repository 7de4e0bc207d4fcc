package power

import (
	"log/slog"
	"sync"
	"time"
)

// SleepWatcher notices that the host slept by looking for gaps between
// ticks. It can only tell after the fact.
type SleepWatcher struct {
	interval  time.Duration
	threshold time.Duration
	onWake    func(gap time.Duration)

	mu       sync.Mutex
	ticker   *time.Ticker
	lastTick time.Time
	done     chan struct{}
}

// NewSleepWatcher creates a watcher ticking every second that reports gaps
// over five seconds
func NewSleepWatcher(onWake func(gap time.Duration)) *SleepWatcher {
	return &SleepWatcher{
		interval:  time.Second,
		threshold: 5 * time.Second,
		onWake:    onWake,
	}
}

// Start begins watching; starting twice is a no-op
func (w *SleepWatcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done != nil {
		return
	}

	w.ticker = time.NewTicker(w.interval)
	w.lastTick = time.Now()
	w.done = make(chan struct{})

	ticker, done := w.ticker, w.done
	go func() {
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				w.check(now)
			}
		}
	}()
}

func (w *SleepWatcher) check(now time.Time) {
	w.mu.Lock()
	// strip the monotonic reading; it does not advance while suspended on
	// every platform
	gap := now.Round(0).Sub(w.lastTick.Round(0))
	w.lastTick = now
	w.mu.Unlock()

	if gap > w.threshold {
		slog.Info("detected system wake", "gap", gap)
		if w.onWake != nil {
			w.onWake(gap)
		}
	}
}

// Stop stops watching
func (w *SleepWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done == nil {
		return
	}
	w.ticker.Stop()
	close(w.done)
	w.done = nil
}
