//go:build !linux

package power

import "log/slog"

// NewMonitor returns the signal monitor with sleep detection. handleTerm
// is false when SIGTERM belongs to the development graceful exit.
func NewMonitor(_ string, handleTerm bool, _ *slog.Logger) Monitor {
	return NewSignalMonitor(SignalOptions{HandleTerm: handleTerm, WatchSleep: true})
}
