//go:build linux

package idle

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

// NewQuerier returns the host idle source: GNOME's Mutter idle monitor,
// then the freedesktop screensaver, then xprintidle
func NewQuerier() Querier {
	return First(
		QuerierFunc(mutterIdle),
		QuerierFunc(screenSaverIdle),
		QuerierFunc(xprintidle),
	)
}

func mutterIdle(ctx context.Context) (time.Duration, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return 0, fmt.Errorf("session bus: %w", err)
	}

	var ms uint64
	err = conn.Object("org.gnome.Mutter.IdleMonitor", "/org/gnome/Mutter/IdleMonitor/Core").
		CallWithContext(ctx, "org.gnome.Mutter.IdleMonitor.GetIdletime", 0).
		Store(&ms)
	if err != nil {
		return 0, fmt.Errorf("mutter idle monitor: %w", err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// screenSaverIdle uses the KDE/freedesktop screensaver, which reports
// milliseconds
func screenSaverIdle(ctx context.Context) (time.Duration, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return 0, fmt.Errorf("session bus: %w", err)
	}

	var ms uint32
	err = conn.Object("org.freedesktop.ScreenSaver", "/org/freedesktop/ScreenSaver").
		CallWithContext(ctx, "org.freedesktop.ScreenSaver.GetSessionIdleTime", 0).
		Store(&ms)
	if err != nil {
		return 0, fmt.Errorf("screensaver idle time: %w", err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func xprintidle(ctx context.Context) (time.Duration, error) {
	out, err := exec.CommandContext(ctx, "xprintidle").Output()
	if err != nil {
		return 0, fmt.Errorf("xprintidle: %w", err)
	}
	return parseMillis(strings.TrimSpace(string(out)))
}
