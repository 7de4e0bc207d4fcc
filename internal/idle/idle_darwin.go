//go:build darwin

package idle

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// NewQuerier reads HIDIdleTime from the IOHIDSystem registry entry
func NewQuerier() Querier {
	return QuerierFunc(func(ctx context.Context) (time.Duration, error) {
		out, err := exec.CommandContext(ctx, "ioreg", "-c", "IOHIDSystem", "-d", "4").Output()
		if err != nil {
			return 0, fmt.Errorf("ioreg: %w", err)
		}
		return ParseHIDIdleTime(string(out))
	})
}
