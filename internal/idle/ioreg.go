package idle

import (
	"bufio"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ParseHIDIdleTime extracts HIDIdleTime (nanoseconds) from
// `ioreg -c IOHIDSystem` output
func ParseHIDIdleTime(out string) (time.Duration, error) {
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.Index(line, `"HIDIdleTime"`)
		if idx < 0 {
			continue
		}
		rest := line[idx+len(`"HIDIdleTime"`):]
		eq := strings.Index(rest, "=")
		if eq < 0 {
			continue
		}
		ns, err := strconv.ParseInt(strings.TrimSpace(rest[eq+1:]), 10, 64)
		if err != nil {
			return 0, err
		}
		return time.Duration(ns), nil
	}
	return 0, errors.New("HIDIdleTime not found")
}
