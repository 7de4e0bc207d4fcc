package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"nohands.dev/go/nohands/internal/logging"
)

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "debug", firstNonEmpty("", "debug", "info"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "2m05s", formatDuration(125*time.Second))
	assert.Equal(t, "1h30m", formatDuration(90*time.Minute))
	assert.Equal(t, "0s", formatDuration(-time.Second))
}

func TestFormatEntrySortsFields(t *testing.T) {
	line := formatEntry(logging.Entry{
		Timestamp: time.Now(),
		Level:     "INFO",
		Message:   "window created",
		Fields:    map[string]any{"url": "http://127.0.0.1/", "component": "window"},
	})

	assert.Contains(t, line, "window created")
	assert.Less(t, strings.Index(line, "component="), strings.Index(line, "url="))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range RootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"activate", "status", "idle", "logs", "autostart", "version"} {
		assert.True(t, names[want], want)
	}
}
