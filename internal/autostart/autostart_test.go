package autostart

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandLineQuotes(t *testing.T) {
	assert.Equal(t, "/usr/bin/nohands", commandLine("/usr/bin/nohands", nil))
	assert.Equal(t, `"C:\Program Files\nohands\nohands.exe" --hidden`,
		commandLine(`C:\Program Files\nohands\nohands.exe`, []string{"--hidden"}))
	assert.Equal(t, `/opt/nohands "a \"b\""`, commandLine("/opt/nohands", []string{`a "b"`}))
}
