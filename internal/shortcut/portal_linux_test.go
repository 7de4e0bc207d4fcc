//go:build linux

package shortcut

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortalTrigger(t *testing.T) {
	tests := map[string]string{
		"CommandOrControl+Shift+J": "CTRL+SHIFT+j",
		"Super+Alt+F5":             "LOGO+ALT+F5",
		"Ctrl+Enter":               "CTRL+Return",
		"Space":                    "space",
		"Shift+7":                  "SHIFT+7",
	}
	for in, want := range tests {
		acc, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, PortalTrigger(acc), in)
	}
}

func TestPortalToken(t *testing.T) {
	tok := portalToken()
	assert.Regexp(t, `^[A-Za-z0-9_]+$`, tok)
	assert.NotEqual(t, tok, portalToken())
}

func TestRegisterWithoutSessionBusFails(t *testing.T) {
	t.Setenv("DISPLAY", "")
	t.Setenv("DBUS_SESSION_BUS_ADDRESS", "unix:path=/nonexistent/nohands-test-bus")

	m := NewManager(nil)
	err := m.Register("CommandOrControl+Shift+J", func() {})
	assert.ErrorContains(t, err, "session bus")
	assert.False(t, m.Registered("CommandOrControl+Shift+J"))

	m.UnregisterAll()
}
