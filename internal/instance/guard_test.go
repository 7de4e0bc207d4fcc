package instance

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nohands.dev/go/nohands/internal/ipc"
)

func TestServeDeliversSecondInstance(t *testing.T) {
	s := ipc.NewServer(ipc.Options{})

	got := make(chan SecondInstance, 1)
	Serve(s, func(msg SecondInstance) { got <- msg })

	serverConn, clientConn := net.Pipe()
	go s.ServeConn(context.Background(), serverConn)
	c := ipc.NewClient(clientConn)
	defer c.Close()

	_, err := c.Call(context.Background(), MethodSecondInstance, SecondInstance{
		Args:       []string{"nohands", "--flag"},
		WorkingDir: "/tmp",
		PID:        4242,
	})
	require.NoError(t, err)

	msg := <-got
	assert.Equal(t, []string{"nohands", "--flag"}, msg.Args)
	assert.Equal(t, 4242, msg.PID)
}

func TestNotifyExistingGivesUpWithoutHolder(t *testing.T) {
	g := New(Options{
		AppID:          "nohands-test",
		LockPath:       filepath.Join(t.TempDir(), "nohands.lock"),
		SocketPath:     filepath.Join(t.TempDir(), "missing.sock"),
		NotifyAttempts: 2,
		NotifyBackoff:  time.Millisecond,
	})

	err := g.NotifyExisting(context.Background(), nil)
	assert.Error(t, err)
}

func TestReleaseWithoutAcquire(t *testing.T) {
	g := New(Options{AppID: "nohands-test", LockPath: filepath.Join(t.TempDir(), "nohands.lock")})
	assert.False(t, g.Held())
	assert.NoError(t, g.Release())
}
