//go:build !windows

package window

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nohands.dev/go/nohands/internal/ipc"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Broadcast(event string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestRendererExitClosesWindow(t *testing.T) {
	f := NewRendererFactory(RendererOptions{Command: []string{"true", "{url}"}})

	w, err := f.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, w.Load("http://127.0.0.1/"))

	select {
	case <-w.Closed():
	case <-time.After(5 * time.Second):
		t.Fatal("window did not close after renderer exit")
	}
}

func TestCloseStopsRenderer(t *testing.T) {
	events := &recorder{}
	f := NewRendererFactory(RendererOptions{
		Command:     []string{"sleep", "30"},
		StopTimeout: 2 * time.Second,
		Events:      events,
	})

	w, err := f.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, w.Load("http://127.0.0.1/"))
	require.NoError(t, w.Load("http://127.0.0.1/other"))

	require.NoError(t, w.Close())

	select {
	case <-w.Closed():
	default:
		t.Fatal("Close returned before the window closed")
	}

	assert.Equal(t, []string{EventLoad, EventClose}, events.Events())
	assert.Error(t, w.Load("http://127.0.0.1/"))
	assert.NoError(t, w.Close(), "closing twice is harmless")
}

func TestCloseBeforeLoad(t *testing.T) {
	f := NewRendererFactory(RendererOptions{Command: []string{"sleep", "30"}})
	w, err := f.Open(context.Background())
	require.NoError(t, err)

	require.NoError(t, w.Close())
	<-w.Closed()
}

func TestWindowStateMethod(t *testing.T) {
	events := &recorder{}
	f := NewRendererFactory(RendererOptions{Command: []string{"sleep", "30"}, Events: events})

	s := ipc.NewServer(ipc.Options{})
	f.Register(s)

	serverConn, clientConn := net.Pipe()
	go s.ServeConn(context.Background(), serverConn)
	c := ipc.NewClient(clientConn)
	defer c.Close()

	ctx := context.Background()
	_, err := c.Call(ctx, MethodState, nil)
	var ipcErr *ipc.Error
	require.ErrorAs(t, err, &ipcErr)
	assert.Equal(t, ipc.ErrCodeUnavailable, ipcErr.Code)

	m := NewManager(Options{Factory: f, URL: "http://127.0.0.1/index.html"})
	w, _, err := m.Create(ctx)
	require.NoError(t, err)
	defer m.Close()

	minimized := true
	var state DesiredState
	require.NoError(t, c.CallResult(ctx, MethodState, StateReport{Minimized: &minimized}, &state))
	assert.True(t, state.Maximized)
	assert.False(t, state.MenuShown)
	assert.Equal(t, "http://127.0.0.1/index.html", state.URL)
	assert.True(t, w.IsMinimized())

	assert.True(t, m.Reveal())
	assert.False(t, w.IsMinimized())
	assert.Equal(t, []string{EventMaximize, EventMenu, EventRestore, EventCenter, EventFocus}, events.Events())
}
