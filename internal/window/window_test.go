package window

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSetsUpWindow(t *testing.T) {
	f := &fakeFactory{}
	m := NewManager(Options{Factory: f, URL: "http://127.0.0.1:1234/index.html"})

	assert.Equal(t, StateNone, m.State())

	w, created, err := m.Create(context.Background())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StateCreated, m.State())
	assert.Same(t, w, m.Current())

	assert.Equal(t, []string{"maximize", "remove-menu", "load http://127.0.0.1:1234/index.html"}, f.windows[0].Calls())
}

func TestCreateOpensDockedDevTools(t *testing.T) {
	f := &fakeFactory{}
	m := NewManager(Options{Factory: f, URL: "http://localhost:8080", OpenDevTools: true})

	_, _, err := m.Create(context.Background())
	require.NoError(t, err)
	assert.Contains(t, f.windows[0].Calls(), "devtools docked")
}

func TestCreateWithLiveWindowRefocuses(t *testing.T) {
	f := &fakeFactory{}
	m := NewManager(Options{Factory: f})

	first, _, err := m.Create(context.Background())
	require.NoError(t, err)

	second, created, err := m.Create(context.Background())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, first, second)
	assert.Len(t, f.windows, 1)
	assert.Equal(t, "focus", f.windows[0].Calls()[len(f.windows[0].Calls())-1])
	assert.Equal(t, 1, m.Created())
}

func TestCreateFailures(t *testing.T) {
	m := NewManager(Options{})
	_, _, err := m.Create(context.Background())
	assert.ErrorIs(t, err, ErrNoFactory)

	m = NewManager(Options{Factory: &fakeFactory{err: errFactory}})
	_, _, err = m.Create(context.Background())
	assert.ErrorIs(t, err, errFactory)
	assert.Nil(t, m.Current())

	f := &fakeFactory{loadErr: errFactory}
	m = NewManager(Options{Factory: f})
	_, _, err = m.Create(context.Background())
	assert.ErrorIs(t, err, errFactory)
	assert.Nil(t, m.Current())
	assert.Contains(t, f.windows[0].Calls(), "close")
}

func TestClosedWindowIsReleasedAndRecreated(t *testing.T) {
	f := &fakeFactory{}
	m := NewManager(Options{Factory: f})

	closed := make(chan Window, 1)
	m.OnClosed(func(w Window) { closed <- w })

	w, _, err := m.Create(context.Background())
	require.NoError(t, err)

	// the user closes the window
	f.windows[0].once.Do(func() { close(f.windows[0].closed) })

	select {
	case got := <-closed:
		assert.True(t, m.Release(got))
	case <-time.After(time.Second):
		t.Fatal("close not reported")
	}

	assert.Nil(t, m.Current())
	assert.Equal(t, StateDestroyed, m.State())
	assert.False(t, m.Release(w), "second release is ignored")

	created, err := m.Activate(context.Background())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StateCreated, m.State())
	assert.Len(t, f.windows, 2)
}

func TestActivateWithLiveWindowIsNoop(t *testing.T) {
	f := &fakeFactory{}
	m := NewManager(Options{Factory: f})

	_, _, err := m.Create(context.Background())
	require.NoError(t, err)

	created, err := m.Activate(context.Background())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, f.windows, 1)
}

func TestReveal(t *testing.T) {
	f := &fakeFactory{}
	m := NewManager(Options{Factory: f})

	assert.False(t, m.Reveal(), "no window, nothing to reveal")
	assert.Empty(t, f.windows)

	_, _, err := m.Create(context.Background())
	require.NoError(t, err)
	w := f.windows[0]

	w.minimized = true
	assert.True(t, m.Reveal())
	calls := w.Calls()
	assert.Equal(t, []string{"restore", "center", "focus"}, calls[len(calls)-3:])

	assert.True(t, m.Reveal())
	calls = w.Calls()
	assert.Equal(t, []string{"center", "focus"}, calls[len(calls)-2:])
	assert.NotEqual(t, "restore", calls[len(calls)-3])
}

func TestCloseDropsReferenceBeforeWatcher(t *testing.T) {
	f := &fakeFactory{}
	m := NewManager(Options{Factory: f})

	closed := make(chan Window, 1)
	m.OnClosed(func(w Window) { closed <- w })

	_, _, err := m.Create(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Close())
	assert.Nil(t, m.Current())

	got := <-closed
	assert.False(t, m.Release(got), "closing on purpose is not a user close")
}

func TestOpenDevToolsWithoutWindow(t *testing.T) {
	m := NewManager(Options{Factory: &fakeFactory{}})
	assert.NoError(t, m.OpenDevTools(DevToolsUndocked))
}

func TestExpandCommand(t *testing.T) {
	got := ExpandCommand(
		[]string{"chromium", "--app={url}", "--user-data-dir={profile}"},
		"http://127.0.0.1:5000/index.html",
		"/home/me/.config/nohands/profile",
	)
	assert.Equal(t, []string{
		"chromium",
		"--app=http://127.0.0.1:5000/index.html",
		"--user-data-dir=/home/me/.config/nohands/profile",
	}, got)
}
