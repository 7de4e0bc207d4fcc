package content

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nohands.dev/go/nohands/internal/events"
)

type fakeWS struct{ hits int }

func (f *fakeWS) ServeWebSocket(w http.ResponseWriter, _ *http.Request) {
	f.hits++
	w.WriteHeader(http.StatusTeapot)
}

func TestServesBundle(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>hi</h1>"), 0644))

	s := New(Options{BundleDir: dir})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hi")
}

func TestMissingBundle(t *testing.T) {
	s := New(Options{BundleDir: filepath.Join(t.TempDir(), "missing")})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/index.html", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutesIPCAndEvents(t *testing.T) {
	ws := &fakeWS{}
	bus := events.NewBus(nil, 0)
	require.NoError(t, bus.Publish(events.AppClose, events.Close{Reason: events.ReasonHostSuspend}))
	require.NoError(t, bus.Publish(events.HostResume, events.PowerSignal{Source: "test"}))

	s := New(Options{BundleDir: t.TempDir(), IPC: ws, Events: bus})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/ipc", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1, ws.hits)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/events?type=app-close", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []events.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, events.AppClose, got[0].Type)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/events?type=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartOnLoopback(t *testing.T) {
	s := New(Options{BundleDir: t.TempDir()})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Regexp(t, `^http://127\.0\.0\.1:\d+/$`, s.IndexURL())
	assert.Contains(t, s.IPCURL(), "ws://127.0.0.1:")

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestStartRefusesPublicAddress(t *testing.T) {
	s := New(Options{Listen: "0.0.0.0:0"})
	assert.Error(t, s.Start(context.Background()))
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name   string
		dev    string
		useDev bool
		want   string
	}{
		{"bundled", "", false, "http://127.0.0.1:4000/?ipc=ws%3A%2F%2F127.0.0.1%3A4000%2Fipc"},
		{"dev server", "http://localhost:8080/", true, "http://localhost:8080/?ipc=ws%3A%2F%2F127.0.0.1%3A4000%2Fipc"},
		{"dev url ignored", "http://localhost:8080/", false, "http://127.0.0.1:4000/?ipc=ws%3A%2F%2F127.0.0.1%3A4000%2Fipc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveURL(tt.dev, tt.useDev, "http://127.0.0.1:4000/", "ws://127.0.0.1:4000/ipc")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ResolveURL("file:///etc/passwd", true, "", "")
	assert.Error(t, err)
}
