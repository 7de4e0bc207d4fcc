package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"nohands.dev/go/nohands/internal/ipc"
	"nohands.dev/go/nohands/internal/power"
	"nohands.dev/go/nohands/internal/window"
)

// recorder collects startup calls in order
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeGuard bool

func (g fakeGuard) Held() bool { return bool(g) }

type fakeWindow struct {
	mu        sync.Mutex
	calls     []string
	minimized bool
	closed    chan struct{}
	once      sync.Once
}

func newFakeWindow() *fakeWindow {
	return &fakeWindow{closed: make(chan struct{})}
}

func (w *fakeWindow) record(s string) error {
	w.mu.Lock()
	w.calls = append(w.calls, s)
	w.mu.Unlock()
	return nil
}

func (w *fakeWindow) Calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.calls...)
}

func (w *fakeWindow) Load(url string) error { return w.record("load " + url) }
func (w *fakeWindow) Maximize() error       { return w.record("maximize") }
func (w *fakeWindow) RemoveMenu() error     { return w.record("remove-menu") }
func (w *fakeWindow) OpenDevTools(mode window.DevToolsMode) error {
	return w.record("devtools " + string(mode))
}
func (w *fakeWindow) IsMinimized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.minimized
}
func (w *fakeWindow) Restore() error {
	w.mu.Lock()
	w.minimized = false
	w.mu.Unlock()
	return w.record("restore")
}
func (w *fakeWindow) Center() error { return w.record("center") }
func (w *fakeWindow) Focus() error  { return w.record("focus") }
func (w *fakeWindow) Close() error {
	w.once.Do(func() { close(w.closed) })
	return nil
}
func (w *fakeWindow) Closed() <-chan struct{} { return w.closed }

type fakeFactory struct {
	rec *recorder
	err error

	mu      sync.Mutex
	windows []*fakeWindow
}

func (f *fakeFactory) Open(context.Context) (window.Window, error) {
	f.rec.add("window")
	if f.err != nil {
		return nil, f.err
	}
	w := newFakeWindow()
	f.mu.Lock()
	f.windows = append(f.windows, w)
	f.mu.Unlock()
	return w, nil
}

func (f *fakeFactory) last() *fakeWindow {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.windows) == 0 {
		return nil
	}
	return f.windows[len(f.windows)-1]
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.windows)
}

type fakeStore struct {
	rec *recorder

	mu        sync.Mutex
	listening bool
	closes    int
	shutdowns int
}

func (s *fakeStore) StartListening(ipc.Registrar) error {
	s.rec.add("store")
	s.mu.Lock()
	s.listening = true
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) OnClose() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) OnShutdown() error {
	s.mu.Lock()
	s.shutdowns++
	s.listening = false
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) counts() (closes, shutdowns int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes, s.shutdowns
}

type fakeMonitor struct {
	rec *recorder

	mu      sync.Mutex
	fn      func(*power.Notification)
	stopped bool
}

func (m *fakeMonitor) Start(_ context.Context, fn func(*power.Notification)) error {
	m.rec.add("power")
	m.mu.Lock()
	m.fn = fn
	m.mu.Unlock()
	return nil
}

func (m *fakeMonitor) Stop() error {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	return nil
}

func (m *fakeMonitor) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func (m *fakeMonitor) fire(kind power.Kind) *power.Notification {
	return m.fireNotification(power.NewNotification(kind, "test", nil))
}

func (m *fakeMonitor) fireNotification(n *power.Notification) *power.Notification {
	m.mu.Lock()
	fn := m.fn
	m.mu.Unlock()

	fn(n)
	return n
}

type fakeShortcuts struct {
	rec *recorder
	err error

	mu           sync.Mutex
	handlers     map[string]func()
	unregistered bool
}

func (s *fakeShortcuts) Register(accel string, fn func()) error {
	s.rec.add("shortcut")
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		s.handlers = make(map[string]func())
	}
	s.handlers[accel] = fn
	return nil
}

func (s *fakeShortcuts) UnregisterAll() {
	s.mu.Lock()
	s.unregistered = true
	s.mu.Unlock()
}

func (s *fakeShortcuts) press(accel string) {
	s.mu.Lock()
	fn := s.handlers[accel]
	s.mu.Unlock()
	fn()
}

type fakeAutostart struct {
	rec *recorder
	err error
}

func (a *fakeAutostart) Enable() error {
	a.rec.add("autostart")
	return a.err
}

// registrar stands in for the IPC server
type registrar struct {
	mu       sync.Mutex
	handlers map[string]ipc.HandlerFunc
}

func newRegistrar() *registrar {
	return &registrar{handlers: make(map[string]ipc.HandlerFunc)}
}

func (r *registrar) Handle(method string, h ipc.HandlerFunc) {
	r.mu.Lock()
	r.handlers[method] = h
	r.mu.Unlock()
}

func (r *registrar) has(method string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handlers[method]
	return ok
}

func (r *registrar) call(method string, params any) (any, error) {
	r.mu.Lock()
	h, ok := r.handlers[method]
	r.mu.Unlock()
	if !ok {
		return nil, errors.New("no handler for " + method)
	}

	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		raw = data
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return h(ctx, nil, raw)
}

type broadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *broadcaster) Broadcast(event string, _ any) {
	b.mu.Lock()
	b.events = append(b.events, event)
	b.mu.Unlock()
}

func (b *broadcaster) list() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}
