package window

import (
	"context"
	"errors"
	"sync"
)

type fakeWindow struct {
	mu        sync.Mutex
	calls     []string
	minimized bool
	loadErr   error
	closed    chan struct{}
	once      sync.Once
}

func newFakeWindow() *fakeWindow {
	return &fakeWindow{closed: make(chan struct{})}
}

func (w *fakeWindow) record(call string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, call)
	return nil
}

func (w *fakeWindow) Calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.calls...)
}

func (w *fakeWindow) Load(url string) error {
	_ = w.record("load " + url)
	return w.loadErr
}
func (w *fakeWindow) Maximize() error   { return w.record("maximize") }
func (w *fakeWindow) RemoveMenu() error { return w.record("remove-menu") }
func (w *fakeWindow) OpenDevTools(mode DevToolsMode) error {
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
	_ = w.record("close")
	w.once.Do(func() { close(w.closed) })
	return nil
}
func (w *fakeWindow) Closed() <-chan struct{} { return w.closed }

type fakeFactory struct {
	mu      sync.Mutex
	windows []*fakeWindow
	err     error
	loadErr error
}

func (f *fakeFactory) Open(context.Context) (Window, error) {
	if f.err != nil {
		return nil, f.err
	}
	w := newFakeWindow()
	w.loadErr = f.loadErr

	f.mu.Lock()
	f.windows = append(f.windows, w)
	f.mu.Unlock()
	return w, nil
}

var errFactory = errors.New("no display")
