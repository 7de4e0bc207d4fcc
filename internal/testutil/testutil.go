// Package testutil provides helpers for tests that need real paths, locks
// and sockets
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"nohands.dev/go/nohands/internal/config"
	"nohands.dev/go/nohands/internal/instance"
	"nohands.dev/go/nohands/internal/ipc"
)

// Logger returns a logger that writes through t.Log, so output only shows
// for failing or verbose tests
func Logger(t *testing.T) *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Discard returns a logger for code that may still log after the test
// returns, where t.Log would panic
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// NewPaths points NOHANDS_CONFIG_DIR at a fresh directory and returns the
// resulting paths with directories created. The directory name is kept
// short so socket paths fit the platform limit.
func NewPaths(t *testing.T) *config.Paths {
	t.Helper()

	dir, err := os.MkdirTemp("", "nh")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	t.Setenv("NOHANDS_CONFIG_DIR", dir)

	paths, err := config.GetPaths()
	if err != nil {
		t.Fatalf("get paths: %v", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		t.Fatalf("create directories: %v", err)
	}
	return paths
}

// TestInstance is one simulated application process: a guard and an IPC
// server on shared paths
type TestInstance struct {
	Paths  *config.Paths
	Guard  *instance.Guard
	Server *ipc.Server
	t      *testing.T
}

// NewInstance creates an instance on paths. Several instances may share
// the same paths to play competing launches.
func NewInstance(t *testing.T, paths *config.Paths) *TestInstance {
	t.Helper()

	logger := Logger(t)
	ti := &TestInstance{
		Paths: paths,
		Guard: instance.New(instance.Options{
			AppID:      "nohands-test",
			LockPath:   paths.LockFile,
			SocketPath: paths.SocketPath,
			Logger:     logger,
		}),
		Server: ipc.NewServer(ipc.Options{Address: paths.SocketPath, Logger: logger}),
		t:      t,
	}
	t.Cleanup(func() {
		ti.Server.Stop()
		_ = ti.Guard.Release()
	})
	return ti
}

// Listen starts the IPC server; it stops when the test ends
func (ti *TestInstance) Listen() {
	ti.t.Helper()
	if err := ti.Server.Listen(context.Background()); err != nil {
		ti.t.Fatalf("listen on %s: %v", ti.Paths.SocketPath, err)
	}
}
