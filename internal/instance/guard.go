// Package instance makes sure only one copy of the application runs per
// user session, and hands later launches over to the running one.
package instance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"nohands.dev/go/nohands/internal/ipc"
)

// MethodSecondInstance is the IPC method a later launch calls on the holder
const MethodSecondInstance = "second-instance"

var (
	// ErrAlreadyRunning is returned by Acquire when another process holds the lock
	ErrAlreadyRunning = errors.New("another instance is already running")
	// ErrNoHolder is returned by HolderPID when the lock is free
	ErrNoHolder = errors.New("no instance holds the lock")
)

// Options configures a Guard
type Options struct {
	// AppID names the Windows mutex
	AppID string
	// LockPath is the lock file on Unix
	LockPath string
	// SocketPath is where the holder's IPC server listens
	SocketPath string

	// NotifyAttempts bounds delivery retries in NotifyExisting
	NotifyAttempts int
	NotifyBackoff  time.Duration

	Logger *slog.Logger
}

// Guard owns the process-wide instance lock
type Guard struct {
	opts   Options
	logger *slog.Logger

	mu   sync.Mutex
	lock locker
}

// locker is the platform lock handle
type locker interface {
	release() error
}

// New creates a guard; nothing is locked until Acquire
func New(opts Options) *Guard {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NotifyAttempts <= 0 {
		opts.NotifyAttempts = 15
	}
	if opts.NotifyBackoff <= 0 {
		opts.NotifyBackoff = 200 * time.Millisecond
	}
	return &Guard{
		opts:   opts,
		logger: opts.Logger.With("component", "instance"),
	}
}

// Acquire takes the lock without waiting. It returns ErrAlreadyRunning
// when another process holds it. Acquiring twice is a no-op.
func (g *Guard) Acquire() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lock != nil {
		return nil
	}

	lock, err := acquire(g.opts)
	if err != nil {
		return err
	}
	g.lock = lock

	g.logger.Debug("instance lock acquired", "pid", os.Getpid())
	return nil
}

// Held reports whether this process holds the lock
func (g *Guard) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lock != nil
}

// Release gives up the lock
func (g *Guard) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lock == nil {
		return nil
	}
	err := g.lock.release()
	g.lock = nil
	if err != nil {
		return fmt.Errorf("release instance lock: %w", err)
	}
	return nil
}

// SecondInstance describes a launch that found the lock taken
type SecondInstance struct {
	Args       []string `json:"args"`
	WorkingDir string   `json:"working_dir"`
	PID        int      `json:"pid"`
}

// NotifyExisting tells the lock holder that another launch happened. The
// holder may still be starting, so delivery is retried until
// NotifyAttempts run out; the lock itself is never retried.
func (g *Guard) NotifyExisting(ctx context.Context, args []string) error {
	wd, _ := os.Getwd()
	msg := SecondInstance{Args: args, WorkingDir: wd, PID: os.Getpid()}

	var lastErr error
	for attempt := 1; attempt <= g.opts.NotifyAttempts; attempt++ {
		lastErr = g.notify(ctx, msg)
		if lastErr == nil {
			return nil
		}

		// method-not-found means the holder is listening but has not
		// registered second-instance yet; any other answer is final
		var ipcErr *ipc.Error
		if errors.As(lastErr, &ipcErr) && ipcErr.Code != ipc.ErrCodeMethodNotFound {
			break
		}

		g.logger.Debug("second-instance delivery failed", "attempt", attempt, "error", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.opts.NotifyBackoff):
		}
	}
	return fmt.Errorf("notify running instance: %w", lastErr)
}

func (g *Guard) notify(ctx context.Context, msg SecondInstance) error {
	client, err := ipc.ConnectTo(g.opts.SocketPath)
	if err != nil {
		return err
	}
	defer client.Close()

	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = client.Call(callCtx, MethodSecondInstance, msg)
	return err
}

// Serve registers the second-instance method. fn must not block.
func Serve(r ipc.Registrar, fn func(SecondInstance)) {
	r.Handle(MethodSecondInstance, func(_ context.Context, _ *ipc.Peer, params json.RawMessage) (any, error) {
		var msg SecondInstance
		if err := ipc.DecodeParams(params, &msg); err != nil {
			return nil, err
		}
		fn(msg)
		return map[string]bool{"delivered": true}, nil
	})
}
