// Package idle answers "how long has the user been idle" for the renderer.
package idle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"nohands.dev/go/nohands/internal/events"
	"nohands.dev/go/nohands/internal/ipc"
)

// MethodGetIdleTime is the request and reply channel name
const MethodGetIdleTime = "get-idle-time"

// DefaultQueryTimeout bounds one host query
const DefaultQueryTimeout = 2 * time.Second

// ErrUnsupported is returned where no idle source exists
var ErrUnsupported = errors.New("idle time is not supported on this platform")

// Querier reads the host's time since last user input
type Querier interface {
	IdleTime(ctx context.Context) (time.Duration, error)
}

// QuerierFunc adapts a function to Querier
type QuerierFunc func(ctx context.Context) (time.Duration, error)

func (f QuerierFunc) IdleTime(ctx context.Context) (time.Duration, error) {
	return f(ctx)
}

// First tries each querier in order and returns the first answer
func First(queriers ...Querier) Querier {
	return QuerierFunc(func(ctx context.Context) (time.Duration, error) {
		var errs []error
		for _, q := range queriers {
			d, err := q.IdleTime(ctx)
			if err == nil {
				return d, nil
			}
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
		if len(errs) == 0 {
			return 0, ErrUnsupported
		}
		return 0, errors.Join(errs...)
	})
}

// Emitter publishes internal events
type Emitter interface {
	Emit(t events.Type, payload any)
}

// Reply is the answer on the get-idle-time channel
type Reply struct {
	Channel     string `json:"channel"`
	IdleSeconds int64  `json:"idle_seconds"`
}

// Bridge serves get-idle-time requests from the host
type Bridge struct {
	querier Querier
	emit    Emitter
	timeout time.Duration
	logger  *slog.Logger
}

// NewBridge creates a bridge; emit may be nil
func NewBridge(q Querier, emit Emitter, timeout time.Duration, logger *slog.Logger) *Bridge {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		querier: q,
		emit:    emit,
		timeout: timeout,
		logger:  logger.With("component", "idle"),
	}
}

// Register installs the get-idle-time method. Every request queries the
// host afresh and is answered on its own request ID.
func (b *Bridge) Register(r ipc.Registrar) {
	r.Handle(MethodGetIdleTime, func(ctx context.Context, _ *ipc.Peer, _ json.RawMessage) (any, error) {
		if b.emit != nil {
			b.emit.Emit(events.IdleTimeRequested, events.IdleRequest{RequestID: ipc.RequestID(ctx)})
		}
		return b.Query(ctx)
	})
}

// Query asks the host once
func (b *Bridge) Query(ctx context.Context) (Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	d, err := b.querier.IdleTime(ctx)
	if err != nil {
		b.logger.Warn("idle time query failed", "error", err)
		return Reply{}, ipc.Errorf(ipc.ErrCodeUnavailable, "idle time unavailable: %v", err)
	}

	return Reply{Channel: MethodGetIdleTime, IdleSeconds: Seconds(d)}, nil
}

// Seconds truncates to whole non-negative seconds
func Seconds(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// parseMillis reads a decimal millisecond count such as xprintidle prints
func parseMillis(s string) (time.Duration, error) {
	var ms int64
	if _, err := fmt.Sscanf(s, "%d", &ms); err != nil {
		return 0, fmt.Errorf("parse idle milliseconds %q: %w", s, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
