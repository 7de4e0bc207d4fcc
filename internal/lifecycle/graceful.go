package lifecycle

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

// WatchGracefulExit returns a channel closed when the development parent
// asks the app to quit. It returns nil for GracefulExitNone, which blocks
// forever in a select.
func WatchGracefulExit(ctx context.Context, mode GracefulExitMode, stdin io.Reader) <-chan struct{} {
	switch mode {
	case GracefulExitSignal:
		return watchSignal(ctx)
	case GracefulExitMessage:
		if stdin == nil {
			stdin = os.Stdin
		}
		return watchMessage(stdin)
	default:
		return nil
	}
}

func watchSignal(ctx context.Context) <-chan struct{} {
	out := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			close(out)
		case <-ctx.Done():
		}
	}()
	return out
}

// watchMessage reads stdin until the graceful-exit line. The reader cannot
// be interrupted, so the goroutine lives until stdin closes.
func watchMessage(r io.Reader) <-chan struct{} {
	out := make(chan struct{})

	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if strings.TrimSpace(scanner.Text()) == gracefulExitLine {
				close(out)
				return
			}
		}
	}()
	return out
}
