// Package devserver holds the development-only startup step: waiting for the
// frontend dev server to answer before the window loads it.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrNoURL is returned when no dev server URL is configured
var ErrNoURL = errors.New("no dev server URL configured")

// Options configures a Waiter
type Options struct {
	URL      string
	Attempts int
	WaitMin  time.Duration
	WaitMax  time.Duration
	Timeout  time.Duration // per request
	Logger   *slog.Logger
}

// Waiter polls the dev server until it responds
type Waiter struct {
	url    string
	client *retryablehttp.Client
	logger *slog.Logger
}

// NewWaiter builds a waiter with retry and backoff
func NewWaiter(opts Options) *Waiter {
	if opts.Attempts <= 0 {
		opts.Attempts = 10
	}
	if opts.WaitMin <= 0 {
		opts.WaitMin = 250 * time.Millisecond
	}
	if opts.WaitMax <= 0 {
		opts.WaitMax = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "devserver")

	client := retryablehttp.NewClient()
	client.RetryMax = opts.Attempts - 1
	client.RetryWaitMin = opts.WaitMin
	client.RetryWaitMax = opts.WaitMax
	client.HTTPClient.Timeout = opts.Timeout
	client.Logger = logger

	return &Waiter{url: opts.URL, client: client, logger: logger}
}

// Wait blocks until the dev server answers with a non-error status, the
// retries run out, or ctx is done
func (p *Waiter) Wait(ctx context.Context) error {
	if p.url == "" {
		return ErrNoURL
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("dev server %s not reachable: %w", p.url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("dev server %s: unexpected status %d", p.url, resp.StatusCode)
	}

	p.logger.Info("dev server ready", "url", p.url, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// Step adapts the waiter to a startup step
func (p *Waiter) Step() func(context.Context) error {
	return p.Wait
}
