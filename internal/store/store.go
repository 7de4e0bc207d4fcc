// Package store is the application's data store: a small JSON key/value
// file the renderer reads and writes over IPC. It flushes when the
// application closes or shuts down.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"nohands.dev/go/nohands/internal/ipc"
)

// ErrNotListening is returned by writes before StartListening and after
// OnShutdown
var ErrNotListening = errors.New("store is not accepting writes")

// DefaultFlushDelay batches writes that arrive close together
const DefaultFlushDelay = 500 * time.Millisecond

// Options configures a Store
type Options struct {
	Path       string
	FlushDelay time.Duration
	Logger     *slog.Logger
}

// Store is a JSON file of keys to raw JSON values
type Store struct {
	path   string
	delay  time.Duration
	logger *slog.Logger

	mu        sync.Mutex
	data      map[string]json.RawMessage
	dirty     bool
	listening bool
	timer     *time.Timer
	flushes   int
}

// Open loads the store file; a missing file is an empty store
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("store path is required")
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = DefaultFlushDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Store{
		path:   opts.Path,
		delay:  opts.FlushDelay,
		logger: opts.Logger.With("component", "store"),
		data:   make(map[string]json.RawMessage),
	}

	raw, err := os.ReadFile(opts.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read store: %w", err)
	case len(raw) > 0:
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, fmt.Errorf("parse store %s: %w", opts.Path, err)
		}
	}

	return s, nil
}

// StartListening registers the store.* methods and starts accepting writes
func (s *Store) StartListening(r ipc.Registrar) error {
	s.mu.Lock()
	s.listening = true
	s.mu.Unlock()

	r.Handle("store.get", s.handleGet)
	r.Handle("store.set", s.handleSet)
	r.Handle("store.delete", s.handleDelete)
	r.Handle("store.keys", func(context.Context, *ipc.Peer, json.RawMessage) (any, error) {
		return s.Keys(), nil
	})

	s.logger.Info("store listening", "path", s.path, "keys", len(s.Keys()))
	return nil
}

// Listening reports whether writes are accepted
func (s *Store) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listening
}

// Get returns the value under key
func (s *Store) Get(key string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Keys lists keys in sorted order
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set stores value under key and schedules a flush
func (s *Store) Set(key string, value json.RawMessage) error {
	if key == "" {
		return errors.New("key is required")
	}
	if !json.Valid(value) {
		return fmt.Errorf("value for %q is not valid JSON", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.listening {
		return ErrNotListening
	}
	s.data[key] = append(json.RawMessage(nil), value...)
	s.markDirtyLocked()
	return nil
}

// Delete removes key; missing keys are fine
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.listening {
		return ErrNotListening
	}
	if _, ok := s.data[key]; ok {
		delete(s.data, key)
		s.markDirtyLocked()
	}
	return nil
}

func (s *Store) markDirtyLocked() {
	s.dirty = true
	if s.timer == nil {
		s.timer = time.AfterFunc(s.delay, func() {
			if err := s.Flush(); err != nil {
				s.logger.Error("store flush failed", "error", err)
			}
		})
	}
}

// Flush writes pending changes to disk atomically
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if !s.dirty {
		return nil
	}

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename store file: %w", err)
	}

	s.dirty = false
	s.flushes++
	return nil
}

// OnClose saves state for a host suspend; the store keeps working
func (s *Store) OnClose() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("store saving for close")
	return s.flushLocked()
}

// OnShutdown saves state and stops accepting writes
func (s *Store) OnShutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("store saving for shutdown")
	s.listening = false
	return s.flushLocked()
}

type keyParams struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value,omitempty"`
}

func (s *Store) handleGet(_ context.Context, _ *ipc.Peer, params json.RawMessage) (any, error) {
	var p keyParams
	if err := ipc.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	v, ok := s.Get(p.Key)
	if !ok {
		return map[string]any{"key": p.Key, "found": false}, nil
	}
	return map[string]any{"key": p.Key, "found": true, "value": v}, nil
}

func (s *Store) handleSet(_ context.Context, _ *ipc.Peer, params json.RawMessage) (any, error) {
	var p keyParams
	if err := ipc.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if len(p.Value) == 0 {
		return nil, ipc.Errorf(ipc.ErrCodeInvalidParams, "value is required")
	}
	if err := s.Set(p.Key, p.Value); err != nil {
		return nil, writeError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Store) handleDelete(_ context.Context, _ *ipc.Peer, params json.RawMessage) (any, error) {
	var p keyParams
	if err := ipc.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := s.Delete(p.Key); err != nil {
		return nil, writeError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func writeError(err error) error {
	if errors.Is(err, ErrNotListening) {
		return ipc.Errorf(ipc.ErrCodeUnavailable, "%v", err)
	}
	return ipc.Errorf(ipc.ErrCodeInvalidParams, "%v", err)
}
