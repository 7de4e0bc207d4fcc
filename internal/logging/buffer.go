package logging

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// DefaultBufferSize is the number of recent records kept for the logs method
const DefaultBufferSize = 2000

// Entry is a single captured log record
type Entry struct {
	Timestamp time.Time      `json:"ts"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Buffer is a thread-safe ring of recent log entries
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	count   int
}

// NewBuffer creates a buffer with the given capacity
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Buffer{entries: make([]Entry, size)}
}

// Add appends an entry, overwriting the oldest once full
func (b *Buffer) Add(entry Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = entry
	b.head = (b.head + 1) % len(b.entries)
	if b.count < len(b.entries) {
		b.count++
	}
}

// Len returns the number of entries held
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Query selects entries for the logs method
type Query struct {
	Since time.Time `json:"since,omitempty"`
	Level string    `json:"level,omitempty"` // this level and above
	Limit int       `json:"limit,omitempty"` // most recent N
}

// Query returns matching entries oldest first
func (b *Buffer) Query(q Query) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	minLevel, filterLevel := parseLevel(q.Level)

	start := 0
	if b.count == len(b.entries) {
		start = b.head
	}

	results := make([]Entry, 0, b.count)
	for i := 0; i < b.count; i++ {
		entry := b.entries[(start+i)%len(b.entries)]

		if !q.Since.IsZero() && entry.Timestamp.Before(q.Since) {
			continue
		}
		if filterLevel {
			if lvl, ok := parseLevel(entry.Level); ok && lvl < minLevel {
				continue
			}
		}
		results = append(results, entry)
	}

	if q.Limit > 0 && len(results) > q.Limit {
		results = results[len(results)-q.Limit:]
	}
	return results
}

func parseLevel(s string) (slog.Level, bool) {
	if s == "" {
		return 0, false
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, false
	}
	return lvl, true
}

// BufferedHandler is an slog.Handler that records into a Buffer before
// passing the record on
type BufferedHandler struct {
	buffer *Buffer
	next   slog.Handler
	attrs  []slog.Attr
	group  string
}

// NewBufferedHandler wraps next so every handled record is also buffered
func NewBufferedHandler(buffer *Buffer, next slog.Handler) *BufferedHandler {
	return &BufferedHandler{
		buffer: buffer,
		next:   next,
	}
}

func (h *BufferedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *BufferedHandler) Handle(ctx context.Context, r slog.Record) error {
	fields := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, attr := range h.attrs {
		fields[attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		fields[key] = a.Value.Any()
		return true
	})

	h.buffer.Add(Entry{
		Timestamp: r.Time,
		Level:     r.Level.String(),
		Message:   r.Message,
		Fields:    fields,
	})

	return h.next.Handle(ctx, r)
}

func (h *BufferedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &BufferedHandler{
		buffer: h.buffer,
		next:   h.next.WithAttrs(attrs),
		attrs:  append(slices.Clip(h.attrs), attrs...),
		group:  h.group,
	}
}

func (h *BufferedHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &BufferedHandler{
		buffer: h.buffer,
		next:   h.next.WithGroup(name),
		attrs:  h.attrs,
		group:  group,
	}
}
