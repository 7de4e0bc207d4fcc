package ipc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	maxMessageSize = 1 << 20

	// eventQueueSize bounds broadcasts waiting for one peer; a peer that
	// falls this far behind is dropped
	eventQueueSize = 64

	writeWait = 10 * time.Second
)

var errMessageTooLarge = errors.New("message too large")

// codec frames messages on one transport
type codec interface {
	// Read returns the next raw message
	Read() ([]byte, error)
	Write(v any) error
	Close() error
	RemoteAddr() string
}

// Peer is one connected client
type Peer struct {
	ID        string
	Transport string

	codec      codec
	limiter    *rate.Limiter
	subscribed atomic.Bool
	connected  time.Time
	events     chan *Event
}

func newPeer(transport string, c codec, limiter *rate.Limiter) *Peer {
	return &Peer{
		ID:        uuid.NewString(),
		Transport: transport,
		codec:     c,
		limiter:   limiter,
		connected: time.Now(),
		events:    make(chan *Event, eventQueueSize),
	}
}

// enqueue queues a broadcast without blocking and reports false when the
// peer's queue is full
func (p *Peer) enqueue(ev *Event) bool {
	select {
	case p.events <- ev:
		return true
	default:
		return false
	}
}

// Subscribed reports whether the peer receives broadcasts
func (p *Peer) Subscribed() bool {
	return p.subscribed.Load()
}

// Send writes an event to this peer regardless of subscription
func (p *Peer) Send(event string, payload any) error {
	ev, err := newEvent(event, payload)
	if err != nil {
		return err
	}
	return p.codec.Write(ev)
}

// Close drops the connection
func (p *Peer) Close() error {
	return p.codec.Close()
}

func newEvent(event string, payload any) (*Event, error) {
	ev := &Event{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		ev.Payload = data
	}
	return ev, nil
}

// streamCodec carries JSON lines over a net.Conn
type streamCodec struct {
	conn      net.Conn
	reader    *bufio.Reader
	writer    *bufio.Writer
	writeMu   sync.Mutex
	writeWait time.Duration
}

func newStreamCodec(conn net.Conn, wait time.Duration) *streamCodec {
	if wait <= 0 {
		wait = writeWait
	}
	return &streamCodec{
		conn:      conn,
		reader:    bufio.NewReaderSize(conn, 64*1024),
		writer:    bufio.NewWriter(conn),
		writeWait: wait,
	}
}

func (c *streamCodec) Read() ([]byte, error) {
	for {
		line, err := c.reader.ReadBytes('\n')
		if len(line) > maxMessageSize {
			return nil, errMessageTooLarge
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(bytes.TrimSpace(line)) > 0 {
				return line, nil
			}
			return nil, err
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		return line, nil
	}
}

func (c *streamCodec) Write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	if err := json.NewEncoder(c.writer).Encode(v); err != nil {
		return err
	}
	return c.writer.Flush()
}

func (c *streamCodec) Close() error {
	return c.conn.Close()
}

func (c *streamCodec) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// websocket configuration
const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// wsCodec carries one JSON message per text frame
type wsCodec struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

func newWSCodec(conn *websocket.Conn) *wsCodec {
	c := &wsCodec{conn: conn, done: make(chan struct{})}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.pingLoop()
	return c
}

func (c *wsCodec) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *wsCodec) Read() ([]byte, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsCodec) Write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *wsCodec) Close() error {
	c.once.Do(func() { close(c.done) })
	return c.conn.Close()
}

func (c *wsCodec) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
