package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDialTimeout bounds ConnectTo
const DefaultDialTimeout = 5 * time.Second

// ErrClientClosed is returned by calls on a closed client
var ErrClientClosed = errors.New("ipc client closed")

// Client calls methods on a Server over a stream connection. Calls may be
// issued concurrently; responses are matched by request ID and events are
// delivered on Events.
type Client struct {
	codec  *streamCodec
	events chan Event

	mu      sync.Mutex
	pending map[string]chan *Response
	err     error

	done chan struct{}
}

// ConnectTo dials the instance listening at address
func ConnectTo(address string) (*Client, error) {
	conn, err := dial(address, DefaultDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", address, err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection
func NewClient(conn net.Conn) *Client {
	c := &Client{
		codec:   newStreamCodec(conn, 0),
		events:  make(chan Event, 64),
		pending: make(map[string]chan *Response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	defer close(c.events)

	var readErr error
	for {
		data, err := c.codec.Read()
		if err != nil {
			readErr = err
			break
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		if env.Event != "" {
			select {
			case c.events <- Event{Event: env.Event, Payload: env.Payload}:
			default:
				// nobody is draining events
			}
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[env.ID]
		delete(c.pending, env.ID)
		c.mu.Unlock()

		if ok {
			ch <- &Response{ID: env.ID, Result: env.Result, Error: env.Error}
		}
	}

	c.mu.Lock()
	if c.err == nil {
		c.err = readErr
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	close(c.done)
}

// Call sends a request and waits for the matching response. A response
// error is returned as *Error.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	req := Request{ID: uuid.NewString(), Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = data
	}

	ch := make(chan *Response, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	if err := c.codec.Write(req); err != nil {
		c.forget(req.ID)
		return nil, fmt.Errorf("send request: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("%s: %w", method, c.closedErr())
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.forget(req.ID)
		return nil, ctx.Err()
	}
}

// CallResult calls method and unmarshals the result into result
func (c *Client) CallResult(ctx context.Context, method string, params, result any) error {
	raw, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

// Subscribe asks the server to broadcast events to this client
func (c *Client) Subscribe(ctx context.Context) error {
	_, err := c.Call(ctx, "subscribe", nil)
	return err
}

// Events delivers server events. The channel closes with the connection.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Done is closed once the connection is gone
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	if c.err == nil {
		c.err = ErrClientClosed
	}
	c.mu.Unlock()
	return c.codec.Close()
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return ErrClientClosed
	}
	return c.err
}

// IsRunning reports whether an instance answers status at address
func IsRunning(ctx context.Context, address string) bool {
	client, err := ConnectTo(address)
	if err != nil {
		return false
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, err = client.Call(ctx, "status", nil)
	return err == nil
}
