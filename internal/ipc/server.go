package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// HandlerFunc answers one request. The returned value is JSON-encoded as
// the result.
type HandlerFunc func(ctx context.Context, p *Peer, params json.RawMessage) (any, error)

type requestIDKey struct{}

// RequestID returns the ID of the request a handler is answering
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Registrar accepts method handlers
type Registrar interface {
	Handle(method string, h HandlerFunc)
}

// Broadcaster pushes events to subscribed peers
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// Options configures a Server
type Options struct {
	// Address is the unix socket path or named pipe name used by Listen
	Address string

	// RatePerSecond and Burst bound requests per peer; zero disables limiting
	RatePerSecond float64
	Burst         int

	// WriteTimeout bounds one write to a stream peer; zero means 10s
	WriteTimeout time.Duration

	Logger *slog.Logger
}

// Server dispatches requests from peers on any transport. Each request runs
// in its own goroutine, so a slow method does not hold up the others and
// responses may arrive in any order; peers correlate them by ID.
type Server struct {
	opts     Options
	logger   *slog.Logger
	upgrader websocket.Upgrader

	handlersMu sync.RWMutex
	handlers   map[string]HandlerFunc

	peersMu sync.RWMutex
	peers   map[*Peer]bool

	listener net.Listener
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewServer creates a server with the built-in subscribe method
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		opts:     opts,
		logger:   opts.Logger.With("component", "ipc"),
		handlers: make(map[string]HandlerFunc),
		peers:    make(map[*Peer]bool),
		done:     make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     localOrigin,
		},
	}

	s.Handle("subscribe", func(_ context.Context, p *Peer, _ json.RawMessage) (any, error) {
		p.subscribed.Store(true)
		return map[string]bool{"subscribed": true}, nil
	})

	return s
}

// Handle registers h for method, replacing any previous handler
func (s *Server) Handle(method string, h HandlerFunc) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers[method] = h
}

// Methods lists registered method names
func (s *Server) Methods() []string {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()

	out := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		out = append(out, m)
	}
	return out
}

// Listen opens the platform listener at Options.Address and accepts
// connections until Stop
func (s *Server) Listen(ctx context.Context) error {
	listener, err := listen(s.opts.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Address, err)
	}
	s.listener = listener

	s.logger.Info("IPC server listening", "address", s.opts.Address)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx)
	}()
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("IPC accept error", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(ctx, conn)
		}()
	}
}

// ServeConn serves JSON lines on conn until it closes
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	s.serve(ctx, newPeer("stream", newStreamCodec(conn, s.opts.WriteTimeout), s.newLimiter()))
}

// ServeWebSocket upgrades the request and serves the connection until it
// closes
func (s *Server) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	s.serve(r.Context(), newPeer("websocket", newWSCodec(conn), s.newLimiter()))
}

func (s *Server) newLimiter() *rate.Limiter {
	if s.opts.RatePerSecond <= 0 {
		return nil
	}
	burst := s.opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(s.opts.RatePerSecond), burst)
}

func (s *Server) serve(ctx context.Context, p *Peer) {
	select {
	case <-s.done:
		p.Close()
		return
	default:
	}

	s.peersMu.Lock()
	s.peers[p] = true
	s.peersMu.Unlock()

	s.logger.Debug("IPC peer connected", "peer", p.ID, "transport", p.Transport, "remote", p.codec.RemoteAddr())

	ctx, cancel := context.WithCancel(ctx)
	var inflight sync.WaitGroup

	inflight.Add(1)
	go func() {
		defer inflight.Done()
		s.sendEvents(ctx, p)
	}()

	defer func() {
		cancel()
		p.Close()
		inflight.Wait()

		s.peersMu.Lock()
		delete(s.peers, p)
		s.peersMu.Unlock()

		s.logger.Debug("IPC peer disconnected", "peer", p.ID)
	}()

	for {
		data, err := p.codec.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("IPC read error", "peer", p.ID, "error", err)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			s.reply(p, &Response{Error: Errorf(ErrCodeParse, "parse error: %v", err)})
			continue
		}
		if req.Method == "" {
			s.reply(p, &Response{ID: req.ID, Error: Errorf(ErrCodeInvalidRequest, "method is required")})
			continue
		}
		if p.limiter != nil && !p.limiter.Allow() {
			s.reply(p, &Response{ID: req.ID, Error: Errorf(ErrCodeRateLimited, "rate limit exceeded")})
			continue
		}

		inflight.Add(1)
		go func() {
			defer inflight.Done()
			s.reply(p, s.dispatch(ctx, p, &req))
		}()
	}
}

// sendEvents writes queued broadcasts to p until the connection ends
func (s *Server) sendEvents(ctx context.Context, p *Peer) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.events:
			if err := p.codec.Write(ev); err != nil {
				s.logger.Debug("IPC event send error", "peer", p.ID, "event", ev.Event, "error", err)
				p.Close()
				return
			}
		}
	}
}

func (s *Server) dispatch(ctx context.Context, p *Peer, req *Request) (resp *Response) {
	resp = &Response{ID: req.ID}

	s.handlersMu.RLock()
	handler, ok := s.handlers[req.Method]
	s.handlersMu.RUnlock()

	if !ok {
		resp.Error = Errorf(ErrCodeMethodNotFound, "method not found: %s", req.Method)
		return resp
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("IPC handler panic", "method", req.Method, "panic", r)
			resp.Result = nil
			resp.Error = Errorf(ErrCodeInternalError, "internal error")
		}
	}()

	result, err := handler(context.WithValue(ctx, requestIDKey{}, req.ID), p, req.Params)
	if err != nil {
		var ipcErr *Error
		if errors.As(err, &ipcErr) {
			resp.Error = ipcErr
		} else {
			resp.Error = &Error{Code: ErrCodeInternalError, Message: err.Error()}
		}
		return resp
	}

	data, err := json.Marshal(result)
	if err != nil {
		resp.Error = Errorf(ErrCodeInternalError, "failed to encode result")
		return resp
	}
	resp.Result = data
	return resp
}

func (s *Server) reply(p *Peer, resp *Response) {
	if err := p.codec.Write(resp); err != nil {
		s.logger.Debug("IPC send error", "peer", p.ID, "id", resp.ID, "error", err)
	}
}

// Broadcast queues an event for every subscribed peer. It never blocks on
// a peer.
func (s *Server) Broadcast(event string, payload any) {
	ev, err := newEvent(event, payload)
	if err != nil {
		s.logger.Warn("Failed to marshal event", "event", event, "error", err)
		return
	}

	s.peersMu.RLock()
	targets := make([]*Peer, 0, len(s.peers))
	for p := range s.peers {
		if p.Subscribed() {
			targets = append(targets, p)
		}
	}
	s.peersMu.RUnlock()

	for _, p := range targets {
		if !p.enqueue(ev) {
			s.logger.Warn("IPC peer is not reading events, dropping it", "peer", p.ID, "event", event)
			p.Close()
		}
	}
}

// PeerCount returns the number of connected peers
func (s *Server) PeerCount() int {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()
	return len(s.peers)
}

// Stop closes the listener and every peer, then waits for connection
// goroutines to exit
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)

		if s.listener != nil {
			s.listener.Close()
			cleanup(s.opts.Address)
		}

		s.peersMu.RLock()
		for p := range s.peers {
			p.Close()
		}
		s.peersMu.RUnlock()
	})
	s.wg.Wait()
}

// localOrigin admits pages served from loopback and requests without an
// Origin header
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" {
		return true
	}
	return isLoopbackOrigin(origin)
}
