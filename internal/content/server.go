// Package content serves the bundled renderer assets and the renderer's
// IPC websocket on a loopback port.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/mux"

	"nohands.dev/go/nohands/internal/events"
)

// WebSocketServer accepts renderer IPC connections
type WebSocketServer interface {
	ServeWebSocket(w http.ResponseWriter, r *http.Request)
}

// EventHistory lists recent internal events
type EventHistory interface {
	History(types ...events.Type) []events.Event
}

// Options configures the content server
type Options struct {
	// BundleDir holds index.html and the built renderer assets
	BundleDir string
	// Listen is the loopback address; port 0 picks a free one
	Listen string

	IPC    WebSocketServer
	Events EventHistory
	Logger *slog.Logger
}

// Server serves the renderer
type Server struct {
	opts     Options
	logger   *slog.Logger
	router   *mux.Router
	server   *http.Server
	listener net.Listener
}

// New creates the server and its routes
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Listen == "" {
		opts.Listen = "127.0.0.1:0"
	}

	s := &Server{
		opts:   opts,
		logger: opts.Logger.With("component", "content"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	if s.opts.IPC != nil {
		r.HandleFunc("/ipc", s.opts.IPC.ServeWebSocket).Methods("GET")
	}
	if s.opts.Events != nil {
		r.HandleFunc("/api/events", s.handleEvents).Methods("GET")
	}

	if info, err := os.Stat(s.opts.BundleDir); err == nil && info.IsDir() {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.opts.BundleDir)))
	} else {
		s.logger.Warn("renderer bundle not found", "dir", s.opts.BundleDir)
		r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("<html><body><h1>nohands</h1><p>Renderer bundle not available</p></body></html>"))
		})
	}

	return r
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the loopback address and serves in the background
func (s *Server) Start(ctx context.Context) error {
	host, _, err := net.SplitHostPort(s.opts.Listen)
	if err != nil {
		return fmt.Errorf("parse listen address: %w", err)
	}
	if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return fmt.Errorf("content server must listen on loopback, got %s", s.opts.Listen)
	}

	listener, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.logger.Info("content server listening", "addr", listener.Addr().String())

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("content server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// IndexURL is the bundled entry page. The file server answers "/" with
// index.html and redirects explicit /index.html requests there.
func (s *Server) IndexURL() string {
	return "http://" + s.Addr() + "/"
}

// IPCURL is the renderer's websocket endpoint
func (s *Server) IPCURL() string {
	return "ws://" + s.Addr() + "/ipc"
}

// Stop shuts the server down, waiting up to five seconds for requests
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var types []events.Type
	for _, t := range r.URL.Query()["type"] {
		typ := events.Type(t)
		if !typ.Known() {
			http.Error(w, "unknown event type", http.StatusBadRequest)
			return
		}
		types = append(types, typ)
	}
	jsonResponse(w, s.opts.Events.History(types...))
}

func jsonResponse(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// ResolveURL picks what the window loads: the dev server when one is in
// use, the bundled index otherwise. The renderer finds its IPC endpoint in
// the ipc query parameter.
func ResolveURL(devServerURL string, useDevServer bool, indexURL, ipcURL string) (string, error) {
	target := indexURL
	if useDevServer {
		target = devServerURL
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse content url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("content url must be http or https: %s", target)
	}

	if ipcURL != "" {
		q := u.Query()
		q.Set("ipc", ipcURL)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
