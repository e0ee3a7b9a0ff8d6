// Package bridge streams workspace snapshots to view processes over a
// WebSocket.
//
// A view connects to /ws and first receives one frame per cache carrying its
// current state, then one frame for every later change. Frames are JSON text
// messages of the form {"kind": "...", "data": {...}}.
package bridge

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/mynotes/docsync"
	"github.com/mynotes/docsync/pkg/logger"
)

const (
	KindDocument    = "document"
	KindPreferences = "preferences"
	KindFavorites   = "favorites"
	KindSpaces      = "spaces"
	KindSidebar     = "sidebar"
	KindSession     = "session"
)

const (
	DefaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

type Frame struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

type Option func(*Server)

func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.logger = logger.OrNop(l) }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) { s.writeTimeout = d }
}

// WithHandler mounts h at path next to the stream, e.g. a metrics endpoint.
func WithHandler(path string, h http.Handler) Option {
	return func(s *Server) { s.router.Handle(path, h).Methods(http.MethodGet) }
}

type Server struct {
	ws           *docsync.Workspace
	logger       logger.Logger
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
	router       *mux.Router
}

func New(ws *docsync.Workspace, opts ...Option) *Server {
	s := &Server{
		ws:           ws,
		logger:       logger.Nop(),
		writeTimeout: DefaultWriteTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		router: mux.NewRouter(),
	}
	s.router.HandleFunc("/ws", s.serveWS).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts the listener down.
// Open streams end with ctx.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Bridge listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade view connection", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Subscribe before reading the current state so no change falls between.
	frames, stop := s.subscribe(ctx)
	defer stop()

	// Views only listen; reading detects the close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	remote := r.RemoteAddr
	s.logger.Debug("View connected", "remote", remote)
	defer s.logger.Debug("View disconnected", "remote", remote)

	for _, f := range s.current() {
		if err := s.write(conn, f); err != nil {
			s.logger.Warn("Failed to write frame", "kind", f.Kind, "error", err)
			return
		}
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.writeTimeout))
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			if err := s.write(conn, f); err != nil {
				s.logger.Warn("Failed to write frame", "kind", f.Kind, "error", err)
				return
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, f Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Server) current() []Frame {
	return []Frame{
		{Kind: KindSession, Data: s.ws.Session.Snapshot()},
		{Kind: KindPreferences, Data: s.ws.Preferences.Snapshot()},
		{Kind: KindSidebar, Data: s.ws.Sidebar.State()},
		{Kind: KindSpaces, Data: s.ws.Spaces.Snapshot()},
		{Kind: KindFavorites, Data: s.ws.Favorites.Snapshot()},
		{Kind: KindDocument, Data: s.ws.Documents.Snapshot()},
	}
}

// subscribe merges every cache subscription into one channel. The returned
// func unsubscribes and waits for the forwarders.
func (s *Server) subscribe(ctx context.Context) (<-chan Frame, func()) {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Frame)
	var wg sync.WaitGroup
	var unsubs []func()

	add := func(unsub func()) { unsubs = append(unsubs, unsub) }

	ch1, u1 := s.ws.Session.Subscribe()
	add(u1)
	ch2, u2 := s.ws.Preferences.Subscribe()
	add(u2)
	ch3, u3 := s.ws.Sidebar.Subscribe()
	add(u3)
	ch4, u4 := s.ws.Spaces.Subscribe()
	add(u4)
	ch5, u5 := s.ws.Favorites.Subscribe()
	add(u5)
	ch6, u6 := s.ws.Documents.Subscribe()
	add(u6)

	wg.Add(6)
	go forward(ctx, &wg, KindSession, ch1, out)
	go forward(ctx, &wg, KindPreferences, ch2, out)
	go forward(ctx, &wg, KindSidebar, ch3, out)
	go forward(ctx, &wg, KindSpaces, ch4, out)
	go forward(ctx, &wg, KindFavorites, ch5, out)
	go forward(ctx, &wg, KindDocument, ch6, out)

	return out, func() {
		cancel()
		for _, unsub := range unsubs {
			unsub()
		}
		wg.Wait()
	}
}

func forward[T any](ctx context.Context, wg *sync.WaitGroup, kind string, in <-chan T, out chan<- Frame) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- Frame{Kind: kind, Data: v}:
			case <-ctx.Done():
				return
			}
		}
	}
}
