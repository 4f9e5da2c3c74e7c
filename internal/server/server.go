package server

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/randutil"
	"github.com/lox/blackjack/internal/web"
)

// Server serves the browser UI and one blackjack session per websocket
type Server struct {
	logger      *log.Logger
	seed        int64
	clock       quartz.Clock
	dealerDelay time.Duration
	engineOpts  []blackjack.Option
	static      fs.FS
	upgrader    websocket.Upgrader

	mu         sync.Mutex
	sessions   map[string]*Session
	sessionSeq int
	httpServer *http.Server
}

// Option configures a Server
type Option func(*Server)

// WithClock sets the clock used to pace dealer draws in every session
func WithClock(clock quartz.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

// WithDealerDelay sets the pause before each dealer draw
func WithDealerDelay(d time.Duration) Option {
	return func(s *Server) { s.dealerDelay = d }
}

// WithEngineOptions appends options applied to every session's engine
func WithEngineOptions(opts ...blackjack.Option) Option {
	return func(s *Server) { s.engineOpts = append(s.engineOpts, opts...) }
}

// WithStatic replaces the embedded UI bundle
func WithStatic(files fs.FS) Option {
	return func(s *Server) { s.static = files }
}

// NewServer creates a server. Each session's deck is shuffled from a stream
// derived from seed, so a fixed seed replays the same sequence of sessions.
func NewServer(logger *log.Logger, seed int64, opts ...Option) *Server {
	s := &Server{
		logger:      logger.WithPrefix("server"),
		seed:        seed,
		clock:       quartz.NewReal(),
		dealerDelay: blackjack.DefaultDealerDelay,
		static:      web.FS(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/", s.staticHandler())
	return mux
}

// Start listens on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("Listening", "addr", addr)
	return srv.ListenAndServe()
}

// Shutdown stops accepting connections and closes every session
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		_ = sess.Close()
	}

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// SessionCount returns the number of live sessions
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	s.mu.Lock()
	n := s.sessionSeq
	s.sessionSeq++
	s.mu.Unlock()

	id := uuid.NewString()
	opts := []blackjack.Option{
		blackjack.WithClock(s.clock),
		blackjack.WithDealerDelay(s.dealerDelay),
		blackjack.WithLogger(s.logger.With("session", id)),
	}
	engine := blackjack.NewEngine(randutil.New(randutil.Derive(s.seed, n)), append(opts, s.engineOpts...)...)
	sess := newSession(id, conn, engine, s.clock, s.logger)

	s.mu.Lock()
	s.sessions[id] = sess
	total := len(s.sessions)
	s.mu.Unlock()
	s.logger.Info("Session opened", "session", id, "total", total)

	sess.Start()

	go func() {
		<-sess.Done()
		s.mu.Lock()
		delete(s.sessions, id)
		total := len(s.sessions)
		s.mu.Unlock()
		s.logger.Info("Session closed", "session", id, "total", total)
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

// staticHandler serves the UI bundle and falls back to the entry document for
// any path that is not a file, so client-side routes survive a reload.
func (s *Server) staticHandler() http.Handler {
	files := http.FileServerFS(s.static)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name != "" {
			if info, err := fs.Stat(s.static, name); err != nil || info.IsDir() {
				http.ServeFileFS(w, r, s.static, web.IndexFile)
				return
			}
		}
		files.ServeHTTP(w, r)
	})
}
