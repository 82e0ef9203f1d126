package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/Beacon/internal/clock"
	"github.com/SmitUplenchwar2687/Beacon/internal/limiter"
	"github.com/SmitUplenchwar2687/Beacon/internal/recorder"
	"github.com/SmitUplenchwar2687/Beacon/internal/session"
	"github.com/SmitUplenchwar2687/Beacon/internal/sink"
)

const maxBodyBytes = 1 << 20

// Options configures a Server. Zero values fall back to defaults.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Clock    clock.Clock
	Logger   *zap.Logger
	Sessions *session.Registry  // required
	Recorder *recorder.Recorder // optional: record every session event
	Uploads  *sink.Memory       // optional: exposed at GET /api/uploads

	// Per-client admission; a zero RateLimit admits everything.
	RateLimit float64
	Burst     int

	// Snapshot throttles report pushes to WebSocket clients per session.
	Snapshot limiter.Config

	// IdleTimeout evicts sessions and admission buckets unused for this
	// long, checked every IdleTimeout. Zero keeps them until shutdown.
	IdleTimeout time.Duration
}

// Server is the Beacon collector. Pages create a session, post their
// timing data and error events, and the session's monitor aggregates them
// into a report that can be read, streamed or uploaded.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	clock      clock.Clock
	logger     *zap.Logger
	sessions   *session.Registry
	recorder   *recorder.Recorder
	uploads    *sink.Memory
	hub        *Hub
	admission  *Admission
	snapshot   limiter.Config

	mu       sync.Mutex
	watchers map[string]*watcher
	idle     time.Duration
	janitor  clock.Timer
	closed   bool
}

// New creates a new Beacon server.
func New(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clock.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewRegistry(opts.Clock, opts.Logger)
	}
	if opts.Snapshot.Kind == "" {
		opts.Snapshot = limiter.Config{Kind: limiter.KindThrottle, Wait: time.Second, Leading: true, Trailing: true}
	}

	s := &Server{
		router:    chi.NewRouter(),
		clock:     opts.Clock,
		logger:    opts.Logger,
		sessions:  opts.Sessions,
		recorder:  opts.Recorder,
		uploads:   opts.Uploads,
		hub:       NewHub(opts.Logger),
		admission: NewAdmission(opts.RateLimit, opts.Burst, opts.Clock),
		snapshot:  opts.Snapshot,
		watchers:  make(map[string]*watcher),
		idle:      opts.IdleTimeout,
	}
	s.routes()
	if s.idle > 0 {
		s.scheduleJanitor()
	}
	s.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(s.logger, s.clock))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/", s.handleDashboard)
	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.hub.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.admission.Middleware)

		r.Get("/uploads", s.handleUploads)
		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions", s.handleCreateSession)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Use(s.withSession)
			r.Get("/report", s.handleReport)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/timing", s.handleTiming)
			r.Post("/events", s.handleEvent)
			r.Post("/errors", s.handleAddError)
			r.Delete("/errors", s.handleClearError)
			r.Post("/reset", s.handleReset)
			r.Put("/url", s.handleSetURL)
			r.Post("/upload", s.handleUpload)
		})
	})
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening. It blocks until the server is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.StartOnListener(ln)
}

// StartOnListener begins serving on the provided listener.
// Useful for tests that need to pick an ephemeral port.
func (s *Server) StartOnListener(ln net.Listener) error {
	s.logger.Info("beacon collector listening", zap.String("addr", ln.Addr().String()))
	return s.httpServer.Serve(ln)
}

func (s *Server) scheduleJanitor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.janitor = s.clock.AfterFunc(s.idle, s.janitorLoop)
}

func (s *Server) janitorLoop() {
	s.evictIdle()
	s.scheduleJanitor()
}

// evictIdle drops sessions and admission buckets idle for s.idle.
func (s *Server) evictIdle() {
	for _, id := range s.sessions.EvictIdle(s.idle) {
		s.unwatch(id)
		s.logger.Debug("session evicted", zap.String("session", id))
	}
	if n := s.admission.Sweep(s.idle); n > 0 {
		s.logger.Debug("admission buckets swept", zap.Int("count", n))
	}
}

// Shutdown gracefully shuts down the server, closes WebSocket clients and
// detaches every session.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.hub.Close()

	s.mu.Lock()
	s.closed = true
	if s.janitor != nil {
		s.janitor.Stop()
	}
	for id, w := range s.watchers {
		w.stop()
		delete(s.watchers, id)
	}
	s.mu.Unlock()
	s.sessions.Close()
	return err
}
