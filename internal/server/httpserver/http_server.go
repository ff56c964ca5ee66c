// Package httpserver wires the control surface handlers onto a gorilla/mux
// router and runs the listener.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"git.home.luguber.info/inful/feeder/internal/config"
	derrors "git.home.luguber.info/inful/feeder/internal/foundation/errors"
	"git.home.luguber.info/inful/feeder/internal/logfields"
	handlers "git.home.luguber.info/inful/feeder/internal/server/handlers"
	smw "git.home.luguber.info/inful/feeder/internal/server/middleware"
)

// Server manages the control surface listener.
type Server struct {
	cfg          *config.Config
	opts         Options
	errorAdapter *derrors.HTTPErrorAdapter

	// Handler modules
	controlHandlers    *handlers.ControlHandlers
	petHandlers        *handlers.PetHandlers
	historyHandlers    *handlers.HistoryHandlers
	monitoringHandlers *handlers.MonitoringHandlers
	videoHandlers      *handlers.VideoHandlers

	// middleware chain
	mchain func(http.Handler) http.Handler

	mu     sync.Mutex
	server *http.Server
	addr   net.Addr
}

// New constructs a new HTTP server wiring instance.
func New(cfg *config.Config, runtime Runtime, opts Options) *Server {
	s := &Server{
		cfg:          cfg,
		opts:         opts,
		errorAdapter: derrors.NewHTTPErrorAdapter(slog.Default()),
	}

	s.controlHandlers = handlers.NewControlHandlers(runtime)
	s.petHandlers = handlers.NewPetHandlers(opts.Profiles, opts.Classifier, opts.Labels, opts.Accept)
	s.historyHandlers = handlers.NewHistoryHandlers(opts.History)
	s.monitoringHandlers = handlers.NewMonitoringHandlers(runtime)
	s.videoHandlers = handlers.NewVideoHandlers(opts.Frames, opts.FrameInterval)

	s.mchain = smw.Chain(slog.Default(), s.errorAdapter)
	return s
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/status", s.controlHandlers.HandleStatus).Methods(http.MethodGet)
	r.HandleFunc("/set_system", s.controlHandlers.HandleSetSystem).Methods(http.MethodPost)
	r.HandleFunc("/api/armed", s.controlHandlers.HandleArmed).Methods(http.MethodPost)

	r.HandleFunc("/analyze_photo", s.petHandlers.HandleAnalyzePhoto).Methods(http.MethodPost)
	r.HandleFunc("/save_pet", s.petHandlers.HandleSavePet).Methods(http.MethodPost)
	r.HandleFunc("/api/pets", s.petHandlers.HandleListPets).Methods(http.MethodGet)
	r.HandleFunc("/api/pets/{category}", s.petHandlers.HandleDeletePet).Methods(http.MethodDelete)

	r.HandleFunc("/api/history", s.historyHandlers.HandleHistory).Methods(http.MethodGet)
	r.HandleFunc("/video_feed", s.videoHandlers.HandleVideoFeed).Methods(http.MethodGet)

	r.HandleFunc(s.cfg.Monitoring.Health.Path, s.monitoringHandlers.HandleHealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.monitoringHandlers.HandleHealthCheck).Methods(http.MethodGet) // Kubernetes-style alias
	if s.cfg.Monitoring.Metrics.Enabled && s.opts.PrometheusHandler != nil {
		r.Handle(s.cfg.Monitoring.Metrics.Path, s.opts.PrometheusHandler).Methods(http.MethodGet)
	}

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.errorAdapter.WriteErrorResponse(w, req, derrors.ValidationError("invalid HTTP method").
			WithContext("method", req.Method).
			WithContext("path", req.URL.Path).
			Build())
	})

	var h http.Handler = r
	if origins := s.cfg.Daemon.CORSOrigins; len(origins) > 0 {
		h = ghandlers.CORS(
			ghandlers.AllowedOrigins(origins),
			ghandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
			ghandlers.AllowedHeaders([]string{"Content-Type"}),
		)(h)
	}
	return s.mchain(h)
}

// Start binds the configured address and serves in the background. Binding
// happens synchronously so an occupied port fails startup.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.Daemon.HTTP.Address
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return derrors.DaemonError("http startup failed").WithCause(err).WithContext("address", addr).Build()
	}

	// Request contexts derive from base so open streams end when Shutdown starts.
	base, cancel := context.WithCancel(context.WithoutCancel(ctx))
	srv := &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(net.Listener) context.Context { return base },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: /video_feed streams for as long as the client stays.
	}
	srv.RegisterOnShutdown(cancel)
	s.mu.Lock()
	s.server = srv
	s.addr = ln.Addr()
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("control server error", logfields.Error(err))
		}
	}()
	slog.Info("HTTP server started", slog.String("address", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop gracefully shuts down the listener.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("control server shutdown: %w", err)
	}
	slog.Info("HTTP server stopped")
	return nil
}
