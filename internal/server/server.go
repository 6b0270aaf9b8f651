package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"latencyglobe/internal/catalog"
	"latencyglobe/internal/config"
	"latencyglobe/internal/snapshot"
	"latencyglobe/internal/tracker"
)

// Deps are the collaborators the HTTP API serves from.
type Deps struct {
	Catalog  *catalog.Catalog
	Builder  *snapshot.Builder
	Tracker  *tracker.Tracker
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Server provides the dashboard HTTP API.
type Server struct {
	cfg      config.ServerConfig
	cat      *catalog.Catalog
	builder  *snapshot.Builder
	tracker  *tracker.Tracker
	gatherer prometheus.Gatherer
	log      *zap.Logger
	upgrader websocket.Upgrader
	handler  http.Handler
}

// New constructs a server and its routes.
func New(cfg config.ServerConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		cfg:      cfg,
		cat:      deps.Catalog,
		builder:  deps.Builder,
		tracker:  deps.Tracker,
		gatherer: gatherer,
		log:      logger.Named("http"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/latency", s.handleLatency)
		r.Get("/state", s.handleState)
		r.Get("/links", s.handleLinks)
		r.Get("/providers", s.handleProviders)
		r.Get("/history", s.handleHistory)
		r.Get("/history.csv", s.handleHistoryCSV)
		r.Get("/nodes", s.handleNodes)
		r.Get("/globe.geojson", s.handleGlobe)
		r.Get("/stream", s.handleStream)
	})
	return r
}

func (s *Server) allowedOrigins() []string {
	if len(s.cfg.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return s.cfg.CORSOrigins
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.cfg.Listen))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
