// Package monitor exposes the buffer tree's operational surface over
// HTTP: Prometheus metrics, a liveness/readiness check, a point-in-time
// structural dump of the tree, and downstream sink counters.
//
//	@title			Buffer Tree Monitoring API
//	@version		1.0
//	@description	Operational endpoints for a running external-memory buffer tree: metrics, health, and a structural debug dump.
//	@BasePath		/
package monitor

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Tree is the subset of *tree.Tree the monitoring server needs. Kept
// as an interface so pkg/monitor never imports pkg/tree's concurrency
// internals directly.
type Tree interface {
	DebugDump(w io.Writer) error
}

// Sink is the subset of *sink.Sink the monitoring server reports
// counters for.
type Sink interface {
	Stats() (batches, records uint64)
}

// Config controls how the monitoring server binds and which
// components it reports on.
type Config struct {
	Bind string
	Port int

	Tree Tree
	Sink Sink
}

// Server is the HTTP surface described above, wired with Prometheus
// instrumentation on the /healthz, /stats and /debug/tree handlers.
type Server struct {
	cfg     Config
	metrics *Metrics
	router  chi.Router
	start   time.Time
}

// NewServer builds the router but does not start listening.
func NewServer(cfg Config, metrics *Metrics) *Server {
	s := &Server{cfg: cfg, metrics: metrics, start: time.Now()}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/healthz", metrics.InstrumentHandler(http.MethodGet, "/healthz", s.handleHealthz))
	r.Get("/stats", metrics.InstrumentHandler(http.MethodGet, "/stats", s.handleStats))
	r.Get("/debug/tree", metrics.InstrumentHandler(http.MethodGet, "/debug/tree", s.handleDebugTree))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://%s:%d/swagger/doc.json", cfg.Bind, cfg.Port)),
	))

	s.router = r
	return s
}

// handleHealthz reports liveness. It never depends on tree state, so
// it keeps responding even while the tree is stalled on a full buffer.
//
//	@Summary	Liveness probe
//	@Success	200	{string}	string	"ok"
//	@Router		/healthz [get]
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "ok uptime=%s\n", time.Since(s.start).Round(time.Second))
}

// handleStats reports downstream sink counters as plain text.
//
//	@Summary	Sink counters
//	@Success	200	{string}	string	"batches and records applied"
//	@Router		/stats [get]
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if s.cfg.Sink == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "sink not attached")
		return
	}
	batches, records := s.cfg.Sink.Stats()
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "batches=%d records=%d\n", batches, records)
}

// handleDebugTree writes the tree's current structural dump (every
// buffer control block's level, kind, range, and fill) as plain text.
//
//	@Summary	Structural dump of the tree
//	@Success	200	{string}	string	"per-BCB summary lines"
//	@Router		/debug/tree [get]
func (s *Server) handleDebugTree(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if s.cfg.Tree == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "tree not attached")
		return
	}
	w.WriteHeader(http.StatusOK)
	if err := s.cfg.Tree.DebugDump(w); err != nil {
		fmt.Fprintf(w, "dump error: %v\n", err)
	}
}

// ListenAndServe starts the HTTP server and blocks until it exits.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Bind, s.cfg.Port)
	log.Printf("monitor: listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}
