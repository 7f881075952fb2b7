// Package server adapts the classification engine to a thin JSON API.
//
// The engine stays HTTP-unaware: this package only decodes requests, maps
// engine errors to the wire error envelope, decorates classify responses
// with the care-flow hints the front-end renders, and enforces per-client
// rate limits.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vocalaid/vocalaid/internal/classify"
	"github.com/vocalaid/vocalaid/internal/feedback"
	"github.com/vocalaid/vocalaid/internal/health"
	"github.com/vocalaid/vocalaid/internal/notify"
	"github.com/vocalaid/vocalaid/internal/observe"
	"github.com/vocalaid/vocalaid/pkg/refstore"
)

// Option configures a [Server].
type Option func(*Server)

// WithNotifier sets the emergency alert sink. Default: a [notify.LogNotifier].
func WithNotifier(n notify.Notifier) Option {
	return func(s *Server) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithMetrics sets the metrics instance used by the HTTP middleware.
// Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithHealth mounts the given health handler's /healthz and /readyz routes.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithRateLimit caps /api requests per client per minute. Zero or negative
// disables limiting (the default).
func WithRateLimit(perMin int) Option {
	return func(s *Server) {
		if perMin > 0 {
			s.limiter = newClientLimiter(perMin)
		}
	}
}

// Server hosts the classification API.
type Server struct {
	engine   *classify.Engine
	recorder *feedback.Recorder
	store    refstore.Store
	notifier notify.Notifier
	metrics  *observe.Metrics
	health   *health.Handler
	limiter  *clientLimiter
	handler  http.Handler
}

// New assembles the HTTP surface over the given engine, feedback recorder
// and reference store.
func New(engine *classify.Engine, rec *feedback.Recorder, store refstore.Store, opts ...Option) *Server {
	s := &Server{
		engine:   engine,
		recorder: rec,
		store:    store,
		notifier: notify.NewLogNotifier(nil),
		metrics:  observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/classify", s.handleClassify)
	mux.HandleFunc("POST /api/feedback", s.handleFeedback)
	mux.HandleFunc("GET /api/intents", s.handleIntents)
	mux.HandleFunc("GET /api/reference/export", s.handleExport)
	mux.HandleFunc("POST /api/reference/import", s.handleImport)
	mux.HandleFunc("POST /api/reference/prune", s.handlePrune)
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.health != nil {
		s.health.Register(mux)
	}

	s.handler = observe.Middleware(s.metrics)(s.rateLimited(mux))
	return s
}

// Handler returns the fully assembled HTTP handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.handler
}
