// internal/api/server.go
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shoe-size-analytics/internal/analytics"
	"shoe-size-analytics/internal/common/logger"
	"shoe-size-analytics/internal/common/observability"
	"shoe-size-analytics/internal/common/validation"
)

const (
	// multipart parts above this size spill to temp files
	multipartMemory = 8 << 20
	sourceHTTP      = "http"
)

type Config struct {
	MaxUploadBytes    int64
	MaxFiles          int
	RequestTimeout    time.Duration
	AllowedOrigins    []string
	ValidateResponses bool
	Version           string
}

// Analyzer runs one analysis request.
type Analyzer interface {
	Analyze(ctx context.Context, req *analytics.Request) (*analytics.Outcome, error)
}

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	config   Config
	analyzer Analyzer
	logger   logger.Logger
	obs      *observability.Observability
	checks   map[string]Pinger

	priorSchema    *validation.Schema
	responseSchema *validation.Schema
}

type Option func(*Server)

// WithReadinessCheck adds a named dependency to /ready.
func WithReadinessCheck(name string, p Pinger) Option {
	return func(s *Server) { s.checks[name] = p }
}

func WithObservability(obs *observability.Observability) Option {
	return func(s *Server) { s.obs = obs }
}

func NewServer(config Config, analyzer Analyzer, log logger.Logger, opts ...Option) (*Server, error) {
	prior, err := validation.Load(validation.PriorPeriodSchema)
	if err != nil {
		return nil, err
	}
	response, err := validation.Load(validation.AnalysisResultSchema)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:         config,
		analyzer:       analyzer,
		logger:         log.WithFields(map[string]interface{}{"component": "api"}),
		checks:         make(map[string]Pinger),
		priorSchema:    prior,
		responseSchema: response,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.recoverer(s.requestID(s.cors(mux)))
}
