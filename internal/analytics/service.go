// internal/analytics/service.go
package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"shoe-size-analytics/internal/baseline"
	apperrors "shoe-size-analytics/internal/common/errors"
	"shoe-size-analytics/internal/common/logger"
	"shoe-size-analytics/internal/common/metrics"
	"shoe-size-analytics/internal/models"
)

const tracerName = "shoe-size-analytics/analytics"

// File outcomes reported per upload.
const (
	FileOK               = "ok"
	FileExtractionFailed = "extraction_failed"
	FileParseFailed      = "parse_failed"
	FileFault            = "fault"
)

var (
	ErrExtraction = errors.New("extraction failed")
	ErrParse      = errors.New("parse failed")
	ErrFileFault  = errors.New("internal fault")
)

// Extractor turns an uploaded document into plain text.
type Extractor interface {
	Extract(ctx context.Context, filename string, content []byte) (string, error)
}

// BaselineProvider looks up prior-period size counts by period key.
type BaselineProvider interface {
	Lookup(ctx context.Context, period string) (*models.PriorPeriod, error)
}

type Config struct {
	MaxParallelFiles   int
	TopSizes           int
	TopCustomers       int
	PerFileTopSizes    int
	PredictedSizes     int
	MinCustomerOrders  int
	CustomerFilePolicy CustomerFilePolicy
	DecayWeight        float64
	TrendWeight        float64
}

func DefaultConfig() *Config {
	return &Config{
		MaxParallelFiles:   4,
		TopSizes:           5,
		TopCustomers:       20,
		PerFileTopSizes:    5,
		PredictedSizes:     5,
		MinCustomerOrders:  1,
		CustomerFilePolicy: PolicyExclusive,
		DecayWeight:        0.8,
		TrendWeight:        1.0,
	}
}

// Request is one analysis over a batch of uploads.
type Request struct {
	RequestID      string
	Uploads        []models.Upload
	Prior          *models.PriorPeriod
	BaselinePeriod string
}

// FileOutcome is the per-upload diagnostic kept next to the result.
type FileOutcome struct {
	Filename string
	Status   string
	Err      error
	Stats    LineStats
	Dropped  int
}

// Outcome is the result of Analyze plus what happened to each file.
type Outcome struct {
	Result   *models.AnalysisResult
	Files    []FileOutcome
	Stats    LineStats
	Duration time.Duration
}

type Service struct {
	config    *Config
	extractor Extractor
	baselines BaselineProvider
	parser    *Parser
	projector *Projector
	logger    logger.Logger
	tracer    trace.Tracer
}

type Option func(*Service)

// WithBaselines enables baseline lookups by period key.
func WithBaselines(p BaselineProvider) Option {
	return func(s *Service) { s.baselines = p }
}

func NewService(config *Config, extractor Extractor, log logger.Logger, opts ...Option) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if extractor == nil {
		return nil, errors.New("analytics: extractor is required")
	}
	if config.MaxParallelFiles < 1 {
		return nil, fmt.Errorf("analytics: max parallel files must be positive, got %d", config.MaxParallelFiles)
	}
	if !config.CustomerFilePolicy.Valid() {
		return nil, fmt.Errorf("analytics: unknown customer file policy %q", config.CustomerFilePolicy)
	}
	projector, err := NewProjector(config.DecayWeight, config.TrendWeight)
	if err != nil {
		return nil, err
	}

	s := &Service{
		config:    config,
		extractor: extractor,
		parser:    NewParser(),
		projector: projector,
		logger:    log.WithFields(map[string]interface{}{"component": "analytics"}),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Analyze runs the whole pipeline for one request. Files are processed in
// parallel; a failing file is reported in PerFile with empty rankings and
// never fails the request. If ctx ends first no partial result is returned.
func (s *Service) Analyze(ctx context.Context, req *Request) (*Outcome, error) {
	start := time.Now()
	if req == nil || len(req.Uploads) == 0 {
		return nil, apperrors.NewNoFilesSuppliedError()
	}

	ctx, span := s.tracer.Start(ctx, "analytics.Analyze", trace.WithAttributes(
		attribute.String("request.id", req.RequestID),
		attribute.Int("files.count", len(req.Uploads)),
	))
	defer span.End()

	log := logger.FromContext(ctx, s.logger).WithFields(map[string]interface{}{
		"requestId": req.RequestID,
		"files":     len(req.Uploads),
	})

	metrics.AnalyzeInFlight.Inc()
	defer metrics.AnalyzeInFlight.Dec()

	tallies := make([]*FileTally, len(req.Uploads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxParallelFiles)
	for i, up := range req.Uploads {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tallies[i] = s.processFile(gctx, i, up)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "cancelled")
		log.Warn("Analysis cancelled", map[string]interface{}{"error": err.Error()})
		return nil, apperrors.NewAnalysisCancelledError(err)
	}

	_, mergeSpan := s.tracer.Start(ctx, "analytics.merge")
	totals := Merge(tallies)
	mergeSpan.End()

	prior := s.resolvePrior(ctx, req, log)

	_, projectSpan := s.tracer.Start(ctx, "analytics.project")
	predicted := s.projector.Project(totals.Sizes, prior.Counts(), s.config.PredictedSizes)
	projectSpan.End()

	result := Assemble(totals, predicted, Limits{
		TopSizes:          s.config.TopSizes,
		TopCustomers:      s.config.TopCustomers,
		PerFileTopSizes:   s.config.PerFileTopSizes,
		PredictedSizes:    s.config.PredictedSizes,
		MinCustomerOrders: s.config.MinCustomerOrders,
		CustomerFiles:     s.config.CustomerFilePolicy,
	})

	out := &Outcome{Result: result, Files: make([]FileOutcome, 0, len(totals.Files))}
	for _, f := range totals.Files {
		fo := FileOutcome{Filename: f.Filename, Status: fileStatus(f.Err), Err: f.Err, Stats: f.Stats, Dropped: f.Dropped}
		out.Stats.add(f.Stats)
		out.Files = append(out.Files, fo)
		metrics.AnalyzeFiles.WithLabelValues(fo.Status).Inc()
	}
	metrics.AnalyzeRecords.Add(float64(out.Stats.Records))
	metrics.AnalyzeUnparsedLines.Add(float64(out.Stats.Unparsed))
	out.Duration = time.Since(start)

	span.SetAttributes(attribute.Int("orders.total", result.TotalOrders))
	log.Info("Analysis completed", map[string]interface{}{
		"totalOrders":   result.TotalOrders,
		"lines":         out.Stats.Lines,
		"unparsedLines": out.Stats.Unparsed,
		"durationMs":    out.Duration.Milliseconds(),
	})
	return out, nil
}

func (s *Service) processFile(ctx context.Context, index int, up models.Upload) (tally *FileTally) {
	ctx, span := s.tracer.Start(ctx, "analytics.file", trace.WithAttributes(
		attribute.String("file.name", up.Filename),
		attribute.Int("file.index", index),
	))
	defer span.End()

	log := s.logger.WithFields(map[string]interface{}{"filename": up.Filename, "index": index})

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrFileFault, r)
			span.SetStatus(codes.Error, err.Error())
			log.Error("File processing panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
			tally = failedTally(index, up.Filename, err)
		}
	}()

	text := up.Text
	if !up.Extracted {
		extracted, err := s.extractor.Extract(ctx, up.Filename, up.Content)
		if err != nil {
			span.SetStatus(codes.Error, "extraction failed")
			log.Warn("Text extraction failed", map[string]interface{}{"error": err.Error()})
			return failedTally(index, up.Filename, fmt.Errorf("%w: %w", ErrExtraction, err))
		}
		text = extracted
	}

	scan := s.parser.Scan(up.Filename, text)
	tally = TallyRecords(index, up.Filename, scan.Records())
	if err := scan.Err(); err != nil {
		log.Warn("Document could not be scanned", map[string]interface{}{"error": err.Error()})
		return failedTally(index, up.Filename, fmt.Errorf("%w: %w", ErrParse, err))
	}
	tally.Stats = scan.Stats()

	span.SetAttributes(
		attribute.Int("file.lines", tally.Stats.Lines),
		attribute.Int("file.records", tally.Stats.Records),
	)
	log.Debug("File parsed", map[string]interface{}{
		"lines":    tally.Stats.Lines,
		"matched":  tally.Stats.Matched,
		"unparsed": tally.Stats.Unparsed,
		"rejected": tally.Stats.Rejected,
	})
	return tally
}

// resolvePrior prefers the request-supplied prior period and otherwise
// consults the baseline provider. Lookup failures degrade to no prior.
func (s *Service) resolvePrior(ctx context.Context, req *Request, log logger.Logger) *models.PriorPeriod {
	if req.Prior != nil || req.BaselinePeriod == "" {
		return req.Prior
	}
	if s.baselines == nil {
		log.Warn("Baseline period requested but no baseline source configured", map[string]interface{}{
			"period": req.BaselinePeriod,
		})
		return nil
	}

	ctx, span := s.tracer.Start(ctx, "analytics.baseline", trace.WithAttributes(
		attribute.String("baseline.period", req.BaselinePeriod),
	))
	defer span.End()

	prior, err := s.baselines.Lookup(ctx, req.BaselinePeriod)
	if err != nil {
		if errors.Is(err, baseline.ErrNotFound) {
			metrics.BaselineLookups.WithLabelValues("miss").Inc()
		} else {
			metrics.BaselineLookups.WithLabelValues("error").Inc()
		}
		span.SetStatus(codes.Error, err.Error())
		log.Warn("Baseline lookup failed, projecting without trend", map[string]interface{}{
			"period": req.BaselinePeriod,
			"error":  err.Error(),
		})
		return nil
	}
	metrics.BaselineLookups.WithLabelValues("hit").Inc()
	return prior
}

func fileStatus(err error) string {
	switch {
	case err == nil:
		return FileOK
	case errors.Is(err, ErrExtraction):
		return FileExtractionFailed
	case errors.Is(err, ErrParse):
		return FileParseFailed
	default:
		return FileFault
	}
}
