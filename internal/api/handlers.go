// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"shoe-size-analytics/internal/analytics"
	apperrors "shoe-size-analytics/internal/common/errors"
	"shoe-size-analytics/internal/common/logger"
	"shoe-size-analytics/internal/common/metrics"
	"shoe-size-analytics/internal/models"
)

const (
	fieldFiles          = "files"
	fieldPriorPeriod    = "prior_period"
	fieldBaselinePeriod = "baseline_period"
)

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logger.FromContext(r.Context(), s.logger)

	req, stdErr := s.readAnalyzeRequest(w, r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if stdErr != nil {
		log.Warn("Rejected analyze request", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
		s.observe(r.Context(), stdErr.Code, start, nil)
		writeError(w, r, stdErr)
		return
	}

	ctx, span := s.obs.StartSpan(r.Context(), "http.analyze",
		attribute.String("request.id", req.RequestID),
		attribute.Int("files.count", len(req.Uploads)),
	)
	defer span.End()
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	outcome, err := s.analyzer.Analyze(ctx, req)
	if err != nil {
		stdErr := apperrors.AsStandardError(err)
		log.Error("Analysis failed", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"error":     err.Error(),
		})
		s.observe(r.Context(), stdErr.Code, start, nil)
		writeError(w, r, stdErr)
		return
	}

	body, err := json.Marshal(outcome.Result)
	if err != nil {
		stdErr := apperrors.NewInternalError(err)
		s.observe(r.Context(), stdErr.Code, start, outcome)
		writeError(w, r, stdErr)
		return
	}

	if s.config.ValidateResponses {
		res, err := s.responseSchema.ValidateBytes(body)
		if err != nil || !res.Valid {
			var details string
			if err != nil {
				details = err.Error()
			} else {
				details = res.Summary()
			}
			log.Error("Response failed contract validation", map[string]interface{}{"details": details})
			stdErr := apperrors.NewResponseValidationError(details)
			s.observe(r.Context(), stdErr.Code, start, outcome)
			writeError(w, r, stdErr)
			return
		}
	}

	for _, f := range outcome.Files {
		if f.Status != analytics.FileOK {
			log.Warn("File excluded from analysis", map[string]interface{}{
				"filename": f.Filename,
				"status":   f.Status,
				"error":    fmt.Sprint(f.Err),
			})
		}
	}

	s.observe(r.Context(), "OK", start, outcome)
	writeRaw(w, http.StatusOK, body)
}

// readAnalyzeRequest parses the multipart form within the configured limits.
func (s *Server) readAnalyzeRequest(w http.ResponseWriter, r *http.Request) (*analytics.Request, *apperrors.StandardError) {
	if s.config.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.NewUploadTooLargeError(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		}
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("expected multipart/form-data: %v", err))
	}

	headers := r.MultipartForm.File[fieldFiles]
	if len(headers) == 0 {
		return nil, apperrors.NewNoFilesSuppliedError()
	}
	if s.config.MaxFiles > 0 && len(headers) > s.config.MaxFiles {
		return nil, apperrors.NewUploadTooLargeError(fmt.Sprintf("%d files supplied, at most %d allowed", len(headers), s.config.MaxFiles))
	}

	req := &analytics.Request{
		RequestID:      requestIDFrom(r),
		Uploads:        make([]models.Upload, 0, len(headers)),
		BaselinePeriod: strings.TrimSpace(formValues(r.MultipartForm.Value[fieldBaselinePeriod]).first()),
	}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("open %s: %v", fh.Filename, err))
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("read %s: %v", fh.Filename, err))
		}
		req.Uploads = append(req.Uploads, models.Upload{Filename: fh.Filename, Content: content})
	}

	if raw := strings.TrimSpace(formValues(r.MultipartForm.Value[fieldPriorPeriod]).first()); raw != "" {
		prior, stdErr := s.parsePriorPeriod([]byte(raw))
		if stdErr != nil {
			return nil, stdErr
		}
		req.Prior = prior
	}
	return req, nil
}

func (s *Server) parsePriorPeriod(raw []byte) (*models.PriorPeriod, *apperrors.StandardError) {
	res, err := s.priorSchema.ValidateBytes(raw)
	if err != nil {
		return nil, apperrors.NewInvalidPriorPeriodError(err.Error())
	}
	if !res.Valid {
		return nil, apperrors.NewInvalidPriorPeriodError(res.Summary())
	}

	var prior models.PriorPeriod
	if err := json.Unmarshal(raw, &prior); err != nil {
		return nil, apperrors.NewInvalidPriorPeriodError(err.Error())
	}
	return &prior, nil
}

type formValues []string

func (v formValues) first() string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

func (s *Server) observe(ctx context.Context, code apperrors.ErrorCode, start time.Time, outcome *analytics.Outcome) {
	elapsed := time.Since(start)
	metrics.AnalyzeRequests.WithLabelValues(sourceHTTP, string(code)).Inc()
	metrics.AnalyzeDuration.WithLabelValues(sourceHTTP).Observe(elapsed.Seconds())

	if s.obs == nil {
		return
	}
	s.obs.RecordAnalysis(ctx, sourceHTTP, string(code), elapsed)
	if outcome != nil {
		for _, f := range outcome.Files {
			s.obs.RecordFile(ctx, f.Status)
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": s.config.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady pings every registered dependency. Any failure makes the
// instance unready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": checks,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
