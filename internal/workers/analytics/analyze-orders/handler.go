// internal/workers/analytics/analyze-orders/handler.go
package analyzeorders

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"shoe-size-analytics/internal/analytics"
	"shoe-size-analytics/internal/common/errors"
	"shoe-size-analytics/internal/common/logger"
	"shoe-size-analytics/internal/common/metrics"
	"shoe-size-analytics/internal/common/validation"
	"shoe-size-analytics/internal/models"
)

const TaskType = "analyze-orders"

type Analyzer interface {
	Analyze(ctx context.Context, req *analytics.Request) (*analytics.Outcome, error)
}

type Handler struct {
	config       *Config
	analyzer     Analyzer
	schema       *validation.Schema
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, analyzer Analyzer, log logger.Logger) (*Handler, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	schema, err := validation.Load(validation.AnalyzeJobSchema)
	if err != nil {
		return nil, err
	}

	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		analyzer:     analyzer,
		schema:       schema,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	output, err := h.process(ctx, job)
	metrics.AnalyzeDuration.WithLabelValues("zeebe").Observe(time.Since(start).Seconds())
	if err != nil {
		stdErr := errors.AsStandardError(err)
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
		metrics.AnalyzeRequests.WithLabelValues("zeebe", string(stdErr.Code)).Inc()
		_ = h.errorHandler.HandleJobError(ctx, client, job, stdErr)
		return
	}

	if err := h.completeJob(ctx, client, job, output); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	metrics.AnalyzeRequests.WithLabelValues("zeebe", "OK").Inc()
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

func (h *Handler) process(ctx context.Context, job entities.Job) (*Output, error) {
	input, err := h.parseInput(job.GetVariables())
	if err != nil {
		return nil, err
	}
	if input.RequestID == "" {
		input.RequestID = fmt.Sprintf("job-%d", job.GetKey())
	}
	return h.Execute(ctx, input)
}

func (h *Handler) parseInput(variables string) (*Input, error) {
	res, err := h.schema.ValidateBytes([]byte(variables))
	if err != nil {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("parse job variables: %v", err))
	}
	if !res.Valid {
		return nil, errors.NewInvalidRequestError(res.Summary())
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("parse job variables: %v", err))
	}
	return &input, nil
}

// Execute decodes the documents and runs the analysis.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if len(input.Documents) == 0 {
		return nil, errors.NewNoFilesSuppliedError()
	}
	if len(input.Documents) > h.config.MaxDocuments {
		return nil, errors.NewUploadTooLargeError(fmt.Sprintf("%d documents supplied, at most %d allowed", len(input.Documents), h.config.MaxDocuments))
	}

	uploads := make([]models.Upload, 0, len(input.Documents))
	for _, doc := range input.Documents {
		up, err := h.toUpload(doc)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, up)
	}

	outcome, err := h.analyzer.Analyze(ctx, &analytics.Request{
		RequestID:      input.RequestID,
		Uploads:        uploads,
		Prior:          input.PriorPeriod,
		BaselinePeriod: input.BaselinePeriod,
	})
	if err != nil {
		return nil, err
	}

	out := &Output{Analysis: outcome.Result, Files: make([]FileStatus, 0, len(outcome.Files))}
	for _, f := range outcome.Files {
		fs := FileStatus{Filename: f.Filename, Status: f.Status}
		if f.Err != nil {
			fs.Error = f.Err.Error()
		}
		out.Files = append(out.Files, fs)
	}
	return out, nil
}

func (h *Handler) toUpload(doc Document) (models.Upload, error) {
	if doc.Text != nil {
		if len(*doc.Text) > h.config.MaxDocumentBytes {
			return models.Upload{}, errors.NewUploadTooLargeError(fmt.Sprintf("%s exceeds %d bytes", doc.Filename, h.config.MaxDocumentBytes))
		}
		return models.Upload{Filename: doc.Filename, Text: *doc.Text, Extracted: true}, nil
	}

	if base64.StdEncoding.DecodedLen(len(doc.ContentBase64)) > h.config.MaxDocumentBytes {
		return models.Upload{}, errors.NewUploadTooLargeError(fmt.Sprintf("%s exceeds %d bytes", doc.Filename, h.config.MaxDocumentBytes))
	}
	content, err := base64.StdEncoding.DecodeString(doc.ContentBase64)
	if err != nil {
		return models.Upload{}, errors.NewInvalidRequestError(fmt.Sprintf("%s: invalid base64 content: %v", doc.Filename, err))
	}
	return models.Upload{Filename: doc.Filename, Content: content}, nil
}

// completeJob sends on its own bounded context: an analysis finishing right at
// the handler deadline must still be reported.
func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		return fmt.Errorf("build complete command: %w", err)
	}

	sendCtx, cancel := errors.CommandContext(ctx, h.config.CommandTimeout)
	defer cancel()
	if _, err := request.Send(sendCtx); err != nil {
		return fmt.Errorf("send complete command: %w", err)
	}

	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":      job.GetKey(),
		"totalOrders": output.Analysis.TotalOrders,
		"files":       len(output.Files),
	})
	return nil
}
