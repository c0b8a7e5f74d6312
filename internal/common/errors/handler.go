// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// DefaultCommandTimeout bounds a single complete/fail/throw command.
const DefaultCommandTimeout = 10 * time.Second

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler reports a failed job to the broker: a retryable code with
// retries left fails the job, anything else throws a BPMN error.
type ErrorHandler struct {
	logger         Logger
	commandTimeout time.Duration
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger, commandTimeout: DefaultCommandTimeout}
}

// CommandContext returns a context for job commands that keeps the values of
// ctx but not its deadline, since the handler deadline may already be spent.
func CommandContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

// RetriesLeft is the retry count a fail command should carry. Zero means the
// job must not be failed again and the error is thrown instead.
func RetriesLeft(code ErrorCode, jobRetries int32) int32 {
	limit := int32(GetRetryCount(code))
	if limit == 0 {
		return 0
	}
	left := jobRetries - 1
	if left > limit {
		left = limit
	}
	if left < 0 {
		return 0
	}
	return left
}

// HandleJobError fails or throws the job and returns the send error, which is
// also logged.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) error {
	stdErr := AsStandardError(err)
	bpmnErr := ConvertToBPMNError(stdErr)
	retries := RetriesLeft(stdErr.Code, job.GetRetries())

	h.logError(job, stdErr, bpmnErr, retries)

	sendCtx, cancel := CommandContext(ctx, h.commandTimeout)
	defer cancel()

	vars := errorVariables(bpmnErr)
	var sendErr error
	if retries > 0 {
		sendErr = h.failJob(sendCtx, client, job, bpmnErr, retries, vars)
	} else {
		sendErr = h.throwError(sendCtx, client, job, bpmnErr, vars)
	}
	if sendErr != nil {
		h.logger.Error("Failed to report job error to broker", map[string]interface{}{
			"jobKey":    job.GetKey(),
			"errorCode": string(stdErr.Code),
			"thrown":    retries == 0,
			"error":     sendErr.Error(),
		})
	}
	return sendErr
}

func errorVariables(bpmnErr *BPMNError) string {
	vars := bpmnErr.ToErrorVariables()
	if len(vars) == 0 {
		return ""
	}
	raw, err := json.Marshal(vars)
	if err != nil {
		return ""
	}
	return string(raw)
}

func (h *ErrorHandler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError, retries int32, vars string) error {
	cmd := client.NewFailJobCommand().
		JobKey(job.GetKey()).
		Retries(retries).
		ErrorMessage(bpmnErr.Message)

	if vars != "" {
		if withVars, err := cmd.VariablesFromString(vars); err == nil {
			_, err = withVars.Send(ctx)
			return err
		}
	}
	_, err := cmd.Send(ctx)
	return err
}

func (h *ErrorHandler) throwError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError, vars string) error {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.GetKey()).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	if vars != "" {
		if withVars, err := cmd.VariablesFromString(vars); err == nil {
			_, err = withVars.Send(ctx)
			return err
		}
	}
	_, err := cmd.Send(ctx)
	return err
}

func (h *ErrorHandler) logError(job entities.Job, stdErr *StandardError, bpmnErr *BPMNError, retries int32) {
	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"jobType":            job.GetType(),
		"errorCode":          string(stdErr.Code),
		"bpmnErrorCode":      bpmnErr.Code,
		"message":            bpmnErr.Message,
		"details":            stdErr.Details,
		"retryable":          stdErr.Retryable,
		"retriesLeft":        retries,
		"errorCategory":      GetErrorCategory(stdErr.Code),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})
}
