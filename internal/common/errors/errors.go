// Package errors provides standardized error handling for the HTTP API and
// BPMN workflow integration.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Request errors
const (
	ErrCodeNoFilesSupplied    ErrorCode = "NO_FILES_SUPPLIED"
	ErrCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrCodeUploadTooLarge     ErrorCode = "UPLOAD_TOO_LARGE"
	ErrCodeInvalidPriorPeriod ErrorCode = "INVALID_PRIOR_PERIOD"
)

// Processing errors
const (
	ErrCodeExtractionFailed  ErrorCode = "EXTRACTION_FAILED"
	ErrCodeAnalysisCancelled ErrorCode = "ANALYSIS_CANCELLED"
	ErrCodeAnalysisFailed    ErrorCode = "ANALYSIS_FAILED"
	ErrCodeResponseInvalid   ErrorCode = "RESPONSE_VALIDATION_FAILED"
)

// Infrastructure errors
const (
	ErrCodeDatabaseConnectionFailed      ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed          ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed             ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeBaselineLookupFailed          ErrorCode = "BASELINE_LOOKUP_FAILED"
	ErrCodeWorkflowEngineUnavailable     ErrorCode = "WORKFLOW_ENGINE_UNAVAILABLE"
)

const ErrCodeInternal ErrorCode = "INTERNAL_ERROR"

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error { return e.cause }

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func detailsOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// NewNoFilesSuppliedError is returned when a request carries zero documents.
func NewNoFilesSuppliedError() *StandardError {
	return newError(ErrCodeNoFilesSupplied, "No files supplied", "at least one document is required", false, nil)
}

func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Malformed request", details, false, nil)
}

func NewUploadTooLargeError(details string) *StandardError {
	return newError(ErrCodeUploadTooLarge, "Upload exceeds configured limits", details, false, nil)
}

func NewInvalidPriorPeriodError(details string) *StandardError {
	return newError(ErrCodeInvalidPriorPeriod, "Prior period payload is invalid", details, false, nil)
}

// NewExtractionFailedError describes a single document that could not be read.
func NewExtractionFailedError(filename string, err error) *StandardError {
	e := newError(ErrCodeExtractionFailed, "Text extraction failed", detailsOf(err), false, err)
	e.Metadata = map[string]interface{}{"filename": filename}
	return e
}

// NewAnalysisCancelledError wraps a context error; the caller went away or
// the deadline passed before every file was processed.
func NewAnalysisCancelledError(err error) *StandardError {
	return newError(ErrCodeAnalysisCancelled, "Analysis cancelled", detailsOf(err), true, err)
}

func NewAnalysisFailedError(err error) *StandardError {
	return newError(ErrCodeAnalysisFailed, "Analysis failed", detailsOf(err), false, err)
}

func NewResponseValidationError(details string) *StandardError {
	return newError(ErrCodeResponseInvalid, "Response failed schema validation", details, false, nil)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", detailsOf(err), true, err)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, detailsOf(err)), true, err)
}

// NewElasticsearchConnectionFailedError creates a retryable Elasticsearch connection error.
func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeElasticsearchConnectionFailed, "Elasticsearch connection error", detailsOf(err), true, err)
}

// NewSearchQueryFailedError creates a retryable search query error.
func NewSearchQueryFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, detailsOf(err)), true, err)
}

func NewBaselineLookupFailedError(period string, err error) *StandardError {
	e := newError(ErrCodeBaselineLookupFailed, "Baseline lookup failed", detailsOf(err), true, err)
	e.Metadata = map[string]interface{}{"period": period}
	return e
}

// NewWorkflowEngineError wraps a failed Zeebe gateway call.
func NewWorkflowEngineError(operation string, retryable bool, err error) *StandardError {
	e := newError(ErrCodeWorkflowEngineUnavailable, "Workflow engine call failed", detailsOf(err), retryable, err)
	e.Metadata = map[string]interface{}{"operation": operation}
	return e
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", detailsOf(err), false, err)
}

// ==========================
// 4. Error Conversion
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes. Codes
// not listed are passed through unchanged.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeNoFilesSupplied:    "NO_FILES_SUPPLIED",
	ErrCodeInvalidRequest:     "INVALID_REQUEST",
	ErrCodeUploadTooLarge:     "INVALID_REQUEST",
	ErrCodeInvalidPriorPeriod: "INVALID_REQUEST",
	ErrCodeAnalysisFailed:     "ANALYSIS_FAILED",
	ErrCodeResponseInvalid:    "ANALYSIS_FAILED",
	ErrCodeInternal:           "ANALYSIS_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeBaselineLookupFailed,
		ErrCodeWorkflowEngineUnavailable:
		return 3

	case ErrCodeAnalysisCancelled:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// HTTPStatus maps an error code to the status returned by the API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNoFilesSupplied, ErrCodeInvalidRequest, ErrCodeInvalidPriorPeriod:
		return http.StatusBadRequest
	case ErrCodeUploadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeAnalysisCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError returns err as a *StandardError, wrapping it as an
// internal error when it is not one.
func AsStandardError(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "WORKFLOW"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "BASELINE"):
		return "BASELINE"
	case strings.Contains(codeStr, "EXTRACTION"):
		return "EXTRACTION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "NO_FILES") ||
		strings.Contains(codeStr, "TOO_LARGE") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "ANALYSIS"):
		return "ANALYSIS"
	default:
		return "OTHER"
	}
}
