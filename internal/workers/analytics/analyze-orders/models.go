// internal/workers/analytics/analyze-orders/models.go
package analyzeorders

import "shoe-size-analytics/internal/models"

// Document is one order document carried in process variables, either as
// already extracted text or as base64 encoded file bytes.
type Document struct {
	Filename      string  `json:"filename"`
	Text          *string `json:"text,omitempty"`
	ContentBase64 string  `json:"contentBase64,omitempty"`
}

type Input struct {
	RequestID      string              `json:"requestId,omitempty"`
	Documents      []Document          `json:"documents"`
	PriorPeriod    *models.PriorPeriod `json:"priorPeriod,omitempty"`
	BaselinePeriod string              `json:"baselinePeriod,omitempty"`
}

type FileStatus struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

type Output struct {
	Analysis *models.AnalysisResult `json:"analysis"`
	Files    []FileStatus           `json:"analysisFiles"`
}
