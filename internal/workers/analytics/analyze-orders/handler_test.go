// internal/workers/analytics/analyze-orders/handler_test.go
package analyzeorders

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"shoe-size-analytics/internal/analytics"
	"shoe-size-analytics/internal/common/camunda/camundatest"
	"shoe-size-analytics/internal/common/config"
	"shoe-size-analytics/internal/common/errors"
	"shoe-size-analytics/internal/common/logger"
	"shoe-size-analytics/internal/extractor"
	"shoe-size-analytics/internal/models"
)

// ==========================
// Mocks and helpers
// ==========================

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, req *analytics.Request) (*analytics.Outcome, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analytics.Outcome), args.Error(1)
}

type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger { return tl }

func (tl *testLogger) WithError(err error) logger.Logger { return tl }

func (tl *testLogger) With(fields map[string]interface{}) logger.Logger { return tl }

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "order-analytics",
		ElementId:          "Activity_AnalyzeOrders",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func createTestHandler(t *testing.T, a Analyzer) *Handler {
	t.Helper()
	h, err := NewHandler(DefaultConfig(), a, &testLogger{t: t})
	require.NoError(t, err)
	return h
}

func text(s string) *string { return &s }

func okOutcome() *analytics.Outcome {
	return &analytics.Outcome{
		Result: &models.AnalysisResult{
			TopSizes:       []models.SizeStat{{Size: 7, Count: 1}},
			TopCustomers:   []models.CustomerStat{},
			PerFile:        []models.FileBreakdown{{Filename: "a.txt", TopSizes: []models.SizeStat{{Size: 7, Count: 1}}, TotalOrders: 1}},
			PredictedSizes: []models.PredictedSizeStat{{Size: 7, PredictedDemand: 0.8}},
			TotalOrders:    1,
		},
		Files: []analytics.FileOutcome{{Filename: "a.txt", Status: analytics.FileOK}},
	}
}

// ==========================
// Handler creation
// ==========================

func TestNewHandler(t *testing.T) {
	_, err := NewHandler(&Config{Timeout: 0, MaxDocuments: 1}, &MockAnalyzer{}, &testLogger{t: t})
	assert.Error(t, err)

	_, err = NewHandler(&Config{Timeout: time.Second, MaxDocuments: 0}, &MockAnalyzer{}, &testLogger{t: t})
	assert.Error(t, err)

	h, err := NewHandler(nil, &MockAnalyzer{}, &testLogger{t: t})
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), h.config)
}

func TestConfigFromApp(t *testing.T) {
	app := &config.Config{
		Server:  config.ServerConfig{MaxFiles: 3, MaxUploadBytes: 1024},
		Workers: map[string]config.WorkerConfig{TaskType: {Enabled: true, Timeout: 5000}},
	}
	c := ConfigFromApp(app)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.Equal(t, 3, c.MaxDocuments)
	assert.Equal(t, 1024, c.MaxDocumentBytes)

	assert.Equal(t, DefaultConfig(), ConfigFromApp(nil))
}

// ==========================
// Input parsing
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, &MockAnalyzer{})

	tests := []struct {
		name      string
		variables map[string]interface{}
		wantErr   bool
		check     func(t *testing.T, in *Input)
	}{
		{
			name: "text and binary documents",
			variables: map[string]interface{}{
				"documents": []map[string]interface{}{
					{"filename": "a.txt", "text": "Customer 1 size 7"},
					{"filename": "b.docx", "contentBase64": "UEsDBA=="},
				},
				"priorPeriod":    map[string]interface{}{"sizes": []map[string]interface{}{{"size": 7, "count": 2}}},
				"baselinePeriod": "2024-Q1",
			},
			check: func(t *testing.T, in *Input) {
				require.Len(t, in.Documents, 2)
				require.NotNil(t, in.Documents[0].Text)
				assert.Equal(t, "Customer 1 size 7", *in.Documents[0].Text)
				assert.Nil(t, in.Documents[1].Text)
				assert.Equal(t, "2024-Q1", in.BaselinePeriod)
				require.NotNil(t, in.PriorPeriod)
				assert.Equal(t, map[float64]int{7: 2}, in.PriorPeriod.Counts())
			},
		},
		{
			name:      "missing documents",
			variables: map[string]interface{}{"baselinePeriod": "2024-Q1"},
			wantErr:   true,
		},
		{
			name: "document without content",
			variables: map[string]interface{}{
				"documents": []map[string]interface{}{{"filename": "a.txt"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := createMockJob(1, tt.variables)
			in, err := h.parseInput(job.GetVariables())
			if tt.wantErr {
				var stdErr *errors.StandardError
				require.ErrorAs(t, err, &stdErr)
				assert.Equal(t, errors.ErrCodeInvalidRequest, stdErr.Code)
				return
			}
			require.NoError(t, err)
			tt.check(t, in)
		})
	}
}

func TestHandler_ProcessDefaultsRequestID(t *testing.T) {
	a := &MockAnalyzer{}
	a.On("Analyze", mock.Anything, mock.MatchedBy(func(req *analytics.Request) bool {
		return req.RequestID == "job-77"
	})).Return(okOutcome(), nil)

	h := createTestHandler(t, a)
	out, err := h.process(context.Background(), createMockJob(77, map[string]interface{}{
		"documents": []map[string]interface{}{{"filename": "a.txt", "text": "Customer 1 size 7"}},
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, out.Analysis.TotalOrders)
	a.AssertExpectations(t)
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute_BuildsUploads(t *testing.T) {
	a := &MockAnalyzer{}
	a.On("Analyze", mock.Anything, mock.MatchedBy(func(req *analytics.Request) bool {
		return len(req.Uploads) == 2 &&
			req.Uploads[0].Extracted && req.Uploads[0].Text == "Customer 1 size 7" &&
			!req.Uploads[1].Extracted && string(req.Uploads[1].Content) == "Customer 2 size 8" &&
			req.BaselinePeriod == "2024-Q1"
	})).Return(okOutcome(), nil)

	h := createTestHandler(t, a)
	out, err := h.Execute(context.Background(), &Input{
		RequestID: "r-1",
		Documents: []Document{
			{Filename: "a.txt", Text: text("Customer 1 size 7")},
			{Filename: "b.txt", ContentBase64: base64.StdEncoding.EncodeToString([]byte("Customer 2 size 8"))},
		},
		BaselinePeriod: "2024-Q1",
	})
	require.NoError(t, err)

	assert.Equal(t, okOutcome().Result, out.Analysis)
	assert.Equal(t, []FileStatus{{Filename: "a.txt", Status: analytics.FileOK}}, out.Files)
	a.AssertExpectations(t)
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		input    *Input
		analyzer func(a *MockAnalyzer)
		wantCode errors.ErrorCode
	}{
		{
			name:     "no documents",
			input:    &Input{},
			wantCode: errors.ErrCodeNoFilesSupplied,
		},
		{
			name:   "too many documents",
			config: &Config{Timeout: time.Second, MaxDocuments: 1, MaxDocumentBytes: 1024},
			input: &Input{Documents: []Document{
				{Filename: "a.txt", Text: text("x")},
				{Filename: "b.txt", Text: text("y")},
			}},
			wantCode: errors.ErrCodeUploadTooLarge,
		},
		{
			name:     "document too large",
			config:   &Config{Timeout: time.Second, MaxDocuments: 5, MaxDocumentBytes: 4},
			input:    &Input{Documents: []Document{{Filename: "a.txt", Text: text("Customer 1 size 7")}}},
			wantCode: errors.ErrCodeUploadTooLarge,
		},
		{
			name:     "bad base64",
			input:    &Input{Documents: []Document{{Filename: "a.docx", ContentBase64: "!!not base64!!"}}},
			wantCode: errors.ErrCodeInvalidRequest,
		},
		{
			name:  "analysis cancelled",
			input: &Input{Documents: []Document{{Filename: "a.txt", Text: text("Customer 1 size 7")}}},
			analyzer: func(a *MockAnalyzer) {
				a.On("Analyze", mock.Anything, mock.Anything).
					Return(nil, errors.NewAnalysisCancelledError(context.DeadlineExceeded))
			},
			wantCode: errors.ErrCodeAnalysisCancelled,
		},
		{
			name:  "unexpected failure",
			input: &Input{Documents: []Document{{Filename: "a.txt", Text: text("Customer 1 size 7")}}},
			analyzer: func(a *MockAnalyzer) {
				a.On("Analyze", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("boom"))
			},
			wantCode: errors.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &MockAnalyzer{}
			if tt.analyzer != nil {
				tt.analyzer(a)
			}
			cfg := tt.config
			if cfg == nil {
				cfg = DefaultConfig()
			}
			h, err := NewHandler(cfg, a, &testLogger{t: t})
			require.NoError(t, err)

			_, err = h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.AsStandardError(err).Code)
			a.AssertExpectations(t)
		})
	}
}

func TestHandler_Execute_WithService(t *testing.T) {
	svc, err := analytics.NewService(analytics.DefaultConfig(), extractor.NewLocal(), logger.NewTestLogger(t))
	require.NoError(t, err)
	h := createTestHandler(t, svc)

	out, err := h.Execute(context.Background(), &Input{
		Documents: []Document{
			{Filename: "A", Text: text("Customer 1001 size 7\nCustomer 1001 size 7\nCustomer 1001 size 7\nCustomer 1001 size 8")},
			{Filename: "B.txt", ContentBase64: base64.StdEncoding.EncodeToString([]byte("Customer 1001 size 7\nCustomer 2002 size 6\nCustomer 2002 size 6"))},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []models.SizeStat{{Size: 7, Count: 4}, {Size: 6, Count: 2}, {Size: 8, Count: 1}}, out.Analysis.TopSizes)
	assert.Equal(t, 7, out.Analysis.TotalOrders)
	require.Len(t, out.Files, 2)
	assert.Equal(t, analytics.FileOK, out.Files[0].Status)
	assert.Equal(t, analytics.FileOK, out.Files[1].Status)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"analysis":{"top_sizes":[{"size":7,"count":4}`)
}

// ==========================
// Handle (job commands)
// ==========================

func textJob(key int64) entities.Job {
	return createMockJob(key, map[string]interface{}{
		"documents": []interface{}{
			map[string]interface{}{"filename": "a.txt", "text": "Customer 1001 size 7"},
		},
	})
}

func waitForDeadline(args mock.Arguments) {
	<-args.Get(0).(context.Context).Done()
}

func TestHandler_Handle_CompletesJob(t *testing.T) {
	a := &MockAnalyzer{}
	a.On("Analyze", mock.Anything, mock.Anything).Return(okOutcome(), nil)
	client := camundatest.NewJobClient()

	createTestHandler(t, a).Handle(client, textJob(11))

	calls := client.Calls()
	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].Complete)
	assert.Equal(t, int64(11), calls[0].Complete.GetJobKey())

	var vars Output
	require.NoError(t, json.Unmarshal([]byte(calls[0].Complete.GetVariables()), &vars))
	assert.Equal(t, 1, vars.Analysis.TotalOrders)
	assert.Equal(t, []FileStatus{{Filename: "a.txt", Status: analytics.FileOK}}, vars.Files)
	a.AssertExpectations(t)
}

func TestHandler_Handle_TimeoutFailsJobForRetry(t *testing.T) {
	a := &MockAnalyzer{}
	a.On("Analyze", mock.Anything, mock.Anything).
		Run(waitForDeadline).
		Return(nil, errors.NewAnalysisCancelledError(context.DeadlineExceeded))
	client := camundatest.NewJobClient()

	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	h, err := NewHandler(cfg, a, &testLogger{t: t})
	require.NoError(t, err)

	h.Handle(client, textJob(12))

	calls := client.Calls()
	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].Fail, "cancelled analysis must fail the job so the broker retries it")
	assert.NoError(t, calls[0].CtxErr)
	assert.Equal(t, int32(1), calls[0].Fail.GetRetries())
}

func TestHandler_Handle_CompletesAtDeadline(t *testing.T) {
	a := &MockAnalyzer{}
	a.On("Analyze", mock.Anything, mock.Anything).Run(waitForDeadline).Return(okOutcome(), nil)
	client := camundatest.NewJobClient()

	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	h, err := NewHandler(cfg, a, &testLogger{t: t})
	require.NoError(t, err)

	h.Handle(client, textJob(13))

	calls := client.Calls()
	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].Complete)
	assert.NoError(t, calls[0].CtxErr)
}

func TestHandler_Handle_InvalidVariablesThrow(t *testing.T) {
	client := camundatest.NewJobClient()

	createTestHandler(t, &MockAnalyzer{}).Handle(client, createMockJob(14, map[string]interface{}{"documents": []interface{}{}}))

	calls := client.Calls()
	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].Throw)
	assert.Equal(t, "INVALID_REQUEST", calls[0].Throw.GetErrorCode())
}
