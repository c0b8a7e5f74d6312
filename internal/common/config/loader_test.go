// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeConfig(t, "app:\n  name: test-analytics\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "test-analytics", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Analytics.MaxParallelFiles)
	assert.Equal(t, "exclusive", cfg.Analytics.CustomerFilePolicy)
	assert.InDelta(t, 0.8, cfg.Analytics.DecayWeight, 1e-9)
	assert.InDelta(t, 1.0, cfg.Analytics.TrendWeight, 1e-9)
	assert.Equal(t, 1, cfg.Analytics.MinCustomerOrders)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "size_baselines", cfg.Baseline.Table)
	assert.False(t, cfg.Camunda.Enabled)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_PG_HOST", "db.internal")
	path := writeConfig(t, `
baseline:
  source: postgres
database:
  postgres:
    host: ${TEST_PG_HOST}
    database: analytics
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "unknown customer file policy",
			body:    "analytics:\n  customer_file_policy: newest\n",
			wantErr: "customer_file_policy",
		},
		{
			name:    "decay weight above one",
			body:    "analytics:\n  decay_weight: 1.5\n",
			wantErr: "decay_weight",
		},
		{
			name:    "elasticsearch baseline without addresses",
			body:    "baseline:\n  source: elasticsearch\n",
			wantErr: "elasticsearch",
		},
		{
			name:    "unknown baseline source",
			body:    "baseline:\n  source: mongo\n",
			wantErr: "baseline.source",
		},
		{
			name:    "cache ttl without redis",
			body:    "baseline:\n  source: elasticsearch\n  cache_ttl: 60\ndatabase:\n  elasticsearch:\n    url: http://es:9200\n",
			wantErr: "redis",
		},
		{
			name:    "camunda enabled without broker",
			body:    "camunda:\n  enabled: true\n",
			wantErr: "broker_address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetWorkerConfig(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"analyze-orders": {Enabled: false, MaxJobsActive: 2},
	}}

	assert.Equal(t, 2, GetWorkerConfig(cfg, "analyze-orders").MaxJobsActive)
	assert.False(t, IsWorkerEnabled(cfg, "analyze-orders"))

	fallback := GetWorkerConfig(cfg, "missing")
	assert.True(t, fallback.Enabled)
	assert.Equal(t, 3, fallback.MaxRetries)
	assert.True(t, IsWorkerEnabled(cfg, "missing"))
}

func TestLoadFromFile_UnsetPlaceholdersExpandEmpty(t *testing.T) {
	t.Setenv("TEST_ES_URL", "")
	t.Setenv("TEST_TIKA_URL", "")
	path := writeConfig(t, `
extractor:
  remote_url: ${TEST_TIKA_URL}
database:
  elasticsearch:
    addresses: ["${TEST_ES_URL}", "http://es-2:9200"]
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Extractor.RemoteURL)
	assert.Equal(t, []string{"http://es-2:9200"}, cfg.Database.Elasticsearch.Addresses)
}
