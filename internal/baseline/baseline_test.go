// internal/baseline/baseline_test.go
package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "shoe-size-analytics/internal/common/errors"
	"shoe-size-analytics/internal/common/logger"
	"shoe-size-analytics/internal/models"
)

const baselineQuery = `SELECT size, SUM\(order_count\)\s+FROM size_baselines\s+WHERE period = \$1`

// ==========================
// Postgres
// ==========================

func TestPostgresStore_Lookup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewPostgresStore(db, "size_baselines")
	require.NoError(t, err)

	mock.ExpectQuery(baselineQuery).
		WithArgs("2024-Q1").
		WillReturnRows(sqlmock.NewRows([]string{"size", "sum"}).
			AddRow(7.0, 12).
			AddRow(8.5, 3).
			AddRow(30.0, 2).
			AddRow(9.0, 0))

	prior, err := store.Lookup(context.Background(), " 2024-Q1 ")
	require.NoError(t, err)

	assert.Equal(t, "2024-Q1", prior.Label)
	assert.Equal(t, []models.SizeStat{{Size: 7, Count: 12}, {Size: 8.5, Count: 3}}, prior.Sizes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Errors(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(mock sqlmock.Sqlmock)
		period string
		check  func(t *testing.T, err error)
	}{
		{
			name: "no rows",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(baselineQuery).WithArgs("2023-Q4").
					WillReturnRows(sqlmock.NewRows([]string{"size", "sum"}))
			},
			period: "2023-Q4",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name: "query failure",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(baselineQuery).WithArgs("2023-Q4").
					WillReturnError(errors.New("connection reset"))
			},
			period: "2023-Q4",
			check: func(t *testing.T, err error) {
				var stdErr *apperrors.StandardError
				require.ErrorAs(t, err, &stdErr)
				assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, stdErr.Code)
			},
		},
		{
			name:   "invalid period never reaches the database",
			setup:  func(mock sqlmock.Sqlmock) {},
			period: "'; DROP TABLE size_baselines; --",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrInvalidPeriod)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			store, err := NewPostgresStore(db, "size_baselines")
			require.NoError(t, err)
			tt.setup(mock)

			_, err = store.Lookup(context.Background(), tt.period)
			tt.check(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestNewPostgresStore_RejectsUnsafeTable(t *testing.T) {
	_, err := NewPostgresStore(nil, "baselines; drop")
	assert.Error(t, err)
}

// ==========================
// Elasticsearch
// ==========================

type fakeTransport struct {
	status   int
	body     string
	lastPath string
	lastBody map[string]interface{}
}

func (f *fakeTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	f.lastPath = r.URL.Path
	if r.Body != nil {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &f.lastBody)
	}
	h := http.Header{}
	h.Set("X-Elastic-Product", "Elasticsearch")
	h.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: f.status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(f.body)),
		Request:    r,
	}, nil
}

func newESClient(t *testing.T, ft *fakeTransport) *elasticsearch.Client {
	t.Helper()
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://es.test:9200"},
		Transport: ft,
	})
	require.NoError(t, err)
	return es
}

func TestElasticsearchProvider_Lookup(t *testing.T) {
	ft := &fakeTransport{status: 200, body: `{
		"hits": {"total": {"value": 19}},
		"aggregations": {"sizes": {"buckets": [
			{"key": 7.0, "doc_count": 11},
			{"key": 6.5, "doc_count": 6},
			{"key": 44.0, "doc_count": 2}
		]}}
	}`}

	prior, err := NewElasticsearchProvider(newESClient(t, ft), "shoe-orders").Lookup(context.Background(), "2024-Q1")
	require.NoError(t, err)

	assert.Equal(t, "/shoe-orders/_search", ft.lastPath)
	assert.Equal(t, []models.SizeStat{{Size: 7, Count: 11}, {Size: 6.5, Count: 6}}, prior.Sizes)

	term := ft.lastBody["query"].(map[string]interface{})["term"].(map[string]interface{})
	assert.Equal(t, "2024-Q1", term["period"])
}

func TestElasticsearchProvider_Errors(t *testing.T) {
	tests := []struct {
		name  string
		ft    *fakeTransport
		check func(t *testing.T, err error)
	}{
		{
			name: "index missing",
			ft:   &fakeTransport{status: 404, body: `{"error":{"type":"index_not_found_exception"}}`},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name: "server error",
			ft:   &fakeTransport{status: 500, body: `{"error":"boom"}`},
			check: func(t *testing.T, err error) {
				var stdErr *apperrors.StandardError
				require.ErrorAs(t, err, &stdErr)
				assert.Equal(t, apperrors.ErrCodeSearchQueryFailed, stdErr.Code)
			},
		},
		{
			name: "no buckets",
			ft:   &fakeTransport{status: 200, body: `{"aggregations":{"sizes":{"buckets":[]}}}`},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewElasticsearchProvider(newESClient(t, tt.ft), "shoe-orders").Lookup(context.Background(), "2024-Q1")
			tt.check(t, err)
		})
	}
}

// ==========================
// Redis cache
// ==========================

type countingProvider struct {
	prior *models.PriorPeriod
	err   error
	calls int
}

func (c *countingProvider) Lookup(ctx context.Context, period string) (*models.PriorPeriod, error) {
	c.calls++
	return c.prior, c.err
}

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr
}

func TestCachedProvider_MissThenHit(t *testing.T) {
	rdb, mr := setupRedis(t)
	next := &countingProvider{prior: &models.PriorPeriod{Label: "2024-Q1", Sizes: []models.SizeStat{{Size: 7, Count: 5}}}}
	cache := NewCachedProvider(next, rdb, time.Hour, "postgres", logger.NewTestLogger(t))

	first, err := cache.Lookup(context.Background(), "2024-Q1")
	require.NoError(t, err)
	second, err := cache.Lookup(context.Background(), "2024-Q1")
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("baseline:postgres:2024-Q1"))
	assert.Equal(t, time.Hour, mr.TTL("baseline:postgres:2024-Q1"))
}

func TestCachedProvider_DoesNotCacheFailures(t *testing.T) {
	rdb, mr := setupRedis(t)
	next := &countingProvider{err: ErrNotFound}
	cache := NewCachedProvider(next, rdb, time.Hour, "postgres", logger.NewTestLogger(t))

	_, err := cache.Lookup(context.Background(), "2024-Q1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists("baseline:postgres:2024-Q1"))
}

func TestCachedProvider_MalformedEntry(t *testing.T) {
	rdb, mr := setupRedis(t)
	require.NoError(t, mr.Set("baseline:es:2024-Q1", "{not json"))
	next := &countingProvider{prior: &models.PriorPeriod{Sizes: []models.SizeStat{{Size: 8, Count: 1}}}}
	cache := NewCachedProvider(next, rdb, time.Minute, "es", logger.NewTestLogger(t))

	prior, err := cache.Lookup(context.Background(), "2024-Q1")
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, 8.0, prior.Sizes[0].Size)
}

func TestCachedProvider_RedisUnavailable(t *testing.T) {
	rdb, redisMock := redismock.NewClientMock()
	next := &countingProvider{prior: &models.PriorPeriod{Sizes: []models.SizeStat{{Size: 9, Count: 2}}}}
	cache := NewCachedProvider(next, rdb, time.Minute, "postgres", logger.NewTestLogger(t))

	redisMock.ExpectGet("baseline:postgres:2024-Q2").SetErr(errors.New("dial tcp: connection refused"))
	data, err := json.Marshal(next.prior)
	require.NoError(t, err)
	redisMock.ExpectSet("baseline:postgres:2024-Q2", data, time.Minute).SetErr(errors.New("dial tcp: connection refused"))

	prior, err := cache.Lookup(context.Background(), "2024-Q2")
	require.NoError(t, err)
	assert.Equal(t, next.prior, prior)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

// ==========================
// Timeout
// ==========================

type blockingProvider struct{}

func (blockingProvider) Lookup(ctx context.Context, period string) (*models.PriorPeriod, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWithTimeout(t *testing.T) {
	p := WithTimeout(blockingProvider{}, 20*time.Millisecond)

	start := time.Now()
	_, err := p.Lookup(context.Background(), "2024-Q1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	next := &countingProvider{}
	assert.Same(t, Provider(next), WithTimeout(next, 0))
}
