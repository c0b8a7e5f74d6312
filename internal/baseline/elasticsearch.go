// internal/baseline/elasticsearch.go
package baseline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	apperrors "shoe-size-analytics/internal/common/errors"
	"shoe-size-analytics/internal/models"
)

const maxSizeBuckets = 100

// ElasticsearchProvider derives a baseline from an index of historical order
// documents ({"period": "...", "size": 7.5, "customer": "..."}) with a terms
// aggregation over size.
type ElasticsearchProvider struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchProvider(client *elasticsearch.Client, index string) *ElasticsearchProvider {
	return &ElasticsearchProvider{client: client, index: index}
}

type sizeAggResponse struct {
	Aggregations struct {
		Sizes struct {
			Buckets []struct {
				Key      float64 `json:"key"`
				DocCount int     `json:"doc_count"`
			} `json:"buckets"`
		} `json:"sizes"`
	} `json:"aggregations"`
}

func (p *ElasticsearchProvider) Lookup(ctx context.Context, period string) (*models.PriorPeriod, error) {
	period, err := NormalizePeriod(period)
	if err != nil {
		return nil, err
	}

	query := map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"term": map[string]interface{}{"period": period},
		},
		"aggs": map[string]interface{}{
			"sizes": map[string]interface{}{
				"terms": map[string]interface{}{
					"field": "size",
					"size":  maxSizeBuckets,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("encode baseline query: %w", err)
	}

	res, err := p.client.Search(
		p.client.Search.WithContext(ctx),
		p.client.Search.WithIndex(p.index),
		p.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, apperrors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, fmt.Errorf("%w: index %s", ErrNotFound, p.index)
	}
	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError("baseline", fmt.Errorf("%s", res.String()))
	}

	var parsed sizeAggResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewSearchQueryFailedError("baseline", err)
	}

	prior := &models.PriorPeriod{Label: period}
	for _, b := range parsed.Aggregations.Sizes.Buckets {
		if !models.ValidSize(b.Key) || b.DocCount <= 0 {
			continue
		}
		prior.Sizes = append(prior.Sizes, models.SizeStat{Size: b.Key, Count: b.DocCount})
	}
	if len(prior.Sizes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, period)
	}
	return prior, nil
}
