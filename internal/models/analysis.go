// internal/models/analysis.go
package models

import "math"

const (
	MinSize = 1.0
	MaxSize = 20.0
)

// ValidSize reports whether s is a half-size step within [MinSize, MaxSize].
func ValidSize(s float64) bool {
	if math.IsNaN(s) || s < MinSize || s > MaxSize {
		return false
	}
	return s*2 == math.Trunc(s*2)
}

// OrderRecord is one (customer, size) pairing parsed from a document line.
type OrderRecord struct {
	CustomerID string  `json:"customerId"`
	Size       float64 `json:"size"`
	SourceFile string  `json:"sourceFile"`
}

type SizeStat struct {
	Size  float64 `json:"size"`
	Count int     `json:"count"`
}

// CustomerStat carries the filename only when the configured policy allows it;
// a nil SourceFile serializes as JSON null.
type CustomerStat struct {
	CustomerID string  `json:"customer"`
	OrderCount int     `json:"order_count"`
	SourceFile *string `json:"filename"`
}

type FileBreakdown struct {
	Filename    string     `json:"filename"`
	TopSizes    []SizeStat `json:"top_sizes"`
	TotalOrders int        `json:"total_orders"`
}

type PredictedSizeStat struct {
	Size            float64 `json:"size"`
	PredictedDemand float64 `json:"predicted_demand"`
}

// AnalysisResult is the response root returned by POST /analyze.
type AnalysisResult struct {
	TopSizes       []SizeStat          `json:"top_sizes"`
	TopCustomers   []CustomerStat      `json:"top_customers"`
	PerFile        []FileBreakdown     `json:"per_file"`
	PredictedSizes []PredictedSizeStat `json:"predicted_sizes"`
	TotalOrders    int                 `json:"total_orders"`
}

// GoldenSizes returns the first three entries of TopSizes.
func (r *AnalysisResult) GoldenSizes() []SizeStat {
	n := len(r.TopSizes)
	if n > 3 {
		n = 3
	}
	return r.TopSizes[:n]
}

// PriorPeriod is an optional size→count mapping from an earlier period used
// by the demand projector.
type PriorPeriod struct {
	Label string     `json:"label,omitempty"`
	Sizes []SizeStat `json:"sizes"`
}

// Counts returns the prior period as a size→count map, dropping invalid sizes.
func (p *PriorPeriod) Counts() map[float64]int {
	out := make(map[float64]int)
	if p == nil {
		return out
	}
	for _, s := range p.Sizes {
		if !ValidSize(s.Size) || s.Count <= 0 {
			continue
		}
		out[s.Size] += s.Count
	}
	return out
}

// Upload is a single document submitted for analysis. When Extracted is set
// Text already holds the document text and Content is ignored.
type Upload struct {
	Filename  string
	Content   []byte
	Text      string
	Extracted bool
}
