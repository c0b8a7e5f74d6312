// internal/analytics/ranker.go
package analytics

import (
	"cmp"
	"slices"

	"shoe-size-analytics/internal/models"
)

type score interface {
	~int | ~float64
}

// Ranked is one entry of a TopN ranking.
type Ranked[K cmp.Ordered, V score] struct {
	Key   K
	Value V
}

// TopN orders entries by value descending, then key ascending, and keeps at
// most n of them. Entries with a non-positive value are not ranked.
func TopN[K cmp.Ordered, V score](values map[K]V, n int) []Ranked[K, V] {
	out := make([]Ranked[K, V], 0, len(values))
	if n <= 0 {
		return out
	}
	for k, v := range values {
		if v <= 0 {
			continue
		}
		out = append(out, Ranked[K, V]{Key: k, Value: v})
	}
	slices.SortFunc(out, func(a, b Ranked[K, V]) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// TopSizes ranks a size→count mapping.
func TopSizes(counts map[float64]int, n int) []models.SizeStat {
	ranked := TopN(counts, n)
	out := make([]models.SizeStat, len(ranked))
	for i, r := range ranked {
		out[i] = models.SizeStat{Size: r.Key, Count: r.Value}
	}
	return out
}

// TopCustomers ranks customers by order count, ties by id ascending. Customers
// below minOrders are left out before truncation.
func TopCustomers(totals *Totals, n, minOrders int, policy CustomerFilePolicy) []models.CustomerStat {
	eligible := make(map[string]int, len(totals.Customers))
	for id, c := range totals.Customers {
		if c >= minOrders {
			eligible[id] = c
		}
	}

	ranked := TopN(eligible, n)
	out := make([]models.CustomerStat, len(ranked))
	for i, r := range ranked {
		out[i] = models.CustomerStat{
			CustomerID: r.Key,
			OrderCount: r.Value,
			SourceFile: totals.CustomerFile(r.Key, policy),
		}
	}
	return out
}
