// internal/analytics/aggregator.go
package analytics

import (
	"iter"
	"slices"
	"strings"

	"shoe-size-analytics/internal/models"
)

// FileTally is the partial result for one uploaded file. It is built by a
// single fold over that file's records and never shared between requests.
type FileTally struct {
	Index     int
	Filename  string
	Sizes     map[float64]int
	Customers map[string]int
	Stats     LineStats
	Dropped   int
	Err       error
}

func newFileTally(index int, filename string) *FileTally {
	return &FileTally{
		Index:     index,
		Filename:  filename,
		Sizes:     make(map[float64]int),
		Customers: make(map[string]int),
	}
}

// TallyRecords folds records into a fresh FileTally. Records with an
// out-of-range size or no customer are dropped, whatever produced them.
func TallyRecords(index int, filename string, records iter.Seq[models.OrderRecord]) *FileTally {
	t := newFileTally(index, filename)
	for rec := range records {
		if !models.ValidSize(rec.Size) || rec.CustomerID == "" {
			t.Dropped++
			continue
		}
		t.Sizes[rec.Size]++
		t.Customers[rec.CustomerID]++
	}
	return t
}

func failedTally(index int, filename string, err error) *FileTally {
	t := newFileTally(index, filename)
	t.Err = err
	return t
}

// TotalOrders is the number of valid size mentions counted for the file.
func (t *FileTally) TotalOrders() int {
	total := 0
	for _, c := range t.Sizes {
		total += c
	}
	return total
}

// Totals is the merged view over every FileTally of a request.
type Totals struct {
	Sizes     map[float64]int
	Customers map[string]int
	Files     []*FileTally

	// upload indices per customer, ascending; filled only by Merge
	customerFiles map[string][]int
}

// Merge combines per-file tallies in upload order. Which files a customer
// appears in is derived from the complete key sets, so the result does not
// depend on the order in which the tallies finished.
func Merge(tallies []*FileTally) *Totals {
	files := slices.Clone(tallies)
	slices.SortStableFunc(files, func(a, b *FileTally) int { return a.Index - b.Index })

	totals := &Totals{
		Sizes:         make(map[float64]int),
		Customers:     make(map[string]int),
		Files:         files,
		customerFiles: make(map[string][]int),
	}
	for _, f := range files {
		if f.Err != nil {
			continue
		}
		for size, c := range f.Sizes {
			totals.Sizes[size] += c
		}
		for id, c := range f.Customers {
			totals.Customers[id] += c
			totals.customerFiles[id] = append(totals.customerFiles[id], f.Index)
		}
	}
	return totals
}

// TotalOrders is the number of valid size mentions across the request.
func (t *Totals) TotalOrders() int {
	total := 0
	for _, c := range t.Sizes {
		total += c
	}
	return total
}

// CustomerFilePolicy decides what filename a CustomerStat reports.
type CustomerFilePolicy string

const (
	// PolicyExclusive reports the file only when every order came from it.
	PolicyExclusive CustomerFilePolicy = "exclusive"
	// PolicyMostRecent reports the last uploaded file mentioning the customer.
	PolicyMostRecent CustomerFilePolicy = "most_recent"
	// PolicyJoined reports every distinct filename, sorted and comma-joined.
	PolicyJoined CustomerFilePolicy = "joined"
)

func (p CustomerFilePolicy) Valid() bool {
	switch p {
	case PolicyExclusive, PolicyMostRecent, PolicyJoined:
		return true
	}
	return false
}

// CustomerFile returns the filename to report for a customer, or nil.
func (t *Totals) CustomerFile(id string, policy CustomerFilePolicy) *string {
	idx := t.customerFiles[id]
	if len(idx) == 0 {
		return nil
	}

	name := func(i int) string {
		for _, f := range t.Files {
			if f.Index == i {
				return f.Filename
			}
		}
		return ""
	}

	switch policy {
	case PolicyMostRecent:
		s := name(idx[len(idx)-1])
		return &s
	case PolicyJoined:
		names := make([]string, 0, len(idx))
		for _, i := range idx {
			names = append(names, name(i))
		}
		slices.Sort(names)
		s := strings.Join(slices.Compact(names), ", ")
		return &s
	default:
		if len(idx) > 1 {
			return nil
		}
		s := name(idx[0])
		return &s
	}
}
