// internal/analytics/assembler.go
package analytics

import "shoe-size-analytics/internal/models"

// Limits bounds every ranking in an AnalysisResult.
type Limits struct {
	TopSizes          int
	TopCustomers      int
	PerFileTopSizes   int
	PredictedSizes    int
	MinCustomerOrders int
	CustomerFiles     CustomerFilePolicy
}

// Assemble builds the response from merged totals and the projection. Every
// list is non-nil so it serializes as [] rather than null.
func Assemble(totals *Totals, predicted []models.PredictedSizeStat, limits Limits) *models.AnalysisResult {
	perFile := make([]models.FileBreakdown, 0, len(totals.Files))
	for _, f := range totals.Files {
		fb := models.FileBreakdown{
			Filename: f.Filename,
			TopSizes: []models.SizeStat{},
		}
		if f.Err == nil {
			fb.TopSizes = TopSizes(f.Sizes, limits.PerFileTopSizes)
			fb.TotalOrders = f.TotalOrders()
		}
		perFile = append(perFile, fb)
	}

	if predicted == nil {
		predicted = []models.PredictedSizeStat{}
	}

	return &models.AnalysisResult{
		TopSizes:       TopSizes(totals.Sizes, limits.TopSizes),
		TopCustomers:   TopCustomers(totals, limits.TopCustomers, limits.MinCustomerOrders, limits.CustomerFiles),
		PerFile:        perFile,
		PredictedSizes: predicted,
		TotalOrders:    totals.TotalOrders(),
	}
}
