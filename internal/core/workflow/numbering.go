package workflow

import "github.com/rl1809/demand-desk/internal/core/domain"

// NextFormNumber returns 1 + the highest form number used in fiscalYear, or 1
// when the year has no requests yet.
func NextFormNumber(existing []domain.DemandRequest, fiscalYear string) int {
	max := 0
	for _, r := range existing {
		if r.FiscalYear == fiscalYear && r.FormNo > max {
			max = r.FormNo
		}
	}
	return max + 1
}
