package reporting

import "github.com/rl1809/demand-desk/internal/core/domain"

// Reconcile derives the reorder quantity of one catalog item. Missing
// thresholds count as zero.
func Reconcile(item domain.InventoryItem) domain.ReconciledItem {
	asl := valueOrZero(item.ApprovedStockLevel)
	eop := valueOrZero(item.EmergencyOrderPoint)

	toOrder := asl - item.CurrentQuantity
	if toOrder < 0 {
		toOrder = 0
	}

	return domain.ReconciledItem{
		Item:                     item,
		ApprovedStockLevel:       asl,
		EmergencyOrderPoint:      eop,
		QuantityToOrder:          toOrder,
		BelowEmergencyOrderPoint: eop > 0 && item.CurrentQuantity < eop,
	}
}

// ReconcileInventory reconciles the expendable items of one fiscal year, in
// catalog order.
func ReconcileInventory(catalog []domain.InventoryItem, fiscalYear string) []domain.ReconciledItem {
	out := make([]domain.ReconciledItem, 0, len(catalog))
	for _, item := range catalog {
		if item.FiscalYear != fiscalYear || item.Category != domain.CategoryExpendable {
			continue
		}
		out = append(out, Reconcile(item))
	}
	return out
}

func valueOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
