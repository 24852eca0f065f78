package domain

type Category string

const (
	CategoryExpendable    Category = "Expendable"
	CategoryNonExpendable Category = "NonExpendable"
)

// InventoryItem is a catalog entry. The workflow only reads it.
type InventoryItem struct {
	ID                  string   `json:"id"`
	ItemName            string   `json:"itemName"`
	Unit                string   `json:"unit"`
	Category            Category `json:"itemType"`
	FiscalYear          string   `json:"fiscalYear"`
	CurrentQuantity     int      `json:"currentQuantity"`
	ApprovedStockLevel  *int     `json:"approvedStockLevel,omitempty"`
	EmergencyOrderPoint *int     `json:"emergencyOrderPoint,omitempty"`
	Specification       string   `json:"specification,omitempty"`
}

type ReconciledItem struct {
	Item                     InventoryItem `json:"item"`
	ApprovedStockLevel       int           `json:"approvedStockLevel"`
	EmergencyOrderPoint      int           `json:"emergencyOrderPoint"`
	QuantityToOrder          int           `json:"quantityToOrder"`
	BelowEmergencyOrderPoint bool          `json:"belowEmergencyOrderPoint"`
}
