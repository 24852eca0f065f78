package workflow

import "github.com/rl1809/demand-desk/internal/core/domain"

// Lines reference catalog entries by display name, not identity.
func resolve(name string, catalog []domain.InventoryItem) (domain.InventoryItem, bool) {
	if name == "" {
		return domain.InventoryItem{}, false
	}
	for _, item := range catalog {
		if item.ItemName == name {
			return item, true
		}
	}
	return domain.InventoryItem{}, false
}

// LockedCategory returns the category of the first line that resolves to a
// catalog entry.
func LockedCategory(lines []domain.DemandLineItem, catalog []domain.InventoryItem) (domain.Category, bool) {
	for _, line := range lines {
		if item, ok := resolve(line.Name, catalog); ok {
			return item.Category, true
		}
	}
	return "", false
}

// SelectableCatalog narrows the catalog to the locked category.
func SelectableCatalog(catalog []domain.InventoryItem, locked domain.Category, isLocked bool) []domain.InventoryItem {
	if !isLocked {
		return catalog
	}
	subset := make([]domain.InventoryItem, 0, len(catalog))
	for _, item := range catalog {
		if item.Category == locked {
			subset = append(subset, item)
		}
	}
	return subset
}

// UnresolvedLines lists named lines whose name no longer matches any catalog
// entry, e.g. after a catalog rename.
func UnresolvedLines(lines []domain.DemandLineItem, catalog []domain.InventoryItem) []int64 {
	var ids []int64
	for _, line := range lines {
		if line.Name == "" {
			continue
		}
		if _, ok := resolve(line.Name, catalog); !ok {
			ids = append(ids, line.ID)
		}
	}
	return ids
}
