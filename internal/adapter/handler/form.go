package handler

import (
	"github.com/rl1809/demand-desk/internal/core/domain"
	"github.com/rl1809/demand-desk/internal/core/workflow"
)

// applyBody replays a submitted form onto the session. When Items is set it
// replaces the request's lines: lines with a known id are updated, lines
// without one are added, and lines left out are removed.
func applyBody(sess *workflow.Session, body DemandBody) error {
	if body.Date != "" {
		if err := sess.SetDate(body.Date); err != nil {
			return err
		}
	}
	if body.Purpose != "" {
		if err := sess.SetPurpose(body.Purpose); err != nil {
			return err
		}
	}
	if body.RecommendedBy != nil {
		if err := sess.SetRecommendedBy(*body.RecommendedBy); err != nil {
			return err
		}
	}
	if body.StoreKeeperStatus != nil && sess.Actor().Role == domain.RoleStoreKeeper {
		current := sess.Draft().StoreKeeper.Status
		if want := *body.StoreKeeperStatus; want != current {
			if want == "" {
				want = current
			}
			if err := sess.ToggleStoreKeeperStatus(want); err != nil {
				return err
			}
		}
	}

	if len(body.Items) == 0 {
		return nil
	}

	referenced := make(map[int64]bool, len(body.Items))
	for _, item := range body.Items {
		if item.ID != 0 {
			referenced[item.ID] = true
		}
	}
	// Dropped lines stop counting toward the category lock before the new
	// ones are checked.
	var dropped []int64
	for _, line := range sess.Draft().Items {
		if !referenced[line.ID] {
			dropped = append(dropped, line.ID)
			if err := sess.UpdateLineItem(line.ID, workflow.FieldName, ""); err != nil {
				return err
			}
		}
	}

	for _, item := range body.Items {
		id := item.ID
		if id == 0 {
			var err error
			if id, err = sess.AddLineItem(); err != nil {
				return err
			}
		}
		if err := applyLine(sess, id, item); err != nil {
			return err
		}
	}

	for _, id := range dropped {
		if err := sess.RemoveLineItem(id); err != nil {
			return err
		}
	}
	return nil
}

func applyLine(sess *workflow.Session, id int64, item LineItemBody) error {
	fields := []struct {
		field workflow.LineField
		value string
		set   bool
	}{
		{workflow.FieldName, item.Name, item.ItemID == ""},
		{workflow.FieldSpecification, item.Specification, item.ItemID == "" || item.Specification != ""},
		{workflow.FieldUnit, item.Unit, item.ItemID == "" || item.Unit != ""},
		{workflow.FieldQuantity, item.Quantity, true},
		{workflow.FieldRemarks, item.Remarks, true},
	}

	if item.ItemID != "" {
		if err := sess.SelectItem(id, item.ItemID); err != nil {
			return err
		}
	}
	for _, f := range fields {
		if !f.set {
			continue
		}
		if err := sess.UpdateLineItem(id, f.field, f.value); err != nil {
			return err
		}
	}
	return nil
}
