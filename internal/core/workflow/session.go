package workflow

import (
	"strconv"
	"strings"

	"github.com/rl1809/demand-desk/internal/core/domain"
)

type Mode string

const (
	ModeNew  Mode = "new"
	ModeEdit Mode = "edit"
	ModeView Mode = "view"
)

type LineField string

const (
	FieldName          LineField = "name"
	FieldSpecification LineField = "specification"
	FieldUnit          LineField = "unit"
	FieldQuantity      LineField = "quantity"
	FieldRemarks       LineField = "remarks"
)

// Session is the in-memory editing state of one request for one actor.
type Session struct {
	mode       Mode
	actor      domain.Actor
	stored     *domain.DemandRequest
	draft      domain.DemandRequest
	catalog    []domain.InventoryItem
	nextLineID int64
}

// NewSession starts a brand-new request numbered against existing.
func NewSession(actor domain.Actor, fiscalYear string, existing []domain.DemandRequest, catalog []domain.InventoryItem) *Session {
	s := &Session{
		mode:       ModeNew,
		actor:      actor,
		catalog:    catalog,
		nextLineID: 1,
	}
	s.draft = domain.DemandRequest{
		FiscalYear: fiscalYear,
		FormNo:     NextFormNumber(existing, fiscalYear),
		Status:     domain.StatusPending,
		DemandBy: domain.RequesterBlock{
			Signature: domain.Signature{Name: actor.Name, Designation: actor.Designation},
		},
	}
	s.draft.Items = []domain.DemandLineItem{s.blankLine()}
	return s
}

// LoadSession opens a stored request for editing or viewing.
func LoadSession(mode Mode, actor domain.Actor, stored domain.DemandRequest, catalog []domain.InventoryItem) *Session {
	if mode != ModeView {
		mode = ModeEdit
	}
	s := &Session{mode: mode, actor: actor, catalog: catalog}
	s.commit(stored)
	return s
}

func (s *Session) commit(stored domain.DemandRequest) {
	kept := stored.Clone()
	s.stored = &kept
	s.draft = stored.Clone()
	if s.draft.Status == domain.StatusRejected {
		s.draft.ApprovedBy = domain.Signature{}
	}
	s.nextLineID = 1
	for _, line := range s.draft.Items {
		if line.ID >= s.nextLineID {
			s.nextLineID = line.ID + 1
		}
	}
	if s.mode == ModeNew {
		s.mode = ModeEdit
	}
}

// Commit replaces the session's stored copy after a successful save.
func (s *Session) Commit(saved domain.DemandRequest) {
	s.commit(saved)
}

func (s *Session) blankLine() domain.DemandLineItem {
	line := domain.DemandLineItem{ID: s.nextLineID}
	s.nextLineID++
	return line
}

func (s *Session) Mode() Mode          { return s.mode }
func (s *Session) Actor() domain.Actor { return s.actor }
func (s *Session) IsNew() bool         { return s.stored == nil }

// Draft returns a copy of the request as currently edited.
func (s *Session) Draft() domain.DemandRequest { return s.draft.Clone() }

// Stored returns a copy of the persisted request, nil for a new session.
func (s *Session) Stored() *domain.DemandRequest {
	if s.stored == nil {
		return nil
	}
	c := s.stored.Clone()
	return &c
}

// Editable reports whether the actor may change the request content.
// Approvers act on loaded requests without editing them, requesters only
// edit their own pending requests, and terminal requests are read-only.
func (s *Session) Editable() bool {
	if s.mode == ModeView {
		return false
	}
	if s.stored == nil {
		return true
	}
	if s.stored.Status.Terminal() {
		return false
	}
	switch s.actor.Role {
	case domain.RoleApprover:
		return false
	case domain.RoleRequester:
		return s.stored.Status == domain.StatusPending && IsCreator(*s.stored, s.actor)
	default:
		return true
	}
}

func (s *Session) ensureEditable() error {
	if !s.Editable() {
		return domain.ErrReadOnly
	}
	return nil
}

// SetFiscalYear moves a new request to another fiscal year and renumbers it.
func (s *Session) SetFiscalYear(fiscalYear string, existing []domain.DemandRequest) error {
	if s.stored != nil {
		return domain.ErrReadOnly
	}
	s.draft.FiscalYear = fiscalYear
	s.draft.FormNo = NextFormNumber(existing, fiscalYear)
	return nil
}

func (s *Session) SetDate(date string) error {
	if err := s.ensureEditable(); err != nil {
		return err
	}
	s.draft.Date = date
	s.draft.DemandBy.Date = date
	return nil
}

func (s *Session) SetPurpose(purpose string) error {
	if err := s.ensureEditable(); err != nil {
		return err
	}
	s.draft.DemandBy.Purpose = purpose
	return nil
}

func (s *Session) SetRecommendedBy(sig domain.Signature) error {
	if err := s.ensureEditable(); err != nil {
		return err
	}
	s.draft.RecommendedBy = sig
	return nil
}

// ToggleStoreKeeperStatus sets the store keeper's note; choosing the same
// value again clears it.
func (s *Session) ToggleStoreKeeperStatus(value string) error {
	if err := s.ensureEditable(); err != nil {
		return err
	}
	if s.actor.Role != domain.RoleStoreKeeper {
		return &domain.RoleDeniedError{Role: s.actor.Role, Status: s.draft.Status, Event: "acknowledge"}
	}
	if s.draft.StoreKeeper.Status == value {
		s.draft.StoreKeeper.Status = ""
		return nil
	}
	s.draft.StoreKeeper.Status = value
	return nil
}

func (s *Session) AddLineItem() (int64, error) {
	if err := s.ensureEditable(); err != nil {
		return 0, err
	}
	line := s.blankLine()
	s.draft.Items = append(s.draft.Items, line)
	return line.ID, nil
}

func (s *Session) RemoveLineItem(id int64) error {
	if err := s.ensureEditable(); err != nil {
		return err
	}
	idx := s.lineIndex(id)
	if idx < 0 {
		return domain.ErrLineItemNotFound
	}
	if len(s.draft.Items) == 1 {
		return domain.ErrLastLineItem
	}
	s.draft.Items = append(s.draft.Items[:idx], s.draft.Items[idx+1:]...)
	return nil
}

func (s *Session) UpdateLineItem(id int64, field LineField, value string) error {
	if err := s.ensureEditable(); err != nil {
		return err
	}
	idx := s.lineIndex(id)
	if idx < 0 {
		return domain.ErrLineItemNotFound
	}
	line := &s.draft.Items[idx]
	switch field {
	case FieldName:
		if item, ok := resolve(value, s.catalog); ok {
			if err := s.checkCategory(idx, item); err != nil {
				return err
			}
		}
		line.Name = value
	case FieldSpecification:
		line.Specification = value
	case FieldUnit:
		line.Unit = value
	case FieldQuantity:
		line.Quantity = value
	case FieldRemarks:
		line.Remarks = value
	default:
		return domain.ErrUnknownField
	}
	return nil
}

// SelectItem fills a line from a catalog entry chosen in the item picker.
func (s *Session) SelectItem(id int64, itemID string) error {
	if err := s.ensureEditable(); err != nil {
		return err
	}
	idx := s.lineIndex(id)
	if idx < 0 {
		return domain.ErrLineItemNotFound
	}
	var item *domain.InventoryItem
	for i := range s.catalog {
		if s.catalog[i].ID == itemID {
			item = &s.catalog[i]
			break
		}
	}
	if item == nil {
		return domain.ErrLineItemNotFound
	}
	if err := s.checkCategory(idx, *item); err != nil {
		return err
	}
	line := &s.draft.Items[idx]
	line.Name = item.ItemName
	line.Unit = item.Unit
	line.Specification = item.Specification
	return nil
}

// checkCategory compares item against the lock held by the other lines, so
// that the only resolved line may still be switched to another category.
func (s *Session) checkCategory(idx int, item domain.InventoryItem) error {
	others := make([]domain.DemandLineItem, 0, len(s.draft.Items)-1)
	others = append(others, s.draft.Items[:idx]...)
	others = append(others, s.draft.Items[idx+1:]...)
	if locked, ok := LockedCategory(others, s.catalog); ok && locked != item.Category {
		return domain.ErrCategoryLocked
	}
	return nil
}

func (s *Session) lineIndex(id int64) int {
	for i, line := range s.draft.Items {
		if line.ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) LockedCategory() (domain.Category, bool) {
	return LockedCategory(s.draft.Items, s.catalog)
}

func (s *Session) SelectableCatalog() []domain.InventoryItem {
	locked, ok := s.LockedCategory()
	return SelectableCatalog(s.catalog, locked, ok)
}

func (s *Session) UnresolvedLines() []int64 {
	return UnresolvedLines(s.draft.Items, s.catalog)
}

// StockShortfalls names the lines asking for more than is on hand. Lines with
// a non-numeric quantity or an unknown item are skipped.
func (s *Session) StockShortfalls() []string {
	var names []string
	for _, line := range s.draft.Items {
		item, ok := resolve(line.Name, s.catalog)
		if !ok {
			continue
		}
		qty, err := strconv.ParseFloat(strings.TrimSpace(line.Quantity), 64)
		if err != nil {
			continue
		}
		if qty > float64(item.CurrentQuantity) {
			names = append(names, line.Name)
		}
	}
	return names
}
