package workflow

import (
	"strings"

	"github.com/rl1809/demand-desk/internal/core/domain"
)

type OutcomeKind string

const (
	Transitioned OutcomeKind = "transitioned"
	Denied       OutcomeKind = "denied"
	Invalid      OutcomeKind = "invalid"
)

const (
	EventSave   = "save"
	EventReject = "reject"
)

// Decision is the state machine's verdict for one event. For Denied and
// Invalid decisions To equals From.
type Decision struct {
	Kind OutcomeKind
	From domain.RequestStatus
	To   domain.RequestStatus
	Err  error
}

// Validate checks the fields every save requires, date first.
func Validate(r domain.DemandRequest) error {
	if strings.TrimSpace(r.Date) == "" {
		return &domain.ValidationError{Field: "date", Message: "मिति खाली छ।"}
	}
	if strings.TrimSpace(r.DemandBy.Purpose) == "" {
		return &domain.ValidationError{Field: "purpose", Message: "प्रयोजन खाली छ।"}
	}
	return nil
}

// Decide resolves a save. stored is the persisted copy, nil for a request
// that has never been saved.
func Decide(stored *domain.DemandRequest, actor domain.Actor) Decision {
	if stored == nil {
		return Decision{Kind: Transitioned, To: domain.StatusPending}
	}
	from := stored.Status
	if from == "" {
		from = domain.StatusPending
	}
	switch {
	case from == domain.StatusPending && actor.Role == domain.RoleStoreKeeper:
		return Decision{Kind: Transitioned, From: from, To: domain.StatusVerified}
	case from == domain.StatusVerified && actor.Role == domain.RoleApprover:
		return Decision{Kind: Transitioned, From: from, To: domain.StatusApproved}
	case from == domain.StatusPending && actor.Role == domain.RoleRequester && IsCreator(*stored, actor):
		return Decision{Kind: Transitioned, From: from, To: from}
	}
	return Decision{
		Kind: Denied,
		From: from,
		To:   from,
		Err:  &domain.RoleDeniedError{Role: actor.Role, Status: from, Event: EventSave},
	}
}

// DecideReject resolves a rejection of the stored request.
func DecideReject(stored domain.DemandRequest, actor domain.Actor, reason string) Decision {
	from := stored.Status
	if from == "" {
		from = domain.StatusPending
	}
	// A missing reason is reported before any role or status check.
	if strings.TrimSpace(reason) == "" {
		return Decision{Kind: Invalid, From: from, To: from,
			Err: &domain.ValidationError{Field: "rejectionReason", Message: "कारण उल्लेख गर्नुहोस्।"}}
	}
	if from != domain.StatusPending && from != domain.StatusVerified {
		return Decision{Kind: Denied, From: from, To: from,
			Err: &domain.RoleDeniedError{Role: actor.Role, Status: from, Event: EventReject}}
	}
	if actor.Role != domain.RoleStoreKeeper && actor.Role != domain.RoleApprover {
		return Decision{Kind: Denied, From: from, To: from,
			Err: &domain.RoleDeniedError{Role: actor.Role, Status: from, Event: EventReject}}
	}
	return Decision{Kind: Transitioned, From: from, To: domain.StatusRejected}
}

// Apply builds the next stored state for a transitioned save decision.
func Apply(r domain.DemandRequest, d Decision, actor domain.Actor) domain.DemandRequest {
	next := r.Clone()
	next.Status = d.To
	if d.To != domain.StatusRejected {
		next.RejectionReason = ""
	}
	if d.From == d.To {
		return next
	}
	switch d.To {
	case domain.StatusVerified:
		next.StoreKeeper.Signature = domain.Signature{Name: actor.Name, Designation: actor.Designation, Date: r.Date}
	case domain.StatusApproved:
		next.ApprovedBy = domain.Signature{Name: actor.Name, Designation: actor.Designation, Date: r.Date}
	}
	return next
}

// ApplyReject builds the rejected state. A later approval must be re-earned.
func ApplyReject(stored domain.DemandRequest, reason string) domain.DemandRequest {
	next := stored.Clone()
	next.Status = domain.StatusRejected
	next.RejectionReason = strings.TrimSpace(reason)
	next.ApprovedBy = domain.Signature{}
	return next
}

// ApplyResubmit is the requester's explicit back-edge from Rejected to
// Pending. The form number is kept; downstream stamps are cleared.
func ApplyResubmit(stored domain.DemandRequest, actor domain.Actor) (domain.DemandRequest, error) {
	if stored.Status != domain.StatusRejected || actor.Role != domain.RoleRequester || !IsCreator(stored, actor) {
		return stored, domain.ErrNotResubmittable
	}
	next := stored.Clone()
	next.Status = domain.StatusPending
	next.RejectionReason = ""
	next.ApprovedBy = domain.Signature{}
	next.StoreKeeper.Signature = domain.Signature{}
	return next, nil
}

// IsCreator matches on the requester name, the only identity the form keeps.
func IsCreator(r domain.DemandRequest, actor domain.Actor) bool {
	return r.DemandBy.Name != "" && r.DemandBy.Name == actor.Name
}
