package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConflict         = errors.New("version conflict")
	ErrRequestNotFound  = errors.New("demand request not found")
	ErrReadOnly         = errors.New("demand request is read-only")
	ErrLastLineItem     = errors.New("a demand request needs at least one line item")
	ErrLineItemNotFound = errors.New("line item not found")
	ErrCategoryLocked   = errors.New("item category does not match the request")
	ErrUnknownField     = errors.New("unknown line item field")
	ErrNotResubmittable = errors.New("only the requester can resubmit a rejected request")
	ErrRefreshDenied    = errors.New("only store keepers and approvers can refresh the catalog")
)

// ValidationError names the missing field and carries the message shown to
// the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// RoleDeniedError is returned alongside a status-unchanged outcome when the
// actor's role has no transition out of the current status.
type RoleDeniedError struct {
	Role   Role
	Status RequestStatus
	Event  string
}

func (e *RoleDeniedError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("role %s cannot %s this request", e.Role, e.Event)
	}
	return fmt.Sprintf("role %s cannot %s a %s request", e.Role, e.Event, e.Status)
}
