package domain

import "strings"

type Role string

const (
	RoleRequester   Role = "REQUESTER"
	RoleStoreKeeper Role = "STOREKEEPER"
	RoleApprover    Role = "APPROVER"
)

// ParseRole folds account roles into the three workflow roles.
// Administrative and approval-tier accounts act as APPROVER.
func ParseRole(s string) Role {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "STOREKEEPER":
		return RoleStoreKeeper
	case "APPROVER", "APPROVAL", "ADMIN", "SUPER_ADMIN":
		return RoleApprover
	default:
		return RoleRequester
	}
}

// Actor is a user already resolved by the session layer.
type Actor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Designation string `json:"designation"`
	Role        Role   `json:"role"`
}
