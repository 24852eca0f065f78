package domain

import "time"

type RequestStatus string

const (
	StatusPending  RequestStatus = "Pending"
	StatusVerified RequestStatus = "Verified"
	StatusApproved RequestStatus = "Approved"
	StatusRejected RequestStatus = "Rejected"
)

// Terminal reports whether no further save transition leaves the status.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Signature records who performed a workflow step and when.
type Signature struct {
	Name        string `json:"name"`
	Designation string `json:"designation"`
	Date        string `json:"date"`
}

func (s Signature) Empty() bool {
	return s.Name == "" && s.Designation == "" && s.Date == ""
}

type RequesterBlock struct {
	Signature
	Purpose string `json:"purpose"`
}

type StoreKeeperBlock struct {
	Signature
	Status string `json:"status"`
}

type DemandLineItem struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Specification string `json:"specification"`
	Unit          string `json:"unit"`
	Quantity      string `json:"quantity"`
	Remarks       string `json:"remarks"`
}

// DemandRequest is a माग फारम: one demand form with its approval chain.
type DemandRequest struct {
	ID              string           `json:"id"`
	FiscalYear      string           `json:"fiscalYear"`
	FormNo          int              `json:"formNo"`
	Date            string           `json:"date"`
	Items           []DemandLineItem `json:"items"`
	Status          RequestStatus    `json:"status"`
	RejectionReason string           `json:"rejectionReason,omitempty"`
	DemandBy        RequesterBlock   `json:"demandBy"`
	RecommendedBy   Signature        `json:"recommendedBy"`
	StoreKeeper     StoreKeeperBlock `json:"storeKeeper"`
	ApprovedBy      Signature        `json:"approvedBy"`
	Receiver        Signature        `json:"receiver"`
	LedgerEntry     Signature        `json:"ledgerEntry"`
	Version         int              `json:"version"` // optimistic locking
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// Clone returns a copy that shares no line-item storage with r.
func (r DemandRequest) Clone() DemandRequest {
	items := make([]DemandLineItem, len(r.Items))
	copy(items, r.Items)
	r.Items = items
	return r
}
