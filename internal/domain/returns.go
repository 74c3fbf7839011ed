package domain

import "time"

type ReturnStatus string

const (
	ReturnPending   ReturnStatus = "pending"
	ReturnApproved  ReturnStatus = "approved"
	ReturnRejected  ReturnStatus = "rejected"
	ReturnProcessed ReturnStatus = "processed"
	ReturnRefunded  ReturnStatus = "refunded"
)

var returnTransitions = map[ReturnStatus][]ReturnStatus{
	ReturnPending:   {ReturnApproved, ReturnRejected},
	ReturnApproved:  {ReturnProcessed},
	ReturnProcessed: {ReturnRefunded},
}

func (s ReturnStatus) Valid() bool {
	switch s {
	case ReturnPending, ReturnApproved, ReturnRejected, ReturnProcessed, ReturnRefunded:
		return true
	}
	return false
}

func (s ReturnStatus) CanTransitionTo(next ReturnStatus) bool {
	for _, allowed := range returnTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func ParseReturnStatus(value string) (ReturnStatus, bool) {
	s := ReturnStatus(value)
	return s, s.Valid()
}

type ReturnReason string

const (
	ReasonWrongItem      ReturnReason = "wrong-item"
	ReasonDamaged        ReturnReason = "damaged"
	ReasonNotAsDescribed ReturnReason = "not-as-described"
	ReasonSizeIssue      ReturnReason = "size-issue"
	ReasonChangedMind    ReturnReason = "changed-mind"
	ReasonOther          ReturnReason = "other"
)

func (r ReturnReason) Valid() bool {
	switch r {
	case ReasonWrongItem, ReasonDamaged, ReasonNotAsDescribed,
		ReasonSizeIssue, ReasonChangedMind, ReasonOther:
		return true
	}
	return false
}

func ParseReturnReason(value string) (ReturnReason, bool) {
	r := ReturnReason(value)
	return r, r.Valid()
}

// ReturnItem is one order line covered by a return filing. Each line carries
// its own status so partial approvals remain possible on the admin side.
type ReturnItem struct {
	ProductRef  string       `json:"product_ref"`
	ProductName string       `json:"product_name"`
	Quantity    int          `json:"quantity"`
	Reason      ReturnReason `json:"reason"`
	Status      ReturnStatus `json:"status"`
}

// ReturnRequest is a customer-initiated claim nested inside its parent order.
// The ReturnID is unique across the whole system so customers can look a
// return up without knowing the parent order number.
type ReturnRequest struct {
	ReturnID       string       `json:"return_id"`
	Items          []ReturnItem `json:"items"`
	Reason         ReturnReason `json:"reason"`
	Description    string       `json:"description,omitempty"`
	Status         ReturnStatus `json:"status"`
	RequestedAt    time.Time    `json:"requested_at"`
	ProcessedAt    time.Time    `json:"processed_at,omitzero"`
	RefundCents    int          `json:"refund_cents,omitempty"`
	TrackingNumber string       `json:"tracking_number,omitempty"`
	AdminNotes     string       `json:"admin_notes,omitempty"`
}
