// Package requisition implements the requisition approval workflow: the
// lifecycle state machine, role-gated transitions, and the OpenLMIS-style
// HTTP surface over it.
package requisition

import "time"

// Status is a requisition lifecycle state.
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusSubmitted  Status = "SUBMITTED"
	StatusAuthorized Status = "AUTHORIZED"
	StatusApproved   Status = "APPROVED"
	StatusRejected   Status = "REJECTED"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// LineItem is one requested product on a requisition.
type LineItem struct {
	OrderableID       string `json:"orderableId"`
	QuantityRequested int    `json:"quantityRequested"`
	QuantityApproved  *int   `json:"quantityApproved,omitempty"`
}

// AuditEntry records one workflow transition. The trail is append-only and
// never reordered.
type AuditEntry struct {
	Status    Status    `json:"status"`
	ActorRole string    `json:"actorRole"`
	Timestamp time.Time `json:"timestamp"`
}

// Requisition is a facility's structured request to replenish stock.
type Requisition struct {
	ID                 string       `json:"id"`
	FacilityID         string       `json:"facilityId"`
	ProgramID          string       `json:"programId"`
	ProcessingPeriodID string       `json:"processingPeriodId"`
	Status             Status       `json:"status"`
	Emergency          bool         `json:"emergency"`
	CreatedDate        time.Time    `json:"createdDate"`
	ModifiedDate       time.Time    `json:"modifiedDate"`
	LineItems          []LineItem   `json:"requisitionLineItems"`
	StatusHistory      []AuditEntry `json:"statusHistory"`
}

func (r *Requisition) clone() *Requisition {
	out := *r
	out.LineItems = make([]LineItem, len(r.LineItems))
	copy(out.LineItems, r.LineItems)
	out.StatusHistory = make([]AuditEntry, len(r.StatusHistory))
	copy(out.StatusHistory, r.StatusHistory)
	return &out
}
