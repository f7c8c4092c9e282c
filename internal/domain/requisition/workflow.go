package requisition

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lmis/lmis/internal/platform/auth"
	"github.com/lmis/lmis/internal/store"
)

// Operation is a workflow action requested by a caller.
type Operation string

const (
	OpSubmit    Operation = "submit"
	OpAuthorize Operation = "authorize"
	OpApprove   Operation = "approve"
	OpReject    Operation = "reject"
)

// InvalidTransitionError indicates the operation is not legal from the
// requisition's current state. Handlers map it to 400.
type InvalidTransitionError struct {
	From Status
	Op   Operation
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s requisition in %s status", e.Op, e.From)
}

// ForbiddenError indicates the caller's role lacks authority for the
// operation. Handlers map it to 403.
type ForbiddenError struct {
	Op       Operation
	Role     auth.Role
	Required auth.Role
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s requires %s or higher, caller is %s", e.Op, e.Required, e.Role)
}

// rule is one row of the transition table.
type rule struct {
	to      Status
	minRole auth.Role
}

// transitions encodes the workflow state machine. DRAFT is initial; APPROVED
// and REJECTED are terminal and therefore absent as source states.
var transitions = map[Status]map[Operation]rule{
	StatusDraft: {
		OpSubmit: {to: StatusSubmitted, minRole: auth.RoleFacility},
	},
	StatusSubmitted: {
		OpAuthorize: {to: StatusAuthorized, minRole: auth.RoleStoreroomManager},
		OpReject:    {to: StatusRejected, minRole: auth.RoleStoreroomManager},
	},
	StatusAuthorized: {
		OpApprove: {to: StatusApproved, minRole: auth.RoleWarehouseManager},
		OpReject:  {to: StatusRejected, minRole: auth.RoleWarehouseManager},
	},
}

// Engine owns the requisition collection and is the only way status ever
// changes. One engine instance is injected per server; tests construct their
// own.
type Engine struct {
	mu   sync.RWMutex
	ids  []string
	byID map[string]*Requisition
	now  func() time.Time
}

// NewEngine creates an empty workflow engine.
func NewEngine() *Engine {
	return &Engine{
		byID: make(map[string]*Requisition),
		now:  time.Now,
	}
}

// Create validates and stores a new requisition. Missing ids are assigned;
// the status always starts at DRAFT regardless of what the caller sent.
func (e *Engine) Create(req *Requisition) (*Requisition, error) {
	if req.FacilityID == "" || req.ProgramID == "" || req.ProcessingPeriodID == "" {
		return nil, &store.ValidationError{
			Msg: "facilityId, programId and processingPeriodId are required",
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	stored := req.clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if _, exists := e.byID[stored.ID]; exists {
		return nil, &store.ConflictError{Type: "requisition", ID: stored.ID}
	}
	now := e.now().UTC()
	stored.Status = StatusDraft
	stored.CreatedDate = now
	stored.ModifiedDate = now
	stored.StatusHistory = nil

	e.byID[stored.ID] = stored
	e.ids = append(e.ids, stored.ID)
	return stored.clone(), nil
}

// Seed loads a pre-existing requisition as-is, keeping its status and audit
// trail. Used only for fixture data at startup.
func (e *Engine) Seed(req *Requisition) error {
	if req.ID == "" {
		return &store.ValidationError{Field: "id", Msg: "seed requisition id is required"}
	}
	if req.Status == "" {
		req.Status = StatusDraft
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.byID[req.ID]; exists {
		return &store.ConflictError{Type: "requisition", ID: req.ID}
	}
	e.byID[req.ID] = req.clone()
	e.ids = append(e.ids, req.ID)
	return nil
}

// Get returns one requisition by id.
func (e *Engine) Get(id string) (*Requisition, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	req, ok := e.byID[id]
	if !ok {
		return nil, &store.NotFoundError{Type: "requisition", ID: id}
	}
	return req.clone(), nil
}

// List returns all requisitions in insertion order.
func (e *Engine) List() []*Requisition {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*Requisition, 0, len(e.ids))
	for _, id := range e.ids {
		out = append(out, e.byID[id].clone())
	}
	return out
}

// Filters narrows a requisition listing. Empty slices do not filter; multiple
// values for one field are OR'd, distinct fields are AND'd.
type Filters struct {
	FacilityID         []string
	ProgramID          []string
	ProcessingPeriodID []string
	Status             []string
}

// Find returns the requisitions matching the filters, in insertion order.
func (e *Engine) Find(f Filters) []*Requisition {
	matchAny := func(value string, wanted []string) bool {
		if len(wanted) == 0 {
			return true
		}
		for _, w := range wanted {
			if value == w {
				return true
			}
		}
		return false
	}

	var out []*Requisition
	for _, req := range e.List() {
		if matchAny(req.FacilityID, f.FacilityID) &&
			matchAny(req.ProgramID, f.ProgramID) &&
			matchAny(req.ProcessingPeriodID, f.ProcessingPeriodID) &&
			matchAny(string(req.Status), f.Status) {
			out = append(out, req)
		}
	}
	return out
}

// SaveLineItems replaces the line items of a requisition. Only DRAFT
// requisitions are editable.
func (e *Engine) SaveLineItems(id string, items []LineItem) (*Requisition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	req, ok := e.byID[id]
	if !ok {
		return nil, &store.NotFoundError{Type: "requisition", ID: id}
	}
	if req.Status != StatusDraft {
		return nil, &InvalidTransitionError{From: req.Status, Op: "save"}
	}
	req.LineItems = make([]LineItem, len(items))
	copy(req.LineItems, items)
	req.ModifiedDate = e.now().UTC()
	return req.clone(), nil
}

// Transition applies a workflow operation on behalf of a caller role.
//
// Checks run in a fixed order: existence, then transition legality, then role
// authority. Legality is decided purely by the current state, so an illegal
// operation fails with InvalidTransitionError even when the role would also
// have been insufficient. A successful transition appends to the audit trail;
// re-invoking the same operation afterwards fails because the source state
// has already changed.
func (e *Engine) Transition(id string, op Operation, role auth.Role) (*Requisition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	req, ok := e.byID[id]
	if !ok {
		return nil, &store.NotFoundError{Type: "requisition", ID: id}
	}

	r, legal := transitions[req.Status][op]
	if !legal {
		return nil, &InvalidTransitionError{From: req.Status, Op: op}
	}
	if !role.AtLeast(r.minRole) {
		return nil, &ForbiddenError{Op: op, Role: role, Required: r.minRole}
	}

	now := e.now().UTC()
	req.Status = r.to
	req.ModifiedDate = now
	req.StatusHistory = append(req.StatusHistory, AuditEntry{
		Status:    r.to,
		ActorRole: role.String(),
		Timestamp: now,
	})

	if op == OpApprove {
		for i := range req.LineItems {
			if req.LineItems[i].QuantityApproved == nil {
				qty := req.LineItems[i].QuantityRequested
				req.LineItems[i].QuantityApproved = &qty
			}
		}
	}

	return req.clone(), nil
}
