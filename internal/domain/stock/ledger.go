// Package stock keeps the append-only stock event ledger and the stock
// cards derived from it. Cards are never edited directly: every change
// flows through an event, and a card's stockOnHand is always the signed
// sum of the events recorded for its (facility, orderable) pair.
package stock

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lmis/lmis/internal/store"
)

// Event is one immutable entry in the ledger. Quantity is signed: credits
// are positive, debits negative.
type Event struct {
	ID            string `json:"id"`
	FacilityID    string `json:"facilityId"`
	ProgramID     string `json:"programId,omitempty"`
	OrderableID   string `json:"orderableId"`
	Quantity      int    `json:"quantity"`
	ReasonID      string `json:"reasonId,omitempty"`
	SourceID      string `json:"sourceId,omitempty"`
	DestinationID string `json:"destinationId,omitempty"`
	OccurredDate  string `json:"occurredDate,omitempty"`
	RecordedBy    string `json:"recordedBy,omitempty"`
}

// CardLine is an event as it appears on a stock card's history.
type CardLine struct {
	ID           string `json:"id"`
	OccurredDate string `json:"occurredDate"`
	Quantity     int    `json:"quantity"`
	Reason       string `json:"reason"`
	Source       string `json:"source,omitempty"`
	Destination  string `json:"destination,omitempty"`
}

// Card tracks the on-hand quantity of one orderable at one facility.
type Card struct {
	ID          string     `json:"id"`
	FacilityID  string     `json:"facilityId"`
	ProgramID   string     `json:"programId,omitempty"`
	OrderableID string     `json:"orderableId"`
	StockOnHand int        `json:"stockOnHand"`
	LastEventID string     `json:"lastEventId,omitempty"`
	LineItems   []CardLine `json:"lineItems"`
}

func (c *Card) clone() *Card {
	out := *c
	out.LineItems = append([]CardLine(nil), c.LineItems...)
	return &out
}

// Summary is the aggregated stockCardSummaries view.
type Summary struct {
	StockCard   Ref `json:"stockCard"`
	Orderable   Ref `json:"orderable"`
	StockOnHand int `json:"stockOnHand"`
}

// Ref is a bare id reference inside a summary.
type Ref struct {
	ID string `json:"id"`
}

// Node is a valid source or destination for stock movements.
type Node struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	FacilityID string `json:"facilityId,omitempty"`
	IsFreeText bool   `json:"isFreeTextAllowed,omitempty"`
}

// Reason is a stock adjustment reason.
type Reason struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ReasonType string `json:"reasonType"`
}

type cardKey struct {
	facility  string
	orderable string
}

// Ledger owns the event log and derived cards. All methods are safe for
// concurrent use; writes are all-or-nothing under one lock.
type Ledger struct {
	mu sync.RWMutex

	events  []Event
	order   []cardKey
	cards   map[cardKey]*Card
	byID    map[string]*Card
	sources []Node
	dests   []Node

	now func() time.Time
}

func NewLedger() *Ledger {
	return &Ledger{
		cards: make(map[cardKey]*Card),
		byID:  make(map[string]*Card),
		now:   time.Now,
	}
}

// RecordEvent validates and applies a single event, returning the updated
// card. A zero quantity is rejected before anything is written.
func (l *Ledger) RecordEvent(ev Event) (*Card, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := validate(ev); err != nil {
		return nil, err
	}
	card := l.apply(ev)
	return card.clone(), nil
}

// RecordEvents applies a multi-line event atomically. Every line is
// validated up front; if any fails, no line is applied.
func (l *Ledger) RecordEvents(evs []Event) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(evs) == 0 {
		return "", &store.ValidationError{Field: "lineItems", Msg: "at least one line item is required"}
	}
	for _, ev := range evs {
		if err := validate(ev); err != nil {
			return "", err
		}
	}
	eventID := uuid.NewString()
	for _, ev := range evs {
		l.apply(ev)
	}
	return eventID, nil
}

func validate(ev Event) error {
	if ev.OrderableID == "" {
		return &store.ValidationError{Field: "orderableId", Msg: "orderableId is required"}
	}
	if ev.FacilityID == "" {
		return &store.ValidationError{Field: "facilityId", Msg: "facilityId is required"}
	}
	if ev.Quantity == 0 {
		return &store.ValidationError{Field: "quantity", Msg: "quantity must be non-zero"}
	}
	return nil
}

// apply assumes the caller holds the lock and the event is valid.
func (l *Ledger) apply(ev Event) *Card {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredDate == "" {
		ev.OccurredDate = l.now().UTC().Format("2006-01-02")
	}
	l.events = append(l.events, ev)

	key := cardKey{facility: ev.FacilityID, orderable: ev.OrderableID}
	card, ok := l.cards[key]
	if !ok {
		card = &Card{
			ID:          uuid.NewString(),
			FacilityID:  ev.FacilityID,
			ProgramID:   ev.ProgramID,
			OrderableID: ev.OrderableID,
			LineItems:   []CardLine{},
		}
		l.cards[key] = card
		l.byID[card.ID] = card
		l.order = append(l.order, key)
	}

	reason := ev.ReasonID
	if reason == "" {
		reason = "ADJUSTMENT"
	}
	card.LineItems = append(card.LineItems, CardLine{
		ID:           ev.ID,
		OccurredDate: ev.OccurredDate,
		Quantity:     ev.Quantity,
		Reason:       reason,
		Source:       ev.SourceID,
		Destination:  ev.DestinationID,
	})
	card.StockOnHand += ev.Quantity
	card.LastEventID = ev.ID
	return card
}

// Card returns the card for a (facility, orderable) pair. No history means
// zero stock, not an error.
func (l *Ledger) Card(facilityID, orderableID string) *Card {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if card, ok := l.cards[cardKey{facility: facilityID, orderable: orderableID}]; ok {
		return card.clone()
	}
	return &Card{
		FacilityID:  facilityID,
		OrderableID: orderableID,
		LineItems:   []CardLine{},
	}
}

// CardByID looks a card up by its own id.
func (l *Ledger) CardByID(id string) (*Card, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if card, ok := l.byID[id]; ok {
		return card.clone(), nil
	}
	return nil, &store.NotFoundError{Type: "stockCard", ID: id}
}

// Filters narrows card listings. Empty fields match everything.
type Filters struct {
	FacilityID  string
	ProgramID   string
	OrderableID string
}

// Cards lists cards in first-event order.
func (l *Ledger) Cards(f Filters) []*Card {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := []*Card{}
	for _, key := range l.order {
		card := l.cards[key]
		if f.FacilityID != "" && card.FacilityID != f.FacilityID {
			continue
		}
		if f.ProgramID != "" && card.ProgramID != f.ProgramID {
			continue
		}
		if f.OrderableID != "" && card.OrderableID != f.OrderableID {
			continue
		}
		out = append(out, card.clone())
	}
	return out
}

// Summarize returns the aggregated per-orderable view of a facility's cards.
func (l *Ledger) Summarize(f Filters) []Summary {
	cards := l.Cards(f)
	out := make([]Summary, 0, len(cards))
	for _, card := range cards {
		out = append(out, Summary{
			StockCard:   Ref{ID: card.ID},
			Orderable:   Ref{ID: card.OrderableID},
			StockOnHand: card.StockOnHand,
		})
	}
	return out
}

// Events returns a copy of the full ledger, oldest first.
func (l *Ledger) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Event(nil), l.events...)
}

// SeedCard installs a pre-built card for fixtures. The card's line items
// are replayed into the ledger so the signed-sum invariant holds.
func (l *Ledger) SeedCard(card *Card) error {
	if card.FacilityID == "" || card.OrderableID == "" {
		return &store.ValidationError{Field: "stockCard", Msg: "facilityId and orderableId are required"}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := cardKey{facility: card.FacilityID, orderable: card.OrderableID}
	if _, ok := l.cards[key]; ok {
		return &store.ConflictError{Type: "stockCard", ID: fmt.Sprintf("%s/%s", card.FacilityID, card.OrderableID)}
	}
	if card.ID == "" {
		card.ID = uuid.NewString()
	}

	seeded := &Card{
		ID:          card.ID,
		FacilityID:  card.FacilityID,
		ProgramID:   card.ProgramID,
		OrderableID: card.OrderableID,
		LineItems:   []CardLine{},
	}
	l.cards[key] = seeded
	l.byID[seeded.ID] = seeded
	l.order = append(l.order, key)

	for _, line := range card.LineItems {
		if line.Quantity == 0 {
			continue
		}
		ev := Event{
			ID:           line.ID,
			FacilityID:   card.FacilityID,
			ProgramID:    card.ProgramID,
			OrderableID:  card.OrderableID,
			Quantity:     line.Quantity,
			ReasonID:     line.Reason,
			SourceID:     line.Source,
			OccurredDate: line.OccurredDate,
		}
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		l.events = append(l.events, ev)
		seeded.LineItems = append(seeded.LineItems, CardLine{
			ID:           ev.ID,
			OccurredDate: line.OccurredDate,
			Quantity:     line.Quantity,
			Reason:       line.Reason,
			Source:       line.Source,
			Destination:  line.Destination,
		})
		seeded.StockOnHand += line.Quantity
		seeded.LastEventID = ev.ID
	}
	return nil
}

// SeedNodes installs the valid source and destination lists.
func (l *Ledger) SeedNodes(sources, destinations []Node) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sources = append([]Node(nil), sources...)
	l.dests = append([]Node(nil), destinations...)
}

func (l *Ledger) ValidSources() []Node {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := append([]Node(nil), l.sources...)
	if out == nil {
		out = []Node{}
	}
	return out
}

func (l *Ledger) ValidDestinations() []Node {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := append([]Node(nil), l.dests...)
	if out == nil {
		out = []Node{}
	}
	return out
}

// Reasons returns the fixed adjustment reason catalog.
func Reasons() []Reason {
	return []Reason{
		{ID: "reason-receive", Name: "Receipt", ReasonType: "CREDIT"},
		{ID: "reason-issue", Name: "Issue", ReasonType: "DEBIT"},
		{ID: "reason-adjustment-pos", Name: "Positive Adjustment", ReasonType: "CREDIT"},
		{ID: "reason-adjustment-neg", Name: "Negative Adjustment", ReasonType: "DEBIT"},
		{ID: "reason-expired", Name: "Expired", ReasonType: "DEBIT"},
		{ID: "reason-damaged", Name: "Damaged", ReasonType: "DEBIT"},
	}
}
