package stock

import (
	"errors"
	"testing"

	"github.com/lmis/lmis/internal/store"
)

func TestRecordEventCreatesCard(t *testing.T) {
	l := NewLedger()

	card, err := l.RecordEvent(Event{FacilityID: "facility-1", OrderableID: "orderable-1", Quantity: 40})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if card.StockOnHand != 40 {
		t.Errorf("expected 40 on hand, got %d", card.StockOnHand)
	}
	if len(card.LineItems) != 1 {
		t.Errorf("expected 1 line item, got %d", len(card.LineItems))
	}
	if card.LastEventID == "" {
		t.Error("expected lastEventId to be set")
	}
}

func TestRecordEventZeroQuantityRejected(t *testing.T) {
	l := NewLedger()

	_, err := l.RecordEvent(Event{FacilityID: "facility-1", OrderableID: "orderable-1", Quantity: 0})
	var verr *store.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "quantity" {
		t.Errorf("expected quantity field, got %s", verr.Field)
	}
	if len(l.Events()) != 0 {
		t.Error("rejected event must not reach the ledger")
	}
}

func TestNegativeThenPositiveNetsToZero(t *testing.T) {
	l := NewLedger()

	if _, err := l.RecordEvent(Event{FacilityID: "facility-1", OrderableID: "orderable-1", Quantity: -5}); err != nil {
		t.Fatalf("debit: %v", err)
	}
	card, err := l.RecordEvent(Event{FacilityID: "facility-1", OrderableID: "orderable-1", Quantity: 5})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if card.StockOnHand != 0 {
		t.Errorf("expected 0 on hand, got %d", card.StockOnHand)
	}
}

func TestStockOnHandEqualsSignedSum(t *testing.T) {
	l := NewLedger()
	quantities := []int{100, -30, 7, -7, 12, -50}

	sum := 0
	for _, q := range quantities {
		if _, err := l.RecordEvent(Event{FacilityID: "facility-1", OrderableID: "orderable-1", Quantity: q}); err != nil {
			t.Fatalf("quantity %d: %v", q, err)
		}
		sum += q
	}

	card := l.Card("facility-1", "orderable-1")
	if card.StockOnHand != sum {
		t.Errorf("expected %d on hand, got %d", sum, card.StockOnHand)
	}

	ledgerSum := 0
	for _, ev := range l.Events() {
		ledgerSum += ev.Quantity
	}
	if ledgerSum != card.StockOnHand {
		t.Errorf("card %d diverged from ledger sum %d", card.StockOnHand, ledgerSum)
	}
}

func TestCardZeroDefaultWithoutHistory(t *testing.T) {
	l := NewLedger()

	card := l.Card("facility-9", "orderable-9")
	if card == nil {
		t.Fatal("expected a zero card, got nil")
	}
	if card.StockOnHand != 0 {
		t.Errorf("expected 0 on hand, got %d", card.StockOnHand)
	}
	if card.FacilityID != "facility-9" || card.OrderableID != "orderable-9" {
		t.Errorf("zero card must echo the pair: %+v", card)
	}
}

func TestCardByIDNotFound(t *testing.T) {
	l := NewLedger()

	_, err := l.CardByID("ghost")
	var nf *store.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestRecordEventsAllOrNothing(t *testing.T) {
	l := NewLedger()

	_, err := l.RecordEvents([]Event{
		{FacilityID: "facility-1", OrderableID: "orderable-1", Quantity: 10},
		{FacilityID: "facility-1", OrderableID: "orderable-2", Quantity: 0},
	})
	var verr *store.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(l.Events()) != 0 {
		t.Error("no line may apply when any line is invalid")
	}
	if card := l.Card("facility-1", "orderable-1"); card.StockOnHand != 0 {
		t.Errorf("card must stay untouched, got %d", card.StockOnHand)
	}
}

func TestRecordEventsAppliesAllLines(t *testing.T) {
	l := NewLedger()

	id, err := l.RecordEvents([]Event{
		{FacilityID: "facility-1", OrderableID: "orderable-1", Quantity: 10},
		{FacilityID: "facility-1", OrderableID: "orderable-2", Quantity: -3},
	})
	if err != nil {
		t.Fatalf("RecordEvents: %v", err)
	}
	if id == "" {
		t.Error("expected an event id")
	}
	if got := l.Card("facility-1", "orderable-1").StockOnHand; got != 10 {
		t.Errorf("orderable-1: expected 10, got %d", got)
	}
	if got := l.Card("facility-1", "orderable-2").StockOnHand; got != -3 {
		t.Errorf("orderable-2: expected -3, got %d", got)
	}
}

func TestCardsFiltering(t *testing.T) {
	l := NewLedger()
	l.RecordEvent(Event{FacilityID: "facility-1", ProgramID: "prog-1", OrderableID: "orderable-1", Quantity: 5})
	l.RecordEvent(Event{FacilityID: "facility-1", ProgramID: "prog-2", OrderableID: "orderable-2", Quantity: 5})
	l.RecordEvent(Event{FacilityID: "facility-2", ProgramID: "prog-1", OrderableID: "orderable-1", Quantity: 5})

	if got := len(l.Cards(Filters{})); got != 3 {
		t.Errorf("unfiltered: expected 3, got %d", got)
	}
	if got := len(l.Cards(Filters{FacilityID: "facility-1"})); got != 2 {
		t.Errorf("facility-1: expected 2, got %d", got)
	}
	if got := len(l.Cards(Filters{FacilityID: "facility-1", ProgramID: "prog-2"})); got != 1 {
		t.Errorf("facility-1+prog-2: expected 1, got %d", got)
	}
	if got := len(l.Cards(Filters{OrderableID: "orderable-1"})); got != 2 {
		t.Errorf("orderable-1: expected 2, got %d", got)
	}
}

func TestSummarize(t *testing.T) {
	l := NewLedger()
	l.RecordEvent(Event{FacilityID: "facility-1", OrderableID: "orderable-1", Quantity: 12})
	l.RecordEvent(Event{FacilityID: "facility-1", OrderableID: "orderable-2", Quantity: 4})
	l.RecordEvent(Event{FacilityID: "facility-2", OrderableID: "orderable-1", Quantity: 99})

	summaries := l.Summarize(Filters{FacilityID: "facility-1"})
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].Orderable.ID != "orderable-1" || summaries[0].StockOnHand != 12 {
		t.Errorf("unexpected first summary: %+v", summaries[0])
	}
	if summaries[0].StockCard.ID == "" {
		t.Error("summary must reference its card")
	}
}

func TestSeedCardReplaysHistory(t *testing.T) {
	l := NewLedger()

	err := l.SeedCard(&Card{
		ID:          "stock-card-001",
		FacilityID:  "facility-1",
		OrderableID: "orderable-1",
		LineItems: []CardLine{
			{Quantity: 100, Reason: "reason-receive", OccurredDate: "2024-01-01"},
			{Quantity: -25, Reason: "reason-issue", OccurredDate: "2024-01-05"},
		},
	})
	if err != nil {
		t.Fatalf("SeedCard: %v", err)
	}

	card, err := l.CardByID("stock-card-001")
	if err != nil {
		t.Fatalf("CardByID: %v", err)
	}
	if card.StockOnHand != 75 {
		t.Errorf("expected 75 on hand, got %d", card.StockOnHand)
	}
	if len(l.Events()) != 2 {
		t.Errorf("expected 2 replayed events, got %d", len(l.Events()))
	}
}

func TestSeedCardDuplicatePair(t *testing.T) {
	l := NewLedger()
	seed := &Card{FacilityID: "facility-1", OrderableID: "orderable-1"}
	if err := l.SeedCard(seed); err != nil {
		t.Fatalf("first seed: %v", err)
	}

	err := l.SeedCard(&Card{FacilityID: "facility-1", OrderableID: "orderable-1"})
	var conflict *store.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestReturnedCardsAreCopies(t *testing.T) {
	l := NewLedger()
	l.RecordEvent(Event{FacilityID: "facility-1", OrderableID: "orderable-1", Quantity: 5})

	card := l.Card("facility-1", "orderable-1")
	card.StockOnHand = 999
	card.LineItems[0].Quantity = 999

	fresh := l.Card("facility-1", "orderable-1")
	if fresh.StockOnHand != 5 || fresh.LineItems[0].Quantity != 5 {
		t.Error("mutating a returned card leaked into the ledger")
	}
}
