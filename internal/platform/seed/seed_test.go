package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lmis/lmis/internal/domain/reference"
	"github.com/lmis/lmis/internal/domain/requisition"
	"github.com/lmis/lmis/internal/domain/stock"
	"github.com/lmis/lmis/internal/store"
)

func TestLoadEmbedded(t *testing.T) {
	fx, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(fx.Users) == 0 {
		t.Error("expected seed users")
	}
	if len(fx.Reference[reference.CollFacilities]) == 0 {
		t.Error("expected seed facilities")
	}
	if len(fx.Requisitions) == 0 {
		t.Error("expected seed requisitions")
	}
	if len(fx.StockCards) == 0 {
		t.Error("expected seed stock cards")
	}
	if len(fx.FHIR["Patient"]) == 0 {
		t.Error("expected seed patients")
	}
}

func TestApply(t *testing.T) {
	fx, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	st := store.New()
	reqs := requisition.NewEngine()
	ledger := stock.NewLedger()
	if err := fx.Apply(st, reqs, ledger); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if st.Count(reference.CollFacilities) != len(fx.Reference[reference.CollFacilities]) {
		t.Error("facilities not all inserted")
	}
	if st.Count("Patient") != len(fx.FHIR["Patient"]) {
		t.Error("patients not all inserted")
	}

	seeded, err := reqs.Get(fx.Requisitions[0].ID)
	if err != nil {
		t.Fatalf("seeded requisition missing: %v", err)
	}
	if seeded.Status != fx.Requisitions[0].Status {
		t.Errorf("seed must keep status, got %s", seeded.Status)
	}

	// Replayed cards keep the signed-sum invariant.
	for _, card := range fx.StockCards {
		got := ledger.Card(card.FacilityID, card.OrderableID)
		want := 0
		for _, line := range card.LineItems {
			want += line.Quantity
		}
		if got.StockOnHand != want {
			t.Errorf("card %s: expected %d on hand, got %d", card.ID, want, got.StockOnHand)
		}
	}

	if len(ledger.ValidSources()) != len(fx.ValidSources) {
		t.Error("valid sources not seeded")
	}
}

func TestApplyTwiceConflicts(t *testing.T) {
	fx, _ := Load("")
	st := store.New()
	reqs := requisition.NewEngine()
	ledger := stock.NewLedger()

	if err := fx.Apply(st, reqs, ledger); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := fx.Apply(st, reqs, ledger); err == nil {
		t.Fatal("second apply must fail on duplicate ids")
	}
}

func TestDataDirOverride(t *testing.T) {
	dir := t.TempDir()
	users := `{"users":[{"id":"user-x","username":"tester","password":"pw","role":"ADMIN"}]}`
	if err := os.WriteFile(filepath.Join(dir, "users.json"), []byte(users), 0o644); err != nil {
		t.Fatal(err)
	}

	fx, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(fx.Users) != 1 || fx.Users[0].Username != "tester" {
		t.Errorf("override not honored: %+v", fx.Users)
	}
	// Files absent from the override dir still come from the embedded set.
	if len(fx.Reference[reference.CollFacilities]) == 0 {
		t.Error("embedded reference data lost")
	}
}

func TestDataDirBadJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "stock.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(dir); err == nil {
		t.Fatal("expected a parse error")
	}
}
