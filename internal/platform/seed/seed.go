// Package seed loads the fixture data the server starts with. The built-in
// fixtures are embedded; a data directory can override any of them file by
// file.
package seed

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lmis/lmis/internal/domain/reference"
	"github.com/lmis/lmis/internal/domain/requisition"
	"github.com/lmis/lmis/internal/domain/stock"
	"github.com/lmis/lmis/internal/platform/auth"
	"github.com/lmis/lmis/internal/store"
)

//go:embed data/*.json
var builtin embed.FS

// Fixtures is the parsed seed data set.
type Fixtures struct {
	Users        []auth.User
	Reference    map[string][]store.Record
	Requisitions []*requisition.Requisition
	StockCards   []*stock.Card
	ValidSources []stock.Node
	ValidDests   []stock.Node
	FHIR         map[string][]store.Record
}

type usersFile struct {
	Users []auth.User `json:"users"`
}

type referenceFile struct {
	Facilities        []store.Record `json:"facilities"`
	Programs          []store.Record `json:"programs"`
	Orderables        []store.Record `json:"orderables"`
	ProcessingPeriods []store.Record `json:"processingPeriods"`
}

type requisitionsFile struct {
	Requisitions []*requisition.Requisition `json:"requisitions"`
}

type stockFile struct {
	StockCards        []*stock.Card `json:"stockCards"`
	ValidSources      []stock.Node  `json:"validSources"`
	ValidDestinations []stock.Node  `json:"validDestinations"`
}

// Load parses the embedded fixtures. Files present under dataDir replace
// their embedded counterparts; dataDir == "" uses only the embedded set.
func Load(dataDir string) (*Fixtures, error) {
	fx := &Fixtures{
		Reference: map[string][]store.Record{},
		FHIR:      map[string][]store.Record{},
	}

	var users usersFile
	if err := readFixture(dataDir, "users.json", &users); err != nil {
		return nil, err
	}
	fx.Users = users.Users

	var ref referenceFile
	if err := readFixture(dataDir, "reference.json", &ref); err != nil {
		return nil, err
	}
	fx.Reference[reference.CollFacilities] = ref.Facilities
	fx.Reference[reference.CollPrograms] = ref.Programs
	fx.Reference[reference.CollOrderables] = ref.Orderables
	fx.Reference[reference.CollPeriods] = ref.ProcessingPeriods

	var reqs requisitionsFile
	if err := readFixture(dataDir, "requisitions.json", &reqs); err != nil {
		return nil, err
	}
	fx.Requisitions = reqs.Requisitions

	var stk stockFile
	if err := readFixture(dataDir, "stock.json", &stk); err != nil {
		return nil, err
	}
	fx.StockCards = stk.StockCards
	fx.ValidSources = stk.ValidSources
	fx.ValidDests = stk.ValidDestinations

	if err := readFixture(dataDir, "fhir.json", &fx.FHIR); err != nil {
		return nil, err
	}

	return fx, nil
}

// Apply installs the fixtures into the store, the requisition engine and the
// stock ledger.
func (fx *Fixtures) Apply(st *store.Store, reqs *requisition.Engine, ledger *stock.Ledger) error {
	for coll, records := range fx.Reference {
		for _, rec := range records {
			if _, err := st.Insert(coll, rec); err != nil {
				return fmt.Errorf("seed %s: %w", coll, err)
			}
		}
	}
	for typ, resources := range fx.FHIR {
		for _, rec := range resources {
			if _, err := st.Insert(typ, rec); err != nil {
				return fmt.Errorf("seed %s: %w", typ, err)
			}
		}
	}
	for _, req := range fx.Requisitions {
		if err := reqs.Seed(req); err != nil {
			return fmt.Errorf("seed requisition %s: %w", req.ID, err)
		}
	}
	for _, card := range fx.StockCards {
		if err := ledger.SeedCard(card); err != nil {
			return fmt.Errorf("seed stock card %s: %w", card.ID, err)
		}
	}
	ledger.SeedNodes(fx.ValidSources, fx.ValidDests)
	return nil
}

// readFixture decodes one fixture file, preferring the dataDir copy when it
// exists.
func readFixture(dataDir, name string, out any) error {
	if dataDir != "" {
		path := filepath.Join(dataDir, name)
		if raw, err := os.ReadFile(path); err == nil {
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			return nil
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("read %s: %w", path, err)
		}
	}

	raw, err := builtin.ReadFile("data/" + name)
	if err != nil {
		return fmt.Errorf("read embedded %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse embedded %s: %w", name, err)
	}
	return nil
}
