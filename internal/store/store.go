// Package store implements the in-memory entity store backing the mock
// server: ordered collections of JSON-shaped records keyed by id, plus the
// query filter engine applied on search.
//
// Every mutation runs under a collection-level write lock and is visible to
// subsequent reads immediately; reads take the read lock and never observe a
// partially applied update. Nothing is persisted across restarts.
package store

import (
	"sync"
)

// Record is a JSON-shaped resource. Every record carries a string "id" field;
// FHIR records additionally carry "resourceType". Records handed out by the
// store are top-level copies, so callers may add or replace fields without
// affecting the stored version, but must not mutate nested values in place.
type Record map[string]any

// ID returns the record's id field, or "" when absent or not a string.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// clone returns a top-level copy of the record.
func (r Record) clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// collection holds the records of a single resource type in insertion order.
type collection struct {
	mu   sync.RWMutex
	ids  []string
	byID map[string]Record
}

func newCollection() *collection {
	return &collection{byID: make(map[string]Record)}
}

// Store is a set of named collections. A zero-configured Store starts empty;
// collections are created lazily on first insert. One Store instance is
// injected into every handler, so tests can run against isolated stores.
type Store struct {
	mu    sync.Mutex
	colls map[string]*collection
}

// New creates an empty Store.
func New() *Store {
	return &Store{colls: make(map[string]*collection)}
}

func (s *Store) coll(typ string) *collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.colls[typ]
	if !ok {
		c = newCollection()
		s.colls[typ] = c
	}
	return c
}

// Insert stores a new record. It fails with *ConflictError when a record with
// the same id already exists in the collection.
func (s *Store) Insert(typ string, rec Record) (Record, error) {
	id := rec.ID()
	if id == "" {
		return nil, &ValidationError{Field: "id", Msg: "record id is required"}
	}

	c := s.coll(typ)
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byID[id]; exists {
		return nil, &ConflictError{Type: typ, ID: id}
	}
	stored := rec.clone()
	c.byID[id] = stored
	c.ids = append(c.ids, id)
	return stored.clone(), nil
}

// Get returns the record with the given id, or *NotFoundError.
func (s *Store) Get(typ, id string) (Record, error) {
	c := s.coll(typ)
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.byID[id]
	if !ok {
		return nil, &NotFoundError{Type: typ, ID: id}
	}
	return rec.clone(), nil
}

// Update shallow-merges patch into the stored record: patch fields replace,
// unspecified fields are retained, and the id never changes. It fails with
// *NotFoundError when the record is absent.
func (s *Store) Update(typ, id string, patch Record) (Record, error) {
	c := s.coll(typ)
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.byID[id]
	if !ok {
		return nil, &NotFoundError{Type: typ, ID: id}
	}
	for k, v := range patch {
		if k == "id" {
			continue
		}
		rec[k] = v
	}
	return rec.clone(), nil
}

// Upsert replaces the record with the given id, inserting it when absent.
// It reports whether a record already existed. FHIR PUT semantics.
func (s *Store) Upsert(typ, id string, rec Record) (Record, bool) {
	return s.UpsertWith(typ, id, func(Record) Record { return rec })
}

// UpsertWith replaces the record with the given id, deriving the new record
// from the existing one under the collection lock. fn receives a copy of the
// current record, or nil when absent, so read-modify-write sequences such as
// version bumps cannot interleave.
func (s *Store) UpsertWith(typ, id string, fn func(existing Record) Record) (Record, bool) {
	c := s.coll(typ)
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, existed := c.byID[id]
	var base Record
	if existed {
		base = existing.clone()
	}
	stored := fn(base).clone()
	stored["id"] = id
	if !existed {
		c.ids = append(c.ids, id)
	}
	c.byID[id] = stored
	return stored.clone(), existed
}

// List returns all records of the collection in insertion order.
func (s *Store) List(typ string) []Record {
	c := s.coll(typ)
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Record, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.byID[id].clone())
	}
	return out
}

// Count returns the number of records in the collection.
func (s *Store) Count(typ string) int {
	c := s.coll(typ)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

// Search returns the records of the collection matching all query parameters,
// in insertion order, according to the given field specs. See Filter for the
// matching rules.
func (s *Store) Search(typ string, params map[string][]string, spec FieldSpecs) []Record {
	return Filter(s.List(typ), params, spec)
}
