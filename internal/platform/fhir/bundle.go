// Package fhir holds the FHIR R4 wire types the gateway mock emits: search
// Bundles, OperationOutcomes, and the CapabilityStatement.
package fhir

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Bundle is a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Meta         *Meta         `json:"meta,omitempty"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Entry        []BundleEntry `json:"entry"`
}

// Meta is a FHIR resource meta element.
type Meta struct {
	VersionID   string `json:"versionId,omitempty"`
	LastUpdated string `json:"lastUpdated,omitempty"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
	Search   *BundleSearch   `json:"search,omitempty"`
}

type BundleSearch struct {
	Mode string `json:"mode,omitempty"`
}

// NewSearchBundle wraps matched resources in a searchset Bundle. Entries keep
// the input order and use urn:uuid fullUrls keyed by resource id, matching
// the gateway this mock stands in for.
func NewSearchBundle(resources []map[string]any) *Bundle {
	total := len(resources)
	entries := make([]BundleEntry, total)
	for i, r := range resources {
		raw, _ := json.Marshal(r)
		id, _ := r["id"].(string)
		entries[i] = BundleEntry{
			FullURL:  "urn:uuid:" + id,
			Resource: raw,
			Search:   &BundleSearch{Mode: "match"},
		}
	}
	return &Bundle{
		ResourceType: "Bundle",
		ID:           uuid.NewString(),
		Meta:         &Meta{LastUpdated: Timestamp(time.Now())},
		Type:         "searchset",
		Total:        &total,
		Entry:        entries,
	}
}

// Timestamp renders a FHIR instant in UTC.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
