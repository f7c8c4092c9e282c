package fhir

import (
	"encoding/json"
	"testing"
)

func TestNewSearchBundle(t *testing.T) {
	resources := []map[string]any{
		{"resourceType": "Patient", "id": "p-1"},
		{"resourceType": "Patient", "id": "p-2"},
	}

	bundle := NewSearchBundle(resources)

	if bundle.ResourceType != "Bundle" || bundle.Type != "searchset" {
		t.Errorf("unexpected envelope: %s/%s", bundle.ResourceType, bundle.Type)
	}
	if *bundle.Total != 2 {
		t.Errorf("expected total 2, got %d", *bundle.Total)
	}
	if len(bundle.Entry) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(bundle.Entry))
	}
	if bundle.Entry[0].FullURL != "urn:uuid:p-1" {
		t.Errorf("expected urn:uuid:p-1, got %q", bundle.Entry[0].FullURL)
	}
	if bundle.Entry[0].Search == nil || bundle.Entry[0].Search.Mode != "match" {
		t.Error("expected search mode match")
	}
	if bundle.ID == "" {
		t.Error("expected bundle id")
	}

	var parsed map[string]any
	if err := json.Unmarshal(bundle.Entry[1].Resource, &parsed); err != nil {
		t.Fatalf("entry resource is not valid JSON: %v", err)
	}
	if parsed["id"] != "p-2" {
		t.Errorf("expected p-2, got %v", parsed["id"])
	}
}

func TestNewSearchBundleEmpty(t *testing.T) {
	bundle := NewSearchBundle(nil)
	if *bundle.Total != 0 {
		t.Errorf("expected total 0, got %d", *bundle.Total)
	}
	// entry must serialize as [], not null
	raw, _ := json.Marshal(bundle)
	var m map[string]any
	json.Unmarshal(raw, &m)
	if _, ok := m["entry"].([]any); !ok {
		t.Errorf("expected entry array, got %T", m["entry"])
	}
}

func TestNotFoundOutcome(t *testing.T) {
	oo := NotFoundOutcome("Patient", "p-404")
	if oo.ResourceType != "OperationOutcome" {
		t.Errorf("unexpected resourceType %q", oo.ResourceType)
	}
	if len(oo.Issue) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(oo.Issue))
	}
	issue := oo.Issue[0]
	if issue.Severity != IssueSeverityError || issue.Code != IssueTypeNotFound {
		t.Errorf("unexpected issue: %+v", issue)
	}
	if issue.Diagnostics != "Patient/p-404 not found" {
		t.Errorf("unexpected diagnostics: %q", issue.Diagnostics)
	}
}

func TestCapabilityBuilder(t *testing.T) {
	cap := NewCapabilityBuilder("FHIR Gateway Mock", "1.0.0").
		AddResource("Patient", "read", "search-type", "create", "update").
		AddResource("Location", "read", "search-type").
		Build("2026-01-17")

	if cap.FHIRVersion != "4.0.1" {
		t.Errorf("expected FHIR 4.0.1, got %s", cap.FHIRVersion)
	}
	if len(cap.Rest) != 1 || cap.Rest[0].Mode != "server" {
		t.Fatalf("expected single server rest entry")
	}
	res := cap.Rest[0].Resource
	if len(res) != 2 || res[0].Type != "Patient" || res[1].Type != "Location" {
		t.Fatalf("unexpected resources: %+v", res)
	}
	if len(res[0].Interaction) != 4 {
		t.Errorf("expected 4 Patient interactions, got %d", len(res[0].Interaction))
	}
}
