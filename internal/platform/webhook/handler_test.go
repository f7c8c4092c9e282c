package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func setup() (*echo.Echo, *Recorder) {
	e := echo.New()
	r := NewRecorder()
	NewHandler(r).RegisterRoutes(e.Group(""), e.Group("/api"))
	return e, r
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestReceiveOpenLMISWebhook(t *testing.T) {
	e, r := setup()

	rec := do(e, http.MethodPost, "/webhooks/openlmis", `{"type":"order.created","orderId":"order-1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp struct {
		Received  bool   `json:"received"`
		EventID   string `json:"eventId"`
		Timestamp string `json:"timestamp"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Received || resp.EventID == "" || resp.Timestamp == "" {
		t.Errorf("unexpected ack: %+v", resp)
	}

	events, _ := r.List(Query{})
	if len(events) != 1 || events[0].Type != "order.created" || events[0].Source != "openlmis" {
		t.Errorf("unexpected recorded event: %+v", events)
	}
}

func TestReceiveRequisitionWebhookDerivesType(t *testing.T) {
	e, r := setup()

	do(e, http.MethodPost, "/webhooks/openlmis/requisitions", `{"action":"approved"}`)
	do(e, http.MethodPost, "/webhooks/openlmis/requisitions", `{}`)

	events, _ := r.List(Query{})
	if events[1].Type != "requisition.approved" || events[0].Type != "requisition.update" {
		t.Errorf("unexpected types: %s, %s", events[1].Type, events[0].Type)
	}
}

func TestReceiveOpenSRPWebhookFallsBackToResourceType(t *testing.T) {
	e, r := setup()

	do(e, http.MethodPost, "/webhooks/opensrp", `{"resourceType":"Bundle"}`)

	events, _ := r.List(Query{})
	if events[0].Type != "bundle" || events[0].Source != "opensrp" {
		t.Errorf("unexpected event: %+v", events[0])
	}
}

func TestReceivePatientWebhookAction(t *testing.T) {
	e, r := setup()

	do(e, http.MethodPost, "/webhooks/opensrp/patient", `{"id":"patient-001"}`)
	do(e, http.MethodPost, "/webhooks/opensrp/patient", `{"name":[]}`)

	events, _ := r.List(Query{})
	if events[1].Type != "patient.updated" || events[0].Type != "patient.created" {
		t.Errorf("unexpected types: %s, %s", events[1].Type, events[0].Type)
	}
}

func TestListEventsEndpoint(t *testing.T) {
	e, r := setup()
	r.Record("openlmis", "stock.updated", nil)
	r.Record("opensrp", "patient.created", nil)

	rec := do(e, http.MethodGet, "/api/events?source=opensrp", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Events []Event `json:"events"`
		Total  int     `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Events[0].Type != "patient.created" {
		t.Errorf("unexpected listing: %+v", resp)
	}
}

func TestClearEventsEndpoint(t *testing.T) {
	e, r := setup()
	r.Record("openlmis", "tick", nil)

	rec := do(e, http.MethodDelete, "/api/events", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if r.Len() != 0 {
		t.Errorf("events not cleared, %d left", r.Len())
	}
}

func TestSimulateEndpoint(t *testing.T) {
	e, r := setup()

	rec := do(e, http.MethodPost, "/api/events/simulate", `{"source":"opensrp","type":"task.completed","payload":{"taskId":"task-1"}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp struct {
		Simulated bool  `json:"simulated"`
		Event     Event `json:"event"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Simulated || resp.Event.Type != "task.completed" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if r.Len() != 1 {
		t.Errorf("simulated event not recorded")
	}
}

func TestSimulateRequisitionDefaults(t *testing.T) {
	e, _ := setup()

	rec := do(e, http.MethodPost, "/api/events/simulate/openlmis/requisition", `{}`)
	var resp struct {
		Event Event `json:"event"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	payload, _ := resp.Event.Payload.(map[string]any)
	if payload["previousStatus"] != "DRAFT" || payload["newStatus"] != "SUBMITTED" {
		t.Errorf("unexpected defaults: %v", payload)
	}
	if resp.Event.Type != "requisition.statusChange" {
		t.Errorf("unexpected type: %s", resp.Event.Type)
	}
}

func TestSimulateStockDefaults(t *testing.T) {
	e, _ := setup()

	rec := do(e, http.MethodPost, "/api/events/simulate/openlmis/stock", `{"quantity":25}`)
	var resp struct {
		Event Event `json:"event"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	payload, _ := resp.Event.Payload.(map[string]any)
	if payload["quantity"] != float64(25) {
		t.Errorf("quantity override lost: %v", payload["quantity"])
	}
	if payload["reason"] != "RECEIVE" {
		t.Errorf("unexpected reason default: %v", payload["reason"])
	}
}

func TestSimulateEncounterDefaults(t *testing.T) {
	e, _ := setup()

	rec := do(e, http.MethodPost, "/api/events/simulate/opensrp/encounter", `{}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp struct {
		Simulated bool  `json:"simulated"`
		Event     Event `json:"event"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Simulated {
		t.Error("expected simulated true")
	}
	if resp.Event.Source != "opensrp" || resp.Event.Type != "encounter.created" {
		t.Errorf("unexpected event: %s %s", resp.Event.Source, resp.Event.Type)
	}
	payload, _ := resp.Event.Payload.(map[string]any)
	if payload["resourceType"] != "Encounter" || payload["status"] != "finished" {
		t.Errorf("unexpected payload: %v", payload)
	}
	if id, _ := payload["id"].(string); !strings.HasPrefix(id, "encounter-") {
		t.Errorf("unexpected encounter id: %v", payload["id"])
	}
	class, _ := payload["class"].(map[string]any)
	if class["code"] != "AMB" {
		t.Errorf("unexpected class: %v", class)
	}
	subject, _ := payload["subject"].(map[string]any)
	if subject["reference"] != "Patient/patient-001" {
		t.Errorf("unexpected subject default: %v", subject)
	}
	period, _ := payload["period"].(map[string]any)
	if period["start"] == "" || period["end"] == "" {
		t.Errorf("period must carry timestamps: %v", period)
	}
}

func TestSimulateEncounterOverrides(t *testing.T) {
	e, _ := setup()

	body := `{"encounterId":"enc-42","patientId":"patient-007","organizationId":"org-009"}`
	rec := do(e, http.MethodPost, "/api/events/simulate/opensrp/encounter", body)
	var resp struct {
		Event Event `json:"event"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	payload, _ := resp.Event.Payload.(map[string]any)
	if payload["id"] != "enc-42" {
		t.Errorf("encounterId override lost: %v", payload["id"])
	}
	subject, _ := payload["subject"].(map[string]any)
	if subject["reference"] != "Patient/patient-007" {
		t.Errorf("unexpected subject: %v", subject)
	}
	provider, _ := payload["serviceProvider"].(map[string]any)
	if provider["reference"] != "Organization/org-009" {
		t.Errorf("unexpected serviceProvider: %v", provider)
	}
}
