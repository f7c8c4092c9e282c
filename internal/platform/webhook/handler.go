package webhook

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lmis/lmis/internal/platform/fhir"
)

// Handler exposes the webhook receivers, the event feed, and the event
// simulation helpers.
type Handler struct {
	recorder *Recorder
}

func NewHandler(recorder *Recorder) *Handler {
	return &Handler{recorder: recorder}
}

// RegisterRoutes wires the /webhooks receivers onto the root group and the
// event feed onto the /api group.
func (h *Handler) RegisterRoutes(root, api *echo.Group) {
	root.POST("/webhooks/openlmis", h.receiveOpenLMIS)
	root.POST("/webhooks/openlmis/requisitions", h.receivePrefixed("openlmis", "requisition"))
	root.POST("/webhooks/openlmis/stock", h.receivePrefixed("openlmis", "stock"))
	root.POST("/webhooks/opensrp", h.receiveOpenSRP)
	root.POST("/webhooks/opensrp/patient", h.receivePatient)
	root.POST("/webhooks/opensrp/encounter", h.receiveEncounter)

	api.GET("/events", h.ListEvents)
	api.DELETE("/events", h.ClearEvents)
	api.POST("/events/simulate", h.Simulate)
	api.POST("/events/simulate/openlmis/requisition", h.SimulateRequisition)
	api.POST("/events/simulate/openlmis/stock", h.SimulateStock)
	api.POST("/events/simulate/opensrp/patient", h.SimulatePatient)
	api.POST("/events/simulate/opensrp/encounter", h.SimulateEncounter)
}

// ListEvents implements GET /api/events with source, type and limit filters.
func (h *Handler) ListEvents(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	events, total := h.recorder.List(Query{
		Source: c.QueryParam("source"),
		Type:   c.QueryParam("type"),
		Limit:  limit,
	})
	return c.JSON(http.StatusOK, map[string]any{
		"events": events,
		"total":  total,
	})
}

// ClearEvents implements DELETE /api/events.
func (h *Handler) ClearEvents(c echo.Context) error {
	h.recorder.Clear()
	return c.JSON(http.StatusOK, map[string]string{"message": "All events cleared"})
}

func (h *Handler) receiveOpenLMIS(c echo.Context) error {
	body := bindBody(c)
	eventType, _ := body["type"].(string)
	if eventType == "" {
		eventType = "unknown"
	}
	ev := h.recorder.Record("openlmis", eventType, body)
	return c.JSON(http.StatusCreated, map[string]any{
		"received":  true,
		"eventId":   ev.ID,
		"timestamp": ev.Timestamp,
	})
}

// receivePrefixed builds a receiver that derives the event type from the
// body's action field under a fixed prefix.
func (h *Handler) receivePrefixed(source, prefix string) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := bindBody(c)
		action, _ := body["action"].(string)
		if action == "" {
			action = "update"
		}
		ev := h.recorder.Record(source, prefix+"."+action, body)
		return c.JSON(http.StatusCreated, map[string]any{
			"received": true,
			"eventId":  ev.ID,
		})
	}
}

func (h *Handler) receiveOpenSRP(c echo.Context) error {
	body := bindBody(c)
	eventType, _ := body["type"].(string)
	if eventType == "" {
		if rt, ok := body["resourceType"].(string); ok && rt != "" {
			eventType = strings.ToLower(rt)
		} else {
			eventType = "unknown"
		}
	}
	ev := h.recorder.Record("opensrp", eventType, body)
	return c.JSON(http.StatusCreated, map[string]any{
		"received":  true,
		"eventId":   ev.ID,
		"timestamp": ev.Timestamp,
	})
}

func (h *Handler) receivePatient(c echo.Context) error {
	body := bindBody(c)
	action := "created"
	if id, ok := body["id"].(string); ok && id != "" {
		action = "updated"
	}
	ev := h.recorder.Record("opensrp", "patient."+action, body)
	return c.JSON(http.StatusCreated, map[string]any{
		"received": true,
		"eventId":  ev.ID,
	})
}

func (h *Handler) receiveEncounter(c echo.Context) error {
	body := bindBody(c)
	ev := h.recorder.Record("opensrp", "encounter.created", body)
	return c.JSON(http.StatusCreated, map[string]any{
		"received": true,
		"eventId":  ev.ID,
	})
}

// Simulate implements POST /api/events/simulate for arbitrary test events.
func (h *Handler) Simulate(c echo.Context) error {
	body := bindBody(c)
	source, _ := body["source"].(string)
	if source == "" {
		source = "openlmis"
	}
	eventType, _ := body["type"].(string)
	if eventType == "" {
		eventType = "test.event"
	}
	payload := body["payload"]
	if payload == nil {
		payload = map[string]any{}
	}
	ev := h.recorder.Record(source, eventType, payload)
	return c.JSON(http.StatusCreated, map[string]any{
		"simulated": true,
		"event":     ev,
	})
}

// SimulateRequisition fabricates a requisition status change event.
func (h *Handler) SimulateRequisition(c echo.Context) error {
	body := bindBody(c)
	payload := map[string]any{
		"requisitionId":  str(body, "requisitionId", "req-001-uuid-mock"),
		"previousStatus": str(body, "previousStatus", "DRAFT"),
		"newStatus":      str(body, "newStatus", "SUBMITTED"),
		"facilityId":     str(body, "facilityId", "facility-001"),
		"programId":      str(body, "programId", "prog-essential-meds"),
		"userId":         str(body, "userId", "user-001"),
		"timestamp":      fhir.Timestamp(h.recorder.now()),
	}
	ev := h.recorder.Record("openlmis", "requisition.statusChange", payload)
	return c.JSON(http.StatusCreated, map[string]any{
		"simulated": true,
		"event":     ev,
	})
}

// SimulateStock fabricates a stock update event.
func (h *Handler) SimulateStock(c echo.Context) error {
	body := bindBody(c)
	payload := map[string]any{
		"stockCardId": str(body, "stockCardId", "stock-card-001"),
		"facilityId":  str(body, "facilityId", "facility-001"),
		"orderableId": str(body, "orderableId", "orderable-paracetamol"),
		"quantity":    num(body, "quantity", 100),
		"reason":      str(body, "reason", "RECEIVE"),
		"stockOnHand": num(body, "stockOnHand", 170),
		"timestamp":   fhir.Timestamp(h.recorder.now()),
	}
	ev := h.recorder.Record("openlmis", "stock.updated", payload)
	return c.JSON(http.StatusCreated, map[string]any{
		"simulated": true,
		"event":     ev,
	})
}

// SimulatePatient fabricates an OpenSRP patient event.
func (h *Handler) SimulatePatient(c echo.Context) error {
	body := bindBody(c)
	action := str(body, "action", "created")
	payload := map[string]any{
		"resourceType": "Patient",
		"id":           str(body, "patientId", "patient-new-001"),
		"name": []map[string]any{{
			"family": str(body, "family", "Test"),
			"given":  []string{str(body, "given", "Patient")},
		}},
		"gender":    str(body, "gender", "male"),
		"birthDate": str(body, "birthDate", "1990-01-01"),
		"meta":      map[string]any{"lastUpdated": fhir.Timestamp(h.recorder.now())},
	}
	ev := h.recorder.Record("opensrp", "patient."+action, payload)
	return c.JSON(http.StatusCreated, map[string]any{
		"simulated": true,
		"event":     ev,
	})
}

// SimulateEncounter fabricates an OpenSRP encounter visit event.
func (h *Handler) SimulateEncounter(c echo.Context) error {
	body := bindBody(c)
	now := fhir.Timestamp(h.recorder.now())
	payload := map[string]any{
		"resourceType": "Encounter",
		"id":           str(body, "encounterId", "encounter-"+uuid.NewString()[:8]),
		"status":       "finished",
		"class":        map[string]any{"code": "AMB", "display": "ambulatory"},
		"subject":      map[string]any{"reference": "Patient/" + str(body, "patientId", "patient-001")},
		"period": map[string]any{
			"start": now,
			"end":   now,
		},
		"serviceProvider": map[string]any{"reference": "Organization/" + str(body, "organizationId", "org-001")},
	}
	ev := h.recorder.Record("opensrp", "encounter.created", payload)
	return c.JSON(http.StatusCreated, map[string]any{
		"simulated": true,
		"event":     ev,
	})
}

// bindBody decodes the JSON body, treating absent or malformed bodies as
// empty. Webhook receivers are tolerant: recording happens regardless.
func bindBody(c echo.Context) map[string]any {
	var body map[string]any
	if err := c.Bind(&body); err != nil || body == nil {
		return map[string]any{}
	}
	return body
}

func str(body map[string]any, key, def string) string {
	if v, ok := body[key].(string); ok && v != "" {
		return v
	}
	return def
}

func num(body map[string]any, key string, def float64) float64 {
	if v, ok := body[key].(float64); ok {
		return v
	}
	return def
}
