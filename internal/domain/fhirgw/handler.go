// Package fhirgw serves the FHIR R4 gateway resources: Patient, Location,
// Organization, Practitioner and PractitionerRole, with searchset Bundles
// and OperationOutcome errors.
package fhirgw

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lmis/lmis/internal/platform/fhir"
	"github.com/lmis/lmis/internal/store"
	"github.com/lmis/lmis/pkg/pagination"
)

// resourceDef describes one served resource type: its search parameters and
// which write interactions it accepts.
type resourceDef struct {
	Type        string
	Specs       store.FieldSpecs
	AllowCreate bool
	AllowUpdate bool
}

func resourceDefs() []resourceDef {
	return []resourceDef{
		{
			Type: "Patient",
			Specs: store.FieldSpecs{
				"_id":        {Kind: store.MatchExact, Field: "id"},
				"identifier": {Kind: store.MatchIdentifier, Field: "identifier"},
				"name":       {Kind: store.MatchHumanName, Field: "name"},
				"gender":     {Kind: store.MatchExact, Field: "gender"},
				"birthdate":  {Kind: store.MatchExact, Field: "birthDate"},
			},
			AllowCreate: true,
			AllowUpdate: true,
		},
		{
			Type: "Location",
			Specs: store.FieldSpecs{
				"_id":        {Kind: store.MatchExact, Field: "id"},
				"identifier": {Kind: store.MatchIdentifier, Field: "identifier"},
				"name":       {Kind: store.MatchText, Field: "name"},
				"status":     {Kind: store.MatchExact, Field: "status"},
				"partof":     {Kind: store.MatchReference, Field: "partOf"},
			},
			AllowCreate: true,
		},
		{
			Type: "Organization",
			Specs: store.FieldSpecs{
				"_id":        {Kind: store.MatchExact, Field: "id"},
				"identifier": {Kind: store.MatchIdentifier, Field: "identifier"},
				"name":       {Kind: store.MatchText, Field: "name"},
				"active":     {Kind: store.MatchBool, Field: "active"},
				"partof":     {Kind: store.MatchReference, Field: "partOf"},
			},
		},
		{
			Type: "Practitioner",
			Specs: store.FieldSpecs{
				"_id":        {Kind: store.MatchExact, Field: "id"},
				"identifier": {Kind: store.MatchIdentifier, Field: "identifier"},
				"name":       {Kind: store.MatchHumanName, Field: "name"},
				"active":     {Kind: store.MatchBool, Field: "active"},
			},
		},
		{
			Type: "PractitionerRole",
			Specs: store.FieldSpecs{
				"_id":          {Kind: store.MatchExact, Field: "id"},
				"practitioner": {Kind: store.MatchReference, Field: "practitioner"},
				"organization": {Kind: store.MatchReference, Field: "organization"},
				"location":     {Kind: store.MatchReference, Field: "location"},
				"active":       {Kind: store.MatchBool, Field: "active"},
			},
		},
	}
}

// EventPublisher receives resource change events for the webhook event feed.
type EventPublisher interface {
	Publish(source, eventType string, payload any)
}

// Handler serves the gateway resources out of the shared entity store.
type Handler struct {
	store  *store.Store
	events EventPublisher
	now    func() time.Time
}

func NewHandler(st *store.Store, events EventPublisher) *Handler {
	return &Handler{store: st, events: events, now: time.Now}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/metadata", h.Metadata)
	for _, def := range resourceDefs() {
		def := def
		g.GET("/"+def.Type, h.search(def))
		g.GET("/"+def.Type+"/:id", h.read(def))
		if def.AllowCreate {
			g.POST("/"+def.Type, h.create(def))
		}
		if def.AllowUpdate {
			g.PUT("/"+def.Type+"/:id", h.update(def))
		}
	}
}

// Metadata implements GET /fhir/metadata.
func (h *Handler) Metadata(c echo.Context) error {
	b := fhir.NewCapabilityBuilder("OpenSRP FHIR Gateway Mock", "1.0.0")
	for _, def := range resourceDefs() {
		interactions := []string{"read", "search-type"}
		if def.AllowCreate {
			interactions = append(interactions, "create")
		}
		if def.AllowUpdate {
			interactions = append(interactions, "update")
		}
		b.AddResource(def.Type, interactions...)
	}
	return c.JSON(http.StatusOK, b.Build(h.now().UTC().Format("2006-01-02")))
}

func (h *Handler) search(def resourceDef) echo.HandlerFunc {
	return func(c echo.Context) error {
		matched := h.store.Search(def.Type, c.QueryParams(), def.Specs)

		pg := pagination.FromContext(c)
		window := store.Slice(matched, pg.Count, pg.Offset)
		resources := make([]map[string]any, len(window))
		for i, rec := range window {
			resources[i] = rec
		}
		return c.JSON(http.StatusOK, fhir.NewSearchBundle(resources))
	}
}

func (h *Handler) read(def resourceDef) echo.HandlerFunc {
	return func(c echo.Context) error {
		rec, err := h.store.Get(def.Type, c.Param("id"))
		if err != nil {
			var nf *store.NotFoundError
			if errors.As(err, &nf) {
				return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome(def.Type, c.Param("id")))
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, rec)
	}
}

func (h *Handler) create(def resourceDef) echo.HandlerFunc {
	return func(c echo.Context) error {
		rec, ok := h.bindResource(c, def.Type)
		if !ok {
			return nil
		}
		if _, hasID := rec["id"]; !hasID {
			rec["id"] = newResourceID(def.Type)
		}
		rec["meta"] = map[string]any{
			"versionId":   "1",
			"lastUpdated": fhir.Timestamp(h.now()),
		}

		stored, err := h.store.Insert(def.Type, rec)
		if err != nil {
			var conflict *store.ConflictError
			if errors.As(err, &conflict) {
				return c.JSON(http.StatusConflict, fhir.ConflictOutcome(err.Error()))
			}
			return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome(err.Error()))
		}

		h.publish(def.Type, "created", stored)
		c.Response().Header().Set("Location", fmt.Sprintf("/fhir/%s/%s", def.Type, stored.ID()))
		return c.JSON(http.StatusCreated, stored)
	}
}

// update implements FHIR update-as-upsert: known ids get their versionId
// bumped, unknown ids are created at version 1.
func (h *Handler) update(def resourceDef) echo.HandlerFunc {
	return func(c echo.Context) error {
		rec, ok := h.bindResource(c, def.Type)
		if !ok {
			return nil
		}
		id := c.Param("id")
		rec["id"] = id
		stored, _ := h.store.UpsertWith(def.Type, id, func(existing store.Record) store.Record {
			rec["meta"] = map[string]any{
				"versionId":   nextVersion(existing),
				"lastUpdated": fhir.Timestamp(h.now()),
			}
			return rec
		})
		h.publish(def.Type, "updated", stored)
		return c.JSON(http.StatusOK, stored)
	}
}

// bindResource decodes the body and checks its resourceType. On failure the
// OperationOutcome response has already been written.
func (h *Handler) bindResource(c echo.Context, typ string) (store.Record, bool) {
	var rec store.Record
	if err := c.Bind(&rec); err != nil || rec == nil {
		c.JSON(http.StatusBadRequest, fhir.InvalidOutcome(fmt.Sprintf("Invalid %s resource", typ)))
		return nil, false
	}
	if rt, _ := rec["resourceType"].(string); rt != typ {
		c.JSON(http.StatusBadRequest, fhir.InvalidOutcome(fmt.Sprintf("Invalid %s resource", typ)))
		return nil, false
	}
	return rec, true
}

func (h *Handler) publish(typ, action string, rec store.Record) {
	if h.events == nil {
		return
	}
	h.events.Publish("opensrp", fmt.Sprintf("%s.%s", typ, action), map[string]any{
		"resourceType": typ,
		"id":           rec.ID(),
	})
}

func nextVersion(existing store.Record) string {
	if existing == nil {
		return "1"
	}
	version := 0
	if meta, ok := existing["meta"].(map[string]any); ok {
		if v, ok := meta["versionId"].(string); ok {
			fmt.Sscanf(v, "%d", &version)
		}
	}
	return fmt.Sprintf("%d", version+1)
}

func newResourceID(typ string) string {
	prefix := map[string]string{
		"Patient":          "patient",
		"Location":         "location",
		"Organization":     "organization",
		"Practitioner":     "practitioner",
		"PractitionerRole": "practitioner-role",
	}[typ]
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
}
