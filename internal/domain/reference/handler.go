// Package reference serves the OpenLMIS reference data collections:
// facilities, programs, orderables and processing periods, plus the
// geographic zone and facility type views derived from the facilities.
package reference

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lmis/lmis/internal/store"
	"github.com/lmis/lmis/pkg/pagination"
)

// Collection names inside the entity store.
const (
	CollFacilities = "facilities"
	CollPrograms   = "programs"
	CollOrderables = "orderables"
	CollPeriods    = "processingPeriods"
)

func facilitySpecs() store.FieldSpecs {
	return store.FieldSpecs{
		"id":     {Kind: store.MatchExact, Field: "id"},
		"code":   {Kind: store.MatchExact, Field: "code"},
		"name":   {Kind: store.MatchText, Field: "name"},
		"active": {Kind: store.MatchBool, Field: "active"},
		"zoneId": {Kind: store.MatchNestedID, Field: "geographicZone"},
	}
}

func programSpecs() store.FieldSpecs {
	return store.FieldSpecs{
		"id":     {Kind: store.MatchExact, Field: "id"},
		"code":   {Kind: store.MatchExact, Field: "code"},
		"name":   {Kind: store.MatchText, Field: "name"},
		"active": {Kind: store.MatchBool, Field: "active"},
	}
}

func orderableSpecs() store.FieldSpecs {
	return store.FieldSpecs{
		"id":   {Kind: store.MatchExact, Field: "id"},
		"code": {Kind: store.MatchText, Field: "productCode"},
		"name": {Kind: store.MatchText, Field: "fullProductName"},
	}
}

func periodSpecs() store.FieldSpecs {
	return store.FieldSpecs{
		"id":                   {Kind: store.MatchExact, Field: "id"},
		"processingScheduleId": {Kind: store.MatchNestedID, Field: "processingSchedule"},
	}
}

// Handler serves reference data reads out of the shared entity store.
type Handler struct {
	store *store.Store
}

func NewHandler(st *store.Store) *Handler {
	return &Handler{store: st}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/facilities", h.list(CollFacilities, facilitySpecs()))
	api.GET("/facilities/:id", h.get(CollFacilities, "Facility not found"))
	api.GET("/programs", h.list(CollPrograms, programSpecs()))
	api.GET("/programs/:id", h.get(CollPrograms, "Program not found"))
	api.GET("/orderables", h.list(CollOrderables, orderableSpecs()))
	api.GET("/orderables/:id", h.get(CollOrderables, "Orderable not found"))
	api.GET("/processingPeriods", h.list(CollPeriods, periodSpecs()))
	api.GET("/processingPeriods/:id", h.get(CollPeriods, "Processing period not found"))
	api.GET("/geographicZones", h.derived("geographicZone"))
	api.GET("/facilityTypes", h.derived("type"))
}

// list builds the paged listing handler for one collection.
func (h *Handler) list(coll string, specs store.FieldSpecs) echo.HandlerFunc {
	return func(c echo.Context) error {
		matched := h.store.Search(coll, c.QueryParams(), specs)

		pg := pagination.FromContext(c)
		window := store.Slice(matched, pg.Count, pg.Offset)
		return c.JSON(http.StatusOK, pagination.NewPage(window, len(window), len(matched)))
	}
}

// get builds the by-id handler for one collection.
func (h *Handler) get(coll, notFoundMsg string) echo.HandlerFunc {
	return func(c echo.Context) error {
		rec, err := h.store.Get(coll, c.Param("id"))
		if err != nil {
			var nf *store.NotFoundError
			if errors.As(err, &nf) {
				return c.JSON(http.StatusNotFound, map[string]string{"error": notFoundMsg})
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, rec)
	}
}

// derived lists the distinct embedded objects at one facility field, in
// first-seen order. Serves geographicZones and facilityTypes.
func (h *Handler) derived(field string) echo.HandlerFunc {
	return func(c echo.Context) error {
		seen := map[string]bool{}
		out := []map[string]any{}
		for _, facility := range h.store.List(CollFacilities) {
			obj, ok := facility[field].(map[string]any)
			if !ok {
				continue
			}
			id, ok := obj["id"].(string)
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, obj)
		}
		return c.JSON(http.StatusOK, pagination.NewPage(out, len(out), len(out)))
	}
}
