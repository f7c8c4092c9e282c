package requisition

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lmis/lmis/internal/platform/auth"
	"github.com/lmis/lmis/internal/store"
	"github.com/lmis/lmis/pkg/pagination"
)

// EventPublisher receives requisition change events for the webhook event
// feed. A nil publisher disables publishing.
type EventPublisher interface {
	Publish(source, eventType string, payload any)
}

// Handler exposes the requisition workflow over the OpenLMIS-style routes.
type Handler struct {
	engine *Engine
	events EventPublisher
}

func NewHandler(engine *Engine, events EventPublisher) *Handler {
	return &Handler{engine: engine, events: events}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/requisitions", h.List)
	api.POST("/requisitions", h.Create)
	api.GET("/requisitions/:id", h.Get)
	api.PUT("/requisitions/:id/save", h.Save)
	api.PUT("/requisitions/:id/submit", h.transition(OpSubmit))
	api.PUT("/requisitions/:id/authorize", h.transition(OpAuthorize))
	api.PUT("/requisitions/:id/approve", h.transition(OpApprove))
	api.PUT("/requisitions/:id/reject", h.transition(OpReject))
	api.GET("/requisitions-for-approval", h.ForApproval)
	api.GET("/requisitions-for-convert-to-order", h.ForConvert)
}

// List implements GET /api/requisitions with the standard filters.
func (h *Handler) List(c echo.Context) error {
	q := c.QueryParams()
	matched := h.engine.Find(Filters{
		FacilityID:         q["facilityId"],
		ProgramID:          q["programId"],
		ProcessingPeriodID: q["processingPeriodId"],
		Status:             q["status"],
	})

	pg := pagination.FromContext(c)
	window := sliceReqs(matched, pg)
	return c.JSON(http.StatusOK, pagination.NewPage(window, len(window), len(matched)))
}

// Create implements POST /api/requisitions. New requisitions start in DRAFT.
func (h *Handler) Create(c echo.Context) error {
	var req Requisition
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody(err.Error()))
	}

	created, err := h.engine.Create(&req)
	if err != nil {
		return h.mapError(c, err)
	}
	h.publish("requisition.created", created)
	return c.JSON(http.StatusCreated, created)
}

// Get implements GET /api/requisitions/:id.
func (h *Handler) Get(c echo.Context) error {
	req, err := h.engine.Get(c.Param("id"))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, req)
}

// Save implements PUT /api/requisitions/:id/save, replacing line items on a
// draft.
func (h *Handler) Save(c echo.Context) error {
	var body struct {
		LineItems []LineItem `json:"requisitionLineItems"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errBody(err.Error()))
	}

	req, err := h.engine.SaveLineItems(c.Param("id"), body.LineItems)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, req)
}

// transition builds the handler for one workflow operation endpoint.
func (h *Handler) transition(op Operation) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := h.engine.Transition(c.Param("id"), op, auth.CallerRole(c))
		if err != nil {
			return h.mapError(c, err)
		}
		h.publish("requisition.statusChange", req)
		return c.JSON(http.StatusOK, req)
	}
}

// ForApproval implements GET /api/requisitions-for-approval.
func (h *Handler) ForApproval(c echo.Context) error {
	matched := h.engine.Find(Filters{
		Status: []string{string(StatusSubmitted), string(StatusAuthorized)},
	})
	return c.JSON(http.StatusOK, pagination.NewPage(matched, len(matched), len(matched)))
}

// ForConvert implements GET /api/requisitions-for-convert-to-order.
func (h *Handler) ForConvert(c echo.Context) error {
	matched := h.engine.Find(Filters{Status: []string{string(StatusApproved)}})
	return c.JSON(http.StatusOK, pagination.NewPage(matched, len(matched), len(matched)))
}

func (h *Handler) publish(eventType string, req *Requisition) {
	if h.events == nil {
		return
	}
	h.events.Publish("openlmis", eventType, map[string]any{
		"requisitionId": req.ID,
		"facilityId":    req.FacilityID,
		"programId":     req.ProgramID,
		"status":        req.Status,
	})
}

func (h *Handler) mapError(c echo.Context, err error) error {
	var (
		notFound   *store.NotFoundError
		conflict   *store.ConflictError
		validation *store.ValidationError
		illegal    *InvalidTransitionError
		forbidden  *ForbiddenError
	)
	switch {
	case errors.As(err, &notFound):
		return c.JSON(http.StatusNotFound, errBody("Requisition not found"))
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, errBody(err.Error()))
	case errors.As(err, &validation):
		return c.JSON(http.StatusBadRequest, errBody(err.Error()))
	case errors.As(err, &illegal):
		return c.JSON(http.StatusBadRequest, errBody(err.Error()))
	case errors.As(err, &forbidden):
		return c.JSON(http.StatusForbidden, errBody(err.Error()))
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func errBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func sliceReqs(reqs []*Requisition, pg pagination.Params) []*Requisition {
	if pg.Offset >= len(reqs) {
		return []*Requisition{}
	}
	reqs = reqs[pg.Offset:]
	if pg.Count > 0 && pg.Count < len(reqs) {
		reqs = reqs[:pg.Count]
	}
	return reqs
}
