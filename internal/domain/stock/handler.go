package stock

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lmis/lmis/internal/platform/auth"
	"github.com/lmis/lmis/internal/store"
	"github.com/lmis/lmis/pkg/pagination"
)

// EventPublisher receives stock change events for the webhook event feed.
type EventPublisher interface {
	Publish(source, eventType string, payload any)
}

// Handler exposes the stock ledger over the OpenLMIS-style routes.
type Handler struct {
	ledger *Ledger
	events EventPublisher
}

func NewHandler(ledger *Ledger, events EventPublisher) *Handler {
	return &Handler{ledger: ledger, events: events}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/stockCards", h.ListCards)
	api.GET("/stockCards/:id", h.GetCard)
	api.GET("/stockCardSummaries", h.Summaries)
	api.POST("/stockEvents", h.CreateEvent)
	api.GET("/validSources", h.ValidSources)
	api.GET("/validDestinations", h.ValidDestinations)
	api.GET("/stockCardLineItemReasons", h.Reasons)
}

// ListCards implements GET /api/stockCards with facilityId, programId and
// orderableId filters.
func (h *Handler) ListCards(c echo.Context) error {
	cards := h.ledger.Cards(Filters{
		FacilityID:  c.QueryParam("facilityId"),
		ProgramID:   c.QueryParam("programId"),
		OrderableID: c.QueryParam("orderableId"),
	})

	pg := pagination.FromContext(c)
	window := sliceCards(cards, pg)
	return c.JSON(http.StatusOK, pagination.NewPage(window, len(window), len(cards)))
}

// GetCard implements GET /api/stockCards/:id.
func (h *Handler) GetCard(c echo.Context) error {
	card, err := h.ledger.CardByID(c.Param("id"))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, card)
}

// Summaries implements GET /api/stockCardSummaries.
func (h *Handler) Summaries(c echo.Context) error {
	summaries := h.ledger.Summarize(Filters{
		FacilityID: c.QueryParam("facilityId"),
		ProgramID:  c.QueryParam("programId"),
	})
	return c.JSON(http.StatusOK, pagination.NewPage(summaries, len(summaries), len(summaries)))
}

type eventLine struct {
	OrderableID   string `json:"orderableId"`
	Quantity      int    `json:"quantity"`
	ReasonID      string `json:"reasonId"`
	SourceID      string `json:"sourceId"`
	DestinationID string `json:"destinationId"`
	OccurredDate  string `json:"occurredDate"`
}

type eventRequest struct {
	FacilityID string      `json:"facilityId"`
	ProgramID  string      `json:"programId"`
	LineItems  []eventLine `json:"lineItems"`
}

// CreateEvent implements POST /api/stockEvents. All line items are validated
// before any is applied.
func (h *Handler) CreateEvent(c echo.Context) error {
	var body eventRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errBody(err.Error()))
	}

	recordedBy := auth.CallerUsername(c)
	evs := make([]Event, 0, len(body.LineItems))
	for _, line := range body.LineItems {
		evs = append(evs, Event{
			FacilityID:    body.FacilityID,
			ProgramID:     body.ProgramID,
			OrderableID:   line.OrderableID,
			Quantity:      line.Quantity,
			ReasonID:      line.ReasonID,
			SourceID:      line.SourceID,
			DestinationID: line.DestinationID,
			OccurredDate:  line.OccurredDate,
			RecordedBy:    recordedBy,
		})
	}

	eventID, err := h.ledger.RecordEvents(evs)
	if err != nil {
		return h.mapError(c, err)
	}

	if h.events != nil {
		h.events.Publish("openlmis", "stockCard.update", map[string]any{
			"stockEventId": eventID,
			"facilityId":   body.FacilityID,
			"programId":    body.ProgramID,
			"lineItems":    len(body.LineItems),
		})
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"id":        eventID,
		"status":    "PROCESSED",
		"lineItems": len(body.LineItems),
	})
}

// ValidSources implements GET /api/validSources.
func (h *Handler) ValidSources(c echo.Context) error {
	nodes := h.ledger.ValidSources()
	return c.JSON(http.StatusOK, pagination.NewPage(nodes, len(nodes), len(nodes)))
}

// ValidDestinations implements GET /api/validDestinations.
func (h *Handler) ValidDestinations(c echo.Context) error {
	nodes := h.ledger.ValidDestinations()
	return c.JSON(http.StatusOK, pagination.NewPage(nodes, len(nodes), len(nodes)))
}

// Reasons implements GET /api/stockCardLineItemReasons.
func (h *Handler) Reasons(c echo.Context) error {
	reasons := Reasons()
	return c.JSON(http.StatusOK, pagination.NewPage(reasons, len(reasons), len(reasons)))
}

func (h *Handler) mapError(c echo.Context, err error) error {
	var (
		notFound   *store.NotFoundError
		conflict   *store.ConflictError
		validation *store.ValidationError
	)
	switch {
	case errors.As(err, &notFound):
		return c.JSON(http.StatusNotFound, errBody("Stock card not found"))
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, errBody(err.Error()))
	case errors.As(err, &validation):
		return c.JSON(http.StatusBadRequest, errBody(err.Error()))
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func errBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func sliceCards(cards []*Card, pg pagination.Params) []*Card {
	if pg.Offset >= len(cards) {
		return []*Card{}
	}
	cards = cards[pg.Offset:]
	if pg.Count > 0 && pg.Count < len(cards) {
		cards = cards[:pg.Count]
	}
	return cards
}
