package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/ticket-sales/internal/model"
	"github.com/iliyamo/ticket-sales/internal/repository"
	"github.com/iliyamo/ticket-sales/internal/service"
)

// CatalogHandler serves event browsing for everyone and event
// management for organizers.
type CatalogHandler struct {
	Catalog  *service.Catalog
	Bookings *service.ReservationManager
}

// NewCatalogHandler panics if a dependency is nil.
func NewCatalogHandler(catalog *service.Catalog, bookings *service.ReservationManager) *CatalogHandler {
	if catalog == nil || bookings == nil {
		panic("nil service passed to NewCatalogHandler")
	}
	return &CatalogHandler{Catalog: catalog, Bookings: bookings}
}

// eventView adds the derived fields clients display.
type eventView struct {
	model.Event
	IsActive         bool `json:"is_active"`
	IsPast           bool `json:"is_past"`
	AvailableTickets int  `json:"available_tickets"`
}

func viewEvent(e model.Event, now time.Time) eventView {
	if e.TicketTypes == nil {
		e.TicketTypes = []model.TicketType{}
	}
	return eventView{Event: e, IsActive: e.IsActive(now), IsPast: e.IsPast(now), AvailableTickets: e.AvailableTickets()}
}

func viewEvents(events []model.Event) []eventView {
	now := time.Now().UTC()
	out := make([]eventView, 0, len(events))
	for _, e := range events {
		out = append(out, viewEvent(e, now))
	}
	return out
}

// ListEvents handles GET /v1/events. Optional ?q= matches title or
// location, ?date=YYYY-MM-DD keeps events starting that day.
func (h *CatalogHandler) ListEvents(c echo.Context) error {
	f := repository.EventFilter{Query: strings.TrimSpace(c.QueryParam("q"))}
	if raw := c.QueryParam("date"); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, expected YYYY-MM-DD"})
		}
		f.Day = &day
	}
	events, err := h.Catalog.ListEvents(c.Request().Context(), f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, viewEvents(events))
}

// GetEvent handles GET /v1/events/:id.
func (h *CatalogHandler) GetEvent(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	e, err := h.Catalog.GetEvent(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, viewEvent(e, time.Now().UTC()))
}

type ticketTypeRequest struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

type createEventRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Location    string              `json:"location"`
	StartDate   time.Time           `json:"start_date"`
	EndDate     time.Time           `json:"end_date"`
	TicketTypes []ticketTypeRequest `json:"ticket_types"`
}

// CreateEvent handles POST /v1/events for organizers. The event and
// its ticket types are created together.
func (h *CatalogHandler) CreateEvent(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return err
	}
	var body createEventRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	in := service.EventInput{
		Title:       body.Title,
		Description: body.Description,
		Location:    body.Location,
		StartDate:   body.StartDate,
		EndDate:     body.EndDate,
	}
	for _, t := range body.TicketTypes {
		in.TicketTypes = append(in.TicketTypes, service.TicketTypeInput{Name: t.Name, Price: t.Price, Quantity: t.Quantity})
	}
	e, err := h.Catalog.CreateEvent(c.Request().Context(), who, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, viewEvent(e, time.Now().UTC()))
}

type updateEventRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

// UpdateEvent handles PUT/PATCH /v1/events/:id. Only the owner may edit;
// omitted fields are left unchanged.
func (h *CatalogHandler) UpdateEvent(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return err
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var body updateEventRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	e, err := h.Catalog.UpdateEvent(c.Request().Context(), who, id, service.EventPatch{
		Title:       body.Title,
		Description: body.Description,
		Location:    body.Location,
		StartDate:   body.StartDate,
		EndDate:     body.EndDate,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, viewEvent(e, time.Now().UTC()))
}

type customizeEventRequest struct {
	ThemeColor   string `json:"theme_color"`
	BannerText   string `json:"banner_text"`
	PromoMessage string `json:"promo_message"`
}

// CustomizeEvent handles PUT /v1/events/:id/customization, the owner's
// branding of the event page.
func (h *CatalogHandler) CustomizeEvent(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return err
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var body customizeEventRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	e, err := h.Catalog.CustomizeEvent(c.Request().Context(), who, id, service.EventCustomization{
		ThemeColor:   body.ThemeColor,
		BannerText:   body.BannerText,
		PromoMessage: body.PromoMessage,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, viewEvent(e, time.Now().UTC()))
}

// MyEvents handles GET /v1/my-events.
func (h *CatalogHandler) MyEvents(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return err
	}
	events, err := h.Catalog.ListByOrganizer(c.Request().Context(), who)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, viewEvents(events))
}

// EventReservations handles GET /v1/events/:id/reservations, the
// organizer's ticket management view.
func (h *CatalogHandler) EventReservations(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return err
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	list, err := h.Bookings.ListByEvent(c.Request().Context(), who, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}
