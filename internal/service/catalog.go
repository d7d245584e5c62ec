package service

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/ticket-sales/internal/database"
	"github.com/iliyamo/ticket-sales/internal/model"
	"github.com/iliyamo/ticket-sales/internal/repository"
)

// TicketTypeInput describes one ticket tier of a new event.
type TicketTypeInput struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// EventInput is an organizer's event form.
type EventInput struct {
	Title       string
	Description string
	Location    string
	StartDate   time.Time
	EndDate     time.Time
	TicketTypes []TicketTypeInput
}

// EventPatch carries the fields an owner may change. Nil fields keep
// their current value.
type EventPatch struct {
	Title       *string
	Description *string
	Location    *string
	StartDate   *time.Time
	EndDate     *time.Time
}

// EventCustomization is the owner's branding of an event page. An
// empty ThemeColor keeps the current colour; the texts are replaced
// as given, so empty clears them.
type EventCustomization struct {
	ThemeColor   string
	BannerText   string
	PromoMessage string
}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}){1,2}$`)

const maxBannerText = 100

// Catalog manages events and their ticket types.
type Catalog struct {
	db      *database.DB
	events  *repository.EventRepo
	tickets *repository.TicketTypeRepo
}

// NewCatalog returns a catalog over the event and ticket type repositories.
func NewCatalog(db *database.DB, events *repository.EventRepo, tickets *repository.TicketTypeRepo) *Catalog {
	return &Catalog{db: db, events: events, tickets: tickets}
}

func validateEvent(title string, start, end time.Time) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", repository.ErrInvalidEvent)
	}
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start_date and end_date are required", repository.ErrInvalidEvent)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end_date is before start_date", repository.ErrInvalidEvent)
	}
	return nil
}

// CreateEvent stores an event and its ticket types in one transaction.
func (c *Catalog) CreateEvent(ctx context.Context, who model.Identity, in EventInput) (model.Event, error) {
	if !who.IsOrganizer() {
		return model.Event{}, repository.ErrForbidden
	}
	if err := validateEvent(in.Title, in.StartDate, in.EndDate); err != nil {
		return model.Event{}, err
	}
	for i, t := range in.TicketTypes {
		switch {
		case strings.TrimSpace(t.Name) == "":
			return model.Event{}, fmt.Errorf("%w: ticket type %d has no name", repository.ErrInvalidEvent, i)
		case t.Price.IsNegative():
			return model.Event{}, fmt.Errorf("%w: ticket type %d has a negative price", repository.ErrInvalidEvent, i)
		case t.Quantity <= 0:
			return model.Event{}, fmt.Errorf("%w: ticket type %d needs a positive quantity", repository.ErrInvalidEvent, i)
		}
	}

	e := model.Event{
		OrganizerID: who.UserID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Location:    strings.TrimSpace(in.Location),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
	}
	err := c.db.WithTx(ctx, func(tx *sql.Tx) error {
		e.TicketTypes = nil
		if err := c.events.CreateTx(ctx, tx, &e); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		for _, ti := range in.TicketTypes {
			t := model.TicketType{
				EventID:       e.ID,
				Name:          strings.TrimSpace(ti.Name),
				Price:         ti.Price.Round(2),
				TotalQuantity: ti.Quantity,
			}
			if err := c.tickets.CreateTx(ctx, tx, &t); err != nil {
				return fmt.Errorf("insert ticket type: %w", err)
			}
			e.TicketTypes = append(e.TicketTypes, t)
		}
		return nil
	})
	if err != nil {
		return model.Event{}, err
	}
	return e, nil
}

// UpdateEvent applies patch to an event owned by the caller.
func (c *Catalog) UpdateEvent(ctx context.Context, who model.Identity, id uint64, patch EventPatch) (model.Event, error) {
	if !who.IsOrganizer() {
		return model.Event{}, repository.ErrForbidden
	}
	var e model.Event
	err := c.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		e, err = c.events.GetForOwnerTx(ctx, tx, id, who.UserID)
		if err != nil {
			return err
		}
		if patch.Title != nil {
			e.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			e.Description = *patch.Description
		}
		if patch.Location != nil {
			e.Location = strings.TrimSpace(*patch.Location)
		}
		if patch.StartDate != nil {
			e.StartDate = *patch.StartDate
		}
		if patch.EndDate != nil {
			e.EndDate = *patch.EndDate
		}
		if err := validateEvent(e.Title, e.StartDate, e.EndDate); err != nil {
			return err
		}
		return c.events.UpdateTx(ctx, tx, &e)
	})
	if err != nil {
		return model.Event{}, err
	}
	return c.withTicketTypes(ctx, e)
}

// CustomizeEvent stores the branding of an event owned by the caller.
func (c *Catalog) CustomizeEvent(ctx context.Context, who model.Identity, id uint64, in EventCustomization) (model.Event, error) {
	if !who.IsOrganizer() {
		return model.Event{}, repository.ErrForbidden
	}
	color := strings.TrimSpace(in.ThemeColor)
	if color != "" && !hexColor.MatchString(color) {
		return model.Event{}, fmt.Errorf("%w: theme_color must be a hex colour such as #4f46e5", repository.ErrInvalidEvent)
	}
	banner := strings.TrimSpace(in.BannerText)
	if utf8.RuneCountInString(banner) > maxBannerText {
		return model.Event{}, fmt.Errorf("%w: banner_text is longer than %d characters", repository.ErrInvalidEvent, maxBannerText)
	}

	var e model.Event
	err := c.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		e, err = c.events.GetForOwnerTx(ctx, tx, id, who.UserID)
		if err != nil {
			return err
		}
		if color != "" {
			e.ThemeColor = color
		}
		e.BannerText = banner
		e.PromoMessage = in.PromoMessage
		return c.events.UpdateTx(ctx, tx, &e)
	})
	if err != nil {
		return model.Event{}, err
	}
	return c.withTicketTypes(ctx, e)
}

// GetEvent returns an event with its ticket types, cheapest first.
func (c *Catalog) GetEvent(ctx context.Context, id uint64) (model.Event, error) {
	e, err := c.events.GetByID(ctx, id)
	if err != nil {
		return model.Event{}, err
	}
	return c.withTicketTypes(ctx, e)
}

// ListEvents returns events matching f, each with its ticket types.
func (c *Catalog) ListEvents(ctx context.Context, f repository.EventFilter) ([]model.Event, error) {
	events, err := c.events.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return c.fill(ctx, events)
}

// ListByOrganizer returns the caller's own events.
func (c *Catalog) ListByOrganizer(ctx context.Context, who model.Identity) ([]model.Event, error) {
	if !who.IsOrganizer() {
		return nil, repository.ErrForbidden
	}
	events, err := c.events.ListByOrganizer(ctx, who.UserID)
	if err != nil {
		return nil, err
	}
	return c.fill(ctx, events)
}

func (c *Catalog) fill(ctx context.Context, events []model.Event) ([]model.Event, error) {
	for i := range events {
		e, err := c.withTicketTypes(ctx, events[i])
		if err != nil {
			return nil, err
		}
		events[i] = e
	}
	return events, nil
}

func (c *Catalog) withTicketTypes(ctx context.Context, e model.Event) (model.Event, error) {
	types, err := c.tickets.ListByEvent(ctx, e.ID)
	if err != nil {
		return model.Event{}, err
	}
	e.TicketTypes = types
	return e, nil
}
