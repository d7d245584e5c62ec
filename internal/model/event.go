package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is something an organizer sells tickets for.  This struct
// corresponds to a row in the `events` table.
//
// Fields:
//  ID           – primary key identifier.
//  OrganizerID  – user ID of the organizer that owns the event.
//  Title        – display title.
//  Description  – free text description.
//  Location     – venue or address.
//  StartDate    – when the event begins.
//  EndDate      – when the event ends (never before StartDate).
//  ThemeColor   – hex colour of the event page, e.g. #4f46e5.
//  BannerText   – short line shown on the event banner.
//  PromoMessage – promotional text for the event page.
//  TicketTypes  – ticket tiers, populated only by detail queries.
type Event struct {
	ID           uint64       `json:"id"`
	OrganizerID  uint64       `json:"organizer_id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Location     string       `json:"location"`
	StartDate    time.Time    `json:"start_date"`
	EndDate      time.Time    `json:"end_date"`
	ThemeColor   string       `json:"theme_color"`
	BannerText   string       `json:"banner_text"`
	PromoMessage string       `json:"promo_message"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	TicketTypes  []TicketType `json:"ticket_types,omitempty"`
}

// DefaultThemeColor is the theme of events that were never customized.
const DefaultThemeColor = "#4f46e5"

// IsActive reports whether now falls within the event's time window.
func (e Event) IsActive(now time.Time) bool {
	return !now.Before(e.StartDate) && !now.After(e.EndDate)
}

// IsPast reports whether the event has already ended.
func (e Event) IsPast(now time.Time) bool {
	return e.EndDate.Before(now)
}

// AvailableTickets sums the available stock of the loaded ticket types.
func (e Event) AvailableTickets() int {
	n := 0
	for _, t := range e.TicketTypes {
		n += t.AvailableQuantity
	}
	return n
}

// TicketType is a priced tier of an event with its own stock.  Stock
// changes only through the inventory ledger.
type TicketType struct {
	ID                uint64          `json:"id"`
	EventID           uint64          `json:"event_id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	TotalQuantity     int             `json:"total_quantity"`
	AvailableQuantity int             `json:"available_quantity"`
}
