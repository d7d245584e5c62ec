package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/ticket-sales/internal/database"
	"github.com/iliyamo/ticket-sales/internal/model"
)

// EventRepo provides CRUD operations for events. Ticket types are
// handled by TicketTypeRepo; the detail query stitches both together.
// All timestamps are stored in UTC with second precision.
type EventRepo struct {
	db *database.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *database.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying handle so services can open transactions.
func (r *EventRepo) DB() *database.DB { return r.db }

// EventFilter narrows List. Query matches title or location
// case-insensitively; Day keeps events starting on that UTC date.
type EventFilter struct {
	Query string
	Day   *time.Time
}

const eventColumns = `id, organizer_id, title, description, location, start_date, end_date,
	theme_color, banner_text, promo_message, created_at, updated_at`

func scanEvent(sc interface{ Scan(...any) error }) (model.Event, error) {
	var e model.Event
	err := sc.Scan(&e.ID, &e.OrganizerID, &e.Title, &e.Description, &e.Location,
		&e.StartDate, &e.EndDate, &e.ThemeColor, &e.BannerText, &e.PromoMessage, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// CreateTx inserts an event within the caller's transaction and fills
// in its ID and timestamps.
func (r *EventRepo) CreateTx(ctx context.Context, tx *sql.Tx, e *model.Event) error {
	now := utcNow()
	e.StartDate = e.StartDate.UTC().Truncate(time.Second)
	e.EndDate = e.EndDate.UTC().Truncate(time.Second)
	if e.ThemeColor == "" {
		e.ThemeColor = model.DefaultThemeColor
	}
	id, err := r.db.Dialect.InsertTx(ctx, tx,
		`INSERT INTO events (organizer_id, title, description, location, start_date, end_date,
		 theme_color, banner_text, promo_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.OrganizerID, e.Title, e.Description, e.Location, e.StartDate, e.EndDate,
		e.ThemeColor, e.BannerText, e.PromoMessage, now, now)
	if err != nil {
		return err
	}
	e.ID, e.CreatedAt, e.UpdatedAt = id, now, now
	return nil
}

// GetForOwnerTx locks an event row and verifies that organizerID owns
// it. It returns ErrNotFound or ErrForbidden accordingly.
func (r *EventRepo) GetForOwnerTx(ctx context.Context, tx *sql.Tx, id, organizerID uint64) (model.Event, error) {
	q := r.db.Dialect.Rebind(`SELECT `+eventColumns+` FROM events WHERE id = ?`) + r.db.Dialect.ForUpdate()
	e, err := scanEvent(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Event{}, ErrNotFound
		}
		return model.Event{}, err
	}
	if e.OrganizerID != organizerID {
		return model.Event{}, ErrForbidden
	}
	return e, nil
}

// UpdateTx writes the mutable columns of an event.
func (r *EventRepo) UpdateTx(ctx context.Context, tx *sql.Tx, e *model.Event) error {
	e.UpdatedAt = utcNow()
	e.StartDate = e.StartDate.UTC().Truncate(time.Second)
	e.EndDate = e.EndDate.UTC().Truncate(time.Second)
	_, err := tx.ExecContext(ctx, r.db.Dialect.Rebind(
		`UPDATE events SET title = ?, description = ?, location = ?, start_date = ?, end_date = ?,
		 theme_color = ?, banner_text = ?, promo_message = ?, updated_at = ?
		 WHERE id = ?`),
		e.Title, e.Description, e.Location, e.StartDate, e.EndDate,
		e.ThemeColor, e.BannerText, e.PromoMessage, e.UpdatedAt, e.ID)
	return err
}

// GetByID loads a single event without its ticket types.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx,
		r.db.Dialect.Rebind(`SELECT `+eventColumns+` FROM events WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrNotFound
	}
	return e, err
}

// likeEscaper makes user text match literally inside a LIKE pattern.
// '!' is the escape character because a backslash means different
// things in MySQL and Postgres string literals.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// List returns events ordered by start date, optionally filtered.
func (r *EventRepo) List(ctx context.Context, f EventFilter) ([]model.Event, error) {
	var (
		where []string
		args  []any
	)
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(q)) + "%"
		where = append(where, "(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(location) LIKE ? ESCAPE '!')")
		args = append(args, like, like)
	}
	if f.Day != nil {
		day := time.Date(f.Day.Year(), f.Day.Month(), f.Day.Day(), 0, 0, 0, 0, time.UTC)
		where = append(where, "start_date >= ? AND start_date < ?")
		args = append(args, day, day.AddDate(0, 0, 1))
	}
	q := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY start_date, id"
	return r.query(ctx, q, args...)
}

// ListByOrganizer returns the events owned by one organizer.
func (r *EventRepo) ListByOrganizer(ctx context.Context, organizerID uint64) ([]model.Event, error) {
	return r.query(ctx, `SELECT `+eventColumns+` FROM events WHERE organizer_id = ? ORDER BY start_date, id`, organizerID)
}

func (r *EventRepo) query(ctx context.Context, q string, args ...any) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Dialect.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
