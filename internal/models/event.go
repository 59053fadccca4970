package models

import (
	"time"

	"github.com/uptrace/bun"
)

type EventStatus string

const (
	EventDraft     EventStatus = "Draft"
	EventPublished EventStatus = "Published"
	EventCancelled EventStatus = "Cancelled"
	EventCompleted EventStatus = "Completed"
)

// Event is reference data owned by the catalog; the booking core only reads it.
type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID          int64       `bun:"id,pk,autoincrement" json:"id"`
	Name        string      `bun:"name,notnull" json:"name"`
	EventDate   time.Time   `bun:"event_date,notnull" json:"event_date"`
	EndDate     time.Time   `bun:"end_date,nullzero" json:"end_date,omitempty"`
	VenueID     int64       `bun:"venue_id,nullzero" json:"venue_id,omitempty"`
	OrganizerID int64       `bun:"organizer_id,nullzero" json:"organizer_id,omitempty"`
	CategoryID  int64       `bun:"category_id,nullzero" json:"category_id,omitempty"`
	IsActive    bool        `bun:"is_active,notnull" json:"is_active"`
	Status      EventStatus `bun:"status,notnull" json:"status"`

	Categories []*TicketCategory `bun:"rel:has-many,join:id=event_id" json:"categories,omitempty"`
}

// IsBookable reports whether tickets can still be sold for the event at now.
func (e *Event) IsBookable(now time.Time) bool {
	return e.IsActive && e.Status == EventPublished && e.EventDate.After(now)
}

// TicketCategory is a priced tier within an event. AvailableQuantity is only
// mutated through the booking repository's inventory methods.
type TicketCategory struct {
	bun.BaseModel `bun:"table:ticket_categories,alias:tc"`

	ID                int64   `bun:"id,pk,autoincrement" json:"id"`
	EventID           int64   `bun:"event_id,notnull" json:"event_id"`
	Name              string  `bun:"name,notnull" json:"name"`
	Price             float64 `bun:"price,notnull" json:"price"`
	TotalQuantity     int     `bun:"total_quantity,notnull" json:"total_quantity"`
	AvailableQuantity int     `bun:"available_quantity,notnull" json:"available_quantity"`
	IsActive          bool    `bun:"is_active,notnull" json:"is_active"`
}

// CategoryAvailability is what the cart page needs to (re)draw its selectors.
type CategoryAvailability struct {
	CategoryID int64   `json:"category_id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Available  int     `json:"available"`
	Total      int     `json:"total"`
}
