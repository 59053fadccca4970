package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
	PaymentFailed    PaymentStatus = "Failed"
	PaymentRefunded  PaymentStatus = "Refunded"
)

type BookingStatus string

const (
	BookingActive    BookingStatus = "Active"
	BookingCancelled BookingStatus = "Cancelled"
)

type Booking struct {
	bun.BaseModel `bun:"table:bookings,alias:b"`

	ID               int64         `bun:"id,pk,autoincrement" json:"id"`
	BookingReference string        `bun:"booking_reference,notnull,unique" json:"booking_reference"`
	CustomerID       int64         `bun:"customer_id,notnull" json:"customer_id"`
	EventID          int64         `bun:"event_id,notnull" json:"event_id"`
	BookingDate      time.Time     `bun:"booking_date,notnull" json:"booking_date"`
	TotalAmount      float64       `bun:"total_amount,notnull" json:"total_amount"`
	DiscountAmount   float64       `bun:"discount_amount,notnull" json:"discount_amount"`
	FinalAmount      float64       `bun:"final_amount,notnull" json:"final_amount"`
	PaymentStatus    PaymentStatus `bun:"payment_status,notnull" json:"payment_status"`
	Status           BookingStatus `bun:"status,notnull" json:"status"`
	PromoCode        string        `bun:"promo_code,nullzero" json:"promo_code,omitempty"`
	CancelledAt      time.Time     `bun:"cancelled_at,nullzero" json:"cancelled_at,omitempty"`

	Details []*BookingDetail `bun:"rel:has-many,join:id=booking_id" json:"details,omitempty"`
}

// TicketCount sums the quantities of all line items.
func (b *Booking) TicketCount() int {
	n := 0
	for _, d := range b.Details {
		n += d.Quantity
	}
	return n
}

// BookingDetail is one line item. UnitPrice and CategoryName are snapshots taken
// at purchase time and do not follow later edits of the category.
type BookingDetail struct {
	bun.BaseModel `bun:"table:booking_details,alias:bd"`

	ID               int64   `bun:"id,pk,autoincrement" json:"id"`
	BookingID        int64   `bun:"booking_id,notnull" json:"booking_id"`
	TicketCategoryID int64   `bun:"ticket_category_id,notnull" json:"ticket_category_id"`
	CategoryName     string  `bun:"category_name,notnull" json:"category_name"`
	Quantity         int     `bun:"quantity,notnull" json:"quantity"`
	UnitPrice        float64 `bun:"unit_price,notnull" json:"unit_price"`
	TotalPrice       float64 `bun:"total_price,notnull" json:"total_price"`

	Tickets []*Ticket `bun:"rel:has-many,join:id=booking_detail_id" json:"tickets,omitempty"`
}
