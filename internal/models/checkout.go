package models

import "time"

type CheckoutLine struct {
	CategoryID int64 `json:"category_id"`
	Quantity   int   `json:"quantity"`
}

type CheckoutRequest struct {
	EventID   int64          `json:"event_id"`
	Lines     []CheckoutLine `json:"lines"`
	PromoCode string         `json:"promo_code,omitempty"`
}

type CheckoutResult struct {
	BookingID        int64   `json:"booking_id"`
	BookingReference string  `json:"booking_reference"`
	TotalAmount      float64 `json:"total_amount"`
	DiscountAmount   float64 `json:"discount_amount"`
	FinalAmount      float64 `json:"final_amount"`
	TicketCount      int     `json:"ticket_count"`
}

// BookingConfirmation is the display shape of a persisted booking.
type BookingConfirmation struct {
	BookingID        int64                `json:"booking_id"`
	BookingReference string               `json:"booking_reference"`
	EventID          int64                `json:"event_id"`
	BookingDate      time.Time            `json:"booking_date"`
	TotalAmount      float64              `json:"total_amount"`
	DiscountAmount   float64              `json:"discount_amount"`
	FinalAmount      float64              `json:"final_amount"`
	PromoCode        string               `json:"promo_code,omitempty"`
	PaymentStatus    PaymentStatus        `json:"payment_status"`
	Status           BookingStatus        `json:"status"`
	Details          []DetailConfirmation `json:"details"`
}

type DetailConfirmation struct {
	CategoryName string               `json:"category_name"`
	Quantity     int                  `json:"quantity"`
	UnitPrice    float64              `json:"unit_price"`
	TotalPrice   float64              `json:"total_price"`
	Tickets      []TicketConfirmation `json:"tickets"`
}

type TicketConfirmation struct {
	TicketNumber string `json:"ticket_number"`
	QRCode       string `json:"qr_code"`
	QRImage      string `json:"qr_image,omitempty"`
	IsUsed       bool   `json:"is_used"`
}

// NewBookingConfirmation flattens a booking graph, keeping detail and ticket order.
func NewBookingConfirmation(b *Booking) BookingConfirmation {
	c := BookingConfirmation{
		BookingID:        b.ID,
		BookingReference: b.BookingReference,
		EventID:          b.EventID,
		BookingDate:      b.BookingDate,
		TotalAmount:      b.TotalAmount,
		DiscountAmount:   b.DiscountAmount,
		FinalAmount:      b.FinalAmount,
		PromoCode:        b.PromoCode,
		PaymentStatus:    b.PaymentStatus,
		Status:           b.Status,
		Details:          make([]DetailConfirmation, 0, len(b.Details)),
	}
	for _, d := range b.Details {
		dc := DetailConfirmation{
			CategoryName: d.CategoryName,
			Quantity:     d.Quantity,
			UnitPrice:    d.UnitPrice,
			TotalPrice:   d.TotalPrice,
			Tickets:      make([]TicketConfirmation, 0, len(d.Tickets)),
		}
		for _, t := range d.Tickets {
			dc.Tickets = append(dc.Tickets, TicketConfirmation{
				TicketNumber: t.TicketNumber,
				QRCode:       t.QRCode,
				IsUsed:       t.IsUsed,
			})
		}
		c.Details = append(c.Details, dc)
	}
	return c
}

// BookingEvent is the message published after a booking changes state.
type BookingEvent struct {
	EventID          string        `json:"event_id"`
	Type             string        `json:"type"`
	OccurredAt       time.Time     `json:"occurred_at"`
	BookingID        int64         `json:"booking_id"`
	BookingReference string        `json:"booking_reference"`
	CustomerID       int64         `json:"customer_id"`
	CatalogEventID   int64         `json:"catalog_event_id"`
	FinalAmount      float64       `json:"final_amount"`
	TicketCount      int           `json:"ticket_count"`
	Status           BookingStatus `json:"status"`
}
