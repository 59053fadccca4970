package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets,alias:t"`

	ID              int64     `bun:"id,pk,autoincrement" json:"id"`
	BookingDetailID int64     `bun:"booking_detail_id,notnull" json:"booking_detail_id"`
	TicketNumber    string    `bun:"ticket_number,notnull,unique" json:"ticket_number"`
	QRCode          string    `bun:"qr_code,notnull,unique" json:"qr_code"`
	IsUsed          bool      `bun:"is_used,notnull" json:"is_used"`
	IssuedAt        time.Time `bun:"issued_at,notnull" json:"issued_at"`
}
