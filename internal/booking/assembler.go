package booking

import (
	"fmt"
	"math"
	"time"

	"startickets/internal/models"
	"startickets/internal/promotion"
	"startickets/internal/utils"
)

// NormalizeLines drops zero-quantity lines and merges repeated categories, keeping
// first-seen order. Negative quantities and merged totals that overflow int are
// rejected.
func NormalizeLines(lines []models.CheckoutLine) ([]models.CheckoutLine, error) {
	merged := make([]models.CheckoutLine, 0, len(lines))
	index := make(map[int64]int, len(lines))

	for _, line := range lines {
		if line.Quantity < 0 {
			return nil, newError(KindInvalidQuantity,
				fmt.Sprintf("Quantity for category %d cannot be negative", line.CategoryID), nil)
		}
		if line.Quantity == 0 {
			continue
		}
		if i, ok := index[line.CategoryID]; ok {
			if merged[i].Quantity > math.MaxInt-line.Quantity {
				return nil, newError(KindInvalidQuantity,
					fmt.Sprintf("Quantity for category %d is too large", line.CategoryID), nil)
			}
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.CategoryID] = len(merged)
		merged = append(merged, line)
	}

	if len(merged) == 0 {
		return nil, newError(KindNoLinesSelected, "Please select at least one ticket", nil)
	}
	return merged, nil
}

// PricedLine is a cart line resolved against its locked category row.
type PricedLine struct {
	Category *models.TicketCategory
	Quantity int
	Total    float64
}

// PriceLines resolves every line to an active category of eventID and returns the
// priced lines with their subtotal.
func PriceLines(eventID int64, lines []models.CheckoutLine, categories map[int64]*models.TicketCategory) ([]PricedLine, float64, error) {
	priced := make([]PricedLine, 0, len(lines))
	var subtotal float64

	for _, line := range lines {
		category, ok := categories[line.CategoryID]
		if !ok || category.EventID != eventID || !category.IsActive {
			return nil, 0, newError(KindCategoryNotFound,
				fmt.Sprintf("Ticket category %d is not available for this event", line.CategoryID), nil)
		}
		total := promotion.RoundCents(category.Price * float64(line.Quantity))
		priced = append(priced, PricedLine{Category: category, Quantity: line.Quantity, Total: total})
		subtotal += total
	}
	return priced, promotion.RoundCents(subtotal), nil
}

type AssembleInput struct {
	Reference  string
	CustomerID int64
	EventID    int64
	Lines      []PricedLine
	Promotion  *promotion.Result
	PromoCode  string
	Now        time.Time
}

// Assemble builds the unsaved booking graph. Details carry the category name and
// unit price as they are now; tickets are added by BuildTickets once ids exist.
func Assemble(in AssembleInput) *models.Booking {
	booking := &models.Booking{
		BookingReference: in.Reference,
		CustomerID:       in.CustomerID,
		EventID:          in.EventID,
		BookingDate:      in.Now,
		PaymentStatus:    models.PaymentPending,
		Status:           models.BookingActive,
		Details:          make([]*models.BookingDetail, 0, len(in.Lines)),
	}

	var total float64
	for _, line := range in.Lines {
		booking.Details = append(booking.Details, &models.BookingDetail{
			TicketCategoryID: line.Category.ID,
			CategoryName:     line.Category.Name,
			Quantity:         line.Quantity,
			UnitPrice:        line.Category.Price,
			TotalPrice:       line.Total,
		})
		total += line.Total
	}
	booking.TotalAmount = promotion.RoundCents(total)

	if in.Promotion != nil && in.Promotion.Applicable {
		booking.DiscountAmount = in.Promotion.DiscountAmount
		booking.PromoCode = in.PromoCode
	}
	booking.FinalAmount = promotion.RoundCents(booking.TotalAmount - booking.DiscountAmount)
	return booking
}

// BuildTickets issues detail.Quantity tickets numbered from 1. booking and detail
// must already be persisted.
func BuildTickets(booking *models.Booking, detail *models.BookingDetail, issuedAt time.Time) []*models.Ticket {
	tickets := make([]*models.Ticket, 0, detail.Quantity)
	for seq := 1; seq <= detail.Quantity; seq++ {
		tickets = append(tickets, &models.Ticket{
			BookingDetailID: detail.ID,
			TicketNumber:    utils.TicketNumber(booking.ID, detail.ID, seq),
			QRCode:          utils.TicketQRPayload(booking.BookingReference, detail.ID, seq),
			IssuedAt:        issuedAt,
		})
	}
	return tickets
}
