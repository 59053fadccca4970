package booking

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"startickets/internal/models"
	"startickets/internal/promotion"
)

func TestNormalizeLines(t *testing.T) {
	lines, err := NormalizeLines([]models.CheckoutLine{
		{CategoryID: 2, Quantity: 1},
		{CategoryID: 1, Quantity: 0},
		{CategoryID: 3, Quantity: 2},
		{CategoryID: 2, Quantity: 4},
	})

	require.NoError(t, err)
	assert.Equal(t, []models.CheckoutLine{
		{CategoryID: 2, Quantity: 5},
		{CategoryID: 3, Quantity: 2},
	}, lines)
}

func TestNormalizeLinesRejects(t *testing.T) {
	_, err := NormalizeLines([]models.CheckoutLine{{CategoryID: 1, Quantity: 0}})
	assert.ErrorIs(t, err, ErrNoLinesSelected)

	_, err = NormalizeLines(nil)
	assert.ErrorIs(t, err, ErrNoLinesSelected)

	_, err = NormalizeLines([]models.CheckoutLine{{CategoryID: 1, Quantity: 2}, {CategoryID: 4, Quantity: -1}})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = NormalizeLines([]models.CheckoutLine{{CategoryID: 1, Quantity: math.MaxInt}, {CategoryID: 1, Quantity: math.MaxInt}})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	lines, err := NormalizeLines([]models.CheckoutLine{{CategoryID: 1, Quantity: math.MaxInt - 1}, {CategoryID: 1, Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, lines[0].Quantity)
}

func TestPriceLines(t *testing.T) {
	categories := map[int64]*models.TicketCategory{
		1: {ID: 1, EventID: 10, Name: "VIP", Price: 99.99, IsActive: true},
		2: {ID: 2, EventID: 10, Name: "General", Price: 20, IsActive: true},
		3: {ID: 3, EventID: 11, Name: "Elsewhere", Price: 5, IsActive: true},
	}

	priced, subtotal, err := PriceLines(10, []models.CheckoutLine{{CategoryID: 1, Quantity: 3}, {CategoryID: 2, Quantity: 1}}, categories)
	require.NoError(t, err)
	require.Len(t, priced, 2)
	assert.Equal(t, 299.97, priced[0].Total)
	assert.Equal(t, 319.97, subtotal)

	_, _, err = PriceLines(10, []models.CheckoutLine{{CategoryID: 3, Quantity: 1}}, categories)
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	_, _, err = PriceLines(10, []models.CheckoutLine{{CategoryID: 42, Quantity: 1}}, categories)
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestAssembleAndBuildTickets(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	vip := &models.TicketCategory{ID: 1, EventID: 10, Name: "VIP", Price: 50, IsActive: true}

	b := Assemble(AssembleInput{
		Reference:  "BK202610151200000042",
		CustomerID: 7,
		EventID:    10,
		Lines:      []PricedLine{{Category: vip, Quantity: 2, Total: 100}},
		Promotion:  &promotion.Result{Applicable: true, DiscountAmount: 15, FinalAmount: 85},
		PromoCode:  "SAVE15",
		Now:        now,
	})

	assert.Equal(t, 100.0, b.TotalAmount)
	assert.Equal(t, 15.0, b.DiscountAmount)
	assert.Equal(t, 85.0, b.FinalAmount)
	assert.Equal(t, "SAVE15", b.PromoCode)
	assert.Equal(t, models.PaymentPending, b.PaymentStatus)
	assert.Equal(t, models.BookingActive, b.Status)
	require.Len(t, b.Details, 1)
	assert.Equal(t, "VIP", b.Details[0].CategoryName)
	assert.Equal(t, 50.0, b.Details[0].UnitPrice)

	b.ID = 3
	b.Details[0].ID = 9
	tickets := BuildTickets(b, b.Details[0], now)
	require.Len(t, tickets, 2)
	assert.Equal(t, "TKT-00000003-00000009-001", tickets[0].TicketNumber)
	assert.Equal(t, "TKT-00000003-00000009-002", tickets[1].TicketNumber)
	assert.Equal(t, "BK202610151200000042-9-002", tickets[1].QRCode)
	assert.Equal(t, int64(9), tickets[0].BookingDetailID)
	assert.False(t, tickets[0].IsUsed)
}

func TestAssembleIgnoresInapplicablePromotion(t *testing.T) {
	general := &models.TicketCategory{ID: 2, EventID: 10, Name: "General", Price: 20, IsActive: true}

	b := Assemble(AssembleInput{
		Lines:     []PricedLine{{Category: general, Quantity: 3, Total: 60}},
		Promotion: &promotion.Result{Applicable: false, FinalAmount: 60, Reason: "Promotion has expired"},
		PromoCode: "OLD",
	})

	assert.Equal(t, 0.0, b.DiscountAmount)
	assert.Equal(t, 60.0, b.FinalAmount)
	assert.Empty(t, b.PromoCode)
}

func TestCheckoutStateTransitions(t *testing.T) {
	assert.True(t, canTransition(StateStarted, StateValidating))
	assert.True(t, canTransition(StatePersisting, StateCommitted))
	assert.True(t, canTransition(StateReservingInventory, StateAborted))
	assert.False(t, canTransition(StateValidating, StatePersisting))
	assert.False(t, canTransition(StateCommitted, StateAborted))
	assert.False(t, canTransition(StateAborted, StateValidating))
}
