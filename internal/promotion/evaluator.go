// Package promotion decides whether a campaign applies to a subtotal and how much
// it takes off. The same function backs the advisory preview and the checkout commit.
package promotion

import (
	"errors"
	"fmt"
	"math"
	"time"

	"startickets/internal/models"
)

var ErrInvalidPromotion = errors.New("INVALID_PROMOTION")

// Result of evaluating a campaign. When Applicable is false the discount is zero
// and Reason says why; that is not an error.
type Result struct {
	Applicable     bool
	DiscountAmount float64
	FinalAmount    float64
	Reason         string
}

// Evaluate checks applicability of campaign at now and computes the discount on subtotal.
// A nil campaign yields a not-applicable result. Malformed inputs return ErrInvalidPromotion.
func Evaluate(campaign *models.PromotionalCampaign, subtotal float64, now time.Time) (*Result, error) {
	if subtotal < 0 || math.IsNaN(subtotal) {
		return nil, fmt.Errorf("%w: negative subtotal %.2f", ErrInvalidPromotion, subtotal)
	}

	result := &Result{FinalAmount: RoundCents(subtotal)}

	if campaign == nil {
		result.Reason = "Promotion code not found"
		return result, nil
	}
	if !campaign.IsActive {
		result.Reason = "Promotion is not active"
		return result, nil
	}
	if now.Before(campaign.StartDate) {
		result.Reason = "Promotion has not started yet"
		return result, nil
	}
	if now.After(campaign.EndDate) {
		result.Reason = "Promotion has expired"
		return result, nil
	}
	if campaign.UsageExhausted() {
		result.Reason = "Promotion usage limit has been reached"
		return result, nil
	}

	if campaign.DiscountValue < 0 {
		return nil, fmt.Errorf("%w: campaign %d has negative value", ErrInvalidPromotion, campaign.ID)
	}

	var discountAmount float64
	switch campaign.DiscountType {
	case models.DiscountPercentage:
		if campaign.DiscountValue > 100 {
			return nil, fmt.Errorf("%w: campaign %d percentage %.2f above 100", ErrInvalidPromotion, campaign.ID, campaign.DiscountValue)
		}
		discountAmount = subtotal * campaign.DiscountValue / 100
	case models.DiscountFixed:
		discountAmount = campaign.DiscountValue
		if discountAmount > subtotal {
			discountAmount = subtotal
		}
	default:
		return nil, fmt.Errorf("%w: unsupported discount type %q", ErrInvalidPromotion, campaign.DiscountType)
	}

	result.Applicable = true
	result.DiscountAmount = RoundCents(discountAmount)
	result.FinalAmount = RoundCents(subtotal - result.DiscountAmount)
	return result, nil
}

// RoundCents rounds a money amount to two decimals, half away from zero.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
