package models

import (
	"time"

	"github.com/uptrace/bun"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "Percentage"
	DiscountFixed      DiscountType = "Fixed"
)

type PromotionalCampaign struct {
	bun.BaseModel `bun:"table:promotional_campaigns,alias:pc"`

	ID            int64        `bun:"id,pk,autoincrement" json:"id"`
	Code          string       `bun:"code,unique,nullzero" json:"code,omitempty"`
	Name          string       `bun:"name,notnull" json:"name"`
	DiscountType  DiscountType `bun:"discount_type,notnull" json:"discount_type"`
	DiscountValue float64      `bun:"discount_value,notnull" json:"discount_value"`
	StartDate     time.Time    `bun:"start_date,notnull" json:"start_date"`
	EndDate       time.Time    `bun:"end_date,notnull" json:"end_date"`
	MaxUsage      *int         `bun:"max_usage" json:"max_usage,omitempty"`
	CurrentUsage  int          `bun:"current_usage,notnull" json:"current_usage"`
	IsActive      bool         `bun:"is_active,notnull" json:"is_active"`
}

// UsageExhausted is true once a capped campaign has been redeemed MaxUsage times.
func (c *PromotionalCampaign) UsageExhausted() bool {
	return c.MaxUsage != nil && c.CurrentUsage >= *c.MaxUsage
}

type PromoPreviewRequest struct {
	Code     string  `json:"code"`
	Subtotal float64 `json:"subtotal"`
}

// PromoPreview is advisory only: nothing is reserved or redeemed when it is produced.
type PromoPreview struct {
	Valid          bool    `json:"valid"`
	DiscountAmount float64 `json:"discount_amount"`
	FinalAmount    float64 `json:"final_amount"`
	Message        string  `json:"message"`
}
