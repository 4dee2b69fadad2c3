// Package promotions implements discount-code management for the
// marketplace back office: CRUD with audience targeting, public
// validate/apply endpoints for checkout, and announcement fan-out through
// the notifications pipeline.
package promotions

import (
	"math"
	"strings"
	"time"

	"github.com/razaaliwebdev/sello/pkg/audience"
)

// DiscountKind is the discount computation mode.
type DiscountKind string

const (
	KindPercentage DiscountKind = "percentage"
	KindFixed      DiscountKind = "fixed"
)

// Status is the promotion lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusExpired  Status = "expired"
)

// Promotion is the persisted promotion document.
type Promotion struct {
	ID          string            `bson:"_id" json:"id"`
	Title       string            `bson:"title" json:"title"`
	Description string            `bson:"description,omitempty" json:"description,omitempty"`
	Code        string            `bson:"code" json:"code"`
	Kind        DiscountKind      `bson:"discountKind" json:"discountType"`
	Value       float64           `bson:"discountValue" json:"discountValue"`
	UsageLimit  int64             `bson:"usageLimit" json:"usageLimit"`
	UsedCount   int64             `bson:"usedCount" json:"usedCount"`
	StartsAt    time.Time         `bson:"startsAt" json:"startsAt"`
	EndsAt      time.Time         `bson:"endsAt" json:"endsAt"`
	Audience    audience.Audience `bson:"targetAudience" json:"targetAudience"`
	Status      Status            `bson:"status" json:"status"`
	MinPurchase float64           `bson:"minPurchase,omitempty" json:"minPurchase,omitempty"`
	MaxDiscount *float64          `bson:"maxDiscount,omitempty" json:"maxDiscount,omitempty"`
	CreatedBy   string            `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt   time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time         `bson:"updatedAt" json:"updatedAt"`
}

// EffectiveStatus corrects the stored status once the end timestamp has
// passed. The stored field is not rewritten on read paths; listings and
// validation both go through this accessor.
func (p *Promotion) EffectiveStatus(now time.Time) Status {
	if now.After(p.EndsAt) {
		return StatusExpired
	}
	return p.Status
}

// Exhausted reports whether the usage limit has been reached.
func (p *Promotion) Exhausted() bool {
	return p.UsedCount >= p.UsageLimit
}

// Discount computes the discount for a purchase amount.
//
// Percentage: amount * value / 100, capped at MaxDiscount when set.
// Fixed: the value as-is. A fixed discount is deliberately not clamped to
// the purchase amount, so the final amount can go negative; checkout owns
// that decision, not this computation.
func (p *Promotion) Discount(amount float64) float64 {
	if p.Kind == KindPercentage {
		d := amount * p.Value / 100
		if p.MaxDiscount != nil && d > *p.MaxDiscount {
			d = *p.MaxDiscount
		}
		return d
	}
	return p.Value
}

// SavingsPercent is the display percentage (discount / amount * 100)
// rounded to one decimal.
func SavingsPercent(discount, amount float64) float64 {
	if amount == 0 {
		return 0
	}
	return math.Round(discount/amount*1000) / 10
}

// NormalizeCode canonicalizes a promo code: trimmed, uppercase.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Snapshot is the promotion projection embedded in promotion-kind
// notification metadata, so the client can render the offer without a
// second fetch.
func (p *Promotion) Snapshot() map[string]any {
	snap := map[string]any{
		"id":           p.ID,
		"title":        p.Title,
		"code":         p.Code,
		"discountType": string(p.Kind),
		"value":        p.Value,
		"minPurchase":  p.MinPurchase,
		"startsAt":     p.StartsAt,
		"endsAt":       p.EndsAt,
	}
	if p.MaxDiscount != nil {
		snap["maxDiscount"] = *p.MaxDiscount
	}
	return snap
}

// PublicView strips internal audit fields for the public active-promotions
// listing.
type PublicView struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Code        string       `json:"code"`
	Kind        DiscountKind `json:"discountType"`
	Value       float64      `json:"discountValue"`
	MinPurchase float64      `json:"minPurchase,omitempty"`
	MaxDiscount *float64     `json:"maxDiscount,omitempty"`
	EndsAt      time.Time    `json:"endsAt"`
}

// Public returns the field-projected view of the promotion.
func (p *Promotion) Public() PublicView {
	return PublicView{
		Title:       p.Title,
		Description: p.Description,
		Code:        p.Code,
		Kind:        p.Kind,
		Value:       p.Value,
		MinPurchase: p.MinPurchase,
		MaxDiscount: p.MaxDiscount,
		EndsAt:      p.EndsAt,
	}
}
