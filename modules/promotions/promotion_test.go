package promotions_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/razaaliwebdev/sello/modules/promotions"
)

func floatPtr(v float64) *float64 { return &v }

func TestDiscount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		promo  promotions.Promotion
		amount float64
		want   float64
	}{
		{
			name: "percentage basic",
			promo: promotions.Promotion{
				Kind:  promotions.KindPercentage,
				Value: 10,
			},
			amount: 200,
			want:   20,
		},
		{
			name: "percentage capped at max discount",
			promo: promotions.Promotion{
				Kind:        promotions.KindPercentage,
				Value:       20,
				MaxDiscount: floatPtr(30),
			},
			amount: 200,
			want:   30,
		},
		{
			name: "percentage below cap untouched",
			promo: promotions.Promotion{
				Kind:        promotions.KindPercentage,
				Value:       20,
				MaxDiscount: floatPtr(30),
			},
			amount: 100,
			want:   20,
		},
		{
			name: "fixed as-is",
			promo: promotions.Promotion{
				Kind:  promotions.KindFixed,
				Value: 50,
			},
			amount: 200,
			want:   50,
		},
		{
			name: "fixed exceeds amount, not clamped",
			promo: promotions.Promotion{
				Kind:  promotions.KindFixed,
				Value: 50,
			},
			amount: 30,
			want:   50,
		},
		{
			name: "percentage of zero amount",
			promo: promotions.Promotion{
				Kind:  promotions.KindPercentage,
				Value: 20,
			},
			amount: 0,
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.promo.Discount(tt.amount))
		})
	}
}

func TestSavingsPercent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 15.0, promotions.SavingsPercent(30, 200))
	assert.Equal(t, 33.3, promotions.SavingsPercent(1, 3))
	assert.Equal(t, 0.0, promotions.SavingsPercent(10, 0))
}

func TestEffectiveStatus(t *testing.T) {
	t.Parallel()

	now := time.Now()
	p := promotions.Promotion{
		Status: promotions.StatusActive,
		EndsAt: now.Add(time.Hour),
	}
	assert.Equal(t, promotions.StatusActive, p.EffectiveStatus(now))
	assert.Equal(t, promotions.StatusExpired, p.EffectiveStatus(now.Add(2*time.Hour)))

	inactive := promotions.Promotion{
		Status: promotions.StatusInactive,
		EndsAt: now.Add(time.Hour),
	}
	assert.Equal(t, promotions.StatusInactive, inactive.EffectiveStatus(now))
}

func TestNormalizeCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "SUMMER20", promotions.NormalizeCode("  summer20 "))
	assert.Equal(t, "WELCOME", promotions.NormalizeCode("Welcome"))
}
