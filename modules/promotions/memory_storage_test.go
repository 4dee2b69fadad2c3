package promotions_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razaaliwebdev/sello/modules/promotions"
	"github.com/razaaliwebdev/sello/pkg/audience"
)

func seedPromo(t *testing.T, store *promotions.MemoryStorage, code string, mutate func(*promotions.Promotion)) *promotions.Promotion {
	t.Helper()
	now := time.Now()
	p := &promotions.Promotion{
		ID:         uuid.NewString(),
		Title:      "Promo " + code,
		Code:       code,
		Kind:       promotions.KindPercentage,
		Value:      10,
		UsageLimit: 10,
		StartsAt:   now.Add(-time.Hour),
		EndsAt:     now.Add(time.Hour),
		Audience:   audience.All,
		Status:     promotions.StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if mutate != nil {
		mutate(p)
	}
	require.NoError(t, store.Create(context.Background(), p))
	return p
}

func TestMemoryStorageList(t *testing.T) {
	t.Parallel()

	store := promotions.NewMemoryStorage()
	seedPromo(t, store, "SPRING10", nil)
	seedPromo(t, store, "WINTER15", func(p *promotions.Promotion) {
		p.StartsAt = time.Now().Add(-48 * time.Hour)
		p.EndsAt = time.Now().Add(-24 * time.Hour)
	})
	seedPromo(t, store, "PAUSED5", func(p *promotions.Promotion) {
		p.Status = promotions.StatusInactive
	})

	t.Run("filter by effective status", func(t *testing.T) {
		t.Parallel()

		items, total, err := store.List(context.Background(), promotions.ListFilter{Status: promotions.StatusExpired})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, items, 1)
		assert.Equal(t, "WINTER15", items[0].Code)
	})

	t.Run("search matches title and code case-insensitively", func(t *testing.T) {
		t.Parallel()

		items, total, err := store.List(context.Background(), promotions.ListFilter{Search: "spring"})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, items, 1)
		assert.Equal(t, "SPRING10", items[0].Code)
	})

	t.Run("pagination bounds", func(t *testing.T) {
		t.Parallel()

		items, total, err := store.List(context.Background(), promotions.ListFilter{Limit: 2})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		assert.Len(t, items, 2)

		items, _, err = store.List(context.Background(), promotions.ListFilter{Offset: 5})
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestMemoryStorageCounts(t *testing.T) {
	t.Parallel()

	store := promotions.NewMemoryStorage()
	active := seedPromo(t, store, "A1", nil)
	seedPromo(t, store, "E1", func(p *promotions.Promotion) {
		p.EndsAt = time.Now().Add(-time.Minute)
	})
	require.NoError(t, store.IncrementUsage(context.Background(), active.ID))

	counts, err := store.Counts(context.Background(), time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts.Total)
	assert.EqualValues(t, 1, counts.Active)
	assert.EqualValues(t, 1, counts.Expired)
	assert.EqualValues(t, 1, counts.Redemptions)
}

func TestMemoryStorageDelete(t *testing.T) {
	t.Parallel()

	store := promotions.NewMemoryStorage()
	p := seedPromo(t, store, "GONE", nil)

	require.NoError(t, store.Delete(context.Background(), p.ID))
	require.ErrorIs(t, store.Delete(context.Background(), p.ID), promotions.ErrPromotionNotFound)

	_, err := store.Get(context.Background(), p.ID)
	require.ErrorIs(t, err, promotions.ErrPromotionNotFound)
}
