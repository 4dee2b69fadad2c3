package promotions

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage used in tests and local development.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]*Promotion
}

// NewMemoryStorage creates an empty in-memory promotion store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]*Promotion)}
}

func (s *MemoryStorage) Create(_ context.Context, p *Promotion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.items {
		if existing.Code == p.Code {
			return ErrCodeTaken
		}
	}
	cp := *p
	s.items[p.ID] = &cp
	return nil
}

func (s *MemoryStorage) Get(_ context.Context, id string) (*Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.items[id]
	if !ok {
		return nil, ErrPromotionNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStorage) GetByCode(_ context.Context, code string) (*Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.items {
		if p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrPromotionNotFound
}

func (s *MemoryStorage) List(_ context.Context, f ListFilter) ([]Promotion, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now().UTC()
	var matched []Promotion
	for _, p := range s.items {
		if f.Status != "" && p.EffectiveStatus(now) != f.Status {
			continue
		}
		if f.Audience != "" && string(p.Audience) != f.Audience {
			continue
		}
		if f.Search != "" {
			needle := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(p.Title), needle) &&
				!strings.Contains(strings.ToLower(p.Code), needle) {
				continue
			}
		}
		matched = append(matched, *p)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if f.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (s *MemoryStorage) ListActive(_ context.Context, now time.Time) ([]Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []Promotion
	for _, p := range s.items {
		if p.Status == StatusActive && !now.Before(p.StartsAt) && !now.After(p.EndsAt) && !p.Exhausted() {
			items = append(items, *p)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].EndsAt.Before(items[j].EndsAt)
	})
	return items, nil
}

func (s *MemoryStorage) Counts(_ context.Context, now time.Time) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c Counts
	for _, p := range s.items {
		c.Total++
		c.Redemptions += p.UsedCount
		switch p.EffectiveStatus(now) {
		case StatusActive:
			c.Active++
		case StatusExpired:
			c.Expired++
		}
	}
	return c, nil
}

func (s *MemoryStorage) Update(_ context.Context, p *Promotion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[p.ID]; !ok {
		return ErrPromotionNotFound
	}
	for id, existing := range s.items {
		if id != p.ID && existing.Code == p.Code {
			return ErrCodeTaken
		}
	}
	cp := *p
	s.items[p.ID] = &cp
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return ErrPromotionNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryStorage) IncrementUsage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.items[id]
	if !ok {
		return ErrPromotionNotFound
	}
	p.UsedCount++
	return nil
}
