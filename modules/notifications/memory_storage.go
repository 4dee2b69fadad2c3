package notifications

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MemoryStorage is an in-memory implementation of Storage. Suitable for
// development and tests. Records are held in one flat slice because
// broadcast records are shared across users rather than copied per user.
type MemoryStorage struct {
	records []Notification
	mu      sync.RWMutex
}

// NewMemoryStorage creates a new in-memory notification storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Create(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		return errors.New("notifications: ID is required")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	s.records = append(s.records, n)
	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, id string) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.records {
		if n.ID == id {
			// Copy so callers cannot mutate stored data.
			out := n
			return &out, nil
		}
	}
	return nil, ErrNotificationNotFound
}

func (s *MemoryStorage) ListAll(ctx context.Context, opts ListOptions) ([]Notification, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filtered(func(Notification) bool { return true }, opts)
}

func (s *MemoryStorage) ListForUser(ctx context.Context, userID string, opts ListOptions) ([]Notification, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filtered(func(n Notification) bool { return n.VisibleTo(userID) }, opts)
}

func (s *MemoryStorage) filtered(match func(Notification) bool, opts ListOptions) ([]Notification, int64, error) {
	var out []Notification
	for _, n := range s.records {
		if n.IsExpired() || !match(n) {
			continue
		}
		if opts.OnlyUnread && n.Read {
			continue
		}
		if opts.Kind != "" && n.Kind != opts.Kind {
			continue
		}
		out = append(out, n)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	total := int64(len(out))
	if opts.Limit > 0 {
		start := opts.Offset
		if start > len(out) {
			start = len(out)
		}
		end := start + opts.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, total, nil
}

func (s *MemoryStorage) MarkRead(ctx context.Context, id string, readAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Read = true
			at := readAt
			s.records[i].ReadAt = &at
			return nil
		}
	}
	return ErrNotificationNotFound
}

func (s *MemoryStorage) MarkAllReadForUser(ctx context.Context, userID string, readAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var flipped int64
	for i := range s.records {
		n := &s.records[i]
		if n.Read || !n.VisibleTo(userID) {
			continue
		}
		n.Read = true
		at := readAt
		n.ReadAt = &at
		flipped++
	}
	return flipped, nil
}

func (s *MemoryStorage) CountUnread(ctx context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, n := range s.records {
		if !n.Read && !n.IsExpired() && n.VisibleTo(userID) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.records {
		if n.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return ErrNotificationNotFound
}
