package promotions

import (
	"context"
	"errors"
	"time"
)

// Storage errors.
var (
	ErrPromotionNotFound = errors.New("promotion not found")
	ErrCodeTaken         = errors.New("promotion code already exists")
)

// ListFilter narrows the admin listing.
type ListFilter struct {
	Status   Status // effective status; empty means all
	Audience string // target audience; empty means all
	Search   string // case-insensitive substring over title and code
	Limit    int
	Offset   int
}

// Counts are the aggregate numbers returned alongside listings and stats.
type Counts struct {
	Total       int64 `json:"total"`
	Active      int64 `json:"active"`
	Expired     int64 `json:"expired"`
	Redemptions int64 `json:"totalRedemptions"`
}

// Storage is the persistence port for promotions.
type Storage interface {
	// Create inserts a promotion. Returns ErrCodeTaken when the code is
	// already in use.
	Create(ctx context.Context, p *Promotion) error

	// Get fetches a promotion by ID.
	Get(ctx context.Context, id string) (*Promotion, error)

	// GetByCode fetches a promotion by its canonical code.
	GetByCode(ctx context.Context, code string) (*Promotion, error)

	// List returns a filtered page of promotions, newest first, plus the
	// total matching count.
	List(ctx context.Context, f ListFilter) ([]Promotion, int64, error)

	// ListActive returns promotions whose effective status is active,
	// whose window contains now, and whose usage limit is not exhausted.
	ListActive(ctx context.Context, now time.Time) ([]Promotion, error)

	// Counts aggregates totals across all promotions.
	Counts(ctx context.Context, now time.Time) (Counts, error)

	// Update replaces a promotion document by ID. Returns ErrCodeTaken
	// when a code change collides with another promotion.
	Update(ctx context.Context, p *Promotion) error

	// Delete removes a promotion by ID.
	Delete(ctx context.Context, id string) error

	// IncrementUsage bumps usedCount by one as a single storage-level
	// atomic operation. It carries no eligibility guard; callers check
	// limits before calling.
	IncrementUsage(ctx context.Context, id string) error
}
