package promotions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/razaaliwebdev/sello/modules/notifications"
	"github.com/razaaliwebdev/sello/pkg/audience"
	"github.com/razaaliwebdev/sello/pkg/email"
	"github.com/razaaliwebdev/sello/pkg/validator"
)

// Redemption errors. These describe why a code cannot be validated or
// applied; the handler maps them to response keys.
var (
	ErrNotActive    = errors.New("promotion is not active")
	ErrNotStarted   = errors.New("promotion has not started yet")
	ErrExpired      = errors.New("promotion has expired")
	ErrExhausted    = errors.New("promotion usage limit reached")
	ErrBelowMinimum = errors.New("purchase amount below promotion minimum")
)

// Resolver is the audience resolution port, satisfied by
// audience.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, sel audience.Selector) (audience.Resolution, error)
}

// Dispatcher fans a notification event out to a resolved audience,
// satisfied by notifications.Engine.
type Dispatcher interface {
	Dispatch(ctx context.Context, event notifications.Event, res audience.Resolution) (notifications.Result, error)
}

// Service implements promotion management and redemption.
type Service struct {
	storage    Storage
	cache      Cache
	resolver   Resolver
	dispatcher Dispatcher
	log        *slog.Logger
	now        func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger used for announcement failures.
func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithCache sets the active-listing cache. Defaults to NopCache.
func WithCache(c Cache) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithClock overrides the time source. Tests pin it.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the promotion service. The resolver and dispatcher feed
// the announcement fan-out on creation; pass nil for both to disable
// announcements.
func NewService(storage Storage, resolver Resolver, dispatcher Dispatcher, opts ...ServiceOption) *Service {
	s := &Service{
		storage:    storage,
		cache:      NopCache{},
		resolver:   resolver,
		dispatcher: dispatcher,
		log:        slog.Default(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput is an admin promotion-creation request.
type CreateInput struct {
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Code           string    `json:"code"`
	DiscountType   string    `json:"discountType"`
	DiscountValue  float64   `json:"discountValue"`
	UsageLimit     int64     `json:"usageLimit"`
	StartsAt       time.Time `json:"startsAt"`
	EndsAt         time.Time `json:"endsAt"`
	TargetAudience string    `json:"targetAudience"`
	MinPurchase    float64   `json:"minPurchase,omitempty"`
	MaxDiscount    *float64  `json:"maxDiscount,omitempty"`
}

// Validate rejects a malformed request before any mutation. Percentage
// values live in (0, 100]; fixed values must be positive. MaxDiscount only
// applies to percentage promotions. The window must be ordered and must not
// already be over.
func (in CreateInput) Validate() error {
	kind := DiscountKind(in.DiscountType)
	rules := []validator.Rule{
		validator.Required("title", in.Title),
		validator.MaxLen("title", in.Title, 200),
		validator.Required("code", NormalizeCode(in.Code)),
		validator.MaxLen("code", NormalizeCode(in.Code), 40),
		validator.OneOf("discountType", kind, KindPercentage, KindFixed),
		validator.Positive("discountValue", in.DiscountValue),
		validator.Min("usageLimit", in.UsageLimit, 1),
		validator.Min("minPurchase", in.MinPurchase, 0),
		validator.Before("startsAt", in.StartsAt, in.EndsAt),
		validator.NotPast("endsAt", in.EndsAt),
		validator.OneOf("targetAudience", in.TargetAudience,
			string(audience.All), string(audience.Buyers), string(audience.Sellers), string(audience.Dealers)),
	}
	if kind == KindPercentage {
		rules = append(rules, validator.Max("discountValue", in.DiscountValue, 100))
		if in.MaxDiscount != nil {
			rules = append(rules, validator.Positive("maxDiscount", *in.MaxDiscount))
		}
	} else if in.MaxDiscount != nil {
		rules = append(rules, validator.Rule{
			Check: func() bool { return false },
			Error: validator.ValidationError{Field: "maxDiscount", Message: "only applies to percentage discounts"},
		})
	}
	return validator.Apply(rules...)
}

// Create validates and persists a promotion, then announces it to its
// target audience through the notification pipeline. The announcement is
// best effort: its failure is logged and never rolls the promotion back.
func (s *Service) Create(ctx context.Context, createdBy string, in CreateInput) (*Promotion, error) {
	now := s.now()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	// Friendly duplicate check up front; the unique index still catches the
	// race on insert.
	if _, err := s.storage.GetByCode(ctx, NormalizeCode(in.Code)); err == nil {
		return nil, ErrCodeTaken
	} else if !errors.Is(err, ErrPromotionNotFound) {
		return nil, err
	}

	p := &Promotion{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Code:        NormalizeCode(in.Code),
		Kind:        DiscountKind(in.DiscountType),
		Value:       in.DiscountValue,
		UsageLimit:  in.UsageLimit,
		StartsAt:    in.StartsAt,
		EndsAt:      in.EndsAt,
		Audience:    audience.Audience(in.TargetAudience),
		Status:      StatusActive,
		MinPurchase: in.MinPurchase,
		MaxDiscount: in.MaxDiscount,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.storage.Create(ctx, p); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx)

	s.announce(ctx, p)
	return p, nil
}

// announce fans the promotion out as a promotion-kind notification. Runs
// inside the request like every other delivery stage.
func (s *Service) announce(ctx context.Context, p *Promotion) {
	if s.resolver == nil || s.dispatcher == nil {
		return
	}

	res, err := s.resolver.Resolve(ctx, audience.Selector{Audience: p.Audience})
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "promotion audience resolution failed",
			slog.String("promotion_id", p.ID),
			slog.String("audience", string(p.Audience)),
			slog.String("error", err.Error()))
		return
	}

	message := p.Description
	if message == "" {
		message = fmt.Sprintf("Use code %s before %s.", p.Code, p.EndsAt.Format("January 2, 2006"))
	}

	result, err := s.dispatcher.Dispatch(ctx, notifications.Event{
		Title:       p.Title,
		Message:     message,
		Kind:        notifications.KindPromotion,
		ActionURL:   "/promotions/" + p.ID,
		ActionLabel: "View offer",
		ExpiresAt:   &p.EndsAt,
		Metadata:    map[string]any{"promotion": p.Snapshot()},
		CreatedBy:   p.CreatedBy,
		Promo: &email.PromotionEmail{
			Title:         p.Title,
			Message:       message,
			Code:          p.Code,
			DiscountKind:  string(p.Kind),
			DiscountValue: p.Value,
			MinPurchase:   p.MinPurchase,
			ExpiresAt:     p.EndsAt,
			CTAURL:        "/promotions/" + p.ID,
			CTALabel:      "Shop now",
		},
	}, res)
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "promotion announcement failed",
			slog.String("promotion_id", p.ID),
			slog.String("error", err.Error()))
		return
	}

	s.log.LogAttrs(ctx, slog.LevelInfo, "promotion announced",
		slog.String("promotion_id", p.ID),
		slog.String("audience", string(p.Audience)),
		slog.Int("created", result.Created),
		slog.Int("intended", result.Intended),
		slog.Int("emails_sent", result.EmailsSent))
}

// Get fetches a promotion by ID. The reported status reflects the window:
// a stored active promotion past its end date reads as expired.
func (s *Service) Get(ctx context.Context, id string) (*Promotion, error) {
	p, err := s.storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Status = p.EffectiveStatus(s.now())
	return p, nil
}

// List returns a filtered page plus aggregate counts for the admin table.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Promotion, int64, Counts, error) {
	items, total, err := s.storage.List(ctx, f)
	if err != nil {
		return nil, 0, Counts{}, err
	}
	now := s.now()
	for i := range items {
		items[i].Status = items[i].EffectiveStatus(now)
	}
	counts, err := s.storage.Counts(ctx, s.now())
	if err != nil {
		return nil, 0, Counts{}, err
	}
	return items, total, counts, nil
}

// Stats returns the aggregate counts alone, including total redemptions.
func (s *Service) Stats(ctx context.Context) (Counts, error) {
	return s.storage.Counts(ctx, s.now())
}

// UpdateInput carries the mutable promotion fields. Usage counters and
// audit fields are not updatable.
type UpdateInput struct {
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Code           string    `json:"code"`
	DiscountType   string    `json:"discountType"`
	DiscountValue  float64   `json:"discountValue"`
	UsageLimit     int64     `json:"usageLimit"`
	StartsAt       time.Time `json:"startsAt"`
	EndsAt         time.Time `json:"endsAt"`
	TargetAudience string    `json:"targetAudience"`
	Status         string    `json:"status"`
	MinPurchase    float64   `json:"minPurchase,omitempty"`
	MaxDiscount    *float64  `json:"maxDiscount,omitempty"`
}

// Update replaces the mutable fields of an existing promotion.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Promotion, error) {
	now := s.now()
	createIn := CreateInput{
		Title:          in.Title,
		Description:    in.Description,
		Code:           in.Code,
		DiscountType:   in.DiscountType,
		DiscountValue:  in.DiscountValue,
		UsageLimit:     in.UsageLimit,
		StartsAt:       in.StartsAt,
		EndsAt:         in.EndsAt,
		TargetAudience: in.TargetAudience,
		MinPurchase:    in.MinPurchase,
		MaxDiscount:    in.MaxDiscount,
	}
	if err := createIn.Validate(); err != nil {
		return nil, err
	}
	status := Status(in.Status)
	if status == "" {
		status = StatusActive
	}
	if err := validator.Apply(validator.OneOf("status", status, StatusActive, StatusInactive)); err != nil {
		return nil, err
	}

	p, err := s.storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	p.Title = in.Title
	p.Description = in.Description
	p.Code = NormalizeCode(in.Code)
	p.Kind = DiscountKind(in.DiscountType)
	p.Value = in.DiscountValue
	p.UsageLimit = in.UsageLimit
	p.StartsAt = in.StartsAt
	p.EndsAt = in.EndsAt
	p.Audience = audience.Audience(in.TargetAudience)
	p.Status = status
	p.MinPurchase = in.MinPurchase
	p.MaxDiscount = in.MaxDiscount
	p.UpdatedAt = now

	if err := s.storage.Update(ctx, p); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx)
	return p, nil
}

// Delete removes a promotion.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.storage.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	return nil
}

// Active returns the public projection of currently redeemable promotions,
// served from cache when warm.
func (s *Service) Active(ctx context.Context) ([]PublicView, error) {
	if cached, ok := s.cache.Get(ctx); ok {
		return cached, nil
	}

	items, err := s.storage.ListActive(ctx, s.now())
	if err != nil {
		return nil, err
	}
	views := make([]PublicView, 0, len(items))
	for i := range items {
		views = append(views, items[i].Public())
	}
	s.cache.Set(ctx, views)
	return views, nil
}

// Validation is the outcome of checking a code against an amount.
type Validation struct {
	Valid       bool    `json:"valid"`
	Reason      string  `json:"reason,omitempty"`
	Code        string  `json:"code"`
	Discount    float64 `json:"discount"`
	FinalAmount float64 `json:"finalAmount"`
	SavingsPct  float64 `json:"savingsPercent"`
}

// check runs the full eligibility chain against a loaded promotion.
func (s *Service) check(p *Promotion, amount float64) error {
	now := s.now()
	switch {
	case p.Status != StatusActive:
		return ErrNotActive
	case now.Before(p.StartsAt):
		return ErrNotStarted
	case now.After(p.EndsAt):
		return ErrExpired
	case p.Exhausted():
		return ErrExhausted
	case amount < p.MinPurchase:
		return ErrBelowMinimum
	}
	return nil
}

// ValidateCode checks a code against an amount without mutating state.
// Eligibility failures are reported in the result, not as errors; only an
// unknown code or a storage failure errors out.
func (s *Service) ValidateCode(ctx context.Context, code string, amount float64) (*Validation, error) {
	p, err := s.storage.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		return nil, err
	}

	if err := s.check(p, amount); err != nil {
		return &Validation{Valid: false, Reason: reasonKey(err), Code: p.Code}, nil
	}

	discount := p.Discount(amount)
	return &Validation{
		Valid:       true,
		Code:        p.Code,
		Discount:    discount,
		FinalAmount: amount - discount,
		SavingsPct:  SavingsPercent(discount, amount),
	}, nil
}

// ApplyResult is a successful redemption.
type ApplyResult struct {
	Code        string  `json:"code"`
	Discount    float64 `json:"discount"`
	FinalAmount float64 `json:"finalAmount"`
	SavingsPct  float64 `json:"savingsPercent"`
}

// Apply validates a code, computes the discount and atomically increments
// the usage counter. The eligibility check reads a snapshot; the counter
// increment is a separate storage-atomic operation, so concurrent
// redemptions can overshoot the limit. Sequential redemptions exhaust it
// exactly.
func (s *Service) Apply(ctx context.Context, code string, amount float64) (*ApplyResult, error) {
	p, err := s.storage.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if err := s.check(p, amount); err != nil {
		return nil, err
	}

	discount := p.Discount(amount)
	if err := s.storage.IncrementUsage(ctx, p.ID); err != nil {
		return nil, err
	}
	// The redemption may have exhausted the promotion; drop the cached
	// active listing so it disappears promptly.
	s.cache.Invalidate(ctx)

	return &ApplyResult{
		Code:        p.Code,
		Discount:    discount,
		FinalAmount: amount - discount,
		SavingsPct:  SavingsPercent(discount, amount),
	}, nil
}

// reasonKey maps an eligibility error to a stable machine-readable key.
func reasonKey(err error) string {
	switch {
	case errors.Is(err, ErrNotActive):
		return "not_active"
	case errors.Is(err, ErrNotStarted):
		return "not_started"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrExhausted):
		return "usage_limit_reached"
	case errors.Is(err, ErrBelowMinimum):
		return "below_min_purchase"
	default:
		return "invalid"
	}
}
