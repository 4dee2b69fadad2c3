package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/razaaliwebdev/sello/pkg/audience"
	"github.com/razaaliwebdev/sello/pkg/validator"
)

// ErrNotOwned is returned when a user tries to mark a notification that is
// addressed to somebody else.
var ErrNotOwned = errors.New("notifications: notification does not belong to user")

// Resolver is the audience resolution port consumed by the service.
type Resolver interface {
	Resolve(ctx context.Context, sel audience.Selector) (audience.Resolution, error)
}

// Service is the handler-facing surface: admin-issued fan-out plus the
// per-user read-state tracker backing the bell widget.
type Service struct {
	storage  Storage
	resolver Resolver
	engine   *Engine
}

// NewService wires storage, the audience resolver and the fan-out engine.
func NewService(storage Storage, resolver Resolver, engine *Engine) *Service {
	return &Service{storage: storage, resolver: resolver, engine: engine}
}

// Engine exposes the fan-out engine for other modules (promotions announce
// through the same pipeline).
func (s *Service) Engine() *Engine { return s.engine }

// Resolver exposes the audience resolver for other modules.
func (s *Service) Resolver() Resolver { return s.resolver }

// CreateInput is an admin-issued notification request.
type CreateInput struct {
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Kind           string         `json:"kind"`
	Audience       string         `json:"audience"`
	RecipientID    string         `json:"recipientId,omitempty"`
	RecipientEmail string         `json:"recipientEmail,omitempty"`
	ActionURL      string         `json:"actionUrl,omitempty"`
	ActionLabel    string         `json:"actionLabel,omitempty"`
	ExpiresAt      *time.Time     `json:"expiresAt,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Validate rejects a malformed request before any mutation.
func (in CreateInput) Validate() error {
	rules := []validator.Rule{
		validator.Required("title", in.Title),
		validator.MaxLen("title", in.Title, 200),
		validator.Required("message", in.Message),
		validator.OneOf("kind", Kind(in.Kind), KindInfo, KindSuccess, KindWarning, KindError, KindPromotion),
	}
	if aud, err := audience.Parse(in.Audience); err != nil {
		rules = append(rules, validator.Rule{
			Check: func() bool { return false },
			Error: validator.ValidationError{Field: "audience", Message: "must be one of all, buyers, sellers, dealers, user"},
		})
	} else if aud == audience.User {
		rules = append(rules, validator.Rule{
			Check: func() bool { return in.RecipientID != "" || in.RecipientEmail != "" },
			Error: validator.ValidationError{Field: "recipient", Message: "recipient id or email is required"},
		})
	}
	return validator.Apply(rules...)
}

// Create resolves the audience and fans the notification out through the
// engine. Persistence failures for individual recipients reduce the
// reported count instead of failing the call.
func (s *Service) Create(ctx context.Context, createdBy string, in CreateInput) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}

	aud, err := audience.Parse(in.Audience)
	if err != nil {
		return Result{}, err
	}

	res, err := s.resolver.Resolve(ctx, audience.Selector{
		Audience: aud,
		UserID:   in.RecipientID,
		Email:    in.RecipientEmail,
	})
	if err != nil {
		return Result{}, err
	}

	return s.engine.Dispatch(ctx, Event{
		Title:       in.Title,
		Message:     in.Message,
		Kind:        Kind(in.Kind),
		ActionURL:   in.ActionURL,
		ActionLabel: in.ActionLabel,
		ExpiresAt:   in.ExpiresAt,
		Metadata:    in.Metadata,
		CreatedBy:   createdBy,
	}, res)
}

// ListAll returns notifications across all users. Admin surface.
func (s *Service) ListAll(ctx context.Context, opts ListOptions) ([]Notification, int64, error) {
	return s.storage.ListAll(ctx, opts)
}

// ListForUser returns the caller's visible notifications plus their unread
// count, which is derived from the same visibility query rather than stored.
func (s *Service) ListForUser(ctx context.Context, userID string, opts ListOptions) ([]Notification, int64, int64, error) {
	items, total, err := s.storage.ListForUser(ctx, userID, opts)
	if err != nil {
		return nil, 0, 0, err
	}
	unread, err := s.storage.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, 0, err
	}
	return items, total, unread, nil
}

// MarkRead flips the read flag on one record, idempotently.
//
// A record addressed to a different user is rejected with ErrNotOwned. A
// broadcast record has no owner; marking it read flips the shared record
// for everyone (see the Notification doc comment).
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	n, err := s.storage.Get(ctx, notificationID)
	if err != nil {
		return err
	}
	if n.Recipient != nil && *n.Recipient != userID {
		return ErrNotOwned
	}
	if err := s.storage.MarkRead(ctx, notificationID, time.Now()); err != nil {
		return fmt.Errorf("notifications: mark read: %w", err)
	}
	return nil
}

// MarkAllRead flips every currently-unread record visible to the user in
// one bulk update and reports how many were flipped.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.storage.MarkAllReadForUser(ctx, userID, time.Now())
}

// CountUnread returns the user's derived unread count.
func (s *Service) CountUnread(ctx context.Context, userID string) (int64, error) {
	return s.storage.CountUnread(ctx, userID)
}

// Delete removes a notification. Admin surface.
func (s *Service) Delete(ctx context.Context, notificationID string) error {
	return s.storage.Delete(ctx, notificationID)
}
