package notifications

import (
	"context"
	"errors"
	"time"
)

// ErrNotificationNotFound is returned when a notification is not found.
var ErrNotificationNotFound = errors.New("notifications: notification not found")

// ListOptions provides filtering and pagination for listing notifications.
type ListOptions struct {
	Limit      int
	Offset     int
	OnlyUnread bool
	Kind       Kind // zero value = any kind
}

// Storage handles notification persistence and retrieval.
//
// User-scoped queries match (recipient = user OR recipient = null): a user
// sees their personal records plus every broadcast record exactly once.
type Storage interface {
	// Create stores a new notification.
	Create(ctx context.Context, n Notification) error

	// Get retrieves a single notification by ID.
	Get(ctx context.Context, id string) (*Notification, error)

	// ListAll returns notifications across all users, newest first, with
	// the total match count for pagination. Admin surface.
	ListAll(ctx context.Context, opts ListOptions) ([]Notification, int64, error)

	// ListForUser returns the notifications visible to a user, newest
	// first, with the total match count.
	ListForUser(ctx context.Context, userID string, opts ListOptions) ([]Notification, int64, error)

	// MarkRead flips the read flag on one record, stamping readAt.
	MarkRead(ctx context.Context, id string, readAt time.Time) error

	// MarkAllReadForUser flips every unread record visible to the user in
	// one bulk update and reports how many were flipped.
	MarkAllReadForUser(ctx context.Context, userID string, readAt time.Time) (int64, error)

	// CountUnread returns the unread count visible to the user.
	CountUnread(ctx context.Context, userID string) (int64, error)

	// Delete removes a notification by ID.
	Delete(ctx context.Context, id string) error
}
