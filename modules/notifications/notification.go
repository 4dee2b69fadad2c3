// Package notifications implements the marketplace notification fan-out
// pipeline: resolving a target audience, persisting one-or-many notification
// records, dispatching batched emails, and broadcasting real-time events.
// Email and broadcast delivery are best effort; persistence is the source of
// truth.
package notifications

import (
	"time"

	"github.com/razaaliwebdev/sello/pkg/email"
)

// Kind represents the notification type/severity.
type Kind string

const (
	KindInfo      Kind = "info"
	KindSuccess   Kind = "success"
	KindWarning   Kind = "warning"
	KindError     Kind = "error"
	KindPromotion Kind = "promotion"
)

// ValidKind reports whether k is a member of the closed kind set.
func ValidKind(k Kind) bool {
	switch k {
	case KindInfo, KindSuccess, KindWarning, KindError, KindPromotion:
		return true
	}
	return false
}

// EventName is the real-time event emitted for every fan-out.
const EventName = "new-notification"

// Notification is the persisted record.
//
// A nil Recipient marks a broadcast record visible to every user. Broadcast
// records are shared: the read flag lives on the single shared document, so
// one user marking it read marks it read for all users. This is a documented
// simplification, not per-user read receipts.
type Notification struct {
	ID          string         `bson:"_id" json:"id"`
	Title       string         `bson:"title" json:"title"`
	Message     string         `bson:"message" json:"message"`
	Kind        Kind           `bson:"kind" json:"kind"`
	Recipient   *string        `bson:"recipient" json:"recipient"`
	TargetRole  string         `bson:"targetRole,omitempty" json:"targetRole,omitempty"`
	ActionURL   string         `bson:"actionUrl,omitempty" json:"actionUrl,omitempty"`
	ActionLabel string         `bson:"actionLabel,omitempty" json:"actionLabel,omitempty"`
	Read        bool           `bson:"read" json:"read"`
	ReadAt      *time.Time     `bson:"readAt,omitempty" json:"readAt,omitempty"`
	ExpiresAt   *time.Time     `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	Metadata    map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedBy   string         `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt   time.Time      `bson:"createdAt" json:"createdAt"`
}

// IsExpired returns true if the notification has expired.
func (n *Notification) IsExpired() bool {
	if n.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*n.ExpiresAt)
}

// MarkAsRead flips the read flag and stamps the read timestamp.
func (n *Notification) MarkAsRead() {
	n.Read = true
	now := time.Now()
	n.ReadAt = &now
}

// VisibleTo reports whether the record shows up in the given user's
// personal queries: their own records plus every broadcast record.
func (n *Notification) VisibleTo(userID string) bool {
	return n.Recipient == nil || *n.Recipient == userID
}

// Payload is the compact projection broadcast to connected clients. It
// carries just enough to render a toast and bump the bell badge; for
// promotion events Metadata embeds the promotion snapshot so the client
// need not re-fetch.
type Payload struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	Kind        Kind           `json:"kind"`
	ActionURL   string         `json:"actionUrl,omitempty"`
	ActionLabel string         `json:"actionLabel,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Payload returns the broadcast projection of the record.
func (n *Notification) Payload() Payload {
	return Payload{
		ID:          n.ID,
		Title:       n.Title,
		Message:     n.Message,
		Kind:        n.Kind,
		ActionURL:   n.ActionURL,
		ActionLabel: n.ActionLabel,
		Metadata:    n.Metadata,
		CreatedAt:   n.CreatedAt,
	}
}

// Event is a fan-out source event: an admin-issued notification or a
// promotion announcement.
type Event struct {
	Title       string
	Message     string
	Kind        Kind
	ActionURL   string
	ActionLabel string
	ExpiresAt   *time.Time
	Metadata    map[string]any
	CreatedBy   string

	// Promo carries the promotion fields rendered into the email body for
	// promotion-kind events. Nil for plain notifications.
	Promo *email.PromotionEmail
}

// Result reports fan-out outcome. Created counts successfully persisted
// records; Intended is the resolved audience size, so callers can detect
// partial delivery. For a broadcast Intended is 1 (the shared record).
type Result struct {
	Notifications []Notification
	Created       int
	Intended      int
	EmailsSent    int
}
