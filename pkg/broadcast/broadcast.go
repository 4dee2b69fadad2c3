// Package broadcast provides an in-process publish/subscribe hub with named
// channels. Delivery is best effort: sends never block the publisher, and
// subscribers that stop draining their buffer are dropped.
package broadcast

import (
	"context"
	"time"
)

// Message wraps a payload published on a channel.
type Message[T any] struct {
	ID        string
	Channel   string
	Payload   T
	Timestamp time.Time
}

// Subscriber receives messages from one channel of a Broadcaster.
type Subscriber[T any] interface {
	// Events returns the channel on which published messages arrive.
	// It is closed when the subscriber is closed or evicted.
	Events() <-chan Message[T]

	// Channel returns the subscribed channel name.
	Channel() string

	// ID returns the unique subscriber ID.
	ID() string

	// Close unsubscribes and releases resources. Idempotent.
	Close() error
}

// Broadcaster publishes messages to all subscribers of a named channel.
// Implementations must be safe for concurrent use.
type Broadcaster[T any] interface {
	// Publish sends payload to every current subscriber of the channel.
	// Publishing to a channel with no subscribers is not an error.
	Publish(ctx context.Context, channel string, payload T) error

	// Subscribe registers a new subscriber on the channel. The subscription
	// is cleaned up when the context is cancelled or Close is called.
	Subscribe(ctx context.Context, channel string) (Subscriber[T], error)

	// SubscriberCount reports the number of active subscribers on a channel.
	SubscriberCount(channel string) int

	// Close shuts the broadcaster down and closes all subscribers.
	Close() error
}

// NopBroadcaster discards every publish. Useful in tests and when the
// real-time layer is disabled.
type NopBroadcaster[T any] struct{}

func (NopBroadcaster[T]) Publish(ctx context.Context, channel string, payload T) error { return nil }

func (NopBroadcaster[T]) Subscribe(ctx context.Context, channel string) (Subscriber[T], error) {
	return nil, ErrHubClosed
}

func (NopBroadcaster[T]) SubscriberCount(channel string) int { return 0 }

func (NopBroadcaster[T]) Close() error { return nil }
