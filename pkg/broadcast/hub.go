package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultBufferSize = 64

// Hub is the in-memory Broadcaster implementation.
type Hub[T any] struct {
	bufferSize int
	channels   map[string]map[string]*subscriber[T]
	mu         sync.RWMutex
	closed     bool
	wg         sync.WaitGroup
}

// HubOption configures a Hub.
type HubOption[T any] func(*Hub[T])

// WithBufferSize sets the per-subscriber buffer size. A subscriber whose
// buffer is full misses messages and is evicted.
func WithBufferSize[T any](n int) HubOption[T] {
	return func(h *Hub[T]) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// NewHub creates a new in-memory broadcast hub.
func NewHub[T any](opts ...HubOption[T]) *Hub[T] {
	h := &Hub[T]{
		bufferSize: defaultBufferSize,
		channels:   make(map[string]map[string]*subscriber[T]),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub[T]) Publish(ctx context.Context, channel string, payload T) error {
	if channel == "" {
		return ErrEmptyChannel
	}

	msg := Message[T]{
		ID:        uuid.New().String(),
		Channel:   channel,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrHubClosed
	}
	subs := make([]*subscriber[T], 0, len(h.channels[channel]))
	for _, sub := range h.channels[channel] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if !sub.send(msg) {
			// Evict asynchronously so a slow consumer cannot hold up this
			// publish via write-lock contention.
			go h.unsubscribe(sub)
		}
	}

	return nil
}

func (h *Hub[T]) Subscribe(ctx context.Context, channel string) (Subscriber[T], error) {
	if channel == "" {
		return nil, ErrEmptyChannel
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}

	sub := &subscriber[T]{
		id:      uuid.New().String(),
		channel: channel,
		events:  make(chan Message[T], h.bufferSize),
		hub:     h,
	}

	chanSubs, ok := h.channels[channel]
	if !ok {
		chanSubs = make(map[string]*subscriber[T])
		h.channels[channel] = chanSubs
	}
	chanSubs[sub.id] = sub
	h.mu.Unlock()

	if ctx.Done() != nil {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			<-ctx.Done()
			_ = sub.Close()
		}()
	}

	return sub, nil
}

func (h *Hub[T]) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Close shuts the hub down and closes all subscribers. Idempotent.
func (h *Hub[T]) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true

	var subs []*subscriber[T]
	for _, chanSubs := range h.channels {
		for _, sub := range chanSubs {
			subs = append(subs, sub)
		}
	}
	clear(h.channels)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.closeChan()
	}
	return nil
}

func (h *Hub[T]) unsubscribe(sub *subscriber[T]) {
	h.mu.Lock()
	chanSubs, ok := h.channels[sub.channel]
	if ok {
		delete(chanSubs, sub.id)
		if len(chanSubs) == 0 {
			delete(h.channels, sub.channel)
		}
	}
	h.mu.Unlock()

	sub.closeChan()
}

type subscriber[T any] struct {
	id      string
	channel string
	events  chan Message[T]
	hub     *Hub[T]

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func (s *subscriber[T]) Events() <-chan Message[T] { return s.events }

func (s *subscriber[T]) Channel() string { return s.channel }

func (s *subscriber[T]) ID() string { return s.id }

func (s *subscriber[T]) Close() error {
	s.hub.unsubscribe(s)
	return nil
}

// send delivers msg without blocking. Reports false if the subscriber is
// closed or its buffer is full.
func (s *subscriber[T]) send(msg Message[T]) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.events <- msg:
		return true
	default:
		return false
	}
}

func (s *subscriber[T]) closeChan() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()
	})
}
