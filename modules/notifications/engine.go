package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/razaaliwebdev/sello/pkg/async"
	"github.com/razaaliwebdev/sello/pkg/audience"
	"github.com/razaaliwebdev/sello/pkg/broadcast"
	"github.com/razaaliwebdev/sello/pkg/email"
	"github.com/razaaliwebdev/sello/pkg/logger"
)

// DefaultBatchSize bounds concurrent write and send pressure during role
// fan-out.
const DefaultBatchSize = 100

// Engine runs the fan-out pipeline: persist one-or-many records, then email
// and broadcast stages. The broadcaster is an injected port, never a global
// handle, so the engine is testable with a mute implementation.
type Engine struct {
	storage     Storage
	broadcaster broadcast.Broadcaster[Payload]
	sender      email.Sender
	emailOn     bool
	baseURL     string
	batchSize   int
	logger      *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithBatchSize overrides the fan-out batch size.
func WithBatchSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithBroadcaster injects the real-time broadcast port.
func WithBroadcaster(b broadcast.Broadcaster[Payload]) EngineOption {
	return func(e *Engine) {
		if b != nil {
			e.broadcaster = b
		}
	}
}

// WithEmail injects the email transport and the process-wide toggle.
func WithEmail(sender email.Sender, enabled bool) EngineOption {
	return func(e *Engine) {
		e.sender = sender
		e.emailOn = enabled
	}
}

// WithBaseURL sets the public origin prepended to relative action links in
// email bodies. In-app payloads keep the relative path.
func WithBaseURL(u string) EngineOption {
	return func(e *Engine) {
		e.baseURL = u
	}
}

// NewEngine creates a fan-out engine over the given storage.
func NewEngine(storage Storage, opts ...EngineOption) *Engine {
	e := &Engine{
		storage:     storage,
		broadcaster: broadcast.NopBroadcaster[Payload]{},
		batchSize:   DefaultBatchSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dispatch persists the event for the resolved audience, then runs the
// email and broadcast stages concurrently. The stages are independently
// fallible and never fail the dispatch; their errors are logged with
// context. Per-recipient persistence failures during role fan-out are
// logged and skipped, so partial delivery is reported through
// Result.Created rather than an error.
func (e *Engine) Dispatch(ctx context.Context, event Event, res audience.Resolution) (Result, error) {
	if res.Truncated {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "audience truncated at member cap, delivery is partial",
			slog.String("audience", string(res.Audience)),
			slog.Int("members", len(res.Members)),
		)
	}

	result, err := e.persist(ctx, event, res)
	if err != nil {
		return result, err
	}

	emailFut := async.Run(ctx, func(ctx context.Context) (int, error) {
		return e.dispatchEmails(ctx, event, res.Members), nil
	})
	broadcastFut := async.Run(ctx, func(ctx context.Context) (int, error) {
		e.broadcastEvent(ctx, result, res)
		return 0, nil
	})

	sent, _ := emailFut.Await()
	_, _ = broadcastFut.Await()
	result.EmailsSent = sent

	return result, nil
}

// persist creates the notification records for the resolution: one shared
// record for the broadcast sentinel, one for an explicit recipient, one per
// member in batches for a role set.
func (e *Engine) persist(ctx context.Context, event Event, res audience.Resolution) (Result, error) {
	now := time.Now()

	if res.Broadcast {
		n := e.record(event, nil, "", now)
		if err := e.storage.Create(ctx, n); err != nil {
			return Result{Intended: 1}, fmt.Errorf("notifications: store broadcast record: %w", err)
		}
		return Result{Notifications: []Notification{n}, Created: 1, Intended: 1}, nil
	}

	if res.Audience == audience.User {
		if len(res.Members) != 1 {
			return Result{}, fmt.Errorf("notifications: explicit recipient resolution carries %d members", len(res.Members))
		}
		m := res.Members[0]
		n := e.record(event, &m.ID, "", now)
		if err := e.storage.Create(ctx, n); err != nil {
			return Result{Intended: 1}, fmt.Errorf("notifications: store recipient record: %w", err)
		}
		return Result{Notifications: []Notification{n}, Created: 1, Intended: 1}, nil
	}

	role, _ := res.Audience.Role()
	result := Result{Intended: len(res.Members)}

	for batch := range e.batches(res.Members) {
		created := e.persistBatch(ctx, event, batch, string(role), now)
		result.Notifications = append(result.Notifications, created...)
		result.Created += len(created)
	}

	return result, nil
}

// persistBatch creates one record per member; a failed write is logged with
// recipient context and skipped, never aborting the batch.
func (e *Engine) persistBatch(ctx context.Context, event Event, members []audience.Member, role string, now time.Time) []Notification {
	created := make([]Notification, 0, len(members))
	for _, m := range members {
		n := e.record(event, &m.ID, role, now)
		if err := e.storage.Create(ctx, n); err != nil {
			e.logger.LogAttrs(ctx, slog.LevelError, "failed to store notification for recipient",
				logger.UserID(m.ID),
				logger.NotificationID(n.ID),
				logger.Error(err),
			)
			continue
		}
		created = append(created, n)
	}
	return created
}

// batches yields the member set in fixed-size chunks. A failed batch never
// prevents subsequent batches from running.
func (e *Engine) batches(members []audience.Member) func(func([]audience.Member) bool) {
	return func(yield func([]audience.Member) bool) {
		for start := 0; start < len(members); start += e.batchSize {
			end := start + e.batchSize
			if end > len(members) {
				end = len(members)
			}
			if !yield(members[start:end]) {
				return
			}
		}
	}
}

func (e *Engine) record(event Event, recipient *string, targetRole string, now time.Time) Notification {
	return Notification{
		ID:          uuid.New().String(),
		Title:       event.Title,
		Message:     event.Message,
		Kind:        event.Kind,
		Recipient:   recipient,
		TargetRole:  targetRole,
		ActionURL:   event.ActionURL,
		ActionLabel: event.ActionLabel,
		ExpiresAt:   event.ExpiresAt,
		Metadata:    event.Metadata,
		CreatedBy:   event.CreatedBy,
		CreatedAt:   now,
	}
}

// dispatchEmails sends the rendered message to every eligible member of the
// resolved audience. Members without an address, without a verified email or
// with a deactivated account are skipped silently; a failed send is logged
// and excluded from the count without aborting the rest. Fire and forget:
// no retry queue.
func (e *Engine) dispatchEmails(ctx context.Context, event Event, members []audience.Member) int {
	if !e.emailOn || e.sender == nil || len(members) == 0 {
		return 0
	}

	body, err := e.renderBody(event)
	if err != nil {
		e.logger.LogAttrs(ctx, slog.LevelError, "failed to render notification email",
			slog.String("title", event.Title),
			logger.Error(err),
		)
		return 0
	}

	var sent atomic.Int64
	for batch := range e.batches(members) {
		var wg sync.WaitGroup
		for _, m := range batch {
			if m.Email == "" || !m.Verified || !m.Active {
				continue
			}
			wg.Add(1)
			go func(m audience.Member) {
				defer wg.Done()
				err := e.sender.SendEmail(ctx, email.SendEmailParams{
					SendTo:   m.Email,
					Subject:  event.Title,
					BodyHTML: body,
					Tag:      string(event.Kind),
				})
				if err != nil {
					e.logger.LogAttrs(ctx, slog.LevelError, "failed to send notification email",
						logger.UserID(m.ID),
						logger.Recipient(m.Email),
						logger.Error(err),
					)
					return
				}
				sent.Add(1)
			}(m)
		}
		wg.Wait()
	}

	return int(sent.Load())
}

func (e *Engine) renderBody(event Event) (string, error) {
	if event.Kind == KindPromotion && event.Promo != nil {
		p := *event.Promo
		p.CTAURL = e.emailLink(p.CTAURL)
		return email.RenderPromotion(p)
	}
	return email.RenderNotification(email.NotificationEmail{
		Title:       event.Title,
		Message:     event.Message,
		ActionURL:   e.emailLink(event.ActionURL),
		ActionLabel: event.ActionLabel,
	})
}

// emailLink resolves a relative action path against the configured public
// origin. Absolute links pass through unchanged.
func (e *Engine) emailLink(ref string) string {
	if ref == "" || e.baseURL == "" {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() {
		return ref
	}
	base, err := url.Parse(e.baseURL)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}

// broadcastEvent emits the compact projection on every matching channel plus
// the admin feed. Emission is best effort: a failed publish is logged and
// skipped, never failing the request. Clients that miss the live event learn
// of the notification on their next poll.
func (e *Engine) broadcastEvent(ctx context.Context, result Result, res audience.Resolution) {
	if len(result.Notifications) == 0 {
		return
	}

	// For role fan-out every record carries the same projection apart from
	// its ID; one representative event per channel is emitted, matching how
	// clients consume the stream.
	payload := result.Notifications[0].Payload()

	channels := append([]string{}, res.Channels...)
	channels = append(channels, audience.ChannelAdminFeed)

	for _, ch := range channels {
		if err := e.broadcaster.Publish(ctx, ch, payload); err != nil {
			e.logger.LogAttrs(ctx, slog.LevelWarn, "failed to broadcast notification event",
				logger.Channel(ch),
				logger.NotificationID(payload.ID),
				logger.Error(err),
			)
		}
	}
}
