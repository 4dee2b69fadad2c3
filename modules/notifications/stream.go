package notifications

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/razaaliwebdev/sello/core"
	"github.com/razaaliwebdev/sello/pkg/audience"
	"github.com/razaaliwebdev/sello/pkg/authctx"
	"github.com/razaaliwebdev/sello/pkg/broadcast"
	"github.com/razaaliwebdev/sello/pkg/logger"
)

// stream serves the notification bell's live feed over server-sent events.
// The caller is subscribed to its personal channel, its role channel and
// the global channel; admins additionally receive the fan-out firehose.
// There is no replay: a client that misses an event catches up on its next
// poll of the read API.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	if h.broadcaster == nil {
		core.JSONError(w, core.NewHTTPError(http.StatusServiceUnavailable, "stream_unavailable"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		core.JSONError(w, core.NewHTTPError(http.StatusServiceUnavailable, "stream_unavailable"))
		return
	}

	id, _ := authctx.FromContext(r.Context())

	channels := []string{
		audience.ChannelGlobal,
		audience.UserChannel(id.UserID),
	}
	if id.Role == authctx.RoleUser || id.Role == authctx.RoleDealer {
		channels = append(channels, audience.RoleChannel(id.Role))
	}
	if id.Role == authctx.RoleAdmin {
		channels = append(channels, audience.ChannelAdminFeed)
	}

	ctx := r.Context()
	events := make(chan broadcast.Message[Payload])
	subs := make([]broadcast.Subscriber[Payload], 0, len(channels))
	for _, ch := range channels {
		sub, err := h.broadcaster.Subscribe(ctx, ch)
		if err != nil {
			h.logger.LogAttrs(ctx, slog.LevelWarn, "failed to subscribe to notification channel",
				logger.Channel(ch),
				logger.UserID(id.UserID),
				logger.Error(err),
			)
			continue
		}
		subs = append(subs, sub)

		go func(sub broadcast.Subscriber[Payload]) {
			for msg := range sub.Events() {
				select {
				case events <- msg:
				case <-ctx.Done():
					return
				}
			}
		}(sub)
	}
	defer func() {
		for _, sub := range subs {
			_ = sub.Close()
		}
	}()

	// The server's write timeout would cut the hold-open response; clear
	// the deadline for the lifetime of this stream.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.LogAttrs(ctx, slog.LevelWarn, "failed to clear stream write deadline",
			logger.UserID(id.UserID),
			logger.Error(err),
		)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-events:
			data, err := json.Marshal(msg.Payload)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", EventName, data)
			flusher.Flush()
		}
	}
}
