package notifications

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/razaaliwebdev/sello/core"
	"github.com/razaaliwebdev/sello/pkg/audience"
	"github.com/razaaliwebdev/sello/pkg/authctx"
	"github.com/razaaliwebdev/sello/pkg/broadcast"
	"github.com/razaaliwebdev/sello/pkg/validator"
)

// Handler exposes the notification REST surface and the real-time stream.
type Handler struct {
	svc         *Service
	broadcaster broadcast.Broadcaster[Payload]
	logger      *slog.Logger
}

// NewHandler creates the notifications handler. The broadcaster is the same
// port the fan-out engine publishes on; the stream endpoint subscribes to
// the caller's channels.
func NewHandler(svc *Service, b broadcast.Broadcaster[Payload], l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	return &Handler{svc: svc, broadcaster: b, logger: l}
}

// Router mounts the notification routes.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	admin := authctx.RequireRole(authctx.RoleAdmin)

	r.With(admin).Post("/", h.create)
	r.With(admin).Get("/", h.listAll)
	r.With(admin).Delete("/{id}", h.delete)

	r.With(authctx.RequireAuth).Group(func(r chi.Router) {
		r.Get("/me", h.listMine)
		r.Put("/{id}/read", h.markRead)
		r.Put("/read-all", h.markAllRead)
		r.Get("/stream", h.stream)
	})

	return r
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	id, _ := authctx.FromContext(r.Context())

	var in CreateInput
	if err := core.DecodeJSON(r, &in); err != nil {
		core.JSONError(w, err)
		return
	}

	result, err := h.svc.Create(r.Context(), id.UserID, in)
	if err != nil {
		core.JSONError(w, mapError(err))
		return
	}

	core.JSONWithMeta(w, http.StatusCreated, result.Notifications, map[string]any{
		"created":    result.Created,
		"intended":   result.Intended,
		"emailsSent": result.EmailsSent,
	})
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	opts, page := listOptions(r)

	items, total, err := h.svc.ListAll(r.Context(), opts)
	if err != nil {
		core.JSONError(w, mapError(err))
		return
	}

	core.JSONWithMeta(w, http.StatusOK, items, map[string]any{
		"total": total,
		"page":  page,
		"limit": opts.Limit,
	})
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	id, _ := authctx.FromContext(r.Context())
	opts, page := listOptions(r)

	items, total, unread, err := h.svc.ListForUser(r.Context(), id.UserID, opts)
	if err != nil {
		core.JSONError(w, mapError(err))
		return
	}

	core.JSONWithMeta(w, http.StatusOK, items, map[string]any{
		"total":       total,
		"page":        page,
		"limit":       opts.Limit,
		"unreadCount": unread,
	})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	id, _ := authctx.FromContext(r.Context())

	if err := h.svc.MarkRead(r.Context(), id.UserID, chi.URLParam(r, "id")); err != nil {
		core.JSONError(w, mapError(err))
		return
	}
	core.JSON(w, http.StatusOK, map[string]any{"read": true})
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	id, _ := authctx.FromContext(r.Context())

	flipped, err := h.svc.MarkAllRead(r.Context(), id.UserID)
	if err != nil {
		core.JSONError(w, mapError(err))
		return
	}
	core.JSON(w, http.StatusOK, map[string]any{"marked": flipped})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		core.JSONError(w, mapError(err))
		return
	}
	core.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func listOptions(r *http.Request) (ListOptions, int) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	opts := ListOptions{
		Limit:      limit,
		Offset:     (page - 1) * limit,
		OnlyUnread: q.Get("unread") == "true",
	}
	if k := Kind(q.Get("kind")); k != "" && ValidKind(k) {
		opts.Kind = k
	}
	return opts, page
}

// mapError converts service errors onto the HTTP error taxonomy. Unknown
// errors stay generic 500s so internal detail never leaks.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case validator.IsValidationError(err):
		return err
	case errors.Is(err, ErrNotificationNotFound):
		return core.ErrNotFound
	case errors.Is(err, ErrNotOwned):
		return core.ErrForbidden
	case errors.Is(err, audience.ErrRecipientNotFound):
		return core.NewHTTPError(http.StatusBadRequest, "recipient_not_found")
	case errors.Is(err, audience.ErrUnknownAudience),
		errors.Is(err, audience.ErrMissingRecipient):
		return core.ErrBadRequest
	default:
		return err
	}
}
