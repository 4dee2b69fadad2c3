package promotions

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/razaaliwebdev/sello/core"
	"github.com/razaaliwebdev/sello/pkg/authctx"
	"github.com/razaaliwebdev/sello/pkg/validator"
)

// Handler exposes the promotion REST surface: admin CRUD plus the public
// validate/active/apply endpoints used by checkout.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates the promotions handler.
func NewHandler(svc *Service, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	return &Handler{svc: svc, logger: l}
}

// Router mounts the promotion routes. Public endpoints are registered
// before the parameterized admin routes so /active, /stats, /validate and
// /apply never match as IDs.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/active", h.active)
	r.Post("/validate", h.validate)
	r.Post("/apply", h.apply)

	admin := authctx.RequireRole(authctx.RoleAdmin)
	r.Group(func(r chi.Router) {
		r.Use(admin)
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/stats", h.stats)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
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

	p, err := h.svc.Create(r.Context(), id.UserID, in)
	if err != nil {
		core.JSONError(w, h.mapError(err))
		return
	}
	core.JSON(w, http.StatusCreated, p)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f, page := listFilter(r)

	items, total, counts, err := h.svc.List(r.Context(), f)
	if err != nil {
		core.JSONError(w, h.mapError(err))
		return
	}

	core.JSONWithMeta(w, http.StatusOK, items, map[string]any{
		"total":  total,
		"page":   page,
		"limit":  f.Limit,
		"counts": counts,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.JSONError(w, h.mapError(err))
		return
	}
	core.JSON(w, http.StatusOK, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if err := core.DecodeJSON(r, &in); err != nil {
		core.JSONError(w, err)
		return
	}

	p, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		core.JSONError(w, h.mapError(err))
		return
	}
	core.JSON(w, http.StatusOK, p)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		core.JSONError(w, h.mapError(err))
		return
	}
	core.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.Stats(r.Context())
	if err != nil {
		core.JSONError(w, h.mapError(err))
		return
	}
	core.JSON(w, http.StatusOK, counts)
}

func (h *Handler) active(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Active(r.Context())
	if err != nil {
		core.JSONError(w, h.mapError(err))
		return
	}
	core.JSON(w, http.StatusOK, items)
}

// redeemRequest is the body shared by validate and apply.
type redeemRequest struct {
	Code   string  `json:"code"`
	Amount float64 `json:"amount"`
}

func (req redeemRequest) validate() error {
	return validator.Apply(
		validator.Required("code", req.Code),
		validator.Min("amount", req.Amount, 0),
	)
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := core.DecodeJSON(r, &req); err != nil {
		core.JSONError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		core.JSONError(w, err)
		return
	}

	res, err := h.svc.ValidateCode(r.Context(), req.Code, req.Amount)
	if err != nil {
		core.JSONError(w, h.mapError(err))
		return
	}
	core.JSON(w, http.StatusOK, res)
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := core.DecodeJSON(r, &req); err != nil {
		core.JSONError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		core.JSONError(w, err)
		return
	}

	res, err := h.svc.Apply(r.Context(), req.Code, req.Amount)
	if err != nil {
		core.JSONError(w, h.mapError(err))
		return
	}
	core.JSON(w, http.StatusOK, res)
}

func listFilter(r *http.Request) (ListFilter, int) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	return ListFilter{
		Status:   Status(q.Get("status")),
		Audience: q.Get("audience"),
		Search:   q.Get("search"),
		Limit:    limit,
		Offset:   (page - 1) * limit,
	}, page
}

// mapError converts service errors onto the HTTP error taxonomy.
// Redemption failures carry their reason as the error key; anything
// unrecognized stays a generic 500.
func (h *Handler) mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case validator.IsValidationError(err):
		return err
	case errors.Is(err, ErrPromotionNotFound):
		return core.ErrNotFound
	case errors.Is(err, ErrCodeTaken):
		return core.NewHTTPError(http.StatusConflict, "code_taken")
	case errors.Is(err, ErrNotActive),
		errors.Is(err, ErrNotStarted),
		errors.Is(err, ErrExpired),
		errors.Is(err, ErrExhausted),
		errors.Is(err, ErrBelowMinimum):
		return core.NewHTTPError(http.StatusBadRequest, reasonKey(err))
	default:
		return err
	}
}
