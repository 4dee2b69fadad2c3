package promotions_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razaaliwebdev/sello/modules/promotions"
	"github.com/razaaliwebdev/sello/pkg/authctx"
)

func newTestServer(t *testing.T) (*httptest.Server, *promotions.Service) {
	t.Helper()

	store := promotions.NewMemoryStorage()
	svc := promotions.NewService(store, nil, nil)

	r := chi.NewRouter()
	r.Use(authctx.Middleware)
	r.Mount("/promotions", promotions.NewHandler(svc, nil).Router())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc
}

func doJSON(t *testing.T, method, url string, body any, role string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(authctx.HeaderUserID, "tester-1")
		req.Header.Set(authctx.HeaderRole, role)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func createBody() map[string]any {
	now := time.Now()
	return map[string]any{
		"title":          "Summer Sale",
		"code":           "SUMMER20",
		"discountType":   "percentage",
		"discountValue":  20,
		"usageLimit":     100,
		"startsAt":       now.Format(time.RFC3339),
		"endsAt":         now.Add(7 * 24 * time.Hour).Format(time.RFC3339),
		"targetAudience": "all",
		"minPurchase":    50,
		"maxDiscount":    30,
	}
}

func TestHandlerCreate(t *testing.T) {
	t.Parallel()

	t.Run("admin creates promotion", func(t *testing.T) {
		t.Parallel()

		srv, _ := newTestServer(t)
		resp := doJSON(t, http.MethodPost, srv.URL+"/promotions", createBody(), "admin")
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("non-admin forbidden", func(t *testing.T) {
		t.Parallel()

		srv, _ := newTestServer(t)
		resp := doJSON(t, http.MethodPost, srv.URL+"/promotions", createBody(), "user")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("anonymous unauthorized", func(t *testing.T) {
		t.Parallel()

		srv, _ := newTestServer(t)
		resp := doJSON(t, http.MethodPost, srv.URL+"/promotions", createBody(), "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("validation failure is 400 with details", func(t *testing.T) {
		t.Parallel()

		srv, _ := newTestServer(t)
		body := createBody()
		body["discountValue"] = 150

		resp := doJSON(t, http.MethodPost, srv.URL+"/promotions", body, "admin")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var envelope struct {
			Error struct {
				Code    string              `json:"code"`
				Details map[string][]string `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
		assert.Equal(t, "validation_error", envelope.Error.Code)
		assert.Contains(t, envelope.Error.Details, "discountValue")
	})

	t.Run("duplicate code is 409", func(t *testing.T) {
		t.Parallel()

		srv, _ := newTestServer(t)
		resp := doJSON(t, http.MethodPost, srv.URL+"/promotions", createBody(), "admin")
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp = doJSON(t, http.MethodPost, srv.URL+"/promotions", createBody(), "admin")
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestHandlerPublicEndpoints(t *testing.T) {
	t.Parallel()

	srv, svc := newTestServer(t)
	_, err := svc.Create(context.Background(), "admin-1", validInput())
	require.NoError(t, err)

	t.Run("active list needs no auth", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/promotions/active")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var envelope struct {
			Data []promotions.PublicView `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
		require.Len(t, envelope.Data, 1)
		assert.Equal(t, "SUMMER20", envelope.Data[0].Code)
	})

	t.Run("validate computes discount", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/promotions/validate",
			map[string]any{"code": "SUMMER20", "amount": 200}, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var envelope struct {
			Data promotions.Validation `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
		assert.True(t, envelope.Data.Valid)
		assert.Equal(t, 30.0, envelope.Data.Discount)
	})

	t.Run("apply unknown code is 404", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/promotions/apply",
			map[string]any{"code": "NOPE", "amount": 200}, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("apply below minimum reports reason key", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/promotions/apply",
			map[string]any{"code": "SUMMER20", "amount": 40}, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var envelope struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
		assert.Equal(t, "below_min_purchase", envelope.Error.Code)
	})

	t.Run("apply increments usage", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/promotions/apply",
			map[string]any{"code": "SUMMER20", "amount": 200}, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var envelope struct {
			Data promotions.ApplyResult `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
		assert.Equal(t, 170.0, envelope.Data.FinalAmount)
	})
}

func TestHandlerAdminLifecycle(t *testing.T) {
	t.Parallel()

	srv, svc := newTestServer(t)
	p, err := svc.Create(context.Background(), "admin-1", validInput())
	require.NoError(t, err)

	t.Run("get by id", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, fmt.Sprintf("%s/promotions/%s", srv.URL, p.ID), nil, "admin")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("missing id is 404", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/promotions/missing", nil, "admin")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("list carries counts meta", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/promotions?status=active", nil, "admin")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var envelope struct {
			Meta struct {
				Total  int64             `json:"total"`
				Counts promotions.Counts `json:"counts"`
			} `json:"meta"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
		assert.EqualValues(t, 1, envelope.Meta.Total)
		assert.EqualValues(t, 1, envelope.Meta.Counts.Active)
	})

	t.Run("stats endpoint", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/promotions/stats", nil, "admin")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("delete then gone", func(t *testing.T) {
		resp := doJSON(t, http.MethodDelete, fmt.Sprintf("%s/promotions/%s", srv.URL, p.ID), nil, "admin")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/promotions/%s", srv.URL, p.ID), nil, "admin")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
