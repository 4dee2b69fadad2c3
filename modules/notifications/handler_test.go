package notifications_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razaaliwebdev/sello/modules/notifications"
	"github.com/razaaliwebdev/sello/pkg/audience"
	"github.com/razaaliwebdev/sello/pkg/authctx"
	"github.com/razaaliwebdev/sello/pkg/broadcast"
)

type handlerFixture struct {
	srv   *httptest.Server
	store *notifications.MemoryStorage
	hub   *broadcast.Hub[notifications.Payload]
}

func newHandlerFixture(t *testing.T, resolver notifications.Resolver) handlerFixture {
	t.Helper()

	store := notifications.NewMemoryStorage()
	hub := broadcast.NewHub[notifications.Payload]()
	t.Cleanup(func() { hub.Close() })

	engine := notifications.NewEngine(store, notifications.WithBroadcaster(hub))
	svc := notifications.NewService(store, resolver, engine)

	r := chi.NewRouter()
	r.Use(authctx.Middleware)
	r.Mount("/notifications", notifications.NewHandler(svc, hub, nil).Router())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return handlerFixture{srv: srv, store: store, hub: hub}
}

func request(t *testing.T, method, url string, body any, userID, role string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(authctx.HeaderUserID, userID)
		req.Header.Set(authctx.HeaderRole, role)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestNotificationRoutes(t *testing.T) {
	t.Parallel()

	resolver := stubResolver{res: audience.Resolution{
		Audience:  audience.All,
		Broadcast: true,
		Channels:  []string{audience.ChannelGlobal},
	}}

	createBody := map[string]any{
		"title":    "Scheduled maintenance",
		"message":  "Expect downtime at midnight.",
		"kind":     "info",
		"audience": "all",
	}

	t.Run("create requires admin", func(t *testing.T) {
		t.Parallel()
		fx := newHandlerFixture(t, resolver)

		resp := request(t, http.MethodPost, fx.srv.URL+"/notifications", createBody, "u1", "user")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = request(t, http.MethodPost, fx.srv.URL+"/notifications", createBody, "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("admin create reports fan-out meta", func(t *testing.T) {
		t.Parallel()
		fx := newHandlerFixture(t, resolver)

		resp := request(t, http.MethodPost, fx.srv.URL+"/notifications", createBody, "admin-1", "admin")
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var envelope struct {
			Meta map[string]any `json:"meta"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
		assert.EqualValues(t, 1, envelope.Meta["created"])
		assert.EqualValues(t, 1, envelope.Meta["intended"])
	})

	t.Run("me listing includes unread count", func(t *testing.T) {
		t.Parallel()
		fx := newHandlerFixture(t, resolver)
		seedNotification(t, fx.store, strPtr("u1"), false)
		seedNotification(t, fx.store, nil, false)

		resp := request(t, http.MethodGet, fx.srv.URL+"/notifications/me", nil, "u1", "user")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var envelope struct {
			Data []notifications.Notification `json:"data"`
			Meta map[string]any               `json:"meta"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
		assert.Len(t, envelope.Data, 2)
		assert.EqualValues(t, 2, envelope.Meta["unreadCount"])
	})

	t.Run("mark read and read-all", func(t *testing.T) {
		t.Parallel()
		fx := newHandlerFixture(t, resolver)
		own := seedNotification(t, fx.store, strPtr("u1"), false)
		foreign := seedNotification(t, fx.store, strPtr("u2"), false)
		seedNotification(t, fx.store, nil, false)

		resp := request(t, http.MethodPut, fx.srv.URL+"/notifications/"+own.ID+"/read", nil, "u1", "user")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp = request(t, http.MethodPut, fx.srv.URL+"/notifications/"+foreign.ID+"/read", nil, "u1", "user")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = request(t, http.MethodPut, fx.srv.URL+"/notifications/read-all", nil, "u1", "user")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var envelope struct {
			Data map[string]any `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
		assert.EqualValues(t, 1, envelope.Data["marked"])
	})

	t.Run("delete is admin-gated", func(t *testing.T) {
		t.Parallel()
		fx := newHandlerFixture(t, resolver)
		n := seedNotification(t, fx.store, nil, false)

		resp := request(t, http.MethodDelete, fx.srv.URL+"/notifications/"+n.ID, nil, "u1", "user")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = request(t, http.MethodDelete, fx.srv.URL+"/notifications/"+n.ID, nil, "admin-1", "admin")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp = request(t, http.MethodDelete, fx.srv.URL+"/notifications/"+n.ID, nil, "admin-1", "admin")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("unknown recipient maps to bad request", func(t *testing.T) {
		t.Parallel()
		fx := newHandlerFixture(t, stubResolver{err: audience.ErrRecipientNotFound})

		body := map[string]any{
			"title":       "Hello",
			"message":     "World",
			"kind":        "info",
			"audience":    "user",
			"recipientId": "ghost",
		}
		resp := request(t, http.MethodPost, fx.srv.URL+"/notifications", body, "admin-1", "admin")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestStream(t *testing.T) {
	t.Parallel()

	fx := newHandlerFixture(t, stubResolver{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fx.srv.URL+"/notifications/stream", nil)
	require.NoError(t, err)
	req.Header.Set(authctx.HeaderUserID, "u1")
	req.Header.Set(authctx.HeaderRole, "user")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// The subscription is established before the handler writes its status
	// line, so a publish after the response headers arrive is received.
	payload := notifications.Payload{ID: "n1", Title: "Ping", Kind: notifications.KindInfo}
	require.NoError(t, fx.hub.Publish(context.Background(), audience.UserChannel("u1"), payload))

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			event = strings.TrimPrefix(line, "event: ")
		}
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}

	assert.Equal(t, notifications.EventName, event)

	var got notifications.Payload
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, "n1", got.ID)
	assert.Equal(t, "Ping", got.Title)
}

func TestStreamOutlivesWriteTimeout(t *testing.T) {
	t.Parallel()

	store := notifications.NewMemoryStorage()
	hub := broadcast.NewHub[notifications.Payload]()
	t.Cleanup(func() { hub.Close() })

	engine := notifications.NewEngine(store, notifications.WithBroadcaster(hub))
	svc := notifications.NewService(store, stubResolver{}, engine)

	r := chi.NewRouter()
	r.Use(authctx.Middleware)
	r.Mount("/notifications", notifications.NewHandler(svc, hub, nil).Router())

	// A tight write timeout would cut the hold-open response unless the
	// handler clears its write deadline.
	srv := httptest.NewUnstartedServer(r)
	srv.Config.WriteTimeout = 250 * time.Millisecond
	srv.Start()
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/notifications/stream", nil)
	require.NoError(t, err)
	req.Header.Set(authctx.HeaderUserID, "u1")
	req.Header.Set(authctx.HeaderRole, "user")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	time.Sleep(2 * srv.Config.WriteTimeout)

	payload := notifications.Payload{ID: "n1", Title: "Ping", Kind: notifications.KindInfo}
	require.NoError(t, hub.Publish(context.Background(), audience.UserChannel("u1"), payload))

	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NoError(t, scanner.Err())

	var got notifications.Payload
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, "n1", got.ID)
}
