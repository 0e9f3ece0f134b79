package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
)

const approvePattern = "/api/v1/admin/purchase-orders/approve"

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func approveRequest(key, body string) *http.Request {
	req := requestWithPattern(http.MethodPost, approvePattern, approvePattern, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestIdempotencyTTL(t *testing.T) {
	cases := []struct {
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{http.MethodPost, approvePattern, criticalIdempotencyTTL, true},
		{http.MethodPatch, "/api/v1/admin/purchase-orders/{purchaseOrderId}/status", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/admin/logistics/customer-orders/{orderId}/send", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/admin/logistics/messages/{messageId}/replay", defaultIdempotencyTTL, true},
		{http.MethodGet, approvePattern, 0, false},
		{http.MethodPost, "/api/v1/webhooks/orian/{messageType}", 0, false},
		{http.MethodPost, "", 0, false},
	}
	for _, tc := range cases {
		ttl, ok := idempotencyTTL(tc.method, tc.pattern)
		require.Equal(t, tc.ok, ok, "%s %s", tc.method, tc.pattern)
		require.Equal(t, tc.want, ttl, "%s %s", tc.method, tc.pattern)
	}
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	called := false
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, approveRequest("", `{"purchase_order_ids":[1]}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, called)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, approveRequest(strings.Repeat("k", maxIdempotencyKeyLen+1), `{}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, called)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		require.JSONEq(t, `{"purchase_order_ids":[1]}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, approveRequest("abc", `{"purchase_order_ids":[1]}`))
	require.Equal(t, http.StatusAccepted, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, approveRequest("abc", `{"purchase_order_ids":[1]}`))
	require.Equal(t, http.StatusAccepted, second.Code)
	require.Equal(t, "application/json", second.Header().Get("Content-Type"))
	require.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	require.Equal(t, `{"ok":true}`, second.Body.String())
	require.Equal(t, 1, calls)

	for key, ttl := range store.ttls {
		require.Equal(t, criticalIdempotencyTTL, ttl, key)
	}
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), approveRequest("xyz", `{"purchase_order_ids":[1]}`))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, approveRequest("xyz", `{"purchase_order_ids":[2]}`))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
}

func TestIdempotencyConflictsWhileInFlight(t *testing.T) {
	store := newFakeStore()
	var inner *httptest.ResponseRecorder
	var handler http.Handler
	handler = Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inner == nil {
			inner = httptest.NewRecorder()
			handler.ServeHTTP(inner, approveRequest("same", `{}`))
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, approveRequest("same", `{}`))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, http.StatusConflict, inner.Code)
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, approveRequest("retry", `{}`))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Empty(t, store.data)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, approveRequest("retry", `{}`))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, calls)
}

func TestIdempotencyIgnoresOtherRoutes(t *testing.T) {
	called := false
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req := requestWithPattern(http.MethodGet, "/api/v1/admin/purchase-orders/1", "/api/v1/admin/purchase-orders/{purchaseOrderId}", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, called)
}
