package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"wallet/internal/auth"
	"wallet/internal/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdempotencyCache(t *testing.T) (*cache.IdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return cache.NewIdempotencyStore(client, "idem"), mr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func countingHandler(calls *int, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"message":"Payment successful","call":`+strconv.Itoa(*calls)+`}`)
	})
}

func idempotentRequest(userID, key string) *http.Request {
	return idempotentRequestTo(http.MethodPost, "/api/wallet/pay", `{"amount":10}`, userID, key)
}

func idempotentRequestTo(method, path, body, userID, key string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	if userID != "" {
		req = req.WithContext(WithIdentity(req.Context(), auth.Identity{UserID: userID}))
	}
	return req
}

func fingerprintOf(t *testing.T, r *http.Request) string {
	t.Helper()
	fp, err := requestFingerprint(r)
	require.NoError(t, err)
	return fp
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store, _ := newIdempotencyCache(t)
	var calls int
	handler := Idempotency(store, time.Minute, discardLogger())(countingHandler(&calls, http.StatusOK))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, idempotentRequest("user-1", "k1"))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, idempotentRequest("user-1", "k1"))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(IdempotencyHitHeader))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Empty(t, first.Header().Get(IdempotencyHitHeader))
}

func TestIdempotencyReplaysClientErrors(t *testing.T) {
	store, _ := newIdempotencyCache(t)
	var calls int
	handler := Idempotency(store, time.Minute, discardLogger())(countingHandler(&calls, http.StatusBadRequest))

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, idempotentRequest("user-1", "k1"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	}
	assert.Equal(t, 1, calls)
}

func TestIdempotencyDoesNotStoreServerErrors(t *testing.T) {
	store, _ := newIdempotencyCache(t)
	var calls int
	handler := Idempotency(store, time.Minute, discardLogger())(countingHandler(&calls, http.StatusInternalServerError))

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, idempotentRequest("user-1", "k1"))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	store, _ := newIdempotencyCache(t)
	var calls int
	handler := Idempotency(store, time.Minute, discardLogger())(countingHandler(&calls, http.StatusOK))

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest("user-1", "k1"))
	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest("user-2", "k1"))
	assert.Equal(t, 2, calls)
}

func TestIdempotencyWithoutKeyPassesThrough(t *testing.T) {
	store, _ := newIdempotencyCache(t)
	var calls int
	handler := Idempotency(store, time.Minute, discardLogger())(countingHandler(&calls, http.StatusOK))

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest("user-1", ""))
	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest("user-1", ""))
	assert.Equal(t, 2, calls)
}

func TestIdempotencyInFlightIsRejected(t *testing.T) {
	store, _ := newIdempotencyCache(t)
	_, err := store.Begin(context.Background(), "user-1", "k1", fingerprintOf(t, idempotentRequest("user-1", "k1")), time.Minute)
	require.NoError(t, err)

	var calls int
	handler := Idempotency(store, time.Minute, discardLogger())(countingHandler(&calls, http.StatusOK))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, idempotentRequest("user-1", "k1"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "already in progress")
	assert.Zero(t, calls)
}

func TestIdempotencyCacheDownRunsHandler(t *testing.T) {
	store, mr := newIdempotencyCache(t)
	mr.Close()

	var calls int
	handler := Idempotency(store, time.Minute, discardLogger())(countingHandler(&calls, http.StatusOK))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, idempotentRequest("user-1", "k1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotencyRejectsLongKey(t *testing.T) {
	store, _ := newIdempotencyCache(t)
	var calls int
	handler := Idempotency(store, time.Minute, discardLogger())(countingHandler(&calls, http.StatusOK))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, idempotentRequest("user-1", strings.Repeat("k", 200)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Zero(t, calls)
}

func TestIdempotencyKeyReusedOnAnotherRouteIsRejected(t *testing.T) {
	store, _ := newIdempotencyCache(t)
	var calls int
	handler := Idempotency(store, time.Minute, discardLogger())(countingHandler(&calls, http.StatusOK))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, idempotentRequestTo(http.MethodPost, "/api/wallet/recharge", `{"amount":10}`, "user-1", "k1"))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, idempotentRequestTo(http.MethodPost, "/api/wallet/pay", `{"amount":10}`, "user-1", "k1"))
	assert.Equal(t, http.StatusBadRequest, second.Code)
	assert.Contains(t, second.Body.String(), "different request")
	assert.Empty(t, second.Header().Get(IdempotencyHitHeader))
	assert.Equal(t, 1, calls)
}

func TestIdempotencyKeyReusedWithAnotherBodyIsRejected(t *testing.T) {
	store, _ := newIdempotencyCache(t)
	var calls int
	handler := Idempotency(store, time.Minute, discardLogger())(countingHandler(&calls, http.StatusOK))

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequestTo(http.MethodPost, "/api/wallet/pay", `{"amount":10}`, "user-1", "k1"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, idempotentRequestTo(http.MethodPost, "/api/wallet/pay", `{"amount":99}`, "user-1", "k1"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotencyHandlerSeesFullBody(t *testing.T) {
	store, _ := newIdempotencyCache(t)
	var seen string
	handler := Idempotency(store, time.Minute, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = string(data)
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest("user-1", "k1"))
	assert.Equal(t, `{"amount":10}`, seen)
}

func TestIdempotencyPanicReleasesKey(t *testing.T) {
	store, _ := newIdempotencyCache(t)
	var calls int
	panicking := true
	handler := Idempotency(store, time.Minute, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if panicking {
			panic("boom")
		}
		w.WriteHeader(http.StatusOK)
	}))

	assert.Panics(t, func() {
		handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest("user-1", "k1"))
	})

	panicking = false
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, idempotentRequest("user-1", "k1"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, calls)
}
