package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet/internal/auth"
	"wallet/internal/cache"
	"wallet/internal/codec"
	"wallet/internal/config"
	"wallet/internal/middleware"
	"wallet/internal/services"
	"wallet/internal/store/memory"
	"wallet/internal/websocket"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type testServer struct {
	handler http.Handler
	store   *memory.Store
	hub     *websocket.Hub
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}

func testConfig() config.Config {
	return config.Config{
		AllowedOrigins: "*",
		IdempotencyTTL: time.Minute,
		MaxAmount:      decimal.NewFromInt(100000),
		OverdraftLimit: decimal.NewFromInt(5000),
		StoreTimeout:   5 * time.Second,
	}
}

func newTestServer(t *testing.T, withIdempotency bool) *testServer {
	t.Helper()
	cfg := testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.New()
	c := codec.MustNew("handler-test-secret")
	hub := websocket.NewHub()
	verifier := auth.NewVerifier("handler-jwt-secret", time.Hour)
	policy := services.Policy{MaxAmount: cfg.MaxAmount, OverdraftLimit: cfg.OverdraftLimit, StoreTimeout: cfg.StoreTimeout}

	var idempotency *cache.IdempotencyStore
	if withIdempotency {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("miniredis: %v", err)
		}
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() {
			_ = client.Close()
			mr.Close()
		})
		idempotency = cache.NewIdempotencyStore(client, "idem")
	}

	h := New(cfg,
		services.NewAccountService(st, c, verifier, policy, logger),
		services.NewWalletService(st, c, hub, policy, logger),
		st,
		verifier,
		idempotencyOrNil(idempotency),
		hub,
		logger,
	)
	return &testServer{handler: h.Routes(), store: st, hub: hub}
}

// idempotencyOrNil keeps a nil *IdempotencyStore from becoming a non-nil
// interface value.
func idempotencyOrNil(s *cache.IdempotencyStore) middleware.IdempotencyCache {
	if s == nil {
		return nil
	}
	return s
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) signup(t *testing.T, email string, premium bool) (string, string) {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"name":      "Ann Lee",
		"email":     email,
		"password":  "Passw0rd",
		"isPremium": premium,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("signup: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Token string       `json:"token"`
		User  userResponse `json:"user"`
	}
	decodeBody(t, rr, &resp)
	return resp.Token, resp.User.ID
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
}

func messageOf(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	decodeBody(t, rr, &body)
	message, _ := body["message"].(string)
	return message
}
