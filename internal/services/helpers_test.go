package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"wallet/internal/auth"
	"wallet/internal/codec"
	"wallet/internal/store/memory"
	"wallet/internal/websocket"

	"golang.org/x/crypto/bcrypt"
)

type recordingHub struct {
	mu      sync.Mutex
	updates map[string][]websocket.BalanceUpdate
}

func (h *recordingHub) BroadcastBalance(userID string, update websocket.BalanceUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.updates == nil {
		h.updates = make(map[string][]websocket.BalanceUpdate)
	}
	h.updates[userID] = append(h.updates[userID], update)
}

func (h *recordingHub) count(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.updates[userID])
}

type testEnv struct {
	store    *memory.Store
	codec    *codec.Codec
	hub      *recordingHub
	wallets  *WalletService
	accounts *AccountService
	verifier *auth.Verifier
}

func newTestEnv(t *testing.T, opts ...memory.Option) *testEnv {
	t.Helper()
	st := memory.New(opts...)
	c := codec.MustNew("test-encryption-secret")
	hub := &recordingHub{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	verifier := auth.NewVerifier("test-jwt-secret", time.Hour)
	policy := DefaultPolicy()

	accounts := NewAccountService(st, c, verifier, policy, logger)
	accounts.hash = func(password string) (string, error) {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		return string(hashed), err
	}
	return &testEnv{
		store:    st,
		codec:    c,
		hub:      hub,
		wallets:  NewWalletService(st, c, hub, policy, logger),
		accounts: accounts,
		verifier: verifier,
	}
}

func (e *testEnv) signup(t *testing.T, email string, premium bool) string {
	t.Helper()
	result, err := e.accounts.Provision(context.Background(), SignupRequest{
		Name:      "Ann Lee",
		Email:     email,
		Password:  "Passw0rd",
		IsPremium: premium,
	})
	if err != nil {
		t.Fatalf("provision %s: %v", email, err)
	}
	return result.User.ID
}
