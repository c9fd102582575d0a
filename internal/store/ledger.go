package store

import (
	"context"
	"time"

	"wallet/internal/models"
)

// Session is the view of the store inside one atomic unit. Writes issued
// through it become visible together on commit or not at all.
type Session interface {
	// GetWallet returns ErrNotFound when the user has no wallet. The row
	// stays locked, or version-tracked, until the session ends.
	GetWallet(ctx context.Context, userID string) (models.Wallet, error)
	SetWalletBalance(ctx context.Context, update WalletUpdate) error
	AppendTransaction(ctx context.Context, tx models.Transaction) error
	CreateUser(ctx context.Context, user models.User) error
	CreateWallet(ctx context.Context, wallet models.Wallet) error
	LogAudit(ctx context.Context, entry AuditEntry) error
}

// LedgerStore is the persistence contract the wallet core consumes.
//
// Atomic runs fn inside a fresh session. A nil return commits; any error
// aborts and is returned unchanged, unless it came from the store itself, in
// which case it wraps ErrUnavailable, ErrConflict, ErrDuplicate or
// ErrNotFound.
type LedgerStore interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, s Session) error) error
	GetUser(ctx context.Context, userID string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	GetWallet(ctx context.Context, userID string) (models.Wallet, error)
	// ListTransactions returns the newest rows first.
	ListTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error)
	// History returns every row for the user in the order they were applied.
	History(ctx context.Context, userID string) ([]models.Transaction, error)
	Ping(ctx context.Context) error
}

// WalletUpdate carries already-encoded values. Nil fields are left as stored.
type WalletUpdate struct {
	UserID           string
	Balance          string
	TotalCredited    *string
	LastRechargeDate *time.Time
	ExpectedVersion  int64
}

type AuditEntry struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Data       string
}
