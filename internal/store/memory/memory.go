// Package memory is an in-process LedgerStore.
//
// It has no multi-row transactions, so Atomic is optimistic: a session reads
// committed state, buffers its writes and, at commit, checks that every
// wallet it read still carries the version it saw. On a mismatch the whole
// callback is run again, up to MaxAttempts times, before ErrConflict is
// returned. Sessions touching different wallets never conflict.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wallet/internal/models"
	"wallet/internal/store"
)

const DefaultMaxAttempts = 3

type Store struct {
	mu           sync.RWMutex
	users        map[string]models.User
	emails       map[string]string
	wallets      map[string]models.Wallet
	transactions map[string][]ledgerRow
	audit        []store.AuditEntry
	seq          int64
	faults       map[string]error
	maxAttempts  int
}

type ledgerRow struct {
	seq int64
	row models.Transaction
}

type Option func(*Store)

func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		users:        make(map[string]models.User),
		emails:       make(map[string]string),
		wallets:      make(map[string]models.Wallet),
		transactions: make(map[string][]ledgerRow),
		faults:       make(map[string]error),
		maxAttempts:  DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InjectFault makes the next session call to op fail with err. op is a
// Session method name such as "AppendTransaction", or "commit".
func (s *Store) InjectFault(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

func (s *Store) takeFault(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err, ok := s.faults[op]
	if !ok {
		return nil
	}
	delete(s.faults, op)
	return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
}

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, sess store.Session) error) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
		}
		sess := newSession(s)
		if err := fn(ctx, sess); err != nil {
			return err
		}
		err := s.commit(ctx, sess)
		if err == nil {
			return nil
		}
		if err != store.ErrConflict {
			return err
		}
	}
	return store.ErrConflict
}

func (s *Store) commit(ctx context.Context, sess *session) error {
	if err := s.takeFault("commit"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, version := range sess.readVersions {
		current, ok := s.wallets[userID]
		if !ok || current.Version != version {
			return store.ErrConflict
		}
	}
	for _, user := range sess.newUsers {
		if _, taken := s.emails[user.Email]; taken {
			return store.ErrDuplicate
		}
		if _, taken := s.users[user.ID]; taken {
			return store.ErrDuplicate
		}
	}
	for _, wallet := range sess.newWallets {
		if _, taken := s.wallets[wallet.UserID]; taken {
			return store.ErrDuplicate
		}
	}

	for _, user := range sess.newUsers {
		s.users[user.ID] = user
		s.emails[user.Email] = user.ID
	}
	for _, wallet := range sess.newWallets {
		s.wallets[wallet.UserID] = wallet
	}
	for userID, wallet := range sess.walletWrites {
		wallet.Version = s.wallets[userID].Version + 1
		s.wallets[userID] = wallet
	}
	for _, row := range sess.appended {
		s.seq++
		s.transactions[row.UserID] = append(s.transactions[row.UserID], ledgerRow{seq: s.seq, row: row})
	}
	s.audit = append(s.audit, sess.audit...)
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[email]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := s.GetUserByEmail(ctx, email)
	if err == store.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) GetWallet(ctx context.Context, userID string) (models.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return models.Wallet{}, fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	wallet, ok := s.wallets[userID]
	if !ok {
		return models.Wallet{}, store.ErrNotFound
	}
	return wallet, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	rows, err := s.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Transaction, 0, len(rows))
	for i := len(rows) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, rows[i])
	}
	return out, nil
}

func (s *Store) History(ctx context.Context, userID string) ([]models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Rows are kept in commit order, which is seq order.
	stored := s.transactions[userID]
	out := make([]models.Transaction, 0, len(stored))
	for _, r := range stored {
		out = append(out, r.row)
	}
	return out, nil
}

// AuditLog returns a copy of every committed audit entry.
func (s *Store) AuditLog() []store.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]store.AuditEntry(nil), s.audit...)
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return nil
}

type session struct {
	store        *Store
	readVersions map[string]int64
	walletWrites map[string]models.Wallet
	newUsers     []models.User
	newWallets   []models.Wallet
	appended     []models.Transaction
	audit        []store.AuditEntry
}

func newSession(s *Store) *session {
	return &session{
		store:        s,
		readVersions: make(map[string]int64),
		walletWrites: make(map[string]models.Wallet),
	}
}

func (sess *session) check(ctx context.Context, op string) error {
	if err := sess.store.takeFault(op); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return nil
}

func (sess *session) GetWallet(ctx context.Context, userID string) (models.Wallet, error) {
	if err := sess.check(ctx, "GetWallet"); err != nil {
		return models.Wallet{}, err
	}
	if pending, ok := sess.walletWrites[userID]; ok {
		return pending, nil
	}
	for _, wallet := range sess.newWallets {
		if wallet.UserID == userID {
			return wallet, nil
		}
	}
	sess.store.mu.RLock()
	wallet, ok := sess.store.wallets[userID]
	sess.store.mu.RUnlock()
	if !ok {
		return models.Wallet{}, store.ErrNotFound
	}
	sess.readVersions[userID] = wallet.Version
	return wallet, nil
}

func (sess *session) SetWalletBalance(ctx context.Context, update store.WalletUpdate) error {
	if err := sess.check(ctx, "SetWalletBalance"); err != nil {
		return err
	}
	wallet, ok := sess.walletWrites[update.UserID]
	if !ok {
		version, read := sess.readVersions[update.UserID]
		if !read {
			return fmt.Errorf("%w: wallet %s updated without being read", store.ErrConflict, update.UserID)
		}
		if version != update.ExpectedVersion {
			return store.ErrConflict
		}
		sess.store.mu.RLock()
		wallet, ok = sess.store.wallets[update.UserID]
		sess.store.mu.RUnlock()
		if !ok {
			return store.ErrNotFound
		}
	}
	wallet.Balance = update.Balance
	wallet.UpdatedAt = time.Now()
	if update.TotalCredited != nil {
		wallet.TotalCredited = *update.TotalCredited
	}
	if update.LastRechargeDate != nil {
		at := *update.LastRechargeDate
		wallet.LastRechargeDate = &at
	}
	sess.walletWrites[update.UserID] = wallet
	return nil
}

func (sess *session) AppendTransaction(ctx context.Context, row models.Transaction) error {
	if err := sess.check(ctx, "AppendTransaction"); err != nil {
		return err
	}
	sess.appended = append(sess.appended, row)
	return nil
}

func (sess *session) CreateUser(ctx context.Context, user models.User) error {
	if err := sess.check(ctx, "CreateUser"); err != nil {
		return err
	}
	sess.newUsers = append(sess.newUsers, user)
	return nil
}

func (sess *session) CreateWallet(ctx context.Context, wallet models.Wallet) error {
	if err := sess.check(ctx, "CreateWallet"); err != nil {
		return err
	}
	sess.newWallets = append(sess.newWallets, wallet)
	return nil
}

func (sess *session) LogAudit(ctx context.Context, entry store.AuditEntry) error {
	if err := sess.check(ctx, "LogAudit"); err != nil {
		return err
	}
	sess.audit = append(sess.audit, entry)
	return nil
}
