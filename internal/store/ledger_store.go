package store

import (
	"context"

	"wallet/internal/db"
	"wallet/internal/models"

	"github.com/jmoiron/sqlx"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

// PostgresLedger implements LedgerStore on top of the table stores. Every
// Atomic call is one serializable transaction; wallet reads inside it take a
// row lock.
type PostgresLedger struct {
	runner       db.TxRunner
	pinger       Pinger
	users        *UserStore
	wallets      *WalletStore
	transactions *TransactionStore
	audit        *AuditStore
}

func NewPostgresLedger(database *sqlx.DB) *PostgresLedger {
	return newPostgresLedger(database, db.NewTxRunner(database), database)
}

func newPostgresLedger(database DB, runner db.TxRunner, pinger Pinger) *PostgresLedger {
	return &PostgresLedger{
		runner:       runner,
		pinger:       pinger,
		users:        NewUserStore(database),
		wallets:      NewWalletStore(database),
		transactions: NewTransactionStore(database),
		audit:        NewAuditStore(database),
	}
}

func (l *PostgresLedger) Atomic(ctx context.Context, fn func(ctx context.Context, s Session) error) error {
	var fnErr error
	err := l.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		fnErr = fn(ctx, &sqlSession{tx: tx, ledger: l})
		return fnErr
	})
	if err == nil {
		return nil
	}
	if fnErr != nil && err == fnErr {
		return err
	}
	return translate(err)
}

func (l *PostgresLedger) GetUser(ctx context.Context, userID string) (models.User, error) {
	user, err := l.users.GetByID(ctx, userID)
	return user, translate(err)
}

func (l *PostgresLedger) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	user, err := l.users.GetByEmail(ctx, email)
	return user, translate(err)
}

func (l *PostgresLedger) EmailExists(ctx context.Context, email string) (bool, error) {
	exists, err := l.users.EmailExists(ctx, email)
	return exists, translate(err)
}

func (l *PostgresLedger) GetWallet(ctx context.Context, userID string) (models.Wallet, error) {
	wallet, err := l.wallets.GetByUser(ctx, userID)
	return wallet, translate(err)
}

func (l *PostgresLedger) ListTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	rows, err := l.transactions.ListByUser(ctx, userID, limit)
	return rows, translate(err)
}

func (l *PostgresLedger) History(ctx context.Context, userID string) ([]models.Transaction, error) {
	rows, err := l.transactions.History(ctx, userID)
	return rows, translate(err)
}

func (l *PostgresLedger) Ping(ctx context.Context) error {
	return translate(l.pinger.PingContext(ctx))
}

type sqlSession struct {
	tx     *sqlx.Tx
	ledger *PostgresLedger
}

func (s *sqlSession) GetWallet(ctx context.Context, userID string) (models.Wallet, error) {
	wallet, err := s.ledger.wallets.GetForUpdate(ctx, s.tx, userID)
	return wallet, translate(err)
}

func (s *sqlSession) SetWalletBalance(ctx context.Context, update WalletUpdate) error {
	return translate(s.ledger.wallets.UpdateBalance(ctx, s.tx, update))
}

func (s *sqlSession) AppendTransaction(ctx context.Context, row models.Transaction) error {
	return translate(s.ledger.transactions.Append(ctx, s.tx, row))
}

func (s *sqlSession) CreateUser(ctx context.Context, user models.User) error {
	return translate(s.ledger.users.Create(ctx, s.tx, user))
}

func (s *sqlSession) CreateWallet(ctx context.Context, wallet models.Wallet) error {
	return translate(s.ledger.wallets.Create(ctx, s.tx, wallet))
}

func (s *sqlSession) LogAudit(ctx context.Context, entry AuditEntry) error {
	return translate(s.ledger.audit.Log(ctx, s.tx, entry))
}
