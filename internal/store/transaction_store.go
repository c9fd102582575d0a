package store

import (
	"context"

	"wallet/internal/models"
)

type TransactionStore struct {
	db DB
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

const transactionColumns = `id, user_id, type, amount, description, balance_after, created_at`

// Append inserts a ledger row. Rows are never updated or deleted afterwards.
func (s *TransactionStore) Append(ctx context.Context, tx Execer, row models.Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, type, amount, description, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.ExecContext(ctx, query,
		row.ID, row.UserID, string(row.Type), row.Amount, row.Description, row.BalanceAfter, row.CreatedAt,
	)
	return err
}

func (s *TransactionStore) ListByUser(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	rows := []models.Transaction{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// History orders by seq. Rows for one wallet are inserted while its row is
// locked, so seq order is the order the deltas were applied.
func (s *TransactionStore) History(ctx context.Context, userID string) ([]models.Transaction, error) {
	rows := []models.Transaction{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = $1
		ORDER BY seq ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
