package store

import (
	"context"

	"wallet/internal/models"
)

type WalletStore struct {
	db DB
}

func NewWalletStore(db DB) *WalletStore {
	return &WalletStore{db: db}
}

const walletColumns = `user_id, balance, total_credited, last_recharge_date, version, created_at, updated_at`

func (s *WalletStore) Create(ctx context.Context, tx Execer, wallet models.Wallet) error {
	query := `
		INSERT INTO wallets (user_id, balance, total_credited, last_recharge_date, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.ExecContext(ctx, query,
		wallet.UserID, wallet.Balance, wallet.TotalCredited, wallet.LastRechargeDate,
		wallet.Version, wallet.CreatedAt, wallet.UpdatedAt,
	)
	return err
}

func (s *WalletStore) GetByUser(ctx context.Context, userID string) (models.Wallet, error) {
	var row models.Wallet
	err := s.db.GetContext(ctx, &row, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

func (s *WalletStore) GetForUpdate(ctx context.Context, tx Getter, userID string) (models.Wallet, error) {
	var row models.Wallet
	err := tx.GetContext(ctx, &row, `
		SELECT `+walletColumns+`
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

// UpdateBalance writes the encoded balance and bumps the version. It returns
// ErrConflict when the stored version no longer matches.
func (s *WalletStore) UpdateBalance(ctx context.Context, tx Execer, update WalletUpdate) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = $1,
		    total_credited = COALESCE($2, total_credited),
		    last_recharge_date = COALESCE($3, last_recharge_date),
		    version = version + 1,
		    updated_at = NOW()
		WHERE user_id = $4 AND version = $5
	`, update.Balance, update.TotalCredited, update.LastRechargeDate, update.UserID, update.ExpectedVersion)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}
