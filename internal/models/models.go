package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	Credit TransactionType = "credit"
	Debit  TransactionType = "debit"
)

func (t TransactionType) Valid() bool {
	return t == Credit || t == Debit
}

type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsPremium    bool      `db:"is_premium" json:"isPremium"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Wallet holds the stored, encoded form of the balance. Balance and
// TotalCredited are codec output and must be decoded before use.
type Wallet struct {
	UserID           string     `db:"user_id" json:"-"`
	Balance          string     `db:"balance" json:"-"`
	TotalCredited    string     `db:"total_credited" json:"-"`
	LastRechargeDate *time.Time `db:"last_recharge_date" json:"-"`
	Version          int64      `db:"version" json:"-"`
	CreatedAt        time.Time  `db:"created_at" json:"-"`
	UpdatedAt        time.Time  `db:"updated_at" json:"-"`
}

type Transaction struct {
	ID           string          `db:"id" json:"id"`
	UserID       string          `db:"user_id" json:"userId"`
	Type         TransactionType `db:"type" json:"type"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Description  string          `db:"description" json:"description"`
	BalanceAfter decimal.Decimal `db:"balance_after" json:"balanceAfter"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
}
