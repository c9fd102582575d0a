package handlers

import (
	"context"

	"wallet/internal/models"
	"wallet/internal/services"

	"github.com/shopspring/decimal"
)

type AccountService interface {
	Provision(ctx context.Context, req services.SignupRequest) (services.AuthResult, error)
	Login(ctx context.Context, email, password string) (services.AuthResult, error)
	Me(ctx context.Context, userID string) (models.User, error)
}

type WalletService interface {
	Recharge(ctx context.Context, userID string, amount decimal.Decimal) (services.DeltaResult, error)
	Pay(ctx context.Context, userID string, amount decimal.Decimal, description string) (services.DeltaResult, error)
	GetWallet(ctx context.Context, userID string) (services.WalletView, error)
	ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error)
	VerifyLedger(ctx context.Context, userID string) (services.LedgerReport, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}
