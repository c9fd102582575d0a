package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"wallet/internal/store"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidUserID      = errors.New("invalid user id")
	ErrInvalidKind        = errors.New("invalid transaction type")
	ErrValidation         = errors.New("validation failed")
	ErrWalletNotFound     = errors.New("wallet not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrOverdraftExceeded  = errors.New("overdraft limit exceeded")
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrUnexpected         = errors.New("unexpected error")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

type InsufficientFundsError struct {
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %s, requested %s", e.Balance.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

type OverdraftError struct {
	Balance   decimal.Decimal
	Requested decimal.Decimal
	Floor     decimal.Decimal
}

func (e *OverdraftError) Error() string {
	return fmt.Sprintf("overdraft limit exceeded: balance %s, requested %s, floor %s",
		e.Balance.StringFixed(2), e.Requested.StringFixed(2), e.Floor.StringFixed(2))
}

func (e *OverdraftError) Unwrap() error {
	return ErrOverdraftExceeded
}

var domainErrors = []error{
	ErrInvalidAmount,
	ErrInvalidUserID,
	ErrInvalidKind,
	ErrValidation,
	ErrWalletNotFound,
	ErrUserNotFound,
	ErrInsufficientFunds,
	ErrOverdraftExceeded,
	ErrDuplicateAccount,
	ErrInvalidCredentials,
	ErrStoreUnavailable,
	ErrUnexpected,
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether the caller may repeat the request unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsClientError reports rejections caused by the request itself. None of
// them has touched stored state.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrInvalidKind) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrOverdraftExceeded) ||
		errors.Is(err, ErrDuplicateAccount) ||
		errors.Is(err, ErrInvalidCredentials)
}

// classify turns store and driver errors into the service taxonomy. Domain
// errors pass through. Infrastructure detail is logged here and dropped.
func classify(ctx context.Context, logger *slog.Logger, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isDomainError(err):
		return err
	case errors.Is(err, store.ErrNotFound):
		return ErrWalletNotFound
	case errors.Is(err, store.ErrUnavailable),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		logger.ErrorContext(ctx, "store unavailable", "op", op, "error", err)
		return ErrStoreUnavailable
	default:
		logger.ErrorContext(ctx, "unexpected failure", "op", op, "error", err)
		return ErrUnexpected
	}
}
