package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"wallet/internal/models"
	"wallet/internal/money"
	"wallet/internal/store"
	"wallet/internal/validator"
	"wallet/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultRechargeDescription = "Wallet Recharge"
	DefaultPaymentDescription  = "Payment"
	TransactionPageSize        = 50
)

// Policy holds the limits the engine enforces.
type Policy struct {
	MaxAmount      decimal.Decimal
	OverdraftLimit decimal.Decimal
	StoreTimeout   time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAmount:      decimal.NewFromInt(100000),
		OverdraftLimit: decimal.NewFromInt(5000),
		StoreTimeout:   5 * time.Second,
	}
}

// Floor is the lowest balance a premium wallet may reach.
func (p Policy) Floor() decimal.Decimal {
	return p.OverdraftLimit.Neg()
}

type BalanceCodec interface {
	Encode(amount decimal.Decimal) string
	DecodeStrict(opaque string) (decimal.Decimal, error)
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

type WalletService struct {
	ledger store.LedgerStore
	codec  BalanceCodec
	hub    BalanceHub
	policy Policy
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewWalletService(ledger store.LedgerStore, codec BalanceCodec, hub BalanceHub, policy Policy, logger *slog.Logger) *WalletService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WalletService{
		ledger: ledger,
		codec:  codec,
		hub:    hub,
		policy: policy,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

type DeltaRequest struct {
	UserID      string
	Amount      decimal.Decimal
	Kind        models.TransactionType
	Description string
}

type DeltaResult struct {
	TransactionID string
	Amount        decimal.Decimal
	NewBalance    decimal.Decimal
	TotalCredited decimal.Decimal
}

func (s *WalletService) Recharge(ctx context.Context, userID string, amount decimal.Decimal) (DeltaResult, error) {
	return s.ApplyDelta(ctx, DeltaRequest{UserID: userID, Amount: amount, Kind: models.Credit})
}

func (s *WalletService) Pay(ctx context.Context, userID string, amount decimal.Decimal, description string) (DeltaResult, error) {
	return s.ApplyDelta(ctx, DeltaRequest{UserID: userID, Amount: amount, Kind: models.Debit, Description: description})
}

// ApplyDelta credits or debits one wallet. The wallet read, the rule check,
// the balance write and the ledger append commit together or not at all.
//
// Store work runs detached from ctx cancellation and bounded by the policy
// timeout, so a caller that goes away still gets a full commit or a full
// abort.
func (s *WalletService) ApplyDelta(ctx context.Context, req DeltaRequest) (DeltaResult, error) {
	if err := s.checkRequest(req); err != nil {
		return DeltaResult{}, err
	}
	fallback := DefaultRechargeDescription
	if req.Kind == models.Debit {
		fallback = DefaultPaymentDescription
	}
	description := validator.SanitizeDescription(req.Description, fallback)

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	// Premium is read once, before the atomic section.
	user, err := s.ledger.GetUser(storeCtx, req.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return DeltaResult{}, ErrWalletNotFound
		}
		return DeltaResult{}, classify(ctx, s.logger, "get user", err)
	}

	var result DeltaResult
	err = s.ledger.Atomic(storeCtx, func(ctx context.Context, sess store.Session) error {
		wallet, err := sess.GetWallet(ctx, req.UserID)
		if err != nil {
			return err
		}
		balance, err := s.codec.DecodeStrict(wallet.Balance)
		if err != nil {
			return err
		}
		totalCredited, err := s.codec.DecodeStrict(wallet.TotalCredited)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		update := store.WalletUpdate{UserID: req.UserID, ExpectedVersion: wallet.Version}
		var candidate decimal.Decimal
		switch req.Kind {
		case models.Credit:
			candidate = balance.Add(req.Amount)
			totalCredited = totalCredited.Add(req.Amount)
			encodedTotal := s.codec.Encode(totalCredited)
			update.TotalCredited = &encodedTotal
			update.LastRechargeDate = &now
		case models.Debit:
			candidate = balance.Sub(req.Amount)
			if err := s.checkDebit(user.IsPremium, balance, req.Amount, candidate); err != nil {
				return err
			}
		}
		update.Balance = s.codec.Encode(candidate)

		if err := sess.SetWalletBalance(ctx, update); err != nil {
			return err
		}
		row := models.Transaction{
			ID:           s.newID(),
			UserID:       req.UserID,
			Type:         req.Kind,
			Amount:       req.Amount,
			Description:  description,
			BalanceAfter: candidate,
			CreatedAt:    now,
		}
		if err := sess.AppendTransaction(ctx, row); err != nil {
			return err
		}
		if err := sess.LogAudit(ctx, store.AuditEntry{
			ActorID:    req.UserID,
			Action:     auditAction(req.Kind),
			EntityType: "wallet",
			EntityID:   req.UserID,
			Data:       auditData(row),
		}); err != nil {
			return err
		}

		// Assigned on every attempt; only the committed one is returned.
		result = DeltaResult{
			TransactionID: row.ID,
			Amount:        req.Amount,
			NewBalance:    candidate,
			TotalCredited: totalCredited,
		}
		return nil
	})
	if err != nil {
		return DeltaResult{}, classify(ctx, s.logger, string(req.Kind), err)
	}

	s.logger.InfoContext(ctx, "wallet updated",
		"user_id", req.UserID,
		"type", string(req.Kind),
		"amount", money.Format(req.Amount),
		"transaction_id", result.TransactionID,
	)
	if s.hub != nil {
		s.hub.BroadcastBalance(req.UserID, websocket.BalanceUpdate{
			Balance:       money.Format(result.NewBalance),
			TotalCredited: money.Format(result.TotalCredited),
			TransactionID: result.TransactionID,
		})
	}
	return result, nil
}

func (s *WalletService) checkRequest(req DeltaRequest) error {
	if _, err := uuid.Parse(req.UserID); err != nil {
		return ErrInvalidUserID
	}
	if !req.Kind.Valid() {
		return ErrInvalidKind
	}
	if err := money.CheckBounds(req.Amount, s.policy.MaxAmount); err != nil {
		return ErrInvalidAmount
	}
	return nil
}

func (s *WalletService) checkDebit(premium bool, balance, amount, candidate decimal.Decimal) error {
	if !candidate.IsNegative() {
		return nil
	}
	if !premium {
		return &InsufficientFundsError{Balance: balance, Requested: amount}
	}
	if candidate.LessThan(s.policy.Floor()) {
		return &OverdraftError{Balance: balance, Requested: amount, Floor: s.policy.Floor()}
	}
	return nil
}

func (s *WalletService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.policy.StoreTimeout
	if timeout <= 0 {
		timeout = DefaultPolicy().StoreTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func auditAction(kind models.TransactionType) string {
	if kind == models.Credit {
		return "recharge"
	}
	return "pay"
}

func auditData(row models.Transaction) string {
	payload, err := json.Marshal(map[string]string{
		"transaction_id": row.ID,
		"type":           string(row.Type),
		"amount":         money.Format(row.Amount),
		"balance_after":  money.Format(row.BalanceAfter),
	})
	if err != nil {
		return "{}"
	}
	return string(payload)
}

// WalletView is the decoded wallet as shown to its owner.
type WalletView struct {
	User             models.User
	Balance          decimal.Decimal
	TotalCredited    decimal.Decimal
	LastRechargeDate *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (s *WalletService) GetWallet(ctx context.Context, userID string) (WalletView, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return WalletView{}, ErrInvalidUserID
	}
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	user, err := s.ledger.GetUser(storeCtx, userID)
	if err != nil {
		return WalletView{}, classify(ctx, s.logger, "get user", err)
	}
	wallet, err := s.ledger.GetWallet(storeCtx, userID)
	if err != nil {
		return WalletView{}, classify(ctx, s.logger, "get wallet", err)
	}
	balance, err := s.codec.DecodeStrict(wallet.Balance)
	if err != nil {
		return WalletView{}, classify(ctx, s.logger, "decode balance", err)
	}
	totalCredited, err := s.codec.DecodeStrict(wallet.TotalCredited)
	if err != nil {
		return WalletView{}, classify(ctx, s.logger, "decode total", err)
	}
	return WalletView{
		User:             user,
		Balance:          balance,
		TotalCredited:    totalCredited,
		LastRechargeDate: wallet.LastRechargeDate,
		CreatedAt:        wallet.CreatedAt,
		UpdatedAt:        wallet.UpdatedAt,
	}, nil
}

// ListTransactions returns the most recent page of the user's ledger,
// newest first.
func (s *WalletService) ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrInvalidUserID
	}
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	rows, err := s.ledger.ListTransactions(storeCtx, userID, TransactionPageSize)
	if err != nil {
		return nil, classify(ctx, s.logger, "list transactions", err)
	}
	return rows, nil
}

type LedgerReport struct {
	Consistent    bool
	Balance       decimal.Decimal
	LedgerBalance decimal.Decimal
	TotalCredited decimal.Decimal
	LedgerCredits decimal.Decimal
	Rows          int
	// FirstMismatch is the id of the first row whose balanceAfter does not
	// follow from the rows before it. Empty when every row checks out.
	FirstMismatch string
}

// VerifyLedger folds the user's ledger from zero in applied order and
// compares every balanceAfter, the final balance and the credit total with
// the stored wallet.
func (s *WalletService) VerifyLedger(ctx context.Context, userID string) (LedgerReport, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return LedgerReport{}, ErrInvalidUserID
	}
	view, err := s.GetWallet(ctx, userID)
	if err != nil {
		return LedgerReport{}, err
	}
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	rows, err := s.ledger.History(storeCtx, userID)
	if err != nil {
		return LedgerReport{}, classify(ctx, s.logger, "history", err)
	}

	report := LedgerReport{
		Balance:       view.Balance,
		TotalCredited: view.TotalCredited,
		Rows:          len(rows),
	}
	running := decimal.Zero
	credits := decimal.Zero
	for _, row := range rows {
		switch row.Type {
		case models.Credit:
			running = running.Add(row.Amount)
			credits = credits.Add(row.Amount)
		case models.Debit:
			running = running.Sub(row.Amount)
		}
		if report.FirstMismatch == "" && !running.Equal(row.BalanceAfter) {
			report.FirstMismatch = row.ID
		}
	}
	report.LedgerBalance = running
	report.LedgerCredits = credits
	report.Consistent = report.FirstMismatch == "" &&
		running.Equal(view.Balance) &&
		credits.Equal(view.TotalCredited)
	if !report.Consistent {
		s.logger.WarnContext(ctx, "ledger mismatch",
			"user_id", userID,
			"balance", money.Format(view.Balance),
			"ledger_balance", money.Format(running),
			"first_mismatch", report.FirstMismatch,
		)
	}
	return report, nil
}
