package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"wallet/internal/auth"
	"wallet/internal/models"
	"wallet/internal/store"
	"wallet/internal/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MessageInvalidEmail    = "Please enter a valid email address"
	MessageInvalidName     = "Name must be 2-50 characters and contain only letters and spaces"
	MessageInvalidPassword = "Password must be at least 8 characters with uppercase, lowercase, and number"
)

type TokenIssuer interface {
	Issue(identity auth.Identity) (string, error)
}

type AccountService struct {
	ledger store.LedgerStore
	codec  BalanceCodec
	tokens TokenIssuer
	policy Policy
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
	hash   func(password string) (string, error)
}

func NewAccountService(ledger store.LedgerStore, codec BalanceCodec, tokens TokenIssuer, policy Policy, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		ledger: ledger,
		codec:  codec,
		tokens: tokens,
		policy: policy,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
		hash:   auth.HashPassword,
	}
}

type SignupRequest struct {
	Name      string
	Email     string
	Password  string
	IsPremium bool
}

type AuthResult struct {
	User  models.User
	Token string
}

// Provision creates the user and its zero-balance wallet in one atomic
// session, so neither can exist without the other.
func (s *AccountService) Provision(ctx context.Context, req SignupRequest) (AuthResult, error) {
	name := validator.NormalizeName(req.Name)
	email := validator.NormalizeEmail(req.Email)
	if err := validator.ValidateName(name); err != nil {
		return AuthResult{}, &ValidationError{Field: "name", Message: MessageInvalidName}
	}
	if err := validator.ValidateEmail(email); err != nil {
		return AuthResult{}, &ValidationError{Field: "email", Message: MessageInvalidEmail}
	}
	if err := validator.ValidatePassword(req.Password); err != nil {
		return AuthResult{}, &ValidationError{Field: "password", Message: MessageInvalidPassword}
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	exists, err := s.ledger.EmailExists(storeCtx, email)
	if err != nil {
		return AuthResult{}, classify(ctx, s.logger, "email exists", err)
	}
	if exists {
		return AuthResult{}, ErrDuplicateAccount
	}

	hash, err := s.hash(req.Password)
	if err != nil {
		s.logger.ErrorContext(ctx, "hash password", "error", err)
		return AuthResult{}, ErrUnexpected
	}

	now := s.now().UTC()
	user := models.User{
		ID:           s.newID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		IsPremium:    req.IsPremium,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	zero := s.codec.Encode(decimal.Zero)
	wallet := models.Wallet{
		UserID:        user.ID,
		Balance:       zero,
		TotalCredited: zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.ledger.Atomic(storeCtx, func(ctx context.Context, sess store.Session) error {
		if err := sess.CreateUser(ctx, user); err != nil {
			return err
		}
		if err := sess.CreateWallet(ctx, wallet); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{"email": user.Email, "premium": user.IsPremium})
		return sess.LogAudit(ctx, store.AuditEntry{
			ActorID:    user.ID,
			Action:     "signup",
			EntityType: "user",
			EntityID:   user.ID,
			Data:       string(data),
		})
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return AuthResult{}, ErrDuplicateAccount
		}
		return AuthResult{}, classify(ctx, s.logger, "provision", err)
	}

	s.logger.InfoContext(ctx, "account provisioned", "user_id", user.ID, "premium", user.IsPremium)
	return s.issue(ctx, user)
}

// Login checks the password and issues a credential carrying the current
// premium flag. Unknown emails and wrong passwords are indistinguishable.
func (s *AccountService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = validator.NormalizeEmail(email)
	if email == "" || password == "" {
		return AuthResult{}, ErrInvalidCredentials
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	user, err := s.ledger.GetUserByEmail(storeCtx, email)
	if errors.Is(err, store.ErrNotFound) {
		auth.BurnCompare(password)
		return AuthResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return AuthResult{}, classify(ctx, s.logger, "get user by email", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return AuthResult{}, ErrInvalidCredentials
	}

	err = s.ledger.Atomic(storeCtx, func(ctx context.Context, sess store.Session) error {
		return sess.LogAudit(ctx, store.AuditEntry{
			ActorID:    user.ID,
			Action:     "login",
			EntityType: "user",
			EntityID:   user.ID,
			Data:       "{}",
		})
	})
	if err != nil {
		return AuthResult{}, classify(ctx, s.logger, "login audit", err)
	}
	return s.issue(ctx, user)
}

// Me returns the stored user behind an identity.
func (s *AccountService) Me(ctx context.Context, userID string) (models.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return models.User{}, ErrInvalidUserID
	}
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	user, err := s.ledger.GetUser(storeCtx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, classify(ctx, s.logger, "get user", err)
	}
	return user, nil
}

func (s *AccountService) issue(ctx context.Context, user models.User) (AuthResult, error) {
	token, err := s.tokens.Issue(auth.Identity{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		IsPremium: user.IsPremium,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "issue token", "error", err)
		return AuthResult{}, ErrUnexpected
	}
	return AuthResult{User: user, Token: token}, nil
}

func (s *AccountService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.policy.StoreTimeout
	if timeout <= 0 {
		timeout = DefaultPolicy().StoreTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
