package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"wallet/internal/money"
	"wallet/internal/services"
)

const (
	msgUnauthorized       = "Unauthorized"
	msgInvalidPayload     = "Invalid request body"
	msgInvalidUserID      = "Invalid user ID format"
	msgInsufficientFunds  = "Insufficient balance. Upgrade to Premium for overdraft facility."
	msgWalletNotFound     = "Wallet not found"
	msgUserNotFound       = "User not found"
	msgUserExists         = "User already exists"
	msgInvalidCredentials = "Invalid email or password"
	msgUnavailable        = "Service temporarily unavailable, please retry"
	msgInternal           = "Internal server error"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}

// respondServiceError maps the service error taxonomy onto HTTP. Anything it
// does not recognise is a 500 with a generic message; the service has
// already logged the detail.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var validation *services.ValidationError
	var overdraft *services.OverdraftError
	switch {
	case errors.As(err, &validation):
		respondError(w, http.StatusBadRequest, validation.Message)
	case errors.Is(err, services.ErrInvalidAmount), errors.Is(err, services.ErrInvalidKind):
		respondError(w, http.StatusBadRequest, h.amountMessage())
	case errors.Is(err, services.ErrInvalidUserID):
		respondError(w, http.StatusBadRequest, msgInvalidUserID)
	case errors.Is(err, services.ErrInsufficientFunds):
		respondError(w, http.StatusBadRequest, msgInsufficientFunds)
	case errors.As(err, &overdraft):
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("Overdraft limit exceeded. Balance cannot go below ₹%s.", money.Format(overdraft.Floor)))
	case errors.Is(err, services.ErrDuplicateAccount):
		respondError(w, http.StatusBadRequest, msgUserExists)
	case errors.Is(err, services.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, services.ErrWalletNotFound):
		respondError(w, http.StatusNotFound, msgWalletNotFound)
	case errors.Is(err, services.ErrUserNotFound):
		respondError(w, http.StatusNotFound, msgUserNotFound)
	case errors.Is(err, services.ErrStoreUnavailable):
		w.Header().Set("Retry-After", "1")
		respondError(w, http.StatusInternalServerError, msgUnavailable)
	default:
		respondError(w, http.StatusInternalServerError, msgInternal)
	}
}

func (h *Handler) amountMessage() string {
	return fmt.Sprintf("Amount must be greater than ₹0 and at most ₹%s, with up to 2 decimal places", money.Format(h.cfg.MaxAmount))
}
