package handlers

import (
	"net/http"
	"time"

	"wallet/internal/middleware"
	"wallet/internal/models"
	"wallet/internal/money"
)

type transactionResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Type         string    `json:"type"`
	Amount       string    `json:"amount"`
	Description  string    `json:"description"`
	BalanceAfter string    `json:"balanceAfter"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	rows, err := h.wallets.ListTransactions(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"transactions": toTransactionResponses(rows)})
}

func toTransactionResponses(rows []models.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, transactionResponse{
			ID:           row.ID,
			UserID:       row.UserID,
			Type:         string(row.Type),
			Amount:       money.Format(row.Amount),
			Description:  row.Description,
			BalanceAfter: money.Format(row.BalanceAfter),
			CreatedAt:    row.CreatedAt,
		})
	}
	return out
}
