package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"wallet/internal/middleware"
	"wallet/internal/money"
	"wallet/internal/websocket"
)

type amountRequest struct {
	Amount      json.RawMessage `json:"amount"`
	Description string          `json:"description"`
}

type walletResponse struct {
	UserID           string     `json:"userId"`
	Balance          string     `json:"balance"`
	TotalCredited    string     `json:"totalCredited"`
	LastRechargeDate *time.Time `json:"lastRechargeDate"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func (h *Handler) Recharge(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	var req amountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}
	amount, err := money.ParseJSON(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, h.amountMessage())
		return
	}
	result, err := h.wallets.Recharge(r.Context(), userID, amount)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message":       "Wallet recharged successfully",
		"amount":        money.Format(result.Amount),
		"balance":       money.Format(result.NewBalance),
		"transactionId": result.TransactionID,
	})
}

func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	var req amountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}
	amount, err := money.ParseJSON(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, h.amountMessage())
		return
	}
	result, err := h.wallets.Pay(r.Context(), userID, amount, req.Description)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message":       "Payment successful",
		"amount":        money.Format(result.Amount),
		"balance":       money.Format(result.NewBalance),
		"transactionId": result.TransactionID,
	})
}

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	view, err := h.wallets.GetWallet(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user": toUserResponse(view.User),
		"wallet": walletResponse{
			UserID:           userID,
			Balance:          money.Format(view.Balance),
			TotalCredited:    money.Format(view.TotalCredited),
			LastRechargeDate: view.LastRechargeDate,
			CreatedAt:        view.CreatedAt,
			UpdatedAt:        view.UpdatedAt,
		},
	})
}

func (h *Handler) VerifyWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	report, err := h.wallets.VerifyLedger(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"consistent":    report.Consistent,
		"balance":       money.Format(report.Balance),
		"ledgerBalance": money.Format(report.LedgerBalance),
		"totalCredited": money.Format(report.TotalCredited),
		"ledgerCredits": money.Format(report.LedgerCredits),
		"rows":          report.Rows,
		"firstMismatch": report.FirstMismatch,
	})
}

func (h *Handler) WSWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	websocket.ServeWS(w, r, h.upgrader, h.hub, userID)
}
