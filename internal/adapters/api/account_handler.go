package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rkarimi/simbazaar/internal/domain/wallet"
)

// AccountHandler exposes wallet accounts over HTTP
type AccountHandler struct {
	ledger *wallet.Ledger
	logger *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(ledger *wallet.Ledger, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{ledger: ledger, logger: logger}
}

type accountResponse struct {
	ID             string    `json:"id"`
	WalletBalance  int64     `json:"wallet_balance"`
	BlockedBalance int64     `json:"blocked_balance"`
	CreatedAt      time.Time `json:"created_at"`
}

func toAccountResponse(a *wallet.Account) accountResponse {
	return accountResponse{
		ID:             a.ID.String(),
		WalletBalance:  a.WalletBalance,
		BlockedBalance: a.BlockedBalance,
		CreatedAt:      a.CreatedAt,
	}
}

// CreateAccount handles POST /accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	account, err := h.ledger.CreateAccount(r.Context(), userID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, toAccountResponse(account))
}

// GetBalance handles GET /accounts/{accountID}
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	account, err := h.ledger.GetBalance(r.Context(), accountID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, toAccountResponse(account))
}

// Deposit handles POST /accounts/{accountID}/deposit
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.ledger.Deposit)
}

// Withdraw handles POST /accounts/{accountID}/withdraw
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.ledger.Withdraw)
}

func (h *AccountHandler) move(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id uuid.UUID, amount int64) error) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := op(r.Context(), accountID, req.Amount); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	account, err := h.ledger.GetBalance(r.Context(), accountID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, toAccountResponse(account))
}
