/**
 * @description
 * This file contains the HTTP handlers for account and ledger endpoints.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, net/http, strconv: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain: Service logic and models.
 */

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mannykwaning/banking-app/internal/app"
	"github.com/mannykwaning/banking-app/internal/domain"
	"github.com/mannykwaning/banking-app/internal/observability"
)

// Handlers holds the application service that handlers will use.
type Handlers struct {
	service *app.Service
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(service *app.Service, logger *zap.Logger, metrics *observability.Metrics) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{service: service, logger: logger, metrics: metrics}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func pageParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// CreateAccountHandler opens a new account.
func (h *Handlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.service.CreateAccount(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, account)
}

// GetAccountHandler fetches a single account by id.
func (h *Handlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(r, "accountID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Invalid account id")
		return
	}

	account, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

// ListAccountsHandler returns a page of accounts.
func (h *Handlers) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	accounts, err := h.service.ListAccounts(r.Context(), limit, offset)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	h.writeJSON(w, http.StatusOK, accounts)
}

// UpdateAccountHandler renames the account holder.
func (h *Handlers) UpdateAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(r, "accountID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Invalid account id")
		return
	}

	var req struct {
		HolderName string `json:"account_holder"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.service.UpdateAccountHolder(r.Context(), accountID, req.HolderName)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

// DeleteAccountHandler closes an empty account.
func (h *Handlers) DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(r, "accountID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Invalid account id")
		return
	}

	if err := h.service.CloseAccount(r.Context(), accountID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetBalanceHandler returns the current balance of an account.
func (h *Handlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(r, "accountID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Invalid account id")
		return
	}

	balance, err := h.service.GetBalance(r.Context(), accountID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"account_id": accountID,
		"balance":    balance,
	})
}

// DepositHandler credits an account.
func (h *Handlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, err := h.service.Deposit(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, entry)
}

// WithdrawHandler debits an account.
func (h *Handlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, err := h.service.Withdraw(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, entry)
}

// GetEntryHandler fetches a single ledger entry.
func (h *Handlers) GetEntryHandler(w http.ResponseWriter, r *http.Request) {
	entryID, ok := pathID(r, "entryID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	entry, err := h.service.GetEntry(r.Context(), entryID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

// GetStatementHandler returns a page of ledger entries for an account.
func (h *Handlers) GetStatementHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(r, "accountID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Invalid account id")
		return
	}

	limit, offset := pageParams(r)
	entries, err := h.service.GetStatement(r.Context(), accountID, limit, offset)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	h.writeJSON(w, http.StatusOK, entries)
}
