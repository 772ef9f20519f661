/**
 * @description
 * HTTP handlers for the transfer endpoints: internal transfers, external
 * transfers, and reference-id lookup.
 */

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mannykwaning/banking-app/internal/domain"
)

// recordTransferOutcome feeds the transfer counters. A nil err counts a
// success; limit policy errors additionally increment the per-limit counter.
func (h *Handlers) recordTransferOutcome(kind string, err error) {
	if h.metrics == nil {
		return
	}
	if err == nil {
		h.metrics.IncrTransfer(kind, "accepted")
		return
	}
	h.metrics.IncrTransfer(kind, "rejected")

	var (
		belowMin   *domain.ErrAmountBelowMinimum
		aboveMax   *domain.ErrAmountAboveMaximum
		noFunds    *domain.ErrInsufficientFunds
		minBalance *domain.ErrMinimumBalanceBreached
		dailyCap   *domain.ErrDailyLimitExceeded
	)
	switch {
	case errors.As(err, &belowMin):
		h.metrics.IncrLimitRejection("minimum_amount")
	case errors.As(err, &aboveMax):
		h.metrics.IncrLimitRejection("maximum_amount")
	case errors.As(err, &noFunds):
		h.metrics.IncrLimitRejection("insufficient_funds")
	case errors.As(err, &minBalance):
		h.metrics.IncrLimitRejection("minimum_balance")
	case errors.As(err, &dailyCap):
		h.metrics.IncrLimitRejection("daily_limit")
	}
}

// InternalTransferHandler moves money between two accounts at this bank.
func (h *Handlers) InternalTransferHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.InternalTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := h.service.CreateInternalTransfer(r.Context(), req)
	if err != nil {
		h.recordTransferOutcome(domain.TransferKindInternal, err)
		h.handleServiceError(w, r, err)
		return
	}
	h.recordTransferOutcome(domain.TransferKindInternal, nil)
	h.writeJSON(w, http.StatusCreated, view)
}

// ExternalTransferHandler initiates a transfer to an account at another bank.
func (h *Handlers) ExternalTransferHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ExternalTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := h.service.CreateExternalTransfer(r.Context(), req)
	if err != nil {
		h.recordTransferOutcome(domain.TransferKindExternal, err)
		h.handleServiceError(w, r, err)
		return
	}
	h.recordTransferOutcome(domain.TransferKindExternal, nil)
	h.writeJSON(w, http.StatusCreated, view)
}

// GetTransferHandler looks a transfer up by its reference id.
func (h *Handlers) GetTransferHandler(w http.ResponseWriter, r *http.Request) {
	referenceID := strings.TrimSpace(chi.URLParam(r, "referenceID"))
	if referenceID == "" {
		h.writeError(w, http.StatusBadRequest, "Invalid reference id")
		return
	}

	view, err := h.service.GetTransferByReference(r.Context(), referenceID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}
