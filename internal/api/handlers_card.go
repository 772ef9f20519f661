/**
 * @description
 * HTTP handlers for card issuance and lifecycle endpoints. Responses carry
 * only the masked card data; the encrypted PAN and CVV never serialize.
 */

package api

import (
	"encoding/json"
	"net/http"

	"github.com/mannykwaning/banking-app/internal/domain"
)

// IssueCardHandler issues a new card against an account.
func (h *Handlers) IssueCardHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.IssueCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	card, err := h.service.IssueCard(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, card)
}

// GetCardHandler fetches a single card.
func (h *Handlers) GetCardHandler(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(r, "cardID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Invalid card id")
		return
	}

	card, err := h.service.GetCard(r.Context(), cardID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, card)
}

// ListCardsHandler returns all cards issued against an account.
func (h *Handlers) ListCardsHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(r, "accountID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Invalid account id")
		return
	}

	cards, err := h.service.ListCards(r.Context(), accountID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if cards == nil {
		cards = []domain.Card{}
	}
	h.writeJSON(w, http.StatusOK, cards)
}

// UpdateCardStatusHandler transitions a card's status.
func (h *Handlers) UpdateCardStatusHandler(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(r, "cardID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Invalid card id")
		return
	}

	var req domain.UpdateCardStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	card, err := h.service.UpdateCardStatus(r.Context(), cardID, req.Status)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, card)
}
