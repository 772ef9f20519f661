/**
 * @description
 * HTTP handlers for user registration and login.
 */

package api

import (
	"encoding/json"
	"net/http"

	"github.com/mannykwaning/banking-app/internal/domain"
)

// RegisterHandler creates a new user.
func (h *Handlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, user)
}

// LoginHandler verifies credentials and returns an access token.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, token)
}

// MeHandler returns the profile of the authenticated user.
func (h *Handlers) MeHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := GetUsername(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.service.GetUserByUsername(r.Context(), username)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}
