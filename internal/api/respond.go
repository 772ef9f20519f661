package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mannykwaning/banking-app/internal/domain"
)

// writeJSON is a helper for writing JSON responses.
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// classify maps a service error to an HTTP status, an error log category and
// the message exposed to the caller. Persistence failures return a generic
// message; internal detail goes to the logs only.
func classify(err error) (status int, category, errorType, message string) {
	var (
		notFound     *domain.ErrNotFound
		validation   *domain.ErrValidation
		sameAccount  *domain.ErrSameAccount
		belowMin     *domain.ErrAmountBelowMinimum
		aboveMax     *domain.ErrAmountAboveMaximum
		insufficient *domain.ErrInsufficientFunds
		minBalance   *domain.ErrMinimumBalanceBreached
		dailyLimit   *domain.ErrDailyLimitExceeded
		rateLimited  *domain.ErrRateLimited
		unauthorized *domain.ErrUnauthorized
		conflict     *domain.ErrConflict
		persistence  *domain.ErrPersistence
	)

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, domain.ErrorCategoryValidation, "not_found", err.Error()
	case errors.As(err, &validation):
		return http.StatusBadRequest, domain.ErrorCategoryValidation, "validation", err.Error()
	case errors.As(err, &sameAccount):
		return http.StatusBadRequest, domain.ErrorCategoryValidation, "same_account", err.Error()
	case errors.As(err, &belowMin):
		return http.StatusBadRequest, domain.ErrorCategoryValidation, "amount_below_minimum", err.Error()
	case errors.As(err, &aboveMax):
		return http.StatusBadRequest, domain.ErrorCategoryValidation, "amount_above_maximum", err.Error()
	case errors.As(err, &insufficient):
		return http.StatusBadRequest, domain.ErrorCategoryValidation, "insufficient_funds", err.Error()
	case errors.As(err, &minBalance):
		return http.StatusBadRequest, domain.ErrorCategoryValidation, "minimum_balance", err.Error()
	case errors.As(err, &dailyLimit):
		return http.StatusBadRequest, domain.ErrorCategoryValidation, "daily_limit", err.Error()
	case errors.As(err, &rateLimited):
		return http.StatusTooManyRequests, domain.ErrorCategoryValidation, "rate_limited", err.Error()
	case errors.As(err, &unauthorized):
		return http.StatusUnauthorized, domain.ErrorCategoryAuth, "unauthorized", err.Error()
	case errors.As(err, &conflict):
		return http.StatusConflict, domain.ErrorCategoryValidation, "conflict", err.Error()
	case errors.As(err, &persistence):
		return http.StatusInternalServerError, domain.ErrorCategoryDatabase, "persistence", "internal server error"
	default:
		return http.StatusInternalServerError, domain.ErrorCategoryServer, "unknown", "internal server error"
	}
}

// handleServiceError writes the mapped error response and records the error
// for the admin report. Client errors from validation are recorded too, so
// the report shows what callers get wrong most.
func (h *Handlers) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, category, errorType, message := classify(err)
	if status >= 500 {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	entry := domain.ErrorLog{
		Category:   category,
		ErrorType:  errorType,
		HTTPMethod: r.Method,
		Endpoint:   r.URL.Path,
		StatusCode: status,
		Message:    err.Error(),
		RequestID:  middleware.GetReqID(r.Context()),
	}
	if username, ok := GetUsername(r.Context()); ok {
		entry.UserID = username
	}
	h.service.RecordError(r.Context(), entry)

	var rateLimited *domain.ErrRateLimited
	if errors.As(err, &rateLimited) {
		w.Header().Set("Retry-After", strconv.Itoa(rateLimited.RetryAfterSeconds))
	}
	h.writeError(w, status, message)
}
