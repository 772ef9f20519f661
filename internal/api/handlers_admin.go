/**
 * @description
 * Admin-only HTTP handlers for the error log report. Listing supports
 * category, status and time filters; the summary aggregates counts over a
 * trailing window (default 24 hours).
 */

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mannykwaning/banking-app/internal/domain"
)

// ListErrorLogsHandler returns filtered error records, newest first.
func (h *Handlers) ListErrorLogsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ErrorLogFilter{
		Category: q.Get("category"),
	}
	if status, err := strconv.Atoi(q.Get("status_code")); err == nil {
		filter.StatusCode = status
	}
	if since, err := time.Parse(time.RFC3339, q.Get("since")); err == nil {
		filter.Since = since
	}
	filter.Limit, filter.Offset = pageParams(r)

	logs, err := h.service.ListErrors(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if logs == nil {
		logs = []domain.ErrorLog{}
	}
	h.writeJSON(w, http.StatusOK, logs)
}

// RecentErrorLogsHandler returns the newest error records without filters.
func (h *Handlers) RecentErrorLogsHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	logs, err := h.service.RecentErrors(r.Context(), limit)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if logs == nil {
		logs = []domain.ErrorLog{}
	}
	h.writeJSON(w, http.StatusOK, logs)
}

// GetErrorLogHandler fetches a single error record.
func (h *Handlers) GetErrorLogHandler(w http.ResponseWriter, r *http.Request) {
	errorID, ok := pathID(r, "errorID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Invalid error log id")
		return
	}

	entry, err := h.service.GetError(r.Context(), errorID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

// SummarizeErrorLogsHandler aggregates error counts over a trailing window.
func (h *Handlers) SummarizeErrorLogsHandler(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if hours, err := strconv.Atoi(r.URL.Query().Get("hours")); err == nil && hours > 0 {
		window = time.Duration(hours) * time.Hour
	}

	summary, err := h.service.SummarizeErrors(r.Context(), window)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}
