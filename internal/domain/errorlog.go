package domain

import "time"

// Error log categories.
const (
	ErrorCategoryValidation = "validation"
	ErrorCategoryAuth       = "auth"
	ErrorCategoryServer     = "server"
	ErrorCategoryDatabase   = "database"
)

// ErrorLog is a sanitized record of a request that ended in an error.
// Messages stored here must never contain PII or internal details beyond
// what the API already returned to the caller.
type ErrorLog struct {
	ID         int64             `json:"id"`
	Category   string            `json:"category"`
	ErrorType  string            `json:"error_type"`
	HTTPMethod string            `json:"http_method,omitempty"`
	Endpoint   string            `json:"endpoint,omitempty"`
	StatusCode int               `json:"status_code"`
	Message    string            `json:"message"`
	UserID     string            `json:"user_id,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Context    map[string]string `json:"context,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// ErrorLogFilter controls listing of error records.
type ErrorLogFilter struct {
	Category   string
	StatusCode int
	Since      time.Time
	Limit      int
	Offset     int
}

// ErrorLogSummary aggregates error counts for the admin report.
type ErrorLogSummary struct {
	Total      int64            `json:"total"`
	ByCategory map[string]int64 `json:"by_category"`
	ByStatus   map[int]int64    `json:"by_status"`
}
