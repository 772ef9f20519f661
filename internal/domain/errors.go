package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Error types for consistent error handling across the service. Each variant
// carries the numbers a caller needs to render a precise message, so
// diagnostics never depend on parsing free text.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a malformed or unacceptable input field.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrSameAccount indicates a transfer where source and destination match.
type ErrSameAccount struct {
	AccountID int64
}

func (e *ErrSameAccount) Error() string {
	return fmt.Sprintf("source and destination accounts must be different: %d", e.AccountID)
}

// ErrAmountBelowMinimum indicates a transfer below the configured floor.
type ErrAmountBelowMinimum struct {
	Amount  decimal.Decimal
	Minimum decimal.Decimal
}

func (e *ErrAmountBelowMinimum) Error() string {
	return fmt.Sprintf("transfer amount %s is below the minimum of %s", e.Amount, e.Minimum)
}

// ErrAmountAboveMaximum indicates a transfer above the applicable ceiling.
// External transfers carry a tighter ceiling than internal ones.
type ErrAmountAboveMaximum struct {
	Amount       decimal.Decimal
	Maximum      decimal.Decimal
	TransferKind string
}

func (e *ErrAmountAboveMaximum) Error() string {
	return fmt.Sprintf("transfer amount %s exceeds the %s maximum of %s", e.Amount, e.TransferKind, e.Maximum)
}

// ErrInsufficientFunds indicates not enough balance for the operation.
type ErrInsufficientFunds struct {
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds: available=%s required=%s", e.Available, e.Required)
}

// ErrMinimumBalanceBreached indicates the residual balance would fall below
// the configured minimum account balance.
type ErrMinimumBalanceBreached struct {
	Residual decimal.Decimal
	Minimum  decimal.Decimal
}

func (e *ErrMinimumBalanceBreached) Error() string {
	return fmt.Sprintf("transfer would bring balance to %s, below the minimum of %s", e.Residual, e.Minimum)
}

// ErrDailyLimitExceeded indicates the rolling UTC-day aggregate cap would be
// exceeded.
type ErrDailyLimitExceeded struct {
	DailyTotal decimal.Decimal
	Requested  decimal.Decimal
	Limit      decimal.Decimal
}

func (e *ErrDailyLimitExceeded) Error() string {
	return fmt.Sprintf("daily transfer limit exceeded: used=%s requested=%s limit=%s", e.DailyTotal, e.Requested, e.Limit)
}

// ErrPersistence indicates the atomic unit of work could not commit. All
// effects of that unit were rolled back before this error propagated.
type ErrPersistence struct {
	Op  string
	Err error
}

func (e *ErrPersistence) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *ErrPersistence) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the caller exceeded the per-account transfer rate
// limit. RetryAfterSeconds is the time until the current window resets.
type ErrRateLimited struct {
	RetryAfterSeconds int
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("too many transfer attempts; retry in %d seconds", e.RetryAfterSeconds)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict indicates a resource already exists (e.g. duplicate username).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}
