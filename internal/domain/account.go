/**
 * @description
 * This file defines the core domain models for bank accounts and the request
 * payloads used to create them. Balances are carried as shopspring decimals so
 * that monetary arithmetic is exact; a balance is only ever replaced inside a
 * committed unit of work owned by the store layer.
 */

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account types supported by the bank.
const (
	AccountTypeChecking = "checking"
	AccountTypeSavings  = "savings"
)

// Account represents a bank account row. The balance is never mutated
// directly by callers; it changes only through the store's transactional
// transfer, deposit and withdrawal operations.
type Account struct {
	ID            int64           `json:"id"`
	AccountNumber string          `json:"account_number"`
	HolderName    string          `json:"account_holder"`
	AccountType   string          `json:"account_type"`
	Balance       decimal.Decimal `json:"balance"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CreateAccountRequest is the DTO for opening a new account.
type CreateAccountRequest struct {
	HolderName     string          `json:"account_holder"`
	AccountType    string          `json:"account_type"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// ValidAccountType reports whether t is one of the supported account types.
func ValidAccountType(t string) bool {
	return t == AccountTypeChecking || t == AccountTypeSavings
}
