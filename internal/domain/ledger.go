/**
 * @description
 * This file defines the ledger entry model, the central record for any money
 * movement in the system. A deposit or withdrawal produces one entry; an
 * internal transfer produces exactly two entries (transfer_out on the source,
 * transfer_in on the destination) correlated by a shared reference id; an
 * external transfer produces a single pending transfer_out entry carrying the
 * destination bank identifiers.
 *
 * Entries are immutable once written, with one exception: the status of a
 * pending external transfer_out may transition to completed, failed or
 * reversed when settlement resolves.
 */

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger entry kinds.
const (
	EntryKindDeposit     = "deposit"
	EntryKindWithdrawal  = "withdrawal"
	EntryKindTransferOut = "transfer_out"
	EntryKindTransferIn  = "transfer_in"
)

// Ledger entry statuses.
const (
	EntryStatusPending   = "pending"
	EntryStatusCompleted = "completed"
	EntryStatusFailed    = "failed"
	EntryStatusReversed  = "reversed"
)

// Transfer kinds.
const (
	TransferKindInternal = "internal"
	TransferKindExternal = "external"
)

// LedgerEntry represents one account-side effect of a monetary movement.
// Amount is always a positive magnitude; the kind determines direction.
type LedgerEntry struct {
	ID          int64           `json:"id"`
	AccountID   int64           `json:"account_id"`
	Kind        string          `json:"transaction_type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Status      string          `json:"status"`

	// Transfer correlation. Empty for plain deposits and withdrawals.
	ReferenceID  string `json:"reference_id,omitempty"`
	TransferKind string `json:"transfer_type,omitempty"`

	// Counterparty for internal transfers.
	CounterpartyAccountID *int64 `json:"counterparty_account_id,omitempty"`

	// Destination identifiers for external transfers.
	ExternalAccountNumber string `json:"external_account_number,omitempty"`
	ExternalBankName      string `json:"external_bank_name,omitempty"`
	ExternalRoutingNumber string `json:"external_routing_number,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateEntryRequest is the DTO for recording a deposit or withdrawal.
type CreateEntryRequest struct {
	AccountID   int64           `json:"account_id"`
	Kind        string          `json:"transaction_type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}
