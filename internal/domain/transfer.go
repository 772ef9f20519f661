/**
 * @description
 * Transfer request and response DTOs. A TransferView is the public shape of a
 * transfer, reconstructed from the one or two ledger entries that share its
 * reference id. Reference ids are prefixed TXN- for internal transfers and
 * EXT- for external ones, followed by twelve uppercase hex characters.
 */

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InternalTransferRequest is the DTO for account-to-account transfers.
type InternalTransferRequest struct {
	SourceAccountID      int64           `json:"source_account_id"`
	DestinationAccountID int64           `json:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount"`
	Description          string          `json:"description,omitempty"`
}

// ExternalTransferRequest is the DTO for transfers to another bank.
type ExternalTransferRequest struct {
	SourceAccountID       int64           `json:"source_account_id"`
	ExternalAccountNumber string          `json:"external_account_number"`
	ExternalBankName      string          `json:"external_bank_name"`
	ExternalRoutingNumber string          `json:"external_routing_number"`
	Amount                decimal.Decimal `json:"amount"`
	Description           string          `json:"description,omitempty"`
}

// TransferView is the public representation of a transfer. For internal
// transfers both entry ids and account ids are set; for external transfers
// the destination-side fields are nil and the external identifiers are
// echoed back.
type TransferView struct {
	TransferID               string          `json:"transfer_id"`
	SourceEntryID            int64           `json:"source_transaction_id"`
	DestinationEntryID       *int64          `json:"destination_transaction_id,omitempty"`
	TransferKind             string          `json:"transfer_type"`
	Amount                   decimal.Decimal `json:"amount"`
	Status                   string          `json:"status"`
	SourceAccountID          int64           `json:"source_account_id"`
	DestinationAccountID     *int64          `json:"destination_account_id,omitempty"`
	ExternalAccountNumber    string          `json:"external_account_number,omitempty"`
	ExternalBankName         string          `json:"external_bank_name,omitempty"`
	ExternalRoutingNumber    string          `json:"external_routing_number,omitempty"`
	Description              string          `json:"description,omitempty"`
	CreatedAt                time.Time       `json:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at"`
}
