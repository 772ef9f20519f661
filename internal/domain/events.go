package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Routing keys published to the transfer events exchange.
const (
	EventTransferInternalCompleted = "transfer.internal.completed"
	EventTransferExternalInitiated = "transfer.external.initiated"
	EventTransferExternalCompleted = "transfer.external.completed"
	EventTransferExternalFailed    = "transfer.external.failed"
	EventTransferExternalReversed  = "transfer.external.reversed"
)

// Settlement event statuses received from the external settlement network.
const (
	SettlementStatusCompleted = "completed"
	SettlementStatusFailed    = "failed"
)

// TransferEvent is the payload published whenever a transfer changes state.
type TransferEvent struct {
	ReferenceID  string          `json:"reference_id"`
	TransferKind string          `json:"transfer_kind"`
	Status       string          `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// SettlementEvent is the payload consumed from the settlement queue. The
// settlement network reports the final disposition of a pending external
// transfer by its reference id.
type SettlementEvent struct {
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
}
