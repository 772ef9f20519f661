package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mannykwaning/banking-app/internal/domain"
	"github.com/mannykwaning/banking-app/internal/observability"
	"github.com/mannykwaning/banking-app/internal/store"
)

// SettlementConsumer resolves pending external transfers from settlement
// network events. A completed event finalizes the leg; a failed event flips
// it to failed and refunds the source account in the same unit of work.
type SettlementConsumer struct {
	repo    store.Repository
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewSettlementConsumer creates a consumer bound to the repository.
func NewSettlementConsumer(repo store.Repository, logger *zap.Logger) *SettlementConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementConsumer{repo: repo, logger: logger}
}

// SetMetrics attaches the settlement counters. A nil receiver value leaves
// metric recording disabled.
func (c *SettlementConsumer) SetMetrics(metrics *observability.Metrics) {
	c.metrics = metrics
}

func (c *SettlementConsumer) countSettlement(disposition string) {
	if c.metrics != nil {
		c.metrics.IncrSettlement(disposition)
	}
}

// HandleMessage processes one settlement event. The return value is the ack
// decision: true acknowledges (including malformed payloads, which would
// never succeed on redelivery), false requeues transient failures.
func (c *SettlementConsumer) HandleMessage(body []byte) bool {
	var event domain.SettlementEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Warn("settlement-consumer: failed to unmarshal payload", zap.Error(err))
		return true
	}

	if event.ReferenceID == "" {
		c.logger.Warn("settlement-consumer: missing reference id in event")
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := c.processEvent(ctx, event); err != nil {
		c.logger.Error("settlement-consumer: processing error",
			zap.String("reference_id", event.ReferenceID),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (c *SettlementConsumer) processEvent(ctx context.Context, event domain.SettlementEvent) error {
	switch normalizeSettlementStatus(event.Status) {
	case domain.SettlementStatusCompleted:
		_, err := c.repo.CompleteExternalTransfer(ctx, event.ReferenceID)
		if errors.Is(err, store.ErrNoPendingTransfer) {
			// Already settled or never existed; replays are acknowledged.
			c.logger.Info("settlement-consumer: no pending transfer for completion; acknowledging",
				zap.String("reference_id", event.ReferenceID))
			c.countSettlement("replay")
			return nil
		}
		if err != nil {
			return fmt.Errorf("complete transfer: %w", err)
		}
		c.logger.Info("settlement-consumer: external transfer completed",
			zap.String("reference_id", event.ReferenceID))
		c.countSettlement("completed")
		return nil
	case domain.SettlementStatusFailed:
		_, err := c.repo.FailExternalTransfer(ctx, event.ReferenceID, event.Reason)
		if errors.Is(err, store.ErrNoPendingTransfer) {
			c.logger.Info("settlement-consumer: no pending transfer for failure; acknowledging",
				zap.String("reference_id", event.ReferenceID))
			c.countSettlement("replay")
			return nil
		}
		if err != nil {
			return fmt.Errorf("fail transfer: %w", err)
		}
		c.logger.Info("settlement-consumer: external transfer failed and refunded",
			zap.String("reference_id", event.ReferenceID),
			zap.String("reason", event.Reason))
		c.countSettlement("failed")
		return nil
	default:
		c.logger.Info("settlement-consumer: ignoring event with unknown status",
			zap.String("reference_id", event.ReferenceID),
			zap.String("status", event.Status))
		c.countSettlement("ignored")
		return nil
	}
}

func normalizeSettlementStatus(status string) string {
	status = strings.TrimSpace(strings.ToLower(status))
	switch status {
	case "successful", "success", "settled", "completed":
		return domain.SettlementStatusCompleted
	case "failed", "failure", "rejected", "returned":
		return domain.SettlementStatusFailed
	default:
		return status
	}
}
