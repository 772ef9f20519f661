/**
 * @description
 * Scheduled job implementations. The expiry sweep reverses external
 * transfers that stayed pending past the configured window, refunding the
 * source account for each one.
 */
package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mannykwaning/banking-app/internal/config"
	"github.com/mannykwaning/banking-app/internal/domain"
	"github.com/mannykwaning/banking-app/internal/store"
	"github.com/mannykwaning/banking-app/pkg/rabbitmq"
)

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	repo          store.Repository
	eventProducer rabbitmq.Publisher
	logger        *zap.Logger
	config        config.Config
}

// NewJobs creates a new Jobs runner.
func NewJobs(repo store.Repository, producer rabbitmq.Publisher, logger *zap.Logger, cfg config.Config) *Jobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Jobs{
		repo:          repo,
		eventProducer: producer,
		logger:        logger,
		config:        cfg,
	}
}

// ProcessPendingTransferExpiry reverses external transfers that have been
// pending longer than the configured expiry window.
func (j *Jobs) ProcessPendingTransferExpiry() {
	j.logger.Info("starting pending transfer expiry job")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-time.Duration(j.config.PendingTransferExpiryHours) * time.Hour)
	stale, err := j.repo.ListStalePendingExternal(ctx, cutoff)
	if err != nil {
		j.logger.Error("failed to list stale pending transfers", zap.Error(err))
		return
	}

	reversed := 0
	for _, entry := range stale {
		updated, err := j.repo.ReverseExternalTransfer(ctx, entry.ID)
		if err != nil {
			// Settlement may have resolved the leg between the list and the
			// lock; skip it and keep sweeping.
			j.logger.Warn("failed to reverse stale pending transfer",
				zap.Int64("entry_id", entry.ID),
				zap.String("reference_id", entry.ReferenceID),
				zap.Error(err),
			)
			continue
		}
		reversed++
		if j.eventProducer != nil {
			event := domain.TransferEvent{
				ReferenceID:  updated.ReferenceID,
				TransferKind: domain.TransferKindExternal,
				Status:       domain.EntryStatusReversed,
				Amount:       updated.Amount,
				OccurredAt:   time.Now().UTC(),
			}
			if err := j.eventProducer.Publish(domain.EventTransferExternalReversed, event); err != nil {
				j.logger.Warn("failed to publish reversal event",
					zap.String("reference_id", updated.ReferenceID),
					zap.Error(err),
				)
			}
		}
	}

	j.logger.Info("pending transfer expiry job finished",
		zap.Int("candidates", len(stale)),
		zap.Int("reversed", reversed),
	)
}
