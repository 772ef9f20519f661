/**
 * @description
 * This file contains the core business logic wiring for the banking API. The
 * `Service` struct orchestrates all operations, coordinating between the
 * database repository, the limit policy, and the message broker. The
 * per-domain methods live in sibling files (transfer.go, account.go,
 * ledger.go, card.go, auth.go, errorlog.go).
 *
 * @dependencies
 * - internal/config, internal/store: Configuration and data access.
 * - pkg/rabbitmq: Event publishing.
 * - go.uber.org/zap: Structured logging.
 */

package app

import (
	"go.uber.org/zap"

	"github.com/mannykwaning/banking-app/internal/config"
	"github.com/mannykwaning/banking-app/internal/store"
	"github.com/mannykwaning/banking-app/pkg/rabbitmq"
)

// Service provides the core business logic for the banking API.
type Service struct {
	repo          store.Repository
	cfg           config.Config
	limits        TransferLimits
	eventProducer rabbitmq.Publisher
	cardCipher    *CardCipher
	rateLimiter   RateLimiter
	logger        *zap.Logger
}

// NewService creates a new service instance.
func NewService(repo store.Repository, cfg config.Config, producer rabbitmq.Publisher, logger *zap.Logger) (*Service, error) {
	cipher, err := NewCardCipher(cfg.CardEncryptionSecret)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:          repo,
		cfg:           cfg,
		limits:        LimitsFromConfig(cfg),
		eventProducer: producer,
		cardCipher:    cipher,
		logger:        logger,
	}, nil
}

// SetRateLimiter enables distributed rate limiting on transfer initiation.
// Without one the service accepts transfers at any rate.
func (s *Service) SetRateLimiter(limiter RateLimiter) {
	s.rateLimiter = limiter
}
