/**
 * @description
 * Transfer engine: validates transfer requests against the limit policy and
 * delegates the balance movement to the repository's atomic operations. A
 * pre-check failure leaves no trace in the ledger; once the repository unit
 * commits, both the balances and the ledger legs are durable together.
 *
 * Key features:
 * - Internal transfers write two completed legs sharing one TXN- reference.
 * - External transfers write one pending EXT- leg carrying the destination
 *   bank identifiers; settlement resolves it asynchronously.
 * - Transfer lookup reassembles the public view from the ledger legs.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mannykwaning/banking-app/internal/domain"
	"github.com/mannykwaning/banking-app/internal/store"
)

var (
	externalAccountNumberPattern = regexp.MustCompile(`^\d{8,20}$`)
	routingNumberPattern         = regexp.MustCompile(`^\d{9}$`)
)

// dailyWindowStart returns midnight UTC of the current day. The daily
// transfer limit accumulates over this window and resets when it rolls over.
func dailyWindowStart(now time.Time) time.Time {
	utc := now.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}

// CreateInternalTransfer moves money between two accounts held at this bank.
func (s *Service) CreateInternalTransfer(ctx context.Context, req domain.InternalTransferRequest) (*domain.TransferView, error) {
	if req.SourceAccountID == req.DestinationAccountID {
		return nil, &domain.ErrSameAccount{AccountID: req.SourceAccountID}
	}

	if err := s.consumeTransferRate(ctx, req.SourceAccountID); err != nil {
		return nil, err
	}

	source, err := s.repo.FindAccountByID(ctx, req.SourceAccountID)
	if err != nil {
		return nil, mapAccountLookupErr(err, req.SourceAccountID)
	}
	if _, err := s.repo.FindAccountByID(ctx, req.DestinationAccountID); err != nil {
		return nil, mapAccountLookupErr(err, req.DestinationAccountID)
	}

	dailyTotal, err := s.checkLimits(ctx, source, req.Amount, domain.TransferKindInternal)
	if err != nil {
		return nil, err
	}

	referenceID := NewReference(ReferencePrefixInternal)
	outLeg, inLeg, err := s.repo.PerformInternalTransfer(ctx, store.InternalTransferParams{
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Amount:               req.Amount,
		Description:          req.Description,
		ReferenceID:          referenceID,
		MinBalance:           s.limits.MinBalance,
		DailyLimit:           s.limits.DailyLimit,
		DailySince:           dailyWindowStart(time.Now()),
	})
	if err != nil {
		if mapped := s.mapTransferRaceErr(err, source, req.Amount, dailyTotal); mapped != nil {
			return nil, mapped
		}
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, &domain.ErrNotFound{Resource: "account", ID: strconv.FormatInt(req.SourceAccountID, 10)}
		}
		return nil, &domain.ErrPersistence{Op: "internal transfer", Err: err}
	}

	s.logger.Info("internal transfer completed",
		zap.String("reference_id", referenceID),
		zap.Int64("source_account_id", req.SourceAccountID),
		zap.Int64("destination_account_id", req.DestinationAccountID),
		zap.String("amount", req.Amount.String()),
	)
	s.publishTransferEvent(domain.EventTransferInternalCompleted, referenceID, domain.TransferKindInternal, domain.EntryStatusCompleted, req.Amount)

	return assembleTransferView(outLeg, inLeg), nil
}

// CreateExternalTransfer debits an account in favor of an account at another
// bank. The outgoing leg stays pending until the settlement network reports
// a disposition.
func (s *Service) CreateExternalTransfer(ctx context.Context, req domain.ExternalTransferRequest) (*domain.TransferView, error) {
	if err := validateExternalDetails(req); err != nil {
		return nil, err
	}
	if err := s.consumeTransferRate(ctx, req.SourceAccountID); err != nil {
		return nil, err
	}

	source, err := s.repo.FindAccountByID(ctx, req.SourceAccountID)
	if err != nil {
		return nil, mapAccountLookupErr(err, req.SourceAccountID)
	}

	dailyTotal, err := s.checkLimits(ctx, source, req.Amount, domain.TransferKindExternal)
	if err != nil {
		return nil, err
	}

	referenceID := NewReference(ReferencePrefixExternal)
	entry, err := s.repo.PerformExternalTransfer(ctx, store.ExternalTransferParams{
		SourceAccountID:       req.SourceAccountID,
		Amount:                req.Amount,
		Description:           req.Description,
		ReferenceID:           referenceID,
		MinBalance:            s.limits.MinBalance,
		DailyLimit:            s.limits.DailyLimit,
		DailySince:            dailyWindowStart(time.Now()),
		ExternalAccountNumber: req.ExternalAccountNumber,
		ExternalBankName:      req.ExternalBankName,
		ExternalRoutingNumber: req.ExternalRoutingNumber,
	})
	if err != nil {
		if mapped := s.mapTransferRaceErr(err, source, req.Amount, dailyTotal); mapped != nil {
			return nil, mapped
		}
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, &domain.ErrNotFound{Resource: "account", ID: strconv.FormatInt(req.SourceAccountID, 10)}
		}
		return nil, &domain.ErrPersistence{Op: "external transfer", Err: err}
	}

	s.logger.Info("external transfer initiated",
		zap.String("reference_id", referenceID),
		zap.Int64("source_account_id", req.SourceAccountID),
		zap.String("amount", req.Amount.String()),
		zap.String("external_bank", req.ExternalBankName),
	)
	s.publishTransferEvent(domain.EventTransferExternalInitiated, referenceID, domain.TransferKindExternal, domain.EntryStatusPending, req.Amount)

	return assembleTransferView(entry, nil), nil
}

// GetTransferByReference reassembles the public transfer view from the
// ledger legs sharing the given reference id.
func (s *Service) GetTransferByReference(ctx context.Context, referenceID string) (*domain.TransferView, error) {
	entries, err := s.repo.FindEntriesByReferenceID(ctx, referenceID)
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "transfer lookup", Err: err}
	}

	var outLeg, inLeg *domain.LedgerEntry
	for i := range entries {
		switch entries[i].Kind {
		case domain.EntryKindTransferOut:
			if outLeg == nil {
				outLeg = &entries[i]
			}
		case domain.EntryKindTransferIn:
			if inLeg == nil {
				inLeg = &entries[i]
			}
		}
	}
	// A transfer is identified by its outgoing leg; refund deposits that
	// share the reference id do not make one on their own.
	if outLeg == nil {
		return nil, &domain.ErrNotFound{Resource: "transfer", ID: referenceID}
	}
	return assembleTransferView(outLeg, inLeg), nil
}

// consumeTransferRate counts one transfer attempt against the per-account
// rate limit. A limiter outage fails open: losing the limit beats refusing
// all transfers.
func (s *Service) consumeTransferRate(ctx context.Context, accountID int64) error {
	if s.rateLimiter == nil {
		return nil
	}
	count, retryAfter, err := s.rateLimiter.ConsumeRateLimit(ctx, "transfer", strconv.FormatInt(accountID, 10), s.cfg.TransferRateLimitPerMinute, time.Minute)
	if err != nil {
		s.logger.Warn("rate limiter unavailable; allowing transfer",
			zap.Int64("account_id", accountID),
			zap.Error(err),
		)
		return nil
	}
	if s.cfg.TransferRateLimitPerMinute > 0 && count > s.cfg.TransferRateLimitPerMinute {
		return &domain.ErrRateLimited{RetryAfterSeconds: retryAfter}
	}
	return nil
}

// mapTransferRaceErr translates a limit violation detected under the store's
// row lock into the same typed error the pre-check would have produced. The
// balance or aggregate moved between the pre-check and the lock, so the
// numbers reported come from the pre-check read. Returns nil for errors that
// are not in-lock limit violations.
func (s *Service) mapTransferRaceErr(err error, source *domain.Account, amount, dailyTotal decimal.Decimal) error {
	switch {
	case errors.Is(err, store.ErrInsufficientFunds):
		return &domain.ErrInsufficientFunds{Available: source.Balance, Required: amount}
	case errors.Is(err, store.ErrMinBalanceBreached):
		return &domain.ErrMinimumBalanceBreached{Residual: source.Balance.Sub(amount), Minimum: s.limits.MinBalance}
	case errors.Is(err, store.ErrDailyLimitExceeded):
		return &domain.ErrDailyLimitExceeded{DailyTotal: dailyTotal, Requested: amount, Limit: s.limits.DailyLimit}
	}
	return nil
}

// checkLimits runs the ordered limit policy against the source account's
// current balance and the rolling daily aggregate. The aggregate it read is
// returned so a later in-lock recheck failure can report the numbers.
func (s *Service) checkLimits(ctx context.Context, source *domain.Account, amount decimal.Decimal, transferKind string) (decimal.Decimal, error) {
	dailyTotal, err := s.repo.DailyOutgoingTotal(ctx, source.ID, dailyWindowStart(time.Now()))
	if err != nil {
		return decimal.Zero, &domain.ErrPersistence{Op: "daily total aggregation", Err: err}
	}
	return dailyTotal, s.limits.Check(amount, source.Balance, dailyTotal, transferKind)
}

func validateExternalDetails(req domain.ExternalTransferRequest) error {
	if !externalAccountNumberPattern.MatchString(req.ExternalAccountNumber) {
		return &domain.ErrValidation{Field: "external_account_number", Message: "must be 8 to 20 digits"}
	}
	if req.ExternalBankName == "" {
		return &domain.ErrValidation{Field: "external_bank_name", Message: "must not be empty"}
	}
	if !routingNumberPattern.MatchString(req.ExternalRoutingNumber) {
		return &domain.ErrValidation{Field: "external_routing_number", Message: "must be exactly 9 digits"}
	}
	return nil
}

func mapAccountLookupErr(err error, accountID int64) error {
	if errors.Is(err, store.ErrAccountNotFound) {
		return &domain.ErrNotFound{Resource: "account", ID: strconv.FormatInt(accountID, 10)}
	}
	return &domain.ErrPersistence{Op: fmt.Sprintf("account %d lookup", accountID), Err: err}
}

func assembleTransferView(outLeg, inLeg *domain.LedgerEntry) *domain.TransferView {
	view := &domain.TransferView{
		TransferID:            outLeg.ReferenceID,
		SourceEntryID:         outLeg.ID,
		TransferKind:          outLeg.TransferKind,
		Amount:                outLeg.Amount,
		Status:                outLeg.Status,
		SourceAccountID:       outLeg.AccountID,
		ExternalAccountNumber: outLeg.ExternalAccountNumber,
		ExternalBankName:      outLeg.ExternalBankName,
		ExternalRoutingNumber: outLeg.ExternalRoutingNumber,
		Description:           outLeg.Description,
		CreatedAt:             outLeg.CreatedAt,
		UpdatedAt:             outLeg.UpdatedAt,
	}
	if outLeg.CounterpartyAccountID != nil {
		view.DestinationAccountID = outLeg.CounterpartyAccountID
	}
	if inLeg != nil {
		view.DestinationEntryID = &inLeg.ID
		accountID := inLeg.AccountID
		view.DestinationAccountID = &accountID
	}
	return view
}

// publishTransferEvent emits a transfer lifecycle event. Publishing is best
// effort; a broker outage never fails the money movement that already
// committed.
func (s *Service) publishTransferEvent(routingKey, referenceID, transferKind, status string, amount decimal.Decimal) {
	if s.eventProducer == nil {
		return
	}
	event := domain.TransferEvent{
		ReferenceID:  referenceID,
		TransferKind: transferKind,
		Status:       status,
		Amount:       amount,
		OccurredAt:   time.Now().UTC(),
	}
	if err := s.eventProducer.Publish(routingKey, event); err != nil {
		s.logger.Warn("failed to publish transfer event",
			zap.String("routing_key", routingKey),
			zap.String("reference_id", referenceID),
			zap.Error(err),
		)
	}
}
