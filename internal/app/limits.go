/**
 * @description
 * This file implements the monetary limit policy applied to every transfer.
 * Checks run in a fixed order and the first violated limit is the one
 * reported to the caller, so API responses stay stable regardless of how
 * many limits a request breaks at once.
 */

package app

import (
	"github.com/shopspring/decimal"

	"github.com/mannykwaning/banking-app/internal/config"
	"github.com/mannykwaning/banking-app/internal/domain"
)

// TransferLimits holds the monetary policy applied to outgoing transfers.
type TransferLimits struct {
	MinAmount   decimal.Decimal
	MaxAmount   decimal.Decimal
	MaxExternal decimal.Decimal
	DailyLimit  decimal.Decimal
	MinBalance  decimal.Decimal
}

// LimitsFromConfig builds the limit policy from loaded configuration.
func LimitsFromConfig(cfg config.Config) TransferLimits {
	return TransferLimits{
		MinAmount:   cfg.MinTransfer(),
		MaxAmount:   cfg.MaxTransfer(),
		MaxExternal: cfg.MaxExternalTransfer(),
		DailyLimit:  cfg.DailyLimit(),
		MinBalance:  cfg.MinBalance(),
	}
}

// Check validates a proposed transfer against the limit policy. Checks run
// in order: minimum amount, maximum amount (external ceiling for external
// transfers), available balance, residual minimum balance, then the rolling
// daily limit. The first failure is returned.
func (l TransferLimits) Check(amount, balance, dailyTotal decimal.Decimal, transferKind string) error {
	if amount.LessThan(l.MinAmount) {
		return &domain.ErrAmountBelowMinimum{Amount: amount, Minimum: l.MinAmount}
	}

	maxAmount := l.MaxAmount
	if transferKind == domain.TransferKindExternal && l.MaxExternal.LessThan(maxAmount) {
		maxAmount = l.MaxExternal
	}
	if amount.GreaterThan(maxAmount) {
		return &domain.ErrAmountAboveMaximum{Amount: amount, Maximum: maxAmount, TransferKind: transferKind}
	}

	if balance.LessThan(amount) {
		return &domain.ErrInsufficientFunds{Available: balance, Required: amount}
	}

	if balance.Sub(amount).LessThan(l.MinBalance) {
		return &domain.ErrMinimumBalanceBreached{Residual: balance.Sub(amount), Minimum: l.MinBalance}
	}

	if dailyTotal.Add(amount).GreaterThan(l.DailyLimit) {
		return &domain.ErrDailyLimitExceeded{DailyTotal: dailyTotal, Requested: amount, Limit: l.DailyLimit}
	}

	return nil
}
