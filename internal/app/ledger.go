/**
 * @description
 * Deposit, withdrawal and statement operations. Deposits and withdrawals
 * reuse the repository's atomic balance movements, so the balance change and
 * the ledger entry land in the same committed unit.
 */

package app

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/mannykwaning/banking-app/internal/domain"
	"github.com/mannykwaning/banking-app/internal/store"
)

// Deposit credits an account and records the ledger entry.
func (s *Service) Deposit(ctx context.Context, req domain.CreateEntryRequest) (*domain.LedgerEntry, error) {
	if !req.Amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}

	entry, err := s.repo.ApplyDeposit(ctx, req.AccountID, req.Amount, req.Description, "")
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, &domain.ErrNotFound{Resource: "account", ID: strconv.FormatInt(req.AccountID, 10)}
		}
		return nil, &domain.ErrPersistence{Op: "deposit", Err: err}
	}
	s.logger.Info("deposit recorded",
		zap.Int64("account_id", req.AccountID),
		zap.String("amount", req.Amount.String()),
	)
	return entry, nil
}

// Withdraw debits an account and records the ledger entry. Completed
// withdrawals count toward the daily outgoing aggregate that caps transfers.
func (s *Service) Withdraw(ctx context.Context, req domain.CreateEntryRequest) (*domain.LedgerEntry, error) {
	if !req.Amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}

	account, err := s.repo.FindAccountByID(ctx, req.AccountID)
	if err != nil {
		return nil, mapAccountLookupErr(err, req.AccountID)
	}
	if account.Balance.LessThan(req.Amount) {
		return nil, &domain.ErrInsufficientFunds{Available: account.Balance, Required: req.Amount}
	}
	if account.Balance.Sub(req.Amount).LessThan(s.limits.MinBalance) {
		return nil, &domain.ErrMinimumBalanceBreached{Residual: account.Balance.Sub(req.Amount), Minimum: s.limits.MinBalance}
	}

	entry, err := s.repo.ApplyWithdrawal(ctx, req.AccountID, req.Amount, s.limits.MinBalance, req.Description, "")
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			// The balance moved between the pre-check and the row lock.
			return nil, &domain.ErrInsufficientFunds{Available: account.Balance, Required: req.Amount}
		}
		if errors.Is(err, store.ErrMinBalanceBreached) {
			return nil, &domain.ErrMinimumBalanceBreached{Residual: account.Balance.Sub(req.Amount), Minimum: s.limits.MinBalance}
		}
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, &domain.ErrNotFound{Resource: "account", ID: strconv.FormatInt(req.AccountID, 10)}
		}
		return nil, &domain.ErrPersistence{Op: "withdrawal", Err: err}
	}
	s.logger.Info("withdrawal recorded",
		zap.Int64("account_id", req.AccountID),
		zap.String("amount", req.Amount.String()),
	)
	return entry, nil
}

// GetEntry fetches a single ledger entry by id.
func (s *Service) GetEntry(ctx context.Context, entryID int64) (*domain.LedgerEntry, error) {
	entry, err := s.repo.FindEntryByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, store.ErrEntryNotFound) {
			return nil, &domain.ErrNotFound{Resource: "transaction", ID: strconv.FormatInt(entryID, 10)}
		}
		return nil, &domain.ErrPersistence{Op: "entry lookup", Err: err}
	}
	return entry, nil
}

// GetStatement returns a page of ledger entries for an account, newest
// first. The account must exist; an empty statement is not an error.
func (s *Service) GetStatement(ctx context.Context, accountID int64, limit, offset int) ([]domain.LedgerEntry, error) {
	if _, err := s.repo.FindAccountByID(ctx, accountID); err != nil {
		return nil, mapAccountLookupErr(err, accountID)
	}
	entries, err := s.repo.FindEntriesByAccountID(ctx, accountID, limit, offset)
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "statement lookup", Err: err}
	}
	return entries, nil
}
