/**
 * @description
 * This file implements the atomic balance movement operations of the
 * `Repository` interface. Every method here opens a single database
 * transaction, locks the affected account rows with `SELECT ... FOR UPDATE`,
 * re-validates balances under the lock, and writes both the balance updates
 * and the ledger rows before committing. A failure at any step rolls the
 * whole unit back, so balances and ledger entries never diverge.
 *
 * Rows are always locked in ascending account id order so two concurrent
 * transfers touching the same pair of accounts cannot deadlock each other.
 */

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mannykwaning/banking-app/internal/domain"
)

const insertEntryQuery = `
	INSERT INTO ledger_entries (
		account_id, kind, amount, description, status, reference_id,
		transfer_kind, counterparty_account_id, external_account_number,
		external_bank_name, external_routing_number
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING ` + entryColumns

// lockBalance reads and locks a single account row inside tx.
func lockBalance(ctx context.Context, tx pgx.Tx, accountID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	// Use FOR UPDATE to lock the row, preventing race conditions.
	err := tx.QueryRow(ctx, "SELECT balance FROM accounts WHERE id = $1 FOR UPDATE", accountID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return decimal.Zero, ErrAccountNotFound
		}
		return decimal.Zero, err
	}
	return balance, nil
}

// checkDailyCap re-verifies the rolling daily aggregate inside the caller's
// transaction. Because it runs after the source row is locked, competing
// transfers from the same account are serialized and cannot both slip under
// the cap. A non-positive limit disables the check.
func checkDailyCap(ctx context.Context, tx pgx.Tx, accountID int64, amount, dailyLimit decimal.Decimal, since time.Time) error {
	if !dailyLimit.IsPositive() {
		return nil
	}
	total, err := dailyOutgoingTotal(ctx, tx, accountID, since)
	if err != nil {
		return err
	}
	if total.Add(amount).GreaterThan(dailyLimit) {
		return ErrDailyLimitExceeded
	}
	return nil
}

func setBalance(ctx context.Context, tx pgx.Tx, accountID int64, balance decimal.Decimal) error {
	_, err := tx.Exec(ctx, "UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2", balance, accountID)
	return err
}

func insertEntry(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	return scanEntry(tx.QueryRow(ctx, insertEntryQuery,
		e.AccountID, e.Kind, e.Amount, e.Description, e.Status, e.ReferenceID,
		e.TransferKind, e.CounterpartyAccountID, e.ExternalAccountNumber,
		e.ExternalBankName, e.ExternalRoutingNumber,
	))
}

// ApplyDeposit atomically credits an account and records the deposit entry.
func (r *PostgresRepository) ApplyDeposit(ctx context.Context, accountID int64, amount decimal.Decimal, description, referenceID string) (*domain.LedgerEntry, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	balance, err := lockBalance(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if err := setBalance(ctx, tx, accountID, balance.Add(amount)); err != nil {
		return nil, err
	}

	entry, err := insertEntry(ctx, tx, &domain.LedgerEntry{
		AccountID:   accountID,
		Kind:        domain.EntryKindDeposit,
		Amount:      amount,
		Description: description,
		Status:      domain.EntryStatusCompleted,
		ReferenceID: referenceID,
	})
	if err != nil {
		return nil, err
	}
	return entry, tx.Commit(ctx)
}

// ApplyWithdrawal atomically debits an account and records the withdrawal
// entry. Both the balance and the residual minimum are re-checked under the
// row lock, so two racing withdrawals cannot together drive the balance
// below the account minimum.
func (r *PostgresRepository) ApplyWithdrawal(ctx context.Context, accountID int64, amount, minBalance decimal.Decimal, description, referenceID string) (*domain.LedgerEntry, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	balance, err := lockBalance(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}
	if balance.Sub(amount).LessThan(minBalance) {
		return nil, ErrMinBalanceBreached
	}
	if err := setBalance(ctx, tx, accountID, balance.Sub(amount)); err != nil {
		return nil, err
	}

	entry, err := insertEntry(ctx, tx, &domain.LedgerEntry{
		AccountID:   accountID,
		Kind:        domain.EntryKindWithdrawal,
		Amount:      amount,
		Description: description,
		Status:      domain.EntryStatusCompleted,
		ReferenceID: referenceID,
	})
	if err != nil {
		return nil, err
	}
	return entry, tx.Commit(ctx)
}

// PerformInternalTransfer moves money between two accounts and records both
// ledger legs. Both account rows are locked before any balance changes, in
// ascending id order, and the source balance is re-validated under the lock.
func (r *PostgresRepository) PerformInternalTransfer(ctx context.Context, p InternalTransferParams) (*domain.LedgerEntry, *domain.LedgerEntry, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock both rows in ascending id order to avoid deadlock against a
	// concurrent transfer running in the opposite direction.
	first, second := p.SourceAccountID, p.DestinationAccountID
	if second < first {
		first, second = second, first
	}
	balances := make(map[int64]decimal.Decimal, 2)
	for _, id := range []int64{first, second} {
		balance, err := lockBalance(ctx, tx, id)
		if err != nil {
			return nil, nil, err
		}
		balances[id] = balance
	}

	sourceBalance := balances[p.SourceAccountID]
	if sourceBalance.LessThan(p.Amount) {
		return nil, nil, ErrInsufficientFunds
	}
	if sourceBalance.Sub(p.Amount).LessThan(p.MinBalance) {
		return nil, nil, ErrMinBalanceBreached
	}
	if err := checkDailyCap(ctx, tx, p.SourceAccountID, p.Amount, p.DailyLimit, p.DailySince); err != nil {
		return nil, nil, err
	}

	if err := setBalance(ctx, tx, p.SourceAccountID, sourceBalance.Sub(p.Amount)); err != nil {
		return nil, nil, err
	}
	if err := setBalance(ctx, tx, p.DestinationAccountID, balances[p.DestinationAccountID].Add(p.Amount)); err != nil {
		return nil, nil, err
	}

	destID := p.DestinationAccountID
	srcID := p.SourceAccountID
	outLeg, err := insertEntry(ctx, tx, &domain.LedgerEntry{
		AccountID:             p.SourceAccountID,
		Kind:                  domain.EntryKindTransferOut,
		Amount:                p.Amount,
		Description:           p.Description,
		Status:                domain.EntryStatusCompleted,
		ReferenceID:           p.ReferenceID,
		TransferKind:          domain.TransferKindInternal,
		CounterpartyAccountID: &destID,
	})
	if err != nil {
		return nil, nil, err
	}
	inLeg, err := insertEntry(ctx, tx, &domain.LedgerEntry{
		AccountID:             p.DestinationAccountID,
		Kind:                  domain.EntryKindTransferIn,
		Amount:                p.Amount,
		Description:           p.Description,
		Status:                domain.EntryStatusCompleted,
		ReferenceID:           p.ReferenceID,
		TransferKind:          domain.TransferKindInternal,
		CounterpartyAccountID: &srcID,
	})
	if err != nil {
		return nil, nil, err
	}
	return outLeg, inLeg, tx.Commit(ctx)
}

// PerformExternalTransfer debits the source account and records the pending
// outgoing leg. Settlement of the external side happens asynchronously; the
// entry stays pending until the settlement network reports a disposition.
func (r *PostgresRepository) PerformExternalTransfer(ctx context.Context, p ExternalTransferParams) (*domain.LedgerEntry, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	balance, err := lockBalance(ctx, tx, p.SourceAccountID)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(p.Amount) {
		return nil, ErrInsufficientFunds
	}
	if balance.Sub(p.Amount).LessThan(p.MinBalance) {
		return nil, ErrMinBalanceBreached
	}
	if err := checkDailyCap(ctx, tx, p.SourceAccountID, p.Amount, p.DailyLimit, p.DailySince); err != nil {
		return nil, err
	}
	if err := setBalance(ctx, tx, p.SourceAccountID, balance.Sub(p.Amount)); err != nil {
		return nil, err
	}

	entry, err := insertEntry(ctx, tx, &domain.LedgerEntry{
		AccountID:             p.SourceAccountID,
		Kind:                  domain.EntryKindTransferOut,
		Amount:                p.Amount,
		Description:           p.Description,
		Status:                domain.EntryStatusPending,
		ReferenceID:           p.ReferenceID,
		TransferKind:          domain.TransferKindExternal,
		ExternalAccountNumber: p.ExternalAccountNumber,
		ExternalBankName:      p.ExternalBankName,
		ExternalRoutingNumber: p.ExternalRoutingNumber,
	})
	if err != nil {
		return nil, err
	}
	return entry, tx.Commit(ctx)
}

// lockPendingExternal locks a pending external transfer_out leg by reference.
func lockPendingExternal(ctx context.Context, tx pgx.Tx, referenceID string) (*domain.LedgerEntry, error) {
	entry, err := scanEntry(tx.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE reference_id = $1 AND kind = 'transfer_out' AND transfer_kind = 'external' AND status = 'pending'
		FOR UPDATE
	`, referenceID))
	if err != nil {
		if err == ErrEntryNotFound {
			return nil, ErrNoPendingTransfer
		}
		return nil, err
	}
	return entry, nil
}

// CompleteExternalTransfer marks a pending external transfer as completed.
// The debit was taken at initiation time, so no balance change is needed.
func (r *PostgresRepository) CompleteExternalTransfer(ctx context.Context, referenceID string) (*domain.LedgerEntry, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	entry, err := lockPendingExternal(ctx, tx, referenceID)
	if err != nil {
		return nil, err
	}
	updated, err := scanEntry(tx.QueryRow(ctx, `
		UPDATE ledger_entries SET status = 'completed', updated_at = NOW()
		WHERE id = $1
		RETURNING `+entryColumns, entry.ID))
	if err != nil {
		return nil, err
	}
	return updated, tx.Commit(ctx)
}

// FailExternalTransfer marks a pending external transfer as failed and
// credits the debited amount back to the source account, recording the
// compensating deposit under the same reference id. Both writes commit as
// one unit.
func (r *PostgresRepository) FailExternalTransfer(ctx context.Context, referenceID string, reason string) (*domain.LedgerEntry, error) {
	return r.unwindExternalTransferByReference(ctx, referenceID, domain.EntryStatusFailed, reason)
}

// ReverseExternalTransfer expires a stale pending external transfer: the
// entry moves to reversed status and the source account is refunded.
func (r *PostgresRepository) ReverseExternalTransfer(ctx context.Context, entryID int64) (*domain.LedgerEntry, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	entry, err := scanEntry(tx.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE id = $1 AND kind = 'transfer_out' AND transfer_kind = 'external' AND status = 'pending'
		FOR UPDATE
	`, entryID))
	if err != nil {
		if err == ErrEntryNotFound {
			return nil, ErrNoPendingTransfer
		}
		return nil, err
	}

	updated, err := r.unwindLockedExternal(ctx, tx, entry, domain.EntryStatusReversed, "external transfer expired")
	if err != nil {
		return nil, err
	}
	return updated, tx.Commit(ctx)
}

func (r *PostgresRepository) unwindExternalTransferByReference(ctx context.Context, referenceID, newStatus, reason string) (*domain.LedgerEntry, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	entry, err := lockPendingExternal(ctx, tx, referenceID)
	if err != nil {
		return nil, err
	}
	updated, err := r.unwindLockedExternal(ctx, tx, entry, newStatus, reason)
	if err != nil {
		return nil, err
	}
	return updated, tx.Commit(ctx)
}

// unwindLockedExternal flips an already-locked pending external leg to the
// given terminal status and refunds the source account inside the caller's
// transaction.
func (r *PostgresRepository) unwindLockedExternal(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry, newStatus, reason string) (*domain.LedgerEntry, error) {
	updated, err := scanEntry(tx.QueryRow(ctx, `
		UPDATE ledger_entries SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+entryColumns, newStatus, entry.ID))
	if err != nil {
		return nil, err
	}

	balance, err := lockBalance(ctx, tx, entry.AccountID)
	if err != nil {
		return nil, err
	}
	if err := setBalance(ctx, tx, entry.AccountID, balance.Add(entry.Amount)); err != nil {
		return nil, err
	}

	description := "refund: " + reason
	if reason == "" {
		description = "refund: external transfer " + newStatus
	}
	if _, err := insertEntry(ctx, tx, &domain.LedgerEntry{
		AccountID:   entry.AccountID,
		Kind:        domain.EntryKindDeposit,
		Amount:      entry.Amount,
		Description: description,
		Status:      domain.EntryStatusCompleted,
		ReferenceID: entry.ReferenceID,
	}); err != nil {
		return nil, err
	}
	return updated, nil
}
