/**
 * @description
 * Account lifecycle operations: opening accounts with generated ten-digit
 * account numbers, lookups, holder updates, and closure of empty accounts.
 */

package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mannykwaning/banking-app/internal/domain"
	"github.com/mannykwaning/banking-app/internal/store"
)

// accountNumberAttempts bounds the retry loop for generated account numbers.
// With ten random digits a collision is rare; hitting the bound means the
// random source is broken, not the keyspace.
const accountNumberAttempts = 5

// newAccountNumber draws a random ten-digit account number. Leading zeros
// are allowed, so the keyspace is the full 10^10.
func newAccountNumber() (string, error) {
	max := big.NewInt(10_000_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%010d", n), nil
}

// CreateAccount opens a new account with a zero or seeded starting balance.
func (s *Service) CreateAccount(ctx context.Context, req domain.CreateAccountRequest) (*domain.Account, error) {
	if req.HolderName == "" {
		return nil, &domain.ErrValidation{Field: "holder_name", Message: "must not be empty"}
	}
	if !domain.ValidAccountType(req.AccountType) {
		return nil, &domain.ErrValidation{Field: "account_type", Message: "must be checking or savings"}
	}
	if req.InitialBalance.IsNegative() {
		return nil, &domain.ErrValidation{Field: "initial_balance", Message: "must not be negative"}
	}

	for attempt := 0; attempt < accountNumberAttempts; attempt++ {
		number, err := newAccountNumber()
		if err != nil {
			return nil, &domain.ErrPersistence{Op: "account number generation", Err: err}
		}
		created, err := s.repo.CreateAccount(ctx, &domain.Account{
			AccountNumber: number,
			HolderName:    req.HolderName,
			AccountType:   req.AccountType,
			Balance:       req.InitialBalance,
		})
		if err != nil {
			if errors.Is(err, store.ErrDuplicateAccountNumber) {
				continue
			}
			return nil, &domain.ErrPersistence{Op: "account creation", Err: err}
		}
		s.logger.Info("account opened",
			zap.Int64("account_id", created.ID),
			zap.String("account_type", created.AccountType),
		)
		return created, nil
	}
	return nil, &domain.ErrPersistence{Op: "account creation", Err: errors.New("could not generate a unique account number")}
}

// GetAccount fetches an account by its id.
func (s *Service) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, mapAccountLookupErr(err, accountID)
	}
	return account, nil
}

// GetAccountByNumber fetches an account by its ten-digit account number.
func (s *Service) GetAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	account, err := s.repo.FindAccountByNumber(ctx, accountNumber)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, &domain.ErrNotFound{Resource: "account", ID: accountNumber}
		}
		return nil, &domain.ErrPersistence{Op: "account lookup", Err: err}
	}
	return account, nil
}

// ListAccounts returns a page of accounts.
func (s *Service) ListAccounts(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	accounts, err := s.repo.ListAccounts(ctx, limit, offset)
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "account listing", Err: err}
	}
	return accounts, nil
}

// UpdateAccountHolder renames the holder on an account.
func (s *Service) UpdateAccountHolder(ctx context.Context, accountID int64, holderName string) (*domain.Account, error) {
	if holderName == "" {
		return nil, &domain.ErrValidation{Field: "holder_name", Message: "must not be empty"}
	}
	account, err := s.repo.UpdateAccountHolder(ctx, accountID, holderName)
	if err != nil {
		return nil, mapAccountLookupErr(err, accountID)
	}
	return account, nil
}

// CloseAccount deletes an account. Only empty accounts are closable;
// accounts still holding money report a conflict.
func (s *Service) CloseAccount(ctx context.Context, accountID int64) error {
	err := s.repo.DeleteAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return &domain.ErrNotFound{Resource: "account", ID: strconv.FormatInt(accountID, 10)}
		}
		if errors.Is(err, store.ErrAccountHasBalance) {
			return &domain.ErrConflict{Message: "account balance must be zero before deletion"}
		}
		return &domain.ErrPersistence{Op: "account deletion", Err: err}
	}
	s.logger.Info("account closed", zap.Int64("account_id", accountID))
	return nil
}

// GetBalance returns the current balance of an account.
func (s *Service) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return decimal.Zero, mapAccountLookupErr(err, accountID)
	}
	return account.Balance, nil
}
