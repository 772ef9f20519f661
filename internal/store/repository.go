/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the banking API. By defining an interface,
 * we decouple the application's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/shopspring/decimal: Exact decimal amounts for balances.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mannykwaning/banking-app/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Account methods
	CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error)
	FindAccountByID(ctx context.Context, accountID int64) (*domain.Account, error)
	FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	ListAccounts(ctx context.Context, limit, offset int) ([]domain.Account, error)
	UpdateAccountHolder(ctx context.Context, accountID int64, holderName string) (*domain.Account, error)
	DeleteAccount(ctx context.Context, accountID int64) error

	// Ledger entry methods
	FindEntryByID(ctx context.Context, entryID int64) (*domain.LedgerEntry, error)
	FindEntriesByAccountID(ctx context.Context, accountID int64, limit, offset int) ([]domain.LedgerEntry, error)
	FindEntriesByReferenceID(ctx context.Context, referenceID string) ([]domain.LedgerEntry, error)
	DailyOutgoingTotal(ctx context.Context, accountID int64, since time.Time) (decimal.Decimal, error)

	// Atomic balance movement methods. Each of these owns its own database
	// transaction: row locks, balance updates and ledger inserts commit or
	// roll back as one unit.
	ApplyDeposit(ctx context.Context, accountID int64, amount decimal.Decimal, description, referenceID string) (*domain.LedgerEntry, error)
	ApplyWithdrawal(ctx context.Context, accountID int64, amount, minBalance decimal.Decimal, description, referenceID string) (*domain.LedgerEntry, error)
	PerformInternalTransfer(ctx context.Context, p InternalTransferParams) (*domain.LedgerEntry, *domain.LedgerEntry, error)
	PerformExternalTransfer(ctx context.Context, p ExternalTransferParams) (*domain.LedgerEntry, error)

	// External settlement methods
	CompleteExternalTransfer(ctx context.Context, referenceID string) (*domain.LedgerEntry, error)
	FailExternalTransfer(ctx context.Context, referenceID string, reason string) (*domain.LedgerEntry, error)
	ReverseExternalTransfer(ctx context.Context, entryID int64) (*domain.LedgerEntry, error)
	ListStalePendingExternal(ctx context.Context, olderThan time.Time) ([]domain.LedgerEntry, error)

	// User methods
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	FindUserByUsername(ctx context.Context, username string) (*domain.User, error)
	FindUserByID(ctx context.Context, userID int64) (*domain.User, error)

	// Card methods
	CreateCard(ctx context.Context, card *domain.Card) (*domain.Card, error)
	FindCardByID(ctx context.Context, cardID int64) (*domain.Card, error)
	FindCardsByAccountID(ctx context.Context, accountID int64) ([]domain.Card, error)
	CountActiveCardsByAccountID(ctx context.Context, accountID int64) (int, error)
	UpdateCardStatus(ctx context.Context, cardID int64, status string) (*domain.Card, error)

	// Error log methods
	CreateErrorLog(ctx context.Context, entry *domain.ErrorLog) error
	ListErrorLogs(ctx context.Context, filter domain.ErrorLogFilter) ([]domain.ErrorLog, error)
	FindErrorLogByID(ctx context.Context, errorID int64) (*domain.ErrorLog, error)
	SummarizeErrorLogs(ctx context.Context, since time.Time) (*domain.ErrorLogSummary, error)
}

// InternalTransferParams carries everything the store needs to move money
// between two accounts and write both ledger legs in one transaction.
// MinBalance and the daily cap are re-verified under the source row lock;
// a zero DailyLimit disables the in-transaction daily recheck.
type InternalTransferParams struct {
	SourceAccountID      int64
	DestinationAccountID int64
	Amount               decimal.Decimal
	Description          string
	ReferenceID          string
	MinBalance           decimal.Decimal
	DailyLimit           decimal.Decimal
	DailySince           time.Time
}

// ExternalTransferParams carries everything the store needs to debit the
// source account and record the pending outgoing leg in one transaction.
type ExternalTransferParams struct {
	SourceAccountID       int64
	Amount                decimal.Decimal
	Description           string
	ReferenceID           string
	MinBalance            decimal.Decimal
	DailyLimit            decimal.Decimal
	DailySince            time.Time
	ExternalAccountNumber string
	ExternalBankName      string
	ExternalRoutingNumber string
}
