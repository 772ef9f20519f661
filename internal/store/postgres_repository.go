/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the database tables
 * related to accounts, ledger entries, users, cards, and error logs. The atomic
 * balance movement methods live in postgres_transfer.go.
 *
 * @dependencies
 * - context, time, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/shopspring/decimal: Exact decimal amounts for balances.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mannykwaning/banking-app/internal/domain"
)

var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrEntryNotFound          = errors.New("ledger entry not found")
	ErrUserNotFound           = errors.New("user not found")
	ErrCardNotFound           = errors.New("card not found")
	ErrDuplicateAccountNumber = errors.New("account number already exists")
	ErrDuplicateUsername      = errors.New("username already exists")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrMinBalanceBreached     = errors.New("balance would fall below the account minimum")
	ErrDailyLimitExceeded     = errors.New("daily transfer limit exceeded")
	ErrNoPendingTransfer      = errors.New("no pending external transfer for reference")
	ErrAccountHasBalance      = errors.New("account balance must be zero before deletion")
	ErrErrorLogNotFound       = errors.New("error log entry not found")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, account_number, holder_name, account_type, balance, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.AccountNumber, &a.HolderName, &a.AccountType, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

// CreateAccount inserts a new account row and returns it with generated fields.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (account_number, holder_name, account_type, balance)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + accountColumns
	created, err := scanAccount(r.db.QueryRow(ctx, query,
		account.AccountNumber,
		account.HolderName,
		account.AccountType,
		account.Balance,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 = unique_violation; the account number generator retries on this.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateAccountNumber
		}
		return nil, err
	}
	return created, nil
}

// FindAccountByID retrieves an account from the database by its ID.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, accountID))
}

// FindAccountByNumber retrieves an account from the database by its account number.
func (r *PostgresRepository) FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	return scanAccount(r.db.QueryRow(ctx, query, accountNumber))
}

// ListAccounts returns a page of accounts ordered by creation time.
func (r *PostgresRepository) ListAccounts(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.AccountNumber, &a.HolderName, &a.AccountType, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// UpdateAccountHolder updates the holder name on an account.
func (r *PostgresRepository) UpdateAccountHolder(ctx context.Context, accountID int64, holderName string) (*domain.Account, error) {
	query := `
		UPDATE accounts SET holder_name = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + accountColumns
	return scanAccount(r.db.QueryRow(ctx, query, holderName, accountID))
}

// DeleteAccount removes an account. Accounts holding a non-zero balance are
// not deletable.
func (r *PostgresRepository) DeleteAccount(ctx context.Context, accountID int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var balance decimal.Decimal
	err = tx.QueryRow(ctx, "SELECT balance FROM accounts WHERE id = $1 FOR UPDATE", accountID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrAccountNotFound
		}
		return err
	}
	if !balance.IsZero() {
		return ErrAccountHasBalance
	}

	if _, err = tx.Exec(ctx, "DELETE FROM accounts WHERE id = $1", accountID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const entryColumns = `id, account_id, kind, amount, description, status, reference_id,
	transfer_kind, counterparty_account_id, external_account_number, external_bank_name,
	external_routing_number, created_at, updated_at`

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	err := row.Scan(
		&e.ID, &e.AccountID, &e.Kind, &e.Amount, &e.Description, &e.Status, &e.ReferenceID,
		&e.TransferKind, &e.CounterpartyAccountID, &e.ExternalAccountNumber, &e.ExternalBankName,
		&e.ExternalRoutingNumber, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &e, nil
}

func scanEntries(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	defer rows.Close()
	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(
			&e.ID, &e.AccountID, &e.Kind, &e.Amount, &e.Description, &e.Status, &e.ReferenceID,
			&e.TransferKind, &e.CounterpartyAccountID, &e.ExternalAccountNumber, &e.ExternalBankName,
			&e.ExternalRoutingNumber, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// FindEntryByID retrieves a single ledger entry by its ID.
func (r *PostgresRepository) FindEntryByID(ctx context.Context, entryID int64) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE id = $1`
	return scanEntry(r.db.QueryRow(ctx, query, entryID))
}

// FindEntriesByAccountID returns a page of ledger entries for an account,
// newest first.
func (r *PostgresRepository) FindEntriesByAccountID(ctx context.Context, accountID int64, limit, offset int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// FindEntriesByReferenceID returns all ledger entries sharing a transfer
// reference id. The outgoing leg sorts first so callers can assemble the
// transfer view without re-sorting.
func (r *PostgresRepository) FindEntriesByReferenceID(ctx context.Context, referenceID string) ([]domain.LedgerEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE reference_id = $1
		ORDER BY CASE kind WHEN 'transfer_out' THEN 0 ELSE 1 END, id
	`
	rows, err := r.db.Query(ctx, query, referenceID)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// rowQuerier is satisfied by both the pool and an open transaction, so the
// daily aggregate can run standalone or inside a locked transfer unit.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// dailyOutgoingTotal sums completed outgoing money (transfers out and
// withdrawals) for an account since the given instant. Pending, failed and
// reversed entries do not count against the daily limit.
func dailyOutgoingTotal(ctx context.Context, q rowQuerier, accountID int64, since time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE account_id = $1
		  AND kind IN ('transfer_out', 'withdrawal')
		  AND status = 'completed'
		  AND created_at >= $2
	`
	var total decimal.Decimal
	if err := q.QueryRow(ctx, query, accountID, since).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// DailyOutgoingTotal reports the rolling outgoing aggregate for an account.
func (r *PostgresRepository) DailyOutgoingTotal(ctx context.Context, accountID int64, since time.Time) (decimal.Decimal, error) {
	return dailyOutgoingTotal(ctx, r.db, accountID, since)
}

// ListStalePendingExternal returns pending external transfer legs created
// before the given cutoff. Used by the expiry sweep job.
func (r *PostgresRepository) ListStalePendingExternal(ctx context.Context, olderThan time.Time) ([]domain.LedgerEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE kind = 'transfer_out'
		  AND transfer_kind = 'external'
		  AND status = 'pending'
		  AND created_at < $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, olderThan)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// CreateUser inserts a new user row.
func (r *PostgresRepository) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, is_active, is_admin)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, username, email, password_hash, is_active, is_admin, created_at, updated_at
	`
	var created domain.User
	err := r.db.QueryRow(ctx, query, user.Username, user.Email, user.PasswordHash, user.IsActive, user.IsAdmin).
		Scan(&created.ID, &created.Username, &created.Email, &created.PasswordHash, &created.IsActive, &created.IsAdmin, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	return &created, nil
}

// FindUserByUsername retrieves a user from the database by their username.
func (r *PostgresRepository) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	query := `SELECT id, username, email, password_hash, is_active, is_admin, created_at, updated_at FROM users WHERE lower(btrim(username)) = lower(btrim($1))`
	err := r.db.QueryRow(ctx, query, username).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.IsActive, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindUserByID retrieves a user from the database by their ID.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID int64) (*domain.User, error) {
	var user domain.User
	query := `SELECT id, username, email, password_hash, is_active, is_admin, created_at, updated_at FROM users WHERE id = $1`
	err := r.db.QueryRow(ctx, query, userID).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.IsActive, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

const cardColumns = `id, account_id, cardholder_name, card_type, last4, encrypted_pan, encrypted_cvv, expiry_month, expiry_year, status, issued_at, created_at, updated_at`

func scanCard(row pgx.Row) (*domain.Card, error) {
	var c domain.Card
	err := row.Scan(
		&c.ID, &c.AccountID, &c.CardholderName, &c.CardType, &c.Last4, &c.EncryptedPAN, &c.EncryptedCVV,
		&c.ExpiryMonth, &c.ExpiryYear, &c.Status, &c.IssuedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &c, nil
}

// CreateCard inserts a new card row.
func (r *PostgresRepository) CreateCard(ctx context.Context, card *domain.Card) (*domain.Card, error) {
	query := `
		INSERT INTO cards (account_id, cardholder_name, card_type, last4, encrypted_pan, encrypted_cvv, expiry_month, expiry_year, status, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING ` + cardColumns
	return scanCard(r.db.QueryRow(ctx, query,
		card.AccountID, card.CardholderName, card.CardType, card.Last4, card.EncryptedPAN, card.EncryptedCVV,
		card.ExpiryMonth, card.ExpiryYear, card.Status,
	))
}

// FindCardByID retrieves a card by its ID.
func (r *PostgresRepository) FindCardByID(ctx context.Context, cardID int64) (*domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`
	return scanCard(r.db.QueryRow(ctx, query, cardID))
}

// FindCardsByAccountID returns all cards issued against an account.
func (r *PostgresRepository) FindCardsByAccountID(ctx context.Context, accountID int64) ([]domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE account_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		if err := rows.Scan(
			&c.ID, &c.AccountID, &c.CardholderName, &c.CardType, &c.Last4, &c.EncryptedPAN, &c.EncryptedCVV,
			&c.ExpiryMonth, &c.ExpiryYear, &c.Status, &c.IssuedAt, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// CountActiveCardsByAccountID counts cards in active status for an account.
func (r *PostgresRepository) CountActiveCardsByAccountID(ctx context.Context, accountID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM cards WHERE account_id = $1 AND status = 'active'`
	if err := r.db.QueryRow(ctx, query, accountID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateCardStatus transitions a card to a new status.
func (r *PostgresRepository) UpdateCardStatus(ctx context.Context, cardID int64, status string) (*domain.Card, error) {
	query := `
		UPDATE cards SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + cardColumns
	return scanCard(r.db.QueryRow(ctx, query, status, cardID))
}

// CreateErrorLog persists a sanitized error record.
func (r *PostgresRepository) CreateErrorLog(ctx context.Context, entry *domain.ErrorLog) error {
	var contextJSON []byte
	if len(entry.Context) > 0 {
		b, err := json.Marshal(entry.Context)
		if err != nil {
			return err
		}
		contextJSON = b
	}
	query := `
		INSERT INTO error_logs (category, error_type, http_method, endpoint, status_code, message, user_id, request_id, context, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`
	_, err := r.db.Exec(ctx, query,
		entry.Category, entry.ErrorType, entry.HTTPMethod, entry.Endpoint,
		entry.StatusCode, entry.Message, entry.UserID, entry.RequestID, contextJSON,
	)
	return err
}

// ListErrorLogs returns error records matching the filter, newest first.
func (r *PostgresRepository) ListErrorLogs(ctx context.Context, filter domain.ErrorLogFilter) ([]domain.ErrorLog, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, category, error_type, http_method, endpoint, status_code, message, user_id, request_id, context, timestamp
		FROM error_logs
		WHERE ($1 = '' OR category = $1)
		  AND ($2 = 0 OR status_code = $2)
		  AND timestamp >= $3
		ORDER BY timestamp DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := r.db.Query(ctx, query, filter.Category, filter.StatusCode, filter.Since, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.ErrorLog
	for rows.Next() {
		var e domain.ErrorLog
		var contextJSON []byte
		if err := rows.Scan(
			&e.ID, &e.Category, &e.ErrorType, &e.HTTPMethod, &e.Endpoint,
			&e.StatusCode, &e.Message, &e.UserID, &e.RequestID, &contextJSON, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		if len(contextJSON) > 0 {
			if err := json.Unmarshal(contextJSON, &e.Context); err != nil {
				return nil, err
			}
		}
		logs = append(logs, e)
	}
	return logs, rows.Err()
}

// FindErrorLogByID retrieves a single error record.
func (r *PostgresRepository) FindErrorLogByID(ctx context.Context, errorID int64) (*domain.ErrorLog, error) {
	query := `
		SELECT id, category, error_type, http_method, endpoint, status_code, message, user_id, request_id, context, timestamp
		FROM error_logs
		WHERE id = $1
	`
	var e domain.ErrorLog
	var contextJSON []byte
	err := r.db.QueryRow(ctx, query, errorID).Scan(
		&e.ID, &e.Category, &e.ErrorType, &e.HTTPMethod, &e.Endpoint,
		&e.StatusCode, &e.Message, &e.UserID, &e.RequestID, &contextJSON, &e.Timestamp,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrErrorLogNotFound
		}
		return nil, err
	}
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &e.Context); err != nil {
			return nil, err
		}
	}
	return &e, nil
}

// SummarizeErrorLogs aggregates error counts by category and status code
// since the given instant.
func (r *PostgresRepository) SummarizeErrorLogs(ctx context.Context, since time.Time) (*domain.ErrorLogSummary, error) {
	summary := &domain.ErrorLogSummary{
		ByCategory: make(map[string]int64),
		ByStatus:   make(map[int]int64),
	}

	rows, err := r.db.Query(ctx, `
		SELECT category, status_code, COUNT(*)
		FROM error_logs
		WHERE timestamp >= $1
		GROUP BY category, status_code
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var statusCode int
		var count int64
		if err := rows.Scan(&category, &statusCode, &count); err != nil {
			return nil, err
		}
		summary.Total += count
		summary.ByCategory[category] += count
		summary.ByStatus[statusCode] += count
	}
	return summary, rows.Err()
}
