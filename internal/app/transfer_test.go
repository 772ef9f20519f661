package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mannykwaning/banking-app/internal/config"
	"github.com/mannykwaning/banking-app/internal/domain"
	"github.com/mannykwaning/banking-app/internal/store"
)

func testConfig() config.Config {
	return config.Config{
		CardEncryptionSecret:       "test-card-secret",
		JWTSecret:                  "test-jwt-secret",
		TokenExpiryMinutes:         30,
		MinTransferAmount:          0.01,
		MaxTransferAmount:          100000,
		MaxExternalTransferAmount:  50000,
		DailyTransferLimit:         500000,
		MinAccountBalance:          0,
		PendingTransferExpiryHours: 72,
		TransferRateLimitPerMinute: 30,
	}
}

func newTestService(t *testing.T, repo store.Repository) *Service {
	t.Helper()
	svc, err := NewService(repo, testConfig(), nil, nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

type transferRepoStub struct {
	store.Repository

	accounts   map[int64]*domain.Account
	dailyTotal decimal.Decimal

	internalCalled bool
	internalParams store.InternalTransferParams
	internalErr    error

	externalCalled bool
	externalParams store.ExternalTransferParams
	externalErr    error

	entriesByRef map[string][]domain.LedgerEntry
}

func (s *transferRepoStub) FindAccountByID(ctx context.Context, accountID int64) (*domain.Account, error) {
	account, ok := s.accounts[accountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return account, nil
}

func (s *transferRepoStub) DailyOutgoingTotal(ctx context.Context, accountID int64, since time.Time) (decimal.Decimal, error) {
	return s.dailyTotal, nil
}

func (s *transferRepoStub) PerformInternalTransfer(ctx context.Context, p store.InternalTransferParams) (*domain.LedgerEntry, *domain.LedgerEntry, error) {
	s.internalCalled = true
	s.internalParams = p
	if s.internalErr != nil {
		return nil, nil, s.internalErr
	}
	destID := p.DestinationAccountID
	srcID := p.SourceAccountID
	outLeg := &domain.LedgerEntry{
		ID:                    101,
		AccountID:             p.SourceAccountID,
		Kind:                  domain.EntryKindTransferOut,
		Amount:                p.Amount,
		Description:           p.Description,
		Status:                domain.EntryStatusCompleted,
		ReferenceID:           p.ReferenceID,
		TransferKind:          domain.TransferKindInternal,
		CounterpartyAccountID: &destID,
	}
	inLeg := &domain.LedgerEntry{
		ID:                    102,
		AccountID:             p.DestinationAccountID,
		Kind:                  domain.EntryKindTransferIn,
		Amount:                p.Amount,
		Description:           p.Description,
		Status:                domain.EntryStatusCompleted,
		ReferenceID:           p.ReferenceID,
		TransferKind:          domain.TransferKindInternal,
		CounterpartyAccountID: &srcID,
	}
	return outLeg, inLeg, nil
}

func (s *transferRepoStub) PerformExternalTransfer(ctx context.Context, p store.ExternalTransferParams) (*domain.LedgerEntry, error) {
	s.externalCalled = true
	s.externalParams = p
	if s.externalErr != nil {
		return nil, s.externalErr
	}
	return &domain.LedgerEntry{
		ID:                    201,
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
	}, nil
}

func (s *transferRepoStub) FindEntriesByReferenceID(ctx context.Context, referenceID string) ([]domain.LedgerEntry, error) {
	return s.entriesByRef[referenceID], nil
}

func twoAccounts(balanceA, balanceB int64) map[int64]*domain.Account {
	return map[int64]*domain.Account{
		1: {ID: 1, AccountNumber: "1111111111", HolderName: "Alice", AccountType: domain.AccountTypeChecking, Balance: decimal.NewFromInt(balanceA)},
		2: {ID: 2, AccountNumber: "2222222222", HolderName: "Bob", AccountType: domain.AccountTypeSavings, Balance: decimal.NewFromInt(balanceB)},
	}
}

func TestCreateInternalTransfer_Success(t *testing.T) {
	repo := &transferRepoStub{accounts: twoAccounts(500, 100)}
	svc := newTestService(t, repo)

	view, err := svc.CreateInternalTransfer(context.Background(), domain.InternalTransferRequest{
		SourceAccountID:      1,
		DestinationAccountID: 2,
		Amount:               decimal.NewFromInt(200),
		Description:          "rent",
	})
	if err != nil {
		t.Fatalf("expected transfer to succeed, got %v", err)
	}

	if !repo.internalCalled {
		t.Fatal("expected the repository transfer operation to be invoked")
	}
	if view.TransferKind != domain.TransferKindInternal {
		t.Fatalf("expected internal transfer kind, got %s", view.TransferKind)
	}
	if view.Status != domain.EntryStatusCompleted {
		t.Fatalf("expected completed status, got %s", view.Status)
	}
	if view.SourceAccountID != 1 || view.DestinationAccountID == nil || *view.DestinationAccountID != 2 {
		t.Fatalf("unexpected account ids in view: %+v", view)
	}
	if view.DestinationEntryID == nil {
		t.Fatal("expected both entry ids on an internal transfer view")
	}
	if !view.Amount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected amount 200, got %s", view.Amount)
	}
	if len(view.TransferID) != len("TXN-")+12 || view.TransferID[:4] != "TXN-" {
		t.Fatalf("unexpected reference id %q", view.TransferID)
	}
}

func TestCreateInternalTransfer_SameAccountRejected(t *testing.T) {
	repo := &transferRepoStub{accounts: twoAccounts(500, 100)}
	svc := newTestService(t, repo)

	_, err := svc.CreateInternalTransfer(context.Background(), domain.InternalTransferRequest{
		SourceAccountID:      1,
		DestinationAccountID: 1,
		Amount:               decimal.NewFromInt(10),
	})
	var sameAccount *domain.ErrSameAccount
	if !errors.As(err, &sameAccount) {
		t.Fatalf("expected ErrSameAccount, got %v", err)
	}
	if repo.internalCalled {
		t.Fatal("expected no repository call for a same-account transfer")
	}
}

func TestCreateInternalTransfer_DestinationNotFound(t *testing.T) {
	repo := &transferRepoStub{accounts: map[int64]*domain.Account{
		1: {ID: 1, Balance: decimal.NewFromInt(500)},
	}}
	svc := newTestService(t, repo)

	_, err := svc.CreateInternalTransfer(context.Background(), domain.InternalTransferRequest{
		SourceAccountID:      1,
		DestinationAccountID: 42,
		Amount:               decimal.NewFromInt(10),
	})
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if notFound.ID != "42" {
		t.Fatalf("expected the missing destination id in the error, got %s", notFound.ID)
	}
}

func TestCreateInternalTransfer_LimitFailureLeavesNoTrace(t *testing.T) {
	repo := &transferRepoStub{accounts: twoAccounts(100, 100)}
	svc := newTestService(t, repo)

	_, err := svc.CreateInternalTransfer(context.Background(), domain.InternalTransferRequest{
		SourceAccountID:      1,
		DestinationAccountID: 2,
		Amount:               decimal.NewFromInt(200),
	})
	var insufficient *domain.ErrInsufficientFunds
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if repo.internalCalled {
		t.Fatal("expected no repository call after a failed limit check")
	}
}

func TestCreateInternalTransfer_StoreFailureMapsToPersistence(t *testing.T) {
	repo := &transferRepoStub{
		accounts:    twoAccounts(500, 100),
		internalErr: errors.New("connection reset"),
	}
	svc := newTestService(t, repo)

	_, err := svc.CreateInternalTransfer(context.Background(), domain.InternalTransferRequest{
		SourceAccountID:      1,
		DestinationAccountID: 2,
		Amount:               decimal.NewFromInt(10),
	})
	var persistence *domain.ErrPersistence
	if !errors.As(err, &persistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestCreateInternalTransfer_InLockBalanceRecheck(t *testing.T) {
	// The pre-check passes on the cached balance, but the row lock finds
	// less money. The store error must surface as insufficient funds.
	repo := &transferRepoStub{
		accounts:    twoAccounts(500, 100),
		internalErr: store.ErrInsufficientFunds,
	}
	svc := newTestService(t, repo)

	_, err := svc.CreateInternalTransfer(context.Background(), domain.InternalTransferRequest{
		SourceAccountID:      1,
		DestinationAccountID: 2,
		Amount:               decimal.NewFromInt(400),
	})
	var insufficient *domain.ErrInsufficientFunds
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected ErrInsufficientFunds from the in-lock recheck, got %v", err)
	}
}

func TestCreateExternalTransfer_PendingWithEchoedDetails(t *testing.T) {
	repo := &transferRepoStub{accounts: twoAccounts(5000, 0)}
	svc := newTestService(t, repo)

	view, err := svc.CreateExternalTransfer(context.Background(), domain.ExternalTransferRequest{
		SourceAccountID:       1,
		ExternalAccountNumber: "12345678",
		ExternalBankName:      "First National",
		ExternalRoutingNumber: "021000021",
		Amount:                decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("expected external transfer to succeed, got %v", err)
	}

	if view.Status != domain.EntryStatusPending {
		t.Fatalf("expected pending status, got %s", view.Status)
	}
	if view.TransferKind != domain.TransferKindExternal {
		t.Fatalf("expected external kind, got %s", view.TransferKind)
	}
	if view.DestinationEntryID != nil || view.DestinationAccountID != nil {
		t.Fatal("expected no destination-side fields on an external transfer")
	}
	if view.ExternalAccountNumber != "12345678" || view.ExternalBankName != "First National" || view.ExternalRoutingNumber != "021000021" {
		t.Fatalf("expected external details echoed back, got %+v", view)
	}
	if view.TransferID[:4] != "EXT-" {
		t.Fatalf("expected EXT- reference, got %q", view.TransferID)
	}
}

func TestCreateExternalTransfer_ValidatesDestinationFields(t *testing.T) {
	repo := &transferRepoStub{accounts: twoAccounts(5000, 0)}
	svc := newTestService(t, repo)

	cases := []struct {
		name  string
		req   domain.ExternalTransferRequest
		field string
	}{
		{
			name: "account number too short",
			req: domain.ExternalTransferRequest{
				SourceAccountID: 1, ExternalAccountNumber: "1234567",
				ExternalBankName: "First National", ExternalRoutingNumber: "021000021",
				Amount: decimal.NewFromInt(10),
			},
			field: "external_account_number",
		},
		{
			name: "account number not digits",
			req: domain.ExternalTransferRequest{
				SourceAccountID: 1, ExternalAccountNumber: "12345abc",
				ExternalBankName: "First National", ExternalRoutingNumber: "021000021",
				Amount: decimal.NewFromInt(10),
			},
			field: "external_account_number",
		},
		{
			name: "empty bank name",
			req: domain.ExternalTransferRequest{
				SourceAccountID: 1, ExternalAccountNumber: "12345678",
				ExternalBankName: "", ExternalRoutingNumber: "021000021",
				Amount: decimal.NewFromInt(10),
			},
			field: "external_bank_name",
		},
		{
			name: "routing number wrong length",
			req: domain.ExternalTransferRequest{
				SourceAccountID: 1, ExternalAccountNumber: "12345678",
				ExternalBankName: "First National", ExternalRoutingNumber: "12345678",
				Amount: decimal.NewFromInt(10),
			},
			field: "external_routing_number",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateExternalTransfer(context.Background(), tc.req)
			var validation *domain.ErrValidation
			if !errors.As(err, &validation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if validation.Field != tc.field {
				t.Fatalf("expected failure on %s, got %s", tc.field, validation.Field)
			}
		})
	}
	if repo.externalCalled {
		t.Fatal("expected no repository call for invalid destination details")
	}
}

func TestCreateExternalTransfer_ExternalCeilingApplies(t *testing.T) {
	repo := &transferRepoStub{accounts: twoAccounts(80000, 0)}
	svc := newTestService(t, repo)

	_, err := svc.CreateExternalTransfer(context.Background(), domain.ExternalTransferRequest{
		SourceAccountID:       1,
		ExternalAccountNumber: "12345678",
		ExternalBankName:      "First National",
		ExternalRoutingNumber: "021000021",
		Amount:                decimal.NewFromInt(60000),
	})
	var aboveMax *domain.ErrAmountAboveMaximum
	if !errors.As(err, &aboveMax) {
		t.Fatalf("expected ErrAmountAboveMaximum, got %v", err)
	}
}

func TestGetTransferByReference_InternalView(t *testing.T) {
	destID := int64(2)
	srcID := int64(1)
	repo := &transferRepoStub{
		entriesByRef: map[string][]domain.LedgerEntry{
			"TXN-ABCDEF123456": {
				{
					ID: 101, AccountID: 1, Kind: domain.EntryKindTransferOut,
					Amount: decimal.NewFromInt(200), Status: domain.EntryStatusCompleted,
					ReferenceID: "TXN-ABCDEF123456", TransferKind: domain.TransferKindInternal,
					CounterpartyAccountID: &destID,
				},
				{
					ID: 102, AccountID: 2, Kind: domain.EntryKindTransferIn,
					Amount: decimal.NewFromInt(200), Status: domain.EntryStatusCompleted,
					ReferenceID: "TXN-ABCDEF123456", TransferKind: domain.TransferKindInternal,
					CounterpartyAccountID: &srcID,
				},
			},
		},
	}
	svc := newTestService(t, repo)

	view, err := svc.GetTransferByReference(context.Background(), "TXN-ABCDEF123456")
	if err != nil {
		t.Fatalf("expected lookup to succeed, got %v", err)
	}
	if view.SourceEntryID != 101 {
		t.Fatalf("expected outgoing leg as source, got entry %d", view.SourceEntryID)
	}
	if view.DestinationEntryID == nil || *view.DestinationEntryID != 102 {
		t.Fatalf("expected incoming leg as destination, got %+v", view.DestinationEntryID)
	}
	if view.DestinationAccountID == nil || *view.DestinationAccountID != 2 {
		t.Fatalf("expected destination account 2, got %+v", view.DestinationAccountID)
	}

	// Lookup is read only and idempotent.
	again, err := svc.GetTransferByReference(context.Background(), "TXN-ABCDEF123456")
	if err != nil {
		t.Fatalf("expected repeat lookup to succeed, got %v", err)
	}
	if again.TransferID != view.TransferID || again.SourceEntryID != view.SourceEntryID {
		t.Fatal("expected repeat lookup to return the same view")
	}
}

func TestGetTransferByReference_UnknownReference(t *testing.T) {
	repo := &transferRepoStub{entriesByRef: map[string][]domain.LedgerEntry{}}
	svc := newTestService(t, repo)

	_, err := svc.GetTransferByReference(context.Background(), "TXN-000000000000")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetTransferByReference_RefundDepositDoesNotMakeATransfer(t *testing.T) {
	// A failed external transfer leaves a refund deposit under the same
	// reference. The transfer view must still key off the transfer_out leg.
	repo := &transferRepoStub{
		entriesByRef: map[string][]domain.LedgerEntry{
			"EXT-FFFFFF000000": {
				{
					ID: 301, AccountID: 1, Kind: domain.EntryKindTransferOut,
					Amount: decimal.NewFromInt(900), Status: domain.EntryStatusFailed,
					ReferenceID: "EXT-FFFFFF000000", TransferKind: domain.TransferKindExternal,
					ExternalAccountNumber: "12345678", ExternalBankName: "First National", ExternalRoutingNumber: "021000021",
				},
				{
					ID: 302, AccountID: 1, Kind: domain.EntryKindDeposit,
					Amount: decimal.NewFromInt(900), Status: domain.EntryStatusCompleted,
					ReferenceID: "EXT-FFFFFF000000",
				},
			},
		},
	}
	svc := newTestService(t, repo)

	view, err := svc.GetTransferByReference(context.Background(), "EXT-FFFFFF000000")
	if err != nil {
		t.Fatalf("expected lookup to succeed, got %v", err)
	}
	if view.SourceEntryID != 301 {
		t.Fatalf("expected the transfer_out leg as source, got %d", view.SourceEntryID)
	}
	if view.Status != domain.EntryStatusFailed {
		t.Fatalf("expected failed status, got %s", view.Status)
	}
	if view.DestinationEntryID != nil {
		t.Fatal("expected the refund deposit not to appear as a destination leg")
	}
}

func TestCreateInternalTransfer_PassesMinBalanceToStore(t *testing.T) {
	repo := &transferRepoStub{accounts: twoAccounts(500, 100)}
	svc := newTestService(t, repo)
	svc.limits.MinBalance = decimal.NewFromInt(25)

	_, err := svc.CreateInternalTransfer(context.Background(), domain.InternalTransferRequest{
		SourceAccountID:      1,
		DestinationAccountID: 2,
		Amount:               decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("expected transfer to succeed, got %v", err)
	}
	if !repo.internalParams.MinBalance.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected min balance forwarded to the store, got %s", repo.internalParams.MinBalance)
	}
}

func TestCreateInternalTransfer_PassesDailyCapToStore(t *testing.T) {
	repo := &transferRepoStub{accounts: twoAccounts(500, 100)}
	svc := newTestService(t, repo)

	_, err := svc.CreateInternalTransfer(context.Background(), domain.InternalTransferRequest{
		SourceAccountID:      1,
		DestinationAccountID: 2,
		Amount:               decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("expected transfer to succeed, got %v", err)
	}
	if !repo.internalParams.DailyLimit.Equal(decimal.NewFromInt(500000)) {
		t.Fatalf("expected the daily limit forwarded to the store, got %s", repo.internalParams.DailyLimit)
	}
	want := dailyWindowStart(time.Now())
	if !repo.internalParams.DailySince.Equal(want) {
		t.Fatalf("expected window start %s forwarded to the store, got %s", want, repo.internalParams.DailySince)
	}
	if !repo.externalParams.DailyLimit.IsZero() {
		t.Fatal("external params should be untouched by an internal transfer")
	}
}

func TestCreateInternalTransfer_InLockMinimumBalanceRecheck(t *testing.T) {
	// The pre-check passes on its cached read, but a racing debit landed
	// first and the store's recheck under the row lock reports the residual
	// minimum breach. The caller must see the minimum-balance error, not a
	// generic insufficient-funds one.
	repo := &transferRepoStub{
		accounts:    twoAccounts(500, 100),
		internalErr: store.ErrMinBalanceBreached,
	}
	svc := newTestService(t, repo)
	svc.limits.MinBalance = decimal.NewFromInt(50)

	_, err := svc.CreateInternalTransfer(context.Background(), domain.InternalTransferRequest{
		SourceAccountID:      1,
		DestinationAccountID: 2,
		Amount:               decimal.NewFromInt(400),
	})
	var breached *domain.ErrMinimumBalanceBreached
	if !errors.As(err, &breached) {
		t.Fatalf("expected ErrMinimumBalanceBreached from the in-lock recheck, got %v", err)
	}
	if !breached.Minimum.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected the configured minimum in the error, got %s", breached.Minimum)
	}
}

func TestCreateInternalTransfer_InLockDailyCapRecheck(t *testing.T) {
	// Two concurrent transfers both passed the pre-check against the same
	// aggregate; the store's recheck under the source row lock caught the
	// second one pushing past the cap.
	repo := &transferRepoStub{
		accounts:    twoAccounts(500000, 100),
		dailyTotal:  decimal.NewFromInt(400000),
		internalErr: store.ErrDailyLimitExceeded,
	}
	svc := newTestService(t, repo)

	_, err := svc.CreateInternalTransfer(context.Background(), domain.InternalTransferRequest{
		SourceAccountID:      1,
		DestinationAccountID: 2,
		Amount:               decimal.NewFromInt(90000),
	})
	var exceeded *domain.ErrDailyLimitExceeded
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected ErrDailyLimitExceeded from the in-lock recheck, got %v", err)
	}
	if !exceeded.Limit.Equal(decimal.NewFromInt(500000)) {
		t.Fatalf("expected the configured daily limit in the error, got %s", exceeded.Limit)
	}
	if !exceeded.DailyTotal.Equal(decimal.NewFromInt(400000)) {
		t.Fatalf("expected the pre-check aggregate in the error, got %s", exceeded.DailyTotal)
	}
}

func TestCreateExternalTransfer_InLockMinimumBalanceRecheck(t *testing.T) {
	repo := &transferRepoStub{
		accounts:    twoAccounts(5000, 0),
		externalErr: store.ErrMinBalanceBreached,
	}
	svc := newTestService(t, repo)
	svc.limits.MinBalance = decimal.NewFromInt(100)

	_, err := svc.CreateExternalTransfer(context.Background(), domain.ExternalTransferRequest{
		SourceAccountID:       1,
		ExternalAccountNumber: "12345678",
		ExternalBankName:      "First National",
		ExternalRoutingNumber: "123456789",
		Amount:                decimal.NewFromInt(4000),
	})
	var breached *domain.ErrMinimumBalanceBreached
	if !errors.As(err, &breached) {
		t.Fatalf("expected ErrMinimumBalanceBreached from the in-lock recheck, got %v", err)
	}
}
