package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mannykwaning/banking-app/internal/domain"
	"github.com/mannykwaning/banking-app/internal/store"
)

type expiryRepoStub struct {
	store.Repository

	stale        []domain.LedgerEntry
	listedBefore time.Time

	reversedIDs []int64
	reverseErrs map[int64]error
}

func (s *expiryRepoStub) ListStalePendingExternal(ctx context.Context, olderThan time.Time) ([]domain.LedgerEntry, error) {
	s.listedBefore = olderThan
	return s.stale, nil
}

func (s *expiryRepoStub) ReverseExternalTransfer(ctx context.Context, entryID int64) (*domain.LedgerEntry, error) {
	if err := s.reverseErrs[entryID]; err != nil {
		return nil, err
	}
	s.reversedIDs = append(s.reversedIDs, entryID)
	return &domain.LedgerEntry{
		ID:           entryID,
		Status:       domain.EntryStatusReversed,
		ReferenceID:  "EXT-AAAA11112222",
		TransferKind: domain.TransferKindExternal,
		Amount:       decimal.NewFromInt(100),
	}, nil
}

type publisherStub struct {
	routingKeys []string
}

func (p *publisherStub) Publish(routingKey string, body interface{}) error {
	p.routingKeys = append(p.routingKeys, routingKey)
	return nil
}

func (p *publisherStub) Close() {}

func TestProcessPendingTransferExpiry_ReversesStaleTransfers(t *testing.T) {
	repo := &expiryRepoStub{
		stale: []domain.LedgerEntry{
			{ID: 1, ReferenceID: "EXT-AAAA11112222"},
			{ID: 2, ReferenceID: "EXT-BBBB33334444"},
		},
	}
	producer := &publisherStub{}
	jobs := NewJobs(repo, producer, nil, testConfig())

	jobs.ProcessPendingTransferExpiry()

	if len(repo.reversedIDs) != 2 {
		t.Fatalf("expected 2 reversals, got %v", repo.reversedIDs)
	}
	if len(producer.routingKeys) != 2 {
		t.Fatalf("expected 2 reversal events, got %v", producer.routingKeys)
	}
	for _, key := range producer.routingKeys {
		if key != domain.EventTransferExternalReversed {
			t.Fatalf("unexpected routing key %q", key)
		}
	}
}

func TestProcessPendingTransferExpiry_CutoffUsesConfiguredWindow(t *testing.T) {
	repo := &expiryRepoStub{}
	jobs := NewJobs(repo, nil, nil, testConfig())

	before := time.Now().Add(-time.Duration(testConfig().PendingTransferExpiryHours) * time.Hour)
	jobs.ProcessPendingTransferExpiry()
	after := time.Now().Add(-time.Duration(testConfig().PendingTransferExpiryHours) * time.Hour)

	if repo.listedBefore.Before(before) || repo.listedBefore.After(after) {
		t.Fatalf("expected cutoff around %v, got %v", before, repo.listedBefore)
	}
}

func TestProcessPendingTransferExpiry_SkipsRacedEntries(t *testing.T) {
	// Settlement can resolve a leg between the listing and the row lock. The
	// sweep skips it and keeps going.
	repo := &expiryRepoStub{
		stale: []domain.LedgerEntry{
			{ID: 1, ReferenceID: "EXT-AAAA11112222"},
			{ID: 2, ReferenceID: "EXT-BBBB33334444"},
			{ID: 3, ReferenceID: "EXT-CCCC55556666"},
		},
		reverseErrs: map[int64]error{2: errors.New("no pending external transfer")},
	}
	jobs := NewJobs(repo, nil, nil, testConfig())

	jobs.ProcessPendingTransferExpiry()

	if len(repo.reversedIDs) != 2 || repo.reversedIDs[0] != 1 || repo.reversedIDs[1] != 3 {
		t.Fatalf("expected entries 1 and 3 reversed, got %v", repo.reversedIDs)
	}
}
