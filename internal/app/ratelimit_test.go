package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mannykwaning/banking-app/internal/domain"
)

type rateLimiterStub struct {
	count      int
	retryAfter int
	err        error

	scopes   []string
	subjects []string
}

func (s *rateLimiterStub) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	s.scopes = append(s.scopes, scope)
	s.subjects = append(s.subjects, subject)
	return s.count, s.retryAfter, s.err
}

func TestCreateInternalTransfer_RateLimited(t *testing.T) {
	repo := &transferRepoStub{accounts: twoAccounts(500, 100)}
	svc := newTestService(t, repo)
	limiter := &rateLimiterStub{count: 31, retryAfter: 42}
	svc.SetRateLimiter(limiter)

	_, err := svc.CreateInternalTransfer(context.Background(), domain.InternalTransferRequest{
		SourceAccountID:      1,
		DestinationAccountID: 2,
		Amount:               decimal.NewFromInt(10),
	})
	var rateLimited *domain.ErrRateLimited
	if !errors.As(err, &rateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if rateLimited.RetryAfterSeconds != 42 {
		t.Fatalf("expected retry-after 42, got %d", rateLimited.RetryAfterSeconds)
	}
	if repo.internalCalled {
		t.Fatal("expected no repository call for a rate limited transfer")
	}
	if len(limiter.scopes) != 1 || limiter.scopes[0] != "transfer" || limiter.subjects[0] != "1" {
		t.Fatalf("unexpected limiter key: %v %v", limiter.scopes, limiter.subjects)
	}
}

func TestCreateExternalTransfer_RateLimited(t *testing.T) {
	repo := &transferRepoStub{accounts: twoAccounts(5000, 0)}
	svc := newTestService(t, repo)
	svc.SetRateLimiter(&rateLimiterStub{count: 31, retryAfter: 10})

	_, err := svc.CreateExternalTransfer(context.Background(), domain.ExternalTransferRequest{
		SourceAccountID:       1,
		ExternalAccountNumber: "12345678",
		ExternalBankName:      "First National",
		ExternalRoutingNumber: "021000021",
		Amount:                decimal.NewFromInt(10),
	})
	var rateLimited *domain.ErrRateLimited
	if !errors.As(err, &rateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if repo.externalCalled {
		t.Fatal("expected no repository call for a rate limited transfer")
	}
}

func TestCreateInternalTransfer_LimiterOutageFailsOpen(t *testing.T) {
	repo := &transferRepoStub{accounts: twoAccounts(500, 100)}
	svc := newTestService(t, repo)
	svc.SetRateLimiter(&rateLimiterStub{err: errors.New("connection refused")})

	_, err := svc.CreateInternalTransfer(context.Background(), domain.InternalTransferRequest{
		SourceAccountID:      1,
		DestinationAccountID: 2,
		Amount:               decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("expected the transfer to proceed during a limiter outage, got %v", err)
	}
	if !repo.internalCalled {
		t.Fatal("expected the transfer to reach the repository")
	}
}

func TestCreateInternalTransfer_UnderRateLimitProceeds(t *testing.T) {
	repo := &transferRepoStub{accounts: twoAccounts(500, 100)}
	svc := newTestService(t, repo)
	svc.SetRateLimiter(&rateLimiterStub{count: 5, retryAfter: 30})

	_, err := svc.CreateInternalTransfer(context.Background(), domain.InternalTransferRequest{
		SourceAccountID:      1,
		DestinationAccountID: 2,
		Amount:               decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("expected the transfer to proceed under the limit, got %v", err)
	}
}
