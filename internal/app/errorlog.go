/**
 * @description
 * Error log recording and admin reporting. Messages are sanitized before
 * storage so full card numbers and account numbers never land in the log
 * table even when an upstream error message embeds one.
 */

package app

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mannykwaning/banking-app/internal/domain"
	"github.com/mannykwaning/banking-app/internal/store"
)

// Mask anything that looks like a card or account number. 8+ digit runs
// cover both our 10-digit account numbers and 16-digit PANs.
var sensitiveDigitRun = regexp.MustCompile(`\d{8,}`)

// SanitizeErrorMessage masks long digit runs so stored messages stay free of
// account and card numbers.
func SanitizeErrorMessage(message string) string {
	return sensitiveDigitRun.ReplaceAllStringFunc(message, func(run string) string {
		return "****" + run[len(run)-4:]
	})
}

// RecordError persists a sanitized error record. Recording is best effort;
// a failure here is logged and swallowed so it never masks the original
// request error.
func (s *Service) RecordError(ctx context.Context, entry domain.ErrorLog) {
	entry.Message = SanitizeErrorMessage(entry.Message)
	if entry.Category == "" {
		entry.Category = domain.ErrorCategoryServer
	}
	if err := s.repo.CreateErrorLog(ctx, &entry); err != nil {
		s.logger.Warn("failed to record error log",
			zap.String("category", entry.Category),
			zap.Error(err),
		)
	}
}

// ListErrors returns error records matching the filter, newest first.
func (s *Service) ListErrors(ctx context.Context, filter domain.ErrorLogFilter) ([]domain.ErrorLog, error) {
	logs, err := s.repo.ListErrorLogs(ctx, filter)
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "error log listing", Err: err}
	}
	return logs, nil
}

// RecentErrors returns the newest error records regardless of category or
// status, for the admin dashboard's at-a-glance view.
func (s *Service) RecentErrors(ctx context.Context, limit int) ([]domain.ErrorLog, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.ListErrors(ctx, domain.ErrorLogFilter{Limit: limit})
}

// GetError fetches a single error record by id.
func (s *Service) GetError(ctx context.Context, errorID int64) (*domain.ErrorLog, error) {
	entry, err := s.repo.FindErrorLogByID(ctx, errorID)
	if err != nil {
		if errors.Is(err, store.ErrErrorLogNotFound) {
			return nil, &domain.ErrNotFound{Resource: "error log", ID: strconv.FormatInt(errorID, 10)}
		}
		return nil, &domain.ErrPersistence{Op: "error log lookup", Err: err}
	}
	return entry, nil
}

// SummarizeErrors aggregates error counts over the trailing window.
func (s *Service) SummarizeErrors(ctx context.Context, window time.Duration) (*domain.ErrorLogSummary, error) {
	summary, err := s.repo.SummarizeErrorLogs(ctx, time.Now().Add(-window))
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "error log summary", Err: err}
	}
	return summary, nil
}
