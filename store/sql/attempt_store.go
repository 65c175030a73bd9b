package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-faceverify/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	defaultAttemptPerPage = 25
	maxAttemptPerPage     = 200
)

// AttemptStore keeps the history of finished verification attempts.
type AttemptStore struct {
	db   *bun.DB
	repo repository.Repository[*attemptRecord]
}

func NewAttemptStore(db *bun.DB) (*AttemptStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*attemptRecord](db, attemptHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid attempt repository wiring: %w", err)
		}
	}
	return &AttemptStore{db: db, repo: repo}, nil
}

func (s *AttemptStore) Record(ctx context.Context, entry core.AttemptRecord) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: attempt store is not configured")
	}
	attemptID := strings.TrimSpace(entry.AttemptID)
	if attemptID == "" {
		return core.NewValidationError("attempt_id", "attempt id is required")
	}
	userID := core.NormalizeUserID(entry.UserID)
	if userID == "" {
		return core.NewValidationError("user_id", core.MessageInvalidUserID)
	}
	if strings.TrimSpace(string(entry.Outcome)) == "" {
		return core.NewValidationError("outcome", "outcome is required")
	}

	id := strings.TrimSpace(entry.ID)
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	finishedAt := entry.FinishedAt.UTC()
	if entry.FinishedAt.IsZero() {
		finishedAt = now
	}
	startedAt := entry.StartedAt.UTC()
	if entry.StartedAt.IsZero() {
		startedAt = finishedAt
	}

	record := &attemptRecord{
		ID:            id,
		AttemptID:     attemptID,
		UserID:        userID,
		ClaimType:     strings.TrimSpace(string(entry.ClaimType)),
		AssuranceType: strings.TrimSpace(string(entry.AssuranceType)),
		Outcome:       strings.TrimSpace(string(entry.Outcome)),
		FeedbackCode:  strings.TrimSpace(entry.FeedbackCode),
		Message:       strings.TrimSpace(entry.Message),
		RetryCount:    entry.RetryCount,
		StartedAt:     startedAt,
		FinishedAt:    finishedAt,
		CreatedAt:     now,
	}
	_, err := s.repo.Create(ctx, record)
	return err
}

func (s *AttemptStore) List(ctx context.Context, filter core.AttemptFilter) (core.AttemptPage, error) {
	if s == nil || s.repo == nil {
		return core.AttemptPage{}, fmt.Errorf("sqlstore: attempt store is not configured")
	}
	page, perPage := normalizePaging(filter.Page, filter.PerPage)
	offset := (page - 1) * perPage

	selectors := []repository.SelectCriteria{
		repository.OrderBy("finished_at DESC"),
		repository.SelectPaginate(perPage, offset),
	}
	if userID := core.NormalizeUserID(filter.UserID); userID != "" {
		selectors = append(selectors, repository.SelectBy("user_id", "=", userID))
	}
	if outcome := strings.TrimSpace(string(filter.Outcome)); outcome != "" {
		selectors = append(selectors, repository.SelectBy("outcome", "=", outcome))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.AttemptPage{}, err
	}
	items := make([]core.AttemptRecord, 0, len(records))
	for _, record := range records {
		items = append(items, attemptRecordToDomain(record))
	}
	return core.AttemptPage{
		Items:   items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasNext: offset+len(items) < total,
	}, nil
}

func normalizePaging(page int, perPage int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultAttemptPerPage
	}
	if perPage > maxAttemptPerPage {
		perPage = maxAttemptPerPage
	}
	return page, perPage
}

func attemptRecordToDomain(record *attemptRecord) core.AttemptRecord {
	if record == nil {
		return core.AttemptRecord{}
	}
	return core.AttemptRecord{
		ID:            record.ID,
		AttemptID:     record.AttemptID,
		UserID:        record.UserID,
		ClaimType:     core.ClaimType(record.ClaimType),
		AssuranceType: core.AssuranceType(record.AssuranceType),
		Outcome:       core.OutcomeKind(record.Outcome),
		FeedbackCode:  record.FeedbackCode,
		Message:       record.Message,
		RetryCount:    record.RetryCount,
		StartedAt:     record.StartedAt.UTC(),
		FinishedAt:    record.FinishedAt.UTC(),
	}
}
