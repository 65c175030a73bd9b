package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type attemptRecord struct {
	bun.BaseModel `bun:"table:verification_attempts,alias:va"`

	ID            string    `bun:"id,pk"`
	AttemptID     string    `bun:"attempt_id,notnull"`
	UserID        string    `bun:"user_id,notnull"`
	ClaimType     string    `bun:"claim_type,notnull"`
	AssuranceType string    `bun:"assurance_type,notnull"`
	Outcome       string    `bun:"outcome,notnull"`
	FeedbackCode  string    `bun:"feedback_code"`
	Message       string    `bun:"message"`
	RetryCount    int       `bun:"retry_count,notnull"`
	StartedAt     time.Time `bun:"started_at,notnull"`
	FinishedAt    time.Time `bun:"finished_at,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
