package query

import (
	"context"

	"github.com/goliatone/go-faceverify/core"
)

type SnapshotReader interface {
	Snapshot(ctx context.Context) (core.OrchestratorSnapshot, error)
}

type AttemptStatusQuery struct {
	reader SnapshotReader
}

func NewAttemptStatusQuery(reader SnapshotReader) *AttemptStatusQuery {
	return &AttemptStatusQuery{reader: reader}
}

func (q *AttemptStatusQuery) Query(ctx context.Context, _ AttemptStatusMessage) (core.OrchestratorSnapshot, error) {
	if q == nil || q.reader == nil {
		return core.OrchestratorSnapshot{}, queryDependencyError("query: snapshot reader is required")
	}
	return q.reader.Snapshot(ctx)
}

type ListAttemptsQuery struct {
	reader core.AttemptReader
}

func NewListAttemptsQuery(reader core.AttemptReader) *ListAttemptsQuery {
	return &ListAttemptsQuery{reader: reader}
}

func (q *ListAttemptsQuery) Query(ctx context.Context, msg ListAttemptsMessage) (core.AttemptPage, error) {
	if q == nil || q.reader == nil {
		return core.AttemptPage{}, queryDependencyError("query: attempt reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.AttemptPage{}, err
	}
	return q.reader.List(ctx, msg.Filter)
}
