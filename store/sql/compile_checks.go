package sqlstore

import "github.com/goliatone/go-faceverify/core"

var (
	_ core.AttemptRecorder = (*AttemptStore)(nil)
	_ core.AttemptReader   = (*AttemptStore)(nil)
	_ core.AttemptRecorder = (*CachedAttemptStore)(nil)
	_ core.AttemptReader   = (*CachedAttemptStore)(nil)
)
