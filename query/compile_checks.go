package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-faceverify/core"
)

var (
	_ gocmd.Querier[AttemptStatusMessage, core.OrchestratorSnapshot] = (*AttemptStatusQuery)(nil)
	_ gocmd.Querier[ListAttemptsMessage, core.AttemptPage]           = (*ListAttemptsQuery)(nil)
	_ SnapshotReader                                                 = (*core.Orchestrator)(nil)
)
