package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-faceverify/core"
)

var (
	_ gocmd.Commander[SubmitVerificationMessage] = (*SubmitVerificationCommand)(nil)
	_ gocmd.Commander[CancelVerificationMessage] = (*CancelVerificationCommand)(nil)
	_ VerificationService                        = (*core.Orchestrator)(nil)
)
