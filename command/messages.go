package command

import (
	"strings"

	"github.com/goliatone/go-faceverify/core"
)

const (
	TypeSubmitVerification = "faceverify.command.verification.submit"
	TypeCancelVerification = "faceverify.command.verification.cancel"
)

// SubmitVerificationMessage asks the orchestrator for a new attempt. Blank
// claim and assurance types fall back to the orchestrator config. The user
// id is checked by the orchestrator itself so the presenter warning fires.
type SubmitVerificationMessage struct {
	UserID        string
	ClaimType     string
	AssuranceType string
}

func (SubmitVerificationMessage) Type() string { return TypeSubmitVerification }

func (m SubmitVerificationMessage) Validate() error {
	if strings.TrimSpace(m.ClaimType) != "" {
		if _, err := core.ParseClaimType(m.ClaimType); err != nil {
			return commandWrapValidation(err, "command: invalid claim type")
		}
	}
	if strings.TrimSpace(m.AssuranceType) != "" {
		if _, err := core.ParseAssuranceType(m.AssuranceType); err != nil {
			return commandWrapValidation(err, "command: invalid assurance type")
		}
	}
	return nil
}

// Request resolves the message against defaults.
func (m SubmitVerificationMessage) Request(defaults core.Config) (core.VerificationRequest, error) {
	req := core.VerificationRequest{
		UserID:        m.UserID,
		ClaimType:     defaults.DefaultClaimType(),
		AssuranceType: defaults.DefaultAssuranceType(),
	}
	if strings.TrimSpace(m.ClaimType) != "" {
		claim, err := core.ParseClaimType(m.ClaimType)
		if err != nil {
			return core.VerificationRequest{}, commandWrapValidation(err, "command: invalid claim type")
		}
		req.ClaimType = claim
	}
	if strings.TrimSpace(m.AssuranceType) != "" {
		assurance, err := core.ParseAssuranceType(m.AssuranceType)
		if err != nil {
			return core.VerificationRequest{}, commandWrapValidation(err, "command: invalid assurance type")
		}
		req.AssuranceType = assurance
	}
	return req, nil
}

type CancelVerificationMessage struct {
	Reason string
}

func (CancelVerificationMessage) Type() string { return TypeCancelVerification }

func (CancelVerificationMessage) Validate() error { return nil }
