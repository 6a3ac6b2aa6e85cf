package models

import (
	"strings"

	dErrors "verdant/pkg/domain-errors"
)

// Step is a wizard step. Steps are linear; Submitted is terminal.
type Step int

const (
	StepTypeSelect Step = iota
	StepDetailEntry
	StepEvidenceUpload
	StepPartyDetail
	StepReview
	StepSubmitted
)

var stepNames = [...]string{
	StepTypeSelect:     "type_select",
	StepDetailEntry:    "detail_entry",
	StepEvidenceUpload: "evidence_upload",
	StepPartyDetail:    "party_detail",
	StepReview:         "review",
	StepSubmitted:      "submitted",
}

func (s Step) String() string {
	if s < StepTypeSelect || s > StepSubmitted {
		return "unknown"
	}
	return stepNames[s]
}

func (s Step) IsValid() bool {
	return s >= StepTypeSelect && s <= StepSubmitted
}

// ParseStep parses a step name.
func ParseStep(name string) (Step, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range stepNames {
		if n == name {
			return Step(i), nil
		}
	}
	return 0, dErrors.Newf(dErrors.CodeInvalidInput, "unknown step %q", name)
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Step) UnmarshalText(b []byte) error {
	parsed, err := ParseStep(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// EditableSteps are the steps validated before submit, in order.
func EditableSteps() []Step {
	return []Step{StepTypeSelect, StepDetailEntry, StepEvidenceUpload, StepPartyDetail, StepReview}
}
