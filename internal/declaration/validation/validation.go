// Package validation holds the per-step rules that gate wizard advancement.
// Rules are pure: they read the draft and never mutate it.
package validation

import (
	"fmt"
	"strings"

	"verdant/internal/declaration/models"
	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
)

// Failure is a rejected step. Reasons lists every failed rule, in rule order.
type Failure struct {
	Step    models.Step
	Reasons []string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Step, strings.Join(f.Reasons, "; "))
}

// Unwrap exposes the failure as a validation_failed domain error.
func (f *Failure) Unwrap() error {
	return &dErrors.Error{Code: dErrors.CodeValidation, Message: f.Error()}
}

// ValidateStep checks the rules of one step against the draft.
// Returns nil when the step may be left, or a *Failure.
func ValidateStep(step models.Step, d *models.Draft) error {
	var reasons []string
	switch step {
	case models.StepTypeSelect, models.StepReview:
		return nil
	case models.StepDetailEntry:
		reasons = detailEntry(d)
	case models.StepEvidenceUpload:
		reasons = evidenceUpload(d)
	case models.StepPartyDetail:
		reasons = partyDetail(d)
	case models.StepSubmitted:
		return dErrors.New(dErrors.CodeInvariantViolation, "submitted is terminal and cannot be advanced")
	default:
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown step %d", int(step))
	}
	if len(reasons) == 0 {
		return nil
	}
	return &Failure{Step: step, Reasons: reasons}
}

// ValidateAll runs every editable step in order and returns the first failure.
func ValidateAll(d *models.Draft) error {
	for _, step := range models.EditableSteps() {
		if err := ValidateStep(step, d); err != nil {
			return err
		}
	}
	return nil
}

func detailEntry(d *models.Draft) []string {
	var reasons []string

	if !d.Validity.Complete() {
		reasons = append(reasons, "validity period start and end dates are required")
	} else if d.Validity.End.Before(d.Validity.Start) {
		reasons = append(reasons, "validity period end must not be before start")
	}

	if len(d.ValidItems()) == 0 {
		reasons = append(reasons, missingItemReason(d.Items))
	}

	if src, ok := d.Existing(); ok {
		if len(src.SourceIDs) == 0 {
			reasons = append(reasons, "at least one source declaration must be selected")
		} else if dup, found := firstDuplicate(src.SourceIDs); found {
			reasons = append(reasons, fmt.Sprintf("source declaration %s is selected more than once", dup))
		}
	}
	return reasons
}

func missingItemReason(items []models.LineItem) string {
	const required = "hsn code, product name, quantity"
	if len(items) == 0 {
		return "no valid line item: add an item with " + required
	}
	parts := make([]string, 0, len(items))
	for i, it := range items {
		parts = append(parts, fmt.Sprintf("item %d is missing %s", i+1, strings.Join(it.MissingFields(), ", ")))
	}
	return "no valid line item: " + strings.Join(parts, "; ")
}

func evidenceUpload(d *models.Draft) []string {
	var reasons []string
	if f, ok := d.Fresh(); ok && f.GeoFile == nil {
		reasons = append(reasons, "a geo file is required for fresh declarations")
	}
	if len(d.Documents) == 0 {
		reasons = append(reasons, "at least one document is required")
	}
	return reasons
}

func partyDetail(d *models.Draft) []string {
	if d.Party == nil || d.Party.ID.IsNil() {
		return []string{fmt.Sprintf("a %s must be selected", d.Direction.PartyKind())}
	}
	if want := d.Direction.PartyKind(); d.Party.Kind != want {
		return []string{fmt.Sprintf("%s declarations need a %s, got a %s", d.Direction, want, d.Party.Kind)}
	}
	return nil
}

func firstDuplicate(ids []id.DeclarationID) (id.DeclarationID, bool) {
	seen := make(map[id.DeclarationID]struct{}, len(ids))
	for _, sid := range ids {
		if _, ok := seen[sid]; ok {
			return sid, true
		}
		seen[sid] = struct{}{}
	}
	return id.DeclarationID{}, false
}
