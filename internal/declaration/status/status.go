// Package status derives the persisted status of a submitted declaration.
// This is pure domain logic: no I/O, no side effects.
package status

import (
	"errors"

	"verdant/internal/declaration/models"
	dErrors "verdant/pkg/domain-errors"
)

// ErrVerificationInProgress blocks a fresh submit until verification settles.
var ErrVerificationInProgress = errors.New("verification in progress")

// Decision is the full result of status derivation.
type Decision struct {
	Status         models.Status
	Outcome        *models.Outcome
	FilingEligible bool
	RiskLevel      models.RiskLevel
}

// Derive maps the source type and verification outcome to a status.
// Rule priority (fail-fast):
//  1. Existing-based: always pending, verification is not consulted
//  2. Fresh and unsettled: blocked with ErrVerificationInProgress
//  3. Fresh and non-compliant (either stage): draft
//  4. Fresh and fully compliant: pending
func Derive(source models.SourceType, outcome *models.Outcome, settled bool) (models.Status, error) {
	// Rule 1: existing-based declarations reuse already-approved sources
	if source == models.SourceExisting {
		return models.StatusPending, nil
	}
	if source != models.SourceFresh {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown source type %q", source)
	}

	// Rule 2: a stage is unresolved or the pipeline never ran
	if !settled || outcome == nil {
		return "", inProgress(nil)
	}

	// Rules 3 and 4
	switch *outcome {
	case models.OutcomeNonCompliantGeometry, models.OutcomeNonCompliantSatellite:
		return models.StatusDraft, nil
	case models.OutcomeFullyCompliant:
		return models.StatusPending, nil
	}
	return "", dErrors.Newf(dErrors.CodeInvariantViolation, "unknown verification outcome %q", *outcome)
}

// Evaluate derives the full decision for a draft at submit time.
// A stage error recorded on the verification state is wrapped into the
// in-progress error so callers can see it is retryable.
func Evaluate(d *models.Draft, sourceRisks []models.RiskLevel) (Decision, error) {
	source := d.SourceType()
	if source == models.SourceExisting {
		return Decision{
			Status:         models.StatusPending,
			FilingEligible: true,
			RiskLevel:      Risk(source, nil, sourceRisks),
		}, nil
	}

	v := d.Verification()
	outcome, settled := v.Outcome()
	if !settled {
		var cause error
		if v != nil {
			cause = v.Err
		}
		return Decision{}, inProgress(cause)
	}

	st, err := Derive(source, &outcome, settled)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Status:         st,
		Outcome:        &outcome,
		FilingEligible: st == models.StatusPending,
		RiskLevel:      Risk(source, &outcome, nil),
	}, nil
}

// Enforce rejects any attempt to force pending when derivation yields draft.
func Enforce(requested, derived models.Status) error {
	if requested == "" || requested == derived {
		return nil
	}
	if requested == models.StatusPending && derived == models.StatusDraft {
		return dErrors.New(dErrors.CodeInvariantViolation, "non-compliant verification cannot be submitted as pending")
	}
	return dErrors.Newf(dErrors.CodeInvariantViolation, "status %s cannot be requested, derived status is %s", requested, derived)
}

// Recheck derives the status a persisted declaration should carry from its
// recorded source type and outcome, and rejects a record whose status was
// forced past that derivation.
func Recheck(d *models.Declaration) error {
	derived, err := Derive(d.SourceType, d.Outcome, d.Outcome != nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "declaration status cannot be derived from its verification outcome")
	}
	if d.Status != models.StatusPending && d.Status != models.StatusDraft {
		return nil
	}
	return Enforce(d.Status, derived)
}

// Risk grades a declaration:
//   - fresh and compliant: low
//   - fresh and non-compliant: high
//   - existing-based: the highest risk among the linked sources, standard if none carry one
func Risk(source models.SourceType, outcome *models.Outcome, sourceRisks []models.RiskLevel) models.RiskLevel {
	if source == models.SourceFresh {
		if outcome != nil && outcome.Compliant() {
			return models.RiskLow
		}
		return models.RiskHigh
	}

	var (
		highest models.RiskLevel
		found   bool
	)
	for _, r := range sourceRisks {
		if r == "" {
			continue
		}
		if !found || r.Rank() > highest.Rank() {
			highest = r
			found = true
		}
	}
	if !found {
		return models.RiskStandard
	}
	return highest
}

func inProgress(cause error) error {
	if cause == nil {
		return &dErrors.Error{
			Code:    dErrors.CodeVerificationInProgress,
			Message: "verification in progress",
			Err:     ErrVerificationInProgress,
		}
	}
	return &dErrors.Error{
		Code:    dErrors.CodeVerificationInProgress,
		Message: "verification in progress: a stage failed and must be retried",
		Err:     errors.Join(ErrVerificationInProgress, cause),
	}
}
