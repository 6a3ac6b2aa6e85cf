package wizard

import (
	"errors"
	"slices"

	"verdant/internal/declaration/models"
	"verdant/internal/declaration/validation"
	"verdant/internal/declaration/verification"
	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
)

// errStaleDelivery marks a pipeline update for a superseded geo file or a
// cancelled draft. The session drops it silently.
var errStaleDelivery = errors.New("stale verification delivery")

// state is everything a session owns. It is only replaced through reduce.
type state struct {
	step       models.Step
	completed  map[models.Step]bool
	draft      *models.Draft
	generation uint64
	cancelled  bool
	submitted  *id.DeclarationID
}

func newState(d *models.Draft) state {
	return state{
		step:      models.StepTypeSelect,
		completed: make(map[models.Step]bool),
		draft:     d,
	}
}

func (s state) clone() state {
	c := s
	c.completed = make(map[models.Step]bool, len(s.completed))
	for k, v := range s.completed {
		c.completed[k] = v
	}
	c.draft = s.draft.Clone()
	return c
}

// action is a state transition request.
type action interface {
	apply(s state) (state, error)
}

// reduce applies a to a copy of s. On error s is returned unchanged.
func reduce(s state, a action) (state, error) {
	if s.cancelled {
		if _, ok := a.(deliverAction); ok {
			return s, errStaleDelivery
		}
		return s, errCancelled
	}
	if s.step == models.StepSubmitted {
		if _, ok := a.(deliverAction); ok {
			return s, errStaleDelivery
		}
		if _, ok := a.(cancelAction); !ok {
			return s, dErrors.New(dErrors.CodeConflict, "draft has already been submitted")
		}
	}
	next, err := a.apply(s.clone())
	if err != nil {
		return s, err
	}
	return next, nil
}

var errCancelled = dErrors.New(dErrors.CodeConflict, "draft has been cancelled")

type advanceAction struct{}

func (advanceAction) apply(s state) (state, error) {
	if s.step >= models.StepReview {
		return s, dErrors.Newf(dErrors.CodeInvariantViolation, "cannot advance past %s, submit instead", s.step)
	}
	if err := validation.ValidateStep(s.step, s.draft); err != nil {
		return s, err
	}
	s.completed[s.step] = true
	s.step++
	return s, nil
}

type retreatAction struct{}

func (retreatAction) apply(s state) (state, error) {
	if s.step == models.StepTypeSelect {
		return s, dErrors.New(dErrors.CodeInvalidInput, "already at the first step")
	}
	s.step--
	return s, nil
}

type goToAction struct {
	target models.Step
}

func (a goToAction) apply(s state) (state, error) {
	switch {
	case !a.target.IsValid() || a.target == models.StepSubmitted:
		return s, dErrors.Newf(dErrors.CodeInvalidInput, "cannot navigate to %s", a.target)
	case a.target == s.step:
		return s, nil
	case a.target > s.step:
		return s, dErrors.Newf(dErrors.CodeInvalidInput, "cannot skip ahead to %s, advance instead", a.target)
	case !s.completed[a.target]:
		return s, dErrors.Newf(dErrors.CodeInvalidInput, "step %s has not been completed", a.target)
	}
	s.step = a.target
	return s, nil
}

// DraftPatch is a partial draft update. Nil fields are left unchanged.
type DraftPatch struct {
	SourceType *models.SourceType
	Direction  *models.Direction
	Items      *[]models.LineItem
	Validity   *models.ValidityPeriod
	Party      *models.PartyRef
	References *models.ReferenceNumbers
	Comments   *string
	// SourceIDs selects existing declarations; only valid on existing-based drafts.
	SourceIDs *[]id.DeclarationID
}

type patchAction struct {
	patch DraftPatch
}

func (a patchAction) apply(s state) (state, error) {
	p := a.patch
	d := s.draft

	if p.SourceType != nil && *p.SourceType != d.SourceType() {
		if !p.SourceType.IsValid() {
			return s, dErrors.Newf(dErrors.CodeInvalidInput, "unknown source type %q", *p.SourceType)
		}
		if s.completed[models.StepTypeSelect] {
			return s, &validation.Failure{Step: s.step, Reasons: []string{"source type cannot change once type selection is completed"}}
		}
		d.Source = models.NewSource(*p.SourceType)
		s.generation++
	}
	if p.Direction != nil {
		if !p.Direction.IsValid() {
			return s, dErrors.Newf(dErrors.CodeInvalidInput, "unknown direction %q", *p.Direction)
		}
		d.Direction = *p.Direction
		if d.Party != nil && d.Party.Kind != d.Direction.PartyKind() {
			d.Party = nil
		}
	}
	if p.Items != nil {
		for i, it := range *p.Items {
			if it.Unit != "" && !it.Unit.IsValid() {
				return s, dErrors.Newf(dErrors.CodeInvalidInput, "item %d: unknown unit %q", i+1, it.Unit)
			}
		}
		d.Items = slices.Clone(*p.Items)
	}
	if p.Validity != nil {
		if p.Validity.Complete() && p.Validity.End.Before(p.Validity.Start) {
			return s, dErrors.New(dErrors.CodeValidation, "validity period end must not be before start")
		}
		v := *p.Validity
		d.Validity = &v
	}
	if p.Party != nil {
		party := *p.Party
		if party.Kind == "" {
			party.Kind = d.Direction.PartyKind()
		}
		d.Party = &party
	}
	if p.References != nil {
		d.References = *p.References
	}
	if p.Comments != nil {
		d.Comments = *p.Comments
	}
	if p.SourceIDs != nil {
		src, ok := d.Existing()
		if !ok {
			return s, dErrors.New(dErrors.CodeValidation, "source declarations can only be selected on existing-based drafts")
		}
		seen := make(map[id.DeclarationID]struct{}, len(*p.SourceIDs))
		for _, sid := range *p.SourceIDs {
			if _, dup := seen[sid]; dup {
				return s, dErrors.Newf(dErrors.CodeValidation, "source declaration %s is selected more than once", sid)
			}
			seen[sid] = struct{}{}
		}
		src.SourceIDs = slices.Clone(*p.SourceIDs)
	}
	return s, nil
}

// attachAction replaces the evidence. A new geo file starts a new generation.
type attachAction struct {
	documents []models.FileRef
	geoFile   *models.FileRef
}

func (a attachAction) apply(s state) (state, error) {
	if a.geoFile != nil {
		fresh, ok := s.draft.Fresh()
		if !ok {
			return s, dErrors.New(dErrors.CodeValidation, "geo files are only accepted on fresh declarations")
		}
		if *a.geoFile == "" {
			return s, dErrors.New(dErrors.CodeInvalidInput, "geo file reference is empty")
		}
		ref := *a.geoFile
		s.generation++
		fresh.GeoFile = &ref
		fresh.Verification = models.NewVerificationState(s.generation)
	}
	if a.documents != nil {
		s.draft.Documents = slices.Clone(a.documents)
	}
	return s, nil
}

type deliverAction struct {
	update verification.Update
}

func (a deliverAction) apply(s state) (state, error) {
	fresh, ok := s.draft.Fresh()
	if !ok || fresh.Verification == nil || a.update.Generation != s.generation || fresh.Verification.Generation != s.generation {
		return s, errStaleDelivery
	}
	v := fresh.Verification
	if a.update.Err != nil {
		v.Err = a.update.Err
	} else if a.update.Status != models.StagePending {
		v.Err = nil
	}
	if !v.Set(a.update.Stage, a.update.Status) {
		return s, errStaleDelivery
	}
	return s, nil
}

// retryAction clears the recorded stage error before a resumed run.
type retryAction struct{}

func (retryAction) apply(s state) (state, error) {
	fresh, ok := s.draft.Fresh()
	if !ok || fresh.GeoFile == nil || fresh.Verification == nil {
		return s, dErrors.New(dErrors.CodeConflict, "no verification to retry")
	}
	v := fresh.Verification
	if v.Err == nil {
		return s, dErrors.New(dErrors.CodeConflict, "verification has not failed")
	}
	if !verification.IsRetryable(v.Err) {
		return s, dErrors.Wrap(v.Err, dErrors.CodeValidation, "verification rejected the geo file, attach a corrected one")
	}
	v.Err = nil
	return s, nil
}

type submittedAction struct {
	declarationID id.DeclarationID
}

func (a submittedAction) apply(s state) (state, error) {
	s.completed[models.StepReview] = true
	s.step = models.StepSubmitted
	did := a.declarationID
	s.submitted = &did
	return s, nil
}

type cancelAction struct{}

func (cancelAction) apply(s state) (state, error) {
	s.cancelled = true
	return s, nil
}
