package wizard

import (
	"context"
	"errors"
	"sync"
	"time"

	"verdant/internal/declaration/models"
	"verdant/internal/declaration/verification"
	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
	"verdant/pkg/platform/audit"
)

// Session is one open draft moving through the wizard. All state changes go
// through reduce under mu; pipeline deliveries are actions too.
type Session struct {
	svc *Service

	mu         sync.Mutex
	st         state
	run        *verification.Run
	lastActive time.Time
}

// View is a read-only snapshot of a session.
type View struct {
	DraftID       id.DraftID
	Step          models.Step
	Completed     []models.Step
	Draft         *models.Draft
	Verification  *VerificationView
	DeclarationID *id.DeclarationID
	Cancelled     bool
}

// VerificationView is the verification slot of a fresh draft.
type VerificationView struct {
	Geometry   models.StageStatus
	Satellite  models.StageStatus
	Generation uint64
	Outcome    *models.Outcome
	Err        *verification.Error
}

func (s *Session) ID() id.DraftID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.draft.ID
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		DraftID:   s.st.draft.ID,
		Step:      s.st.step,
		Draft:     s.st.draft.Clone(),
		Cancelled: s.st.cancelled,
	}
	for _, step := range models.EditableSteps() {
		if s.st.completed[step] {
			v.Completed = append(v.Completed, step)
		}
	}
	if s.st.submitted != nil {
		did := *s.st.submitted
		v.DeclarationID = &did
	}
	if vs := s.st.draft.Verification(); vs != nil {
		vv := &VerificationView{Geometry: vs.Geometry, Satellite: vs.Satellite, Generation: vs.Generation}
		if o, settled := vs.Outcome(); settled {
			vv.Outcome = &o
		}
		var verr *verification.Error
		if errors.As(vs.Err, &verr) {
			vv.Err = verr
		}
		v.Verification = vv
	}
	return v
}

// dispatch reduces a under the lock and returns the resulting view.
func (s *Session) dispatch(a action) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatchLocked(a)
}

func (s *Session) dispatchLocked(a action) (View, error) {
	next, err := reduce(s.st, a)
	if err != nil {
		return s.viewLocked(), err
	}
	s.st = next
	s.lastActive = s.svc.now()
	return s.viewLocked(), nil
}

// Advance validates the current step and moves forward on success.
// On failure the step is unchanged and a *validation.Failure is returned.
func (s *Session) Advance(ctx context.Context) (View, error) {
	v, err := s.dispatch(advanceAction{})
	if err != nil {
		s.svc.logger.InfoContext(ctx, "wizard step rejected",
			"draft_id", v.DraftID,
			"step", v.Step,
			"error", err,
		)
	}
	return v, err
}

// Retreat moves back one step without validating.
func (s *Session) Retreat() (View, error) {
	return s.dispatch(retreatAction{})
}

// GoTo jumps back to a completed step.
func (s *Session) GoTo(step models.Step) (View, error) {
	return s.dispatch(goToAction{target: step})
}

// UpdateDraft applies a partial update to the draft. Replacing the source
// variant stops any in-flight verification of the old one.
func (s *Session) UpdateDraft(ctx context.Context, patch DraftPatch) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.st.draft.SourceType()
	v, err := s.dispatchLocked(patchAction{patch: patch})
	if err != nil || s.run == nil || s.st.draft.SourceType() == before {
		return v, err
	}
	s.run.Cancel()
	s.svc.logger.InfoContext(ctx, "verification stopped, source type changed",
		"draft_id", v.DraftID,
		"source_type", s.st.draft.SourceType(),
	)
	return v, nil
}

// AttachEvidence replaces the documents and, for fresh drafts, the geo file.
// A new geo file resets verification, cancels any in-flight run and starts a
// new one. documents == nil keeps the current documents.
func (s *Session) AttachEvidence(ctx context.Context, documents []models.FileRef, geoFile *models.FileRef) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.dispatchLocked(attachAction{documents: documents, geoFile: geoFile})
	if err != nil || geoFile == nil {
		return v, err
	}

	if s.run != nil {
		s.run.Cancel()
	}
	s.run = s.svc.pipeline.Start(ctx, *geoFile, s.st.generation, s.deliver)
	s.svc.logger.InfoContext(ctx, "verification started",
		"draft_id", v.DraftID,
		"generation", s.st.generation,
	)
	return v, nil
}

// RetryVerification resumes a failed run from its unresolved stage.
func (s *Session) RetryVerification(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.dispatchLocked(retryAction{})
	if err != nil {
		return v, err
	}
	fresh, _ := s.st.draft.Fresh()
	if s.run != nil {
		s.run.Cancel()
	}
	s.run = s.svc.pipeline.Resume(ctx, *fresh.GeoFile, *fresh.Verification.Clone(), s.deliver)
	s.svc.logger.InfoContext(ctx, "verification retried",
		"draft_id", v.DraftID,
		"generation", s.st.generation,
	)
	return v, nil
}

// deliver is the pipeline sink.
func (s *Session) deliver(u verification.Update) {
	s.mu.Lock()
	next, err := reduce(s.st, deliverAction{update: u})
	if err != nil {
		s.mu.Unlock()
		s.svc.metrics.IncStaleDelivery()
		return
	}
	s.st = next
	s.lastActive = s.svc.now()
	draftID := s.st.draft.ID
	vs := s.st.draft.Verification().Clone()
	s.mu.Unlock()

	if !u.Done {
		return
	}
	ctx := context.Background()
	if u.Err != nil {
		s.svc.emitOps(ctx, audit.EventVerificationFailed, draftID.String(), string(u.Err.Category), u.Err.Error())
		return
	}
	if outcome, settled := vs.Outcome(); settled {
		s.svc.logger.Info("verification settled", "draft_id", draftID, "outcome", outcome)
		s.svc.emitOps(ctx, audit.EventVerificationSettled, draftID.String(), string(outcome), "")
	}
}

// Cancel discards the draft and stops any in-flight verification. Later
// deliveries are ignored. Cancelling twice is a no-op.
func (s *Session) Cancel(ctx context.Context) {
	s.mu.Lock()
	if s.st.cancelled {
		s.mu.Unlock()
		return
	}
	s.st, _ = reduce(s.st, cancelAction{})
	run := s.run
	s.run = nil
	draftID := s.st.draft.ID
	s.mu.Unlock()

	if run != nil {
		run.Cancel()
	}
	s.svc.logger.InfoContext(ctx, "draft cancelled", "draft_id", draftID)
}

// Wait blocks until the current verification run, if any, has exited.
func (s *Session) Wait() {
	s.mu.Lock()
	run := s.run
	s.mu.Unlock()
	run.Wait()
}

// Submit converts the draft into a persisted declaration. It is only allowed
// from review. Any failure before the record is created leaves the session on
// review with the draft intact.
func (s *Session) Submit(ctx context.Context) (*models.Declaration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.cancelled {
		return nil, errCancelled
	}
	if s.st.submitted != nil {
		return nil, dErrors.New(dErrors.CodeConflict, "draft has already been submitted")
	}
	if s.st.step != models.StepReview {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "submit is only allowed from review, current step is %s", s.st.step)
	}

	decl, err := s.svc.submit(ctx, s.st.draft.Clone())
	if err != nil {
		s.svc.metrics.IncSubmitFailure(string(dErrors.CodeOf(err)))
		return nil, err
	}
	if _, err := s.dispatchLocked(submittedAction{declarationID: decl.ID}); err != nil {
		return nil, err
	}
	return decl, nil
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}
