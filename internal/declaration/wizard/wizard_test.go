package wizard_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"verdant/internal/declaration/adapters"
	"verdant/internal/declaration/models"
	"verdant/internal/declaration/ports"
	"verdant/internal/declaration/ports/mocks"
	"verdant/internal/declaration/status"
	"verdant/internal/declaration/store"
	"verdant/internal/declaration/validation"
	"verdant/internal/declaration/verification"
	"verdant/internal/declaration/verification/scripted"
	"verdant/internal/declaration/wizard"
	"verdant/internal/platform/logger"
	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
	"verdant/pkg/platform/audit"
	auditmemory "verdant/pkg/platform/audit/store/memory"
	"verdant/pkg/platform/sentinel"
)

type WizardSuite struct {
	suite.Suite
	ctx      context.Context
	verifier *scripted.Service
	store    *store.InMemoryStore
	ops      *auditmemory.InMemoryStore
	service  *wizard.Service
}

func TestWizardSuite(t *testing.T) {
	suite.Run(t, new(WizardSuite))
}

func (s *WizardSuite) SetupTest() {
	s.ctx = context.Background()
	s.verifier = scripted.New()
	s.store = store.NewInMemoryStore()
	s.ops = auditmemory.NewInMemoryStore()
	s.service = s.newService(s.store, adapters.NewMemorySubmitLocker())
}

func (s *WizardSuite) newService(st ports.DeclarationStore, locker ports.SubmitLocker, opts ...wizard.Option) *wizard.Service {
	pipeline, err := verification.New(s.verifier,
		verification.WithLogger(logger.Discard()),
		verification.WithStageTimeout(time.Second),
	)
	s.Require().NoError(err)
	opts = append([]wizard.Option{wizard.WithLogger(logger.Discard()), wizard.WithOperationsAudit(s.ops)}, opts...)
	svc, err := wizard.New(pipeline, st, locker, opts...)
	s.Require().NoError(err)
	return svc
}

func palmOil() models.LineItem {
	return models.LineItem{
		HSNCode:     "1511.10.00",
		ProductName: "Palm Oil",
		Quantity:    decimal.RequireFromString("5000"),
		Unit:        models.UnitKilogram,
	}
}

func validity() *models.ValidityPeriod {
	p, _ := models.NewValidityPeriod(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC))
	return &p
}

func (s *WizardSuite) open(source models.SourceType) *wizard.Session {
	sess, err := s.service.Open(s.ctx, wizard.OpenRequest{SourceType: source})
	s.Require().NoError(err)
	return sess
}

func (s *WizardSuite) advance(sess *wizard.Session, want models.Step) {
	v, err := sess.Advance(s.ctx)
	s.Require().NoError(err)
	s.Require().Equal(want, v.Step)
}

// freshToReview walks a fresh palm oil draft to review with geoFile attached
// and waits for verification to finish.
func (s *WizardSuite) freshToReview(geoFile models.FileRef) *wizard.Session {
	sess := s.open(models.SourceFresh)
	s.advance(sess, models.StepDetailEntry)

	items := []models.LineItem{palmOil()}
	_, err := sess.UpdateDraft(s.ctx, wizard.DraftPatch{Items: &items, Validity: validity()})
	s.Require().NoError(err)
	s.advance(sess, models.StepEvidenceUpload)

	_, err = sess.AttachEvidence(s.ctx, []models.FileRef{"docs/bill-of-lading.pdf"}, &geoFile)
	s.Require().NoError(err)
	s.advance(sess, models.StepPartyDetail)

	_, err = sess.UpdateDraft(s.ctx, wizard.DraftPatch{Party: &models.PartyRef{ID: id.NewPartyID()}})
	s.Require().NoError(err)
	s.advance(sess, models.StepReview)

	sess.Wait()
	return sess
}

func (s *WizardSuite) seedApproved(items ...models.LineItem) id.DeclarationID {
	declarationID, err := s.store.Create(s.ctx, &models.Declaration{
		Type:       models.DirectionInbound,
		SourceType: models.SourceFresh,
		Status:     models.StatusApproved,
		RiskLevel:  models.RiskLow,
		Items:      items,
		PartyID:    id.NewPartyID(),
		PartyKind:  models.PartySupplier,
		DraftID:    id.NewDraftID(),
	})
	s.Require().NoError(err)
	return declarationID
}

func (s *WizardSuite) TestNewRequiresCollaborators() {
	pipeline, err := verification.New(s.verifier)
	s.Require().NoError(err)

	_, err = wizard.New(nil, s.store, adapters.NewMemorySubmitLocker())
	s.Error(err)
	_, err = wizard.New(pipeline, nil, adapters.NewMemorySubmitLocker())
	s.Error(err)
	_, err = wizard.New(pipeline, s.store, nil)
	s.Error(err)
}

func (s *WizardSuite) TestOpen() {
	s.Run("defaults to outbound at type selection", func() {
		sess := s.open(models.SourceFresh)
		v := sess.Snapshot()
		s.Equal(models.StepTypeSelect, v.Step)
		s.Equal(models.DirectionOutbound, v.Draft.Direction)
		s.Nil(v.Verification, "verification is null until a geo file is attached")

		got, err := s.service.Get(v.DraftID)
		s.Require().NoError(err)
		s.Same(sess, got)
	})

	s.Run("rejects unknown source type", func() {
		_, err := s.service.Open(s.ctx, wizard.OpenRequest{SourceType: "imported"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown draft", func() {
		_, err := s.service.Get(id.NewDraftID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *WizardSuite) TestAdvanceOnlyMovesOnOk() {
	s.Run("zero valid items is rejected naming the missing fields", func() {
		sess := s.open(models.SourceFresh)
		s.advance(sess, models.StepDetailEntry)
		items := []models.LineItem{{HSNCode: "1511.10.00", Unit: models.UnitKilogram}}
		_, err := sess.UpdateDraft(s.ctx, wizard.DraftPatch{Items: &items, Validity: validity()})
		s.Require().NoError(err)

		v, err := sess.Advance(s.ctx)

		var failure *validation.Failure
		s.Require().ErrorAs(err, &failure)
		s.Equal(models.StepDetailEntry, failure.Step)
		s.Equal(models.StepDetailEntry, v.Step, "step pointer unchanged")
		s.Contains(err.Error(), "product name")
		s.Contains(err.Error(), "quantity")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Len(v.Draft.Items, 1, "draft is kept")
	})

	s.Run("submit is not an advance", func() {
		sess := s.freshToReview("plots/ok.geojson")
		v, err := sess.Advance(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		s.Equal(models.StepReview, v.Step)
	})
}

func (s *WizardSuite) TestNavigation() {
	sess := s.freshToReview("plots/ok.geojson")

	s.Run("retreat never re-validates and keeps data", func() {
		v, err := sess.Retreat()
		s.Require().NoError(err)
		s.Equal(models.StepPartyDetail, v.Step)
		s.NotNil(v.Draft.Party)
	})

	s.Run("go to a completed step", func() {
		v, err := sess.GoTo(models.StepDetailEntry)
		s.Require().NoError(err)
		s.Equal(models.StepDetailEntry, v.Step)
		s.Len(v.Draft.Items, 1)
	})

	s.Run("cannot skip ahead", func() {
		_, err := sess.GoTo(models.StepReview)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("retreat at first step", func() {
		first := s.open(models.SourceFresh)
		v, err := first.Retreat()
		s.Error(err)
		s.Equal(models.StepTypeSelect, v.Step)
	})
}

func (s *WizardSuite) TestUpdateDraft() {
	s.Run("source type can change before type selection completes", func() {
		sess := s.open(models.SourceFresh)
		existing := models.SourceExisting
		v, err := sess.UpdateDraft(s.ctx, wizard.DraftPatch{SourceType: &existing})
		s.Require().NoError(err)
		s.Equal(models.SourceExisting, v.Draft.SourceType())
	})

	s.Run("source type is fixed after type selection", func() {
		sess := s.open(models.SourceFresh)
		s.advance(sess, models.StepDetailEntry)
		existing := models.SourceExisting
		_, err := sess.UpdateDraft(s.ctx, wizard.DraftPatch{SourceType: &existing})
		var failure *validation.Failure
		s.ErrorAs(err, &failure)
		s.Equal(models.SourceFresh, sess.Snapshot().Draft.SourceType())
	})

	s.Run("duplicate source selection", func() {
		sess := s.open(models.SourceExisting)
		dup := id.NewDeclarationID()
		ids := []id.DeclarationID{dup, dup}
		_, err := sess.UpdateDraft(s.ctx, wizard.DraftPatch{SourceIDs: &ids})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("direction change drops a mismatched party", func() {
		sess := s.open(models.SourceFresh)
		_, err := sess.UpdateDraft(s.ctx, wizard.DraftPatch{Party: &models.PartyRef{ID: id.NewPartyID()}})
		s.Require().NoError(err)
		inbound := models.DirectionInbound
		v, err := sess.UpdateDraft(s.ctx, wizard.DraftPatch{Direction: &inbound})
		s.Require().NoError(err)
		s.Nil(v.Draft.Party)
	})

	s.Run("snapshots do not alias session state", func() {
		sess := s.open(models.SourceFresh)
		items := []models.LineItem{palmOil()}
		_, err := sess.UpdateDraft(s.ctx, wizard.DraftPatch{Items: &items})
		s.Require().NoError(err)

		v := sess.Snapshot()
		v.Draft.Items[0].ProductName = "mutated"
		s.Equal("Palm Oil", sess.Snapshot().Draft.Items[0].ProductName)
	})
}

func (s *WizardSuite) TestFreshPalmOilNonCompliantSatellite() {
	s.verifier.Set("plots/estate-7.geojson", scripted.Script{
		Geometry:  models.ResultCompliant,
		Satellite: models.ResultNonCompliant,
	})
	sess := s.freshToReview("plots/estate-7.geojson")

	v := sess.Snapshot()
	s.Require().NotNil(v.Verification)
	s.Equal(models.StageCompliant, v.Verification.Geometry)
	s.Equal(models.StageNonCompliant, v.Verification.Satellite)

	decl, err := sess.Submit(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, decl.Status)
	s.Require().NotNil(decl.Outcome)
	s.Equal(models.OutcomeNonCompliantSatellite, *decl.Outcome)
	s.False(decl.FilingEligible)
	s.Equal(models.RiskHigh, decl.RiskLevel)
	s.Equal(models.StepSubmitted, sess.Snapshot().Step)

	stored, err := s.store.FindByID(s.ctx, decl.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, stored.Status)
}

func (s *WizardSuite) TestFreshPalmOilFullyCompliant() {
	sess := s.freshToReview("plots/estate-8.geojson")

	decl, err := sess.Submit(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, decl.Status)
	s.Require().NotNil(decl.Outcome)
	s.Equal(models.OutcomeFullyCompliant, *decl.Outcome)
	s.True(decl.FilingEligible)
	s.Equal("Palm Oil", decl.ProductSummary)
	s.Equal(models.PartyCustomer, decl.PartyKind)
	s.Require().NotNil(decl.GeoFile)
	s.Equal(models.FileRef("plots/estate-8.geojson"), *decl.GeoFile)

	s.Run("second submit is refused", func() {
		_, err := sess.Submit(s.ctx)
		s.Error(err)
		all, err := s.store.List(s.ctx, models.Filter{})
		s.Require().NoError(err)
		s.Len(all, 1)
	})
}

func (s *WizardSuite) TestNonCompliantGeometrySkipsSatellite() {
	s.verifier.Set("plots/bad.geojson", scripted.Script{Geometry: models.ResultNonCompliant})
	sess := s.freshToReview("plots/bad.geojson")

	v := sess.Snapshot()
	s.Equal(models.StageUnstarted, v.Verification.Satellite)
	for _, call := range s.verifier.Calls() {
		s.NotEqual(models.StageSatellite, call.Stage)
	}

	decl, err := sess.Submit(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, decl.Status)
	s.Equal(models.OutcomeNonCompliantGeometry, *decl.Outcome)
}

func (s *WizardSuite) TestSubmitBlockedWhileVerificationInProgress() {
	block := make(chan struct{})
	s.verifier.Set("plots/slow.geojson", scripted.Script{
		Geometry:  models.ResultCompliant,
		Satellite: models.ResultCompliant,
		Block:     block,
	})
	sess := s.open(models.SourceFresh)
	s.advance(sess, models.StepDetailEntry)
	items := []models.LineItem{palmOil()}
	_, err := sess.UpdateDraft(s.ctx, wizard.DraftPatch{Items: &items, Validity: validity()})
	s.Require().NoError(err)
	s.advance(sess, models.StepEvidenceUpload)
	geo := models.FileRef("plots/slow.geojson")
	_, err = sess.AttachEvidence(s.ctx, []models.FileRef{"docs/a.pdf"}, &geo)
	s.Require().NoError(err)
	s.advance(sess, models.StepPartyDetail)
	_, err = sess.UpdateDraft(s.ctx, wizard.DraftPatch{Party: &models.PartyRef{ID: id.NewPartyID()}})
	s.Require().NoError(err)
	s.advance(sess, models.StepReview)

	_, err = sess.Submit(s.ctx)
	s.ErrorIs(err, status.ErrVerificationInProgress)
	s.True(dErrors.HasCode(err, dErrors.CodeVerificationInProgress))
	s.Equal(models.StepReview, sess.Snapshot().Step)

	close(block)
	sess.Wait()
	decl, err := sess.Submit(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, decl.Status)
}

func (s *WizardSuite) TestStageErrorThenRetry() {
	s.verifier.Set("plots/flaky.geojson", scripted.Script{
		Geometry:     models.ResultCompliant,
		SatelliteErr: sentinel.ErrUnavailable,
	})
	sess := s.freshToReview("plots/flaky.geojson")

	v := sess.Snapshot()
	s.Equal(models.StageCompliant, v.Verification.Geometry)
	s.Equal(models.StagePending, v.Verification.Satellite, "failed stage stays pending")
	s.Require().NotNil(v.Verification.Err)
	s.True(v.Verification.Err.Retryable)

	_, err := sess.Submit(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeVerificationInProgress))
	s.True(verification.IsRetryable(err), "submit surfaces the retryable service error")

	s.verifier.Set("plots/flaky.geojson", scripted.Script{
		Geometry:  models.ResultCompliant,
		Satellite: models.ResultCompliant,
	})
	_, err = sess.RetryVerification(s.ctx)
	s.Require().NoError(err)
	sess.Wait()

	geometryCalls := 0
	for _, call := range s.verifier.Calls() {
		if call.Stage == models.StageGeometry {
			geometryCalls++
		}
	}
	s.Equal(1, geometryCalls, "retry resumes from the unresolved stage")

	decl, err := sess.Submit(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, decl.Status)

	events, err := s.ops.ListBySubject(s.ctx, v.DraftID.String())
	s.Require().NoError(err)
	var actions []string
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	s.Contains(actions, string(audit.EventVerificationFailed))
	s.Contains(actions, string(audit.EventVerificationSettled))
}

func (s *WizardSuite) TestRetryRequiresFailure() {
	sess := s.freshToReview("plots/ok.geojson")
	_, err := sess.RetryVerification(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *WizardSuite) TestReattachResetsVerification() {
	s.verifier.Set("plots/first.geojson", scripted.Script{Geometry: models.ResultNonCompliant})
	sess := s.freshToReview("plots/first.geojson")
	before := sess.Snapshot().Verification
	s.Equal(models.StageNonCompliant, before.Geometry)

	block := make(chan struct{})
	s.verifier.Set("plots/second.geojson", scripted.Script{
		Geometry:  models.ResultCompliant,
		Satellite: models.ResultCompliant,
		Block:     block,
	})
	second := models.FileRef("plots/second.geojson")
	v, err := sess.AttachEvidence(s.ctx, nil, &second)
	s.Require().NoError(err)
	s.Equal(models.StageUnstarted, v.Verification.Geometry)
	s.Equal(models.StageUnstarted, v.Verification.Satellite)
	s.Greater(v.Verification.Generation, before.Generation)
	s.Equal([]models.FileRef{"docs/bill-of-lading.pdf"}, v.Draft.Documents, "nil documents keep the current list")

	_, err = sess.Submit(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeVerificationInProgress), "a fresh run is required before submit")

	close(block)
	sess.Wait()
	decl, err := sess.Submit(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, decl.Status)
}

func (s *WizardSuite) TestExistingBased() {
	first := s.seedApproved(palmOil())
	second := s.seedApproved(models.LineItem{HSNCode: "1801.00", ProductName: "Cocoa", Quantity: decimal.NewFromInt(30), Unit: models.UnitKilogram})

	sess := s.open(models.SourceExisting)
	s.advance(sess, models.StepDetailEntry)
	sources := []id.DeclarationID{first, second}
	items := []models.LineItem{palmOil()}
	_, err := sess.UpdateDraft(s.ctx, wizard.DraftPatch{SourceIDs: &sources, Items: &items, Validity: validity()})
	s.Require().NoError(err)
	s.advance(sess, models.StepEvidenceUpload)

	s.Run("geo file is rejected on existing-based drafts", func() {
		geo := models.FileRef("plots/x.geojson")
		_, err := sess.AttachEvidence(s.ctx, nil, &geo)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	_, err = sess.AttachEvidence(s.ctx, []models.FileRef{"docs/contract.pdf"}, nil)
	s.Require().NoError(err)
	s.advance(sess, models.StepPartyDetail)
	_, err = sess.UpdateDraft(s.ctx, wizard.DraftPatch{Party: &models.PartyRef{ID: id.NewPartyID()}})
	s.Require().NoError(err)
	s.advance(sess, models.StepReview)

	decl, err := sess.Submit(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, decl.Status)
	s.Equal(sources, decl.LinkedSourceIDs)
	s.Nil(decl.Outcome)
	s.Nil(decl.GeoFile)
	s.Len(decl.SourceSummaries, 2)
	s.Equal("Palm Oil, Cocoa", decl.ProductSummary)
	s.Require().Len(decl.Items, 1, "entered items are kept on the declaration")
	s.Equal("Palm Oil", decl.Items[0].ProductName)
	s.Empty(s.verifier.Calls(), "verification is not invoked for existing-based drafts")
}

func (s *WizardSuite) TestExistingBasedWithUnapprovedSource() {
	pendingID, err := s.store.Create(s.ctx, &models.Declaration{Status: models.StatusPending, DraftID: id.NewDraftID()})
	s.Require().NoError(err)

	sess := s.existingToReview(pendingID)
	_, err = sess.Submit(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeAggregationFailed))
	s.Equal(models.StepReview, sess.Snapshot().Step)

	all, err := s.store.List(s.ctx, models.Filter{})
	s.Require().NoError(err)
	s.Len(all, 1, "only the seeded source exists")
}

func (s *WizardSuite) existingToReview(sources ...id.DeclarationID) *wizard.Session {
	sess := s.open(models.SourceExisting)
	s.advance(sess, models.StepDetailEntry)
	items := []models.LineItem{palmOil()}
	_, err := sess.UpdateDraft(s.ctx, wizard.DraftPatch{SourceIDs: &sources, Items: &items, Validity: validity()})
	s.Require().NoError(err)
	s.advance(sess, models.StepEvidenceUpload)
	_, err = sess.AttachEvidence(s.ctx, []models.FileRef{"docs/contract.pdf"}, nil)
	s.Require().NoError(err)
	s.advance(sess, models.StepPartyDetail)
	_, err = sess.UpdateDraft(s.ctx, wizard.DraftPatch{Party: &models.PartyRef{ID: id.NewPartyID()}})
	s.Require().NoError(err)
	s.advance(sess, models.StepReview)
	return sess
}

func (s *WizardSuite) TestCancelWithInFlightVerification() {
	block := make(chan struct{})
	defer close(block)
	s.verifier.Set("plots/slow.geojson", scripted.Script{Geometry: models.ResultCompliant, Satellite: models.ResultCompliant, Block: block})

	sess := s.open(models.SourceFresh)
	s.advance(sess, models.StepDetailEntry)
	items := []models.LineItem{palmOil()}
	_, err := sess.UpdateDraft(s.ctx, wizard.DraftPatch{Items: &items, Validity: validity()})
	s.Require().NoError(err)
	s.advance(sess, models.StepEvidenceUpload)
	geo := models.FileRef("plots/slow.geojson")
	_, err = sess.AttachEvidence(s.ctx, []models.FileRef{"docs/a.pdf"}, &geo)
	s.Require().NoError(err)
	s.Eventually(func() bool { return len(s.verifier.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	draftID := sess.Snapshot().DraftID
	s.Require().NoError(s.service.Cancel(s.ctx, draftID))
	sess.Wait()

	v := sess.Snapshot()
	s.True(v.Cancelled)
	s.Equal(models.StagePending, v.Verification.Geometry, "no delivery after cancel")
	s.Len(s.verifier.Calls(), 1, "satellite never started")

	all, err := s.store.List(s.ctx, models.Filter{})
	s.Require().NoError(err)
	s.Empty(all, "no record created")

	_, err = s.service.Get(draftID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = sess.Advance(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	s.Run("cancel is idempotent", func() {
		sess.Cancel(s.ctx)
		s.True(dErrors.HasCode(s.service.Cancel(s.ctx, draftID), dErrors.CodeNotFound))
	})
}

func (s *WizardSuite) TestSubmitFailuresLeaveDraftOnReview() {
	ctrl := gomock.NewController(s.T())

	s.Run("store error propagates", func() {
		mockStore := mocks.NewMockDeclarationStore(ctrl)
		boom := errors.New("disk full")
		mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(id.DeclarationID{}, boom)
		s.service = s.newService(mockStore, adapters.NewMemorySubmitLocker())

		sess := s.freshToReview("plots/ok.geojson")
		_, err := sess.Submit(s.ctx)
		s.ErrorIs(err, boom)
		v := sess.Snapshot()
		s.Equal(models.StepReview, v.Step)
		s.Len(v.Draft.Items, 1)
	})

	s.Run("held submit lock is a conflict", func() {
		locker := mocks.NewMockSubmitLocker(ctrl)
		locker.EXPECT().Obtain(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrConflict)
		s.service = s.newService(s.store, locker)

		sess := s.freshToReview("plots/ok.geojson")
		_, err := sess.Submit(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal(models.StepReview, sess.Snapshot().Step)
	})

	s.Run("submit only from review", func() {
		sess := s.open(models.SourceFresh)
		_, err := sess.Submit(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("second submit is a conflict", func() {
		s.service = s.newService(store.NewInMemoryStore(), adapters.NewMemorySubmitLocker())
		sess := s.freshToReview("plots/ok.geojson")
		_, err := sess.Submit(s.ctx)
		s.Require().NoError(err)
		_, err = sess.Submit(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *WizardSuite) TestSubmitPublishesEvents() {
	ctrl := gomock.NewController(s.T())
	events := mocks.NewMockEventPublisher(ctrl)
	auditor := mocks.NewMockAuditPublisher(ctrl)
	locker := mocks.NewMockSubmitLocker(ctrl)
	lock := mocks.NewMockLock(ctrl)

	gomock.InOrder(
		locker.EXPECT().Obtain(gomock.Any(), gomock.Any(), wizard.DefaultLockTTL).Return(lock, nil),
		auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.ComplianceEvent) error {
			s.Equal(string(audit.EventDeclarationSubmitted), e.Action)
			s.Equal("pending", e.Decision)
			s.Equal(string(models.OutcomeFullyCompliant), e.Reason)
			return nil
		}),
		events.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e ports.DeclarationEvent) error {
			s.Equal(ports.EventSubmitted, e.Type)
			return errors.New("broker down")
		}),
		lock.EXPECT().Release(gomock.Any()).Return(nil),
	)
	s.service = s.newService(s.store, locker, wizard.WithEventPublisher(events), wizard.WithAuditPublisher(auditor))

	sess := s.freshToReview("plots/ok.geojson")
	decl, err := sess.Submit(s.ctx)
	s.Require().NoError(err, "publish failures are best effort")
	s.Equal(models.StatusPending, decl.Status)
}

func (s *WizardSuite) TestReview() {
	sess := s.freshToReview("plots/ok.geojson")
	decl, err := sess.Submit(s.ctx)
	s.Require().NoError(err)

	s.Run("unknown decision", func() {
		_, err := s.service.Review(s.ctx, decl.ID, wizard.ReviewRequest{Decision: "maybe"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("approve pending", func() {
		note := "documents verified"
		got, err := s.service.Review(s.ctx, decl.ID, wizard.ReviewRequest{Decision: wizard.ReviewApprove, Comments: &note})
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, got.Status)
		s.Equal(note, got.Comments)
	})

	s.Run("approved is final", func() {
		_, err := s.service.Review(s.ctx, decl.ID, wizard.ReviewRequest{Decision: wizard.ReviewReject})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("unknown declaration", func() {
		_, err := s.service.Review(s.ctx, id.NewDeclarationID(), wizard.ReviewRequest{Decision: wizard.ReviewApprove})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *WizardSuite) TestDraftCanOnlyBeRejected() {
	s.verifier.Set("plots/bad.geojson", scripted.Script{Geometry: models.ResultNonCompliant})
	sess := s.freshToReview("plots/bad.geojson")
	decl, err := sess.Submit(s.ctx)
	s.Require().NoError(err)

	_, err = s.service.Review(s.ctx, decl.ID, wizard.ReviewRequest{Decision: wizard.ReviewApprove})
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	got, err := s.service.Review(s.ctx, decl.ID, wizard.ReviewRequest{Decision: wizard.ReviewReject})
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, got.Status)
}

func (s *WizardSuite) TestApproveRechecksVerificationOutcome() {
	satellite := models.OutcomeNonCompliantSatellite
	forced, err := s.store.Create(s.ctx, &models.Declaration{
		Type:       models.DirectionOutbound,
		SourceType: models.SourceFresh,
		Status:     models.StatusPending,
		Outcome:    &satellite,
		PartyID:    id.NewPartyID(),
		PartyKind:  models.PartyCustomer,
		DraftID:    id.NewDraftID(),
	})
	s.Require().NoError(err)

	s.Run("non-compliant record stored as pending cannot be approved", func() {
		_, err := s.service.Review(s.ctx, forced, wizard.ReviewRequest{Decision: wizard.ReviewApprove})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		got, err := s.service.FindDeclaration(s.ctx, forced)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, got.Status, "record is left untouched")
	})

	s.Run("it can still be rejected", func() {
		got, err := s.service.Review(s.ctx, forced, wizard.ReviewRequest{Decision: wizard.ReviewReject})
		s.Require().NoError(err)
		s.Equal(models.StatusRejected, got.Status)
	})

	s.Run("fresh record without an outcome cannot be approved", func() {
		unsettled, err := s.store.Create(s.ctx, &models.Declaration{
			SourceType: models.SourceFresh,
			Status:     models.StatusPending,
			DraftID:    id.NewDraftID(),
		})
		s.Require().NoError(err)
		_, err = s.service.Review(s.ctx, unsettled, wizard.ReviewRequest{Decision: wizard.ReviewApprove})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *WizardSuite) TestSourceSwitchStopsVerification() {
	block := make(chan struct{})
	defer close(block)
	s.verifier.Set("plots/early.geojson", scripted.Script{Geometry: models.ResultCompliant, Satellite: models.ResultCompliant, Block: block})

	sess := s.open(models.SourceFresh)
	geo := models.FileRef("plots/early.geojson")
	before, err := sess.AttachEvidence(s.ctx, nil, &geo)
	s.Require().NoError(err)
	s.Eventually(func() bool { return len(s.verifier.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	existing := models.SourceExisting
	v, err := sess.UpdateDraft(s.ctx, wizard.DraftPatch{SourceType: &existing})
	s.Require().NoError(err)
	s.Equal(models.SourceExisting, v.Draft.SourceType())
	s.Nil(v.Verification)

	sess.Wait()
	s.Len(s.verifier.Calls(), 1, "the abandoned run never reaches satellite")

	fresh := models.SourceFresh
	v, err = sess.UpdateDraft(s.ctx, wizard.DraftPatch{SourceType: &fresh})
	s.Require().NoError(err)
	s.Nil(v.Verification, "a new fresh source starts without verification")

	second := models.FileRef("plots/second.geojson")
	v, err = sess.AttachEvidence(s.ctx, nil, &second)
	s.Require().NoError(err)
	s.Greater(v.Verification.Generation, before.Verification.Generation+1, "switching sources bumps the generation")
	sess.Wait()
}

func (s *WizardSuite) TestVerificationDeliveriesKeepSessionAlive() {
	var (
		mu  sync.Mutex
		now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}
	s.service = s.newService(s.store, adapters.NewMemorySubmitLocker(),
		wizard.WithClock(clock),
		wizard.WithSessionTTL(time.Hour),
	)

	block := make(chan struct{})
	s.verifier.Set("plots/queued.geojson", scripted.Script{Geometry: models.ResultCompliant, Satellite: models.ResultCompliant, Block: block})
	sess := s.open(models.SourceFresh)
	geo := models.FileRef("plots/queued.geojson")
	_, err := sess.AttachEvidence(s.ctx, nil, &geo)
	s.Require().NoError(err)

	advance(50 * time.Minute)
	close(block)
	sess.Wait()
	s.Require().NotNil(sess.Snapshot().Verification.Outcome)

	advance(20 * time.Minute)
	s.Zero(s.service.Sweep(s.ctx), "the last delivery counts as activity")
	s.False(sess.Snapshot().Cancelled)

	advance(time.Hour)
	s.Equal(1, s.service.Sweep(s.ctx))
}

func (s *WizardSuite) TestSweep() {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	s.service = s.newService(s.store, adapters.NewMemorySubmitLocker(),
		wizard.WithClock(func() time.Time { return now }),
		wizard.WithSessionTTL(time.Hour),
	)
	idle := s.open(models.SourceFresh)
	now = now.Add(50 * time.Minute)
	active := s.open(models.SourceFresh)
	now = now.Add(20 * time.Minute)

	s.Equal(1, s.service.Sweep(s.ctx))
	s.True(idle.Snapshot().Cancelled)
	s.False(active.Snapshot().Cancelled)
	s.Equal(1, s.service.ActiveSessions())

	expired, err := s.ops.ListBySubject(s.ctx, idle.Snapshot().DraftID.String())
	s.Require().NoError(err)
	var actions []string
	for _, e := range expired {
		actions = append(actions, e.Action)
	}
	s.Contains(actions, string(audit.EventDraftExpired))
}
