package verification_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"verdant/internal/declaration/models"
	"verdant/internal/declaration/ports"
	"verdant/internal/declaration/ports/mocks"
	"verdant/internal/declaration/verification"
	"verdant/internal/declaration/verification/scripted"
	"verdant/internal/platform/logger"
	"verdant/pkg/platform/sentinel"
)

// recorder is a Sink that keeps every update.
type recorder struct {
	mu      sync.Mutex
	updates []verification.Update
}

func (r *recorder) sink(u verification.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) all() []verification.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]verification.Update(nil), r.updates...)
}

type PipelineSuite struct {
	suite.Suite
	ctx context.Context
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *PipelineSuite) newPipeline(svc ports.VerificationService, opts ...verification.Option) *verification.Pipeline {
	opts = append([]verification.Option{verification.WithLogger(logger.Discard())}, opts...)
	p, err := verification.New(svc, opts...)
	s.Require().NoError(err)
	return p
}

func (s *PipelineSuite) TestNewRequiresService() {
	_, err := verification.New(nil)
	s.Error(err)
}

func (s *PipelineSuite) TestStageOrdering() {
	s.Run("fully compliant runs both stages in order", func() {
		rec := &recorder{}
		p := s.newPipeline(scripted.New())

		p.Start(s.ctx, "plot.geojson", 3, rec.sink).Wait()

		s.Equal([]verification.Update{
			{Generation: 3, Stage: models.StageGeometry, Status: models.StagePending},
			{Generation: 3, Stage: models.StageGeometry, Status: models.StageCompliant},
			{Generation: 3, Stage: models.StageSatellite, Status: models.StagePending},
			{Generation: 3, Stage: models.StageSatellite, Status: models.StageCompliant, Done: true},
		}, rec.all())
	})

	s.Run("non compliant geometry never starts satellite", func() {
		ctrl := gomock.NewController(s.T())
		svc := mocks.NewMockVerificationService(ctrl)
		svc.EXPECT().CheckGeometry(gomock.Any(), models.FileRef("bad.geojson")).Return(models.ResultNonCompliant, nil)
		svc.EXPECT().CheckSatellite(gomock.Any(), gomock.Any()).Times(0)

		rec := &recorder{}
		s.newPipeline(svc).Start(s.ctx, "bad.geojson", 1, rec.sink).Wait()

		updates := rec.all()
		s.Len(updates, 2)
		s.Equal(verification.Update{Generation: 1, Stage: models.StageGeometry, Status: models.StageNonCompliant, Done: true}, updates[1])
	})

	s.Run("non compliant satellite", func() {
		svc := scripted.New(scripted.WithScript("palm.geojson", scripted.Script{
			Geometry:  models.ResultCompliant,
			Satellite: models.ResultNonCompliant,
		}))
		rec := &recorder{}
		s.newPipeline(svc).Start(s.ctx, "palm.geojson", 1, rec.sink).Wait()

		updates := rec.all()
		s.Require().Len(updates, 4)
		s.Equal(models.StageNonCompliant, updates[3].Status)
		s.True(updates[3].Done)
	})
}

func (s *PipelineSuite) TestStageErrors() {
	s.Run("service error leaves stage pending with a classified error", func() {
		svc := scripted.New(scripted.WithDefault(scripted.Script{
			Geometry:     models.ResultCompliant,
			SatelliteErr: sentinel.ErrUnavailable,
		}))
		rec := &recorder{}
		s.newPipeline(svc).Start(s.ctx, "x", 1, rec.sink).Wait()

		updates := rec.all()
		last := updates[len(updates)-1]
		s.Equal(models.StageSatellite, last.Stage)
		s.Equal(models.StagePending, last.Status)
		s.True(last.Done)
		s.Require().NotNil(last.Err)
		s.Equal(verification.ErrorProviderOutage, last.Err.Category)
		s.True(last.Err.Retryable)
	})

	s.Run("stage timeout is a retryable timeout error", func() {
		svc := scripted.New(scripted.WithDefault(scripted.Script{Block: make(chan struct{})}))
		rec := &recorder{}
		p := s.newPipeline(svc, verification.WithStageTimeout(20*time.Millisecond))
		p.Start(s.ctx, "x", 1, rec.sink).Wait()

		updates := rec.all()
		s.Require().Len(updates, 2)
		s.Equal(models.StagePending, updates[1].Status)
		s.Require().NotNil(updates[1].Err)
		s.Equal(verification.ErrorTimeout, updates[1].Err.Category)
	})

	s.Run("out of contract result is bad data", func() {
		ctrl := gomock.NewController(s.T())
		svc := mocks.NewMockVerificationService(ctrl)
		svc.EXPECT().CheckGeometry(gomock.Any(), gomock.Any()).Return(models.CheckResult("maybe"), nil)

		rec := &recorder{}
		s.newPipeline(svc).Start(s.ctx, "x", 1, rec.sink).Wait()

		updates := rec.all()
		s.Require().NotNil(updates[len(updates)-1].Err)
		s.Equal(verification.ErrorBadData, updates[len(updates)-1].Err.Category)
		s.False(updates[len(updates)-1].Err.Retryable)
	})

	s.Run("unknown error is internal", func() {
		svc := scripted.New(scripted.WithDefault(scripted.Script{GeometryErr: errors.New("boom")}))
		rec := &recorder{}
		s.newPipeline(svc).Start(s.ctx, "x", 1, rec.sink).Wait()

		updates := rec.all()
		s.Equal(verification.ErrorInternal, updates[len(updates)-1].Err.Category)
	})
}

func (s *PipelineSuite) TestCancel() {
	block := make(chan struct{})
	svc := scripted.New(scripted.WithDefault(scripted.Script{Block: block}))
	rec := &recorder{}
	p := s.newPipeline(svc)

	run := p.Start(s.ctx, "x", 1, rec.sink)
	s.Eventually(func() bool { return len(svc.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	run.Cancel()
	close(block)
	run.Wait()

	updates := rec.all()
	s.Len(updates, 1, "only the initial pending update is delivered")
}

func (s *PipelineSuite) TestRequestContextCancellationDoesNotStopRun() {
	ctx, cancel := context.WithCancel(s.ctx)
	rec := &recorder{}
	svc := scripted.New(scripted.WithDefault(scripted.Script{
		Geometry:  models.ResultCompliant,
		Satellite: models.ResultCompliant,
		Latency:   10 * time.Millisecond,
	}))
	run := s.newPipeline(svc).Start(ctx, "x", 1, rec.sink)
	cancel()
	run.Wait()

	updates := rec.all()
	s.Require().Len(updates, 4)
	s.True(updates[3].Done)
}

func (s *PipelineSuite) TestResume() {
	s.Run("resumes from the unresolved satellite stage", func() {
		ctrl := gomock.NewController(s.T())
		svc := mocks.NewMockVerificationService(ctrl)
		svc.EXPECT().CheckGeometry(gomock.Any(), gomock.Any()).Times(0)
		svc.EXPECT().CheckSatellite(gomock.Any(), models.FileRef("x")).Return(models.ResultCompliant, nil)

		state := models.VerificationState{Geometry: models.StageCompliant, Satellite: models.StagePending, Generation: 4}
		rec := &recorder{}
		s.newPipeline(svc).Resume(s.ctx, "x", state, rec.sink).Wait()

		s.Equal([]verification.Update{
			{Generation: 4, Stage: models.StageSatellite, Status: models.StagePending},
			{Generation: 4, Stage: models.StageSatellite, Status: models.StageCompliant, Done: true},
		}, rec.all())
	})

	s.Run("settled state delivers nothing", func() {
		ctrl := gomock.NewController(s.T())
		svc := mocks.NewMockVerificationService(ctrl)
		state := models.VerificationState{Geometry: models.StageNonCompliant, Satellite: models.StageUnstarted, Generation: 1}
		rec := &recorder{}
		s.newPipeline(svc).Resume(s.ctx, "x", state, rec.sink).Wait()
		s.Empty(rec.all())
	})
}
