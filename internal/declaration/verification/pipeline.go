// Package verification drives the two-stage geo verification of a draft:
// geometry first, then satellite only when geometry is compliant.
package verification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"verdant/internal/declaration/metrics"
	"verdant/internal/declaration/models"
	"verdant/internal/declaration/ports"
)

// DefaultStageTimeout bounds each external call.
const DefaultStageTimeout = 30 * time.Second

// Update is one stage transition delivered to a sink.
type Update struct {
	Generation uint64
	Stage      models.Stage
	Status     models.StageStatus
	// Err is set when the stage failed; Status stays pending.
	Err *Error
	// Done marks the last update of a run.
	Done bool
}

// Sink receives pipeline updates in order. It must filter stale generations.
type Sink func(Update)

// Pipeline runs verification against a VerificationService.
type Pipeline struct {
	service      ports.VerificationService
	stageTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
}

// Option configures the Pipeline.
type Option func(*Pipeline)

// WithStageTimeout sets the per-stage bound.
func WithStageTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.stageTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// New creates a pipeline. The service is required.
func New(service ports.VerificationService, opts ...Option) (*Pipeline, error) {
	if service == nil {
		return nil, errors.New("verification service is required")
	}
	p := &Pipeline{
		service:      service,
		stageTimeout: DefaultStageTimeout,
		logger:       slog.Default(),
		tracer:       otel.Tracer("verdant/declaration"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run is a handle on one in-flight pipeline execution.
type Run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the run. No update is delivered after Cancel returns
// unless it was already being delivered.
func (r *Run) Cancel() {
	if r != nil {
		r.cancel()
	}
}

// Done is closed when the run's goroutine exits.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run exits.
func (r *Run) Wait() {
	if r != nil {
		<-r.done
	}
}

// Start launches a fresh run for a newly attached geo file.
func (p *Pipeline) Start(ctx context.Context, ref models.FileRef, generation uint64, sink Sink) *Run {
	return p.Resume(ctx, ref, *models.NewVerificationState(generation), sink)
}

// Resume launches a run that continues from the first unresolved stage of state.
// The run outlives ctx's cancellation (it is usually a request context) but
// keeps its values; use Run.Cancel to stop it.
func (p *Pipeline) Resume(ctx context.Context, ref models.FileRef, state models.VerificationState, sink Sink) *Run {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := &Run{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(run.done)
		defer cancel()
		p.execute(runCtx, ref, state, sink)
	}()
	return run
}

func (p *Pipeline) execute(ctx context.Context, ref models.FileRef, state models.VerificationState, sink Sink) {
	stage, ok := state.UnresolvedStage()
	if !ok {
		return
	}
	gen := state.Generation

	if stage == models.StageGeometry {
		result, ok := p.runStage(ctx, models.StageGeometry, ref, gen, sink)
		if !ok {
			return
		}
		if result != models.ResultCompliant {
			p.deliver(ctx, sink, Update{Generation: gen, Stage: models.StageGeometry, Status: models.StageNonCompliant, Done: true})
			return
		}
		p.deliver(ctx, sink, Update{Generation: gen, Stage: models.StageGeometry, Status: models.StageCompliant})
	}

	result, ok := p.runStage(ctx, models.StageSatellite, ref, gen, sink)
	if !ok {
		return
	}
	p.deliver(ctx, sink, Update{Generation: gen, Stage: models.StageSatellite, Status: result.StageStatus(), Done: true})
}

// runStage marks the stage pending, performs the bounded call and returns its
// result. ok is false when the run ended (error delivered or cancelled).
func (p *Pipeline) runStage(ctx context.Context, stage models.Stage, ref models.FileRef, gen uint64, sink Sink) (models.CheckResult, bool) {
	if !p.deliver(ctx, sink, Update{Generation: gen, Stage: stage, Status: models.StagePending}) {
		return "", false
	}

	ctx, span := p.tracer.Start(ctx, "verification."+string(stage),
		trace.WithAttributes(
			attribute.String("verification.stage", string(stage)),
			attribute.Int64("verification.generation", int64(gen)),
		))
	defer span.End()

	stageCtx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()

	start := time.Now()
	result, err := p.call(stageCtx, stage, ref)
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		// Run cancelled while the call was in flight.
		span.SetStatus(codes.Error, "cancelled")
		return "", false
	}
	if err == nil && !result.IsValid() {
		err = NewError(stage, ErrorBadData, "unexpected result "+string(result), nil)
	}
	if err != nil {
		verr := Classify(stage, err)
		if errors.Is(stageCtx.Err(), context.DeadlineExceeded) && verr.Category == ErrorInternal {
			verr = NewError(stage, ErrorTimeout, "stage did not finish within its bound", err)
		}
		span.RecordError(verr)
		span.SetStatus(codes.Error, string(verr.Category))
		p.metrics.ObserveStage(string(stage), string(verr.Category), elapsed)
		p.logger.WarnContext(ctx, "verification stage failed",
			"stage", stage,
			"generation", gen,
			"category", verr.Category,
			"retryable", verr.Retryable,
			"error", verr.Underlying,
		)
		p.deliver(ctx, sink, Update{Generation: gen, Stage: stage, Status: models.StagePending, Err: verr, Done: true})
		return "", false
	}

	span.SetAttributes(attribute.String("verification.result", string(result)))
	p.metrics.ObserveStage(string(stage), string(result), elapsed)
	p.logger.DebugContext(ctx, "verification stage resolved",
		"stage", stage,
		"generation", gen,
		"result", result,
		"duration_ms", elapsed.Milliseconds(),
	)
	return result, true
}

func (p *Pipeline) call(ctx context.Context, stage models.Stage, ref models.FileRef) (models.CheckResult, error) {
	if stage == models.StageSatellite {
		return p.service.CheckSatellite(ctx, ref)
	}
	return p.service.CheckGeometry(ctx, ref)
}

func (p *Pipeline) deliver(ctx context.Context, sink Sink, u Update) bool {
	if ctx.Err() != nil {
		return false
	}
	sink(u)
	return true
}
