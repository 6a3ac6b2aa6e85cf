// Package scripted is a deterministic VerificationService driven by a rule
// table keyed by geo file reference. Used in dev mode, the CLI and tests.
package scripted

import (
	"context"
	"sync"
	"time"

	"verdant/internal/declaration/models"
)

// Script fixes the answers for one geo file.
type Script struct {
	Geometry     models.CheckResult `yaml:"geometry"`
	Satellite    models.CheckResult `yaml:"satellite"`
	GeometryErr  error              `yaml:"-"`
	SatelliteErr error              `yaml:"-"`
	// Latency delays every answer; honored against ctx.
	Latency time.Duration `yaml:"latency"`
	// Block, when set, holds every call until it is closed or ctx ends.
	Block chan struct{} `yaml:"-"`
}

// Service answers from its scripts, falling back to the default script.
type Service struct {
	mu       sync.Mutex
	scripts  map[models.FileRef]Script
	fallback Script
	calls    []Call
}

// Call records one invocation.
type Call struct {
	Stage models.Stage
	Ref   models.FileRef
}

// Option configures a Service.
type Option func(*Service)

// WithDefault sets the script used for unknown refs.
func WithDefault(s Script) Option {
	return func(svc *Service) { svc.fallback = s }
}

// WithScript registers the script for one ref.
func WithScript(ref models.FileRef, s Script) Option {
	return func(svc *Service) { svc.scripts[ref] = s }
}

// New returns a service that, by default, finds every geo file fully compliant.
func New(opts ...Option) *Service {
	svc := &Service{
		scripts: make(map[models.FileRef]Script),
		fallback: Script{
			Geometry:  models.ResultCompliant,
			Satellite: models.ResultCompliant,
		},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Set replaces the script for ref.
func (s *Service) Set(ref models.FileRef, script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[ref] = script
}

// Calls returns the invocations seen so far, in order.
func (s *Service) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *Service) CheckGeometry(ctx context.Context, ref models.FileRef) (models.CheckResult, error) {
	script := s.record(models.StageGeometry, ref)
	if err := wait(ctx, script); err != nil {
		return "", err
	}
	if script.GeometryErr != nil {
		return "", script.GeometryErr
	}
	return script.Geometry, nil
}

func (s *Service) CheckSatellite(ctx context.Context, ref models.FileRef) (models.CheckResult, error) {
	script := s.record(models.StageSatellite, ref)
	if err := wait(ctx, script); err != nil {
		return "", err
	}
	if script.SatelliteErr != nil {
		return "", script.SatelliteErr
	}
	return script.Satellite, nil
}

func (s *Service) record(stage models.Stage, ref models.FileRef) Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Stage: stage, Ref: ref})
	if script, ok := s.scripts[ref]; ok {
		return script
	}
	return s.fallback
}

func wait(ctx context.Context, script Script) error {
	if script.Block != nil {
		select {
		case <-script.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if script.Latency > 0 {
		t := time.NewTimer(script.Latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}
