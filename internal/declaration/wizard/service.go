// Package wizard runs declaration drafts through the multi-step creation
// workflow and converts them into persisted declarations.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"verdant/internal/declaration/aggregation"
	"verdant/internal/declaration/metrics"
	"verdant/internal/declaration/models"
	"verdant/internal/declaration/ports"
	"verdant/internal/declaration/status"
	"verdant/internal/declaration/validation"
	"verdant/internal/declaration/verification"
	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
	"verdant/pkg/platform/audit"
	"verdant/pkg/platform/sentinel"
	"verdant/pkg/requestcontext"
)

const (
	DefaultSessionTTL = 2 * time.Hour
	DefaultLockTTL    = 30 * time.Second
)

// Service owns the open sessions and the collaborators they share.
type Service struct {
	pipeline *verification.Pipeline
	store    ports.DeclarationStore
	resolver *aggregation.Resolver
	locker   ports.SubmitLocker
	events   ports.EventPublisher
	auditor  ports.AuditPublisher
	ops      audit.Store
	logger   *slog.Logger
	metrics  *metrics.Metrics

	sessionTTL time.Duration
	lockTTL    time.Duration
	now        func() time.Time

	mu       sync.RWMutex
	sessions map[id.DraftID]*Session
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithEventPublisher sets the downstream publisher for lifecycle events.
func WithEventPublisher(p ports.EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithAuditPublisher sets the compliance audit publisher.
func WithAuditPublisher(p ports.AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

// WithOperationsAudit records draft and verification events in store.
func WithOperationsAudit(store audit.Store) Option {
	return func(s *Service) { s.ops = store }
}

// WithSessionTTL sets how long an untouched draft lives.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithLockTTL bounds how long a submit lock is held.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithClock overrides the time source used for session idleness.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates the wizard service. pipeline, store and locker are required.
func New(pipeline *verification.Pipeline, store ports.DeclarationStore, locker ports.SubmitLocker, opts ...Option) (*Service, error) {
	if pipeline == nil {
		return nil, errors.New("verification pipeline is required")
	}
	if store == nil {
		return nil, errors.New("declaration store is required")
	}
	if locker == nil {
		return nil, errors.New("submit locker is required")
	}
	resolver, err := aggregation.New(store)
	if err != nil {
		return nil, err
	}
	s := &Service{
		pipeline:   pipeline,
		store:      store,
		resolver:   resolver,
		locker:     locker,
		logger:     slog.Default(),
		sessionTTL: DefaultSessionTTL,
		lockTTL:    DefaultLockTTL,
		now:        time.Now,
		sessions:   make(map[id.DraftID]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// OpenRequest starts a draft.
type OpenRequest struct {
	SourceType models.SourceType
	// Direction defaults to outbound.
	Direction models.Direction
}

// Open creates a session positioned at type selection.
func (s *Service) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	if !req.SourceType.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown source type %q", req.SourceType)
	}
	if req.Direction == "" {
		req.Direction = models.DirectionOutbound
	}
	if !req.Direction.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown direction %q", req.Direction)
	}

	draft := models.NewDraft(id.NewDraftID(), req.SourceType, req.Direction, requestcontext.Now(ctx))
	sess := &Session{svc: s, st: newState(draft), lastActive: s.now()}

	s.mu.Lock()
	s.sessions[draft.ID] = sess
	s.mu.Unlock()

	s.metrics.SessionOpened()
	s.logger.InfoContext(ctx, "draft opened",
		"draft_id", draft.ID,
		"source_type", req.SourceType,
		"direction", req.Direction,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emitOps(ctx, audit.EventDraftOpened, draft.ID.String(), string(req.SourceType), "")
	return sess, nil
}

// Get returns an open session.
func (s *Service) Get(draftID id.DraftID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[draftID]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "draft %s not found", draftID)
	}
	return sess, nil
}

// Cancel discards a draft and forgets its session.
func (s *Service) Cancel(ctx context.Context, draftID id.DraftID) error {
	sess, err := s.remove(draftID)
	if err != nil {
		return err
	}
	sess.Cancel(ctx)
	s.emitOps(ctx, audit.EventDraftCancelled, draftID.String(), "", "")
	return nil
}

// Submit is shorthand for Get followed by Session.Submit.
func (s *Service) Submit(ctx context.Context, draftID id.DraftID) (*models.Declaration, error) {
	sess, err := s.Get(draftID)
	if err != nil {
		return nil, err
	}
	return sess.Submit(ctx)
}

func (s *Service) remove(draftID id.DraftID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[draftID]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "draft %s not found", draftID)
	}
	delete(s.sessions, draftID)
	s.metrics.SessionClosed()
	return sess, nil
}

// ActiveSessions reports how many sessions are open.
func (s *Service) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// submit performs validation, aggregation, status derivation and persistence
// for a snapshot of the draft. The caller holds the session lock.
func (s *Service) submit(ctx context.Context, d *models.Draft) (*models.Declaration, error) {
	if err := validation.ValidateAll(d); err != nil {
		return nil, err
	}

	var payload *aggregation.Payload
	if src, ok := d.Existing(); ok {
		p, err := s.resolver.Resolve(ctx, src.SourceIDs, d.ValidItems(), d.References)
		if err != nil {
			return nil, err
		}
		payload = p
	}

	var sourceRisks []models.RiskLevel
	if payload != nil {
		sourceRisks = payload.SourceRisks
	}
	decision, err := status.Evaluate(d, sourceRisks)
	if err != nil {
		return nil, err
	}

	lock, err := s.locker.Obtain(ctx, submitLockKey(d.ID), s.lockTTL)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "draft is already being submitted")
		}
		return nil, fmt.Errorf("obtaining submit lock: %w", err)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "failed to release submit lock", "draft_id", d.ID, "error", err)
		}
	}()

	decl := buildDeclaration(ctx, d, decision, payload)
	declarationID, err := s.store.Create(ctx, decl)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "draft has already been submitted")
		}
		return nil, fmt.Errorf("creating declaration: %w", err)
	}
	decl.ID = declarationID

	s.metrics.IncSubmit(string(decl.SourceType), string(decl.Status))
	s.logger.InfoContext(ctx, "declaration submitted",
		"draft_id", d.ID,
		"declaration_id", decl.ID,
		"status", decl.Status,
		"source_type", decl.SourceType,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.afterSubmit(ctx, decl)
	return decl, nil
}

func submitLockKey(draftID id.DraftID) string {
	return "declaration:submit:" + draftID.String()
}

func buildDeclaration(ctx context.Context, d *models.Draft, decision status.Decision, payload *aggregation.Payload) *models.Declaration {
	now := requestcontext.Now(ctx)
	items := d.ValidItems()
	decl := &models.Declaration{
		ID:             id.NewDeclarationID(),
		Type:           d.Direction,
		SourceType:     d.SourceType(),
		Status:         decision.Status,
		RiskLevel:      decision.RiskLevel,
		Items:          items,
		ProductSummary: aggregation.ProductSummary(items),
		Documents:      d.Documents,
		Outcome:        decision.Outcome,
		References:     d.References,
		Comments:       d.Comments,
		ValidFrom:      d.Validity.Start,
		ValidTo:        d.Validity.End,
		FilingEligible: decision.FilingEligible,
		DraftID:        d.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if d.Party != nil {
		decl.PartyID = d.Party.ID
		decl.PartyKind = d.Party.Kind
	}
	if f, ok := d.Fresh(); ok && f.GeoFile != nil {
		ref := *f.GeoFile
		decl.GeoFile = &ref
	}
	if payload != nil {
		decl.Items = payload.Items
		decl.LinkedSourceIDs = payload.LinkedSourceIDs
		decl.SourceSummaries = payload.SourceSummaries
		decl.References = payload.References
		if payload.ProductSummary != "" {
			decl.ProductSummary = payload.ProductSummary
		}
	}
	return decl
}

// afterSubmit publishes the lifecycle and audit events. Failures are logged;
// the declaration already exists.
func (s *Service) afterSubmit(ctx context.Context, decl *models.Declaration) {
	reason := ""
	if decl.Outcome != nil {
		reason = string(*decl.Outcome)
	}
	s.emitCompliance(ctx, audit.EventDeclarationSubmitted, decl, reason)
	s.publish(ctx, ports.DeclarationEvent{
		Type:        ports.EventSubmitted,
		Declaration: decl.Clone(),
		RequestID:   requestcontext.RequestID(ctx),
		OccurredAt:  decl.CreatedAt,
	})
}

func (s *Service) publish(ctx context.Context, event ports.DeclarationEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish declaration event",
			"declaration_id", event.Declaration.ID,
			"event_type", event.Type,
			"error", err,
		)
	}
}

func (s *Service) emitCompliance(ctx context.Context, action audit.AuditEvent, decl *models.Declaration, reason string) {
	s.emitComplianceAs(ctx, action, decl, reason, "")
}

func (s *Service) emitComplianceAs(ctx context.Context, action audit.AuditEvent, decl *models.Declaration, reason, actorID string) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Emit(ctx, audit.ComplianceEvent{
		Timestamp: requestcontext.Now(ctx),
		Subject:   decl.ID.String(),
		Action:    string(action),
		Decision:  string(decl.Status),
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   actorID,
		ClientIP:  requestcontext.ClientIP(ctx),
		Device:    requestcontext.Device(ctx),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to emit compliance audit event",
			"declaration_id", decl.ID,
			"action", action,
			"error", err,
		)
	}
}

func (s *Service) emitOps(ctx context.Context, action audit.AuditEvent, subject, decision, reason string) {
	if s.ops == nil {
		return
	}
	err := s.ops.Append(ctx, audit.Event{
		Category:  action.Category(),
		Timestamp: s.now(),
		Subject:   subject,
		Action:    string(action),
		Decision:  decision,
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		Device:    requestcontext.Device(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record audit event", "action", action, "subject", subject, "error", err)
	}
}
