// Package ports defines the collaborators the declaration workflow consumes,
// so the wizard depends on neither HTTP, SQL, Redis nor Kafka directly.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"verdant/internal/declaration/models"
	id "verdant/pkg/domain"
	"verdant/pkg/platform/audit"
)

// VerificationService runs the external geo checks keyed by the geo file reference.
// Each call is one suspend point; implementations honor ctx cancellation.
type VerificationService interface {
	CheckGeometry(ctx context.Context, ref models.FileRef) (models.CheckResult, error)
	CheckSatellite(ctx context.Context, ref models.FileRef) (models.CheckResult, error)
}

// DeclarationStore persists declarations. Create and Update are atomic single-record writes.
type DeclarationStore interface {
	Create(ctx context.Context, d *models.Declaration) (id.DeclarationID, error)
	Update(ctx context.Context, declarationID id.DeclarationID, patch models.Patch) error
	ListByIDs(ctx context.Context, ids []id.DeclarationID) ([]*models.Declaration, error)
	FindByID(ctx context.Context, declarationID id.DeclarationID) (*models.Declaration, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Declaration, error)
}

// SubmitLocker guards the draft-to-declaration conversion so it happens once.
// Obtain fails with sentinel.ErrConflict while another holder owns the key.
type SubmitLocker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is a held submit lock.
type Lock interface {
	Release(ctx context.Context) error
}

// EventType names a declaration lifecycle event.
type EventType string

const (
	EventSubmitted EventType = "declaration.submitted"
	EventReviewed  EventType = "declaration.reviewed"
)

// DeclarationEvent is published after a declaration changes.
type DeclarationEvent struct {
	Type           EventType
	Declaration    *models.Declaration
	PreviousStatus models.Status
	RequestID      string
	OccurredAt     time.Time
}

// EventPublisher delivers declaration events downstream.
type EventPublisher interface {
	Publish(ctx context.Context, event DeclarationEvent) error
}

// AuditPublisher emits compliance audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}
