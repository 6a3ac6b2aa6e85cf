package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance.
	// These require tamper-proof storage and long retention.
	// Examples: declaration submitted, approved or rejected.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational visibility.
	// Examples: draft opened, draft cancelled, verification errors.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Subject is the declaration or draft the event is about.
	Subject  string
	Action   string
	Decision string
	Reason   string
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string
	// ActorID tracks who performed a review, when known.
	ActorID  string
	ClientIP string
	Device   string
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

type AuditEvent string

const (
	// Declaration lifecycle
	EventDeclarationSubmitted AuditEvent = "declaration_submitted"
	EventDeclarationApproved  AuditEvent = "declaration_approved"
	EventDeclarationRejected  AuditEvent = "declaration_rejected"

	// Draft lifecycle
	EventDraftOpened    AuditEvent = "draft_opened"
	EventDraftCancelled AuditEvent = "draft_cancelled"
	EventDraftExpired   AuditEvent = "draft_expired"

	// Verification
	EventVerificationSettled AuditEvent = "verification_settled"
	EventVerificationFailed  AuditEvent = "verification_failed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDeclarationSubmitted: CategoryCompliance,
	EventDeclarationApproved:  CategoryCompliance,
	EventDeclarationRejected:  CategoryCompliance,
	EventVerificationSettled:  CategoryCompliance,

	EventDraftOpened:        CategoryOperations,
	EventDraftCancelled:     CategoryOperations,
	EventDraftExpired:       CategoryOperations,
	EventVerificationFailed: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// ComplianceEvent captures regulatory-significant actions requiring guaranteed persistence.
// Use with the compliance publisher for fail-closed semantics.
type ComplianceEvent struct {
	Timestamp time.Time // set automatically if zero
	Subject   string    // declaration ID (required)
	Action    string    // e.g. "declaration_submitted" (required)
	Decision  string    // resulting status, e.g. "pending", "draft"
	Reason    string    // verification outcome or review note
	RequestID string
	ActorID   string
	ClientIP  string
	Device    string
}

// Category returns CategoryCompliance (always).
func (e ComplianceEvent) Category() EventCategory { return CategoryCompliance }

// ToEvent converts to the storage Event type.
func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:  CategoryCompliance,
		Timestamp: e.Timestamp,
		Subject:   e.Subject,
		Action:    e.Action,
		Decision:  e.Decision,
		Reason:    e.Reason,
		RequestID: e.RequestID,
		ActorID:   e.ActorID,
		ClientIP:  e.ClientIP,
		Device:    e.Device,
	}
}
