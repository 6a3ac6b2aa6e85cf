package wizard

import (
	"context"
	"errors"
	"fmt"

	"verdant/internal/declaration/models"
	"verdant/internal/declaration/ports"
	"verdant/internal/declaration/status"
	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
	"verdant/pkg/platform/audit"
	"verdant/pkg/platform/sentinel"
	"verdant/pkg/requestcontext"
)

// ReviewDecision is the verdict of a downstream reviewer.
type ReviewDecision string

const (
	ReviewApprove ReviewDecision = "approve"
	ReviewReject  ReviewDecision = "reject"
)

// Status returns the declaration status the decision leads to.
func (d ReviewDecision) Status() (models.Status, error) {
	switch d {
	case ReviewApprove:
		return models.StatusApproved, nil
	case ReviewReject:
		return models.StatusRejected, nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown review decision %q", d)
}

// ReviewRequest carries a review.
type ReviewRequest struct {
	Decision ReviewDecision
	Comments *string
	ActorID  string
}

// Review applies an approve or reject transition to a persisted declaration.
func (s *Service) Review(ctx context.Context, declarationID id.DeclarationID, req ReviewRequest) (*models.Declaration, error) {
	next, err := req.Decision.Status()
	if err != nil {
		return nil, err
	}

	current, err := s.FindDeclaration(ctx, declarationID)
	if err != nil {
		return nil, err
	}
	if err := current.CanTransitionTo(next); err != nil {
		return nil, err
	}
	if next == models.StatusApproved {
		if err := status.Recheck(current); err != nil {
			s.logger.WarnContext(ctx, "declaration status contradicts its verification outcome",
				"declaration_id", declarationID,
				"status", current.Status,
				"error", err,
			)
			return nil, err
		}
	}

	now := requestcontext.Now(ctx)
	err = s.store.Update(ctx, declarationID, models.Patch{Status: &next, Comments: req.Comments, UpdatedAt: now})
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrInvalidState), errors.Is(err, sentinel.ErrConflict):
		return nil, dErrors.Wrap(err, dErrors.CodeConflict, "declaration changed during review")
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Newf(dErrors.CodeNotFound, "declaration %s not found", declarationID)
	default:
		return nil, fmt.Errorf("updating declaration: %w", err)
	}

	updated, err := s.FindDeclaration(ctx, declarationID)
	if err != nil {
		return nil, err
	}

	action := audit.EventDeclarationApproved
	if next == models.StatusRejected {
		action = audit.EventDeclarationRejected
	}
	s.metrics.IncReview(string(next))
	s.logger.InfoContext(ctx, "declaration reviewed",
		"declaration_id", declarationID,
		"from", current.Status,
		"to", next,
		"request_id", requestcontext.RequestID(ctx),
	)
	reason := ""
	if req.Comments != nil {
		reason = *req.Comments
	}
	s.emitComplianceAs(ctx, action, updated, reason, req.ActorID)
	s.publish(ctx, ports.DeclarationEvent{
		Type:           ports.EventReviewed,
		Declaration:    updated.Clone(),
		PreviousStatus: current.Status,
		RequestID:      requestcontext.RequestID(ctx),
		OccurredAt:     now,
	})
	return updated, nil
}

// FindDeclaration loads one declaration.
func (s *Service) FindDeclaration(ctx context.Context, declarationID id.DeclarationID) (*models.Declaration, error) {
	d, err := s.store.FindByID(ctx, declarationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "declaration %s not found", declarationID)
		}
		return nil, fmt.Errorf("loading declaration: %w", err)
	}
	return d, nil
}

// ListDeclarations returns declarations matching filter, newest first.
func (s *Service) ListDeclarations(ctx context.Context, filter models.Filter) ([]*models.Declaration, error) {
	out, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing declarations: %w", err)
	}
	return out, nil
}
