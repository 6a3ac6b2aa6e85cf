// Package store persists declarations in memory or PostgreSQL.
package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"verdant/internal/declaration/models"
	id "verdant/pkg/domain"
	"verdant/pkg/platform/sentinel"
)

// InMemoryStore keeps declarations in a map. Records are copied on the way
// in and out so callers never share state with the store.
type InMemoryStore struct {
	mu           sync.RWMutex
	declarations map[id.DeclarationID]*models.Declaration
	// order keeps insertion order for List.
	order []id.DeclarationID
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{declarations: make(map[id.DeclarationID]*models.Declaration)}
}

func (s *InMemoryStore) Create(_ context.Context, d *models.Declaration) (id.DeclarationID, error) {
	if d == nil {
		return id.DeclarationID{}, fmt.Errorf("declaration is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := d.Clone()
	if rec.ID.IsNil() {
		rec.ID = id.NewDeclarationID()
	}
	if _, exists := s.declarations[rec.ID]; exists {
		return id.DeclarationID{}, fmt.Errorf("declaration %s: %w", rec.ID, sentinel.ErrConflict)
	}
	s.declarations[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	return rec.ID, nil
}

func (s *InMemoryStore) Update(_ context.Context, declarationID id.DeclarationID, patch models.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.declarations[declarationID]
	if !ok {
		return fmt.Errorf("declaration %s: %w", declarationID, sentinel.ErrNotFound)
	}
	if patch.Status != nil {
		if !rec.Status.CanTransitionTo(*patch.Status) {
			return fmt.Errorf("declaration %s: %s to %s: %w", declarationID, rec.Status, *patch.Status, sentinel.ErrInvalidState)
		}
		rec.ApplyTransition(*patch.Status, patch.UpdatedAt)
	}
	if patch.Comments != nil {
		rec.Comments = *patch.Comments
	}
	if !patch.UpdatedAt.IsZero() {
		rec.UpdatedAt = patch.UpdatedAt
	}
	return nil
}

// ListByIDs returns the records that exist, in the order of ids. Unknown ids are skipped.
func (s *InMemoryStore) ListByIDs(_ context.Context, ids []id.DeclarationID) ([]*models.Declaration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Declaration, 0, len(ids))
	for _, did := range ids {
		if rec, ok := s.declarations[did]; ok {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, declarationID id.DeclarationID) (*models.Declaration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.declarations[declarationID]
	if !ok {
		return nil, fmt.Errorf("declaration %s: %w", declarationID, sentinel.ErrNotFound)
	}
	return rec.Clone(), nil
}

// List returns matching declarations newest first.
func (s *InMemoryStore) List(_ context.Context, filter models.Filter) ([]*models.Declaration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Declaration
	for _, did := range slices.Backward(s.order) {
		rec := s.declarations[did]
		if filter.Matches(rec) {
			out = append(out, rec.Clone())
		}
	}
	return paginate(out, filter.Limit, filter.Offset), nil
}

func paginate(in []*models.Declaration, limit, offset int) []*models.Declaration {
	if offset > 0 {
		if offset >= len(in) {
			return nil
		}
		in = in[offset:]
	}
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
