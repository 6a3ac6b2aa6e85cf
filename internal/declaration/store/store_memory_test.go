package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verdant/internal/declaration/models"
	id "verdant/pkg/domain"
	"verdant/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	d := testDeclaration(models.StatusPending)
	declarationID, err := s.store.Create(s.ctx, d)
	s.Require().NoError(err)
	s.False(declarationID.IsNil())

	got, err := s.store.FindByID(s.ctx, declarationID)
	s.Require().NoError(err)
	s.Equal(declarationID, got.ID)
	s.Equal(models.StatusPending, got.Status)

	s.Run("records are copied", func() {
		got.Items[0].ProductName = "mutated"
		again, err := s.store.FindByID(s.ctx, declarationID)
		s.Require().NoError(err)
		s.Equal("Palm Oil", again.Items[0].ProductName)
	})

	s.Run("duplicate id conflicts", func() {
		dup := testDeclaration(models.StatusPending)
		dup.ID = declarationID
		_, err := s.store.Create(s.ctx, dup)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("unknown id", func() {
		_, err := s.store.FindByID(s.ctx, id.NewDeclarationID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestUpdate() {
	pendingID, err := s.store.Create(s.ctx, testDeclaration(models.StatusPending))
	s.Require().NoError(err)
	draftID, err := s.store.Create(s.ctx, testDeclaration(models.StatusDraft))
	s.Require().NoError(err)
	later := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	s.Run("draft never becomes pending", func() {
		next := models.StatusPending
		err := s.store.Update(s.ctx, draftID, models.Patch{Status: &next, UpdatedAt: later})
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("pending to approved", func() {
		next := models.StatusApproved
		comment := "checked"
		err := s.store.Update(s.ctx, pendingID, models.Patch{Status: &next, Comments: &comment, UpdatedAt: later})
		s.Require().NoError(err)

		got, err := s.store.FindByID(s.ctx, pendingID)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, got.Status)
		s.Equal("checked", got.Comments)
		s.Equal(later, got.UpdatedAt)
	})

	s.Run("draft to rejected clears eligibility", func() {
		next := models.StatusRejected
		s.Require().NoError(s.store.Update(s.ctx, draftID, models.Patch{Status: &next, UpdatedAt: later}))
		got, err := s.store.FindByID(s.ctx, draftID)
		s.Require().NoError(err)
		s.False(got.FilingEligible)
	})

	s.Run("unknown id", func() {
		err := s.store.Update(s.ctx, id.NewDeclarationID(), models.Patch{})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestListByIDs() {
	a, _ := s.store.Create(s.ctx, testDeclaration(models.StatusApproved))
	b, _ := s.store.Create(s.ctx, testDeclaration(models.StatusApproved))

	got, err := s.store.ListByIDs(s.ctx, []id.DeclarationID{b, id.NewDeclarationID(), a})
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(b, got[0].ID)
	s.Equal(a, got[1].ID)
}

func (s *InMemoryStoreSuite) TestList() {
	for _, st := range []models.Status{models.StatusPending, models.StatusDraft, models.StatusPending} {
		_, err := s.store.Create(s.ctx, testDeclaration(st))
		s.Require().NoError(err)
	}

	s.Run("filters by status", func() {
		st := models.StatusPending
		got, err := s.store.List(s.ctx, models.Filter{Status: &st})
		s.Require().NoError(err)
		s.Len(got, 2)
	})

	s.Run("paginates newest first", func() {
		all, err := s.store.List(s.ctx, models.Filter{})
		s.Require().NoError(err)
		s.Require().Len(all, 3)

		page, err := s.store.List(s.ctx, models.Filter{Limit: 1, Offset: 1})
		s.Require().NoError(err)
		s.Require().Len(page, 1)
		s.Equal(all[1].ID, page[0].ID)
	})

	s.Run("offset past end", func() {
		got, err := s.store.List(s.ctx, models.Filter{Offset: 10})
		s.Require().NoError(err)
		s.Empty(got)
	})
}
