package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdant/pkg/platform/audit/store/postgres"
)

type fakeOutbox struct {
	entries   []postgres.OutboxEntry
	published []uuid.UUID
}

func (f *fakeOutbox) FetchUnpublished(_ context.Context, limit int) ([]postgres.OutboxEntry, error) {
	var out []postgres.OutboxEntry
	for _, e := range f.entries {
		done := false
		for _, p := range f.published {
			if p == e.ID {
				done = true
			}
		}
		if !done && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, id uuid.UUID, _ time.Time) error {
	f.published = append(f.published, id)
	return nil
}

type fakeSink struct {
	keys   []string
	failOn string
}

func (f *fakeSink) Publish(_ context.Context, key, _ string, _ []byte) error {
	if key == f.failOn {
		return errors.New("broker unavailable")
	}
	f.keys = append(f.keys, key)
	return nil
}

func TestWorker_RelayOnce(t *testing.T) {
	entries := []postgres.OutboxEntry{
		{ID: uuid.New(), AggregateID: "a", EventType: "declaration_submitted"},
		{ID: uuid.New(), AggregateID: "b", EventType: "declaration_submitted"},
		{ID: uuid.New(), AggregateID: "c", EventType: "declaration_approved"},
	}

	t.Run("publishes and marks every entry", func(t *testing.T) {
		outbox := &fakeOutbox{entries: entries}
		sink := &fakeSink{}
		w := NewWorker(outbox, sink)

		n, err := w.RelayOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, []string{"a", "b", "c"}, sink.keys)
		assert.Len(t, outbox.published, 3)
	})

	t.Run("stops at first failure and leaves the rest unpublished", func(t *testing.T) {
		outbox := &fakeOutbox{entries: entries}
		sink := &fakeSink{failOn: "b"}
		w := NewWorker(outbox, sink, WithBatchSize(10))

		n, err := w.RelayOnce(context.Background())
		require.Error(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []uuid.UUID{entries[0].ID}, outbox.published)
	})
}
