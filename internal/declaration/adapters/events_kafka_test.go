package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"verdant/internal/declaration/models"
	"verdant/internal/declaration/ports"
	id "verdant/pkg/domain"
)

// fakeProducer records produced records in memory.
type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, records ...*kgo.Record) kgo.ProduceResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make(kgo.ProduceResults, 0, len(records))
	for _, r := range records {
		if f.err == nil {
			f.records = append(f.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func (f *fakeProducer) Topic() string { return "declaration-events" }

func TestKafkaEventPublisher(t *testing.T) {
	decl := &models.Declaration{
		ID:             id.NewDeclarationID(),
		DraftID:        id.NewDraftID(),
		Type:           models.DirectionOutbound,
		SourceType:     models.SourceFresh,
		Status:         models.StatusPending,
		RiskLevel:      models.RiskLow,
		FilingEligible: true,
	}

	t.Run("keys by declaration and tags the event type", func(t *testing.T) {
		producer := &fakeProducer{}
		pub, err := NewKafkaEventPublisher(producer)
		require.NoError(t, err)

		err = pub.Publish(context.Background(), ports.DeclarationEvent{
			Type:        ports.EventSubmitted,
			Declaration: decl,
			RequestID:   "req-1",
			OccurredAt:  time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		require.Len(t, producer.records, 1)

		rec := producer.records[0]
		assert.Equal(t, "declaration-events", rec.Topic)
		assert.Equal(t, decl.ID.String(), string(rec.Key))
		assert.Equal(t, "event_type", rec.Headers[0].Key)
		assert.Equal(t, "declaration.submitted", string(rec.Headers[0].Value))

		var payload map[string]any
		require.NoError(t, json.Unmarshal(rec.Value, &payload))
		assert.Equal(t, "pending", payload["status"])
		assert.Equal(t, "req-1", payload["request_id"])
		assert.Equal(t, true, payload["filing_eligible"])
	})

	t.Run("produce failure is returned", func(t *testing.T) {
		pub, err := NewKafkaEventPublisher(&fakeProducer{err: errors.New("broker down")})
		require.NoError(t, err)

		err = pub.Publish(context.Background(), ports.DeclarationEvent{Type: ports.EventSubmitted, Declaration: decl})
		assert.ErrorContains(t, err, "broker down")
	})

	t.Run("requires a declaration", func(t *testing.T) {
		pub, err := NewKafkaEventPublisher(&fakeProducer{})
		require.NoError(t, err)
		assert.Error(t, pub.Publish(context.Background(), ports.DeclarationEvent{Type: ports.EventReviewed}))
	})

	t.Run("requires a producer", func(t *testing.T) {
		_, err := NewKafkaEventPublisher(nil)
		assert.Error(t, err)
	})
}

func TestKafkaAuditSink(t *testing.T) {
	producer := &fakeProducer{}
	sink, err := NewKafkaAuditSink(producer)
	require.NoError(t, err)

	require.NoError(t, sink.Publish(context.Background(), "decl-1", "declaration_submitted", []byte(`{"id":"x"}`)))
	require.Len(t, producer.records, 1)
	assert.Equal(t, "audit.declaration_submitted", string(producer.records[0].Headers[0].Value))
	assert.Equal(t, "decl-1", string(producer.records[0].Key))
}
