// Package adapters binds the declaration ports to Kafka, Redis and the audit
// publisher.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"verdant/internal/declaration/models"
	"verdant/internal/declaration/ports"
)

// RecordProducer is the slice of the Kafka producer the adapters use.
type RecordProducer interface {
	ProduceSync(ctx context.Context, records ...*kgo.Record) kgo.ProduceResults
	Topic() string
}

// declarationEventPayload is the wire format of a declaration event.
type declarationEventPayload struct {
	Type           ports.EventType     `json:"type"`
	DeclarationID  string              `json:"declaration_id"`
	DraftID        string              `json:"draft_id"`
	Status         models.Status       `json:"status"`
	PreviousStatus models.Status       `json:"previous_status,omitempty"`
	SourceType     models.SourceType   `json:"source_type"`
	Direction      models.Direction    `json:"direction"`
	RiskLevel      models.RiskLevel    `json:"risk_level"`
	FilingEligible bool                `json:"filing_eligible"`
	Declaration    *models.Declaration `json:"declaration"`
	RequestID      string              `json:"request_id,omitempty"`
	OccurredAt     time.Time           `json:"occurred_at"`
}

// KafkaEventPublisher implements ports.EventPublisher. Records are keyed by
// declaration ID so every event of one declaration lands on one partition.
type KafkaEventPublisher struct {
	producer RecordProducer
}

// NewKafkaEventPublisher creates a publisher over producer.
func NewKafkaEventPublisher(producer RecordProducer) (*KafkaEventPublisher, error) {
	if producer == nil {
		return nil, errors.New("kafka producer is required")
	}
	return &KafkaEventPublisher{producer: producer}, nil
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, event ports.DeclarationEvent) error {
	if event.Declaration == nil {
		return errors.New("declaration event requires a declaration")
	}
	d := event.Declaration
	value, err := json.Marshal(declarationEventPayload{
		Type:           event.Type,
		DeclarationID:  d.ID.String(),
		DraftID:        d.DraftID.String(),
		Status:         d.Status,
		PreviousStatus: event.PreviousStatus,
		SourceType:     d.SourceType,
		Direction:      d.Type,
		RiskLevel:      d.RiskLevel,
		FilingEligible: d.FilingEligible,
		Declaration:    d,
		RequestID:      event.RequestID,
		OccurredAt:     event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("marshal declaration event: %w", err)
	}
	return p.produce(ctx, d.ID.String(), string(event.Type), value)
}

func (p *KafkaEventPublisher) produce(ctx context.Context, key, eventType string, value []byte) error {
	record := &kgo.Record{
		Topic: p.producer.Topic(),
		Key:   []byte(key),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce %s: %w", eventType, err)
	}
	return nil
}

// KafkaAuditSink relays audit outbox payloads to the same topic.
type KafkaAuditSink struct {
	publisher *KafkaEventPublisher
}

// NewKafkaAuditSink creates an outbox relay sink over producer.
func NewKafkaAuditSink(producer RecordProducer) (*KafkaAuditSink, error) {
	p, err := NewKafkaEventPublisher(producer)
	if err != nil {
		return nil, err
	}
	return &KafkaAuditSink{publisher: p}, nil
}

func (s *KafkaAuditSink) Publish(ctx context.Context, key, eventType string, payload []byte) error {
	return s.publisher.produce(ctx, key, "audit."+eventType, payload)
}
