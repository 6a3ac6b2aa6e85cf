// Package worker relays audit outbox rows to the event stream.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"verdant/pkg/platform/audit/store/postgres"
)

// Outbox is the relay's view of the outbox table.
type Outbox interface {
	FetchUnpublished(ctx context.Context, limit int) ([]postgres.OutboxEntry, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Sink publishes one outbox payload, keyed by aggregate.
type Sink interface {
	Publish(ctx context.Context, key string, eventType string, payload []byte) error
}

// Worker polls the outbox and publishes entries in order. An entry is only
// marked published after the sink acknowledged it, so delivery is at-least-once.
type Worker struct {
	outbox    Outbox
	sink      Sink
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// Option configures the Worker.
type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func WithInterval(d time.Duration) Option {
	return func(w *Worker) { w.interval = d }
}

func WithBatchSize(n int) Option {
	return func(w *Worker) { w.batchSize = n }
}

func NewWorker(outbox Outbox, sink Sink, opts ...Option) *Worker {
	w := &Worker{
		outbox:    outbox,
		sink:      sink,
		logger:    slog.Default(),
		interval:  time.Second,
		batchSize: 100,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run relays until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if _, err := w.RelayOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.WarnContext(ctx, "outbox relay failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes one batch and returns how many entries were relayed.
// It stops at the first publish failure to keep per-aggregate ordering.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	entries, err := w.outbox.FetchUnpublished(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	relayed := 0
	for _, e := range entries {
		if err := w.sink.Publish(ctx, e.AggregateID, e.EventType, e.Payload); err != nil {
			return relayed, err
		}
		if err := w.outbox.MarkPublished(ctx, e.ID, w.now()); err != nil {
			return relayed, err
		}
		relayed++
	}
	return relayed, nil
}
