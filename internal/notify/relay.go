package notify

import (
	"context"
	"time"

	"github.com/Africahassucceed/celebsbridgenew/internal/model"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the part of *kafka.Writer the relay uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type outboxReader interface {
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
}

// Relay publishes pending outbox rows to Kafka and marks them processed.
type Relay struct {
	repo      outboxReader
	writer    MessageWriter
	batchSize int
	log       *zap.SugaredLogger
}

func NewRelay(repo outboxReader, w MessageWriter, batchSize int, log *zap.SugaredLogger) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{repo: repo, writer: w, batchSize: batchSize, log: log}
}

// RunOnce relays one batch and returns how many events were published.
// A failed publish leaves the row pending for the next pass.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	events, err := r.repo.PollOutbox(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, evt := range events {
		if err := r.publish(ctx, evt); err != nil {
			r.log.Errorw("publish event", "outbox_id", evt.ID, "error", err)
			continue
		}
		if err := r.repo.MarkOutboxProcessed(ctx, evt.ID); err != nil {
			r.log.Errorw("mark processed", "outbox_id", evt.ID, "error", err)
			continue
		}
		r.log.Infow("event sent", "outbox_id", evt.ID, "type", evt.EventType)
		sent++
	}
	return sent, nil
}

// Run polls every interval until ctx is done.
func (r *Relay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.log.Errorw("poll outbox", "error", err)
			}
		}
	}
}

func (r *Relay) publish(ctx context.Context, evt model.OutboxEvent) error {
	msg := kafka.Message{
		// keyed by request so one request's events stay ordered within a partition
		Key:   []byte(evt.AggregateID),
		Value: []byte(evt.Payload),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.EventType)},
			{Key: "aggregate", Value: []byte(evt.Aggregate)},
		},
		Time: time.Now(),
	}
	return r.writer.WriteMessages(ctx, msg)
}
