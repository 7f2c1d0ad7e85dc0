package outbox

import (
	"context"
	"time"

	"caseflow_backend/platform/config"
	"caseflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
)

const (
	dispatchInterval = 2 * time.Second
	dispatchBatch    = 50
	maxAttempts      = 10

	pruneInterval      = time.Hour
	publishedRetention = 24 * time.Hour
)

// Publisher delivers one outbox record to the broker.
type Publisher interface {
	Publish(ctx context.Context, rec Record) error
}

// store is the outbox repository surface the dispatcher needs.
type store interface {
	ClaimPending(ctx context.Context, limit int) ([]Record, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
	MarkPending(ctx context.Context, id uuid.UUID, lastError *string) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Dispatcher drains pending outbox records onto the event fabric.
type Dispatcher struct {
	repo      store
	publisher Publisher
	log       *logger.Logger
}

func NewDispatcher(cfg config.KafkaConfig, pool *pgxpool.Pool, log *logger.Logger) *Dispatcher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.GetKafkaBrokers()...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}

	return &Dispatcher{
		repo:      New(pool),
		publisher: &kafkaPublisher{writer: writer},
		log:       log,
	}
}

// NewDispatcherWithPublisher wires a custom store and publisher, used in tests.
func NewDispatcherWithPublisher(repo store, publisher Publisher, log *logger.Logger) *Dispatcher {
	return &Dispatcher{repo: repo, publisher: publisher, log: log}
}

func (d *Dispatcher) Close() error {
	if p, ok := d.publisher.(*kafkaPublisher); ok {
		return p.writer.Close()
	}
	return nil
}

func (d *Dispatcher) Run(ctx context.Context) {
	if d == nil || d.repo == nil || d.publisher == nil {
		return
	}

	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()

	pruneTicker := time.NewTicker(pruneInterval)
	defer pruneTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pruneTicker.C:
			d.prune(ctx)
		case <-ticker.C:
			d.Dispatch(ctx)
		}
	}
}

// prune drops published records past retention. They only exist for
// debugging; the broker is the durable copy once publish succeeds.
func (d *Dispatcher) prune(ctx context.Context) {
	n, err := d.repo.DeletePublishedBefore(ctx, time.Now().Add(-publishedRetention))
	if err != nil {
		d.log.Warn("outbox prune failed", "error", err)
		return
	}
	if n > 0 {
		d.log.Debug("pruned published outbox records", "count", n)
	}
}

// Dispatch claims one batch of pending records and publishes them. Failed
// publishes go back to pending until the attempt cap, then to failed.
func (d *Dispatcher) Dispatch(ctx context.Context) {
	records, err := d.repo.ClaimPending(ctx, dispatchBatch)
	if err != nil {
		d.log.Warn("outbox claim failed", "error", err)
		return
	}

	for _, rec := range records {
		if err := d.publisher.Publish(ctx, rec); err != nil {
			msg := err.Error()
			if rec.Attempts >= maxAttempts {
				d.log.Error("outbox record failed permanently", "id", rec.ID, "topic", rec.Topic, "error", err)
				_ = d.repo.MarkFailed(ctx, rec.ID, msg)
			} else {
				d.log.Warn("outbox publish failed", "id", rec.ID, "topic", rec.Topic, "attempt", rec.Attempts, "error", err)
				_ = d.repo.MarkPending(ctx, rec.ID, &msg)
			}
			continue
		}

		_ = d.repo.MarkPublished(ctx, rec.ID)
	}
}

type kafkaPublisher struct {
	writer *kafka.Writer
}

func (p *kafkaPublisher) Publish(ctx context.Context, rec Record) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: rec.Topic,
		Key:   []byte(rec.Key.String()),
		Value: rec.Payload, // nil payload publishes a tombstone
	})
}
