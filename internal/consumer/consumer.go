// Package consumer binds one Kafka topic per handler and reconciles incoming
// records against the local read model. Every reconcile is an idempotent
// upsert or delete keyed by the record key, so the at-least-once delivery of
// the broker converges to the correct state.
package consumer

import (
	"context"
	"time"

	"caseflow_backend/platform/apperr"
	"caseflow_backend/platform/config"
	"caseflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Topics consumed from the upstream domain services.
const (
	TopicParticipant     = "participant-v1"
	TopicArrangerMessage = "arranger-message-v1"
	TopicPerson          = "person-v1"
	TopicOrganization    = "organization-v1"
	TopicNavUnit         = "nav-unit-v1"
	TopicCaseworker      = "caseworker-v1"
	TopicOffering        = "program-offering-v1"
)

const (
	maxAttempts = 5
	baseDelay   = 2 * time.Second
)

// Handler reconciles one record. A nil value is a tombstone; each handler
// decides whether its stream accepts tombstones at all.
type Handler interface {
	Topic() string
	Handle(ctx context.Context, key uuid.UUID, value []byte) error
}

// Consumer runs one topic's poll loop with a dedicated consumer group.
type Consumer struct {
	reader  *kafka.Reader
	handler Handler
	log     *logger.Logger
}

func New(cfg config.KafkaConfig, handler Handler, log *logger.Logger) *Consumer {
	pollTimeout := cfg.GetKafkaPollTimeout()
	if pollTimeout <= 0 {
		pollTimeout = time.Second
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.GetKafkaBrokers(),
		GroupID:  cfg.GetKafkaGroupIDPrefix() + "." + handler.Topic(),
		Topic:    handler.Topic(),
		MinBytes: 1,
		MaxBytes: 10 << 20,
		MaxWait:  pollTimeout,
	})

	return &Consumer{
		reader:  reader,
		handler: handler,
		log:     log.WithTopic(handler.Topic()),
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Run fetches and processes records until the context is cancelled. Records
// are processed sequentially, preserving per-partition order, and the offset
// is committed only after the record has been applied.
//
// A non-nil return means the consumer hit an unrecoverable record: retrying
// a malformed payload always fails the same way, so the loop halts and the
// platform restart (with alerting) takes over instead of spinning.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.ConsumerError(c.handler.Topic(), string(msg.Key), err)
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// process applies one record, retrying transient infrastructure failures
// with quadratic backoff before giving up. Anything non-transient is
// returned immediately: reprocessing a bad payload cannot succeed.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	key, err := uuid.Parse(string(msg.Key))
	if err != nil {
		return apperr.Wrap(apperr.KindBadRequest, "record key is not a UUID", err)
	}

	value := msg.Value
	if len(value) == 0 {
		value = nil
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := c.handler.Handle(ctx, key, value)
		if err == nil {
			return nil
		}
		if !apperr.IsTransient(err) {
			return err
		}

		lastErr = err
		c.log.Warn("transient processing failure, retrying",
			"key", key, "attempt", attempt, "error", err)

		delay := time.Duration(attempt*attempt) * baseDelay
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}
