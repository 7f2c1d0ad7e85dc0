// Package outbox implements the transactional outbox: locally-originated
// events are inserted in the same transaction as the write that caused them,
// and a dispatcher publishes them to Kafka afterwards. Delivery is therefore
// at-least-once; consumers downstream are expected to be idempotent.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusClaimed   Status = "claimed"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

var errNotConfigured = errors.New("outbox repository not configured")

type Record struct {
	ID        uuid.UUID
	Topic     string
	Key       uuid.UUID
	Payload   json.RawMessage
	Status    Status
	Attempts  int
	CreatedAt time.Time
}

type InsertParams struct {
	Topic   string
	Key     uuid.UUID
	Payload any // nil produces a tombstone record
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertTx writes a pending record inside the caller's transaction, so the
// event commits atomically with the local write that triggered it.
func (r *Repository) InsertTx(ctx context.Context, tx pgx.Tx, p InsertParams) (uuid.UUID, error) {
	if p.Topic == "" {
		return uuid.Nil, fmt.Errorf("topic is required")
	}
	if p.Key == uuid.Nil {
		return uuid.Nil, fmt.Errorf("key is required")
	}

	var payloadBytes []byte
	if p.Payload != nil {
		b, err := json.Marshal(p.Payload)
		if err != nil {
			return uuid.Nil, fmt.Errorf("marshal payload: %w", err)
		}
		payloadBytes = b
	}

	id := uuid.New()
	_, err := tx.Exec(ctx,
		`INSERT INTO event_outbox (id, topic, key, payload, status)
		 VALUES ($1, $2, $3, $4, 'pending')`,
		id, p.Topic, p.Key, payloadBytes,
	)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Insert writes a pending record in its own transaction, for callers without
// a surrounding local write.
func (r *Repository) Insert(ctx context.Context, p InsertParams) (uuid.UUID, error) {
	if r == nil || r.pool == nil {
		return uuid.Nil, errNotConfigured
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return uuid.Nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := r.InsertTx(ctx, tx, p)
	if err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// ClaimPending marks up to limit pending records as claimed and returns
// them, oldest first. Concurrent dispatchers skip each other's claims.
func (r *Repository) ClaimPending(ctx context.Context, limit int) ([]Record, error) {
	if r == nil || r.pool == nil {
		return nil, errNotConfigured
	}
	if limit < 1 {
		limit = 50
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `WITH cte AS (
		SELECT id
		FROM event_outbox
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	)
	UPDATE event_outbox o
	SET status = 'claimed', attempts = attempts + 1, updated_at = now()
	FROM cte
	WHERE o.id = cte.id
	RETURNING o.id, o.topic, o.key, o.payload, o.status, o.attempts, o.created_at`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Record
	for rows.Next() {
		var rec Record
		var status string
		if err := rows.Scan(&rec.ID, &rec.Topic, &rec.Key, &rec.Payload, &status, &rec.Attempts, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Status = Status(status)
		results = append(results, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Repository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if r == nil || r.pool == nil {
		return errNotConfigured
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE event_outbox
		 SET status = 'published', last_error = NULL, updated_at = now()
		 WHERE id = $1`,
		id,
	)
	return err
}

// MarkPending returns a claimed record to the pending state for a retry.
func (r *Repository) MarkPending(ctx context.Context, id uuid.UUID, lastError *string) error {
	if r == nil || r.pool == nil {
		return errNotConfigured
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE event_outbox
		 SET status = 'pending', last_error = $2, updated_at = now()
		 WHERE id = $1`,
		id, lastError,
	)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	if r == nil || r.pool == nil {
		return errNotConfigured
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE event_outbox
		 SET status = 'failed', last_error = $2, updated_at = now()
		 WHERE id = $1`,
		id, lastError,
	)
	return err
}

// DeletePublishedBefore prunes delivered records older than the cutoff.
func (r *Repository) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errNotConfigured
	}
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM event_outbox WHERE status = 'published' AND updated_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
