package proposal

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrParticipantMissing = errors.New("proposal references unknown participant")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert stores an awaiting-response proposal. The insert carries a subquery
// guard on the participant id: a proposal for a participant absent from the
// store must never be persisted, and the caller decides whether that is fatal.
func (r *Repository) Upsert(ctx context.Context, p Proposal) error {
	change, err := MarshalChange(p.Change)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO proposal (id, participant_id, arranger_id, change, justification, created_at, modified_at)
		SELECT $1, $2, $3, $4, $5, $6, now()
		WHERE EXISTS (SELECT 1 FROM participant WHERE id = $2)
		ON CONFLICT (id) DO UPDATE SET
			participant_id = EXCLUDED.participant_id,
			arranger_id = EXCLUDED.arranger_id,
			change = EXCLUDED.change,
			justification = EXCLUDED.justification,
			modified_at = now()
	`, p.ID, p.ParticipantID, p.ArrangerID, change, p.Justification, p.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrParticipantMissing
	}
	return nil
}

// Delete removes a resolved proposal. Deleting an absent id is a no-op.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM proposal WHERE id = $1`, id)
	return err
}

func (r *Repository) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]Proposal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, participant_id, arranger_id, change, justification, created_at
		FROM proposal
		WHERE participant_id = $1
		ORDER BY created_at ASC
	`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Proposal
	for rows.Next() {
		var p Proposal
		var change []byte
		if err := rows.Scan(&p.ID, &p.ParticipantID, &p.ArrangerID, &change, &p.Justification, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Change, err = UnmarshalChange(change)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}
