package assessment

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Upsert(ctx context.Context, a Assessment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO assessment (id, participant_id, arranger_id, type, justification, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			participant_id = EXCLUDED.participant_id,
			arranger_id = EXCLUDED.arranger_id,
			type = EXCLUDED.type,
			justification = EXCLUDED.justification
	`, a.ID, a.ParticipantID, a.ArrangerID, string(a.Type), a.Justification)
	return err
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM assessment WHERE id = $1`, id)
	return err
}

func (r *Repository) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]Assessment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, participant_id, arranger_id, type, justification, created_at
		FROM assessment
		WHERE participant_id = $1
		ORDER BY created_at ASC
	`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Assessment
	for rows.Next() {
		var a Assessment
		var assessmentType string
		if err := rows.Scan(&a.ID, &a.ParticipantID, &a.ArrangerID, &assessmentType, &a.Justification, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Type = Type(assessmentType)
		results = append(results, a)
	}
	return results, rows.Err()
}
