package repository

import (
	"context"
	"errors"
	"time"

	"caseflow_backend/internal/outbox"
	"caseflow_backend/internal/participant"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("participant not found")

// StatusTopic carries locally-originated status changes back onto the event
// fabric for downstream consumers.
const StatusTopic = "participant-status-v1"

// Outbox appends an outbound event inside the repository's transaction.
type Outbox interface {
	InsertTx(ctx context.Context, tx pgx.Tx, p outbox.InsertParams) (uuid.UUID, error)
}

// statusEvent is the outbox payload for a status transition. It mirrors the
// status shape of the upstream participant events.
type statusEvent struct {
	ParticipantID uuid.UUID `json:"participantId"`
	StatusID      uuid.UUID `json:"statusId"`
	Type          string    `json:"type"`
	ReasonType    *string   `json:"reasonType,omitempty"`
	ReasonText    *string   `json:"reasonText,omitempty"`
	ValidFrom     time.Time `json:"validFrom"`
	CreatedAt     time.Time `json:"createdAt"`
}

const participantColumns = `p.id, p.person_id, p.offering_id, p.start_date, p.end_date,
	p.percentage, p.days_per_week, p.background, p.modified_by, p.modified_at, p.created_at,
	s.id, s.type, s.reason_type, s.reason_text, s.valid_from, s.valid_to, s.created_at`

type Repository struct {
	pool   *pgxpool.Pool
	outbox Outbox
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SetOutbox enables publishing of locally-originated changes. Upstream-sourced
// snapshot applications are never republished; only transitions and deletes
// that originate in this service go out.
func (r *Repository) SetOutbox(o Outbox) {
	r.outbox = o
}

// Candidate pairs a participant with the offering terms that drive status
// derivation, as loaded by the batch candidate queries.
type Candidate struct {
	Participant participant.Participant
	Terms       participant.OfferingTerms
}

// UpsertSnapshot applies a full participant snapshot from an upstream event.
// The write is idempotent: the participant row is replaced column-for-column
// keyed by id, and the status entry is keyed by the status id the event
// carries, so reapplying the same event leaves the store unchanged.
func (r *Repository) UpsertSnapshot(ctx context.Context, p participant.Participant) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO participant (id, person_id, offering_id, start_date, end_date,
			percentage, days_per_week, background, modified_by, modified_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), $10)
		ON CONFLICT (id) DO UPDATE SET
			person_id = EXCLUDED.person_id,
			offering_id = EXCLUDED.offering_id,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			percentage = EXCLUDED.percentage,
			days_per_week = EXCLUDED.days_per_week,
			background = EXCLUDED.background,
			modified_by = EXCLUDED.modified_by,
			modified_at = now()
	`, p.ID, p.PersonID, p.OfferingID, p.StartDate, p.EndDate,
		p.Percentage, p.DaysPerWeek, p.Background, p.ModifiedBy, p.CreatedAt)
	if err != nil {
		return err
	}

	if err := applyStatus(ctx, tx, p.Status); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// InsertStatus records a status transition: the previous current entry is
// closed and the new one opened, in one transaction.
func (r *Repository) InsertStatus(ctx context.Context, s participant.Status) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := applyStatus(ctx, tx, s); err != nil {
		return err
	}

	if r.outbox != nil {
		var reasonType, reasonText *string
		if s.Reason != nil {
			rt := string(s.Reason.Type)
			reasonType = &rt
			reasonText = s.Reason.Description
		}
		_, err = r.outbox.InsertTx(ctx, tx, outbox.InsertParams{
			Topic: StatusTopic,
			Key:   s.ParticipantID,
			Payload: statusEvent{
				ParticipantID: s.ParticipantID,
				StatusID:      s.ID,
				Type:          string(s.Type),
				ReasonType:    reasonType,
				ReasonText:    reasonText,
				ValidFrom:     s.ValidFrom,
				CreatedAt:     s.CreatedAt,
			},
		})
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// applyStatus closes any other open status entry and upserts the given one
// as current. Keyed by status id so replayed events do not duplicate history.
func applyStatus(ctx context.Context, tx pgx.Tx, s participant.Status) error {
	_, err := tx.Exec(ctx, `
		UPDATE participant_status
		SET valid_to = $2
		WHERE participant_id = $1 AND valid_to IS NULL AND id <> $3
	`, s.ParticipantID, s.ValidFrom, s.ID)
	if err != nil {
		return err
	}

	var reasonType, reasonText *string
	if s.Reason != nil {
		rt := string(s.Reason.Type)
		reasonType = &rt
		reasonText = s.Reason.Description
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO participant_status (id, participant_id, type, reason_type, reason_text, valid_from, valid_to, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULL, $7)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			reason_type = EXCLUDED.reason_type,
			reason_text = EXCLUDED.reason_text,
			valid_from = EXCLUDED.valid_from,
			valid_to = NULL
	`, s.ID, s.ParticipantID, string(s.Type), reasonType, reasonText, s.ValidFrom, s.CreatedAt)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (participant.Participant, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+participantColumns+`
		FROM participant p
		JOIN participant_status s ON s.participant_id = p.id AND s.valid_to IS NULL
		WHERE p.id = $1
	`, id)

	p, err := scanParticipant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return participant.Participant{}, ErrNotFound
	}
	return p, err
}

func (r *Repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM participant WHERE id = $1)`, id,
	).Scan(&exists)
	return exists, err
}

// Delete removes the participant and, via cascade, its status history,
// proposals and assessments. Deleting an absent id is a no-op. When the
// outbox is wired, a tombstone for the participant is co-committed so
// downstream consumers drop their copies too.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM participant WHERE id = $1`, id)
	if err != nil {
		return err
	}

	if r.outbox != nil && tag.RowsAffected() > 0 {
		if _, err := r.outbox.InsertTx(ctx, tx, outbox.InsertParams{
			Topic: StatusTopic,
			Key:   id,
		}); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *Repository) ListByOffering(ctx context.Context, offeringID uuid.UUID) ([]participant.Participant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+participantColumns+`
		FROM participant p
		JOIN participant_status s ON s.participant_id = p.id AND s.valid_to IS NULL
		WHERE p.offering_id = $1
		ORDER BY p.created_at ASC
	`, offeringID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectParticipants(rows)
}

// StatusHistory returns all status entries for a participant, oldest first.
func (r *Repository) StatusHistory(ctx context.Context, id uuid.UUID) ([]participant.Status, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, participant_id, type, reason_type, reason_text, valid_from, valid_to, created_at
		FROM participant_status
		WHERE participant_id = $1
		ORDER BY valid_from ASC, created_at ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []participant.Status
	for rows.Next() {
		s, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

// EndCandidates returns participants due for an end-status transition: the
// offering or their own participation has ended by the given day. The filter
// is the exact complement of StartCandidates on the end-date predicates, so
// the two sets never overlap within one job run.
func (r *Repository) EndCandidates(ctx context.Context, now time.Time) ([]Candidate, error) {
	return r.queryCandidates(ctx, `
		WHERE s.type IN ('DRAFT', 'SUBMITTED_DRAFT', 'AWAITING_START', 'WAITLISTED', 'PARTICIPATING')
		  AND (o.end_date < $1::date OR p.end_date < $1::date)
	`, now)
}

// StartCandidates returns participants awaiting start whose start date has
// arrived and whose participation has not already ended.
func (r *Repository) StartCandidates(ctx context.Context, now time.Time) ([]Candidate, error) {
	return r.queryCandidates(ctx, `
		WHERE s.type = 'AWAITING_START'
		  AND p.start_date <= $1::date
		  AND (o.end_date IS NULL OR o.end_date >= $1::date)
		  AND (p.end_date IS NULL OR p.end_date >= $1::date)
	`, now)
}

func (r *Repository) queryCandidates(ctx context.Context, where string, now time.Time) ([]Candidate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+participantColumns+`, o.intake_type, o.start_date, o.end_date
		FROM participant p
		JOIN participant_status s ON s.participant_id = p.id AND s.valid_to IS NULL
		JOIN program_offering o ON o.id = p.offering_id
	`+where+`
		ORDER BY p.id ASC
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Candidate
	for rows.Next() {
		var c Candidate
		var row participantRow
		var intakeType string
		dest := append(row.dest(), &intakeType, &c.Terms.StartDate, &c.Terms.EndDate)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		c.Participant = row.toParticipant()
		c.Terms.CourseLike = intakeType == "COURSE"
		results = append(results, c)
	}
	return results, rows.Err()
}

// StaleDrafts returns draft participants not modified since the cutoff.
func (r *Repository) StaleDrafts(ctx context.Context, cutoff time.Time) ([]participant.Participant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+participantColumns+`
		FROM participant p
		JOIN participant_status s ON s.participant_id = p.id AND s.valid_to IS NULL
		WHERE s.type IN ('DRAFT', 'SUBMITTED_DRAFT')
		  AND p.modified_at <= $1
		ORDER BY p.modified_at ASC
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectParticipants(rows)
}

// DraftsByPerson returns not-yet-started draft enrollments for a person.
func (r *Repository) DraftsByPerson(ctx context.Context, personID uuid.UUID) ([]participant.Participant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+participantColumns+`
		FROM participant p
		JOIN participant_status s ON s.participant_id = p.id AND s.valid_to IS NULL
		WHERE p.person_id = $1
		  AND s.type IN ('DRAFT', 'SUBMITTED_DRAFT')
	`, personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectParticipants(rows)
}

// DuplicateCurrentStatus is the consistency-repair query: participant ids
// holding more than one open status entry.
func (r *Repository) DuplicateCurrentStatus(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT participant_id
		FROM participant_status
		WHERE valid_to IS NULL
		GROUP BY participant_id
		HAVING count(*) > 1
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CloseDuplicateStatuses keeps the newest open status entry and closes the
// rest. Returns the number of entries closed.
func (r *Repository) CloseDuplicateStatuses(ctx context.Context, participantID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE participant_status
		SET valid_to = now()
		WHERE participant_id = $1
		  AND valid_to IS NULL
		  AND id <> (
			SELECT id FROM participant_status
			WHERE participant_id = $1 AND valid_to IS NULL
			ORDER BY valid_from DESC, created_at DESC
			LIMIT 1
		  )
	`, participantID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// participantRow holds the raw scan targets for one participant row joined
// with its current status.
type participantRow struct {
	p          participant.Participant
	statusType string
	reasonType *string
	reasonText *string
}

func (r *participantRow) dest() []any {
	p := &r.p
	return []any{
		&p.ID, &p.PersonID, &p.OfferingID, &p.StartDate, &p.EndDate,
		&p.Percentage, &p.DaysPerWeek, &p.Background, &p.ModifiedBy, &p.ModifiedAt, &p.CreatedAt,
		&p.Status.ID, &r.statusType, &r.reasonType, &r.reasonText,
		&p.Status.ValidFrom, &p.Status.ValidTo, &p.Status.CreatedAt,
	}
}

func (r *participantRow) toParticipant() participant.Participant {
	p := r.p
	p.Status.ParticipantID = p.ID
	p.Status.Type = participant.StatusType(r.statusType)
	p.Status.Reason = buildReason(r.reasonType, r.reasonText)
	return p
}

func scanParticipant(row pgx.Row) (participant.Participant, error) {
	var r participantRow
	if err := row.Scan(r.dest()...); err != nil {
		return participant.Participant{}, err
	}
	return r.toParticipant(), nil
}

func collectParticipants(rows pgx.Rows) ([]participant.Participant, error) {
	var results []participant.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

func scanStatus(rows pgx.Rows) (participant.Status, error) {
	var s participant.Status
	var statusType string
	var reasonType, reasonText *string
	if err := rows.Scan(&s.ID, &s.ParticipantID, &statusType, &reasonType, &reasonText,
		&s.ValidFrom, &s.ValidTo, &s.CreatedAt); err != nil {
		return participant.Status{}, err
	}
	s.Type = participant.StatusType(statusType)
	s.Reason = buildReason(reasonType, reasonText)
	return s, nil
}

func buildReason(reasonType, reasonText *string) *participant.Reason {
	if reasonType == nil {
		return nil
	}
	return &participant.Reason{
		Type:        participant.ReasonType(*reasonType),
		Description: reasonText,
	}
}
