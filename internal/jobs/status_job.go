package jobs

import (
	"context"
	"time"

	"caseflow_backend/internal/participant"
	"caseflow_backend/internal/participant/repository"
	"caseflow_backend/platform/logger"
)

// StatusStore is the participant repository surface the status job uses.
type StatusStore interface {
	EndCandidates(ctx context.Context, now time.Time) ([]repository.Candidate, error)
	StartCandidates(ctx context.Context, now time.Time) ([]repository.Candidate, error)
	InsertStatus(ctx context.Context, s participant.Status) error
}

// StatusReconciliation re-derives participant statuses as calendar time
// advances. Each run recomputes the full candidate sets from scratch; the
// end and start filters are mutually exclusive, so no participant moves
// twice in one tick. Transitions are applied one participant at a time so a
// failure never rolls back the progress made before it.
type StatusReconciliation struct {
	store StatusStore
	log   *logger.Logger
	now   func() time.Time
}

func NewStatusReconciliation(store StatusStore, log *logger.Logger) *StatusReconciliation {
	return &StatusReconciliation{store: store, log: log, now: time.Now}
}

func (j *StatusReconciliation) Name() string { return "status-reconciliation" }

func (j *StatusReconciliation) RunOnce(ctx context.Context) {
	start := time.Now()
	now := j.now()

	counts := map[participant.StatusType]int{}
	processed, failed := 0, 0

	endCandidates, err := j.store.EndCandidates(ctx, now)
	if err != nil {
		j.log.DatabaseError("status job end candidates", err)
		return
	}

	for _, c := range endCandidates {
		target, ok := participant.DeriveEndStatus(c.Participant, c.Terms, now)
		if !ok {
			continue
		}
		if j.transition(ctx, c.Participant, target, now) {
			counts[target]++
			processed++
		} else {
			failed++
		}
	}

	startCandidates, err := j.store.StartCandidates(ctx, now)
	if err != nil {
		j.log.DatabaseError("status job start candidates", err)
		return
	}

	for _, c := range startCandidates {
		if !participant.ShouldStartParticipating(c.Participant, c.Terms, now) {
			continue
		}
		if j.transition(ctx, c.Participant, participant.StatusParticipating, now) {
			counts[participant.StatusParticipating]++
			processed++
		} else {
			failed++
		}
	}

	for status, n := range counts {
		j.log.Info("participants transitioned", "status", string(status), "count", n)
	}
	j.log.JobRun(j.Name(), float64(time.Since(start).Milliseconds()), processed, failed)
}

// transition applies a single status change, logging instead of propagating
// failures so the rest of the batch continues.
func (j *StatusReconciliation) transition(ctx context.Context, p participant.Participant, target participant.StatusType, now time.Time) bool {
	status, err := participant.NewStatus(p.ID, target, nil, now)
	if err != nil {
		j.log.Error("status derivation produced invalid status",
			"participantId", p.ID, "target", string(target), "error", err)
		return false
	}

	if err := j.store.InsertStatus(ctx, status); err != nil {
		j.log.Error("status transition failed",
			"participantId", p.ID, "target", string(target), "error", err)
		return false
	}

	return true
}
