package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"caseflow_backend/internal/participant"
	"caseflow_backend/platform/logger"
)

// DraftStore lists drafts that have outlived the configured retention.
type DraftStore interface {
	StaleDrafts(ctx context.Context, cutoff time.Time) ([]participant.Participant, error)
}

// DraftDiscarder removes a single draft through the shared discard path,
// so cleanup triggers the same upstream notification as a manual discard.
type DraftDiscarder interface {
	DiscardDraft(ctx context.Context, id uuid.UUID) error
}

// DraftCleanup expires registration drafts that were never submitted.
type DraftCleanup struct {
	store     DraftStore
	discarder DraftDiscarder
	maxAge    time.Duration
	log       *logger.Logger
	now       func() time.Time
}

func NewDraftCleanup(store DraftStore, discarder DraftDiscarder, maxAge time.Duration, log *logger.Logger) *DraftCleanup {
	return &DraftCleanup{store: store, discarder: discarder, maxAge: maxAge, log: log, now: time.Now}
}

func (j *DraftCleanup) Name() string { return "draft-cleanup" }

func (j *DraftCleanup) RunOnce(ctx context.Context) {
	start := time.Now()
	cutoff := j.now().Add(-j.maxAge)

	drafts, err := j.store.StaleDrafts(ctx, cutoff)
	if err != nil {
		j.log.DatabaseError("draft cleanup list", err)
		return
	}

	processed, failed := 0, 0
	for _, d := range drafts {
		if err := j.discarder.DiscardDraft(ctx, d.ID); err != nil {
			j.log.Error("stale draft discard failed", "participantId", d.ID, "error", err)
			failed++
			continue
		}
		processed++
	}

	j.log.JobRun(j.Name(), float64(time.Since(start).Milliseconds()), processed, failed)
}
