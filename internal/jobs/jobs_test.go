package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"caseflow_backend/internal/participant"
	"caseflow_backend/internal/participant/repository"
	"caseflow_backend/platform/logger"
)

func testLogger() *logger.Logger {
	return logger.New("development")
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func datePtr(s string) *time.Time {
	d := date(s)
	return &d
}

func candidate(status participant.StatusType, start, end *time.Time, terms participant.OfferingTerms) repository.Candidate {
	return repository.Candidate{
		Participant: participant.Participant{
			ID:        uuid.New(),
			PersonID:  uuid.New(),
			StartDate: start,
			EndDate:   end,
			Status:    participant.Status{ID: uuid.New(), Type: status},
		},
		Terms: terms,
	}
}

type fakeStatusStore struct {
	endCandidates   []repository.Candidate
	startCandidates []repository.Candidate
	inserted        []participant.Status
	failFor         uuid.UUID
}

func (f *fakeStatusStore) EndCandidates(ctx context.Context, now time.Time) ([]repository.Candidate, error) {
	return f.endCandidates, nil
}

func (f *fakeStatusStore) StartCandidates(ctx context.Context, now time.Time) ([]repository.Candidate, error) {
	return f.startCandidates, nil
}

func (f *fakeStatusStore) InsertStatus(ctx context.Context, s participant.Status) error {
	if s.ParticipantID == f.failFor {
		return errors.New("write failed")
	}
	f.inserted = append(f.inserted, s)
	return nil
}

func TestStatusReconciliationEndTransitions(t *testing.T) {
	courseTerms := participant.OfferingTerms{CourseLike: true, EndDate: datePtr("2025-06-30")}

	early := candidate(participant.StatusParticipating, datePtr("2025-01-15"), datePtr("2025-06-15"), courseTerms)
	onTime := candidate(participant.StatusParticipating, datePtr("2025-01-15"), datePtr("2025-06-30"), courseTerms)
	neverStarted := candidate(participant.StatusAwaitingStart, datePtr("2025-08-01"), nil, courseTerms)

	store := &fakeStatusStore{endCandidates: []repository.Candidate{early, onTime, neverStarted}}
	job := NewStatusReconciliation(store, testLogger())
	job.now = func() time.Time { return date("2025-07-01") }

	job.RunOnce(context.Background())

	if len(store.inserted) != 3 {
		t.Fatalf("inserted %d statuses, want 3", len(store.inserted))
	}

	want := map[uuid.UUID]participant.StatusType{
		early.Participant.ID:        participant.StatusWithdrawn,
		onTime.Participant.ID:       participant.StatusCompleted,
		neverStarted.Participant.ID: participant.StatusNotEligible,
	}
	for _, s := range store.inserted {
		if s.Type != want[s.ParticipantID] {
			t.Errorf("participant %s got %s, want %s", s.ParticipantID, s.Type, want[s.ParticipantID])
		}
		if s.Reason != nil {
			t.Errorf("derived status carries a reason: %+v", s.Reason)
		}
	}
}

func TestStatusReconciliationStartTransitions(t *testing.T) {
	terms := participant.OfferingTerms{CourseLike: true, EndDate: datePtr("2025-12-31")}

	due := candidate(participant.StatusAwaitingStart, datePtr("2025-03-01"), nil, terms)
	notYet := candidate(participant.StatusAwaitingStart, datePtr("2025-04-01"), nil, terms)

	store := &fakeStatusStore{startCandidates: []repository.Candidate{due, notYet}}
	job := NewStatusReconciliation(store, testLogger())
	job.now = func() time.Time { return date("2025-03-10") }

	job.RunOnce(context.Background())

	if len(store.inserted) != 1 {
		t.Fatalf("inserted %d statuses, want 1", len(store.inserted))
	}
	if store.inserted[0].ParticipantID != due.Participant.ID || store.inserted[0].Type != participant.StatusParticipating {
		t.Fatalf("unexpected transition: %+v", store.inserted[0])
	}
}

func TestStatusReconciliationOverlappingCandidateTransitionsOnce(t *testing.T) {
	// An awaiting-start participant past both their start date and the
	// offering's end matches both candidate queries on the date columns
	// alone. Only the end pass may move them, and only once.
	terms := participant.OfferingTerms{CourseLike: true, EndDate: datePtr("2025-06-15")}
	overlapping := candidate(participant.StatusAwaitingStart, datePtr("2025-03-01"), nil, terms)

	store := &fakeStatusStore{
		endCandidates:   []repository.Candidate{overlapping},
		startCandidates: []repository.Candidate{overlapping},
	}
	job := NewStatusReconciliation(store, testLogger())
	job.now = func() time.Time { return date("2025-07-01") }

	job.RunOnce(context.Background())

	if len(store.inserted) != 1 {
		t.Fatalf("inserted %d statuses, want 1", len(store.inserted))
	}
	if store.inserted[0].Type != participant.StatusNotEligible {
		t.Fatalf("got %s, want %s", store.inserted[0].Type, participant.StatusNotEligible)
	}
}

func TestStatusReconciliationContinuesAfterFailure(t *testing.T) {
	terms := participant.OfferingTerms{CourseLike: false, EndDate: datePtr("2025-06-30")}

	failing := candidate(participant.StatusParticipating, datePtr("2025-01-15"), nil, terms)
	healthy := candidate(participant.StatusParticipating, datePtr("2025-01-15"), nil, terms)

	store := &fakeStatusStore{
		endCandidates: []repository.Candidate{failing, healthy},
		failFor:       failing.Participant.ID,
	}
	job := NewStatusReconciliation(store, testLogger())
	job.now = func() time.Time { return date("2025-07-01") }

	job.RunOnce(context.Background())

	if len(store.inserted) != 1 {
		t.Fatalf("inserted %d statuses, want 1", len(store.inserted))
	}
	if store.inserted[0].ParticipantID != healthy.Participant.ID {
		t.Fatal("the healthy participant was not processed after the failure")
	}
}

type countingTask struct {
	runs int
}

func (c *countingTask) Name() string                { return "counting" }
func (c *countingTask) RunOnce(ctx context.Context) { c.runs++ }

func TestIntervalRunnerGating(t *testing.T) {
	task := &countingTask{}
	gate := NewGate()
	runner := NewIntervalRunner(task, gate, 0, time.Hour, testLogger())

	// Not leader, not ready: no work.
	runner.Tick(context.Background())
	if task.runs != 0 {
		t.Fatalf("task ran %d times without the gate", task.runs)
	}

	// Ready but not leader: still no work.
	gate.SetReady(true)
	runner.Tick(context.Background())
	if task.runs != 0 {
		t.Fatalf("task ran %d times as non-leader", task.runs)
	}

	gate.SetLeader(true)
	runner.Tick(context.Background())
	if task.runs != 1 {
		t.Fatalf("task ran %d times, want 1", task.runs)
	}

	// Losing leadership stops further ticks.
	gate.SetLeader(false)
	runner.Tick(context.Background())
	if task.runs != 1 {
		t.Fatalf("task ran %d times after losing leadership, want 1", task.runs)
	}
}

type fakeDraftStore struct {
	cutoff time.Time
	drafts []participant.Participant
}

func (f *fakeDraftStore) StaleDrafts(ctx context.Context, cutoff time.Time) ([]participant.Participant, error) {
	f.cutoff = cutoff
	return f.drafts, nil
}

type fakeDiscarder struct {
	discarded []uuid.UUID
	failFor   uuid.UUID
}

func (f *fakeDiscarder) DiscardDraft(ctx context.Context, id uuid.UUID) error {
	if id == f.failFor {
		return errors.New("discard failed")
	}
	f.discarded = append(f.discarded, id)
	return nil
}

func TestDraftCleanup(t *testing.T) {
	stale := participant.Participant{ID: uuid.New()}
	alsoStale := participant.Participant{ID: uuid.New()}

	store := &fakeDraftStore{drafts: []participant.Participant{stale, alsoStale}}
	discarder := &fakeDiscarder{failFor: stale.ID}

	maxAge := 14 * 24 * time.Hour
	job := NewDraftCleanup(store, discarder, maxAge, testLogger())
	now := date("2025-07-15")
	job.now = func() time.Time { return now }

	job.RunOnce(context.Background())

	if want := now.Add(-maxAge); !store.cutoff.Equal(want) {
		t.Fatalf("cutoff %v, want %v", store.cutoff, want)
	}
	if len(discarder.discarded) != 1 || discarder.discarded[0] != alsoStale.ID {
		t.Fatalf("discarded %v, want just %s", discarder.discarded, alsoStale.ID)
	}
}
