package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"caseflow_backend/internal/participant"
	"caseflow_backend/internal/participant/repository"
	"caseflow_backend/platform/apperr"
	"caseflow_backend/platform/logger"
)

type fakeStore struct {
	participants map[uuid.UUID]participant.Participant
	deleted      []uuid.UUID
	statuses     []participant.Status
}

func newFakeStore() *fakeStore {
	return &fakeStore{participants: map[uuid.UUID]participant.Participant{}}
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (participant.Participant, error) {
	p, ok := f.participants[id]
	if !ok {
		return participant.Participant{}, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.participants, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) DraftsByPerson(ctx context.Context, personID uuid.UUID) ([]participant.Participant, error) {
	var drafts []participant.Participant
	for _, p := range f.participants {
		if p.PersonID == personID && p.Status.Type.IsDraft() {
			drafts = append(drafts, p)
		}
	}
	return drafts, nil
}

func (f *fakeStore) InsertStatus(ctx context.Context, s participant.Status) error {
	f.statuses = append(f.statuses, s)
	return nil
}

type fakeNotifier struct {
	enqueued []uuid.UUID
	err      error
}

func (f *fakeNotifier) EnqueueDraftDiscarded(ctx context.Context, participantID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, participantID)
	return nil
}

func addParticipant(store *fakeStore, personID uuid.UUID, status participant.StatusType) uuid.UUID {
	id := uuid.New()
	store.participants[id] = participant.Participant{
		ID:       id,
		PersonID: personID,
		Status:   participant.Status{ID: uuid.New(), Type: status},
	}
	return id
}

func TestDiscardDraft(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	svc := New(store, notifier, logger.New("development"))

	id := addParticipant(store, uuid.New(), participant.StatusDraft)

	if err := svc.DiscardDraft(context.Background(), id); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != id {
		t.Fatalf("deleted %v, want %s", store.deleted, id)
	}
	if len(notifier.enqueued) != 1 || notifier.enqueued[0] != id {
		t.Fatalf("enqueued %v, want %s", notifier.enqueued, id)
	}

	// Discarding again is a no-op, not an error.
	if err := svc.DiscardDraft(context.Background(), id); err != nil {
		t.Fatalf("second discard: %v", err)
	}
	if len(store.deleted) != 1 {
		t.Fatal("second discard deleted again")
	}
}

func TestDiscardDraftRejectsNonDraft(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &fakeNotifier{}, logger.New("development"))

	id := addParticipant(store, uuid.New(), participant.StatusParticipating)

	err := svc.DiscardDraft(context.Background(), id)
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("got %v, want conflict", err)
	}
	if len(store.deleted) != 0 {
		t.Fatal("non-draft participant was deleted")
	}
}

func TestDiscardDraftSurvivesNotifierFailure(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{err: errors.New("queue down")}
	svc := New(store, notifier, logger.New("development"))

	id := addParticipant(store, uuid.New(), participant.StatusSubmittedDraft)

	// The local delete stands even when the enqueue fails.
	if err := svc.DiscardDraft(context.Background(), id); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if len(store.deleted) != 1 {
		t.Fatal("draft not deleted")
	}
}

func TestDiscardDraftsForPerson(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &fakeNotifier{}, logger.New("development"))

	personID := uuid.New()
	addParticipant(store, personID, participant.StatusDraft)
	addParticipant(store, personID, participant.StatusSubmittedDraft)
	keep := addParticipant(store, personID, participant.StatusParticipating)
	addParticipant(store, uuid.New(), participant.StatusDraft)

	n, err := svc.DiscardDraftsForPerson(context.Background(), personID)
	if err != nil {
		t.Fatalf("discard drafts: %v", err)
	}
	if n != 2 {
		t.Fatalf("discarded %d, want 2", n)
	}
	if _, ok := store.participants[keep]; !ok {
		t.Fatal("active enrollment was discarded")
	}
}

func TestApplyTransition(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &fakeNotifier{}, logger.New("development"))

	id := uuid.New()
	now := time.Now()

	if err := svc.ApplyTransition(context.Background(), id, participant.StatusParticipating, nil, now); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if len(store.statuses) != 1 || store.statuses[0].Type != participant.StatusParticipating {
		t.Fatalf("unexpected statuses: %+v", store.statuses)
	}

	// Invalid transitions never reach the store.
	reason, _ := participant.NewReason(participant.ReasonSick, nil)
	if err := svc.ApplyTransition(context.Background(), id, participant.StatusCompleted, &reason, now); err == nil {
		t.Fatal("COMPLETED with a reason accepted")
	}
	if len(store.statuses) != 1 {
		t.Fatal("invalid status reached the store")
	}
}
