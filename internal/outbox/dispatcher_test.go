package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"caseflow_backend/platform/logger"
)

type fakeStore struct {
	pending     []Record
	published   []uuid.UUID
	repending   []uuid.UUID
	failed      []uuid.UUID
	pruneCutoff time.Time
}

func (f *fakeStore) ClaimPending(ctx context.Context, limit int) ([]Record, error) {
	records := f.pending
	f.pending = nil
	return records, nil
}

func (f *fakeStore) MarkPublished(ctx context.Context, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeStore) MarkPending(ctx context.Context, id uuid.UUID, lastError *string) error {
	f.repending = append(f.repending, id)
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeStore) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.pruneCutoff = cutoff
	return 0, nil
}

type fakePublisher struct {
	publishedTo []string
	failFor     uuid.UUID
}

func (f *fakePublisher) Publish(ctx context.Context, rec Record) error {
	if rec.ID == f.failFor {
		return errors.New("broker unreachable")
	}
	f.publishedTo = append(f.publishedTo, rec.Topic)
	return nil
}

func record(attempts int) Record {
	return Record{ID: uuid.New(), Topic: "participant-status-v1", Key: uuid.New(), Attempts: attempts}
}

func TestDispatchPublishesClaimedBatch(t *testing.T) {
	a, b := record(1), record(1)
	store := &fakeStore{pending: []Record{a, b}}
	publisher := &fakePublisher{}
	d := NewDispatcherWithPublisher(store, publisher, logger.New("development"))

	d.Dispatch(context.Background())

	if len(publisher.publishedTo) != 2 {
		t.Fatalf("published %d records, want 2", len(publisher.publishedTo))
	}
	if len(store.published) != 2 {
		t.Fatalf("marked %d records published, want 2", len(store.published))
	}
}

func TestDispatchRequeuesFailedPublish(t *testing.T) {
	failing, healthy := record(1), record(1)
	store := &fakeStore{pending: []Record{failing, healthy}}
	publisher := &fakePublisher{failFor: failing.ID}
	d := NewDispatcherWithPublisher(store, publisher, logger.New("development"))

	d.Dispatch(context.Background())

	if len(store.repending) != 1 || store.repending[0] != failing.ID {
		t.Fatalf("repending %v, want %s", store.repending, failing.ID)
	}
	if len(store.published) != 1 || store.published[0] != healthy.ID {
		t.Fatalf("published %v, want %s", store.published, healthy.ID)
	}
}

func TestPrunePassesRetentionCutoff(t *testing.T) {
	store := &fakeStore{}
	d := NewDispatcherWithPublisher(store, &fakePublisher{}, logger.New("development"))

	before := time.Now().Add(-publishedRetention)
	d.prune(context.Background())

	if store.pruneCutoff.Before(before) || store.pruneCutoff.After(time.Now()) {
		t.Fatalf("prune cutoff %v not ~%v back", store.pruneCutoff, publishedRetention)
	}
}

func TestDispatchGivesUpAfterAttemptCap(t *testing.T) {
	exhausted := record(maxAttempts)
	store := &fakeStore{pending: []Record{exhausted}}
	publisher := &fakePublisher{failFor: exhausted.ID}
	d := NewDispatcherWithPublisher(store, publisher, logger.New("development"))

	d.Dispatch(context.Background())

	if len(store.failed) != 1 || store.failed[0] != exhausted.ID {
		t.Fatalf("failed %v, want %s", store.failed, exhausted.ID)
	}
	if len(store.repending) != 0 {
		t.Fatal("exhausted record was requeued")
	}
}
