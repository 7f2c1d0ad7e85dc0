package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"caseflow_backend/platform/logger"
)

type fakeNotifier struct {
	notified []uuid.UUID
	err      error
}

func (f *fakeNotifier) NotifyDraftDiscarded(ctx context.Context, participantID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.notified = append(f.notified, participantID)
	return nil
}

func TestHandleDraftDiscarded(t *testing.T) {
	notifier := &fakeNotifier{}
	w := &Worker{notifier: notifier, log: logger.New("development")}

	id := uuid.New()
	task, err := NewDraftDiscardedTask(DraftDiscardedPayload{ParticipantID: id.String()})
	if err != nil {
		t.Fatal(err)
	}

	if err := w.handleDraftDiscarded(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(notifier.notified) != 1 || notifier.notified[0] != id {
		t.Fatalf("notified %v, want %s", notifier.notified, id)
	}
}

func TestHandleDraftDiscardedBadPayload(t *testing.T) {
	w := &Worker{notifier: &fakeNotifier{}, log: logger.New("development")}

	task := asynq.NewTask(TaskDraftDiscarded, []byte(`{"participantId":"nope"}`))
	if err := w.handleDraftDiscarded(context.Background(), task); err == nil {
		t.Fatal("malformed participant id accepted")
	}
}

func TestHandleDraftDiscardedPropagatesFailure(t *testing.T) {
	// A failed notification must surface so asynq retries the task.
	w := &Worker{notifier: &fakeNotifier{err: errors.New("registry down")}, log: logger.New("development")}

	task, err := NewDraftDiscardedTask(DraftDiscardedPayload{ParticipantID: uuid.NewString()})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.handleDraftDiscarded(context.Background(), task); err == nil {
		t.Fatal("notifier failure swallowed")
	}
}
