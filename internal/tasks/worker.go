package tasks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"caseflow_backend/platform/config"
	"caseflow_backend/platform/logger"
)

// RegistryNotifier reports a discarded draft back to the participant registry.
type RegistryNotifier interface {
	NotifyDraftDiscarded(ctx context.Context, participantID uuid.UUID) error
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	notifier RegistryNotifier
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, notifier RegistryNotifier, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		notifier: notifier,
		log:      log,
	}

	mux.HandleFunc(TaskDraftDiscarded, w.handleDraftDiscarded)

	return w, nil
}

func (w *Worker) handleDraftDiscarded(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDraftDiscardedPayload(task)
	if err != nil {
		return err
	}

	participantID, err := uuid.Parse(payload.ParticipantID)
	if err != nil {
		return err
	}

	if err := w.notifier.NotifyDraftDiscarded(ctx, participantID); err != nil {
		w.log.Error("draft discard notification failed", "participantId", participantID, "error", err)
		return err
	}

	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("task worker stopped", "error", err)
	}
}
