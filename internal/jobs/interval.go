package jobs

import (
	"context"
	"time"

	"caseflow_backend/platform/logger"
)

// Task is one unit of periodic work.
type Task interface {
	Name() string
	RunOnce(ctx context.Context)
}

// IntervalRunner drives a task on a fixed period after an initial delay,
// skipping ticks while the gate disallows them. Tests call Tick directly
// instead of waiting on wall-clock timers.
type IntervalRunner struct {
	task         Task
	gate         *Gate
	initialDelay time.Duration
	period       time.Duration
	log          *logger.Logger
}

func NewIntervalRunner(task Task, gate *Gate, initialDelay, period time.Duration, log *logger.Logger) *IntervalRunner {
	return &IntervalRunner{
		task:         task,
		gate:         gate,
		initialDelay: initialDelay,
		period:       period,
		log:          log,
	}
}

func (r *IntervalRunner) Run(ctx context.Context) {
	if r.initialDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.initialDelay):
		}
	}

	r.Tick(ctx)

	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one gated tick. A disallowed tick is a silent no-op: absence of
// leadership is not an error.
func (r *IntervalRunner) Tick(ctx context.Context) {
	if !r.gate.Allows() {
		return
	}

	start := time.Now()
	r.task.RunOnce(ctx)
	r.log.Debug("periodic task tick complete",
		"task", r.task.Name(), "duration_ms", float64(time.Since(start).Milliseconds()))
}
