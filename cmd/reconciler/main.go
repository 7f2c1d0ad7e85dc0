package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"caseflow_backend/internal/assessment"
	"caseflow_backend/internal/consumer"
	"caseflow_backend/internal/jobs"
	"caseflow_backend/internal/ops"
	"caseflow_backend/internal/outbox"
	participantrepo "caseflow_backend/internal/participant/repository"
	participantservice "caseflow_backend/internal/participant/service"
	"caseflow_backend/internal/proposal"
	"caseflow_backend/internal/registry"
	"caseflow_backend/internal/tasks"
	"caseflow_backend/internal/upstream"
	"caseflow_backend/platform/config"
	"caseflow_backend/platform/db"
	"caseflow_backend/platform/logger"
	"caseflow_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting reconciler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := db.RunMigrations(ctx, cfg); err != nil {
			log.Error("migrations failed", "error", err)
			panic("migrations failed: " + err.Error())
		}
	}

	redisOpt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("invalid redis url", "error", err)
		panic("invalid redis url: " + err.Error())
	}
	redisClient := redis.NewClient(redisOpt)
	defer func() { _ = redisClient.Close() }()

	val := validator.New()

	// Repositories.
	outboxRepo := outbox.New(pool)
	participantRepo := participantrepo.New(pool)
	participantRepo.SetOutbox(outboxRepo)
	registryRepo := registry.New(pool)
	proposalRepo := proposal.New(pool)
	assessmentRepo := assessment.New(pool)

	// Upstream registry client and the task layer that calls it.
	registryClient := upstream.NewClient(cfg, log)

	taskClient, err := tasks.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task client", "error", err)
		panic("failed to initialize task client: " + err.Error())
	}
	defer func() { _ = taskClient.Close() }()

	taskWorker, err := tasks.NewWorker(cfg, registryClient, log)
	if err != nil {
		log.Error("failed to initialize task worker", "error", err)
		panic("failed to initialize task worker: " + err.Error())
	}

	participantSvc := participantservice.New(participantRepo, taskClient, log)

	// One consumer per topic, each with its own consumer group.
	consumers := []*consumer.Consumer{
		consumer.New(cfg, consumer.NewParticipantHandler(participantRepo, val, log), log),
		consumer.New(cfg, consumer.NewArrangerHandler(proposalRepo, assessmentRepo, val, cfg.IsStrict(), log), log),
		consumer.New(cfg, consumer.NewPersonHandler(registryRepo, participantSvc, val, log), log),
		consumer.New(cfg, consumer.NewOrganizationHandler(registryRepo, val, log), log),
		consumer.New(cfg, consumer.NewNavUnitHandler(registryRepo, val, log), log),
		consumer.New(cfg, consumer.NewCaseworkerHandler(registryRepo, val, log), log),
		consumer.New(cfg, consumer.NewOfferingHandler(registryRepo, val, log), log),
	}
	defer func() {
		for _, c := range consumers {
			_ = c.Close()
		}
	}()

	// Leader-gated periodic jobs.
	gate := jobs.NewGate()
	elector := jobs.NewElector(cfg, redisClient, gate, log)

	statusJob := jobs.NewStatusReconciliation(participantRepo, log)
	statusRunner := jobs.NewIntervalRunner(statusJob, gate,
		cfg.GetStatusJobInitialDelay(), cfg.GetStatusJobInterval(), log)

	cleanupJob := jobs.NewDraftCleanup(participantRepo, participantSvc, cfg.GetDraftMaxAge(), log)
	cleanupRunner := jobs.NewIntervalRunner(cleanupJob, gate,
		cfg.GetDraftCleanupInitialDelay(), cfg.GetDraftCleanupInterval(), log)

	dispatcher := outbox.NewDispatcher(cfg, pool, log)
	defer func() { _ = dispatcher.Close() }()

	opsServer := ops.NewServer(cfg.GetOpsAddr(), gate, participantRepo, registryClient, log)

	g, gctx := errgroup.WithContext(ctx)

	for _, c := range consumers {
		c := c
		g.Go(func() error { return c.Run(gctx) })
	}
	g.Go(func() error {
		elector.Run(gctx)
		return nil
	})
	g.Go(func() error {
		statusRunner.Run(gctx)
		return nil
	})
	g.Go(func() error {
		cleanupRunner.Run(gctx)
		return nil
	})
	g.Go(func() error {
		dispatcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		taskWorker.Run(gctx)
		return nil
	})
	g.Go(func() error { return opsServer.Run(gctx) })

	gate.SetReady(true)
	log.Info("reconciler started",
		"topics", len(consumers),
		"opsAddr", cfg.GetOpsAddr())

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("reconciler stopped", "error", err)
		os.Exit(1)
	}

	log.Info("reconciler shut down")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
