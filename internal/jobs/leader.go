package jobs

import (
	"context"
	"time"

	"caseflow_backend/platform/config"
	"caseflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if this instance still holds it.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// refreshScript extends the lock TTL only if this instance still holds it.
const refreshScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end`

// Elector maintains a distributed leader lock in redis and reflects the
// outcome onto the gate. One instance of N holds the lock at a time; the
// others keep trying so failover happens within one TTL.
type Elector struct {
	client *redis.Client
	gate   *Gate
	key    string
	id     string
	ttl    time.Duration
	log    *logger.Logger
}

func NewElector(cfg config.SchedulerConfig, client *redis.Client, gate *Gate, log *logger.Logger) *Elector {
	return &Elector{
		client: client,
		gate:   gate,
		key:    cfg.GetLeaderLockKey(),
		id:     uuid.NewString(),
		ttl:    cfg.GetLeaderLockTTL(),
		log:    log,
	}
}

// Run contends for the lock until the context is cancelled, then releases
// it if held so a peer can take over immediately.
func (e *Elector) Run(ctx context.Context) {
	interval := e.ttl / 3

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			e.release()
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Elector) tick(ctx context.Context) {
	wasLeader := e.gate.IsLeader()

	acquired, err := e.client.SetNX(ctx, e.key, e.id, e.ttl).Result()
	if err != nil {
		// Without a reachable lock we must assume leadership is lost.
		e.gate.SetLeader(false)
		e.log.Warn("leader lock check failed", "error", err)
		return
	}

	isLeader := acquired
	if !acquired && wasLeader {
		refreshed, err := e.client.Eval(ctx, refreshScript, []string{e.key}, e.id, e.ttl.Milliseconds()).Int()
		if err != nil {
			e.gate.SetLeader(false)
			e.log.Warn("leader lock refresh failed", "error", err)
			return
		}
		isLeader = refreshed == 1
	}

	e.gate.SetLeader(isLeader)

	if isLeader && !wasLeader {
		e.log.Info("acquired leadership", "key", e.key)
	}
	if !isLeader && wasLeader {
		e.log.Info("lost leadership", "key", e.key)
	}
}

func (e *Elector) release() {
	if !e.gate.IsLeader() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := e.client.Eval(ctx, releaseScript, []string{e.key}, e.id).Result(); err != nil {
		e.log.Warn("leader lock release failed", "error", err)
	}
	e.gate.SetLeader(false)
}
