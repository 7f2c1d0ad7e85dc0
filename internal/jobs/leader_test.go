package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type electorConfig struct {
	key string
	ttl time.Duration
}

func (c electorConfig) GetRedisURL() string                        { return "" }
func (c electorConfig) GetAsynqQueueName() string                  { return "" }
func (c electorConfig) GetAsynqConcurrency() int                   { return 0 }
func (c electorConfig) GetLeaderLockKey() string                   { return c.key }
func (c electorConfig) GetLeaderLockTTL() time.Duration            { return c.ttl }
func (c electorConfig) GetStatusJobInitialDelay() time.Duration    { return 0 }
func (c electorConfig) GetStatusJobInterval() time.Duration        { return 0 }
func (c electorConfig) GetDraftCleanupInitialDelay() time.Duration { return 0 }
func (c electorConfig) GetDraftCleanupInterval() time.Duration     { return 0 }
func (c electorConfig) GetDraftMaxAge() time.Duration              { return 0 }

func TestElector(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg := electorConfig{key: "test:leader", ttl: 10 * time.Second}
	log := testLogger()
	ctx := context.Background()

	first := NewElector(cfg, client, NewGate(), log)
	second := NewElector(cfg, client, NewGate(), log)

	first.tick(ctx)
	if !first.gate.IsLeader() {
		t.Fatal("first elector did not acquire the free lock")
	}

	second.tick(ctx)
	if second.gate.IsLeader() {
		t.Fatal("second elector acquired a held lock")
	}

	// The holder refreshes its lease on subsequent ticks.
	first.tick(ctx)
	if !first.gate.IsLeader() {
		t.Fatal("first elector lost the lock on refresh")
	}

	// Release hands the lock to the next contender.
	first.release()
	if first.gate.IsLeader() {
		t.Fatal("release left the gate open")
	}

	second.tick(ctx)
	if !second.gate.IsLeader() {
		t.Fatal("second elector did not acquire the released lock")
	}
}

func TestElectorLosesLockOnExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg := electorConfig{key: "test:leader", ttl: 10 * time.Second}
	ctx := context.Background()

	holder := NewElector(cfg, client, NewGate(), testLogger())
	holder.tick(ctx)
	if !holder.gate.IsLeader() {
		t.Fatal("holder did not acquire the lock")
	}

	// Simulate a stall past the TTL: another instance grabs the lock.
	mr.FastForward(cfg.ttl + time.Second)

	usurper := NewElector(cfg, client, NewGate(), testLogger())
	usurper.tick(ctx)
	if !usurper.gate.IsLeader() {
		t.Fatal("usurper did not acquire the expired lock")
	}

	holder.tick(ctx)
	if holder.gate.IsLeader() {
		t.Fatal("stalled holder still believes it is leader")
	}
}
