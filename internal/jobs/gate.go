// Package jobs holds the leader-gated periodic jobs: participant status
// reconciliation and stale-draft cleanup. The jobs are idempotent and
// convergent; cadence only affects how fresh statuses are, never correctness.
package jobs

import "sync"

// Gate is the pair of conditions that must both hold for a job tick to run:
// this instance holds the leader lock, and startup has completed. Modelling
// the pair explicitly keeps the gating logic testable without election
// infrastructure.
type Gate struct {
	mu       sync.RWMutex
	isLeader bool
	isReady  bool
}

func NewGate() *Gate {
	return &Gate{}
}

func (g *Gate) SetLeader(leader bool) {
	g.mu.Lock()
	g.isLeader = leader
	g.mu.Unlock()
}

func (g *Gate) SetReady(ready bool) {
	g.mu.Lock()
	g.isReady = ready
	g.mu.Unlock()
}

func (g *Gate) IsLeader() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.isLeader
}

func (g *Gate) IsReady() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.isReady
}

// Allows reports whether a tick may run. Not being leader is a normal,
// frequent condition in a multi-instance deployment, so callers skip
// silently when this is false.
func (g *Gate) Allows() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.isLeader && g.isReady
}
