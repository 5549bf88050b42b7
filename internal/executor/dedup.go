package executor

import (
	"sync"
	"time"
)

// CandidateGuard remembers which candidate orders have already been taken to
// the approval oracle, so the oracle is consulted at most once per candidate.
// Entries expire after the TTL. Safe for concurrent use.
type CandidateGuard struct {
	seen map[string]time.Time // candidate ID -> first seen
	ttl  time.Duration
	mu   sync.Mutex
}

// NewCandidateGuard creates a guard whose entries expire after ttl.
func NewCandidateGuard(ttl time.Duration) *CandidateGuard {
	return &CandidateGuard{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// Seen reports whether the candidate was already recorded within the TTL
// window, recording it if not.
func (g *CandidateGuard) Seen(candidateID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if first, ok := g.seen[candidateID]; ok && now.Sub(first) < g.ttl {
		return true
	}
	g.seen[candidateID] = now
	return false
}

// Cleanup drops expired entries; call periodically to bound memory.
func (g *CandidateGuard) Cleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	for id, ts := range g.seen {
		if now.Sub(ts) >= g.ttl {
			delete(g.seen, id)
		}
	}
}
