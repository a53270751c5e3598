package orchestrator

import "sync/atomic"

// Stats counts processed requests. It is safe for concurrent use.
type Stats struct {
	requests         atomic.Int64
	primarySuccesses atomic.Int64
	fallbackUses     atomic.Int64
	clarifications   atomic.Int64
	ragUses          atomic.Int64
	reprocessings    atomic.Int64
	failures         atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Requests         int64 `json:"requests"`
	PrimarySuccesses int64 `json:"primary_successes"`
	FallbackUses     int64 `json:"fallback_uses"`
	Clarifications   int64 `json:"clarifications"`
	RAGUses          int64 `json:"rag_uses"`
	Reprocessings    int64 `json:"reprocessings"`
	Failures         int64 `json:"failures"`
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Requests:         s.requests.Load(),
		PrimarySuccesses: s.primarySuccesses.Load(),
		FallbackUses:     s.fallbackUses.Load(),
		Clarifications:   s.clarifications.Load(),
		RAGUses:          s.ragUses.Load(),
		Reprocessings:    s.reprocessings.Load(),
		Failures:         s.failures.Load(),
	}
}

func (s *Stats) record(a *answer) {
	switch a.tier {
	case TierPrimary:
		s.primarySuccesses.Add(1)
	case TierFallback:
		s.fallbackUses.Add(1)
	case TierReprocess:
		s.fallbackUses.Add(1)
		s.reprocessings.Add(1)
	case TierTemplate:
		s.failures.Add(1)
	}
	if a.clarifies() {
		s.clarifications.Add(1)
	}
	if a.ragUsed {
		s.ragUses.Add(1)
	}
}
