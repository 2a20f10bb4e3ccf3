// Package usage tracks per-tenant, per-day token usage and cost, and
// enforces the Agent Loop's hard USD budget cap (spec §4.H "Cost
// accounting").
package usage

import (
	"fmt"
	"sync"
	"time"

	"github.com/nexuscore/agentrt/internal/apperr"
)

// Usage is the token usage for a single LLM call.
type Usage struct {
	InputTokens       int64
	OutputTokens      int64
	CacheReadTokens   int64
	CacheCreateTokens int64
}

// Total returns the combined token count across all categories.
func (u Usage) Total() int64 {
	return u.InputTokens + u.OutputTokens + u.CacheReadTokens + u.CacheCreateTokens
}

func (u *Usage) add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheReadTokens += other.CacheReadTokens
	u.CacheCreateTokens += other.CacheCreateTokens
}

// Cost prices a model's tokens, expressed per million tokens.
type Cost struct {
	Input       float64
	Output      float64
	CacheRead   float64
	CacheCreate float64
}

// Estimate returns the USD cost of the given usage at this pricing.
func (c Cost) Estimate(u Usage) float64 {
	total := float64(u.InputTokens)*c.Input +
		float64(u.OutputTokens)*c.Output +
		float64(u.CacheReadTokens)*c.CacheRead +
		float64(u.CacheCreateTokens)*c.CacheCreate
	return total / 1_000_000
}

// dayBucket accumulates one tenant's usage and spend for a single UTC day.
type dayBucket struct {
	day   string
	usage Usage
	spent float64
}

// Tracker is the per-tenant daily cost accumulator the Agent Loop consults
// before every provider call (spec §4.H: "checks budget before each LLM
// call; exceeding the hard cap aborts").
type Tracker struct {
	mu      sync.Mutex
	buckets map[string]*dayBucket // keyed by tenant id
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{buckets: make(map[string]*dayBucket)}
}

func dayKey(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

func (t *Tracker) bucketLocked(tenantID string, now time.Time) *dayBucket {
	b, ok := t.buckets[tenantID]
	day := dayKey(now)
	if !ok || b.day != day {
		b = &dayBucket{day: day}
		t.buckets[tenantID] = b
	}
	return b
}

// Record adds usage incurred by tenantID at cost pricing, returning the
// resulting day-to-date spend.
func (t *Tracker) Record(tenantID string, u Usage, cost Cost, now time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.bucketLocked(tenantID, now)
	b.usage.add(u)
	b.spent += cost.Estimate(u)
	return b.spent
}

// Spent returns tenantID's current day-to-date spend in USD.
func (t *Tracker) Spent(tenantID string, now time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bucketLocked(tenantID, now).spent
}

// CheckBudget returns an apperr KindConfig error if tenantID has already
// reached or exceeded hardCapUSD. Call this before each provider call; a
// non-nil error must abort the round (spec §4.H).
func (t *Tracker) CheckBudget(tenantID string, hardCapUSD float64, now time.Time) error {
	if hardCapUSD <= 0 {
		return nil // no cap configured
	}
	spent := t.Spent(tenantID, now)
	if spent >= hardCapUSD {
		return apperr.New(apperr.KindConfig, "usage",
			fmt.Errorf("daily budget exceeded: spent $%.4f of $%.4f cap", spent, hardCapUSD))
	}
	return nil
}
