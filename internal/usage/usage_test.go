package usage

import (
	"errors"
	"testing"
	"time"

	"github.com/nexuscore/agentrt/internal/apperr"
)

func TestCostEstimate(t *testing.T) {
	c := Cost{Input: 3, Output: 15}
	got := c.Estimate(Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000})
	if got != 18 {
		t.Fatalf("expected $18, got %v", got)
	}
}

func TestTrackerAccumulatesAndBudgets(t *testing.T) {
	tr := NewTracker()
	now := time.Now()
	cost := Cost{Input: 1, Output: 1}

	tr.Record("tenant1", Usage{InputTokens: 500_000}, cost, now)
	if spent := tr.Spent("tenant1", now); spent != 0.5 {
		t.Fatalf("expected 0.5 spent, got %v", spent)
	}

	if err := tr.CheckBudget("tenant1", 1.0, now); err != nil {
		t.Fatalf("expected budget not yet exceeded: %v", err)
	}

	tr.Record("tenant1", Usage{InputTokens: 600_000}, cost, now)
	err := tr.CheckBudget("tenant1", 1.0, now)
	if err == nil {
		t.Fatal("expected budget exceeded error")
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindConfig {
		t.Fatalf("expected apperr.KindConfig, got %v", err)
	}
}

func TestTrackerDailyRollover(t *testing.T) {
	tr := NewTracker()
	day1 := time.Date(2026, 7, 29, 23, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 7, 30, 1, 0, 0, 0, time.UTC)

	tr.Record("tenant1", Usage{InputTokens: 1_000_000}, Cost{Input: 1}, day1)
	if got := tr.Spent("tenant1", day2); got != 0 {
		t.Fatalf("expected rollover to reset spend, got %v", got)
	}
}

func TestCheckBudgetNoCapConfigured(t *testing.T) {
	tr := NewTracker()
	if err := tr.CheckBudget("tenant1", 0, time.Now()); err != nil {
		t.Fatalf("expected nil error when no cap configured, got %v", err)
	}
}
