package policy

import (
	"strconv"
	"sync"
	"time"
)

// TradingPolicy governs auto-approval for the trading tool family
// (spec §4.C "Auto-approval policy (trading family)").
type TradingPolicy struct {
	AutoApprove      bool
	MaxTradeUSD      float64
	MaxDailyLossUSD  float64
	MaxTransferUSD   float64
	AllowTransfers   bool
	AllowedPairs     []string
}

func (p *TradingPolicy) pairAllowed(pair string) bool {
	if len(p.AllowedPairs) == 0 {
		return true
	}
	for _, allowed := range p.AllowedPairs {
		if allowed == pair {
			return true
		}
	}
	return false
}

// DailySpendTracker accumulates trade/transfer spend per day, reset at UTC
// midnight, so MaxDailyLossUSD can be evaluated against a rolling total.
type DailySpendTracker struct {
	mu      sync.Mutex
	day     string
	spentBy map[string]float64 // keyed by agent_id
}

// NewDailySpendTracker creates an empty tracker.
func NewDailySpendTracker() *DailySpendTracker {
	return &DailySpendTracker{spentBy: make(map[string]float64)}
}

func (d *DailySpendTracker) currentDay(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// Spent returns the agent's accumulated spend for today, resetting the
// tracker if the day has rolled over.
func (d *DailySpendTracker) Spent(agentID string, now time.Time) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rolloverLocked(now)
	return d.spentBy[agentID]
}

// Add records additional spend for the agent on the current day.
func (d *DailySpendTracker) Add(agentID string, amount float64, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rolloverLocked(now)
	d.spentBy[agentID] += amount
}

func (d *DailySpendTracker) rolloverLocked(now time.Time) {
	day := d.currentDay(now)
	if d.day != day {
		d.day = day
		d.spentBy = make(map[string]float64)
	}
}

// TradeRequest describes a trade/swap tool call awaiting the policy check.
type TradeRequest struct {
	AgentID   string
	AmountUSD float64
	Pair      string
}

// TransferRequest describes a transfer tool call awaiting the policy check.
type TransferRequest struct {
	AgentID   string
	AmountUSD float64
}

// CheckTrade evaluates a trade/swap request against the policy. Returns
// DecisionApprove only when auto_approve is on, the amount is within
// max_trade_usd, the pair is allowed, and daily_spent+amount stays within
// max_daily_loss_usd (spec §4.C).
func CheckTrade(p *TradingPolicy, tracker *DailySpendTracker, req TradeRequest, now time.Time) (Decision, string) {
	if p == nil || !p.AutoApprove {
		return DecisionDeny, "human approval required: auto-approve disabled"
	}
	if req.AmountUSD > p.MaxTradeUSD {
		return DecisionDeny, "amount " + formatUSD(req.AmountUSD) + " exceeds max_trade_usd"
	}
	if !p.pairAllowed(req.Pair) {
		return DecisionDeny, "pair " + req.Pair + " not in allowed_pairs"
	}
	spent := tracker.Spent(req.AgentID, now)
	if spent+req.AmountUSD > p.MaxDailyLossUSD {
		return DecisionDeny, "daily spend would exceed max_daily_loss_usd"
	}
	tracker.Add(req.AgentID, req.AmountUSD, now)
	return DecisionApprove, ""
}

// CheckTransfer evaluates a transfer request against the policy. Returns
// DecisionApprove only when allow_transfers is on, the amount is within
// max_transfer_usd, and the daily cap holds (spec §4.C).
func CheckTransfer(p *TradingPolicy, tracker *DailySpendTracker, req TransferRequest, now time.Time) (Decision, string) {
	if p == nil || !p.AllowTransfers {
		return DecisionDeny, "human approval required: transfers disabled"
	}
	if req.AmountUSD > p.MaxTransferUSD {
		return DecisionDeny, "amount " + formatUSD(req.AmountUSD) + " exceeds max_transfer_usd"
	}
	spent := tracker.Spent(req.AgentID, now)
	if spent+req.AmountUSD > p.MaxDailyLossUSD {
		return DecisionDeny, "daily spend would exceed max_daily_loss_usd"
	}
	tracker.Add(req.AgentID, req.AmountUSD, now)
	return DecisionApprove, ""
}

// CheckWalletCreate always auto-approves wallet creation when the policy is
// on (spec §4.C: "Wallet creation is always auto-approved when the policy
// is on").
func CheckWalletCreate(p *TradingPolicy) Decision {
	if p != nil && p.AutoApprove {
		return DecisionApprove
	}
	return DecisionDeny
}

func formatUSD(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
