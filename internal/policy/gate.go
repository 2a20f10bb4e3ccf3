package policy

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/nexuscore/agentrt/internal/agent"
)

var _ agent.ApprovalGate = (*Gate)(nil)

// Gate wires the destructive-tool allow-list, the trading family's
// auto-approval rules, and the bounded pending-approval queue into a single
// agent.ApprovalGate (spec §4.C). Evaluate never blocks: an auto-approved
// call returns immediately, and anything else is enqueued and fails fast
// with "awaiting approval" per spec §4.C's pseudocode (S2) — resolution of
// the pending approval is an external command that enqueues a rerun, not
// something Evaluate itself waits on.
type Gate struct {
	Queue   *Queue
	Trading *TradingPolicy
	Tracker *DailySpendTracker
}

func NewGate(queue *Queue, trading *TradingPolicy, tracker *DailySpendTracker) *Gate {
	return &Gate{Queue: queue, Trading: trading, Tracker: tracker}
}

func (g *Gate) Evaluate(ctx context.Context, toolCallID, toolName, agentID string, args json.RawMessage) (bool, string, error) {
	if !IsDestructive(toolName) {
		return true, "", nil
	}

	decision, reason := g.autoApprove(toolName, agentID, args)
	if decision == DecisionApprove {
		return true, "", nil
	}

	_, err := g.Queue.Enqueue(&PendingApproval{
		ToolCallID: toolCallID,
		ToolName:   toolName,
		AgentID:    agentID,
		ArgsJSON:   string(args),
		Reason:     reason,
		CreatedAt:  time.Now(),
	})
	if err == ErrQueueFull {
		return false, "approval_queue_full", nil
	}
	if err != nil {
		return false, err.Error(), nil
	}
	return false, "awaiting approval", nil
}

// autoApprove runs the trading-family policy checks for the tool names
// that have one; every other destructive tool has no auto-approval path
// and always falls through to the pending-approval queue.
func (g *Gate) autoApprove(toolName, agentID string, args json.RawMessage) (Decision, string) {
	switch toolName {
	case "wallet_create":
		return CheckWalletCreate(g.Trading), "human approval required for wallet creation"

	case "coinbase_trade", "coinbase_swap", "wallet_swap":
		var req struct {
			ProductID string `json:"product_id"`
			Amount    string `json:"amount"`
		}
		_ = json.Unmarshal(args, &req)
		amount, _ := strconv.ParseFloat(req.Amount, 64)
		return CheckTrade(g.Trading, g.Tracker, TradeRequest{AgentID: agentID, AmountUSD: amount, Pair: req.ProductID}, time.Now())

	case "wallet_transfer":
		var req struct {
			Amount string `json:"amount"`
		}
		_ = json.Unmarshal(args, &req)
		amount, _ := strconv.ParseFloat(req.Amount, 64)
		return CheckTransfer(g.Trading, g.Tracker, TransferRequest{AgentID: agentID, AmountUSD: amount}, time.Now())

	default:
		return DecisionDeny, "human approval required"
	}
}
