package agent

import (
	"github.com/nexuscore/agentrt/pkg/models"
)

// MissingResultPlaceholder is what the reconciliation repair synthesizes for
// a tool_call_id that never received a matching tool message (spec §4.H).
const MissingResultPlaceholder = "(no result)"

// CanceledPlaceholder is the marker for a tool call that was in flight when
// the round was canceled. The round loop does not write it: a canceled tool
// call's tool message carries whatever output the dispatcher returned.
const CanceledPlaceholder = "(cancelled)"

// ReconcileTranscript enforces the reconciliation invariant: every
// tool_call_id introduced by an assistant message must have a matching tool
// message before the next assistant message. Missing matches are repaired
// by synthesizing a "(no result)" tool message immediately before the
// message that would otherwise violate the invariant. This is what makes
// the loop safe to resume after interruption.
func ReconcileTranscript(history []*models.Message) []*models.Message {
	if len(history) == 0 {
		return history
	}

	repaired := make([]*models.Message, 0, len(history))
	var pending []string // tool_call_ids introduced by the most recent assistant message

	flushPending := func() {
		for _, id := range pending {
			repaired = append(repaired, &models.Message{
				Role:       models.RoleTool,
				ToolCallID: id,
				Content:    MissingResultPlaceholder,
			})
		}
		pending = nil
	}

	for _, msg := range history {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case models.RoleAssistant:
			flushPending()
			repaired = append(repaired, msg)
			for _, tc := range msg.ToolCalls {
				if tc.ID != "" {
					pending = append(pending, tc.ID)
				}
			}
		case models.RoleTool:
			pending = removeToolCallID(pending, msg.ToolCallID)
			repaired = append(repaired, msg)
		default:
			flushPending()
			repaired = append(repaired, msg)
		}
	}
	flushPending()

	return repaired
}

func removeToolCallID(ids []string, target string) []string {
	for i, id := range ids {
		if id == target {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
