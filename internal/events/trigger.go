// Package events implements the Event Dispatcher (spec §4.J): it matches
// inbound webhook and agent-message events against task event triggers and
// fans matches out to internal/tasks execution. There is no cron event
// type; cron-due tasks are run by internal/tasks.Scheduler, not through
// this package.
package events

import (
	"strings"

	"github.com/nexuscore/agentrt/pkg/models"
)

// Trigger is a task's event_trigger column decoded: the event type it
// watches for, plus optional filter fields checked against the
// corresponding event field when present (spec §4.J step 2): Path as a
// substring, the others by equality.
type Trigger struct {
	Type    models.EngineEventType `json:"type"`
	Path    string                 `json:"path,omitempty"`
	AgentID string                 `json:"agent_id,omitempty"`
	Channel string                 `json:"channel,omitempty"`
	From    string                 `json:"from,omitempty"`
	To      string                 `json:"to,omitempty"`
}

// Matches reports whether ev satisfies t: the type must match exactly; Path
// is a substring match against the inbound path (a trigger path of
// "/deploy" fires for a webhook delivered to "/webhook/deploy"), and every
// other non-empty filter field on t must equal the same field on ev.
func (t Trigger) Matches(ev models.EngineEvent) bool {
	if t.Type != ev.Type {
		return false
	}
	if t.Path != "" && !strings.Contains(ev.Path, t.Path) {
		return false
	}
	if t.AgentID != "" && t.AgentID != ev.AgentID {
		return false
	}
	if t.Channel != "" && t.Channel != ev.Channel {
		return false
	}
	if t.From != "" && t.From != ev.From {
		return false
	}
	if t.To != "" && t.To != ev.To {
		return false
	}
	return true
}
