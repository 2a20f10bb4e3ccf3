package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/nexuscore/agentrt/internal/agent"
	"github.com/nexuscore/agentrt/pkg/models"
)

// Executor runs a task's prompt through the agent loop, grounded on the
// teacher's tasks.Executor interface but simplified to the spec's
// single-fan-out-per-run shape (no retry/lock bookkeeping of its own —
// that belongs to the Scheduler/Dispatcher callers).
type Executor interface {
	Execute(ctx context.Context, task *models.Task) error
}

// LoopExecutor fans a task out to every assigned agent by running one
// Chat-role Agent Loop turn per agent, in a session derived from the task
// (spec §4.J step 3: "spawn the task execution, which fans out to assigned
// agents and runs the agent loop in their sessions").
type LoopExecutor struct {
	Loop          *agent.Loop
	DefaultPrompt string
	DefaultModel  string
	Builtins      []agent.Tool
}

func NewLoopExecutor(loop *agent.Loop, defaultPrompt, defaultModel string, builtins []agent.Tool) *LoopExecutor {
	return &LoopExecutor{Loop: loop, DefaultPrompt: defaultPrompt, DefaultModel: defaultModel, Builtins: builtins}
}

var _ Executor = (*LoopExecutor)(nil)

func (e *LoopExecutor) Execute(ctx context.Context, task *models.Task) error {
	agentIDs := task.AssignedAgents
	if len(agentIDs) == 0 && task.AssignedAgent != "" {
		agentIDs = []string{task.AssignedAgent}
	}
	if len(agentIDs) == 0 {
		return fmt.Errorf("task %s has no assigned agent", task.ID)
	}

	for _, agentID := range agentIDs {
		sessionID := task.SessionID
		if sessionID == "" {
			sessionID = fmt.Sprintf("task-%s-%s", task.ID, agentID)
		}
		_, err := e.Loop.Run(ctx, agent.RunInput{
			SessionID: sessionID,
			Agent:     &models.Agent{ID: agentID},
			Role:      agent.RoleChat,
			Model:     e.DefaultModel,
			SystemPrompt: agent.SystemPromptSections{
				DefaultPrompt: e.DefaultPrompt,
			},
			IncomingMsg: &models.Message{
				SessionID: sessionID,
				Role:      models.RoleUser,
				Content:   task.Description,
				CreatedAt: time.Now(),
			},
			Builtins: e.Builtins,
		})
		if err != nil {
			return fmt.Errorf("run task %s for agent %s: %w", task.ID, agentID, err)
		}
	}
	return nil
}
