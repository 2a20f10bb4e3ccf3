package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nexuscore/agentrt/internal/agent"
	"github.com/nexuscore/agentrt/internal/sessions"
	"github.com/nexuscore/agentrt/pkg/models"
)

// ReportPayload is report_progress's argument shape, recovered from the
// latest project-bus message the worker posted.
type ReportPayload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Output  string `json:"output"`
}

// DelegationResult is delegate_task's outcome: the underlying Loop result
// plus, when the worker reported progress, its parsed payload.
type DelegationResult struct {
	Loop   *agent.RunResult
	Report *ReportPayload
}

// Delegator spawns a worker-role Agent Loop run in its own project session
// and blocks until it terminates (spec §4.I). It shares the boss's Loop
// wiring (provider, registry, dispatcher, usage tracker) rather than
// constructing a second one, so budget/cost accounting stays unified across
// boss and worker rounds.
type Delegator struct {
	Loop          *agent.Loop
	Sessions      sessions.Store
	Store         Store
	DefaultPrompt string
	DefaultModel  string
	WorkerBuiltins []agent.Tool
}

// Delegate runs workerAgentID through a Worker-role loop on task,
// creating the project and worker session on first use.
func (d *Delegator) Delegate(ctx context.Context, projectID, bossID, workerAgentID, task, taskContext string) (*DelegationResult, error) {
	if _, err := d.Store.GetProject(ctx, projectID); err != nil {
		if cerr := d.Store.CreateProject(ctx, &models.Project{ID: projectID, BossID: bossID, Status: "active"}); cerr != nil {
			return nil, fmt.Errorf("create project: %w", cerr)
		}
	}

	worker, err := d.Store.GetAgentRecord(ctx, workerAgentID)
	if err != nil {
		return nil, fmt.Errorf("unknown worker agent %q: %w", workerAgentID, err)
	}

	sessionID := ProjectSessionID(projectID, workerAgentID)
	if _, err := d.Sessions.GetOrCreate(ctx, sessionID, workerAgentID); err != nil {
		return nil, fmt.Errorf("create worker session: %w", err)
	}

	model := worker.ModelOverride
	if model == "" {
		model = d.DefaultModel
	}

	preamble := task
	if taskContext != "" {
		preamble = task + "\n\nContext:\n" + taskContext
	}

	runCtx := WithProjectID(ctx, projectID)
	result, err := d.Loop.Run(runCtx, agent.RunInput{
		SessionID: sessionID,
		TenantID:  bossID,
		Agent:     worker,
		Role:      agent.RoleWorker,
		Model:     model,
		SystemPrompt: agent.SystemPromptSections{
			DefaultPrompt: d.DefaultPrompt,
			RolePreamble:  agent.WorkerPreamble(preamble),
		},
		IncomingMsg: &models.Message{
			SessionID: sessionID,
			Role:      models.RoleUser,
			Content:   task,
			CreatedAt: time.Now(),
		},
		Builtins: d.WorkerBuiltins,
	})
	if err != nil {
		return nil, fmt.Errorf("run worker loop: %w", err)
	}

	report := d.latestReport(ctx, projectID, workerAgentID)
	return &DelegationResult{Loop: result, Report: report}, nil
}

// latestReport returns the most recent report_progress payload the worker
// posted to the project bus, if any.
func (d *Delegator) latestReport(ctx context.Context, projectID, workerAgentID string) *ReportPayload {
	msgs, err := d.Store.ListProjectMessages(ctx, projectID)
	if err != nil {
		return nil
	}
	var latest *models.ProjectMessage
	for _, msg := range msgs {
		if msg.From != workerAgentID {
			continue
		}
		if msg.Kind != models.ProjectMsgProgress && msg.Kind != models.ProjectMsgResult {
			continue
		}
		if latest == nil || msg.CreatedAt.After(latest.CreatedAt) {
			latest = msg
		}
	}
	if latest == nil {
		return nil
	}
	var payload ReportPayload
	if err := json.Unmarshal([]byte(latest.Content), &payload); err != nil {
		return nil
	}
	return &payload
}
