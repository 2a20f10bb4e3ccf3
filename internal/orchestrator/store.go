// Package orchestrator implements the boss/worker multi-agent layer (spec
// §4.I): the agent directory, the project-scoped and cross-agent message
// buses, and the control tools a boss agent uses to delegate work to
// workers. It sits above internal/agent the way the teacher's
// internal/multiagent sits above internal/agent's Runtime, but follows
// spec §4.H's role-based single Loop instead of the teacher's per-agent
// Runtime-plus-handoff-tool design.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscore/agentrt/pkg/models"
)

// Store is the orchestrator's persistence seam: agent directory, project
// roster, project bus, and cross-agent messaging.
type Store interface {
	RegisterAgent(ctx context.Context, agent *models.Agent) error
	GetAgentRecord(ctx context.Context, agentID string) (*models.Agent, error)
	ListAgentRecords(ctx context.Context) ([]*models.Agent, error)

	CreateProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	SetProjectAgentStatus(ctx context.Context, projectID, agentID, status, currentTask string) error
	AppendProjectMessage(ctx context.Context, msg *models.ProjectMessage) error
	ListProjectMessages(ctx context.Context, projectID string) ([]*models.ProjectMessage, error)

	SendAgentMessage(ctx context.Context, msg *models.AgentMessage) error
	ListAgentMessages(ctx context.Context, agentID string) ([]*models.AgentMessage, error)
	MarkAgentMessageRead(ctx context.Context, id string) error
}

// MemoryStore is an in-process Store, the orchestrator's counterpart to
// internal/sessions.MemoryStore: every accessor clones before returning so
// callers can never mutate state behind the lock.
type MemoryStore struct {
	mu       sync.RWMutex
	agents   map[string]*models.Agent
	projects map[string]*models.Project
	pMsgs    map[string][]*models.ProjectMessage
	aMsgs    map[string][]*models.AgentMessage // keyed by recipient, including "broadcast"
}

// NewMemoryStore returns an empty in-process orchestrator store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents:   make(map[string]*models.Agent),
		projects: make(map[string]*models.Project),
		pMsgs:    make(map[string][]*models.ProjectMessage),
		aMsgs:    make(map[string][]*models.AgentMessage),
	}
}

func (m *MemoryStore) RegisterAgent(ctx context.Context, a *models.Agent) error {
	if a.ID == "" {
		return fmt.Errorf("agent id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	m.agents[a.ID] = cloneAgent(a)
	return nil
}

func (m *MemoryStore) GetAgentRecord(ctx context.Context, agentID string) (*models.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[agentID]
	if !ok {
		return nil, fmt.Errorf("agent not found: %s", agentID)
	}
	return cloneAgent(a), nil
}

func (m *MemoryStore) ListAgentRecords(ctx context.Context) ([]*models.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, cloneAgent(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	m.projects[p.ID] = cloneProject(p)
	return nil
}

func (m *MemoryStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("project not found: %s", id)
	}
	return cloneProject(p), nil
}

func (m *MemoryStore) SetProjectAgentStatus(ctx context.Context, projectID, agentID, status, currentTask string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok {
		return fmt.Errorf("project not found: %s", projectID)
	}
	found := false
	for i := range p.Agents {
		if p.Agents[i].AgentID == agentID {
			p.Agents[i].Status = status
			p.Agents[i].CurrentTask = currentTask
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("agent %s not on project %s", agentID, projectID)
	}
	return nil
}

func (m *MemoryStore) AppendProjectMessage(ctx context.Context, msg *models.ProjectMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[msg.ProjectID]; !ok {
		return fmt.Errorf("project not found: %s", msg.ProjectID)
	}
	m.pMsgs[msg.ProjectID] = append(m.pMsgs[msg.ProjectID], cloneProjectMessage(msg))
	return nil
}

func (m *MemoryStore) ListProjectMessages(ctx context.Context, projectID string) ([]*models.ProjectMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.pMsgs[projectID]
	out := make([]*models.ProjectMessage, len(src))
	for i, msg := range src {
		out[i] = cloneProjectMessage(msg)
	}
	return out, nil
}

// SendAgentMessage persists msg under its recipient's inbox. Recipient
// models.BroadcastRecipient fans out by being listed once under that key;
// ListAgentMessages(agentID) merges the agent's direct inbox with the
// broadcast inbox so every agent sees broadcast traffic (spec §4.I: "To ==
// broadcast is visible in get_agent_messages for every agent id").
func (m *MemoryStore) SendAgentMessage(ctx context.Context, msg *models.AgentMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aMsgs[msg.To] = append(m.aMsgs[msg.To], cloneAgentMessage(msg))
	return nil
}

func (m *MemoryStore) ListAgentMessages(ctx context.Context, agentID string) ([]*models.AgentMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.AgentMessage
	for _, msg := range m.aMsgs[agentID] {
		out = append(out, cloneAgentMessage(msg))
	}
	for _, msg := range m.aMsgs[models.BroadcastRecipient] {
		out = append(out, cloneAgentMessage(msg))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) MarkAgentMessageRead(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inbox := range m.aMsgs {
		for _, msg := range inbox {
			if msg.ID == id {
				msg.Read = true
				return nil
			}
		}
	}
	return fmt.Errorf("agent message not found: %s", id)
}

func cloneAgent(a *models.Agent) *models.Agent {
	out := *a
	if a.Capabilities != nil {
		out.Capabilities = append([]string(nil), a.Capabilities...)
	}
	return &out
}

func cloneProject(p *models.Project) *models.Project {
	out := *p
	if p.Agents != nil {
		out.Agents = make([]models.ProjectAgent, len(p.Agents))
		for i, a := range p.Agents {
			pa := a
			if a.Capabilities != nil {
				pa.Capabilities = append([]string(nil), a.Capabilities...)
			}
			out.Agents[i] = pa
		}
	}
	return &out
}

func cloneProjectMessage(msg *models.ProjectMessage) *models.ProjectMessage {
	out := *msg
	return &out
}

func cloneAgentMessage(msg *models.AgentMessage) *models.AgentMessage {
	out := *msg
	if msg.Metadata != nil {
		meta := make(map[string]any, len(msg.Metadata))
		for k, v := range msg.Metadata {
			meta[k] = v
		}
		out.Metadata = meta
	}
	return &out
}

// ProjectSessionID names the session a delegated worker runs in (spec §4.I:
// "eng-project-{project}-{agent}").
func ProjectSessionID(projectID, agentID string) string {
	return fmt.Sprintf("eng-project-%s-%s", projectID, agentID)
}
