// Package sessions persists agent conversation threads: the Session Store
// of spec §4.G. It backs internal/agent.Loop's SessionStore seam, the soul
// files (agent_files) builtins.SoulStore reads and writes, and
// internal/engram's Tier 1 working-memory snapshot store, since all three
// are "small keyed records scoped to an agent" and the teacher colocates
// exactly this kind of persistence in one package.
package sessions

import (
	"context"

	"github.com/nexuscore/agentrt/pkg/models"
)

// Store is the interface for session and message persistence. It is the
// concrete implementation of internal/agent.SessionStore (GetHistory,
// AppendMessage) plus the session CRUD and lookup operations those two
// methods are built on top of.
type Store interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id string) error

	// GetOrCreate looks up a session by its external correlation key
	// (see models.Session.Key), creating one for agentID if none exists.
	// Used by the Channel Agent Runner to map an inbound thread onto a
	// session idempotently across restarts.
	GetOrCreate(ctx context.Context, key string, agentID string) (*models.Session, error)
	List(ctx context.Context, agentID string, opts ListOptions) ([]*models.Session, error)

	// AppendMessage and GetHistory satisfy internal/agent.SessionStore.
	AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error
	GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error)
}

// ListOptions configures session listing.
type ListOptions struct {
	Limit  int
	Offset int
}

// SessionKey builds the external correlation key a channel adapter passes
// to GetOrCreate, scoping one session per (agent, channel thread).
func SessionKey(agentID, channel, channelThreadID string) string {
	return agentID + ":" + channel + ":" + channelThreadID
}
