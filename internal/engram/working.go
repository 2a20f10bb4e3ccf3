package engram

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nexuscore/agentrt/pkg/models"
)

// snapshotWire is the JSON-on-disk shape for models.WorkingMemorySnapshot.
// Field order is fixed by the struct tags below, giving deterministic
// serialization (spec §4.F Tier 1 requirement b).
type snapshotWire struct {
	AgentID            string      `json:"agent_id"`
	Slots              []string    `json:"slots"`
	MomentumEmbeddings [][]float32 `json:"momentum_embeddings,omitempty"`
	SavedAt            time.Time   `json:"saved_at"`
}

func toWire(s *models.WorkingMemorySnapshot) *snapshotWire {
	return &snapshotWire{
		AgentID:            s.AgentID,
		Slots:              s.Slots,
		MomentumEmbeddings: s.MomentumEmbeddings,
		SavedAt:            s.SavedAt,
	}
}

func fromWire(w *snapshotWire) *models.WorkingMemorySnapshot {
	return &models.WorkingMemorySnapshot{
		AgentID:            w.AgentID,
		Slots:              w.Slots,
		MomentumEmbeddings: w.MomentumEmbeddings,
		SavedAt:            w.SavedAt,
	}
}

// snapshotBytes serializes a snapshot deterministically.
func snapshotBytes(s *models.WorkingMemorySnapshot) ([]byte, error) {
	return json.Marshal(toWire(s))
}

// ParseWorkingMemorySnapshot restores a snapshot from its serialized form.
func ParseWorkingMemorySnapshot(data []byte) (*models.WorkingMemorySnapshot, error) {
	var w snapshotWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse working memory snapshot: %w", err)
	}
	return fromWire(&w), nil
}

// WorkingMemoryStore is the persistence seam Tier 1 snapshots are saved
// through (backed by internal/sessions, keyed by agent id).
type WorkingMemoryStore interface {
	SaveWorkingMemory(ctx context.Context, agentID string, data []byte) error
	LoadWorkingMemory(ctx context.Context, agentID string) ([]byte, bool, error)
	DeleteWorkingMemory(ctx context.Context, agentID string) error
}

// WorkingMemory saves and restores Tier 1 snapshots through a
// WorkingMemoryStore, enforcing the snapshot shape on top of the raw byte
// persistence the store provides.
type WorkingMemory struct {
	store WorkingMemoryStore
}

func NewWorkingMemory(store WorkingMemoryStore) *WorkingMemory {
	return &WorkingMemory{store: store}
}

// Save persists snapshot for agentID, overwriting any prior snapshot.
// SavedAt is stamped with the current time if the caller left it zero.
func (w *WorkingMemory) Save(ctx context.Context, snapshot *models.WorkingMemorySnapshot) error {
	if snapshot.SavedAt.IsZero() {
		snapshot.SavedAt = time.Now()
	}
	data, err := snapshotBytes(snapshot)
	if err != nil {
		return err
	}
	return w.store.SaveWorkingMemory(ctx, snapshot.AgentID, data)
}

// Restore loads agentID's snapshot, if any. Restoring twice with no
// intervening Save returns an identical snapshot (idempotent; spec §8
// round-trip: identity modulo SavedAt, which here is preserved verbatim
// across restores since only Save re-stamps it).
func (w *WorkingMemory) Restore(ctx context.Context, agentID string) (*models.WorkingMemorySnapshot, bool, error) {
	data, found, err := w.store.LoadWorkingMemory(ctx, agentID)
	if err != nil || !found {
		return nil, found, err
	}
	snapshot, err := ParseWorkingMemorySnapshot(data)
	if err != nil {
		return nil, false, err
	}
	return snapshot, true, nil
}

// Purge deletes agentID's snapshot.
func (w *WorkingMemory) Purge(ctx context.Context, agentID string) error {
	return w.store.DeleteWorkingMemory(ctx, agentID)
}
