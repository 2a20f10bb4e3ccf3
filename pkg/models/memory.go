package models

import "time"

// Memory is a durable long-term record, optionally embedded.
//
// Invariant: Embedding has fixed dimensionality once chosen; memories
// lacking an embedding are searchable by BM25 only (spec §3).
type Memory struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Category   string    `json:"category"`
	Importance float64   `json:"importance"` // 0-10
	AgentID    string    `json:"agent_id,omitempty"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Dimension  int       `json:"dimension,omitempty"`
	Trust      TrustScore `json:"trust"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasEmbedding reports whether m carries a usable vector.
func (m *Memory) HasEmbedding() bool {
	return m != nil && len(m.Embedding) > 0
}

// TrustScore is a four-component relevance proxy attached to recalled memories.
type TrustScore struct {
	Relevance float64 `json:"relevance"`
	Accuracy  float64 `json:"accuracy"`
	Freshness float64 `json:"freshness"`
	Utility   float64 `json:"utility"`
}

// Composite aggregates the four trust components into one scalar used for
// NDCG grading and ranking (spec §3, §4.F step 6).
func (t TrustScore) Composite() float64 {
	return (t.Relevance + t.Accuracy + t.Freshness + t.Utility) / 4.0
}

// SensoryEntry is one turn held in an agent's in-memory ring buffer. Never
// persisted directly (spec §3, Tier 0).
type SensoryEntry struct {
	Input      string
	Output     string
	Timestamp  time.Time
	TokenCount int
	Tag        string
}

// WorkingMemorySnapshot is the per-agent Tier 1 state, saved on agent switch
// and restored on re-entry (spec §3, §4.F Tier 1).
type WorkingMemorySnapshot struct {
	AgentID            string          `json:"agent_id"`
	Slots              []string        `json:"slots"`
	MomentumEmbeddings [][]float32     `json:"momentum_embeddings,omitempty"`
	SavedAt            time.Time       `json:"saved_at"`
}
