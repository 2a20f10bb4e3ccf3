package engram

import (
	"context"

	"github.com/nexuscore/agentrt/pkg/models"
)

// EmbeddingClient embeds text for the long-term store. Mirrors the
// teacher's embeddings.Provider seam (internal/memory/embeddings) but
// narrowed to the single method the store needs.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// LongTermStore is the SQL-shaped (spec §7) persistence seam for Tier 2.
// BM25 and vector retrieval are kept as separate candidate channels so the
// hybrid recall pipeline can fuse them itself (spec §4.F item 3) rather
// than delegating fusion to the backend, the way the teacher's
// backend.Backend.SearchModeHybrid does.
type LongTermStore interface {
	Insert(ctx context.Context, m *models.Memory) error

	// CandidatesBM25 returns up to limit lexical matches for query, ranked
	// by BM25 score descending (Rank 0 = best).
	CandidatesBM25(ctx context.Context, agentID, query string, limit int) ([]Candidate, error)

	// CandidatesVector returns up to limit nearest neighbors of embedding
	// by cosine similarity descending (Rank 0 = best). Memories with no
	// embedding are never returned here.
	CandidatesVector(ctx context.Context, agentID string, embedding []float32, limit int) ([]Candidate, error)

	// MissingEmbeddings lists memories stored without an embedding,
	// for backfill_embeddings().
	MissingEmbeddings(ctx context.Context, limit int) ([]*models.Memory, error)

	// UpdateEmbedding persists a backfilled embedding for id.
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error

	// DeleteByAgent removes every long-term memory for the given agent
	// identifiers (purge_user), returning the count removed.
	DeleteByAgent(ctx context.Context, agentIDs []string) (int, error)
}
