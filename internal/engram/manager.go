package engram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscore/agentrt/internal/agent/builtins"
	"github.com/nexuscore/agentrt/internal/engram/quality"
	"github.com/nexuscore/agentrt/internal/tokenizer"
	"github.com/nexuscore/agentrt/pkg/models"
)

// Config tunes the Manager's recall behavior.
type Config struct {
	AutoDetectBalance bool    `yaml:"auto_detect_balance"`
	AutoMinWeight     float64 `yaml:"auto_min_weight"`
	AutoMaxWeight     float64 `yaml:"auto_max_weight"`
	CandidateLimit    int     `yaml:"candidate_limit"`
	DefaultBudget     int     `yaml:"default_budget"`
	SensoryCapacity   int     `yaml:"sensory_capacity"`
}

func (c Config) withDefaults() Config {
	if c.AutoMinWeight == 0 && c.AutoMaxWeight == 0 {
		c.AutoMinWeight, c.AutoMaxWeight = autoMinDefault, autoMaxDefault
	}
	if c.CandidateLimit == 0 {
		c.CandidateLimit = 50
	}
	if c.DefaultBudget == 0 {
		c.DefaultBudget = 2000
	}
	if c.SensoryCapacity == 0 {
		c.SensoryCapacity = 50
	}
	return c
}

// Manager coordinates the three memory tiers and implements
// builtins.MemoryStore so the memory builtin can reach it through that
// narrow seam.
type Manager struct {
	longTerm LongTermStore
	embedder EmbeddingClient // nil disables synchronous embedding + vector recall
	working  *WorkingMemory  // nil disables Tier 1
	tok      *tokenizer.Tokenizer
	config   Config

	sensoryMu sync.Mutex
	sensory   map[string]*SensoryBuffer
}

// NewManager builds a Manager. embedder and working may be nil: without an
// embedder, Store persists content-only memories flagged for backfill and
// Search falls back to BM25-only recall; without a working store, Tier 1
// save/restore is unavailable.
func NewManager(longTerm LongTermStore, embedder EmbeddingClient, working *WorkingMemory, tok *tokenizer.Tokenizer, cfg Config) *Manager {
	if tok == nil {
		tok = tokenizer.New(tokenizer.KindHeuristic)
	}
	return &Manager{
		longTerm: longTerm,
		embedder: embedder,
		working:  working,
		tok:      tok,
		config:   cfg.withDefaults(),
		sensory:  make(map[string]*SensoryBuffer),
	}
}

// Sensory returns the Tier 0 buffer for agentID, creating it on first use.
func (m *Manager) Sensory(agentID string) *SensoryBuffer {
	m.sensoryMu.Lock()
	defer m.sensoryMu.Unlock()

	buf, ok := m.sensory[agentID]
	if !ok {
		buf = NewSensoryBuffer(agentID, m.config.SensoryCapacity, m.tok)
		m.sensory[agentID] = buf
	}
	return buf
}

// Working exposes the Tier 1 snapshot store, or nil if none was wired.
func (m *Manager) Working() *WorkingMemory { return m.working }

// Store persists a long-term memory, embedding it synchronously when an
// embedder is configured; otherwise it is stored without an embedding and
// becomes a backfill_embeddings() candidate.
func (m *Manager) Store(ctx context.Context, content, category string, importance float64, agentID string) (string, error) {
	now := time.Now()
	mem := &models.Memory{
		ID:         uuid.New().String(),
		AgentID:    agentID,
		Content:    content,
		Category:   category,
		Importance: importance,
		CreatedAt:  now,
		UpdatedAt:  now,
		Trust:      initialTrust(importance),
	}

	if m.embedder != nil {
		embedding, err := m.embedder.Embed(ctx, content)
		if err != nil {
			return "", fmt.Errorf("embed memory: %w", err)
		}
		mem.Embedding = embedding
	}

	if err := m.longTerm.Insert(ctx, mem); err != nil {
		return "", fmt.Errorf("insert memory: %w", err)
	}
	return mem.ID, nil
}

// Search runs the full hybrid recall pipeline of spec §4.F: intent
// classification, text/vector balance, RRF fusion, budget trim, and
// quality scoring. Always returns a RecallResult, even with zero matches.
func (m *Manager) Search(ctx context.Context, query string, limit int, threshold float64, agentID string) (*RecallResult, error) {
	start := time.Now()

	dist := ClassifyIntent(query)
	_ = DeriveSignalWeights(dist) // not consumed: FuseRRF weights by textWeight
	textWeight := TextWeight(query, m.config.AutoDetectBalance, m.config.AutoMinWeight, m.config.AutoMaxWeight)

	candidateLimit := m.config.CandidateLimit
	if limit > 0 && limit*3 > candidateLimit {
		candidateLimit = limit * 3
	}

	bm25, err := m.longTerm.CandidatesBM25(ctx, agentID, query, candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("bm25 candidates: %w", err)
	}

	var vector []Candidate
	if m.embedder != nil {
		queryEmbedding, err := m.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		vector, err = m.longTerm.CandidatesVector(ctx, agentID, queryEmbedding, candidateLimit)
		if err != nil {
			return nil, fmt.Errorf("vector candidates: %w", err)
		}
		if threshold > 0 {
			vector = filterByThreshold(vector, threshold)
		}
	}

	fused := FuseRRF(bm25, vector, textWeight)
	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}

	budget := m.config.DefaultBudget
	trimmed, exhausted := TrimToBudget(fused, budget, func(mem *models.Memory) int {
		return m.tok.CountTokens(mem.Content)
	})

	graded := make([]quality.Graded, len(trimmed))
	for i, sm := range trimmed {
		graded[i] = quality.Graded{Relevance: recallTrust(sm.Memory).Composite()}
	}

	latencyMS := time.Since(start).Milliseconds()
	qm := quality.Compute(graded, len(fused), latencyMS, exhausted)

	return &RecallResult{
		Memories: trimmed,
		Quality: QualityMetrics{
			NDCG:           qm.NDCG,
			AvgRelevance:   qm.AvgRelevance,
			LatencyMS:      latencyMS,
			CandidateCount: qm.CandidateCount,
			ReturnedCount:  qm.ReturnedCount,
			Warnings:       qm.Warnings,
		},
	}, nil
}

func filterByThreshold(candidates []Candidate, threshold float64) []Candidate {
	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= threshold {
			kept = append(kept, c)
		}
	}
	return kept
}

// initialTrust seeds a freshly stored memory's TrustScore: relevance from
// the caller-supplied importance, freshness at its maximum (just created),
// and accuracy/utility at a neutral midpoint until a corroboration or
// usage signal exists to inform them.
func initialTrust(importance float64) models.TrustScore {
	return models.TrustScore{
		Relevance: clampUnit(importance),
		Accuracy:  0.5,
		Freshness: 1.0,
		Utility:   0.5,
	}
}

// recallTrust refreshes a memory's Freshness component against its age at
// query time; Relevance/Accuracy/Utility are carried from the stored
// TrustScore, falling back to initialTrust's defaults for memories
// persisted before this field existed.
func recallTrust(mem *models.Memory) models.TrustScore {
	age := time.Since(mem.CreatedAt)
	trust := mem.Trust
	if trust.Relevance == 0 && trust.Accuracy == 0 && trust.Utility == 0 {
		trust = initialTrust(mem.Importance)
	}
	trust.Freshness = 1.0 / (1.0 + age.Hours()/(14*24))
	return trust
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// BackfillEmbeddings embeds any memory stored without one, in batches, and
// persists the result. Returns the count backfilled. A no-op (0, nil) when
// no embedder is configured.
func (m *Manager) BackfillEmbeddings(ctx context.Context) (int, error) {
	if m.embedder == nil {
		return 0, nil
	}

	missing, err := m.longTerm.MissingEmbeddings(ctx, m.config.CandidateLimit)
	if err != nil {
		return 0, fmt.Errorf("list missing embeddings: %w", err)
	}

	backfilled := 0
	for _, mem := range missing {
		embedding, err := m.embedder.Embed(ctx, mem.Content)
		if err != nil {
			return backfilled, fmt.Errorf("embed memory %s: %w", mem.ID, err)
		}
		if err := m.longTerm.UpdateEmbedding(ctx, mem.ID, embedding); err != nil {
			return backfilled, fmt.Errorf("update embedding %s: %w", mem.ID, err)
		}
		backfilled++
	}
	return backfilled, nil
}

// PurgeUser erases every record for the given agent identifiers across all
// three tiers (Article-17-style erasure, spec §4.F).
func (m *Manager) PurgeUser(ctx context.Context, identifiers []string) (PurgeCounts, error) {
	longTermCount, err := m.longTerm.DeleteByAgent(ctx, identifiers)
	if err != nil {
		return PurgeCounts{}, fmt.Errorf("purge long-term memories: %w", err)
	}

	workingCount := 0
	if m.working != nil {
		for _, id := range identifiers {
			if err := m.working.Purge(ctx, id); err == nil {
				workingCount++
			}
		}
	}

	sensoryCount := 0
	m.sensoryMu.Lock()
	for _, id := range identifiers {
		if _, ok := m.sensory[id]; ok {
			delete(m.sensory, id)
			sensoryCount++
		}
	}
	m.sensoryMu.Unlock()

	return PurgeCounts{LongTerm: longTermCount, Working: workingCount, Sensory: sensoryCount}, nil
}

// StoreMemory implements builtins.MemoryStore.
func (m *Manager) StoreMemory(ctx context.Context, agentID, content, category string, importance float64) (string, error) {
	return m.Store(ctx, content, category, importance, agentID)
}

// SearchMemory implements builtins.MemoryStore.
func (m *Manager) SearchMemory(ctx context.Context, agentID, query string, topK int) ([]builtins.MemoryResult, error) {
	result, err := m.Search(ctx, query, topK, 0, agentID)
	if err != nil {
		return nil, err
	}

	out := make([]builtins.MemoryResult, len(result.Memories))
	for i, sm := range result.Memories {
		out[i] = builtins.MemoryResult{
			Content:    sm.Memory.Content,
			Category:   sm.Memory.Category,
			Importance: sm.Memory.Importance,
			Score:      sm.Score,
		}
	}
	return out, nil
}
