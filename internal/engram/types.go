// Package engram implements the three-tier memory system of spec §4.F:
// an in-process sensory ring buffer, a persisted working-memory snapshot,
// and a durable long-term store with hybrid BM25/vector recall. Record
// shapes (Memory, TrustScore, SensoryEntry, WorkingMemorySnapshot) live in
// pkg/models so other packages can reference them without importing the
// recall engine.
package engram

import "github.com/nexuscore/agentrt/pkg/models"

// Candidate is a ranked hit from one retrieval channel (BM25 or vector)
// before fusion.
type Candidate struct {
	Memory *models.Memory
	Rank   int     // 0-based rank within its own channel
	Score  float64 // channel-native score (BM25 score or cosine similarity)
}

// ScoredMemory is a memory after RRF fusion and trim.
type ScoredMemory struct {
	Memory *models.Memory
	Score  float64
}

// QualityMetrics describes how good a recall's results were (spec §4.F
// item 6). Always populated, even for empty result sets.
type QualityMetrics struct {
	NDCG           float64
	AvgRelevance   float64
	LatencyMS      int64
	CandidateCount int
	ReturnedCount  int
	Warnings       []string
}

// RecallResult is the return value of Search: always present, even when
// Memories is empty.
type RecallResult struct {
	Memories []ScoredMemory
	Quality  QualityMetrics
}

// PurgeCounts reports how many records were erased from each tier during
// purge_user (spec §4.F, Article-17-style erasure).
type PurgeCounts struct {
	LongTerm int
	Working  int
	Sensory  int
}
