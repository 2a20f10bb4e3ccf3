// Package quality scores a hybrid-recall result set: NDCG against each
// memory's trust composite as graded relevance, average relevance, and the
// warning conditions spec §4.F item 6 names.
package quality

import "math"

// Graded is one ranked result's relevance grade (0..1) for NDCG purposes.
// The caller supplies TrustScore.Composite() as the grade.
type Graded struct {
	Relevance float64
}

// Metrics is the quality record attached to every RecallResult, populated
// even when Graded is empty.
type Metrics struct {
	NDCG           float64
	AvgRelevance   float64
	CandidateCount int
	ReturnedCount  int
	Warnings       []string
}

// Compute scores a ranked result list. latencyMS and budgetExhausted are
// supplied by the caller since they depend on pipeline state quality
// doesn't otherwise see.
func Compute(ranked []Graded, candidateCount int, latencyMS int64, budgetExhausted bool) Metrics {
	m := Metrics{
		CandidateCount: candidateCount,
		ReturnedCount:  len(ranked),
		NDCG:           ndcg(ranked),
		AvgRelevance:   avgRelevance(ranked),
	}

	if m.NDCG < 0.4 && len(ranked) > 1 {
		m.Warnings = append(m.Warnings, "low NDCG: ranking may not reflect relevance")
	}
	if m.AvgRelevance < 0.3 && len(ranked) > 0 {
		m.Warnings = append(m.Warnings, "low average relevance across returned memories")
	}
	if latencyMS > 1000 {
		m.Warnings = append(m.Warnings, "recall latency exceeded 1000ms")
	}
	if candidateCount > 0 && budgetExhausted {
		m.Warnings = append(m.Warnings, "candidates found but token budget exhausted before inclusion")
	}

	return m
}

// ndcg computes normalized discounted cumulative gain with a
// log2(rank+2) discount, using the ideal ordering (sorted by relevance
// descending) as the normalizer.
func ndcg(ranked []Graded) float64 {
	if len(ranked) == 0 {
		return 0
	}

	dcg := 0.0
	for rank, g := range ranked {
		dcg += g.Relevance / math.Log2(float64(rank)+2)
	}

	ideal := make([]Graded, len(ranked))
	copy(ideal, ranked)
	for i := 1; i < len(ideal); i++ {
		for j := i; j > 0 && ideal[j].Relevance > ideal[j-1].Relevance; j-- {
			ideal[j], ideal[j-1] = ideal[j-1], ideal[j]
		}
	}

	idcg := 0.0
	for rank, g := range ideal {
		idcg += g.Relevance / math.Log2(float64(rank)+2)
	}

	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

func avgRelevance(ranked []Graded) float64 {
	if len(ranked) == 0 {
		return 0
	}
	sum := 0.0
	for _, g := range ranked {
		sum += g.Relevance
	}
	return sum / float64(len(ranked))
}
