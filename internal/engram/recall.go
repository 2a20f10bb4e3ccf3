package engram

import (
	"regexp"
	"sort"
	"strings"

	"github.com/nexuscore/agentrt/pkg/models"
)

// Intent is one of the six deterministic query-intent buckets classified
// by keyword heuristic (spec §4.F item 1).
type Intent string

const (
	IntentFactual     Intent = "factual"
	IntentProcedural  Intent = "procedural"
	IntentCausal      Intent = "causal"
	IntentEpisodic    Intent = "episodic"
	IntentExploratory Intent = "exploratory"
	IntentReflective  Intent = "reflective"
)

// IntentDistribution is a probability distribution over Intent summing to 1.
type IntentDistribution map[Intent]float64

// SignalWeights are the recall signal weights derived from an
// IntentDistribution. None of the five feeds the current RRF fusion
// (FuseRRF weights its lists by textWeight); all five are carried so a
// rerank/fusion strategy can read them without a pipeline signature change
// (spec §4.F item 4: "future strategies plug in without changing the
// pipeline signature").
type SignalWeights struct {
	BM25      float64
	Vector    float64
	Graph     float64
	Temporal  float64
	Emotional float64
}

var intentKeywords = map[Intent][]string{
	IntentFactual:     {"what is", "who is", "when did", "define", "how many"},
	IntentProcedural:  {"how do i", "how to", "steps to", "walk me through"},
	IntentCausal:      {"why", "because", "caused", "reason for"},
	IntentEpisodic:    {"remember when", "last time", "previously", "earlier"},
	IntentExploratory: {"explore", "brainstorm", "what if", "ideas for"},
	IntentReflective:  {"what do you think", "should i", "opinion on", "evaluate"},
}

// ClassifyIntent produces a deterministic probability distribution over the
// six intents by keyword matching, falling back to the spec's default mix
// (factual=0.3, exploratory=0.3, remainder split evenly) when nothing
// matches.
func ClassifyIntent(query string) IntentDistribution {
	q := strings.ToLower(query)
	hits := map[Intent]int{}
	total := 0
	for intent, keywords := range intentKeywords {
		for _, kw := range keywords {
			if strings.Contains(q, kw) {
				hits[intent]++
				total++
			}
		}
	}

	if total == 0 {
		return IntentDistribution{
			IntentFactual:     0.3,
			IntentExploratory: 0.3,
			IntentProcedural:  0.1,
			IntentCausal:      0.1,
			IntentEpisodic:    0.1,
			IntentReflective:  0.1,
		}
	}

	dist := make(IntentDistribution, len(hits))
	for intent, count := range hits {
		dist[intent] = float64(count) / float64(total)
	}
	return dist
}

// DeriveSignalWeights maps an intent distribution onto recall signal
// weights. Factual/episodic intent favor lexical (BM25) matching;
// exploratory/causal/reflective favor semantic (vector) matching.
func DeriveSignalWeights(dist IntentDistribution) SignalWeights {
	bm25 := dist[IntentFactual]*0.7 + dist[IntentEpisodic]*0.6 + dist[IntentProcedural]*0.4
	vector := dist[IntentExploratory]*0.7 + dist[IntentCausal]*0.6 + dist[IntentReflective]*0.6

	return SignalWeights{
		BM25:      bm25,
		Vector:    vector,
		Graph:     dist[IntentCausal] * 0.3,
		Temporal:  dist[IntentEpisodic] * 0.5,
		Emotional: dist[IntentReflective] * 0.4,
	}
}

const (
	textWeightBase = 0.5
	autoMinDefault = 0.2
	autoMaxDefault = 0.8
)

var (
	factualTokenPattern = regexp.MustCompile(`[/\\]|\d|[A-Z][a-z]+[A-Z]|\b[A-Z]{2,}\b`)
	quotedPattern       = regexp.MustCompile(`["'].*["']`)
)

// TextWeight computes the auto-detected text/vector balance of spec §4.F
// item 2. When autoDetect is false, base is returned unchanged (clamped).
func TextWeight(query string, autoDetect bool, autoMin, autoMax float64) float64 {
	if autoMin == 0 && autoMax == 0 {
		autoMin, autoMax = autoMinDefault, autoMaxDefault
	}
	if !autoDetect {
		return clamp(textWeightBase, autoMin, autoMax)
	}

	factual := countFactualSignals(query)
	conceptual := countConceptualSignals(query)

	weight := textWeightBase + 0.08*float64(factual) - 0.06*float64(conceptual)
	return clamp(weight, autoMin, autoMax)
}

func countFactualSignals(query string) int {
	count := 0
	words := strings.Fields(query)
	if strings.ContainsAny(query, "/\\") {
		count++
	}
	if strings.ContainsAny(query, "0123456789") {
		count++
	}
	if quotedPattern.MatchString(query) {
		count++
	}
	if len(words) <= 3 {
		count++
	}
	for _, w := range words {
		if isCamelOrAllCaps(w) {
			count++
			break
		}
	}
	return count
}

func isCamelOrAllCaps(w string) bool {
	hasUpper, hasLower := false, false
	allUpper := true
	for _, r := range w {
		if r >= 'A' && r <= 'Z' {
			hasUpper = true
		} else if r >= 'a' && r <= 'z' {
			hasLower = true
			allUpper = false
		} else {
			allUpper = false
		}
	}
	if len(w) >= 2 && allUpper {
		return true
	}
	return hasUpper && hasLower
}

var conceptualPhrases = []string{"how", "why", "explain", "what is", "describe", "tell me about", "overview", "summary"}

func countConceptualSignals(query string) int {
	q := strings.ToLower(query)
	count := 0
	for _, phrase := range conceptualPhrases {
		if strings.Contains(q, phrase) {
			count++
		}
	}
	if len(strings.Fields(query)) > 8 {
		count++
	}
	return count
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// rrfK is the reciprocal-rank-fusion smoothing constant of spec §4.F
// item 3.
const rrfK = 60

// FuseRRF combines BM25 and vector candidate rankings with weighted
// reciprocal-rank fusion:
//
//	score(id) += textWeight/(k+rank_bm25+1) + (1-textWeight)/(k+rank_vec+1)
//
// Memories appearing in only one channel are scored from that channel
// alone. Results are sorted by descending fused score.
func FuseRRF(bm25, vector []Candidate, textWeight float64) []ScoredMemory {
	scores := make(map[string]float64)
	memories := make(map[string]*models.Memory)

	for _, c := range bm25 {
		scores[c.Memory.ID] += textWeight / float64(rrfK+c.Rank+1)
		memories[c.Memory.ID] = c.Memory
	}
	for _, c := range vector {
		scores[c.Memory.ID] += (1 - textWeight) / float64(rrfK+c.Rank+1)
		memories[c.Memory.ID] = c.Memory
	}

	fused := make([]ScoredMemory, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, ScoredMemory{Memory: memories[id], Score: score})
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].Memory.ID < fused[j].Memory.ID
	})

	return fused
}

// TrimToBudget accepts ranked results greedily until tokenBudget is
// exhausted (the "knapsack-light" trim of spec §4.F item 5). tokenCost
// estimates a memory's size; it is a parameter so callers can supply a
// real tokenizer without this package depending on one.
func TrimToBudget(ranked []ScoredMemory, tokenBudget int, tokenCost func(*models.Memory) int) ([]ScoredMemory, bool) {
	if tokenBudget <= 0 {
		return nil, len(ranked) > 0
	}

	var kept []ScoredMemory
	remaining := tokenBudget
	exhausted := false
	for _, sm := range ranked {
		cost := tokenCost(sm.Memory)
		if cost > remaining {
			exhausted = true
			continue
		}
		kept = append(kept, sm)
		remaining -= cost
	}
	return kept, exhausted
}
