package engram

import (
	"strings"
	"sync"
	"time"

	"github.com/nexuscore/agentrt/internal/tokenizer"
	"github.com/nexuscore/agentrt/pkg/models"
)

// SensoryBuffer is the bounded, in-process, per-agent ring buffer of
// spec §4.F Tier 0. Never persisted — it exists only for the lifetime of
// the process.
type SensoryBuffer struct {
	agentID  string
	capacity int
	tok      *tokenizer.Tokenizer

	mu       sync.Mutex
	entries  []models.SensoryEntry
	totalTok int
}

// NewSensoryBuffer builds a ring buffer holding at most capacity entries
// for one agent.
func NewSensoryBuffer(agentID string, capacity int, tok *tokenizer.Tokenizer) *SensoryBuffer {
	if capacity <= 0 {
		capacity = 50
	}
	if tok == nil {
		tok = tokenizer.New(tokenizer.KindHeuristic)
	}
	return &SensoryBuffer{agentID: agentID, capacity: capacity, tok: tok}
}

// Push appends an input/output pair, evicting the oldest entry once the
// buffer is at capacity.
func (b *SensoryBuffer) Push(input, output, tag string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry := models.SensoryEntry{
		Input:      input,
		Output:     output,
		Timestamp:  time.Now(),
		Tag:        tag,
		TokenCount: b.tok.CountTokens(input) + b.tok.CountTokens(output),
	}

	if len(b.entries) >= b.capacity {
		evicted := b.entries[0]
		b.entries = b.entries[1:]
		b.totalTok -= evicted.TokenCount
	}
	b.entries = append(b.entries, entry)
	b.totalTok += entry.TokenCount
}

// TotalTokens reports the estimated token size of every entry currently
// held (spec §8 invariant 7: equal to the sum of live entries' TokenCount).
func (b *SensoryBuffer) TotalTokens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalTok
}

// FormatForContext renders as many of the newest entries as fit within
// budget tokens, working backward from the newest entry and breaking only
// at message boundaries, then restoring chronological order.
func (b *SensoryBuffer) FormatForContext(budget int) string {
	selected := b.drainWithinBudget(budget)
	if len(selected) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, entry := range selected {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("User: ")
		sb.WriteString(entry.Input)
		if entry.Output != "" {
			sb.WriteString("\nAssistant: ")
			sb.WriteString(entry.Output)
		}
	}
	return sb.String()
}

// DrainWithinBudget returns the newest entries that fit within budget
// tokens, in chronological order.
func (b *SensoryBuffer) DrainWithinBudget(budget int) []models.SensoryEntry {
	return b.drainWithinBudget(budget)
}

func (b *SensoryBuffer) drainWithinBudget(budget int) []models.SensoryEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if budget <= 0 || len(b.entries) == 0 {
		return nil
	}

	var picked []models.SensoryEntry
	remaining := budget
	for i := len(b.entries) - 1; i >= 0; i-- {
		entry := b.entries[i]
		if entry.TokenCount > remaining {
			break
		}
		picked = append(picked, entry)
		remaining -= entry.TokenCount
	}

	// picked is newest-first; reverse to chronological order.
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked
}

// Len reports the number of entries currently held.
func (b *SensoryBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
