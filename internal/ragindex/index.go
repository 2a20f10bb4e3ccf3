// Package ragindex implements the Tool-RAG Index (spec §4.D): the large
// tool corpus is embedded lazily, domain-tagged, and resolved on demand by
// the dispatcher's request_tools(query, domain?) tool rather than being
// offered to the model in full every round.
package ragindex

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nexuscore/agentrt/internal/agent"
	"github.com/nexuscore/agentrt/internal/storage"
)

// DefaultTopK is the number of tools a query-based lookup returns absent a
// domain hint (spec §4.D).
const DefaultTopK = 6

var _ agent.ToolCorpus = (*Index)(nil)

// EmbeddingClient embeds text for tool corpus entries and queries. Mirrors
// internal/engram's seam of the same name, narrowed and re-declared here so
// the two packages stay decoupled (accept-narrow-interfaces).
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Entry is one tool in the corpus: its definition plus the domain tags it's
// reachable under.
type Entry struct {
	Tool    agent.Tool
	Domains []string
}

// Index is the Tool-RAG corpus: a flat list of (tool, embedding) pairs plus
// a domain-tag table, built on first use rather than eagerly (spec §4.D).
type Index struct {
	mu         sync.Mutex
	embedder   EmbeddingClient
	core       map[string]bool
	entries    map[string]*Entry
	embeddings map[string][]float32 // tool name -> embedding, populated lazily
	byDomain   map[string][]string  // domain tag -> tool names
	topK       int
}

// NewIndex constructs an empty index. coreToolNames are always-loaded
// tools excluded from every request_tools result to avoid noise (spec
// §4.D). A nil embedder disables query-based (non-domain) lookup; domain
// lookups still work since they need no embedding.
func NewIndex(embedder EmbeddingClient, coreToolNames []string) *Index {
	core := make(map[string]bool, len(coreToolNames))
	for _, name := range coreToolNames {
		core[name] = true
	}
	return &Index{
		embedder:   embedder,
		core:       core,
		entries:    make(map[string]*Entry),
		embeddings: make(map[string][]float32),
		byDomain:   make(map[string][]string),
		topK:       DefaultTopK,
	}
}

// Register adds a tool to the corpus under the given domain tags. Safe to
// call repeatedly to rebuild the corpus at startup; re-registering a name
// replaces its entry and clears any cached embedding.
func (idx *Index) Register(entry Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	name := entry.Tool.Name()
	idx.entries[name] = &entry
	delete(idx.embeddings, name)
	for _, domain := range entry.Domains {
		idx.byDomain[domain] = appendUnique(idx.byDomain[domain], name)
	}
}

// RequestTools resolves request_tools(query, domain?): a domain hint
// returns every tool tagged for it; otherwise the query is embedded and
// scored by cosine similarity against the corpus, returning the top-k.
// Core tools are never returned. Every returned name is recorded in
// loaded so the caller's Tool Registry build includes it for the rest of
// the current request (spec §4.D's "loaded_tools set carried across
// rounds").
func (idx *Index) RequestTools(ctx context.Context, query, domain string, loaded map[string]bool) ([]agent.Tool, error) {
	var names []string
	if domain != "" {
		names = idx.domainNames(domain)
	} else {
		var err error
		names, err = idx.similarNames(ctx, query)
		if err != nil {
			return nil, err
		}
	}

	idx.mu.Lock()
	tools := make([]agent.Tool, 0, len(names))
	for _, name := range names {
		if idx.core[name] {
			continue
		}
		entry, ok := idx.entries[name]
		if !ok {
			continue
		}
		tools = append(tools, entry.Tool)
		if loaded != nil {
			loaded[name] = true
		}
	}
	idx.mu.Unlock()
	return tools, nil
}

// Resolve implements agent.ToolCorpus: it turns a request's loaded_tools
// set back into Tool implementations so the loop's next round offers them
// to the model (spec §4.D).
func (idx *Index) Resolve(loaded map[string]bool) []agent.Tool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	tools := make([]agent.Tool, 0, len(loaded))
	for name := range loaded {
		if entry, ok := idx.entries[name]; ok {
			tools = append(tools, entry.Tool)
		}
	}
	return tools
}

func (idx *Index) domainNames(domain string) []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return append([]string(nil), idx.byDomain[domain]...)
}

func (idx *Index) similarNames(ctx context.Context, query string) ([]string, error) {
	if idx.embedder == nil {
		return nil, fmt.Errorf("ragindex: no embedder configured for query-based lookup")
	}
	queryVec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	idx.mu.Lock()
	type scored struct {
		name  string
		score float64
	}
	ranked := make([]scored, 0, len(idx.entries))
	for name, entry := range idx.entries {
		if idx.core[name] {
			continue
		}
		vec, ok := idx.embeddings[name]
		if !ok {
			vec, err = idx.embedder.Embed(ctx, corpusText(entry.Tool))
			if err != nil {
				idx.mu.Unlock()
				return nil, fmt.Errorf("embed tool %s: %w", name, err)
			}
			idx.embeddings[name] = vec
		}
		ranked = append(ranked, scored{name: name, score: storage.CosineSimilarity(queryVec, vec)})
	}
	idx.mu.Unlock()

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].name < ranked[j].name
	})

	k := len(ranked)
	if idx.topK > 0 && idx.topK < k {
		k = idx.topK
	}

	names := make([]string, 0, k)
	for i := 0; i < k; i++ {
		names = append(names, ranked[i].name)
	}
	return names, nil
}

func corpusText(t agent.Tool) string {
	return t.Name() + ". " + t.Description()
}

func appendUnique(list []string, name string) []string {
	for _, n := range list {
		if n == name {
			return list
		}
	}
	return append(list, name)
}
