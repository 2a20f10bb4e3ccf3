package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nexuscore/agentrt/internal/agent"
)

// WebSearchResult is one hit returned by a WebSearcher backend.
type WebSearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearcher is the narrow seam a search backend (SearXNG, DuckDuckGo,
// Brave) implements for the web builtin's search action.
type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]WebSearchResult, error)
}

// WebTool implements the combined fetch+search web builtin (spec §4.B
// item 1). Fetch is open (no allowlist restriction like the standalone
// fetch tool) since it targets arbitrary search-result URLs by design.
type WebTool struct {
	searcher WebSearcher
	client   *http.Client
}

func NewWebTool(searcher WebSearcher) *WebTool {
	return &WebTool{searcher: searcher, client: &http.Client{Timeout: 15 * time.Second}}
}

func (t *WebTool) Name() string { return "web" }

func (t *WebTool) Description() string {
	return "Search the web or fetch a specific URL's text content."
}

// WebToolParams is the web builtin's tool-call argument shape.
type WebToolParams struct {
	Action string `json:"action" jsonschema:"required,description=Action: search, fetch."`
	Query  string `json:"query" jsonschema:"description=Search query (required for search)."`
	URL    string `json:"url" jsonschema:"description=URL to fetch (required for fetch)."`
	Limit  int    `json:"limit" jsonschema:"minimum=1,description=Max search results (default 5)."`
}

func (t *WebTool) Schema() json.RawMessage {
	return structSchema[WebToolParams]()
}

func (t *WebTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input WebToolParams
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	switch strings.ToLower(strings.TrimSpace(input.Action)) {
	case "search":
		if t.searcher == nil {
			return toolError("web search backend unavailable"), nil
		}
		if strings.TrimSpace(input.Query) == "" {
			return toolError("query is required"), nil
		}
		limit := input.Limit
		if limit <= 0 {
			limit = 5
		}
		results, err := t.searcher.Search(ctx, input.Query, limit)
		if err != nil {
			return toolError(err.Error()), nil
		}
		return toolOK(map[string]any{"results": results}), nil
	case "fetch":
		if strings.TrimSpace(input.URL) == "" {
			return toolError("url is required"), nil
		}
		return t.fetch(ctx, input.URL)
	default:
		return toolError("action must be one of: search, fetch"), nil
	}
}

func (t *WebTool) fetch(ctx context.Context, rawURL string) (*agent.ToolResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return toolError(fmt.Sprintf("build request: %v", err)), nil
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return toolError(fmt.Sprintf("fetch: %v", err)), nil
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchMaxBytes+1))
	if err != nil {
		return toolError(fmt.Sprintf("read response: %v", err)), nil
	}
	truncated := len(body) > fetchMaxBytes
	if truncated {
		body = body[:fetchMaxBytes]
	}
	return toolOK(map[string]any{"status": resp.StatusCode, "body": string(body), "truncated": truncated}), nil
}
