package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nexuscore/agentrt/internal/agent"
)

const fetchMaxBytes = 1 << 20 // 1MB response cap

// FetchTool performs an HTTP GET, restricted to an allowlist of hosts
// unless unallowlisted is set (in which case policy.IsDestructive gates it
// under the "fetch_unallowlisted" tool name).
type FetchTool struct {
	allowedHosts  map[string]bool
	unallowlisted bool
	client        *http.Client
}

// NewFetchTool creates the allowlisted fetch tool.
func NewFetchTool(allowedHosts []string) *FetchTool {
	return newFetchTool(allowedHosts, false)
}

// NewFetchUnallowlistedTool creates the destructive variant that can reach
// any host, registered under the name "fetch_unallowlisted" so the
// Dispatcher's approval gate applies.
func NewFetchUnallowlistedTool() *FetchTool {
	return newFetchTool(nil, true)
}

func newFetchTool(allowedHosts []string, unallowlisted bool) *FetchTool {
	hosts := make(map[string]bool, len(allowedHosts))
	for _, h := range allowedHosts {
		hosts[strings.ToLower(strings.TrimSpace(h))] = true
	}
	return &FetchTool{
		allowedHosts:  hosts,
		unallowlisted: unallowlisted,
		client:        &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *FetchTool) Name() string {
	if t.unallowlisted {
		return "fetch_unallowlisted"
	}
	return "fetch"
}

func (t *FetchTool) Description() string {
	if t.unallowlisted {
		return "Fetch any URL, including hosts outside the configured allowlist. Requires approval."
	}
	return "Fetch a URL restricted to the configured host allowlist."
}

// FetchToolParams is fetch's (and fetch_unallowlisted's) tool-call argument
// shape.
type FetchToolParams struct {
	URL string `json:"url" jsonschema:"required,description=URL to fetch."`
}

func (t *FetchTool) Schema() json.RawMessage {
	return structSchema[FetchToolParams]()
}

func (t *FetchTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input FetchToolParams
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	raw := strings.TrimSpace(input.URL)
	if raw == "" {
		return toolError("url is required"), nil
	}
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return toolError("url must be a valid http(s) URL"), nil
	}

	if !t.unallowlisted && !t.allowedHosts[strings.ToLower(parsed.Hostname())] {
		return toolError(fmt.Sprintf("host %q is not in the fetch allowlist; use fetch_unallowlisted", parsed.Hostname())), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
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

	return toolOK(map[string]any{
		"status":      resp.StatusCode,
		"body":        string(body),
		"truncated":   truncated,
		"content_type": resp.Header.Get("Content-Type"),
	}), nil
}
