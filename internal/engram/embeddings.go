package engram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// EmbeddingsConfig configures a RemoteEmbedder against any OpenAI-compatible
// embeddings endpoint, grounded on the teacher's
// internal/tools/memorysearch.EmbeddingsConfig/remoteEmbedder. Long-term
// memory runs with no embedder at all (BM25-only recall) when BaseURL or
// Model is empty.
type EmbeddingsConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

func (c EmbeddingsConfig) Enabled() bool {
	return strings.TrimSpace(c.BaseURL) != "" && strings.TrimSpace(c.Model) != ""
}

// RemoteEmbedder implements EmbeddingClient against a single-input
// "/embeddings" POST, the same request shape OpenAI, Voyage, and most
// self-hosted embedding servers accept.
type RemoteEmbedder struct {
	cfg    EmbeddingsConfig
	client *http.Client
	url    string
}

// NewRemoteEmbedder builds a RemoteEmbedder, or returns an error if cfg is
// missing the endpoint or model it needs to form a request.
func NewRemoteEmbedder(cfg EmbeddingsConfig) (*RemoteEmbedder, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("engram: embeddings base_url and model are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &RemoteEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		url:    strings.TrimRight(cfg.BaseURL, "/") + "/embeddings",
	}, nil
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed satisfies EmbeddingClient.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("engram: cannot embed empty text")
	}

	body, err := json.Marshal(embeddingsRequest{Model: e.cfg.Model, Input: []string{trimmed}})
	if err != nil {
		return nil, fmt.Errorf("engram: encode embeddings request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("engram: build embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engram: embeddings request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("engram: embeddings endpoint returned %d: %s", resp.StatusCode, string(payload))
	}

	var parsed embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("engram: decode embeddings response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("engram: embeddings response had no data")
	}
	return parsed.Data[0].Embedding, nil
}
