package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.openai.com/v1"

// OpenAIClient implements Provider for OpenAI-compatible embedding APIs
// (OpenAI, Ollama, Together, vLLM, etc.).
type OpenAIClient struct {
	apiKey    string
	model     string
	baseURL   string
	dimension int
	http      *http.Client
}

// NewOpenAI creates an OpenAI-compatible embedding provider.
func NewOpenAI(apiKey, model, baseURL string, dimension int) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIClient{
		apiKey:    apiKey,
		model:     model,
		baseURL:   baseURL,
		dimension: dimension,
		http:      &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *OpenAIClient) Name() string   { return "openai" }
func (c *OpenAIClient) Dimension() int { return c.dimension }

func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body := map[string]any{
		"model": c.model,
		"input": texts,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed: %s: %s", resp.Status, respBody)
	}

	var result struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d texts", len(result.Data), len(texts))
	}

	embeddings := make([][]float32, len(result.Data))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(embeddings) {
			return nil, fmt.Errorf("embed: response index %d out of range", d.Index)
		}
		embeddings[d.Index] = d.Embedding
	}
	for i, v := range embeddings {
		if c.dimension > 0 && len(v) != c.dimension {
			return nil, fmt.Errorf("embed: vector %d has dimension %d, want %d", i, len(v), c.dimension)
		}
	}
	return embeddings, nil
}
