package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ragindex/internal/embedding"
)

// Client is an OpenAI-compatible embeddings client implementing embedding.Provider.
// It also understands the batch response shape of Ollama's /api/embed.
type Client struct {
	baseURL       string
	apiKey        string
	model         string
	dimension     int
	sendInputType bool
	client        *http.Client
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	// SendInputType forwards the document/query mode as "input_type" for
	// servers that embed queries and documents asymmetrically.
	SendInputType bool
	HTTPClient    *http.Client
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai embedder: missing API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		model:         cfg.Model,
		dimension:     cfg.Dimension,
		sendInputType: cfg.SendInputType,
		client:        hc,
	}, nil
}

// Model returns the model identifier sent with every request.
func (c *Client) Model() string { return c.model }

type request struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
	InputType  string   `json:"input_type,omitempty"`
}

// EmbedBatch embeds texts with a single request.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, mode embedding.Mode) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body := request{Input: texts, Model: c.model, Dimensions: c.dimension}
	if c.sendInputType {
		body.InputType = mode.String()
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai embeddings failed: %s: %s", resp.Status, truncate(payload, 200))
	}
	return decode(payload, len(texts))
}

func decode(payload []byte, n int) ([][]float32, error) {
	// OpenAI-compatible response first
	var openaiOut struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &openaiOut); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(openaiOut.Data) > 0 {
		if len(openaiOut.Data) != n {
			return nil, fmt.Errorf("expected %d embeddings, got %d", n, len(openaiOut.Data))
		}
		out := make([][]float32, n)
		for _, d := range openaiOut.Data {
			if d.Index < 0 || d.Index >= n || out[d.Index] != nil {
				return nil, fmt.Errorf("invalid embedding index: %d", d.Index)
			}
			out[d.Index] = d.Embedding
		}
		return out, nil
	}
	// Ollama batch shape: { "embeddings": [[...], ...] }
	var ollamaOut struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(payload, &ollamaOut); err == nil && len(ollamaOut.Embeddings) > 0 {
		if len(ollamaOut.Embeddings) != n {
			return nil, fmt.Errorf("expected %d embeddings, got %d", n, len(ollamaOut.Embeddings))
		}
		return ollamaOut.Embeddings, nil
	}
	return nil, errors.New("no embedding returned")
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
