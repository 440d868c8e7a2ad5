package main

import (
	"strings"
	"testing"

	"ragindex/internal/config"
	"ragindex/internal/logging"
)

func TestBuildEmbedder(t *testing.T) {
	t.Setenv("RAGINDEX_WIRE_KEY", "")
	tests := []struct {
		name         string
		cfg          config.EmbedderConfig
		key          string
		wantFallback bool
		wantModel    string
	}{
		{"hashing", config.EmbedderConfig{Provider: config.ProviderHashing, Dimension: 64}, "", true, "fallback:hashing-64"},
		{"gemini without key", config.EmbedderConfig{Provider: config.ProviderGemini, APIKeyEnv: "RAGINDEX_WIRE_KEY", Model: "text-embedding-004", Dimension: 64}, "", true, "fallback:"},
		{"gemini", config.EmbedderConfig{Provider: config.ProviderGemini, APIKeyEnv: "RAGINDEX_WIRE_KEY", Model: "text-embedding-004", Dimension: 64}, "k", false, "text-embedding-004"},
		{"openai", config.EmbedderConfig{Provider: config.ProviderOpenAI, APIKeyEnv: "RAGINDEX_WIRE_KEY", BaseURL: "http://localhost:1", Model: "nomic-embed-text", Dimension: 64}, "k", false, "nomic-embed-text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RAGINDEX_WIRE_KEY", tt.key)
			c, err := buildEmbedder(tt.cfg, logging.Discard())
			if err != nil {
				t.Fatal(err)
			}
			if c.Fallback() != tt.wantFallback || !strings.HasPrefix(c.Model(), tt.wantModel) || c.Dimension() != 64 {
				t.Errorf("embedder model=%q fallback=%v dim=%d", c.Model(), c.Fallback(), c.Dimension())
			}
		})
	}
}
