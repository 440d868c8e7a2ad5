package main

import (
	"log/slog"
	"net/http"
	"time"

	"ragindex/internal/config"
	"ragindex/internal/embedding"
	"ragindex/internal/embedding/gemini"
	"ragindex/internal/embedding/hashing"
	"ragindex/internal/embedding/openai"
)

// buildEmbedder selects the configured provider. Without a credential the
// hashing fallback is used and every collection it touches is marked.
func buildEmbedder(cfg config.EmbedderConfig, logger *slog.Logger) (*embedding.Client, error) {
	var (
		p   embedding.Provider
		err error
	)
	key := cfg.APIKey()
	hc := &http.Client{}

	switch {
	case cfg.Provider == config.ProviderHashing:
		p = hashing.NewEmbedder(cfg.Dimension)
	case key == "":
		logger.Warn("no embedding credential found, falling back to hashing embeddings",
			slog.String("provider", cfg.Provider), slog.String("api_key_env", cfg.APIKeyEnv))
		p = hashing.NewEmbedder(cfg.Dimension)
	case cfg.Provider == config.ProviderOpenAI:
		p, err = openai.NewClient(openai.Config{
			BaseURL:       cfg.BaseURL,
			APIKey:        key,
			Model:         cfg.Model,
			Dimension:     cfg.Dimension,
			SendInputType: cfg.SendInputType,
			HTTPClient:    hc,
		})
	default:
		p, err = gemini.NewClient(gemini.Config{
			BaseURL:    cfg.BaseURL,
			APIKey:     key,
			Model:      cfg.Model,
			Dimension:  cfg.Dimension,
			HTTPClient: hc,
		})
	}
	if err != nil {
		return nil, err
	}
	return embedding.NewClient(p, embedding.Options{
		Dimension: cfg.Dimension,
		BatchSize: cfg.BatchSize,
		Timeout:   time.Duration(cfg.TimeoutSecs) * time.Second,
		Logger:    logger,
	})
}
