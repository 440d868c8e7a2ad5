package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ragindex/internal/chunker"
	"ragindex/internal/config"
	"ragindex/internal/docstore"
	"ragindex/internal/logging"
	"ragindex/internal/service"
	"ragindex/internal/vectorstore"
)

var (
	flagConfig   string
	flagEnvFile  string
	flagLogLevel string
	flagStoreDir string
)

var rootCmd = &cobra.Command{
	Use:          "ragindex",
	Short:        "Chunk, embed and search per-agent document collections",
	SilenceUsage: true,
	Long: `ragindex turns documents into embedded chunks stored in one collection per
agent, and answers exact nearest-neighbour queries against those collections.`,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Path to YAML config file (default ./config.yaml or ~/.config/ragindex/config.yaml)")
	pf.StringVar(&flagEnvFile, "env-file", ".env", "Dotenv file with provider credentials")
	pf.StringVar(&flagLogLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	pf.StringVar(&flagStoreDir, "store-dir", "", "Override the collection directory")
}

// Execute is called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds the wired components shared by the subcommands.
type app struct {
	cfg    *config.AppConfig
	logger *slog.Logger
	engine *service.Engine
	docs   *docstore.Store
}

func (a *app) Close() error {
	if a.docs != nil {
		return a.docs.Close()
	}
	return nil
}

func loadConfig() (*config.AppConfig, error) {
	if err := config.LoadEnv(flagEnvFile); err != nil {
		return nil, err
	}
	var (
		cfg *config.AppConfig
		err error
	)
	if flagConfig == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(flagConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagStoreDir != "" {
		cfg.Store.Dir = flagStoreDir
	}
	return cfg, nil
}

// openApp wires config, logger, embedder, registry, engine and, when
// withDocs is set, the document registry.
func openApp(withDocs bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	emb, err := buildEmbedder(cfg.Embedder, logger)
	if err != nil {
		return nil, err
	}
	ch, err := chunker.NewRecursiveChunker(cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		return nil, err
	}
	reg, err := vectorstore.NewRegistry(cfg.Store.Dir, cfg.Embedder.Dimension, logger)
	if err != nil {
		return nil, err
	}
	engine, err := service.NewEngine(ch, emb, reg, service.Options{TopK: cfg.Retrieval.TopK, Logger: logger})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, engine: engine}
	if withDocs {
		if a.docs, err = docstore.Open(cfg.DocStore.Path); err != nil {
			return nil, err
		}
	}
	return a, nil
}
