// Package cli implements the semindex command line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/semindex/semindex/internal/config"
	"github.com/semindex/semindex/internal/embedder"
	"github.com/semindex/semindex/internal/indexer"
	"github.com/semindex/semindex/internal/storage"
)

var (
	flagRoot     string
	flagProvider string
	flagModel    string
	flagOllama   string
	flagBatch    int
)

var rootCmd = &cobra.Command{
	Use:   "semindex",
	Short: "Incremental semantic code search over a local codebase",
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "codebase root (default: discovered from the working directory)")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "embedding provider: ollama, openai or local")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "embedding model")
	rootCmd.PersistentFlags().StringVar(&flagOllama, "ollama", "", "ollama base URL")
	rootCmd.PersistentFlags().IntVar(&flagBatch, "batch-size", 0, "maximum texts per embedding call")
}

// resolveRoot picks the codebase root from the --root flag or by discovery
// from the working directory.
func resolveRoot() (string, error) {
	if flagRoot != "" {
		return filepath.Abs(flagRoot)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return config.DiscoverRoot(wd), nil
}

// loadConfig resolves the root and applies CLI flag overrides on top of the
// file and environment configuration.
func loadConfig() (*config.Config, error) {
	root, err := resolveRoot()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	if flagProvider != "" {
		cfg.Provider = flagProvider
	}
	if flagModel != "" {
		cfg.Model = flagModel
	}
	if flagOllama != "" {
		cfg.OllamaURL = flagOllama
	}
	if flagBatch > 0 {
		cfg.MaxBatchSize = flagBatch
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// components holds everything an index-touching command needs.
type components struct {
	cfg     *config.Config
	storage storage.Storage
	emb     embedder.Embedder
	indexer *indexer.Indexer
}

func (c *components) close() {
	_ = c.emb.Close()
	_ = c.storage.Close()
}

// openComponents builds storage, embedder and indexer for the resolved root.
func openComponents() (*components, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureIndexDir(); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	emb, err := embedder.New(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &components{
		cfg:     cfg,
		storage: store,
		emb:     emb,
		indexer: indexer.New(cfg, store, emb),
	}, nil
}

// printStats writes an indexing summary to stdout.
func printStats(stats *indexer.Stats) {
	fmt.Printf("\nDone in %s\n", stats.Duration.Round(time.Millisecond))
	fmt.Printf("  Files:       %d scanned, %d indexed, %d deleted, %d unchanged, %d failed\n",
		stats.FilesScanned, stats.FilesUpserted, stats.FilesDeleted, stats.FilesUnchanged, stats.FilesFailed)
	fmt.Printf("  Chunks:      %d\n", stats.ChunksIndexed)
	fmt.Printf("  Embeddings:  %d new in %d calls\n", stats.EmbeddingsNew, stats.EmbeddingCalls)
	for _, msg := range stats.ErrorMessages {
		fmt.Printf("  warning: %s\n", msg)
	}
}
