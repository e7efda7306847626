// Package config loads process configuration once at startup and resolves the
// codebase root. The resulting Config value is passed explicitly into the
// components that need it; there is no package-level state.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// MarkerDir is the project-local index directory and root-discovery marker.
const MarkerDir = ".semindex"

// Sentinel errors for startup validation. These are fatal: the process must
// not partially start with a bad configuration.
var (
	ErrInvalidRoot      = errors.New("invalid codebase root")
	ErrInvalidBatchSize = errors.New("max batch size must be >= 1")
)

// Config is the full runtime configuration, constructed once and shared.
type Config struct {
	// RootPath is the absolute codebase root to scan.
	RootPath string

	// IndexDir is the project-local directory holding the index database.
	IndexDir string

	// Provider selects the embedding backend (ollama, openai, local).
	Provider string

	// Model is the embedding model identifier. Switching to a model with a
	// different dimension invalidates the stored embeddings.
	Model string

	// MaxBatchSize bounds the number of texts per embedding call.
	MaxBatchSize int

	// Device is an execution hint passed through to the embedding backend.
	Device string

	// OllamaURL is the base URL for the ollama provider.
	OllamaURL string

	// Workers bounds concurrent file hashing/chunking and batch dispatch.
	Workers int
}

// DBPath returns the location of the index database file.
func (c *Config) DBPath() string {
	return filepath.Join(c.IndexDir, "index.db")
}

// Load reads configuration from the environment (SEMINDEX_* variables) and an
// optional semindex.yaml in the discovered root, then validates it.
// An explicit rootPath overrides both.
func Load(rootPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SEMINDEX")
	v.AutomaticEnv()

	v.SetDefault("provider", "local")
	v.SetDefault("model", "all-minilm-l6-v2")
	v.SetDefault("max_batch_size", 16)
	v.SetDefault("device", "cpu")
	v.SetDefault("ollama_url", "http://localhost:11434")
	v.SetDefault("workers", runtime.NumCPU())

	root := rootPath
	if root == "" {
		root = v.GetString("root_path")
	}
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		root = DiscoverRoot(cwd)
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}

	// Optional per-project config file.
	v.SetConfigName("semindex")
	v.SetConfigType("yaml")
	v.AddConfigPath(root)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		RootPath:     root,
		IndexDir:     filepath.Join(root, MarkerDir),
		Provider:     v.GetString("provider"),
		Model:        v.GetString("model"),
		MaxBatchSize: v.GetInt("max_batch_size"),
		Device:       v.GetString("device"),
		OllamaURL:    v.GetString("ollama_url"),
		Workers:      v.GetInt("workers"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for startup-fatal problems.
func (c *Config) Validate() error {
	info, err := os.Stat(c.RootPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidRoot, c.RootPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, c.RootPath)
	}

	if c.MaxBatchSize < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidBatchSize, c.MaxBatchSize)
	}

	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}

	return nil
}

// EnsureIndexDir creates the index directory if it does not exist.
func (c *Config) EnsureIndexDir() error {
	if err := os.MkdirAll(c.IndexDir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}
	return nil
}

// DiscoverRoot locates the codebase root starting from startDir. Discovery
// order: nearest ancestor containing the index marker directory, then nearest
// ancestor containing .git, then startDir itself.
func DiscoverRoot(startDir string) string {
	if root, ok := findRootWithMarker(startDir, MarkerDir); ok {
		return root
	}
	if root, ok := findRootWithMarker(startDir, ".git"); ok {
		return root
	}
	return startDir
}

// findRootWithMarker walks up from startDir looking for a directory that
// contains the named marker directory.
func findRootWithMarker(startDir, marker string) (string, bool) {
	current, err := filepath.Abs(startDir)
	if err != nil {
		return "", false
	}

	for {
		info, err := os.Stat(filepath.Join(current, marker))
		if err == nil && info.IsDir() {
			return current, true
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		current = parent
	}
}
