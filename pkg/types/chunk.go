package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Chunk is a contiguous, non-overlapping span of a source file treated as one
// embeddable unit. Chunks are replaced wholesale when their file changes.
type Chunk struct {
	// Identification
	FilePath string // Relative to the codebase root
	Index    int    // Position within the file, 0-based

	// Content
	Content     string
	ContentHash string // SHA-256 hex of Content, the embedding dedup key

	// Location
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive

	// Metadata
	Language string
}

// ComputeContentHash fills ContentHash from Content.
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = HashText(c.Content)
}

// HashText returns the SHA-256 hex digest used as the embedding cache key.
func HashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// Validate performs comprehensive validation of the chunk.
func (c *Chunk) Validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return errors.New("chunk content cannot be empty")
	}

	if c.FilePath == "" {
		return errors.New("chunk file path is required")
	}

	if c.Index < 0 {
		return errors.New("chunk index must be >= 0")
	}

	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}

	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}

	if c.ContentHash == "" {
		return errors.New("content hash must be computed")
	}

	return nil
}
