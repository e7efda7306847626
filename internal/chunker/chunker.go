// Package chunker splits file content into ordered, non-overlapping chunks
// with stable line ranges and content hashes.
package chunker

import (
	"strings"

	"github.com/semindex/semindex/pkg/types"
)

const (
	// DefaultChunkSize is the target chunk size in characters.
	DefaultChunkSize = 1000

	// DefaultMinChunkSize is the smallest size at which a chunk may be cut
	// at a blank-line boundary instead of mid-block.
	DefaultMinChunkSize = 300
)

// Chunker produces embeddable chunks from source files using the splitter
// registered for each file's extension.
type Chunker struct {
	registry *Registry
}

// New creates a Chunker backed by the given registry.
func New(registry *Registry) *Chunker {
	return &Chunker{registry: registry}
}

// ChunkFile splits content into chunks for the file at relPath. Files without
// a registered extension yield no chunks. Whitespace-only chunks are dropped;
// surviving chunks keep their original line positions.
func (c *Chunker) ChunkFile(relPath, content string) []types.Chunk {
	language, splitter, ok := c.registry.Lookup(relPath)
	if !ok {
		return nil
	}

	lines := strings.Split(content, "\n")
	spans := splitter.Split(content)

	chunks := make([]types.Chunk, 0, len(spans))
	for _, span := range spans {
		if span.StartLine < 0 || span.EndLine >= len(lines) {
			continue
		}

		text := strings.Join(lines[span.StartLine:span.EndLine+1], "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}

		chunk := types.Chunk{
			FilePath:  relPath,
			Index:     len(chunks),
			Content:   text,
			StartLine: span.StartLine + 1,
			EndLine:   span.EndLine + 1,
			Language:  language,
		}
		chunk.ComputeContentHash()
		chunks = append(chunks, chunk)
	}

	return chunks
}

// LineSplitter cuts content into windows of roughly maxSize characters,
// preferring blank-line boundaries once a window has reached minSize.
// Windows never overlap and together cover the whole file.
type LineSplitter struct {
	maxSize int
	minSize int
}

// NewLineSplitter creates a LineSplitter with the given bounds.
func NewLineSplitter(maxSize, minSize int) *LineSplitter {
	if maxSize <= 0 {
		maxSize = DefaultChunkSize
	}
	if minSize <= 0 || minSize > maxSize {
		minSize = maxSize / 3
	}
	return &LineSplitter{maxSize: maxSize, minSize: minSize}
}

// Split implements Splitter.
func (s *LineSplitter) Split(content string) []Span {
	lines := strings.Split(content, "\n")

	var spans []Span
	winStart := 0
	size := 0
	lastBlank := -1
	sizeAtBlank := 0

	for i, line := range lines {
		size += len(line) + 1

		if strings.TrimSpace(line) == "" {
			lastBlank = i
			sizeAtBlank = size
		}

		if size < s.maxSize || i == winStart {
			continue
		}

		cut := i
		if lastBlank > winStart && sizeAtBlank >= s.minSize {
			cut = lastBlank
		}

		spans = append(spans, Span{StartLine: winStart, EndLine: cut})

		winStart = cut + 1
		size = 0
		for j := winStart; j <= i; j++ {
			size += len(lines[j]) + 1
		}
		lastBlank = -1
		sizeAtBlank = 0
	}

	if winStart < len(lines) {
		spans = append(spans, Span{StartLine: winStart, EndLine: len(lines) - 1})
	}

	return spans
}
