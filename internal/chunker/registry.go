package chunker

import (
	"path/filepath"
	"strings"
)

// Splitter turns file content into ordered, non-overlapping spans. Splitting
// must be a pure function of content so chunk hashes are stable across runs.
type Splitter interface {
	Split(content string) []Span
}

// Span is a window over a file's lines, 0-based inclusive indices.
type Span struct {
	StartLine int
	EndLine   int
}

type entry struct {
	language string
	splitter Splitter
}

// Registry maps file extensions to a language name and a chunk splitter.
// Language-aware splitters can be registered per extension; everything else
// falls back to the deterministic line-window splitter.
type Registry struct {
	byExt map[string]entry
}

// NewRegistry builds a registry covering the supported source languages, all
// using the default line-window splitter.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]entry)}

	def := NewLineSplitter(DefaultChunkSize, DefaultMinChunkSize)
	r.Register("python", def, "py", "pyi")
	r.Register("javascript", def, "js", "jsx", "mjs", "cjs")
	r.Register("typescript", def, "ts", "tsx")
	r.Register("rust", def, "rs")
	r.Register("go", def, "go")

	return r
}

// Register binds a splitter and language name to the given extensions,
// replacing any previous binding.
func (r *Registry) Register(language string, splitter Splitter, exts ...string) {
	for _, ext := range exts {
		r.byExt[ext] = entry{language: language, splitter: splitter}
	}
}

// Extensions returns the set of registered extensions (without the dot).
func (r *Registry) Extensions() map[string]bool {
	exts := make(map[string]bool, len(r.byExt))
	for ext := range r.byExt {
		exts[ext] = true
	}
	return exts
}

// Lookup resolves the language and splitter for a path by extension.
func (r *Registry) Lookup(path string) (language string, splitter Splitter, ok bool) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	e, ok := r.byExt[ext]
	if !ok {
		return "", nil, false
	}
	return e.language, e.splitter, true
}
