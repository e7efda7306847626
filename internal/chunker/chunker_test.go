package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkFile_SmallFile(t *testing.T) {
	c := New(NewRegistry())

	content := "def greet(name):\n    print(f\"Hello, {name}\")\n"
	chunks := c.ChunkFile("pkg/greet.py", content)

	require.Len(t, chunks, 1)
	assert.Equal(t, "pkg/greet.py", chunks[0].FilePath)
	assert.Equal(t, "python", chunks[0].Language)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Contains(t, chunks[0].Content, "greet")
	assert.NotEmpty(t, chunks[0].ContentHash)
}

func TestChunkFile_UnknownExtension(t *testing.T) {
	c := New(NewRegistry())

	chunks := c.ChunkFile("README.md", "# Title\n\nSome text\n")
	assert.Empty(t, chunks)
}

func TestChunkFile_Deterministic(t *testing.T) {
	c := New(NewRegistry())
	content := buildSource(120)

	first := c.ChunkFile("a.py", content)
	second := c.ChunkFile("a.py", content)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ContentHash, second[i].ContentHash)
		assert.Equal(t, first[i].StartLine, second[i].StartLine)
		assert.Equal(t, first[i].EndLine, second[i].EndLine)
	}
}

func TestChunkFile_NonOverlappingOrdered(t *testing.T) {
	c := New(NewRegistry())
	chunks := c.ChunkFile("big.py", buildSource(300))

	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		assert.Greater(t, chunks[i].StartLine, chunks[i-1].EndLine,
			"chunk %d overlaps chunk %d", i, i-1)
		assert.Equal(t, i, chunks[i].Index)
	}
}

func TestChunkFile_DropsWhitespaceOnlyChunks(t *testing.T) {
	c := New(NewRegistry())

	chunks := c.ChunkFile("blank.py", "\n\n   \n\t\n")
	assert.Empty(t, chunks)
}

func TestChunkFile_LineNumbersMatchContent(t *testing.T) {
	c := New(NewRegistry())
	content := buildSource(200)
	lines := strings.Split(content, "\n")

	chunks := c.ChunkFile("lines.py", content)
	require.NotEmpty(t, chunks)

	for _, chunk := range chunks {
		// Line numbers are 1-based; the chunk text must equal the slice
		// of the original file at those lines.
		want := strings.Join(lines[chunk.StartLine-1:chunk.EndLine], "\n")
		assert.Equal(t, want, chunk.Content)
	}
}

func TestChunkFile_IdenticalContentSharesHash(t *testing.T) {
	c := New(NewRegistry())

	body := "def util():\n    return 42\n"
	a := c.ChunkFile("a.py", body)
	b := c.ChunkFile("b.py", body)

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].ContentHash, b[0].ContentHash)
}

func TestLineSplitter_PrefersBlankLineBoundaries(t *testing.T) {
	s := NewLineSplitter(100, 30)

	// Two paragraphs separated by a blank line, together over maxSize.
	var sb strings.Builder
	for i := 0; i < 8; i++ {
		sb.WriteString("aaaaaaaaaa\n")
	}
	sb.WriteString("\n")
	for i := 0; i < 8; i++ {
		sb.WriteString("bbbbbbbbbb\n")
	}

	spans := s.Split(sb.String())
	require.GreaterOrEqual(t, len(spans), 2)
	assert.Equal(t, 8, spans[0].EndLine, "first window should end at the blank line")
}

func TestLineSplitter_CoversWholeFile(t *testing.T) {
	s := NewLineSplitter(50, 15)
	content := buildSource(100)
	lines := strings.Split(content, "\n")

	spans := s.Split(content)
	require.NotEmpty(t, spans)

	assert.Equal(t, 0, spans[0].StartLine)
	assert.Equal(t, len(lines)-1, spans[len(spans)-1].EndLine)
	for i := 1; i < len(spans); i++ {
		assert.Equal(t, spans[i-1].EndLine+1, spans[i].StartLine)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()

	lang, _, ok := r.Lookup("src/mod.rs")
	require.True(t, ok)
	assert.Equal(t, "rust", lang)

	lang, _, ok = r.Lookup("web/app.tsx")
	require.True(t, ok)
	assert.Equal(t, "typescript", lang)

	_, _, ok = r.Lookup("notes.txt")
	assert.False(t, ok)
}

func TestRegistry_Extensions(t *testing.T) {
	exts := NewRegistry().Extensions()
	for _, ext := range []string{"py", "js", "ts", "rs", "go"} {
		assert.True(t, exts[ext], "missing extension %s", ext)
	}
}

// buildSource generates n lines of python-ish text with a blank line every
// tenth line.
func buildSource(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i%10 == 9 {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString("value = compute_something(arg_one, arg_two)\n")
	}
	return sb.String()
}
