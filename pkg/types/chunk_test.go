package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validChunk() Chunk {
	c := Chunk{
		FilePath:  "a.py",
		Index:     0,
		Content:   "x = 1",
		StartLine: 1,
		EndLine:   1,
		Language:  "python",
	}
	c.ComputeContentHash()
	return c
}

func TestChunkValidate(t *testing.T) {
	c := validChunk()
	assert.NoError(t, c.Validate())

	c = validChunk()
	c.Content = "   "
	assert.Error(t, c.Validate())

	c = validChunk()
	c.FilePath = ""
	assert.Error(t, c.Validate())

	c = validChunk()
	c.StartLine = 0
	assert.Error(t, c.Validate())

	c = validChunk()
	c.StartLine = 5
	c.EndLine = 2
	assert.Error(t, c.Validate())

	c = validChunk()
	c.ContentHash = ""
	assert.Error(t, c.Validate())
}

func TestHashText_StableAndDistinct(t *testing.T) {
	assert.Equal(t, HashText("same"), HashText("same"))
	assert.NotEqual(t, HashText("one"), HashText("two"))
	assert.Len(t, HashText("x"), 64)
}

func TestComputeContentHash(t *testing.T) {
	a := Chunk{Content: "body"}
	a.ComputeContentHash()
	assert.Equal(t, HashText("body"), a.ContentHash)
}

func TestSearchResultValidate(t *testing.T) {
	r := SearchResult{FilePath: "a.py", Content: "x", StartLine: 1, EndLine: 2}
	assert.NoError(t, r.Validate())

	r.FilePath = ""
	assert.ErrorIs(t, r.Validate(), ErrMissingFileInfo)

	r = SearchResult{FilePath: "a.py", Content: "", StartLine: 1, EndLine: 2}
	assert.ErrorIs(t, r.Validate(), ErrEmptyContent)

	r = SearchResult{FilePath: "a.py", Content: "x", StartLine: 3, EndLine: 1}
	assert.ErrorIs(t, r.Validate(), ErrInvalidLineRange)
}
