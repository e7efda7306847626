package types

// SearchResult is the denormalized join of a chunk and its similarity score,
// the unit returned by search.
type SearchResult struct {
	FilePath  string
	Language  string
	Content   string
	StartLine int
	EndLine   int
	Score     float64 // Cosine similarity, higher is better
}

// Validate checks if the search result is well formed.
func (sr *SearchResult) Validate() error {
	if sr.FilePath == "" {
		return ErrMissingFileInfo
	}

	if sr.Content == "" {
		return ErrEmptyContent
	}

	if sr.StartLine <= 0 || sr.EndLine < sr.StartLine {
		return ErrInvalidLineRange
	}

	return nil
}
