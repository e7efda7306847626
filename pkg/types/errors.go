package types

import "errors"

// Domain errors shared across packages.
var (
	// Search result errors
	ErrMissingFileInfo  = errors.New("file info is required")
	ErrEmptyContent     = errors.New("content cannot be empty")
	ErrInvalidLineRange = errors.New("invalid line range")

	// Query validation errors, rejected at the tool boundary
	ErrInvalidLimit  = errors.New("limit must be between 1 and the configured maximum")
	ErrInvalidOffset = errors.New("offset must be >= 0")

	// Index consistency errors
	ErrDimensionMismatch = errors.New("stored embedding dimension does not match active model")
	ErrModelMismatch     = errors.New("index was built with a different embedding model; rebuild required")
	ErrUpdateInProgress  = errors.New("index update already in progress")
)
