package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrExtraction indicates a document could not be read: corrupt,
	// encrypted, or without an embedded text layer.
	ErrExtraction = errors.New("extraction failed")

	// ErrEmbeddingService indicates the external embedding call failed.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrModelMismatch indicates a query and an index use different embedding models.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrInvalidArgument indicates malformed input rejected before any work.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")
)

// ModelMismatchError carries both model identities.
type ModelMismatchError struct {
	IndexModel string
	QueryModel string
}

func (e *ModelMismatchError) Error() string {
	return fmt.Sprintf("%s: index built with %q, query embedder is %q", ErrModelMismatch, e.IndexModel, e.QueryModel)
}

func (e *ModelMismatchError) Unwrap() error { return ErrModelMismatch }
