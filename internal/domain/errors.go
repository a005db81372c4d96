package domain

import "errors"

var (
	// ErrValidation signals a rejected request parameter.
	ErrValidation = errors.New("validation failed")
	// ErrUnsupportedFile signals a document format the extractor cannot handle.
	ErrUnsupportedFile = errors.New("unsupported file format")
	// ErrEmptyDocument signals a document with no extractable text.
	ErrEmptyDocument = errors.New("empty document")
	// ErrCredentialMissing signals a tenant with no embedding credential configured.
	ErrCredentialMissing = errors.New("credential missing")
	// ErrNoProfile signals a tenant with no active profile.
	ErrNoProfile = errors.New("no active profile")
	// ErrTenantNotFound signals an unknown tenant or handle.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrVectorIndex signals a vector index failure.
	ErrVectorIndex = errors.New("vector index error")
	// ErrCompletionProvider signals a completion service failure.
	ErrCompletionProvider = errors.New("completion provider error")
)
