package domain

import "strings"

// embeddingModelPrefix is the allow-list rule for embedding models: anything
// outside the text-embedding family falls back to the configured default
// instead of failing the call.
const embeddingModelPrefix = "text-embedding"

// ValidEmbeddingModel returns model if it belongs to the supported embedding
// model family, otherwise fallback.
func ValidEmbeddingModel(model, fallback string) string {
	if model == "" || !strings.HasPrefix(model, embeddingModelPrefix) {
		return fallback
	}
	return model
}

// EmbeddingResult is the outcome of a single embedding call.
type EmbeddingResult struct {
	Vector      []float32
	TotalTokens int
}
