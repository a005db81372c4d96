package retrieval

import (
	"context"

	"github.com/agentcv/agentcv/internal/domain"
)

// Searcher runs tenant-filtered similarity queries.
type Searcher interface {
	Search(ctx context.Context, tenantID string, vector []float32, topK int) ([]domain.Snippet, error)
}

// Embedder vectorizes the query with the tenant's own credential.
type Embedder interface {
	Embed(ctx context.Context, text string, cred domain.Credential) (domain.EmbeddingResult, error)
}
