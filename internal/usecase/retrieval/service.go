// Package retrieval fetches the profile snippets most similar to a chat
// query. Retrieval is best effort: a chat answer without context beats no
// answer, so embedding or index failures degrade to an empty result instead
// of failing the conversation.
package retrieval

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/agentcv/agentcv/internal/domain"
)

// Service retrieves ranked context snippets for a tenant.
type Service struct {
	embedder Embedder
	searcher Searcher
	topK     int
	logger   *zap.Logger
}

// New creates a retrieval service.
func New(embedder Embedder, searcher Searcher, topK int, logger *zap.Logger) *Service {
	if topK <= 0 {
		topK = 6
	}
	return &Service{embedder: embedder, searcher: searcher, topK: topK, logger: logger}
}

// Retrieve returns up to topK snippets from the tenant's profile ranked by
// similarity to query. Failures and blank queries yield an empty slice.
func (s *Service) Retrieve(ctx context.Context, tenantID, query string, cred domain.Credential) []domain.Snippet {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	result, err := s.embedder.Embed(ctx, query, cred)
	if err != nil {
		s.logger.Warn("Query embedding failed, answering without context",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return nil
	}

	snippets, err := s.searcher.Search(ctx, tenantID, result.Vector, s.topK)
	if err != nil {
		s.logger.Warn("Context search failed, answering without context",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return nil
	}
	return snippets
}
