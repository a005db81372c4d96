package profilestore

import (
	"context"

	"github.com/agentcv/agentcv/internal/domain"
)

// Metadata defines the metadata persistence contract used here.
type Metadata interface {
	Tenant(ctx context.Context, tenantID string) (domain.Tenant, error)
	Credential(ctx context.Context, tenantID string) (domain.Credential, error)
	Insert(ctx context.Context, rec domain.ProfileRecord) error
	Deactivate(ctx context.Context, tenantID string) error
	History(ctx context.Context, tenantID string) ([]domain.ProfileRecord, error)
}

// Index defines the vector index contract used here. Every operation is
// scoped to one tenant.
type Index interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []domain.Point) error
	DeleteTenant(ctx context.Context, tenantID string) error
}

// Embedder vectorizes text with the tenant's own credential.
type Embedder interface {
	Embed(ctx context.Context, text string, cred domain.Credential) (domain.EmbeddingResult, error)
}
