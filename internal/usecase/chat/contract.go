package chat

import (
	"context"

	"github.com/agentcv/agentcv/internal/domain"
)

// Metadata resolves chat targets and their credentials.
type Metadata interface {
	Tenant(ctx context.Context, tenantID string) (domain.Tenant, error)
	Active(ctx context.Context, tenantID string) (domain.ProfileRecord, error)
	ActiveByHandle(ctx context.Context, handle string) (domain.Tenant, domain.ProfileRecord, error)
	Credential(ctx context.Context, tenantID string) (domain.Credential, error)
}

// Retriever fetches ranked context snippets for a tenant.
type Retriever interface {
	Retrieve(ctx context.Context, tenantID, query string, cred domain.Credential) []domain.Snippet
}

// Completer obtains chat completions with the tenant's own credential.
type Completer interface {
	Complete(ctx context.Context, cred domain.Credential, messages []domain.Message) (string, error)
	Stream(ctx context.Context, cred domain.Credential, messages []domain.Message, emit func(fragment string) error) error
}
