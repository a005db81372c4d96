package metadata

import (
	"strconv"
	"time"

	"github.com/agentcv/agentcv/internal/domain"
)

// Hash field names. The store speaks flat string maps; these converters are
// the only place the field layout is known.
const (
	fieldHandle       = "handle"
	fieldPlan         = "plan"
	fieldAPIKey       = "api_key"
	fieldEmbedModel   = "embedding_model"
	fieldChatModel    = "chat_model"
	fieldFilename     = "filename"
	fieldModel        = "model"
	fieldVectorCount  = "vector_count"
	fieldChunkSize    = "chunk_size"
	fieldChunkOverlap = "chunk_overlap"
	fieldGeneration   = "generation"
	fieldActive       = "active"
	fieldPublished    = "published"
	fieldCreatedAt    = "created_at"
)

func buildTenantFields(t domain.Tenant) map[string]string {
	return map[string]string{
		fieldHandle: t.Handle,
		fieldPlan:   t.Plan,
	}
}

func parseTenant(id string, m map[string]string) domain.Tenant {
	return domain.Tenant{
		ID:     id,
		Handle: m[fieldHandle],
		Plan:   m[fieldPlan],
	}
}

func buildCredentialFields(c domain.Credential) map[string]string {
	return map[string]string{
		fieldAPIKey:     c.APIKey,
		fieldEmbedModel: c.EmbeddingModel,
		fieldChatModel:  c.ChatModel,
	}
}

func parseCredential(m map[string]string) domain.Credential {
	return domain.Credential{
		APIKey:         m[fieldAPIKey],
		EmbeddingModel: m[fieldEmbedModel],
		ChatModel:      m[fieldChatModel],
	}
}

func buildProfileFields(rec domain.ProfileRecord) map[string]string {
	return map[string]string{
		fieldFilename:     rec.Filename,
		fieldModel:        rec.Model,
		fieldVectorCount:  strconv.Itoa(rec.VectorCount),
		fieldChunkSize:    strconv.Itoa(rec.ChunkSize),
		fieldChunkOverlap: strconv.Itoa(rec.ChunkOverlap),
		fieldGeneration:   rec.Generation,
		fieldActive:       strconv.FormatBool(rec.Active),
		fieldPublished:    strconv.FormatBool(rec.Published),
		fieldCreatedAt:    rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func parseProfileFields(id, tenantID string, m map[string]string) domain.ProfileRecord {
	vectorCount, _ := strconv.Atoi(m[fieldVectorCount])
	chunkSize, _ := strconv.Atoi(m[fieldChunkSize])
	chunkOverlap, _ := strconv.Atoi(m[fieldChunkOverlap])
	createdAt, _ := time.Parse(time.RFC3339Nano, m[fieldCreatedAt])

	return domain.ProfileRecord{
		ID:           id,
		TenantID:     tenantID,
		Filename:     m[fieldFilename],
		Model:        m[fieldModel],
		VectorCount:  vectorCount,
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Generation:   m[fieldGeneration],
		Active:       m[fieldActive] == "true",
		Published:    m[fieldPublished] == "true",
		CreatedAt:    createdAt,
	}
}
