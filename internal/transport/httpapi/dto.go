package httpapi

import (
	"time"

	"github.com/agentcv/agentcv/internal/domain"
	healthuc "github.com/agentcv/agentcv/internal/usecase/health"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status string                          `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

type uploadResponse struct {
	ProfileID    string `json:"profile_id"`
	Filename     string `json:"filename"`
	VectorCount  int    `json:"vector_count"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
	Model        string `json:"model"`
	Published    bool   `json:"published"`
}

type historyItem struct {
	ProfileID    string    `json:"profile_id"`
	Filename     string    `json:"filename"`
	Model        string    `json:"model"`
	VectorCount  int       `json:"vector_count"`
	ChunkSize    int       `json:"chunk_size"`
	ChunkOverlap int       `json:"chunk_overlap"`
	Active       bool      `json:"active"`
	Published    bool      `json:"published"`
	CreatedAt    time.Time `json:"created_at"`
}

type historyResponse struct {
	Items []historyItem `json:"items"`
}

type credentialRequest struct {
	APIKey         string `json:"api_key"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
	ChatModel      string `json:"chat_model,omitempty"`
}

type chatRequest struct {
	Handle   string           `json:"handle,omitempty"`
	Messages []domain.Message `json:"messages"`
}

type chatResponse struct {
	Answer string `json:"answer"`
}

func historyFromRecords(records []domain.ProfileRecord) historyResponse {
	items := make([]historyItem, len(records))
	for i, rec := range records {
		items[i] = historyItem{
			ProfileID:    rec.ID,
			Filename:     rec.Filename,
			Model:        rec.Model,
			VectorCount:  rec.VectorCount,
			ChunkSize:    rec.ChunkSize,
			ChunkOverlap: rec.ChunkOverlap,
			Active:       rec.Active,
			Published:    rec.Published,
			CreatedAt:    rec.CreatedAt,
		}
	}
	return historyResponse{Items: items}
}
