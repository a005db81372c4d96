// Package openai talks to the OpenAI-compatible embedding and completion
// APIs. Credentials are tenant-owned and passed per call; no client or key is
// cached beyond a single request, and keys never appear in logs or errors.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/agentcv/agentcv/internal/domain"
	"github.com/agentcv/agentcv/internal/metrics"
)

// Embedder is an embedding provider using the OpenAI API with per-call
// tenant credentials.
type Embedder struct {
	defaultModel string
	baseURL      string
	logger       *zap.Logger
}

// EmbedderConfig holds the embedding provider settings.
type EmbedderConfig struct {
	DefaultModel string
	BaseURL      string
	Logger       *zap.Logger
}

// NewEmbedder creates an embedding provider.
func NewEmbedder(cfg *EmbedderConfig) *Embedder {
	return &Embedder{
		defaultModel: cfg.DefaultModel,
		baseURL:      cfg.BaseURL,
		logger:       cfg.Logger,
	}
}

// Embed turns text into a vector using the tenant's credential. An
// unrecognized model name on the credential falls back to the configured
// default rather than failing the call.
func (e *Embedder) Embed(ctx context.Context, text string, cred domain.Credential) (domain.EmbeddingResult, error) {
	if cred.IsZero() {
		return domain.EmbeddingResult{}, domain.ErrCredentialMissing
	}

	model := domain.ValidEmbeddingModel(cred.EmbeddingModel, e.defaultModel)
	if cred.EmbeddingModel != "" && model != cred.EmbeddingModel {
		e.logger.Warn("Unrecognized embedding model, using default",
			zap.String("requested", cred.EmbeddingModel),
			zap.String("model", model),
		)
	}
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          openai.EmbeddingModel(model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}

	start := time.Now()
	resp, err := e.clientFor(cred).CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(model, "error").Inc()
		return domain.EmbeddingResult{}, parseAPIError(err)
	}
	if len(resp.Data) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(model, "error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProvider)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(model).Observe(duration.Seconds())

	return domain.EmbeddingResult{
		Vector:      resp.Data[0].Embedding,
		TotalTokens: resp.Usage.TotalTokens,
	}, nil
}

// clientFor builds a client for one call. go-openai clients are cheap
// wrappers around http.DefaultClient, so per-call construction keeps the
// no-credential-caching rule without a connection cost.
func (e *Embedder) clientFor(cred domain.Credential) *openai.Client {
	cfg := openai.DefaultConfig(cred.APIKey)
	if e.baseURL != "" {
		cfg.BaseURL = e.baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// parseAPIError extracts an HTTP status and detail from the API response.
// All errors are wrapped with domain.ErrEmbeddingProvider; the API key is
// never part of the message.
func parseAPIError(err error) error {
	wrap := domain.ErrEmbeddingProvider

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("embedding API error %d: %w", reqErr.HTTPStatusCode, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
