// Package profilestore owns the tenant's indexed profile lifecycle: the
// replace-on-upload protocol, deletion, and the profile history.
package profilestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agentcv/agentcv/internal/chunker"
	"github.com/agentcv/agentcv/internal/domain"
	"github.com/agentcv/agentcv/internal/extract"
	"github.com/agentcv/agentcv/internal/metrics"
)

// Service implements the profile replace/delete/history operations.
type Service struct {
	meta     Metadata
	index    Index
	embedder Embedder

	defaults     domain.ChunkPolicy
	defaultModel string
	workers      int
	maxBatch     int
	logger       *zap.Logger
}

// Config holds the profile store settings.
type Config struct {
	ChunkDefaults domain.ChunkPolicy
	DefaultModel  string
	Workers       int
	MaxBatchSize  int
}

// New creates a profile store service.
func New(meta Metadata, index Index, embedder Embedder, cfg Config, logger *zap.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 100
	}
	return &Service{
		meta:         meta,
		index:        index,
		embedder:     embedder,
		defaults:     cfg.ChunkDefaults,
		defaultModel: cfg.DefaultModel,
		workers:      cfg.Workers,
		maxBatch:     cfg.MaxBatchSize,
		logger:       logger,
	}
}

// ReplaceOptions carries the caller-supplied upload parameters. Zero chunk
// values mean "use defaults"; they are also plan-gated.
type ReplaceOptions struct {
	ChunkSize    int
	ChunkOverlap int
	Publish      bool
}

// Replace atomically swaps the tenant's indexed profile for the uploaded
// document. Embedding runs before any deletion, so an extraction, credential,
// or embedding failure leaves the previous profile fully queryable. Only once
// every chunk has a vector does the old generation get deleted and the new
// one written.
func (s *Service) Replace(
	ctx context.Context, tenantID, filename string, content []byte, opts ReplaceOptions,
) (domain.ProfileRecord, error) {
	tenant, err := s.meta.Tenant(ctx, tenantID)
	if err != nil {
		return domain.ProfileRecord{}, fmt.Errorf("resolve tenant: %w", err)
	}

	text, err := extract.Text(content, filename)
	if err != nil {
		return domain.ProfileRecord{}, fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return domain.ProfileRecord{}, fmt.Errorf("%s: %w", filename, domain.ErrEmptyDocument)
	}

	cred, err := s.meta.Credential(ctx, tenantID)
	if err != nil {
		return domain.ProfileRecord{}, fmt.Errorf("load credential: %w", err)
	}

	policy := domain.ResolveChunkPolicy(opts.ChunkSize, opts.ChunkOverlap, tenant.Plan, s.defaults)
	chunks := chunker.New(policy).Split(text)
	if len(chunks) == 0 {
		return domain.ProfileRecord{}, fmt.Errorf("%s: %w", filename, domain.ErrEmptyDocument)
	}

	if err := s.index.EnsureCollection(ctx); err != nil {
		return domain.ProfileRecord{}, fmt.Errorf("ensure collection: %w", err)
	}

	model := domain.ValidEmbeddingModel(cred.EmbeddingModel, s.defaultModel)
	generation := uuid.NewString()

	points, err := s.embedChunks(ctx, chunks, cred, tenant, model, policy, generation)
	if err != nil {
		metrics.ProfileReplacementsTotal.WithLabelValues("error").Inc()
		return domain.ProfileRecord{}, err
	}

	// Past this point failures leave the tenant without a complete profile
	// until the next successful upload.
	if err := s.meta.Deactivate(ctx, tenantID); err != nil {
		metrics.ProfileReplacementsTotal.WithLabelValues("error").Inc()
		return domain.ProfileRecord{}, fmt.Errorf("deactivate previous profiles: %w", err)
	}
	if err := s.index.DeleteTenant(ctx, tenantID); err != nil {
		metrics.ProfileReplacementsTotal.WithLabelValues("error").Inc()
		return domain.ProfileRecord{}, fmt.Errorf("delete previous vectors: %w", err)
	}

	if err := s.upsertBatched(ctx, points); err != nil {
		s.logger.Error("Profile replace left tenant without a complete profile",
			zap.String("tenant_id", tenantID),
			zap.String("generation", generation),
			zap.Error(err),
		)
		metrics.ProfileReplacementsTotal.WithLabelValues("degraded").Inc()
		return domain.ProfileRecord{}, fmt.Errorf("write new vectors: %w", err)
	}

	rec := domain.ProfileRecord{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		Filename:     filename,
		Model:        model,
		VectorCount:  len(points),
		ChunkSize:    policy.Size,
		ChunkOverlap: policy.Overlap,
		Generation:   generation,
		Active:       true,
		Published:    opts.Publish,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.meta.Insert(ctx, rec); err != nil {
		metrics.ProfileReplacementsTotal.WithLabelValues("error").Inc()
		return domain.ProfileRecord{}, fmt.Errorf("record profile: %w", err)
	}

	metrics.ProfilePointsWritten.Add(float64(len(points)))
	metrics.ProfileReplacementsTotal.WithLabelValues("success").Inc()

	s.logger.Info("Profile replaced",
		zap.String("tenant_id", tenantID),
		zap.String("filename", filename),
		zap.Int("vectors", len(points)),
		zap.Int("chunk_size", policy.Size),
		zap.Int("chunk_overlap", policy.Overlap),
	)
	return rec, nil
}

// embedChunks vectorizes every chunk concurrently, preserving chunk order in
// the result. Any single failure aborts the whole upload.
func (s *Service) embedChunks(
	ctx context.Context, chunks []string, cred domain.Credential,
	tenant domain.Tenant, model string, policy domain.ChunkPolicy, generation string,
) ([]domain.Point, error) {
	points := make([]domain.Point, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, text := range chunks {
		g.Go(func() error {
			result, err := s.embedder.Embed(gctx, text, cred)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", i, err)
			}
			points[i] = domain.Point{
				ID:     uuid.NewString(),
				Vector: result.Vector,
				Payload: domain.PointPayload{
					TenantID:     tenant.ID,
					Text:         text,
					Model:        model,
					ChunkIndex:   i,
					ChunkSize:    policy.Size,
					ChunkOverlap: policy.Overlap,
					Plan:         tenant.Plan,
					Generation:   generation,
				},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}

func (s *Service) upsertBatched(ctx context.Context, points []domain.Point) error {
	for start := 0; start < len(points); start += s.maxBatch {
		end := min(start+s.maxBatch, len(points))
		if err := s.index.Upsert(ctx, points[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the tenant's vectors and deactivates its profile rows.
// Deleting a tenant that has no profile is a success.
func (s *Service) Delete(ctx context.Context, tenantID string) error {
	if err := s.index.DeleteTenant(ctx, tenantID); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := s.meta.Deactivate(ctx, tenantID); err != nil {
		return fmt.Errorf("deactivate profiles: %w", err)
	}
	s.logger.Info("Profile deleted", zap.String("tenant_id", tenantID))
	return nil
}

// History returns the tenant's profile rows, newest first.
func (s *Service) History(ctx context.Context, tenantID string) ([]domain.ProfileRecord, error) {
	records, err := s.meta.History(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return records, nil
}
