// Package qdrant is the vector index client. All tenant data lives in one
// shared collection; every query and delete carries an equality filter on the
// tenant payload field. An unfiltered scan is a correctness bug, so no such
// operation is exposed.
package qdrant

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/agentcv/agentcv/internal/domain"
)

// TenantField is the keyword-indexed payload field scoping every operation.
const TenantField = "tenant_id"

// Payload field names stored next to each vector.
const (
	fieldText         = "text"
	fieldModel        = "model"
	fieldChunkIndex   = "chunk_index"
	fieldChunkSize    = "chunk_size"
	fieldChunkOverlap = "chunk_overlap"
	fieldPlan         = "plan"
	fieldGeneration   = "generation"
)

// Config holds the Qdrant connection and collection settings.
type Config struct {
	Host           string
	Port           int
	UseTLS         bool
	APIKey         string
	Collection     string
	VectorDim      uint64
	HNSWEf         uint64
	RequestTimeout time.Duration
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "profiles"
	}
	if c.VectorDim == 0 {
		c.VectorDim = 1536
	}
	if c.HNSWEf == 0 {
		c.HNSWEf = 128
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
}

// Client wraps the Qdrant gRPC client with the collection lifecycle and the
// tenant-scoped point operations.
type Client struct {
	client *qdrant.Client
	cfg    Config
	logger *zap.Logger

	ensured atomic.Bool
}

// NewClient connects to Qdrant and verifies the connection.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg.ApplyDefaults()

	qcfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
	}
	if !cfg.UseTLS {
		qcfg.GrpcOptions = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		}
	}

	qc, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	c := &Client{client: qc, cfg: cfg, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()
	if _, err := qc.HealthCheck(ctx); err != nil {
		_ = qc.Close()
		return nil, fmt.Errorf("qdrant health check: %w", err)
	}

	logger.Info("Connected to qdrant",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("collection", cfg.Collection),
	)
	return c, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Ping checks index availability.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	if _, err := c.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	return nil
}

// EnsureCollection creates the shared collection and the tenant keyword index
// if they do not exist yet. After the first success the check is a single
// atomic load. No lock is held across the RPCs: concurrent callers may race
// the check-then-create, and a conflict from a concurrent create counts as
// success.
func (c *Client) EnsureCollection(ctx context.Context) error {
	if c.ensured.Load() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	exists, err := c.collectionExists(ctx)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}

	if !exists {
		c.logger.Info("Creating qdrant collection",
			zap.String("collection", c.cfg.Collection),
			zap.Uint64("vector_dim", c.cfg.VectorDim),
		)
		err := c.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: c.cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     c.cfg.VectorDim,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return fmt.Errorf("create collection: %w", err)
		}

		_, err = c.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: c.cfg.Collection,
			FieldName:      TenantField,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return fmt.Errorf("create tenant field index: %w", err)
		}
	}

	c.ensured.Store(true)
	return nil
}

func (c *Client) collectionExists(ctx context.Context) (bool, error) {
	_, err := c.client.GetCollectionInfo(ctx, c.cfg.Collection)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Upsert writes points into the shared collection, waiting for the write to
// be applied so a following query observes the new generation.
func (c *Client) Upsert(ctx context.Context, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	qpoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		qpoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payloadValues(p.Payload),
		}
	}

	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.cfg.Collection,
		Points:         qpoints,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("upsert %d points: %w: %w", len(points), domain.ErrVectorIndex, err)
	}
	return nil
}

// Search runs a tenant-filtered similarity query and returns ranked snippets
// in descending score order.
func (c *Client) Search(ctx context.Context, tenantID string, vector []float32, topK int) ([]domain.Snippet, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	hits, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         tenantFilter(tenantID),
		Params: &qdrant.SearchParams{
			HnswEf: qdrant.PtrOf(c.cfg.HNSWEf),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query: %w: %w", domain.ErrVectorIndex, err)
	}

	snippets := make([]domain.Snippet, 0, len(hits))
	for _, hit := range hits {
		snippets = append(snippets, domain.Snippet{
			Text:  hit.Payload[fieldText].GetStringValue(),
			Score: hit.Score,
		})
	}
	return snippets, nil
}

// DeleteTenant removes every point belonging to the tenant. Deleting a tenant
// with zero points is a success.
func (c *Client) DeleteTenant(ctx context.Context, tenantID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	_, err := c.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: c.cfg.Collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: tenantFilter(tenantID),
			},
		},
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("delete tenant points: %w: %w", domain.ErrVectorIndex, err)
	}
	return nil
}

func tenantFilter(tenantID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: TenantField,
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keyword{Keyword: tenantID},
						},
					},
				},
			},
		},
	}
}

func payloadValues(p domain.PointPayload) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		TenantField:       stringValue(p.TenantID),
		fieldText:         stringValue(p.Text),
		fieldModel:        stringValue(p.Model),
		fieldChunkIndex:   intValue(int64(p.ChunkIndex)),
		fieldChunkSize:    intValue(int64(p.ChunkSize)),
		fieldChunkOverlap: intValue(int64(p.ChunkOverlap)),
		fieldPlan:         stringValue(p.Plan),
		fieldGeneration:   stringValue(p.Generation),
	}
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func intValue(n int64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: n}}
}
