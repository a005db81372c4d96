package domain

import "time"

// Plan tiers. Custom chunking parameters are honored for paid tiers only;
// free-tier uploads always use the process-wide defaults.
const (
	PlanFree    = "free"
	PlanPaid    = "paid"
	PlanPremium = "premium"
	PlanPro     = "pro"
)

// PlanAllowsCustomChunking reports whether a tenant's plan tier may override
// the default chunking parameters.
func PlanAllowsCustomChunking(plan string) bool {
	switch plan {
	case PlanPaid, PlanPremium, PlanPro:
		return true
	default:
		return false
	}
}

// Tenant identifies one tenant. It is the sole tenancy boundary for every
// vector index operation and is never inferred from a display handle without
// an explicit indexed lookup.
type Tenant struct {
	ID     string
	Handle string
	Plan   string
}

// ChunkPolicy holds the size/overlap parameters used to split a document.
// Size is the target maximum chunk length in runes; Overlap is the number of
// trailing runes repeated at the start of the next chunk.
type ChunkPolicy struct {
	Size    int
	Overlap int
}

// MinChunkSize is the smallest caller-supplied chunk size that is honored.
const MinChunkSize = 100

// ResolveChunkPolicy applies the plan gate and per-field fallback rules:
// free tiers always get defaults; for paid tiers each absent or out-of-bounds
// custom value falls back to its default instead of rejecting the upload.
// An overlap that would stall chunking (>= size) falls back as well.
func ResolveChunkPolicy(size, overlap int, plan string, defaults ChunkPolicy) ChunkPolicy {
	if !PlanAllowsCustomChunking(plan) {
		return defaults
	}
	p := ChunkPolicy{Size: size, Overlap: overlap}
	if p.Size < MinChunkSize {
		p.Size = defaults.Size
	}
	if p.Overlap <= 0 {
		p.Overlap = defaults.Overlap
	}
	if p.Overlap >= p.Size {
		p.Overlap = defaults.Overlap
	}
	return p
}

// Chunk is an ordered substring of a source document. Chunks are immutable
// once produced; a new upload produces an entirely new set.
type Chunk struct {
	Index      int
	Text       string
	Policy     ChunkPolicy
	Generation string
}

// Point is one indexed entity in the vector index. The payload tenant field
// is the tenancy boundary: every query and delete filters on it.
type Point struct {
	ID      string
	Vector  []float32
	Payload PointPayload
}

// PointPayload carries the metadata stored next to each vector.
type PointPayload struct {
	TenantID     string
	Text         string
	Model        string
	ChunkIndex   int
	ChunkSize    int
	ChunkOverlap int
	Plan         string
	Generation   string
}

// Snippet is one ranked retrieval hit.
type Snippet struct {
	Text  string
	Score float32
}

// ProfileRecord is one profile metadata row. At most one row per tenant is
// active; history rows stay around after replacement with Active=false.
type ProfileRecord struct {
	ID           string
	TenantID     string
	Filename     string
	Model        string
	VectorCount  int
	ChunkSize    int
	ChunkOverlap int
	Generation   string
	Active       bool
	Published    bool
	CreatedAt    time.Time
}
