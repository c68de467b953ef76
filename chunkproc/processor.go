// Package chunkproc implements the chunk-processing state machine:
// prep → process → update, across the three chunk variants (detail,
// low-detail, and the layer-2 boundary chunk that carries both).
package chunkproc

import (
	"context"
	"strconv"

	"github.com/lodworld/tileworker/chunkid"
	"github.com/lodworld/tileworker/objstore"
	"github.com/lodworld/tileworker/raster"
	"github.com/lodworld/tileworker/workstore"
)

// Processor is the common prep/process/update contract every chunk
// variant implements.
type Processor interface {
	// Prep downloads and decodes everything the chunk needs before CPU
	// work starts.
	Prep(ctx context.Context) error
	// Process runs the chunk's CPU-bound work (rasterization, k-means)
	// on pool. It never touches the store.
	Process(ctx context.Context, pool *raster.Pool) error
	// Update uploads the chunk's rebuilt artifacts and reports the next
	// (parent) chunk id to schedule, if any.
	Update(ctx context.Context) (nextID string, hasNext bool, err error)
}

// objAPI is the subset of objstore.Client chunk processors depend on;
// it exists so tests can substitute a fake.
type objAPI interface {
	Get(ctx context.Context, bucket, key string, useCache bool) (objstore.Outcome, error)
	Head(ctx context.Context, bucket, key string) (objstore.Outcome, error)
	Put(ctx context.Context, bucket, key, contentType string, body []byte, useCache bool) error
	GetMany(ctx context.Context, reqs []objstore.GetRequest) []objstore.GetResult
	PutMany(ctx context.Context, reqs []objstore.PutRequest) []error
}

// Buckets names the object-store buckets a processor reads/writes.
type Buckets struct {
	Chunks      string
	Plots       string
	Images      string
	PointClouds string
}

// Deps bundles a chunk processor's collaborators.
type Deps struct {
	Store   objAPI
	Maps    *chunkid.Maps
	Buckets Buckets
}

// Variant classifies a chunk id per §4.F: LOD at layer 2 is the
// boundary "base" chunk, LOD at layers < 2 is a low-detail chunk,
// non-LOD is a detail chunk.
type Variant int

const (
	VariantDetail Variant = iota
	VariantLOD
	VariantBase
)

// Classify maps id to its processing variant.
func Classify(id chunkid.ID) Variant {
	switch {
	case id.IsLOD && id.Layer == 2:
		return VariantBase
	case id.IsLOD:
		return VariantLOD
	default:
		return VariantDetail
	}
}

// New builds the Processor for id, given its needs-update child ids and
// (for detail/base variants) their per-child update flags.
func New(deps Deps, id chunkid.ID, needsUpdate []uint64, flags map[uint64]workstore.Flags) Processor {
	c := core{deps: deps, id: id, needsUpdate: needsUpdate}
	switch Classify(id) {
	case VariantBase:
		return &BaseChunk{DChunk: DChunk{core: c, flags: flags}}
	case VariantLOD:
		return &LChunk{core: c}
	default:
		return &DChunk{core: c, flags: flags}
	}
}

// ParseChildIDs converts the raw decimal-string child ids drained from
// the work store into uint64 part/point-cloud ids.
func ParseChildIDs(raw []string) ([]uint64, error) {
	out := make([]uint64, len(raw))
	for i, s := range raw {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// plotKey formats a plot's object key: lowercase hex id + ".dat".
func plotKey(id uint64) string { return strconv.FormatUint(id, 16) + ".dat" }

// imageKey formats a rendered-preview object key: lowercase hex id +
// ".png" (the Open Questions decision: lowercase hex uniformly).
func imageKey(id uint64) string { return strconv.FormatUint(id, 16) + ".png" }
