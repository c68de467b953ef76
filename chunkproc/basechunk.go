package chunkproc

import (
	"context"
	"math"
	"math/rand"

	"github.com/lodworld/tileworker/chunkid"
	"github.com/lodworld/tileworker/codec"
	"github.com/lodworld/tileworker/colorlib"
	"github.com/lodworld/tileworker/objstore"
)

// BaseChunk is the layer-2 LOD boundary variant: it carries both a
// DChunk's traits (repacked plots, rendered images) and an LChunk-like
// point-cloud sample for its parent to consume. Prep and Process are
// DChunk's; only Update differs.
type BaseChunk struct {
	DChunk
	pointClouds map[uint64]codec.PointCloud
}

func (b *BaseChunk) pointCloudKey() string { return b.core.id.String() + ".dat" }

// Update uploads parts and images as DChunk does, then samples each
// updated plot's non-background voxels into world-space points for the
// parent LOD chunk to aggregate, and returns that parent as the next
// update.
func (b *BaseChunk) Update(ctx context.Context) (string, bool, error) {
	if _, _, err := b.DChunk.Update(ctx); err != nil {
		return "", false, err
	}

	if err := b.downloadPointCloud(ctx); err != nil {
		return "", false, err
	}
	b.sampleUpdatedPlots()
	if err := b.uploadPointCloud(ctx); err != nil {
		return "", false, err
	}

	parentIdx, err := b.deps.Maps.Bwd(b.core.id.Layer, b.core.id.Index)
	if err != nil {
		return "", false, err
	}
	parent := chunkid.ID{Layer: b.core.id.Layer - 1, Index: parentIdx, IsLOD: true}
	return parent.String(), true, nil
}

func (b *BaseChunk) downloadPointCloud(ctx context.Context) error {
	out, err := b.deps.Store.Get(ctx, b.deps.Buckets.PointClouds, b.pointCloudKey(), false)
	if err != nil {
		if objstore.IsNotFound(err) {
			b.pointClouds = make(map[uint64]codec.PointCloud)
			return nil
		}
		return err
	}
	ignore := make(map[uint64]struct{}, len(b.needsUpdate))
	for _, id := range b.needsUpdate {
		ignore[id] = struct{}{}
	}
	pcs, err := codec.DecodePointCloud(out.Body, ignore)
	if err != nil {
		return err
	}
	b.pointClouds = pcs
	return nil
}

// sampleUpdatedPlots projects each needs_update plot's non-background
// voxels into the main build's world grid: the plot's layer-1 world
// position index locates it within MAIN_BUILD_SIZE, and each sampled
// voxel's own grid coordinate is unit-normalized and added on top.
func (b *BaseChunk) sampleUpdatedPlots() {
	for _, id := range b.needsUpdate {
		part, ok := b.core.parts[id]
		if !ok {
			continue
		}
		build, err := codec.GetBuildView(part)
		if err != nil {
			continue
		}
		buildSize, voxels, err := codec.DecodeBuild(build)
		if err != nil {
			continue
		}

		var nonBg []codec.Voxel
		for _, v := range voxels {
			if colorlib.NonBackground(int(v.Color)) {
				nonBg = append(nonBg, v)
			}
		}
		if len(nonBg) < 2 {
			continue
		}

		rand.Shuffle(len(nonBg), func(i, j int) { nonBg[i], nonBg[j] = nonBg[j], nonBg[i] })
		take := int(math.Sqrt(float64(len(nonBg))))
		if take < 2 {
			take = 2
		}
		if take > len(nonBg) {
			take = len(nonBg)
		}

		worldPosIdx, err := b.deps.Maps.Bwd(2, uint32(id))
		if err != nil {
			continue
		}
		worldPos := idxToVec3f(int(worldPosIdx), mainBuildSize)

		pts := make([][3]float32, take)
		cols := make([]uint16, take)
		bs := float32(buildSize)
		for i := 0; i < take; i++ {
			v := nonBg[i]
			local := [3]float32{float32(v.X) + 0.5, float32(v.Y) + 0.5, float32(v.Z) + 0.5}
			for d := 0; d < 3; d++ {
				local[d] /= bs
			}
			pts[i] = [3]float32{local[0] + worldPos[0], local[1] + worldPos[1] + 1, local[2] + worldPos[2]}
			cols[i] = v.Color
		}
		b.pointClouds[id] = codec.PointCloud{Points: pts, Colors: cols}
	}
}

func (b *BaseChunk) uploadPointCloud(ctx context.Context) error {
	if len(b.pointClouds) == 0 {
		return nil
	}
	blob := codec.EncodePointCloud(b.pointClouds)
	return b.deps.Store.Put(ctx, b.deps.Buckets.PointClouds, b.pointCloudKey(), "application/octet-stream", blob, false)
}

// idxToVec3f maps a linear grid index into float grid coordinates,
// mirroring codec's voxel index mapping at the MAIN_BUILD_SIZE scale.
func idxToVec3f(idx, bs int) [3]float32 {
	bs2 := bs * bs
	x := idx % bs
	y := idx / bs2
	z := (idx % bs2) / bs
	return [3]float32{float32(x), float32(y), float32(z)}
}
