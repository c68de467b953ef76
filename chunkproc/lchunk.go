package chunkproc

import (
	"context"
	"math"

	"github.com/lodworld/tileworker/chunkid"
	"github.com/lodworld/tileworker/codec"
	"github.com/lodworld/tileworker/colorlib"
	"github.com/lodworld/tileworker/kmeans"
	"github.com/lodworld/tileworker/objstore"
	"github.com/lodworld/tileworker/raster"
)

// LChunk is the low-detail variant: LOD chunks at layers < 2, owning
// per-child cluster-summary parts plus the point cloud sampled from
// each child's own point cloud.
type LChunk struct {
	core
	pointClouds map[uint64]codec.PointCloud // child id -> sampled representative points
}

func (l *LChunk) pointCloudKey() string { return l.core.id.String() + ".dat" }

// Prep runs the common download_parts step, then LChunk's own
// point-cloud merge: the chunk's kept point cloud, plus a fresh sample
// from each needs_update child's point cloud, re-uploaded as the merged
// blob immediately (the parent one layer coarser reads it back from
// cache).
func (l *LChunk) Prep(ctx context.Context) error {
	if err := l.core.downloadParts(ctx); err != nil {
		return err
	}
	if err := l.downloadPointCloud(ctx); err != nil {
		return err
	}
	if err := l.sampleChildPointClouds(ctx); err != nil {
		return err
	}
	return l.uploadPointCloud(ctx)
}

func (l *LChunk) downloadPointCloud(ctx context.Context) error {
	out, err := l.deps.Store.Get(ctx, l.deps.Buckets.PointClouds, l.pointCloudKey(), true)
	if err != nil {
		if objstore.IsNotFound(err) {
			l.pointClouds = make(map[uint64]codec.PointCloud)
			return nil
		}
		return err
	}
	ignore := make(map[uint64]struct{}, len(l.needsUpdate))
	for _, id := range l.needsUpdate {
		ignore[id] = struct{}{}
	}
	pcs, err := codec.DecodePointCloud(out.Body, ignore)
	if err != nil {
		return err
	}
	l.pointClouds = pcs
	return nil
}

func (l *LChunk) sampleChildPointClouds(ctx context.Context) error {
	childLayer := l.core.id.Layer + 1
	reqs := make([]objstore.GetRequest, len(l.needsUpdate))
	for i, id := range l.needsUpdate {
		isLOD := childLayer <= 2
		reqs[i] = objstore.GetRequest{
			Bucket:   l.deps.Buckets.PointClouds,
			Key:      chunkid.Make(childLayer, uint32(id), isLOD) + ".dat",
			UseCache: true,
		}
	}
	results := l.deps.Store.GetMany(ctx, reqs)
	for i, id := range l.needsUpdate {
		res := results[i]
		if res.Err != nil {
			if objstore.IsNotFound(res.Err) {
				continue
			}
			return res.Err
		}
		pc, err := codec.DecodeSinglePointCloud(res.Outcome.Body, pcSamplePerc)
		if err != nil {
			return err
		}
		l.pointClouds[id] = pc
	}
	return nil
}

func (l *LChunk) uploadPointCloud(ctx context.Context) error {
	if len(l.pointClouds) == 0 {
		return nil
	}
	blob := codec.EncodePointCloud(l.pointClouds)
	return l.deps.Store.Put(ctx, l.deps.Buckets.PointClouds, l.pointCloudKey(), "application/octet-stream", blob, true)
}

// Process is pure CPU (kmeans.Summarize); pool is unused but kept to
// satisfy the Processor interface's shared signature.
func (l *LChunk) Process(ctx context.Context, pool *raster.Pool) error {
	for _, id := range l.needsUpdate {
		pc, ok := l.pointClouds[id]
		if !ok || len(pc.Points) < 2 {
			continue
		}
		l.core.parts[id] = summarizeCluster(pc)
	}
	return nil
}

func summarizeCluster(pc codec.PointCloud) []byte {
	positions := make([][3]float64, len(pc.Points))
	for i, p := range pc.Points {
		positions[i] = [3]float64{float64(p[0]), float64(p[1]), float64(p[2])}
	}
	normalized := kmeans.Normalize(positions)

	pts := make([]kmeans.Point, len(pc.Points))
	for i, pos := range normalized {
		rgb, ok := colorlib.Get(int(pc.Colors[i]))
		if !ok {
			rgb = [3]float32{0, 0, 0}
		}
		pts[i] = kmeans.Point{Pos: pos, Color: rgb}
	}

	clusters := kmeans.Summarize(pts, kmeansMaxIters)
	return encodeClusters(clusters)
}

func encodeClusters(clusters []kmeans.Cluster) []byte {
	buf := make([]byte, len(clusters)*9*4)
	for i, c := range clusters {
		off := i * 9 * 4
		putF32LE(buf[off:], c.Min[0])
		putF32LE(buf[off+4:], c.Min[1])
		putF32LE(buf[off+8:], c.Min[2])
		putF32LE(buf[off+12:], c.Max[0])
		putF32LE(buf[off+16:], c.Max[1])
		putF32LE(buf[off+20:], c.Max[2])
		putF32LE(buf[off+24:], c.Color[0])
		putF32LE(buf[off+28:], c.Color[1])
		putF32LE(buf[off+32:], c.Color[2])
	}
	return buf
}

func putF32LE(b []byte, v float32) {
	bits := math.Float32bits(v)
	b[0] = byte(bits)
	b[1] = byte(bits >> 8)
	b[2] = byte(bits >> 16)
	b[3] = byte(bits >> 24)
}

// Update uploads the cluster-summary parts and, below layer 0, reports
// this chunk's LOD parent as the next update.
func (l *LChunk) Update(ctx context.Context) (string, bool, error) {
	if err := l.core.uploadParts(ctx); err != nil {
		return "", false, err
	}
	if l.core.id.Layer == 0 {
		return "", false, nil
	}
	parentIdx, err := l.deps.Maps.Bwd(l.core.id.Layer, l.core.id.Index)
	if err != nil {
		return "", false, err
	}
	parent := chunkid.ID{Layer: l.core.id.Layer - 1, Index: parentIdx, IsLOD: true}
	return parent.String(), true, nil
}
