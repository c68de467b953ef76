package chunkproc

import (
	"context"
	"testing"

	"github.com/lodworld/tileworker/chunkid"
	"github.com/lodworld/tileworker/codec"
)

func TestLChunkPrepProcessUpdate(t *testing.T) {
	ctx := context.Background()

	// A child point cloud at layer 2 (the finest LOD layer an LChunk's
	// own layer-1 id can sample from), 10 points, each a resolvable
	// non-background color.
	childPC := codec.PointCloud{
		Points: make([][3]float32, 10),
		Colors: make([]uint16, 10),
	}
	for i := range childPC.Points {
		childPC.Points[i] = [3]float32{float32(i), float32(i) * 2, float32(i) * 3}
		childPC.Colors[i] = uint16(30 + i%3)
	}
	childBlob := codec.EncodePointCloud(map[uint64]codec.PointCloud{0: childPC})

	store := newFakeStore()
	store.set(testBuckets.PointClouds, "l2_7.dat", childBlob, nil)

	deps := Deps{Store: store, Maps: testMaps(t), Buckets: testBuckets}
	id := chunkid.ID{Layer: 1, Index: 5, IsLOD: true} // "l1_5"; Bwd(1,5)=0 in the test fixture

	proc := New(deps, id, []uint64{7}, nil)
	if err := proc.Prep(ctx); err != nil {
		t.Fatalf("Prep: %v", err)
	}

	lc := proc.(*LChunk)
	pc, ok := lc.pointClouds[7]
	if !ok {
		t.Fatal("expected a sampled point cloud for child 7")
	}
	if len(pc.Points) < 2 {
		t.Fatalf("expected at least 2 sampled points, got %d", len(pc.Points))
	}

	if err := proc.Process(ctx, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if _, ok := lc.core.parts[7]; !ok {
		t.Fatal("expected a cluster-summary part for child 7")
	}

	next, hasNext, err := proc.Update(ctx)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !hasNext || next != "l0_0" {
		t.Fatalf("expected propagation to parent l0_0, got %q hasNext=%v", next, hasNext)
	}

	blob, ok := store.objects[fkey(testBuckets.Chunks, "l1_5")]
	if !ok {
		t.Fatal("expected the chunk blob to be uploaded")
	}
	parts, err := codec.DecodeChunk(blob, nil)
	if err != nil {
		t.Fatalf("DecodeChunk: %v", err)
	}
	part, ok := parts[7]
	if !ok || len(part)%36 != 0 || len(part) == 0 {
		t.Fatalf("expected a non-empty cluster record, a multiple of 36 bytes, got %d", len(part))
	}

	if _, ok := store.objects[fkey(testBuckets.PointClouds, "l1_5.dat")]; !ok {
		t.Fatal("expected the merged point cloud to be uploaded")
	}
}

func TestLChunkUpdateAtLayerZeroHasNoParent(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	deps := Deps{Store: store, Maps: testMaps(t), Buckets: testBuckets}
	id := chunkid.ID{Layer: 0, Index: 0, IsLOD: true}

	proc := New(deps, id, nil, nil)
	lc := proc.(*LChunk)
	lc.core.parts = make(map[uint64][]byte)

	next, hasNext, err := proc.Update(ctx)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if hasNext || next != "" {
		t.Fatalf("layer 0 is the root, expected no parent, got %q", next)
	}
}
