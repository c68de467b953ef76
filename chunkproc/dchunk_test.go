package chunkproc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"

	"github.com/lodworld/tileworker/chunkid"
	"github.com/lodworld/tileworker/codec"
	"github.com/lodworld/tileworker/objstore"
	"github.com/lodworld/tileworker/raster"
	"github.com/lodworld/tileworker/workstore"
)

func TestChooseJSONPrecedence(t *testing.T) {
	def := codec.DefaultJSON()
	existing := []byte(`{"a":1}`)
	remote := []byte(`{"b":2}`)

	if got := chooseJSON(workstore.Flags{SetDefaultJSON: true}, existing, remote); string(got) != string(def) {
		t.Fatalf("setDefaultJson should win over existing/remote, got %s", got)
	}
	if got := chooseJSON(workstore.Flags{MetadataOnly: true}, existing, remote); string(got) != string(existing) {
		t.Fatalf("metadataOnly with an existing part should keep it, got %s", got)
	}
	if got := chooseJSON(workstore.Flags{MetadataOnly: true}, nil, remote); string(got) != string(remote) {
		t.Fatalf("metadataOnly with no existing part should still prefer a fetched remote, got %s", got)
	}
	if got := chooseJSON(workstore.Flags{}, existing, remote); string(got) != string(remote) {
		t.Fatalf("plain fetch should prefer remote over existing, got %s", got)
	}
	if got := chooseJSON(workstore.Flags{}, nil, nil); string(got) != string(def) {
		t.Fatalf("nothing fetched or kept should fall back to default, got %s", got)
	}
}

func TestChooseBuildPrecedence(t *testing.T) {
	existing := []byte{9, 9, 9, 9}
	remote := []byte{1, 2, 3, 4}

	got, err := chooseBuild(workstore.Flags{}, true, nil, existing, remote)
	if err != nil || string(got) != string(remote) {
		t.Fatalf("verified remote should be kept as-is, got %v err %v", got, err)
	}

	got, err = chooseBuild(workstore.Flags{}, false, nil, existing, remote)
	if err != nil || string(got) != string(remote) {
		t.Fatalf("unverified remote with no plot blob to size-check should still be kept, got %v err %v", got, err)
	}

	got, err = chooseBuild(workstore.Flags{}, true, nil, existing, nil)
	if err != nil || string(got) != string(existing) {
		t.Fatalf("no remote body (metadataOnly) should fall back to the existing part, got %v err %v", got, err)
	}
}

func TestDChunkPrepMetadataOnlyKeepsExistingPlot(t *testing.T) {
	ctx := context.Background()
	existingJSON := []byte(`{"link":"keep","linkTitle":"Keep"}`)
	existingBuild := buildBytesT(4, 25)
	existingPlot := codec.EncodePlot(existingJSON, existingBuild)

	store := newFakeStore()
	store.set(testBuckets.Chunks, "0_0", codec.EncodeChunk(map[uint64][]byte{1: existingPlot}), nil)
	store.set(testBuckets.Plots, "1.dat", nil, map[string]string{"verified": "true", "owner": "bob"})

	deps := Deps{Store: store, Maps: testMaps(t), Buckets: testBuckets}
	id := chunkid.ID{Layer: 0, Index: 0, IsLOD: false}
	flags := map[uint64]workstore.Flags{1: {MetadataOnly: true}}

	proc := New(deps, id, []uint64{1}, flags)
	if err := proc.Prep(ctx); err != nil {
		t.Fatalf("Prep: %v", err)
	}

	dc := proc.(*DChunk)
	repacked, ok := dc.newParts[1]
	if !ok {
		t.Fatal("expected plot 1 to be repacked")
	}

	gotBuild, err := codec.GetBuildView(repacked)
	if err != nil || string(gotBuild) != string(existingBuild) {
		t.Fatalf("expected the existing build to be kept on a metadataOnly fetch, got %v err %v", gotBuild, err)
	}

	gotJSON, err := codec.GetJSON(repacked)
	if err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(gotJSON, &doc); err != nil {
		t.Fatalf("unmarshal repacked json: %v", err)
	}
	if doc["verified"] != true || doc["owner"] != "bob" {
		t.Fatalf("expected verified/owner folded in, got %v", doc)
	}
	if doc["link"] != "keep" || doc["linkTitle"] != "Keep" {
		t.Fatalf("verified plot should keep its existing link fields, got %v", doc)
	}
}

func TestDChunkPrepFailsOnMissingUserMetadata(t *testing.T) {
	ctx := context.Background()
	plotBlob := codec.EncodePlot([]byte(`{"link":"x"}`), buildBytesT(4, 30))

	store := newFakeStore()
	store.set(testBuckets.Plots, "1.dat", plotBlob, map[string]string{"owner": "alice"})

	deps := Deps{Store: store, Maps: testMaps(t), Buckets: testBuckets}
	id := chunkid.ID{Layer: 0, Index: 0, IsLOD: false}
	flags := map[uint64]workstore.Flags{1: {}}

	proc := New(deps, id, []uint64{1}, flags)
	err := proc.Prep(ctx)
	if err == nil {
		t.Fatal("expected an error when the remote plot is missing the verified key")
	}
	var storeErr *objstore.Error
	if !errors.As(err, &storeErr) || storeErr.Kind != objstore.ErrKindMissingUserMetadata {
		t.Fatalf("expected a MissingUserMetadata store error, got %v", err)
	}
}

func TestDChunkPrepProcessUpdate(t *testing.T) {
	ctx := context.Background()
	plotBlob := codec.EncodePlot([]byte(`{"link":"x"}`), buildBytesT(4, 30))

	store := newFakeStore()
	store.set(testBuckets.Plots, "1.dat", plotBlob, map[string]string{"verified": "true", "owner": "alice"})

	deps := Deps{Store: store, Maps: testMaps(t), Buckets: testBuckets}
	id := chunkid.ID{Layer: 0, Index: 0, IsLOD: false}
	flags := map[uint64]workstore.Flags{1: {}}

	proc := New(deps, id, []uint64{1}, flags)
	if err := proc.Prep(ctx); err != nil {
		t.Fatalf("Prep: %v", err)
	}

	pool := raster.NewPool(ctx, 1)
	defer pool.Close()
	if err := proc.Process(ctx, pool); err != nil {
		t.Fatalf("Process: %v", err)
	}

	next, hasNext, err := proc.Update(ctx)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if hasNext || next != "" {
		t.Fatalf("detail chunks are leaves, expected no parent, got %q", next)
	}

	blob, ok := store.objects[fkey(testBuckets.Chunks, "0_0")]
	if !ok {
		t.Fatal("expected the chunk blob to be uploaded")
	}
	parts, err := codec.DecodeChunk(blob, nil)
	if err != nil {
		t.Fatalf("DecodeChunk: %v", err)
	}
	part, ok := parts[1]
	if !ok {
		t.Fatal("expected plot 1 in the uploaded chunk")
	}
	gotJSON, err := codec.GetJSON(part)
	if err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	var doc map[string]any
	_ = json.Unmarshal(gotJSON, &doc)
	if doc["link"] != "x" || doc["owner"] != "alice" {
		t.Fatalf("expected fold-in to preserve remote link and set owner, got %v", doc)
	}

	if _, ok := store.objects[fkey(testBuckets.Images, "1.png")]; !ok {
		t.Fatal("expected a rendered preview image to be uploaded")
	}
}

// buildBytesT constructs a minimal build stream: reserved u16, build
// size, then a single color-marker entry (no preceding run).
func buildBytesT(size uint16, colorIdx uint16) []byte {
	b := make([]byte, 0, 6)
	putU16 := func(v uint16) { b = append(b, byte(v), byte(v>>8)) }
	putU16(0)
	putU16(size)
	putU16((colorIdx << 1) | 1)
	return b
}
