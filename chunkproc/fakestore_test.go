package chunkproc

import (
	"context"
	"sync"

	"github.com/lodworld/tileworker/objstore"
)

// fakeStore is a minimal in-memory objAPI substitute shared by the
// variant tests: a plain bucket/key map, guarded by a mutex since
// GetMany/PutMany fan out concurrently.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: make(map[string][]byte),
		meta:    make(map[string]map[string]string),
	}
}

func fkey(bucket, key string) string { return bucket + "/" + key }

func (f *fakeStore) set(bucket, key string, body []byte, meta map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[fkey(bucket, key)] = body
	f.meta[fkey(bucket, key)] = meta
}

func (f *fakeStore) Get(_ context.Context, bucket, key string, _ bool) (objstore.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[fkey(bucket, key)]
	if !ok {
		return objstore.Outcome{}, &objstore.Error{Kind: objstore.ErrKindStoreNotFound}
	}
	return objstore.Outcome{Body: body, Meta: f.meta[fkey(bucket, key)]}, nil
}

func (f *fakeStore) Head(_ context.Context, bucket, key string) (objstore.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[fkey(bucket, key)]; !ok {
		return objstore.Outcome{}, &objstore.Error{Kind: objstore.ErrKindStoreNotFound}
	}
	return objstore.Outcome{Meta: f.meta[fkey(bucket, key)]}, nil
}

func (f *fakeStore) Put(_ context.Context, bucket, key, _ string, body []byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[fkey(bucket, key)] = body
	return nil
}

func (f *fakeStore) GetMany(ctx context.Context, reqs []objstore.GetRequest) []objstore.GetResult {
	out := make([]objstore.GetResult, len(reqs))
	for i, r := range reqs {
		if r.HeadOnly {
			o, err := f.Head(ctx, r.Bucket, r.Key)
			out[i] = objstore.GetResult{Outcome: o, Err: err}
			continue
		}
		o, err := f.Get(ctx, r.Bucket, r.Key, r.UseCache)
		out[i] = objstore.GetResult{Outcome: o, Err: err}
	}
	return out
}

func (f *fakeStore) PutMany(ctx context.Context, reqs []objstore.PutRequest) []error {
	out := make([]error, len(reqs))
	for i, r := range reqs {
		out[i] = f.Put(ctx, r.Bucket, r.Key, r.ContentType, r.Body, r.UseCache)
	}
	return out
}

var testBuckets = Buckets{Chunks: "chunks", Plots: "plots", Images: "images", PointClouds: "pointclouds"}
