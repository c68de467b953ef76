package chunkproc

import (
	"context"

	"github.com/lodworld/tileworker/chunkid"
	"github.com/lodworld/tileworker/codec"
	"github.com/lodworld/tileworker/objstore"
)

// core holds the state and behavior shared by every chunk variant: the
// chunk's identity, the set of child ids needing update, and the
// decoded "kept" parts (everything NOT being rewritten this pass).
type core struct {
	deps        Deps
	id          chunkid.ID
	needsUpdate []uint64
	parts       map[uint64][]byte

	// existing holds every part, including ones about to be rewritten.
	// It is never merged into an upload; it exists solely so a variant
	// can fall back to a plot's previous state (e.g. DChunk's
	// metadataOnly fold-in, which fetches no body for the ids it's
	// updating).
	existing map[uint64][]byte
}

// downloadParts fetches the chunk blob and decodes it twice: once with
// needsUpdate as the ignore set (the parts kept are exactly the ones
// this pass is NOT about to rewrite), once unfiltered (existing, for
// fallback lookups against parts this pass IS about to rewrite). A
// missing object is treated as an empty parts set; any other error
// fails the task.
func (c *core) downloadParts(ctx context.Context) error {
	out, err := c.deps.Store.Get(ctx, c.deps.Buckets.Chunks, c.id.String(), false)
	if err != nil {
		if objstore.IsNotFound(err) {
			c.parts = make(map[uint64][]byte)
			c.existing = make(map[uint64][]byte)
			return nil
		}
		return err
	}
	ignore := make(map[uint64]struct{}, len(c.needsUpdate))
	for _, id := range c.needsUpdate {
		ignore[id] = struct{}{}
	}
	parts, err := codec.DecodeChunk(out.Body, ignore)
	if err != nil {
		return err
	}
	c.parts = parts
	existing, err := codec.DecodeChunk(out.Body, nil)
	if err != nil {
		return err
	}
	c.existing = existing
	return nil
}

// uploadParts re-encodes the kept + rewritten parts and uploads the
// chunk blob.
func (c *core) uploadParts(ctx context.Context) error {
	blob := codec.EncodeChunk(c.parts)
	return c.deps.Store.Put(ctx, c.deps.Buckets.Chunks, c.id.String(), "application/octet-stream", blob, false)
}
