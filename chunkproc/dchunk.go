package chunkproc

import (
	"context"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/lodworld/tileworker/codec"
	"github.com/lodworld/tileworker/objstore"
	"github.com/lodworld/tileworker/raster"
	"github.com/lodworld/tileworker/workstore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DChunk is the detail-chunk variant: non-LOD chunks at any layer,
// owning repacked plot parts and the rendered preview images derived
// from them.
type DChunk struct {
	core
	flags map[uint64]workstore.Flags

	newParts      map[uint64][]byte // plot_id -> repacked plot bytes
	updatedImages map[uint64][]byte // plot_id -> PNG bytes, or absent for "no image"
}

// Prep implements the common download_parts step plus DChunk's plot
// batch-fetch and repack.
func (d *DChunk) Prep(ctx context.Context) error {
	if err := d.core.downloadParts(ctx); err != nil {
		return err
	}
	return d.fetchAndRepackPlots(ctx)
}

func (d *DChunk) fetchAndRepackPlots(ctx context.Context) error {
	reqs := make([]objstore.GetRequest, len(d.needsUpdate))
	for i, id := range d.needsUpdate {
		f := d.flags[id]
		reqs[i] = objstore.GetRequest{
			Bucket:   d.deps.Buckets.Plots,
			Key:      plotKey(id),
			HeadOnly: f.MetadataOnly,
		}
	}
	results := d.deps.Store.GetMany(ctx, reqs)

	d.newParts = make(map[uint64][]byte, len(d.needsUpdate))
	for i, id := range d.needsUpdate {
		res := results[i]
		if res.Err != nil {
			return res.Err
		}
		repacked, err := d.repackPlot(id, res.Outcome)
		if err != nil {
			return err
		}
		d.newParts[id] = repacked
	}
	return nil
}

// repackPlot applies the setDefaultJson/metadataOnly/setDefaultBuild
// fold-in precedence and the verified/owner metadata fold-in. A
// metadataOnly request fetches no body (HEAD only), so its JSON/build
// halves fall back to the plot's existing part (core.existing, the
// chunk's previous copy of this plot) rather than a freshly-fetched
// remote one.
func (d *DChunk) repackPlot(id uint64, out objstore.Outcome) ([]byte, error) {
	f := d.flags[id]
	verifiedRaw, verifiedOK := out.Meta["verified"]
	owner, ownerOK := out.Meta["owner"]
	if !verifiedOK || !ownerOK {
		return nil, &objstore.Error{
			Kind: objstore.ErrKindMissingUserMetadata,
			Err:  errors.Errorf("plot %s: missing verified/owner user metadata", plotKey(id)),
		}
	}
	verified := verifiedRaw == "true"

	var existingJSON, existingBuild []byte
	if existing, ok := d.core.existing[id]; ok {
		existingJSON, _ = codec.GetJSON(existing)
		existingBuild, _ = codec.GetBuildView(existing)
	}

	var remoteJSON, remoteBuild []byte
	if len(out.Body) > 0 {
		var err error
		remoteJSON, err = codec.GetJSON(out.Body)
		if err != nil {
			return nil, err
		}
		remoteBuild, err = codec.GetBuildView(out.Body)
		if err != nil {
			return nil, err
		}
	}

	jsonBytes := chooseJSON(f, existingJSON, remoteJSON)
	jsonBytes = foldInMetadata(jsonBytes, verified, owner)

	buildBytes, err := chooseBuild(f, verified, out.Body, existingBuild, remoteBuild)
	if err != nil {
		return nil, err
	}

	return codec.EncodePlot(jsonBytes, buildBytes), nil
}

// chooseJSON implements setDefaultJson > metadataOnly > remote >
// default precedence for the plot's JSON half: setDefaultJson always
// forces the canonical empty document; a metadataOnly request (no body
// fetched) keeps the existing part's JSON; otherwise the freshly
// fetched remote JSON is preferred, falling back to the default
// document if nothing was fetched.
func chooseJSON(f workstore.Flags, existingJSON, remoteJSON []byte) []byte {
	if f.SetDefaultJSON {
		return codec.DefaultJSON()
	}
	if f.MetadataOnly && existingJSON != nil {
		return existingJSON
	}
	if remoteJSON != nil {
		return remoteJSON
	}
	return codec.DefaultJSON()
}

// chooseBuild implements the build half: setDefaultBuild forces the
// static fixture; a fetched remote build that is unverified and over
// BUILD_SIZE_STD also falls back to it; a fetched remote build is
// otherwise kept; with no remote body (metadataOnly), the existing
// part's build is kept; failing all of that, the static fixture.
func chooseBuild(f workstore.Flags, verified bool, plotBlob, existingBuild, remoteBuild []byte) ([]byte, error) {
	if f.SetDefaultBuild {
		return defaultBuildFixture()
	}
	if remoteBuild != nil {
		if !verified && len(plotBlob) > 0 {
			if size, err := codec.GetBuildSize(plotBlob); err == nil && int(size) > buildSizeStd {
				return defaultBuildFixture()
			}
		}
		return remoteBuild, nil
	}
	if existingBuild != nil {
		return existingBuild, nil
	}
	return defaultBuildFixture()
}

// Process rasterizes every needs_update plot whose noImageUpdate flag
// is false.
func (d *DChunk) Process(ctx context.Context, pool *raster.Pool) error {
	d.updatedImages = make(map[uint64][]byte, len(d.needsUpdate))
	for _, id := range d.needsUpdate {
		if d.flags[id].NoImageUpdate {
			continue
		}
		build, err := codec.GetBuildView(d.newParts[id])
		if err != nil {
			return err
		}
		png, err := pool.Submit(ctx, build)
		if err != nil {
			return err
		}
		d.updatedImages[id] = png
	}
	return nil
}

// Update merges repacked plots into the kept parts, uploads the chunk
// blob and the batch of preview images, and returns no parent: detail
// chunks are leaves of the propagation DAG.
func (d *DChunk) Update(ctx context.Context) (string, bool, error) {
	for id, p := range d.newParts {
		d.core.parts[id] = p
	}
	if err := d.core.uploadParts(ctx); err != nil {
		return "", false, err
	}

	var putReqs []objstore.PutRequest
	for id, img := range d.updatedImages {
		putReqs = append(putReqs, objstore.PutRequest{
			Bucket:      d.deps.Buckets.Images,
			Key:         imageKey(id),
			ContentType: "image/png",
			Body:        img,
		})
	}
	for _, err := range d.deps.Store.PutMany(ctx, putReqs) {
		if err != nil {
			return "", false, err
		}
	}
	return "", false, nil
}

func foldInMetadata(jsonBytes []byte, verified bool, owner string) []byte {
	doc := map[string]any{}
	if len(jsonBytes) > 0 {
		_ = json.Unmarshal(jsonBytes, &doc)
	}
	doc["verified"] = verified
	doc["owner"] = owner
	if !verified {
		doc["link"] = ""
		doc["linkTitle"] = ""
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return jsonBytes
	}
	return out
}
