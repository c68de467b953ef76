package codec

import (
	"encoding/binary"
	"io"
	"io/fs"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EncodePlot packs a plot's JSON metadata and voxel build bytes into the
// wire format: [u32 json_len][json][u32 build_len][build].
func EncodePlot(jsonBytes, build []byte) []byte {
	buf := make([]byte, 4+len(jsonBytes)+4+len(build))
	binary.LittleEndian.PutUint32(buf[0:], uint32(len(jsonBytes)))
	off := 4 + copy(buf[4:], jsonBytes)
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(build)))
	copy(buf[off+4:], build)
	return buf
}

// GetJSON returns the JSON sub-slice of a plot blob.
func GetJSON(blob []byte) ([]byte, error) {
	if len(blob) < 4 {
		return nil, errors.Wrap(ErrMalformedBlob, "plot: truncated json length")
	}
	n := int(binary.LittleEndian.Uint32(blob))
	if 4+n > len(blob) {
		return nil, errors.Wrap(ErrMalformedBlob, "plot: json length exceeds blob")
	}
	return blob[4 : 4+n], nil
}

// GetBuildView returns the build sub-slice (a view, not a copy) of a plot
// blob.
func GetBuildView(blob []byte) ([]byte, error) {
	if len(blob) < 4 {
		return nil, errors.Wrap(ErrMalformedBlob, "plot: truncated json length")
	}
	jsonLen := int(binary.LittleEndian.Uint32(blob))
	off := 4 + jsonLen
	if off+4 > len(blob) {
		return nil, errors.Wrap(ErrMalformedBlob, "plot: truncated build length")
	}
	buildLen := int(binary.LittleEndian.Uint32(blob[off:]))
	off += 4
	if off+buildLen > len(blob) {
		return nil, errors.Wrap(ErrMalformedBlob, "plot: build length exceeds blob")
	}
	return blob[off : off+buildLen], nil
}

// GetBuildSize reads the cubic grid edge length in place at offset
// json_len+10: 4 (json_len) + json_len + 4 (build_len) + 2 (reserved
// index 0) = json_len + 10.
func GetBuildSize(blob []byte) (uint16, error) {
	if len(blob) < 4 {
		return 0, errors.Wrap(ErrMalformedBlob, "plot: truncated json length")
	}
	jsonLen := int(binary.LittleEndian.Uint32(blob))
	at := jsonLen + 10
	if at+2 > len(blob) {
		return 0, errors.Wrap(ErrMalformedBlob, "plot: truncated build_size field")
	}
	return binary.LittleEndian.Uint16(blob[at : at+2]), nil
}

// DefaultJSON returns the worker's canonical empty-plot JSON document.
func DefaultJSON() []byte {
	return []byte(`{"link":"","linkTitle":""}`)
}

var (
	defaultBuildOnce sync.Once
	defaultBuild     []byte
	defaultBuildErr  error
)

// LoadDefaultBuildView loads the static default-build fixture once per
// process and returns it on every subsequent call. path is relative to
// fsys, matching the "static process-wide tables" pattern used by the
// layer maps.
func LoadDefaultBuildView(fsys fs.FS, path string) ([]byte, error) {
	defaultBuildOnce.Do(func() {
		f, err := fsys.Open(path)
		if err != nil {
			defaultBuildErr = err
			return
		}
		defer f.Close()
		defaultBuild, defaultBuildErr = io.ReadAll(f)
	})
	return defaultBuild, defaultBuildErr
}

// resetDefaultBuildOnceForTest clears the singleton so tests can load
// distinct fixtures; production code must never call this.
func resetDefaultBuildOnceForTest() {
	defaultBuildOnce = sync.Once{}
	defaultBuild, defaultBuildErr = nil, nil
}
