// Package codec implements the binary pack/unpack formats used by the
// pipeline: the versioned chunk container, the point-cloud blob, and the
// plot wrapper, plus the run-length voxel build format.
package codec

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrMalformedBlob is returned whenever a decoded length prefix would read
// past the end of the blob, or another structural invariant is violated.
var ErrMalformedBlob = errors.New("codec: malformed blob")

const chunkHeaderLen = 2

// DecodeChunk reads a versioned chunk container and returns every part
// whose id is not in ignoreIDs. Each returned byte slice is a fresh copy,
// never a view into blob.
func DecodeChunk(blob []byte, ignoreIDs map[uint64]struct{}) (map[uint64][]byte, error) {
	if len(blob) < chunkHeaderLen {
		return nil, errors.Wrap(ErrMalformedBlob, "chunk: truncated header")
	}
	parts := make(map[uint64][]byte)
	off := chunkHeaderLen
	for off < len(blob) {
		if off+8+4 > len(blob) {
			return nil, errors.Wrap(ErrMalformedBlob, "chunk: truncated part header")
		}
		partID := binary.LittleEndian.Uint64(blob[off:])
		off += 8
		partLen := binary.LittleEndian.Uint32(blob[off:])
		off += 4
		end := off + int(partLen)
		if end < off || end > len(blob) {
			return nil, errors.Wrap(ErrMalformedBlob, "chunk: part length exceeds blob")
		}
		if _, skip := ignoreIDs[partID]; !skip {
			buf := make([]byte, partLen)
			copy(buf, blob[off:end])
			parts[partID] = buf
		}
		off = end
	}
	return parts, nil
}

// EncodeChunk writes the two-byte zero header followed by each part as
// (id, len, bytes), in map-iteration (arbitrary) order.
func EncodeChunk(parts map[uint64][]byte) []byte {
	size := chunkHeaderLen
	for _, p := range parts {
		size += 8 + 4 + len(p)
	}
	buf := make([]byte, size)
	off := chunkHeaderLen // header already zeroed

	for id, p := range parts {
		binary.LittleEndian.PutUint64(buf[off:], id)
		off += 8
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(p)))
		off += 4
		off += copy(buf[off:], p)
	}
	return buf
}
