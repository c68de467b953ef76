package chunkid

import (
	"encoding/binary"
	"io"
	"io/fs"
	"sync"

	"github.com/pkg/errors"
)

// Maps holds the four lookup tables built once from the two static map
// files: forward (parent -> children) for layers 0 and 1 (layer 2 is the
// finest and has no children), and backward (child -> parent) for layers
// 1 and 2. Layer 0 maps to identity: every
// layer-0 index is its own "parent" and has no layer -1 backward map.
type Maps struct {
	fwd0 [][]uint32 // index by L0 parent -> its L1 children
	fwd1 [][]uint32 // index by L1 parent -> its L2 children
	bwd1 []uint32   // index by L1 child  -> its L0 parent
	bwd2 []uint32   // index by L2 child  -> its L1 parent
}

var (
	once     sync.Once
	onceErr  error
	loaded   *Maps
)

// Load builds the Maps once per process from the two map files, both read
// from fsys (relative paths l1Path, l2Path). Subsequent calls return the first-loaded result, matching the
// "static process-wide tables" design: the real loader path reads
// static/cmap_l1.dat and static/cmap_l2.dat relative to the process's
// working directory via os.DirFS(".").
func Load(fsys fs.FS, l1Path, l2Path string) (*Maps, error) {
	once.Do(func() {
		loaded, onceErr = build(fsys, l1Path, l2Path)
	})
	return loaded, onceErr
}

func build(fsys fs.FS, l1Path, l2Path string) (*Maps, error) {
	l1pairs, err := readPairs(fsys, l1Path)
	if err != nil {
		return nil, errors.Wrap(err, "chunkid: loading level-1 map")
	}
	l2pairs, err := readPairs(fsys, l2Path)
	if err != nil {
		return nil, errors.Wrap(err, "chunkid: loading level-2 map")
	}

	m := &Maps{
		fwd0: make([][]uint32, L0Size),
		fwd1: make([][]uint32, L1Size),
		bwd1: make([]uint32, L1Size),
		// Layer-2 child ids are assigned 1-based (below), so they range
		// over [1, L2Size]; size bwd2 to hold index L2Size itself.
		bwd2: make([]uint32, L2Size+1),
	}

	for _, pr := range l1pairs {
		parent, child := pr[0], pr[1]
		if int(parent) >= len(m.fwd0) || int(child) >= len(m.bwd1) {
			return nil, errors.Errorf("chunkid: level-1 map record (%d,%d) out of range", parent, child)
		}
		m.fwd0[parent] = append(m.fwd0[parent], child)
		m.bwd1[child] = parent
	}

	// The level-2 file's child id is derived from 1-based sequence
	// position, not the on-disk record; only the parent field is read.
	for i, pr := range l2pairs {
		parent := pr[0]
		child := uint32(i + 1)
		if int(parent) >= len(m.fwd1) || int(child) >= len(m.bwd2) {
			return nil, errors.Errorf("chunkid: level-2 map record #%d (parent=%d) out of range", i, parent)
		}
		m.fwd1[parent] = append(m.fwd1[parent], child)
		m.bwd2[child] = parent
	}

	return m, nil
}

// readPairs reads a sequence of little-endian u32 (parent, child) pairs.
func readPairs(fsys fs.FS, path string) ([][2]uint32, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(raw)%8 != 0 {
		return nil, errors.Errorf("%s: length %d is not a multiple of 8", path, len(raw))
	}
	pairs := make([][2]uint32, 0, len(raw)/8)
	for off := 0; off < len(raw); off += 8 {
		parent := binary.LittleEndian.Uint32(raw[off:])
		child := binary.LittleEndian.Uint32(raw[off+4:])
		pairs = append(pairs, [2]uint32{parent, child})
	}
	return pairs, nil
}

// resetOnceForTest clears the process-wide singleton so tests can load
// distinct fixtures. Not exported; production code must never reset the
// static tables mid-process.
func resetOnceForTest() {
	once = sync.Once{}
	loaded, onceErr = nil, nil
}

// Fwd returns the children of parentIndex at the given layer (0 or 1;
// layer 2 has no forward map since it is the finest layer).
func (m *Maps) Fwd(layer int, parentIndex uint32) []uint32 {
	switch layer {
	case 0:
		if int(parentIndex) >= len(m.fwd0) {
			return nil
		}
		return m.fwd0[parentIndex]
	case 1:
		if int(parentIndex) >= len(m.fwd1) {
			return nil
		}
		return m.fwd1[parentIndex]
	default:
		return nil
	}
}

// Bwd returns the parent of childIndex at the given layer (1 or 2).
// Layer 0 maps to identity: Bwd(0, i) returns i.
func (m *Maps) Bwd(layer int, childIndex uint32) (uint32, error) {
	switch layer {
	case 0:
		return childIndex, nil
	case 1:
		if int(childIndex) >= len(m.bwd1) {
			return 0, errors.Errorf("chunkid: layer-1 child %d out of range", childIndex)
		}
		return m.bwd1[childIndex], nil
	case 2:
		if int(childIndex) >= len(m.bwd2) {
			return 0, errors.Errorf("chunkid: layer-2 child %d out of range", childIndex)
		}
		return m.bwd2[childIndex], nil
	default:
		return 0, errors.Errorf("chunkid: no backward map for layer %d", layer)
	}
}

// PlotWorldPosIdx maps a layer-2 (plot) id to its world position index,
// i.e. its layer-1 parent. plotID must be in [1, L2Size].
func (m *Maps) PlotWorldPosIdx(plotID uint32) (uint32, error) {
	if plotID < 1 || int(plotID) > L2Size {
		return 0, errors.Errorf("chunkid: plot id %d out of range [1,%d]", plotID, L2Size)
	}
	return m.Bwd(2, plotID)
}
