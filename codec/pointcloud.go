package codec

import (
	"encoding/binary"
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

const pcHeaderLen = 2 + 4 + 4 // reserved + total_entries + total_points

// PointCloud is a set of 3D points with per-point u16 color indices.
// len(Points) == len(Colors).
type PointCloud struct {
	Points [][3]float32
	Colors []uint16
}

// NPoints reports the number of points in pc.
func (pc *PointCloud) NPoints() int { return len(pc.Points) }

// DecodePointCloud parses the header table and point/color regions,
// emitting one PointCloud per child id not present in ignoreIDs. The
// header walk yields contiguous point/color slices in header order.
func DecodePointCloud(blob []byte, ignoreIDs map[uint64]struct{}) (map[uint64]PointCloud, error) {
	if len(blob) < pcHeaderLen {
		return nil, errors.Wrap(ErrMalformedBlob, "pointcloud: truncated header")
	}
	totalEntries := binary.LittleEndian.Uint32(blob[2:])
	totalPoints := binary.LittleEndian.Uint32(blob[6:])

	off := pcHeaderLen
	type hdrEntry struct {
		childID  uint64
		nPoints  uint32
	}
	headers := make([]hdrEntry, 0, totalEntries)
	var sum uint64
	for i := uint32(0); i < totalEntries; i++ {
		if off+8+4 > len(blob) {
			return nil, errors.Wrap(ErrMalformedBlob, "pointcloud: truncated header table")
		}
		childID := binary.LittleEndian.Uint64(blob[off:])
		off += 8
		n := binary.LittleEndian.Uint32(blob[off:])
		off += 4
		headers = append(headers, hdrEntry{childID, n})
		sum += uint64(n)
	}
	if sum != uint64(totalPoints) {
		return nil, errors.Wrap(ErrMalformedBlob, "pointcloud: header n_points sum mismatch")
	}

	pointsStart := off
	pointsLen := int(totalPoints) * 12
	colorsStart := pointsStart + pointsLen
	colorsLen := int(totalPoints) * 2
	if colorsStart+colorsLen > len(blob) {
		return nil, errors.Wrap(ErrMalformedBlob, "pointcloud: truncated points/colors region")
	}

	out := make(map[uint64]PointCloud)
	pOff, cOff := pointsStart, colorsStart
	for _, h := range headers {
		n := int(h.nPoints)
		if _, skip := ignoreIDs[h.childID]; skip {
			pOff += n * 12
			cOff += n * 2
			continue
		}
		pts := make([][3]float32, n)
		cols := make([]uint16, n)
		for i := 0; i < n; i++ {
			pts[i][0] = math.Float32frombits(binary.LittleEndian.Uint32(blob[pOff:]))
			pts[i][1] = math.Float32frombits(binary.LittleEndian.Uint32(blob[pOff+4:]))
			pts[i][2] = math.Float32frombits(binary.LittleEndian.Uint32(blob[pOff+8:]))
			pOff += 12
			cols[i] = binary.LittleEndian.Uint16(blob[cOff:])
			cOff += 2
		}
		out[h.childID] = PointCloud{Points: pts, Colors: cols}
	}
	return out, nil
}

// EncodePointCloud computes the exact output size in one pass, writes the
// header table while accumulating offsets, then appends points and
// colors. Must not be called with an empty map: a point-cloud blob with
// zero entries is never written.
func EncodePointCloud(pcs map[uint64]PointCloud) []byte {
	var totalPoints int
	for _, pc := range pcs {
		totalPoints += len(pc.Points)
	}
	size := pcHeaderLen + len(pcs)*12 + totalPoints*12 + totalPoints*2
	buf := make([]byte, size)

	binary.LittleEndian.PutUint32(buf[2:], uint32(len(pcs)))
	binary.LittleEndian.PutUint32(buf[6:], uint32(totalPoints))

	hdrOff := pcHeaderLen
	pointsBase := pcHeaderLen + len(pcs)*12
	colorsBase := pointsBase + totalPoints*12
	pOff, cOff := pointsBase, colorsBase

	for childID, pc := range pcs {
		binary.LittleEndian.PutUint64(buf[hdrOff:], childID)
		binary.LittleEndian.PutUint32(buf[hdrOff+8:], uint32(len(pc.Points)))
		hdrOff += 12

		for i, pt := range pc.Points {
			binary.LittleEndian.PutUint32(buf[pOff:], math.Float32bits(pt[0]))
			binary.LittleEndian.PutUint32(buf[pOff+4:], math.Float32bits(pt[1]))
			binary.LittleEndian.PutUint32(buf[pOff+8:], math.Float32bits(pt[2]))
			pOff += 12
			binary.LittleEndian.PutUint16(buf[cOff:], pc.Colors[i])
			cOff += 2
		}
	}
	return buf
}

// DecodeSinglePointCloud reads the whole blob's point+color arrays as one
// sequence (ignoring the header table's per-child boundaries) and returns
// a uniformly-random subset of size max(2, floor(total*sampleFraction)),
// capped at total, sampled without replacement via index shuffle.
func DecodeSinglePointCloud(blob []byte, sampleFraction float64) (PointCloud, error) {
	if len(blob) < pcHeaderLen {
		return PointCloud{}, errors.Wrap(ErrMalformedBlob, "pointcloud: truncated header")
	}
	totalPoints := int(binary.LittleEndian.Uint32(blob[6:]))
	totalEntries := int(binary.LittleEndian.Uint32(blob[2:]))

	pointsStart := pcHeaderLen + totalEntries*12
	pointsLen := totalPoints * 12
	colorsStart := pointsStart + pointsLen
	colorsLen := totalPoints * 2
	if colorsStart+colorsLen > len(blob) {
		return PointCloud{}, errors.Wrap(ErrMalformedBlob, "pointcloud: truncated points/colors region")
	}

	want := int(float64(totalPoints) * sampleFraction)
	if want < 2 {
		want = 2
	}
	if want > totalPoints {
		want = totalPoints
	}

	idx := rand.Perm(totalPoints)[:want]
	pts := make([][3]float32, want)
	cols := make([]uint16, want)
	for i, j := range idx {
		po := pointsStart + j*12
		co := colorsStart + j*2
		pts[i][0] = math.Float32frombits(binary.LittleEndian.Uint32(blob[po:]))
		pts[i][1] = math.Float32frombits(binary.LittleEndian.Uint32(blob[po+4:]))
		pts[i][2] = math.Float32frombits(binary.LittleEndian.Uint32(blob[po+8:]))
		cols[i] = binary.LittleEndian.Uint16(blob[co:])
	}
	return PointCloud{Points: pts, Colors: cols}, nil
}
