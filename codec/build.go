package codec

import "encoding/binary"

// Voxel is a single decoded voxel: its grid coordinates and color index.
type Voxel struct {
	X, Y, Z int
	Color   uint16
}

// DecodeBuild parses the little-endian u16 RLE stream: index 0 is
// reserved, index 1 is the cubic grid edge length, and from index 2 on
// each entry is either a color marker (low bit 1, color = x>>1, one
// voxel) or a run (low bit 0, length = x>>1, that many voxels repeating
// the current color). Returns the grid size and the decoded voxels in
// linear-index order.
func DecodeBuild(build []byte) (buildSize uint16, voxels []Voxel, err error) {
	if len(build) < 4 {
		return 0, nil, ErrMalformedBlob
	}
	u16 := make([]uint16, len(build)/2)
	for i := range u16 {
		u16[i] = binary.LittleEndian.Uint16(build[i*2:])
	}
	buildSize = u16[1]
	bs := int(buildSize)

	var (
		linear      int
		curColor    uint16
		haveColor   bool
	)
	for _, x := range u16[2:] {
		if x&1 == 1 {
			curColor = x >> 1
			haveColor = true
			pos := idxToVec3(linear, bs)
			voxels = append(voxels, Voxel{pos[0], pos[1], pos[2], curColor})
			linear++
		} else {
			length := int(x >> 1)
			if !haveColor {
				// a run before any color marker has no defined color;
				// skip positions without emitting voxels.
				linear += length
				continue
			}
			for i := 0; i < length; i++ {
				pos := idxToVec3(linear, bs)
				voxels = append(voxels, Voxel{pos[0], pos[1], pos[2], curColor})
				linear++
			}
		}
	}
	return buildSize, voxels, nil
}

// idxToVec3 maps a linear voxel index into grid coordinates, mirroring
// Utils::idxToVec3: (idx % bs, idx / bs^2, (idx % bs^2) / bs).
func idxToVec3(idx, bs int) [3]int {
	if bs == 0 {
		return [3]int{0, 0, 0}
	}
	bs2 := bs * bs
	x := idx % bs
	y := idx / bs2
	z := (idx % bs2) / bs
	return [3]int{x, y, z}
}
