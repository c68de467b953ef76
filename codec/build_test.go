package codec

import (
	"encoding/binary"
	"testing"
)

func u16stream(vals ...uint16) []byte {
	buf := make([]byte, len(vals)*2)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(buf[i*2:], v)
	}
	return buf
}

func TestDecodeBuildColorMarkersAndRuns(t *testing.T) {
	// build_size = 4, then: color 3 (marker), run of 2 with color 3,
	// color 5 (marker).
	colorMarker := func(c uint16) uint16 { return c<<1 | 1 }
	run := func(n uint16) uint16 { return n << 1 }

	build := u16stream(0 /*reserved*/, 4 /*build_size*/, colorMarker(3), run(2), colorMarker(5))
	size, voxels, err := DecodeBuild(build)
	if err != nil {
		t.Fatal(err)
	}
	if size != 4 {
		t.Fatalf("got size %d, want 4", size)
	}
	if len(voxels) != 4 {
		t.Fatalf("got %d voxels, want 4", len(voxels))
	}
	for i := 0; i < 3; i++ {
		if voxels[i].Color != 3 {
			t.Errorf("voxel %d: color %d, want 3", i, voxels[i].Color)
		}
	}
	if voxels[3].Color != 5 {
		t.Errorf("voxel 3: color %d, want 5", voxels[3].Color)
	}
}

func TestIdxToVec3(t *testing.T) {
	bs := 4
	cases := []struct {
		idx  int
		want [3]int
	}{
		{0, [3]int{0, 0, 0}},
		{1, [3]int{1, 0, 0}},
		{4, [3]int{0, 0, 1}},
		{16, [3]int{0, 1, 0}},
		{21, [3]int{1, 1, 1}},
	}
	for _, c := range cases {
		got := idxToVec3(c.idx, bs)
		if got != c.want {
			t.Errorf("idxToVec3(%d,%d) = %v, want %v", c.idx, bs, got, c.want)
		}
	}
}
