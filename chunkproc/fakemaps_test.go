package chunkproc

import (
	"encoding/binary"
	"testing"
	"testing/fstest"

	"github.com/lodworld/tileworker/chunkid"
)

// testMaps builds a *chunkid.Maps from synthetic level-1/level-2 map
// files: l1 has a single (parent=0, child=5) record, and l2's records
// are indexed by position (child = i+1), so entry i=2 gives plot id 3
// a layer-1 parent of 9. chunkid.Load is a process-wide singleton (its
// sync.Once is package-level), so only the first call in a test binary
// loads these fixtures; every test in this package shares the result.
func testMaps(t *testing.T) *chunkid.Maps {
	t.Helper()

	l1 := encodePairs([][2]uint32{{0, 5}})
	l2 := encodePairs([][2]uint32{{1, 0}, {1, 0}, {9, 0}})

	fsys := fstest.MapFS{
		"l1.dat": {Data: l1},
		"l2.dat": {Data: l2},
	}
	m, err := chunkid.Load(fsys, "l1.dat", "l2.dat")
	if err != nil {
		t.Fatalf("chunkid.Load: %v", err)
	}
	return m
}

func encodePairs(pairs [][2]uint32) []byte {
	buf := make([]byte, len(pairs)*8)
	for i, p := range pairs {
		binary.LittleEndian.PutUint32(buf[i*8:], p[0])
		binary.LittleEndian.PutUint32(buf[i*8+4:], p[1])
	}
	return buf
}
