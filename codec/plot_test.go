package codec

import (
	"bytes"
	"testing"
	"testing/fstest"
)

func TestPlotRoundTrip(t *testing.T) {
	j := []byte(`{"owner":"alice"}`)
	b := []byte{0, 0, 4, 0, 1, 3, 5, 0}
	blob := EncodePlot(j, b)

	gotJSON, err := GetJSON(blob)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gotJSON, j) {
		t.Errorf("json mismatch: got %s want %s", gotJSON, j)
	}

	gotBuild, err := GetBuildView(blob)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gotBuild, b) {
		t.Errorf("build mismatch: got %v want %v", gotBuild, b)
	}
}

func TestPlotRoundTripEmpty(t *testing.T) {
	blob := EncodePlot([]byte{}, []byte{})
	j, err := GetJSON(blob)
	if err != nil || len(j) != 0 {
		t.Fatalf("json: %v %v", j, err)
	}
	b, err := GetBuildView(blob)
	if err != nil || len(b) != 0 {
		t.Fatalf("build: %v %v", b, err)
	}
}

func TestGetBuildSize(t *testing.T) {
	build := []byte{0, 0, 16, 0} // reserved=0, build_size=16
	blob := EncodePlot([]byte(`{}`), build)
	size, err := GetBuildSize(blob)
	if err != nil {
		t.Fatal(err)
	}
	if size != 16 {
		t.Fatalf("got %d, want 16", size)
	}
}

func TestLoadDefaultBuildViewOnce(t *testing.T) {
	resetDefaultBuildOnceForTest()
	fsys := fstest.MapFS{"default_build.dat": {Data: []byte{1, 2, 3, 4}}}
	got, err := LoadDefaultBuildView(fsys, "default_build.dat")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Fatalf("got %v", got)
	}

	// a second load against a different fixture still returns the first
	// result: the static table is loaded once per process.
	fsys2 := fstest.MapFS{"default_build.dat": {Data: []byte{9, 9}}}
	got2, err := LoadDefaultBuildView(fsys2, "default_build.dat")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got2, []byte{1, 2, 3, 4}) {
		t.Fatalf("expected cached value, got %v", got2)
	}
}

func TestDefaultJSON(t *testing.T) {
	var v map[string]any
	if err := json.Unmarshal(DefaultJSON(), &v); err != nil {
		t.Fatal(err)
	}
	if v["link"] != "" || v["linkTitle"] != "" {
		t.Fatalf("got %+v", v)
	}
}
