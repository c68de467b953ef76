package chunkid

import "testing"

func TestParseMakeRoundTrip(t *testing.T) {
	cases := []string{"0_5", "l1_3", "2_a1f", "l0_0", "1_7fffffff"}
	for _, s := range cases {
		id, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		got := Make(id.Layer, id.Index, id.IsLOD)
		if got != s {
			t.Errorf("round trip: Parse(%q) -> Make = %q", s, got)
		}
	}
}

func TestParseLODFlag(t *testing.T) {
	id, err := Parse("l2_7")
	if err != nil {
		t.Fatal(err)
	}
	if !id.IsLOD || id.Layer != 2 || id.Index != 7 {
		t.Fatalf("got %+v", id)
	}

	id2, err := Parse("2_7")
	if err != nil {
		t.Fatal(err)
	}
	if id2.IsLOD {
		t.Fatalf("expected non-LOD, got %+v", id2)
	}
}

func TestParseInvalid(t *testing.T) {
	bad := []string{"", "l", "_5", "5_", "g_5", "5_g", "l_5", "notanid"}
	for _, s := range bad {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", s)
		}
	}
}

func TestStringMatchesMake(t *testing.T) {
	id := ID{Layer: 1, Index: 0x2a, IsLOD: true}
	if id.String() != "l1_2a" {
		t.Fatalf("got %q", id.String())
	}
}
