package objstore

import "testing"

func TestLRUEvictsFromTail(t *testing.T) {
	c := newLRU(int64(3 * (10 + perEntryOverhead)))
	c.put("b", "k1", Outcome{Body: make([]byte, 10)})
	c.put("b", "k2", Outcome{Body: make([]byte, 10)})
	c.put("b", "k3", Outcome{Body: make([]byte, 10)})
	if c.size > c.capacity {
		t.Fatalf("size %d exceeds capacity %d", c.size, c.capacity)
	}

	// k1 is now least-recently-used; inserting k4 must evict it.
	c.put("b", "k4", Outcome{Body: make([]byte, 10)})
	if _, ok := c.get("b", "k1"); ok {
		t.Fatal("k1 should have been evicted")
	}
	if _, ok := c.get("b", "k4"); !ok {
		t.Fatal("k4 should be present")
	}
	if c.size > c.capacity {
		t.Fatalf("size %d exceeds capacity %d", c.size, c.capacity)
	}
}

func TestLRURePutPromotes(t *testing.T) {
	c := newLRU(int64(2 * (10 + perEntryOverhead)))
	c.put("b", "k1", Outcome{Body: make([]byte, 10)})
	c.put("b", "k2", Outcome{Body: make([]byte, 10)})

	// re-put k1 (simulating a fresh put(...,useCache=true)) moves it to
	// the front, so the next eviction should remove k2 instead.
	c.put("b", "k1", Outcome{Body: make([]byte, 10)})
	c.put("b", "k3", Outcome{Body: make([]byte, 10)})

	if _, ok := c.get("b", "k2"); ok {
		t.Fatal("k2 should have been evicted")
	}
	if _, ok := c.get("b", "k1"); !ok {
		t.Fatal("k1 should still be present")
	}
}

func TestLRUBoundHoldsAfterAnySequence(t *testing.T) {
	c := newLRU(int64(5 * (20 + perEntryOverhead)))
	for i := 0; i < 100; i++ {
		key := string(rune('a' + i%7))
		c.put("bucket", key, Outcome{Body: make([]byte, 20)})
		if c.size > c.capacity {
			t.Fatalf("iteration %d: size %d exceeds capacity %d", i, c.size, c.capacity)
		}
	}
}
