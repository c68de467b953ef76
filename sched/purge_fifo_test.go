package sched

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPurgeFIFOPushIsIdempotent(t *testing.T) {
	f := NewPurgeFIFO()
	f.Push("a")
	f.Push("b")
	f.Push("a")
	require.Equal(t, 2, f.Len())
}

func TestPurgeFIFOPopUpToPreservesOrder(t *testing.T) {
	f := NewPurgeFIFO()
	f.Push("a")
	f.Push("b")
	f.Push("c")
	got := f.PopUpTo(2)
	require.Equal(t, []string{"a", "b"}, got)
	require.Equal(t, 1, f.Len())

	// "a" can be re-pushed now that it's been popped.
	f.Push("a")
	require.Equal(t, 2, f.Len())
}

func TestPurgeFIFODrainAll(t *testing.T) {
	f := NewPurgeFIFO()
	f.Push("a")
	f.Push("b")
	got := f.DrainAll()
	require.Len(t, got, 2)
	require.Equal(t, 0, f.Len())
}
