package colorlib

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetBelowOffsetIsUnresolved(t *testing.T) {
	for _, idx := range []int{0, 1, plotCount} {
		_, ok := Get(idx)
		require.Falsef(t, ok, "idx %d should be unresolved", idx)
	}
}

func TestGetFirstGreyscaleEntryIsWhite(t *testing.T) {
	rgb, ok := Get(offset)
	require.True(t, ok, "expected offset index to resolve")
	require.Equal(t, [3]float32{1, 1, 1}, rgb)
}

func TestNonBackground(t *testing.T) {
	require.False(t, NonBackground(plotCount), "plotCount itself is background")
	require.True(t, NonBackground(plotCount+1), "plotCount+1 should be non-background")
}
