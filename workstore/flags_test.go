package workstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFlagsRecognizesAllTokens(t *testing.T) {
	f := ParseFlags([]string{FlagMetadataOnly, FlagSetDefaultJSON, FlagSetDefaultBuild, FlagNoImageUpdate})
	require.Truef(t, f.MetadataOnly, "got %+v", f)
	require.Truef(t, f.SetDefaultJSON, "got %+v", f)
	require.Truef(t, f.SetDefaultBuild, "got %+v", f)
	require.Truef(t, f.NoImageUpdate, "got %+v", f)
}

func TestParseFlagsIgnoresUnknown(t *testing.T) {
	f := ParseFlags([]string{"bogus", FlagMetadataOnly, "also-bogus"})
	require.True(t, f.MetadataOnly, "expected mo to be set")
	require.Falsef(t, f.SetDefaultJSON || f.SetDefaultBuild || f.NoImageUpdate, "unexpected flags set: %+v", f)
}

func TestParseFlagsEmpty(t *testing.T) {
	f := ParseFlags(nil)
	require.Equal(t, Flags{}, f)
}
