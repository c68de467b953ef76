package chunkproc

import (
	"os"

	"github.com/lodworld/tileworker/codec"
)

// defaultBuildPath is the on-disk location of the canonical empty-plot
// build fixture, relative to the process's working directory.
const defaultBuildPath = "static/default_build.dat"

// defaultBuildFixture returns the worker's canonical empty-plot build
// bytes, loaded once per process.
func defaultBuildFixture() ([]byte, error) {
	return codec.LoadDefaultBuildView(os.DirFS("."), defaultBuildPath)
}
