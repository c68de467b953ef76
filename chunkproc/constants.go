package chunkproc

// Tuning constants for the chunk-processing pipeline. These are fixed
// budgets, not environment-configurable: changing them changes the
// shape of emitted artifacts, so they are compiled in rather than read
// from the environment.
const (
	// buildSizeStd is the voxel grid side length below which a build is
	// considered "standard size"; unverified plots above this size fall
	// back to the default build view.
	buildSizeStd = 48

	// pcSamplePerc is the fraction of a child's points retained when
	// merging point clouds into a coarser LOD layer.
	pcSamplePerc = 0.1

	// plotCount is the number of reserved non-voxel color indices; a
	// voxel's color index must exceed this to count as non-background.
	plotCount = 24

	// kmeansMaxIters bounds the number of Lloyd iterations per summarize
	// call.
	kmeansMaxIters = 5

	// mainBuildSize is the grid side length of the main (layer-2 world)
	// build that plot positions are projected into.
	mainBuildSize = 115
)
