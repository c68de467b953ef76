// Package kmeans implements the incremental k-means voxel-cloud
// summarizer: k-means++ initialization, Lloyd's algorithm, and a
// Welford online mean/variance + color-sum reduction per cluster.
package kmeans

import (
	"math"
	"math/rand"
)

// Point is one sample fed to Summarize: a normalized 3D position plus
// its resolved RGB color, summed per cluster in the output. Callers
// resolve a point cloud's raw color indices to RGB (see package
// colorlib) before building Points.
type Point struct {
	Pos   [3]float64
	Color [3]float32
}

// Cluster is one emitted summary record: an axis-aligned box derived
// from the cluster's mean ± stddev, and the averaged color.
type Cluster struct {
	Min, Max [3]float32
	Color    [3]float32
}

const epsilon = 1e-4

// ClusterCount implements the mandated heuristic: floor(log10(n+1))+1,
// clamped to [1, n]. Do not substitute a different rule — see the
// summarizer's design notes.
func ClusterCount(n int) int {
	if n <= 0 {
		return 0
	}
	k := int(math.Floor(math.Log10(float64(n+1)))) + 1
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

// Summarize clusters pts into k groups (k from ClusterCount) via
// k-means++ init and Lloyd's algorithm for up to maxIters iterations,
// then reduces each cluster's members into a Cluster record. pts'
// Pos values are expected to already be normalized into the unit cube.
func Summarize(pts []Point, maxIters int) []Cluster {
	n := len(pts)
	if n == 0 {
		return nil
	}
	k := ClusterCount(n)
	centroids := initPP(pts, k)
	assign := make([]int, n)

	for iter := 0; iter < maxIters; iter++ {
		changed := false
		for i, p := range pts {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				d := sqDist(p.Pos, centroid)
				if d < bestDist {
					bestDist, best = d, c
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}

		newCentroids := make([][3]float64, k)
		counts := make([]int, k)
		for i, p := range pts {
			c := assign[i]
			for a := 0; a < 3; a++ {
				newCentroids[c][a] += p.Pos[a]
			}
			counts[c]++
		}
		maxShift := 0.0
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for a := 0; a < 3; a++ {
				newCentroids[c][a] /= float64(counts[c])
			}
			maxShift = math.Max(maxShift, math.Sqrt(sqDist(centroids[c], newCentroids[c])))
			centroids[c] = newCentroids[c]
		}
		if !changed || maxShift < epsilon {
			break
		}
	}

	return reduce(pts, assign, k)
}

// initPP seeds k centroids from pts via k-means++: the first centroid
// is uniform-random, each subsequent one is chosen with probability
// proportional to its squared distance from the nearest existing
// centroid.
func initPP(pts []Point, k int) [][3]float64 {
	centroids := make([][3]float64, 0, k)
	centroids = append(centroids, pts[rand.Intn(len(pts))].Pos)

	dist := make([]float64, len(pts))
	for len(centroids) < k {
		total := 0.0
		for i, p := range pts {
			best := math.Inf(1)
			for _, c := range centroids {
				if d := sqDist(p.Pos, c); d < best {
					best = d
				}
			}
			dist[i] = best
			total += best
		}
		if total == 0 {
			// all remaining points coincide with an existing centroid
			centroids = append(centroids, pts[rand.Intn(len(pts))].Pos)
			continue
		}
		target := rand.Float64() * total
		acc := 0.0
		chosen := len(pts) - 1
		for i, d := range dist {
			acc += d
			if acc >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, pts[chosen].Pos)
	}
	return centroids
}

// reduce folds each cluster's members into online mean+M2 for position
// and a running color sum, per the Welford method, emitting the
// mean-stddev/mean+stddev box and averaged color.
func reduce(pts []Point, assign []int, k int) []Cluster {
	type acc struct {
		count     int
		mean, m2  [3]float64
		colorSum  [3]float64
	}
	accs := make([]acc, k)

	for i, p := range pts {
		a := &accs[assign[i]]
		a.count++
		n := float64(a.count)
		for d := 0; d < 3; d++ {
			delta := p.Pos[d] - a.mean[d]
			a.mean[d] += delta / n
			a.m2[d] += delta * (p.Pos[d] - a.mean[d])
			a.colorSum[d] += float64(p.Color[d])
		}
	}

	out := make([]Cluster, 0, k)
	for _, a := range accs {
		if a.count == 0 {
			continue
		}
		var stddev [3]float64
		if a.count > 1 {
			for d := 0; d < 3; d++ {
				stddev[d] = math.Sqrt(a.m2[d] / float64(a.count-1))
			}
		}
		var cl Cluster
		for d := 0; d < 3; d++ {
			cl.Min[d] = float32(a.mean[d] - stddev[d])
			cl.Max[d] = float32(a.mean[d] + stddev[d])
			cl.Color[d] = float32(a.colorSum[d] / float64(a.count))
		}
		out = append(out, cl)
	}
	return out
}

func sqDist(a, b [3]float64) float64 {
	var sum float64
	for i := 0; i < 3; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Normalize maps raw positions into the unit cube per-axis, leaving
// degenerate axes (range < 1e-6) unscaled.
func Normalize(positions [][3]float64) [][3]float64 {
	if len(positions) == 0 {
		return nil
	}
	var min, max [3]float64
	min, max = positions[0], positions[0]
	for _, p := range positions[1:] {
		for d := 0; d < 3; d++ {
			if p[d] < min[d] {
				min[d] = p[d]
			}
			if p[d] > max[d] {
				max[d] = p[d]
			}
		}
	}
	out := make([][3]float64, len(positions))
	for i, p := range positions {
		var np [3]float64
		for d := 0; d < 3; d++ {
			rng := max[d] - min[d]
			if rng < 1e-6 {
				np[d] = p[d]
			} else {
				np[d] = (p[d] - min[d]) / rng
			}
		}
		out[i] = np
	}
	return out
}
