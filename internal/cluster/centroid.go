package cluster

import (
	"github.com/aqxion/keyword-cli/internal/model"
)

// CentroidStrategy partitions records into k centroid-based clusters, with
// k chosen by silhouette score up to MaxClusters. Initialization is
// farthest-point from the first record, not random, so the partition is
// deterministic for a given batch.
type CentroidStrategy struct {
	// MaxClusters bounds the candidate k range. When zero, 10 is used.
	MaxClusters int
	// maxIterations bounds Lloyd iterations per k.
	maxIterations int
}

// NewCentroidStrategy returns the centroid strategy with default bounds.
func NewCentroidStrategy(maxClusters int) *CentroidStrategy {
	return &CentroidStrategy{MaxClusters: maxClusters, maxIterations: 25}
}

func (s *CentroidStrategy) Name() string { return "centroid" }

// Assign picks the k in [2, maxK] with the best silhouette score and
// returns that k-means partition. Requires vectors for every record.
func (s *CentroidStrategy) Assign(records []model.KeywordRecord, vectors [][]float64) (*Assignment, error) {
	n := len(records)
	if len(vectors) != n {
		return nil, ErrNoVectors
	}
	for _, v := range vectors {
		if len(v) == 0 {
			return nil, ErrNoVectors
		}
	}
	if n < 3 {
		return nil, ErrDegenerate
	}

	maxK := s.MaxClusters
	if maxK <= 0 {
		maxK = 10
	}
	if maxK > n-1 {
		maxK = n - 1
	}

	bestK := -1
	bestScore := -1.0
	var bestLabels []int
	for k := 2; k <= maxK; k++ {
		labels := s.kmeans(vectors, k)
		if distinctCount(labels) <= 1 {
			continue
		}
		score := silhouette(vectors, labels)
		if score > bestScore {
			bestK, bestScore, bestLabels = k, score, labels
		}
	}
	if bestK < 0 {
		return nil, ErrDegenerate
	}

	return &Assignment{Labels: bestLabels, Strategy: s.Name()}, nil
}

// kmeans runs Lloyd's algorithm with farthest-point initialization seeded
// on index 0.
func (s *CentroidStrategy) kmeans(vectors [][]float64, k int) []int {
	n := len(vectors)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, vectors[0])
	for len(centroids) < k {
		farthest, maxDist := 0, -1.0
		for i := 0; i < n; i++ {
			d := distToNearest(vectors[i], centroids)
			if d > maxDist {
				farthest, maxDist = i, d
			}
		}
		centroids = append(centroids, vectors[farthest])
	}

	labels := make([]int, n)
	for iter := 0; iter < s.maxIterations; iter++ {
		changed := false
		for i := 0; i < n; i++ {
			best, bestDist := 0, cosineDistance(vectors[i], centroids[0])
			for c := 1; c < k; c++ {
				if d := cosineDistance(vectors[i], centroids[c]); d < bestDist {
					best, bestDist = c, d
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		for c := 0; c < k; c++ {
			var members []int
			for i, lb := range labels {
				if lb == c {
					members = append(members, i)
				}
			}
			if mean := meanVector(vectors, members); mean != nil {
				centroids[c] = mean
			}
		}
	}
	return labels
}

func distToNearest(v []float64, centroids [][]float64) float64 {
	best := cosineDistance(v, centroids[0])
	for _, c := range centroids[1:] {
		if d := cosineDistance(v, c); d < best {
			best = d
		}
	}
	return best
}

func distinctCount(labels []int) int {
	seen := make(map[int]struct{}, len(labels))
	for _, lb := range labels {
		seen[lb] = struct{}{}
	}
	return len(seen)
}

// silhouette returns the mean silhouette coefficient over all points:
// (b-a)/max(a,b) where a is mean intra-cluster distance and b the mean
// distance to the nearest other cluster.
func silhouette(vectors [][]float64, labels []int) float64 {
	n := len(vectors)
	groups := make(map[int][]int)
	for i, lb := range labels {
		groups[lb] = append(groups[lb], i)
	}

	total := 0.0
	counted := 0
	for i := 0; i < n; i++ {
		own := groups[labels[i]]
		if len(own) <= 1 {
			continue
		}

		a := 0.0
		for _, j := range own {
			if j != i {
				a += cosineDistance(vectors[i], vectors[j])
			}
		}
		a /= float64(len(own) - 1)

		b := -1.0
		for lb, members := range groups {
			if lb == labels[i] {
				continue
			}
			d := 0.0
			for _, j := range members {
				d += cosineDistance(vectors[i], vectors[j])
			}
			d /= float64(len(members))
			if b < 0 || d < b {
				b = d
			}
		}
		if b < 0 {
			continue
		}

		max := a
		if b > max {
			max = b
		}
		if max > 0 {
			total += (b - a) / max
		}
		counted++
	}

	if counted == 0 {
		return -1
	}
	return total / float64(counted)
}
