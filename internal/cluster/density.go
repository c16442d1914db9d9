package cluster

import (
	"github.com/aqxion/keyword-cli/internal/model"
)

// DensityStrategy groups records by local density in embedding space
// (DBSCAN over cosine distance). Points without enough close neighbors are
// marked as noise. Iteration is index-ordered, so results are deterministic
// for a given batch.
type DensityStrategy struct {
	// Eps is the cosine-distance neighborhood radius.
	Eps float64
	// MinPoints is the minimum neighborhood size to seed a cluster. When
	// zero, max(2, n/20) is used.
	MinPoints int
}

// NewDensityStrategy returns the density strategy with default parameters.
func NewDensityStrategy() *DensityStrategy {
	return &DensityStrategy{Eps: 0.35}
}

func (s *DensityStrategy) Name() string { return "density" }

// Assign runs DBSCAN. Requires vectors for every record.
func (s *DensityStrategy) Assign(records []model.KeywordRecord, vectors [][]float64) (*Assignment, error) {
	n := len(records)
	if len(vectors) != n {
		return nil, ErrNoVectors
	}
	for _, v := range vectors {
		if len(v) == 0 {
			return nil, ErrNoVectors
		}
	}

	minPts := s.MinPoints
	if minPts <= 0 {
		minPts = n / 20
		if minPts < 2 {
			minPts = 2
		}
	}

	const unvisited = -2
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	nextID := 0
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}

		neighbors := s.neighbors(vectors, i)
		if len(neighbors) < minPts {
			labels[i] = model.ClusterNoise
			continue
		}

		id := nextID
		nextID++
		labels[i] = id

		// Expand the cluster over the growing neighbor frontier.
		for q := 0; q < len(neighbors); q++ {
			j := neighbors[q]
			if labels[j] == model.ClusterNoise {
				labels[j] = id // border point
				continue
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = id

			jn := s.neighbors(vectors, j)
			if len(jn) >= minPts {
				neighbors = append(neighbors, jn...)
			}
		}
	}

	return &Assignment{Labels: labels, Strategy: s.Name()}, nil
}

// neighbors returns the indices within Eps of point i, i included.
func (s *DensityStrategy) neighbors(vectors [][]float64, i int) []int {
	var out []int
	for j := range vectors {
		if cosineDistance(vectors[i], vectors[j]) <= s.Eps {
			out = append(out, j)
		}
	}
	return out
}
