// Package route builds closed service tours over a depot and a set of
// targets: nearest neighbour construction followed by 2-opt.
//
// Node 0 is always the depot. Distances are haversine kilometres computed
// once into a matrix, so the solver only ever reads positions.
package route

import (
	"fmt"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/geo"
	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/model/entities"
)

const (
	// MaxIterations caps the accepted 2-opt moves of one run.
	MaxIterations = 200
	// Tolerance is the minimum gain in km for a 2-opt move to count.
	Tolerance = 1e-9
)

// Route is a sequence of node indices into [depot, target_1, ..., target_k].
type Route []int

// Valid checks the closed tour invariant for k targets.
func (r Route) Valid(k int) error {
	if k == 0 {
		if len(r) != 1 || r[0] != 0 {
			return fmt.Errorf("route %v: expected [0] with no targets", []int(r))
		}
		return nil
	}
	if len(r) != k+2 {
		return fmt.Errorf("route %v: expected %d nodes, got %d", []int(r), k+2, len(r))
	}
	if r[0] != 0 || r[len(r)-1] != 0 {
		return fmt.Errorf("route %v: must start and end at the depot", []int(r))
	}
	seen := make([]bool, k+1)
	for _, idx := range r[1 : len(r)-1] {
		if idx < 1 || idx > k {
			return fmt.Errorf("route %v: index %d out of range 1..%d", []int(r), idx, k)
		}
		if seen[idx] {
			return fmt.Errorf("route %v: index %d visited twice", []int(r), idx)
		}
		seen[idx] = true
	}
	return nil
}

// Points maps the route onto coordinates.
func (r Route) Points(coords []entities.Point) []entities.Point {
	out := make([]entities.Point, len(r))
	for i, idx := range r {
		out[i] = coords[idx]
	}
	return out
}

// Clone returns an independent copy.
func (r Route) Clone() Route {
	return append(Route(nil), r...)
}

// DistanceMatrix holds symmetric pairwise distances in km.
type DistanceMatrix [][]float64

// NewDistanceMatrix computes the haversine distance of every pair once.
func NewDistanceMatrix(coords []entities.Point) DistanceMatrix {
	n := len(coords)
	m := make(DistanceMatrix, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := geo.HaversineKm(coords[i], coords[j])
			m[i][j] = d
			m[j][i] = d
		}
	}
	return m
}

// Length sums the legs of r.
func (m DistanceMatrix) Length(r Route) float64 {
	total := 0.0
	for i := 0; i+1 < len(r); i++ {
		total += m[r[i]][r[i+1]]
	}
	return total
}
