package route

import (
	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/geo"
	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/model/entities"
)

// Solution is the outcome of Solve.
type Solution struct {
	Route           Route   `json:"route"`
	NearestNeighbor Route   `json:"nearest_neighbor"`
	NNDistanceKm    float64 `json:"nn_distance_km"`
	OptDistanceKm   float64 `json:"opt_distance_km"`
	Moves           int     `json:"two_opt_moves"`
}

// NearestNeighbor starts at node 0 and always moves to the closest unvisited
// node, the lowest index winning ties, then returns to 0.
func NearestNeighbor(coords []entities.Point) Route {
	return nearestNeighbor(NewDistanceMatrix(coords))
}

func nearestNeighbor(m DistanceMatrix) Route {
	n := len(m)
	if n == 0 {
		return Route{}
	}
	visited := make([]bool, n)
	visited[0] = true
	r := make(Route, 1, n+1)
	current := 0
	for step := 1; step < n; step++ {
		next := -1
		best := 0.0
		for j := 1; j < n; j++ {
			if visited[j] {
				continue
			}
			if next == -1 || m[current][j] < best {
				next, best = j, m[current][j]
			}
		}
		visited[next] = true
		r = append(r, next)
		current = next
	}
	if n > 1 {
		r = append(r, 0)
	}
	return r
}

// TwoOpt improves r by reversing segments r[i..k], 1 <= i < k <= len(r)-2.
// The first move shortening the tour by more than Tolerance is applied and the
// scan restarts; it stops on a full scan without improvement or after
// maxIterations moves. It returns the new route and the number of moves.
func TwoOpt(r Route, coords []entities.Point, maxIterations int) (Route, int) {
	return twoOpt(r, NewDistanceMatrix(coords), maxIterations)
}

func twoOpt(r Route, m DistanceMatrix, maxIterations int) (Route, int) {
	best := r.Clone()
	if len(best) < 4 {
		return best, 0
	}
	moves := 0
	for moves < maxIterations {
		i, k, ok := firstImprovingMove(best, m)
		if !ok {
			break
		}
		reverse(best[i : k+1])
		moves++
	}
	return best, moves
}

// firstImprovingMove scans pairs in (i, k) order. Reversing r[i..k] replaces
// edges (r[i-1], r[i]) and (r[k], r[k+1]) by (r[i-1], r[k]) and (r[i], r[k+1]);
// the matrix is symmetric so inner edges keep their length.
func firstImprovingMove(r Route, m DistanceMatrix) (int, int, bool) {
	last := len(r) - 2
	for i := 1; i < last; i++ {
		a, b := r[i-1], r[i]
		for k := i + 1; k <= last; k++ {
			c, e := r[k], r[k+1]
			delta := m[a][c] + m[b][e] - m[a][b] - m[c][e]
			if delta < -Tolerance {
				return i, k, true
			}
		}
	}
	return 0, 0, false
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// Solve builds the tour over [depot, targets...]. No targets yields [0] with
// zero distances.
func Solve(depot entities.Point, targets []entities.Point) Solution {
	coords := make([]entities.Point, 0, len(targets)+1)
	coords = append(coords, depot)
	coords = append(coords, targets...)
	return SolveCoords(coords)
}

// SolveCoords is Solve for an already assembled coordinate list.
func SolveCoords(coords []entities.Point) Solution {
	m := NewDistanceMatrix(coords)
	nn := nearestNeighbor(m)
	opt, moves := twoOpt(nn, m, MaxIterations)
	return Solution{
		Route:           opt,
		NearestNeighbor: nn,
		NNDistanceKm:    geo.PathLengthKm(nn.Points(coords)),
		OptDistanceKm:   geo.PathLengthKm(opt.Points(coords)),
		Moves:           moves,
	}
}
