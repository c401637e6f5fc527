package route

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/geo"
	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/model/entities"
)

var depot = entities.Point{Lat: 12.969, Lon: 79.159}

func randomCoords(rng *rand.Rand, n int) []entities.Point {
	coords := []entities.Point{depot}
	for i := 0; i < n; i++ {
		coords = append(coords, entities.Point{
			Lat: depot.Lat + (rng.Float64()-0.5)*0.02,
			Lon: depot.Lon + (rng.Float64()-0.5)*0.02,
		})
	}
	return coords
}

func TestRouteValid(t *testing.T) {
	tests := []struct {
		name    string
		route   Route
		k       int
		wantErr bool
	}{
		{"depot only", Route{0}, 0, false},
		{"single target", Route{0, 1, 0}, 1, false},
		{"permutation", Route{0, 3, 1, 2, 0}, 3, false},
		{"empty with targets", Route{}, 2, true},
		{"no targets but not [0]", Route{0, 0}, 0, true},
		{"does not start at depot", Route{1, 0, 2, 0}, 2, true},
		{"does not end at depot", Route{0, 1, 2, 1}, 2, true},
		{"duplicate", Route{0, 1, 1, 0}, 2, true},
		{"out of range", Route{0, 1, 3, 0}, 2, true},
		{"depot inside", Route{0, 1, 0, 0}, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.route.Valid(tt.k)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDistanceMatrix(t *testing.T) {
	coords := randomCoords(rand.New(rand.NewSource(1)), 6)
	m := NewDistanceMatrix(coords)
	require.Len(t, m, 7)
	for i := range coords {
		assert.Equal(t, 0.0, m[i][i])
		for j := range coords {
			assert.Equal(t, m[i][j], m[j][i])
			if i < j {
				assert.InDelta(t, geo.HaversineKm(coords[i], coords[j]), m[i][j], 1e-12)
			}
		}
	}
	r := Route{0, 2, 4, 6, 1, 3, 5, 0}
	assert.InDelta(t, geo.PathLengthKm(r.Points(coords)), m.Length(r), 1e-9)
}

func TestNearestNeighbor_Degenerate(t *testing.T) {
	assert.Equal(t, Route{0}, NearestNeighbor([]entities.Point{depot}))
	assert.Equal(t, Route{0, 1, 0}, NearestNeighbor([]entities.Point{depot, {Lat: 13, Lon: 79.2}}))
	assert.Equal(t, Route{}, NearestNeighbor(nil))
}

func TestNearestNeighbor_PicksClosestFirst(t *testing.T) {
	coords := []entities.Point{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 3},
		{Lat: 0, Lon: 1},
		{Lat: 0, Lon: 2},
	}
	assert.Equal(t, Route{0, 2, 3, 1, 0}, NearestNeighbor(coords))
}

func TestNearestNeighbor_TiesGoToLowestIndex(t *testing.T) {
	coords := []entities.Point{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 0.01},
		{Lat: 0, Lon: -0.01},
	}
	assert.Equal(t, Route{0, 1, 2, 0}, NearestNeighbor(coords))

	dup := []entities.Point{
		{Lat: 0, Lon: 0},
		{Lat: 0.01, Lon: 0.01},
		{Lat: 0.01, Lon: 0.01},
		{Lat: 0, Lon: 0},
	}
	// a target on top of the depot is visited first, duplicates in index order
	assert.Equal(t, Route{0, 3, 1, 2, 0}, NearestNeighbor(dup))
}

func TestTwoOpt_UncrossesTour(t *testing.T) {
	coords := []entities.Point{
		{Lat: 0, Lon: 0},
		{Lat: -0.007, Lon: 0.007},
		{Lat: 0.005, Lon: -0.005},
		{Lat: 0, Lon: -0.001},
		{Lat: 0.003, Lon: 0.006},
		{Lat: -0.008, Lon: -0.009},
	}
	nn := NearestNeighbor(coords)
	require.Equal(t, Route{0, 3, 2, 4, 1, 5, 0}, nn)

	opt, moves := TwoOpt(nn, coords, MaxIterations)
	if diff := cmp.Diff(Route{0, 3, 2, 5, 1, 4, 0}, opt); diff != "" {
		t.Errorf("2-opt route mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, moves)
	assert.InDelta(t, 6.3054, geo.PathLengthKm(nn.Points(coords)), 1e-3)
	assert.InDelta(t, 5.9816, geo.PathLengthKm(opt.Points(coords)), 1e-3)
	assert.Equal(t, Route{0, 3, 2, 4, 1, 5, 0}, nn, "input route must not be modified")
}

func TestTwoOpt_NoOpOnShortRoutes(t *testing.T) {
	coords := []entities.Point{depot, {Lat: 13, Lon: 79.2}, {Lat: 13.1, Lon: 79.1}}
	for _, r := range []Route{{0}, {0, 1, 0}} {
		got, moves := TwoOpt(r, coords, MaxIterations)
		assert.Equal(t, r, got)
		assert.Equal(t, 0, moves)
	}
	// with two targets the only reversal yields the same cycle backwards
	got, moves := TwoOpt(Route{0, 1, 2, 0}, coords, MaxIterations)
	assert.Equal(t, Route{0, 1, 2, 0}, got)
	assert.Equal(t, 0, moves)
}

func TestTwoOpt_RespectsIterationCap(t *testing.T) {
	var coords []entities.Point
	var nn, full Route
	for seed := int64(1); seed <= 50; seed++ {
		coords = randomCoords(rand.New(rand.NewSource(seed)), 30)
		nn = NearestNeighbor(coords)
		var fullMoves int
		if full, fullMoves = TwoOpt(nn, coords, MaxIterations); fullMoves > 1 {
			break
		}
	}
	require.NotEqual(t, nn, full, "no instance needed more than one move")

	capped, moves := TwoOpt(nn, coords, 1)
	assert.Equal(t, 1, moves)
	m := NewDistanceMatrix(coords)
	assert.Less(t, m.Length(capped), m.Length(nn))
	assert.LessOrEqual(t, m.Length(full), m.Length(capped)+1e-9)

	none, moves := TwoOpt(nn, coords, 0)
	assert.Equal(t, nn, none)
	assert.Equal(t, 0, moves)
}

func TestSolve_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(2024))
	for trial := 0; trial < 200; trial++ {
		k := rng.Intn(25)
		coords := randomCoords(rng, k)
		sol := Solve(coords[0], coords[1:])

		require.NoError(t, sol.Route.Valid(k), "trial %d", trial)
		require.NoError(t, sol.NearestNeighbor.Valid(k), "trial %d", trial)
		assert.LessOrEqual(t, sol.OptDistanceKm, sol.NNDistanceKm+1e-9, "trial %d", trial)
		assert.InDelta(t, geo.PathLengthKm(sol.Route.Points(coords)), sol.OptDistanceKm, 1e-12)

		if sol.Moves < MaxIterations {
			again, moves := TwoOpt(sol.Route, coords, MaxIterations)
			assert.Equal(t, 0, moves, "trial %d", trial)
			if diff := cmp.Diff(sol.Route, again); diff != "" {
				t.Errorf("trial %d: 2-opt not idempotent (-first +second):\n%s", trial, diff)
			}
		}
	}
}

func TestSolve_NoTargets(t *testing.T) {
	sol := Solve(depot, nil)
	assert.Equal(t, Route{0}, sol.Route)
	assert.Equal(t, Route{0}, sol.NearestNeighbor)
	assert.Equal(t, 0.0, sol.NNDistanceKm)
	assert.Equal(t, 0.0, sol.OptDistanceKm)
	assert.Equal(t, 0, sol.Moves)
}

func TestSolve_SingleTarget(t *testing.T) {
	target := entities.Point{Lat: 12.97, Lon: 79.16}
	sol := Solve(depot, []entities.Point{target})
	assert.Equal(t, Route{0, 1, 0}, sol.Route)
	assert.Equal(t, 0, sol.Moves)
	assert.InDelta(t, 2*geo.HaversineKm(depot, target), sol.OptDistanceKm, 1e-12)
	assert.Equal(t, sol.NNDistanceKm, sol.OptDistanceKm)
}

func TestSolve_DuplicateCoordinates(t *testing.T) {
	p := entities.Point{Lat: 12.97, Lon: 79.16}
	sol := Solve(depot, []entities.Point{p, p, p, depot})
	require.NoError(t, sol.Route.Valid(4))
	assert.InDelta(t, 2*geo.HaversineKm(depot, p), sol.OptDistanceKm, 1e-9)
}
