// Package geo holds the flat-earth offset helpers and great-circle distances
// used to place sensors and measure routes.
package geo

import (
	"math"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/model/entities"
)

const (
	// EarthRadiusKm is the mean radius of Earth in kilometers.
	EarthRadiusKm = 6371.0
	// KmPerDegree is the flat-earth approximation of one degree of latitude.
	KmPerDegree = 111.0

	// minLonScale keeps the longitude conversion finite near the poles.
	minLonScale = 0.1
)

// KmToDegreesLatitude converts a north/south offset to degrees.
func KmToDegreesLatitude(km float64) float64 {
	return km / KmPerDegree
}

// KmToDegreesLongitude converts an east/west offset to degrees at the given latitude.
// Only meant for short offsets; this is not a geodesic projection.
func KmToDegreesLongitude(km, atLatDeg float64) float64 {
	return km / (KmPerDegree * math.Max(minLonScale, math.Cos(DegreesToRadians(atLatDeg))))
}

// HaversineKm calculates the great-circle distance in kilometers.
func HaversineKm(a, b entities.Point) float64 {
	if a == b {
		return 0
	}
	lat1 := DegreesToRadians(a.Lat)
	lat2 := DegreesToRadians(b.Lat)
	dLat := DegreesToRadians(b.Lat - a.Lat)
	dLon := DegreesToRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push h a hair above 1 for antipodal points
	h = math.Min(1, h)
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// PathLengthKm sums the legs between consecutive points.
func PathLengthKm(points []entities.Point) float64 {
	if len(points) <= 1 {
		return 0
	}
	total := 0.0
	for i := 0; i < len(points)-1; i++ {
		total += HaversineKm(points[i], points[i+1])
	}
	return total
}

func DegreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
