package spatial

import (
	"github.com/golang/geo/s2"
	"gonum.org/v1/gonum/floats"

	"github.com/jengzang/walkaround-go/internal/models"
)

// EarthRadiusMeters is the mean Earth radius used for all distance math
const EarthRadiusMeters = 6371000.0

// HaversineDistance calculates the great-circle distance between two points in meters
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// DistanceMeters is HaversineDistance over coordinate pairs
func DistanceMeters(a, b models.LatLng) float64 {
	return HaversineDistance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// PathLength sums the distances between consecutive points.
// Zero or one point yields 0.
func PathLength(points []models.LatLng) float64 {
	if len(points) < 2 {
		return 0
	}
	legs := make([]float64, len(points)-1)
	for i := 1; i < len(points); i++ {
		legs[i-1] = DistanceMeters(points[i-1], points[i])
	}
	return floats.Sum(legs)
}
