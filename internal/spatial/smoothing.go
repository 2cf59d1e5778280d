package spatial

import (
	"sort"

	"github.com/jengzang/walkaround-go/internal/models"
)

// MedianSmooth replaces each point's latitude and longitude with the medians
// of the surrounding window, each axis filtered independently. The window is
// clipped at both ends of the track. A window of 0 or fewer than two points
// returns the input as is.
//
// For even windows the element at index size/2 of the sorted window is used.
func MedianSmooth(points []models.LatLng, windowSize int) []models.LatLng {
	if windowSize <= 0 || len(points) < 2 {
		return points
	}

	half := windowSize / 2
	n := len(points)
	out := make([]models.LatLng, n)
	lats := make([]float64, 0, 2*half+1)
	lngs := make([]float64, 0, 2*half+1)

	for i := range points {
		start := max(0, i-half)
		end := min(n-1, i+half)

		lats = lats[:0]
		lngs = lngs[:0]
		for j := start; j <= end; j++ {
			lats = append(lats, points[j].Latitude)
			lngs = append(lngs, points[j].Longitude)
		}

		out[i] = models.LatLng{
			Latitude:  median(lats),
			Longitude: median(lngs),
		}
	}

	return out
}

// median sorts values in place and returns the element at len/2
func median(values []float64) float64 {
	sort.Float64s(values)
	return values[len(values)/2]
}

// TrackLatLngs projects track points onto their coordinates
func TrackLatLngs(points []models.TrackPoint) []models.LatLng {
	out := make([]models.LatLng, len(points))
	for i, p := range points {
		out[i] = p.LatLng()
	}
	return out
}
