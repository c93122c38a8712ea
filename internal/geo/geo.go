package geo

import (
	"github.com/golang/geo/s2"

	"github.com/fieldops/fieldtrace/internal/models"
)

// EarthRadiusKm is the radius the segmentation engine is contracted to use.
// It deliberately differs from the 6371 km mean radius used by other parts of
// the wider system; do not unify them without revisiting stored distances.
const EarthRadiusKm = 6376.5

// DistanceKm returns the great-circle distance between two coordinates.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}

// PathDistanceKm sums the great-circle lengths of consecutive sample pairs.
func PathDistanceKm(samples []models.LocationSample) float64 {
	var total float64
	for i := 1; i < len(samples); i++ {
		total += DistanceKm(
			samples[i-1].Latitude, samples[i-1].Longitude,
			samples[i].Latitude, samples[i].Longitude,
		)
	}
	return total
}

// Centroid averages the coordinates of a sample run.
func Centroid(samples []models.LocationSample) (lat, lon float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	for _, p := range samples {
		lat += p.Latitude
		lon += p.Longitude
	}
	n := float64(len(samples))
	return lat / n, lon / n
}
