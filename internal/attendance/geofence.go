package attendance

import (
	"math"

	"staffattendance/internal/geo"
	"staffattendance/internal/settings"
)

// ValidateLocation rejects malformed geolocation input before any lookup.
func ValidateLocation(loc Location) error {
	if !finite(loc.Latitude) || loc.Latitude < -90 || loc.Latitude > 90 {
		return invalidInput("latitude is invalid")
	}
	if !finite(loc.Longitude) || loc.Longitude < -180 || loc.Longitude > 180 {
		return invalidInput("longitude is invalid")
	}
	if !finite(loc.Accuracy) || loc.Accuracy < 0 {
		return invalidInput("accuracy is invalid")
	}
	return nil
}

// EvaluateGeofence decides whether loc is acceptable under s and returns the
// distance to the school rounded to the nearest meter.
//
// The reference point (0,0) disables geofencing. Accuracy is checked before
// distance, so an imprecise fix is rejected even at the reference point.
func EvaluateGeofence(loc Location, s settings.Settings) (int, error) {
	if !s.GeofenceEnabled() {
		return 0, nil
	}
	if loc.Accuracy > s.MaxAccuracyMeters {
		return 0, accuracyTooLow(loc.Accuracy, s.MaxAccuracyMeters)
	}
	d := geo.Distance(
		geo.Point{Latitude: loc.Latitude, Longitude: loc.Longitude},
		geo.Point{Latitude: s.Latitude, Longitude: s.Longitude},
	)
	rounded := int(math.Round(d))
	if d > s.AllowedRadiusMeters {
		return rounded, outsideGeofence(rounded, s.AllowedRadiusMeters)
	}
	return rounded, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
