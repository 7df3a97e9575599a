package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceOneDegreeOfLongitudeAtEquator(t *testing.T) {
	d := Distance(Point{0, 0}, Point{0, 1})
	assert.InDelta(t, 111195, d, 111195*0.01)
}

func TestDistanceIdentityIsZero(t *testing.T) {
	points := []Point{{0, 0}, {-6.2, 106.816666}, {89.9, -179.9}, {-90, 180}}
	for _, p := range points {
		assert.Zero(t, Distance(p, p))
	}
}

func TestDistanceIsSymmetric(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
	}{
		{"jakarta to bandung", Point{-6.2088, 106.8456}, Point{-6.9175, 107.6191}},
		{"across meridian", Point{51.5, -0.1}, Point{48.85, 2.35}},
		{"across antimeridian", Point{10, 179.5}, Point{10, -179.5}},
		{"near pole", Point{89.5, 0}, Point{89.5, 90}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, Distance(tt.a, tt.b), Distance(tt.b, tt.a), 1e-6)
		})
	}
}

func TestDistanceAntipodal(t *testing.T) {
	d := Distance(Point{0, 0}, Point{0, 180})
	assert.InDelta(t, 3.14159265*EarthRadiusMeters, d, 1)
}

func TestDistanceShortHop(t *testing.T) {
	// ~0.001 degree of latitude is ~111 m
	d := Distance(Point{-6.2, 106.8}, Point{-6.201, 106.8})
	assert.InDelta(t, 111.19, d, 0.5)
}
