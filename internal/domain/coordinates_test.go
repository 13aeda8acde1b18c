package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordinateValidate(t *testing.T) {
	cases := []struct {
		name  string
		c     Coordinate
		valid bool
	}{
		{"naples", Coordinate{Lat: 26.14, Lon: -81.79}, true},
		{"poles and antimeridian", Coordinate{Lat: -90, Lon: 180}, true},
		{"latitude too high", Coordinate{Lat: 90.01, Lon: 0}, false},
		{"longitude too low", Coordinate{Lat: 0, Lon: -180.5}, false},
		{"nan", Coordinate{Lat: math.NaN(), Lon: 0}, false},
		{"inf", Coordinate{Lat: 0, Lon: math.Inf(1)}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.c.Validate()
			if tc.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestHaversineMiles(t *testing.T) {
	// One degree of latitude is ~69.09 miles.
	assert.InDelta(t, 69.09, HaversineMiles(Coordinate{Lat: 0, Lon: 0}, Coordinate{Lat: 1, Lon: 0}), 0.05)

	p := Coordinate{Lat: 26.14, Lon: -81.79}
	assert.Equal(t, 0.0, HaversineMiles(p, p))
}

func TestCoordinateKeyRounds(t *testing.T) {
	a := Coordinate{Lat: 26.1400001, Lon: -81.7900004}
	b := Coordinate{Lat: 26.14, Lon: -81.79}
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, []float64{-81.79, 26.14}, b.CoordsToList())
}
