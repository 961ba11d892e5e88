package geofence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tunisCenter = Point{Lat: 36.8000, Lon: 10.1800}

func TestEvaluate(t *testing.T) {
	t.Run("point at center is within", func(t *testing.T) {
		v := Evaluate(tunisCenter, &tunisCenter, 100)

		assert.Equal(t, Within, v.Containment)
		assert.Equal(t, 0, v.DistanceMeters)
		require.NotNil(t, v.IsWithin())
		assert.True(t, *v.IsWithin())
	})

	t.Run("point one kilometer north is outside a 100m fence", func(t *testing.T) {
		v := Evaluate(Point{Lat: 36.8090, Lon: 10.1800}, &tunisCenter, 100)

		assert.Equal(t, Outside, v.Containment)
		assert.InDelta(t, 1000, v.DistanceMeters, 5)
		require.NotNil(t, v.IsWithin())
		assert.False(t, *v.IsWithin())
	})

	t.Run("no configured center is not a failure", func(t *testing.T) {
		v := Evaluate(tunisCenter, nil, 100)

		assert.Equal(t, NotConfigured, v.Containment)
		assert.Nil(t, v.IsWithin())
	})

	t.Run("boundary point counts as within", func(t *testing.T) {
		near := Point{Lat: 36.80005, Lon: 10.1800} // ~6m
		v := Evaluate(near, &tunisCenter, 10)

		assert.Equal(t, Within, v.Containment)
	})
}

func TestDistance(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a := Point{Lat: 36.8000, Lon: 10.1800}
		b := Point{Lat: 36.8090, Lon: 10.1800}

		first := Distance(a, b)
		for range 10 {
			assert.Equal(t, first, Distance(a, b))
		}
	})

	t.Run("monotonic with separation", func(t *testing.T) {
		prev := 0
		for _, dLat := range []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5} {
			d := Distance(tunisCenter, Point{Lat: tunisCenter.Lat + dLat, Lon: tunisCenter.Lon})
			assert.Greater(t, d, prev)
			prev = d
		}
	})

	t.Run("symmetric", func(t *testing.T) {
		a := Point{Lat: 36.8, Lon: 10.18}
		b := Point{Lat: 48.8566, Lon: 2.3522}
		assert.Equal(t, Distance(a, b), Distance(b, a))
	})

	t.Run("known separation", func(t *testing.T) {
		// One degree of latitude ~= 111.2 km on a 6371 km sphere.
		d := Distance(Point{Lat: 36, Lon: 10}, Point{Lat: 37, Lon: 10})
		assert.InDelta(t, 111195, d, 10)
	})
}

func TestBearingAndCardinal(t *testing.T) {
	tests := []struct {
		name    string
		to      Point
		bearing float64
		card    string
	}{
		{"due north", Point{Lat: 37.8, Lon: 10.18}, 0, "N"},
		{"due east", Point{Lat: 36.8, Lon: 11.18}, 90, "E"},
		{"due south", Point{Lat: 35.8, Lon: 10.18}, 180, "S"},
		{"due west", Point{Lat: 36.8, Lon: 9.18}, 270, "W"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Bearing(tunisCenter, tt.to)
			assert.InDelta(t, tt.bearing, b, 1.5)
			assert.Equal(t, tt.card, Cardinal(b))
		})
	}

	t.Run("intercardinal buckets", func(t *testing.T) {
		assert.Equal(t, "NE", Cardinal(45))
		assert.Equal(t, "SE", Cardinal(135))
		assert.Equal(t, "SW", Cardinal(225))
		assert.Equal(t, "NW", Cardinal(315))
		assert.Equal(t, "N", Cardinal(359))
	})
}
