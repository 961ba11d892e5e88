// Package geofence implements the distance and containment math used to
// validate physical presence. Everything here is pure computation - no I/O,
// no side effects.
package geofence

import "math"

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Containment is the tri-state geofence verdict. Absence of a configured
// geofence is a valid operating mode, never a failure.
type Containment string

const (
	Within        Containment = "within"
	Outside       Containment = "outside"
	NotConfigured Containment = "not_configured"
)

// Verdict is the result of evaluating an observed position against an event
// geofence.
type Verdict struct {
	Containment    Containment
	DistanceMeters int
}

// IsWithin returns a nullable boolean view of the verdict: nil when the event
// has no geofence configured.
func (v Verdict) IsWithin() *bool {
	if v.Containment == NotConfigured {
		return nil
	}
	within := v.Containment == Within
	return &within
}

// Evaluate checks whether an observed position falls inside the circular
// geofence around center. A nil center means the event has no geofence.
func Evaluate(observed Point, center *Point, radiusMeters float64) Verdict {
	if center == nil {
		return Verdict{Containment: NotConfigured}
	}
	d := Distance(observed, *center)
	c := Outside
	if float64(d) <= radiusMeters {
		c = Within
	}
	return Verdict{Containment: c, DistanceMeters: d}
}

// Distance returns the great-circle distance between two points in meters,
// rounded to the nearest meter.
func Distance(a, b Point) int {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return int(math.Round(earthRadiusMeters * c))
}

// Bearing returns the initial forward azimuth from a to b in degrees,
// normalized to [0, 360).
func Bearing(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLon := radians(b.Lon - a.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := degrees(math.Atan2(y, x))
	return math.Mod(deg+360, 360)
}

// Cardinal maps a bearing to an 8-point compass direction for operator-facing
// guidance ("the agent is 120 m NE of the site").
func Cardinal(bearing float64) string {
	dirs := [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}
	idx := int(math.Round(math.Mod(bearing+360, 360)/45)) % 8
	return dirs[idx]
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
