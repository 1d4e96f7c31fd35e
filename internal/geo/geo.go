package geo

import (
	"fmt"
	"math"

	"github.com/twpayne/go-polyline"
)

// EarthRadiusMeters is the mean earth radius used by all distance calculations.
const EarthRadiusMeters = 6371 * 1000.0

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat" msgpack:"lat"`
	Lon float64 `json:"lon" msgpack:"lon"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("[%v,%v]", c.Lat, c.Lon)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// Distance returns the great-circle distance in meters between a and b using the haversine formula.
func Distance(a, b Coordinate) float64 {
	latDistance := toRadians(b.Lat - a.Lat)
	lonDistance := toRadians(b.Lon - a.Lon)

	h := math.Sin(latDistance/2)*math.Sin(latDistance/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*math.Sin(lonDistance/2)*math.Sin(lonDistance/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Bearing calculates the initial bearing in degrees (0-360) from a to b
func Bearing(a, b Coordinate) float64 {
	phi1 := toRadians(a.Lat)
	phi2 := toRadians(b.Lat)
	deltaLon := toRadians(b.Lon - a.Lon)

	y := math.Sin(deltaLon) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(deltaLon)

	return math.Mod(toDegrees(math.Atan2(y, x))+360, 360)
}

// Compass converts a bearing to one of the 8 compass points.
func Compass(bearing float64) string {
	directions := []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}
	index := int((bearing+22.5)/45.0) % 8
	return directions[index]
}

// Interpolate returns the point reached by travelling meters from a along the
// initial bearing towards b. The result is rounded to 4 decimal places.
func Interpolate(a, b Coordinate, meters float64) Coordinate {
	bearing := toRadians(Bearing(a, b))
	lat1 := toRadians(a.Lat)
	lon1 := toRadians(a.Lon)

	angular := meters / EarthRadiusMeters

	k := math.Sin(angular) * math.Cos(lat1)
	lat2 := math.Asin(math.Sin(lat1)*math.Cos(angular) + k*math.Cos(bearing))
	lon2 := lon1 + math.Atan2(math.Sin(bearing)*k, math.Cos(angular)-math.Sin(lat1)*math.Sin(lat2))

	return Coordinate{
		Lat: Round(toDegrees(lat2), 4),
		Lon: Round(toDegrees(lon2), 4),
	}
}

// Round rounds v to the given number of decimal places, with halves rounded away from zero.
func Round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	scaled := v * pow
	// nudge values like 1.00005*1e4 == 10000.499999999998 back over the half
	return math.Round(scaled+math.Copysign(1e-9, scaled)) / pow
}

// EncodePolyline encodes a route in the Google encoded polyline format, five
// decimal places of precision.
func EncodePolyline(route []Coordinate) string {
	coords := make([][]float64, len(route))
	for i, c := range route {
		coords[i] = []float64{c.Lat, c.Lon}
	}
	return string(polyline.EncodeCoords(coords))
}

// DecodePolyline is the inverse of EncodePolyline.
func DecodePolyline(s string) ([]Coordinate, error) {
	coords, rest, err := polyline.DecodeCoords([]byte(s))
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("trailing data after polyline: %q", rest)
	}
	route := make([]Coordinate, len(coords))
	for i, c := range coords {
		route[i] = Coordinate{Lat: c[0], Lon: c[1]}
	}
	return route, nil
}
