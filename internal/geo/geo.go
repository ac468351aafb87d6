// Package geo computes great-circle distances between shift locations and the
// viewer's position.
package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// earthRadiusKm is the mean Earth radius.
const earthRadiusKm = 6371.0

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `mapstructure:"lat" json:"lat"`
	Lng float64 `mapstructure:"lng" json:"lng"`
}

// Valid reports whether the pair lies within the WGS84 ranges.
func (c Coordinates) Valid() bool {
	return !math.IsNaN(c.Lat) && !math.IsNaN(c.Lng) &&
		c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// DistanceKm returns the haversine distance between a and b. ok is false when
// either side is missing or out of range; callers must then omit the
// distance rather than show a placeholder.
func DistanceKm(a, b *Coordinates) (km float64, ok bool) {
	if a == nil || b == nil || !a.Valid() || !b.Valid() {
		return 0, false
	}
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := lat2 - lat1
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c, true
}

// Label formats the distance between a and b as "12.3 km". ok is false, and
// the label empty, when the distance is unknown.
func Label(a, b *Coordinates) (label string, ok bool) {
	km, ok := DistanceKm(a, b)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%.1f km", km), true
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// ErrPermissionDenied is returned by a Locator when the user refused access.
var ErrPermissionDenied = errors.New("location permission denied")

// Locator yields the viewer's current position. Results are consumed
// read-only and never retried automatically.
type Locator interface {
	Current(ctx context.Context) (Coordinates, error)
}

// StaticLocator always reports the same position. A nil *StaticLocator
// behaves as a denied permission.
type StaticLocator struct {
	Position Coordinates
}

// Current implements Locator.
func (s *StaticLocator) Current(_ context.Context) (Coordinates, error) {
	if s == nil {
		return Coordinates{}, ErrPermissionDenied
	}
	return s.Position, nil
}

// Resolve asks the locator once and returns nil on any failure, including
// denied permission, so the distance is omitted downstream.
func Resolve(ctx context.Context, l Locator) *Coordinates {
	if l == nil {
		return nil
	}
	pos, err := l.Current(ctx)
	if err != nil || !pos.Valid() {
		return nil
	}
	return &pos
}
