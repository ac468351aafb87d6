package geo

import (
	"context"
	"math"
	"testing"
)

func TestDistanceKm(t *testing.T) {
	london := &Coordinates{Lat: 51.5074, Lng: -0.1278}
	paris := &Coordinates{Lat: 48.8566, Lng: 2.3522}

	km, ok := DistanceKm(london, paris)
	if !ok {
		t.Fatal("DistanceKm() ok = false")
	}
	if math.Abs(km-343.5) > 1.0 {
		t.Errorf("London-Paris = %.2f km, want ~343.5", km)
	}

	same, ok := DistanceKm(london, london)
	if !ok || same != 0 {
		t.Errorf("same point = %v (ok=%v), want 0", same, ok)
	}
}

func TestDistanceUnknown(t *testing.T) {
	p := &Coordinates{Lat: 51.5, Lng: -0.12}
	tests := []struct {
		name string
		a, b *Coordinates
	}{
		{"missing a", nil, p},
		{"missing b", p, nil},
		{"both missing", nil, nil},
		{"out of range", &Coordinates{Lat: 91, Lng: 0}, p},
		{"nan", &Coordinates{Lat: math.NaN(), Lng: 0}, p},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if km, ok := DistanceKm(tt.a, tt.b); ok || km != 0 {
				t.Errorf("DistanceKm() = %v, %v; want omitted", km, ok)
			}
			if label, ok := Label(tt.a, tt.b); ok || label != "" {
				t.Errorf("Label() = %q, %v; want omitted", label, ok)
			}
		})
	}
}

func TestLabelOneDecimal(t *testing.T) {
	a := &Coordinates{Lat: 0, Lng: 0}
	b := &Coordinates{Lat: 0, Lng: 1}
	label, ok := Label(a, b)
	if !ok {
		t.Fatal("Label() ok = false")
	}
	if label != "111.2 km" {
		t.Errorf("Label() = %q, want 111.2 km", label)
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	var denied *StaticLocator
	if got := Resolve(ctx, denied); got != nil {
		t.Errorf("Resolve(denied) = %v, want nil", got)
	}
	if got := Resolve(ctx, nil); got != nil {
		t.Errorf("Resolve(nil) = %v, want nil", got)
	}

	got := Resolve(ctx, &StaticLocator{Position: Coordinates{Lat: 1, Lng: 2}})
	if got == nil || got.Lat != 1 || got.Lng != 2 {
		t.Errorf("Resolve(static) = %v, want {1 2}", got)
	}
}
