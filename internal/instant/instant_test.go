package instant

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"
)

func TestNormalize(t *testing.T) {
	want := time.Date(2024, 1, 10, 18, 0, 0, 0, time.UTC)
	local := want.In(time.FixedZone("UTC+2", 2*3600))
	var nilTime *time.Time
	var nilTS *timestamppb.Timestamp

	tests := []struct {
		name  string
		in    any
		want  time.Time
		isSet bool
	}{
		{"time value", want, want, true},
		{"time in other zone", local, want, true},
		{"time pointer", &want, want, true},
		{"rfc3339", "2024-01-10T18:00:00Z", want, true},
		{"rfc3339 offset", "2024-01-10T20:00:00+02:00", want, true},
		{"no zone", "2024-01-10T18:00:00", want, true},
		{"date only", "2024-01-10", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), true},
		{"protobuf timestamp", timestamppb.New(want), want, true},
		{"serialized remote timestamp", map[string]any{"seconds": float64(want.Unix()), "nanoseconds": float64(0)}, want, true},
		{"underscored map", map[string]any{"_seconds": json.Number("1704909600"), "_nanoseconds": json.Number("0")}, want, true},
		{"nil", nil, time.Time{}, false},
		{"empty string", "", time.Time{}, false},
		{"zero time", time.Time{}, time.Time{}, false},
		{"nil time pointer", nilTime, time.Time{}, false},
		{"nil protobuf timestamp", nilTS, time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if err != nil {
				t.Fatalf("Normalize(%v) error = %v", tt.in, err)
			}
			ts, ok := got.Time()
			if ok != tt.isSet {
				t.Fatalf("IsSet = %v, want %v", ok, tt.isSet)
			}
			if ok && !ts.Equal(tt.want) {
				t.Errorf("time = %v, want %v", ts, tt.want)
			}
			if ok && ts.Location() != time.UTC {
				t.Errorf("location = %v, want UTC", ts.Location())
			}
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"garbage string", "next tuesday"},
		{"number", 1704909600},
		{"map without seconds", map[string]any{"nanos": 1}},
		{"nanos out of range", map[string]any{"seconds": 1, "nanos": int64(time.Second)}},
		{"invalid protobuf", &timestamppb.Timestamp{Seconds: -1 << 62}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Normalize(tt.in); err == nil {
				t.Errorf("Normalize(%v) expected error", tt.in)
			}
		})
	}

	if _, err := Normalize(3.5); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Normalize(float) error = %v, want ErrUnsupported", err)
	}
}

func TestComparisons(t *testing.T) {
	t0 := MustNormalize("2024-01-10T18:00:00Z")
	t1 := MustNormalize("2024-01-10T18:00:01Z")
	var absent Instant

	if !t1.After(t0) || t0.After(t1) {
		t.Error("After() ordering wrong")
	}
	if !t0.Before(t1) {
		t.Error("Before() ordering wrong")
	}
	if absent.After(t0) || t0.After(absent) {
		t.Error("absent instants must never compare as later")
	}
	if !absent.Equal(Instant{}) || absent.Equal(t0) {
		t.Error("Equal() on absent values wrong")
	}
}

func TestTextRoundTrip(t *testing.T) {
	in := MustNormalize("2024-01-10T18:00:00.123456789Z")
	b, err := in.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var out Instant
	if err := out.UnmarshalText(b); err != nil {
		t.Fatal(err)
	}
	if !out.Equal(in) {
		t.Errorf("round trip = %v, want %v", out, in)
	}
}
