// Package instant normalizes the date representations delivered by the remote
// service and read from local storage into one canonical type.
//
// An Instant is either set (a UTC time) or absent. Absent business dates stay
// absent: nothing in this package substitutes "now" for a missing value.
package instant

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Instant is a tagged point in time. The zero value is absent.
type Instant struct {
	t   time.Time
	set bool
}

// Of returns a set Instant for t. The zero time.Time yields an absent Instant.
func Of(t time.Time) Instant {
	if t.IsZero() {
		return Instant{}
	}
	return Instant{t: t.UTC(), set: true}
}

// IsSet reports whether the instant carries a value.
func (i Instant) IsSet() bool { return i.set }

// Time returns the underlying UTC time and whether it is set.
func (i Instant) Time() (time.Time, bool) { return i.t, i.set }

// After reports whether both instants are set and i is strictly later than o.
func (i Instant) After(o Instant) bool {
	return i.set && o.set && i.t.After(o.t)
}

// Before reports whether both instants are set and i is strictly earlier than o.
func (i Instant) Before(o Instant) bool {
	return i.set && o.set && i.t.Before(o.t)
}

// Equal reports whether both are absent or both are set to the same time.
func (i Instant) Equal(o Instant) bool {
	if i.set != o.set {
		return false
	}
	return !i.set || i.t.Equal(o.t)
}

// String formats the instant as RFC 3339 with nanoseconds, or "" when absent.
func (i Instant) String() string {
	if !i.set {
		return ""
	}
	return i.t.Format(time.RFC3339Nano)
}

// MarshalText implements encoding.TextMarshaler.
func (i Instant) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Instant) UnmarshalText(b []byte) error {
	v, err := Normalize(string(b))
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// Converter is satisfied by opaque remote timestamp objects, such as
// *timestamppb.Timestamp, that can convert themselves to a time.Time.
type Converter interface {
	AsTime() time.Time
}

type validator interface {
	CheckValid() error
}

// ErrUnsupported is returned for values that are not a recognised date shape.
var ErrUnsupported = errors.New("unsupported timestamp representation")

// layouts accepted for string input, tried in order after RFC 3339.
var layouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Normalize converts v into an Instant. Accepted inputs are time.Time,
// *time.Time, ISO-8601 strings, Converter implementations and the map form a
// remote timestamp takes once serialized ({"seconds": n, "nanoseconds": n}).
// nil, empty strings and zero times normalize to an absent Instant.
func Normalize(v any) (Instant, error) {
	switch x := v.(type) {
	case nil:
		return Instant{}, nil
	case Instant:
		return x, nil
	case *Instant:
		if x == nil {
			return Instant{}, nil
		}
		return *x, nil
	case time.Time:
		return Of(x), nil
	case *time.Time:
		if x == nil {
			return Instant{}, nil
		}
		return Of(*x), nil
	case string:
		return parseString(x)
	case map[string]any:
		return fromMap(x)
	case Converter:
		if isNilPointer(x) {
			return Instant{}, nil
		}
		if cv, ok := x.(validator); ok {
			if err := cv.CheckValid(); err != nil {
				return Instant{}, fmt.Errorf("remote timestamp: %w", err)
			}
		}
		return Of(x.AsTime()), nil
	default:
		return Instant{}, fmt.Errorf("%w: %T", ErrUnsupported, v)
	}
}

// MustNormalize is Normalize for trusted literals in tests and defaults.
func MustNormalize(v any) Instant {
	i, err := Normalize(v)
	if err != nil {
		panic(err)
	}
	return i
}

func parseString(s string) (Instant, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Instant{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Of(t), nil
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return Of(t), nil
		}
	}
	return Instant{}, fmt.Errorf("parse timestamp %q: not ISO-8601", s)
}

func fromMap(m map[string]any) (Instant, error) {
	secRaw, ok := first(m, "seconds", "_seconds")
	if !ok {
		return Instant{}, fmt.Errorf("%w: map without seconds", ErrUnsupported)
	}
	sec, err := toInt64(secRaw)
	if err != nil {
		return Instant{}, fmt.Errorf("timestamp seconds: %w", err)
	}
	var nanos int64
	if nRaw, ok := first(m, "nanoseconds", "nanos", "_nanoseconds"); ok {
		if nanos, err = toInt64(nRaw); err != nil {
			return Instant{}, fmt.Errorf("timestamp nanoseconds: %w", err)
		}
	}
	if nanos < 0 || nanos >= int64(time.Second) {
		return Instant{}, fmt.Errorf("timestamp nanoseconds %d out of range", nanos)
	}
	return Of(time.Unix(sec, nanos)), nil
}

func first(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupported, v)
	}
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
