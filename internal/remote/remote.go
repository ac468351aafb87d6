// Package remote defines the boundary to the authoritative remote data
// service: live queries delivering full snapshots, one-shot reads and remote
// procedure calls.
package remote

import (
	"context"
	"fmt"
	"reflect"
	"slices"
)

// Collection names used by the stores.
const (
	Shifts        = "shifts"
	Jobs          = "jobs"
	Conversations = "conversations"
	Profiles      = "profiles"
)

// Procedure names accepted by Call.
const (
	ProcAcceptOffer  = "acceptOffer"
	ProcDeclineOffer = "declineOffer"
	ProcCancelShift  = "cancelShift"
	ProcApplyToShift = "applyToShift"
	ProcApplyToJob   = "applyToJob"
	ProcPostJob      = "postJob"
)

// Document is one remote record. ID is the record key; Fields holds the raw
// values as delivered, before timestamp normalization.
type Document struct {
	ID     string
	Fields map[string]any
}

// Snapshot is one complete delivery of a live query. When Err is set the
// subscription has failed and no further snapshots follow.
type Snapshot struct {
	Docs []Document
	Err  error
}

// Subscription is an open live query.
type Subscription interface {
	// Snapshots delivers results in remote order. It is closed after Close
	// or after a snapshot carrying Err.
	Snapshots() <-chan Snapshot
	// Close tears the live query down. Safe to call more than once.
	Close()
}

// Service is the remote data service consumed by the core.
type Service interface {
	Query(ctx context.Context, collection string, filters ...Filter) (Subscription, error)
	GetOne(ctx context.Context, collection, id string) (Document, error)
	Call(ctx context.Context, procedure string, args map[string]any) error
}

// Op is a filter comparison.
type Op string

const (
	Eq            Op = "=="
	NotEq         Op = "!="
	In            Op = "in"
	ArrayContains Op = "array-contains"
)

// Filter restricts a live query. Field is a dot-separated path.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where builds a Filter.
func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

func (f Filter) String() string {
	return fmt.Sprintf("%s %s %v", f.Field, f.Op, f.Value)
}

// Match reports whether doc satisfies every filter.
func Match(doc Document, filters []Filter) bool {
	for _, f := range filters {
		if !f.match(doc) {
			return false
		}
	}
	return true
}

func (f Filter) match(doc Document) bool {
	v, ok := Lookup(doc.Fields, f.Field)
	if f.Field == "id" && !ok {
		v, ok = doc.ID, true
	}
	switch f.Op {
	case Eq:
		return ok && equal(v, f.Value)
	case NotEq:
		return !ok || !equal(v, f.Value)
	case In:
		if !ok {
			return false
		}
		return slices.ContainsFunc(toSlice(f.Value), func(c any) bool { return equal(v, c) })
	case ArrayContains:
		if !ok {
			return false
		}
		return slices.ContainsFunc(toSlice(v), func(c any) bool { return equal(c, f.Value) })
	default:
		return false
	}
}

// Lookup resolves a dot-separated path inside nested maps.
func Lookup(fields map[string]any, path string) (any, bool) {
	cur := any(fields)
	start := 0
	for i := 0; i <= len(path); i++ {
		if i < len(path) && path[i] != '.' {
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[path[start:i]]
		if !ok {
			return nil, false
		}
		start = i + 1
	}
	return cur, true
}

func toSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func equal(a, b any) bool {
	if as, ok := a.(fmt.Stringer); ok {
		a = as.String()
	}
	if bs, ok := b.(fmt.Stringer); ok {
		b = bs.String()
	}
	if reflect.TypeOf(a) == reflect.TypeOf(b) {
		return reflect.DeepEqual(a, b)
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
