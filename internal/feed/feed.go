// Package feed holds the pure predicates and comparators that turn mirrored
// records into the views each role sees. Nothing here keeps state; every
// function is safe to call from any goroutine.
package feed

import (
	"fmt"
	"slices"
	"time"

	"github.com/matheus3301/shiftsync/internal/model"
	"github.com/matheus3301/shiftsync/internal/status"
)

// Role is the viewer's side of the marketplace.
type Role string

const (
	Worker   Role = "worker"
	Operator Role = "operator"
)

// ParseRole validates s.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case Worker, Operator:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Tab selects a sub-view of a feed.
type Tab string

const (
	Available Tab = "available"
	Unfilled  Tab = "unfilled"
	Filled    Tab = "filled"
	Upcoming  Tab = "upcoming"
	Past      Tab = "past"
)

// Statused is any record exposing its raw status value.
type Statused interface {
	StatusName() string
}

var (
	unfilledStatuses = []string{string(status.Posted), string(status.Open)}
	filledStatuses   = []string{string(status.Filled), string(status.Confirmed), string(status.PendingChanges)}
)

// Predicate selects records.
type Predicate[T any] func(T) bool

// Filter returns the records matching keep, in their original order.
// Applying the same predicate to its own output returns the same set.
func Filter[T any](records []T, keep Predicate[T]) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// WorkerAvailable selects the shifts in viewer's available feed: every posted
// shift, plus offers addressed to viewer. Offers to anyone else never match.
func WorkerAvailable(viewer string) Predicate[model.Shift] {
	return func(s model.Shift) bool {
		switch s.Status {
		case status.Posted:
			return true
		case status.OfferedToWorker:
			return viewer != "" && s.OfferedTo == viewer
		default:
			return false
		}
	}
}

// InTab returns the operator dashboard predicate for tab. Unknown tabs match
// nothing.
func InTab[T Statused](tab Tab) Predicate[T] {
	var set []string
	switch tab {
	case Unfilled:
		set = unfilledStatuses
	case Filled:
		set = filledStatuses
	default:
		return func(T) bool { return false }
	}
	return func(r T) bool { return slices.Contains(set, r.StatusName()) }
}

// AssignedTab returns the worker "my shifts" predicate for tab, relative to
// now. Upcoming holds confirmed shifts that have not ended; past holds
// completed and cancelled shifts and confirmed ones whose end has passed.
func AssignedTab(tab Tab, now time.Time) Predicate[model.Shift] {
	ended := func(s model.Shift) bool {
		end, ok := s.EndTime.Time()
		if !ok {
			end, ok = s.StartTime.Time()
		}
		return ok && !end.After(now)
	}
	switch tab {
	case Upcoming:
		return func(s model.Shift) bool {
			return s.Status == status.Confirmed && !ended(s)
		}
	case Past:
		return func(s model.Shift) bool {
			switch s.Status {
			case status.Completed, status.Cancelled:
				return true
			case status.Confirmed:
				return ended(s)
			default:
				return false
			}
		}
	default:
		return func(model.Shift) bool { return false }
	}
}

// OfferExpired reports whether an offer has lapsed at now. The expiry is
// offerExpiresAt when present, otherwise offeredAt + ttl. An offer carrying
// neither never expires on the client. Non-offers never expire.
func OfferExpired(s model.Shift, now time.Time, ttl time.Duration) bool {
	if !s.IsOffer() {
		return false
	}
	if exp, ok := s.OfferExpiresAt.Time(); ok {
		return !now.Before(exp)
	}
	if at, ok := s.OfferedAt.Time(); ok && ttl > 0 {
		return !now.Before(at.Add(ttl))
	}
	return false
}

// SortWorkerFeed orders shifts offers first, then by ascending start time.
// Equal keys keep their input order. Shifts without a start time sort after
// those with one inside their group.
func SortWorkerFeed(shifts []model.Shift) {
	slices.SortStableFunc(shifts, func(a, b model.Shift) int {
		if ao, bo := a.IsOffer(), b.IsOffer(); ao != bo {
			if ao {
				return -1
			}
			return 1
		}
		return compareInstants(a.StartTime.Time())(b.StartTime.Time())
	})
}

// SortByStart orders shifts by ascending start time, stable.
func SortByStart(shifts []model.Shift) {
	slices.SortStableFunc(shifts, func(a, b model.Shift) int {
		return compareInstants(a.StartTime.Time())(b.StartTime.Time())
	})
}

// SortJobsNewest orders jobs newest createdAt first. Jobs with no createdAt
// sort last.
func SortJobsNewest(jobs []model.Job) {
	slices.SortStableFunc(jobs, func(a, b model.Job) int {
		at, aok := a.CreatedAt.Time()
		bt, bok := b.CreatedAt.Time()
		if aok && bok {
			return bt.Compare(at)
		}
		return compareInstants(at, aok)(bt, bok)
	})
}

// compareInstants compares two optional times ascending with absent values
// after present ones. Returned curried so call sites read left to right.
func compareInstants(a time.Time, aok bool) func(time.Time, bool) int {
	return func(b time.Time, bok bool) int {
		switch {
		case aok && bok:
			return a.Compare(b)
		case aok:
			return -1
		case bok:
			return 1
		default:
			return 0
		}
	}
}

// MatchesCategories reports whether job carries any of categories. An empty
// filter matches every job.
func MatchesCategories(categories []string) Predicate[model.Job] {
	return func(j model.Job) bool {
		if len(categories) == 0 {
			return true
		}
		return slices.ContainsFunc(j.RoleCategories, func(c string) bool {
			return slices.Contains(categories, c)
		})
	}
}
