package stores

import (
	"context"
	"time"

	"github.com/matheus3301/shiftsync/internal/apperr"
	"github.com/matheus3301/shiftsync/internal/feed"
	"github.com/matheus3301/shiftsync/internal/geo"
	"github.com/matheus3301/shiftsync/internal/model"
	"github.com/matheus3301/shiftsync/internal/remote"
	"github.com/matheus3301/shiftsync/internal/status"
	intsync "github.com/matheus3301/shiftsync/internal/sync"
)

// AvailableShifts is the worker's feed of shifts open to them.
type AvailableShifts struct {
	*intsync.Collection[model.Shift]
	deps   Deps
	viewer viewer
}

// NewAvailableShifts builds the store. The derived feed is: worker
// visibility, then unexpired offers, then dates not marked unavailable, then
// offers first by start time.
func NewAvailableShifts(deps Deps) *AvailableShifts {
	s := &AvailableShifts{deps: deps}
	s.Collection = intsync.NewCollection(intsync.Config[model.Shift]{
		Name:       NameAvailable,
		Collection: remote.Shifts,
		Decode:     model.DecodeShift,
		Derive:     s.derive,
	}, deps.Remote, deps.Bus, deps.Logger)
	if deps.Calendar != nil {
		deps.Calendar.OnChange(s.Refresh)
	}
	return s
}

// Subscribe opens the feed for worker viewerID.
func (s *AvailableShifts) Subscribe(ctx context.Context, viewerID string) error {
	if viewerID == "" {
		return apperr.Invalid("viewer", "worker id is required")
	}
	s.viewer.set(viewerID)
	return s.Collection.Subscribe(ctx,
		remote.Where("status", remote.In, []status.Shift{status.Posted, status.OfferedToWorker}))
}

func (s *AvailableShifts) derive(in []model.Shift) []model.Shift {
	now := s.deps.now()
	out := feed.Filter(in, feed.WorkerAvailable(s.viewer.get()))
	out = feed.Filter(out, func(sh model.Shift) bool {
		return !feed.OfferExpired(sh, now, s.deps.OfferTTL)
	})
	if cal := s.deps.Calendar; cal != nil {
		out = feed.Filter(out, func(sh model.Shift) bool { return !cal.Excludes(sh) })
	}
	feed.SortWorkerFeed(out)
	return out
}

// Cards returns the current feed as view models. origin may be nil.
func (s *AvailableShifts) Cards(origin *geo.Coordinates) []ShiftCard {
	return shiftCards(s.State().Items, origin, s.deps)
}

// Find returns the mirrored shift with id.
func (s *AvailableShifts) Find(id string) (model.Shift, bool) {
	return find(s.State().Items, id)
}

// MyShifts holds the shifts assigned to a worker.
type MyShifts struct {
	*intsync.Collection[model.Shift]
	deps Deps
}

// NewMyShifts builds the store.
func NewMyShifts(deps Deps) *MyShifts {
	s := &MyShifts{deps: deps}
	s.Collection = intsync.NewCollection(intsync.Config[model.Shift]{
		Name:       NameMyShifts,
		Collection: remote.Shifts,
		Decode:     model.DecodeShift,
		Derive: func(in []model.Shift) []model.Shift {
			feed.SortByStart(in)
			return in
		},
	}, deps.Remote, deps.Bus, deps.Logger)
	return s
}

// Subscribe opens the query for shifts assigned to viewerID.
func (s *MyShifts) Subscribe(ctx context.Context, viewerID string) error {
	if viewerID == "" {
		return apperr.Invalid("viewer", "worker id is required")
	}
	return s.Collection.Subscribe(ctx, remote.Where("assignedWorkerId", remote.Eq, viewerID))
}

// Tab returns the shifts in tab (Upcoming or Past) as of now.
func (s *MyShifts) Tab(tab feed.Tab, origin *geo.Coordinates) []ShiftCard {
	items := feed.Filter(s.State().Items, feed.AssignedTab(tab, s.deps.now()))
	return shiftCards(items, origin, s.deps)
}

// Find returns the mirrored shift with id.
func (s *MyShifts) Find(id string) (model.Shift, bool) {
	return find(s.State().Items, id)
}

func shiftCards(items []model.Shift, origin *geo.Coordinates, deps Deps) []ShiftCard {
	loc := time.UTC
	if deps.Calendar != nil {
		loc = deps.Calendar.Location()
	}
	cards := make([]ShiftCard, len(items))
	for i, sh := range items {
		cards[i] = NewShiftCard(sh, origin, deps.Applied, loc)
	}
	return cards
}

func find(items []model.Shift, id string) (model.Shift, bool) {
	for _, sh := range items {
		if sh.ID == id {
			return sh, true
		}
	}
	return model.Shift{}, false
}
