package stores

import (
	"context"
	"errors"

	"github.com/matheus3301/shiftsync/internal/apperr"
	"github.com/matheus3301/shiftsync/internal/feed"
	"github.com/matheus3301/shiftsync/internal/geo"
	"github.com/matheus3301/shiftsync/internal/model"
	"github.com/matheus3301/shiftsync/internal/remote"
	intsync "github.com/matheus3301/shiftsync/internal/sync"
)

// Dashboard is the operator's view of the shifts and jobs they own.
type Dashboard struct {
	Shifts *intsync.Collection[model.Shift]
	Jobs   *intsync.Collection[model.Job]
	deps   Deps
}

// DashboardTab is one tab of the operator dashboard.
type DashboardTab struct {
	Shifts []ShiftCard `json:"shifts"`
	Jobs   []model.Job `json:"jobs"`
	Tab    feed.Tab    `json:"tab"`
}

// NewDashboard builds the store.
func NewDashboard(deps Deps) *Dashboard {
	return &Dashboard{
		Shifts: intsync.NewCollection(intsync.Config[model.Shift]{
			Name:       NameDashShifts,
			Collection: remote.Shifts,
			Decode:     model.DecodeShift,
			Derive: func(in []model.Shift) []model.Shift {
				feed.SortByStart(in)
				return in
			},
		}, deps.Remote, deps.Bus, deps.Logger),
		Jobs: intsync.NewCollection(intsync.Config[model.Job]{
			Name:       NameDashJobs,
			Collection: remote.Jobs,
			Decode:     model.DecodeJob,
			Derive: func(in []model.Job) []model.Job {
				feed.SortJobsNewest(in)
				return in
			},
		}, deps.Remote, deps.Bus, deps.Logger),
		deps: deps,
	}
}

// Subscribe opens both owner queries for operator ownerID.
func (d *Dashboard) Subscribe(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return apperr.Invalid("viewer", "operator id is required")
	}
	owned := remote.Where("ownerId", remote.Eq, ownerID)
	return errors.Join(
		d.Shifts.Subscribe(ctx, owned),
		d.Jobs.Subscribe(ctx, owned),
	)
}

// Cleanup tears both queries down.
func (d *Dashboard) Cleanup() {
	d.Shifts.Cleanup()
	d.Jobs.Cleanup()
}

// Refresh re-derives both mirrors.
func (d *Dashboard) Refresh() {
	d.Shifts.Refresh()
	d.Jobs.Refresh()
}

// Loading reports whether either query still awaits its first snapshot.
func (d *Dashboard) Loading() bool {
	return d.Shifts.State().Loading || d.Jobs.State().Loading
}

// Err returns the subscription errors of either query.
func (d *Dashboard) Err() error {
	return errors.Join(d.Shifts.State().Err, d.Jobs.State().Err)
}

// Tab returns the records in tab (Unfilled or Filled).
func (d *Dashboard) Tab(tab feed.Tab, origin *geo.Coordinates) DashboardTab {
	shifts := feed.Filter(d.Shifts.State().Items, feed.InTab[model.Shift](tab))
	return DashboardTab{
		Tab:    tab,
		Shifts: shiftCards(shifts, origin, d.deps),
		Jobs:   feed.Filter(d.Jobs.State().Items, feed.InTab[model.Job](tab)),
	}
}
