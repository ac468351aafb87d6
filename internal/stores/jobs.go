package stores

import (
	"context"
	"slices"
	stdsync "sync"

	"github.com/matheus3301/shiftsync/internal/applied"
	"github.com/matheus3301/shiftsync/internal/feed"
	"github.com/matheus3301/shiftsync/internal/instant"
	"github.com/matheus3301/shiftsync/internal/model"
	"github.com/matheus3301/shiftsync/internal/readstate"
	"github.com/matheus3301/shiftsync/internal/remote"
	"github.com/matheus3301/shiftsync/internal/status"
	intsync "github.com/matheus3301/shiftsync/internal/sync"
)

// JobCard is the presentation view of one job.
type JobCard struct {
	model.Job
	Applied bool `json:"applied"`
	New     bool `json:"new"`
}

// Jobs is the worker's feed of open job listings, newest first, with an
// optional role-category filter and a "has new" badge.
type Jobs struct {
	*intsync.Collection[model.Job]
	deps    Deps
	tracker *readstate.Tracker

	mu         stdsync.RWMutex
	categories []string
}

// NewJobs builds the store. tracker may be nil, in which case HasNew is
// always false.
func NewJobs(deps Deps, tracker *readstate.Tracker) *Jobs {
	j := &Jobs{deps: deps, tracker: tracker}
	j.Collection = intsync.NewCollection(intsync.Config[model.Job]{
		Name:       NameJobs,
		Collection: remote.Jobs,
		Decode:     model.DecodeJob,
		Derive:     j.derive,
	}, deps.Remote, deps.Bus, deps.Logger)
	if tracker != nil {
		j.OnUpdate(func(st intsync.State[model.Job]) {
			tracker.Observe(createdAts(st.Items))
		})
	}
	return j
}

// Subscribe opens the query for open jobs. The viewer id is not part of the
// query; every worker sees every open listing.
func (j *Jobs) Subscribe(ctx context.Context, _ string) error {
	return j.Collection.Subscribe(ctx, remote.Where("status", remote.Eq, status.Open))
}

// Cleanup tears the query down. The emptied mirror holds nothing new, so the
// badge is recomputed against it.
func (j *Jobs) Cleanup() {
	j.Collection.Cleanup()
	if j.tracker != nil {
		j.tracker.Observe(nil)
	}
}

// SetFilter restricts the feed to jobs carrying any of categories. An empty
// list removes the filter. The mirror is re-derived immediately.
func (j *Jobs) SetFilter(categories []string) {
	j.mu.Lock()
	j.categories = slices.Clone(categories)
	j.mu.Unlock()
	j.Refresh()
}

// Filter returns the active category filter.
func (j *Jobs) Filter() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return slices.Clone(j.categories)
}

func (j *Jobs) derive(in []model.Job) []model.Job {
	out := feed.Filter(in, feed.MatchesCategories(j.Filter()))
	feed.SortJobsNewest(out)
	return out
}

// HasNew reports whether the feed holds a job created after it was last
// viewed.
func (j *Jobs) HasNew() bool {
	return j.tracker != nil && j.tracker.HasNew()
}

// MarkViewed clears the "has new" badge. It does nothing when there is
// nothing new.
func (j *Jobs) MarkViewed() error {
	if j.tracker == nil {
		return nil
	}
	return j.tracker.MarkAsViewed()
}

// Cards returns the feed as view models.
func (j *Jobs) Cards() []JobCard {
	items := j.State().Items
	var marker instant.Instant
	if j.tracker != nil {
		marker = j.tracker.Marker()
	}
	cards := make([]JobCard, len(items))
	for i, job := range items {
		cards[i] = JobCard{
			Job: job,
			New: job.CreatedAt.IsSet() && (!marker.IsSet() || job.CreatedAt.After(marker)),
		}
		if j.deps.Applied != nil {
			cards[i].Applied = j.deps.Applied.Has(applied.Job, job.ID)
		}
	}
	return cards
}

// Find returns the mirrored job with id.
func (j *Jobs) Find(id string) (model.Job, bool) {
	for _, job := range j.State().Items {
		if job.ID == id {
			return job, true
		}
	}
	return model.Job{}, false
}

func createdAts(jobs []model.Job) []instant.Instant {
	out := make([]instant.Instant, len(jobs))
	for i, j := range jobs {
		out[i] = j.CreatedAt
	}
	return out
}
