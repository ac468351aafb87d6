package api

import (
	"context"
	"slices"
	"time"

	"github.com/matheus3301/shiftsync/internal/apperr"
	"github.com/matheus3301/shiftsync/internal/feed"
	"github.com/matheus3301/shiftsync/internal/stores"
	intsync "github.com/matheus3301/shiftsync/internal/sync"
)

func errorView(err error) *ErrorView {
	if err == nil {
		return nil
	}
	code := string(apperr.CodeOf(err))
	if code == "" {
		code = "internal"
	}
	return &ErrorView{Code: code, Message: err.Error()}
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func withState[T any](v *FeedView, st intsync.State[T]) {
	v.Loading = st.Loading
	v.Live = st.Live
	v.Version = st.Version
	v.UpdatedAt = stamp(st.UpdatedAt)
	v.Error = errorView(st.Err)
}

func parseTab(tab string, def feed.Tab, allowed ...feed.Tab) (feed.Tab, error) {
	if tab == "" {
		return def, nil
	}
	t := feed.Tab(tab)
	if !slices.Contains(allowed, t) {
		return "", apperr.Invalid("tab", "unknown tab %q", tab)
	}
	return t, nil
}

// feedView renders one feed of the session. Asking for a feed of the other
// role is a validation error.
func (s *Service) feedView(ctx context.Context, name, tab string) (FeedView, error) {
	sess := s.session
	v := FeedView{Feed: name}

	switch name {
	case FeedAvailable:
		if err := s.requireRole(feed.Worker, name); err != nil {
			return v, err
		}
		withState(&v, sess.Available.State())
		v.Shifts = sess.Available.Cards(sess.Origin(ctx))

	case FeedMyShifts:
		if err := s.requireRole(feed.Worker, name); err != nil {
			return v, err
		}
		t, err := parseTab(tab, feed.Upcoming, feed.Upcoming, feed.Past)
		if err != nil {
			return v, err
		}
		v.Tab = string(t)
		withState(&v, sess.MyShifts.State())
		v.Shifts = sess.MyShifts.Tab(t, sess.Origin(ctx))

	case FeedJobs:
		if err := s.requireRole(feed.Worker, name); err != nil {
			return v, err
		}
		withState(&v, sess.Jobs.State())
		v.Jobs = sess.Jobs.Cards()
		v.HasNew = sess.Jobs.HasNew()
		v.Filter = sess.Jobs.Filter()

	case FeedDashboard:
		if err := s.requireRole(feed.Operator, name); err != nil {
			return v, err
		}
		t, err := parseTab(tab, feed.Unfilled, feed.Unfilled, feed.Filled)
		if err != nil {
			return v, err
		}
		d := sess.Dashboard
		shifts, jobs := d.Shifts.State(), d.Jobs.State()
		v.Tab = string(t)
		v.Loading = d.Loading()
		v.Live = shifts.Live && jobs.Live
		v.Version = shifts.Version + jobs.Version
		v.UpdatedAt = stamp(later(shifts.UpdatedAt, jobs.UpdatedAt))
		v.Error = errorView(d.Err())

		dt := d.Tab(t, sess.Origin(ctx))
		v.Shifts = dt.Shifts
		for _, j := range dt.Jobs {
			v.Jobs = append(v.Jobs, stores.JobCard{Job: j})
		}

	case FeedConversations:
		withState(&v, sess.Conversations.State())
		v.Conversations = sess.Conversations.Rows()
		v.Unread = sess.Conversations.UnreadTotal()

	default:
		return v, apperr.Invalid("feed", "unknown feed %q", name)
	}
	return v, nil
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func (s *Service) storeStatuses() []StoreStatus {
	sess := s.session
	var out []StoreStatus
	add := func(name string, loading, live bool, items int, version uint64, err error) {
		out = append(out, StoreStatus{
			Name:    name,
			Loading: loading,
			Live:    live,
			Items:   items,
			Version: version,
			Error:   errorView(err),
		})
	}
	switch sess.Role() {
	case feed.Worker:
		a, m, j := sess.Available.State(), sess.MyShifts.State(), sess.Jobs.State()
		add(stores.NameAvailable, a.Loading, a.Live, len(a.Items), a.Version, a.Err)
		add(stores.NameMyShifts, m.Loading, m.Live, len(m.Items), m.Version, m.Err)
		add(stores.NameJobs, j.Loading, j.Live, len(j.Items), j.Version, j.Err)
	case feed.Operator:
		ds, dj := sess.Dashboard.Shifts.State(), sess.Dashboard.Jobs.State()
		add(stores.NameDashShifts, ds.Loading, ds.Live, len(ds.Items), ds.Version, ds.Err)
		add(stores.NameDashJobs, dj.Loading, dj.Live, len(dj.Items), dj.Version, dj.Err)
	}
	c := sess.Conversations.State()
	add(stores.NameConversations, c.Loading, c.Live, len(c.Items), c.Version, c.Err)
	return out
}
