package stores

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matheus3301/shiftsync/internal/applied"
	"github.com/matheus3301/shiftsync/internal/apperr"
	"github.com/matheus3301/shiftsync/internal/availability"
	"github.com/matheus3301/shiftsync/internal/bus"
	"github.com/matheus3301/shiftsync/internal/feed"
	"github.com/matheus3301/shiftsync/internal/geo"
	"github.com/matheus3301/shiftsync/internal/readstate"
	"github.com/matheus3301/shiftsync/internal/remote"
	"github.com/matheus3301/shiftsync/internal/remote/memremote"
	"github.com/matheus3301/shiftsync/internal/store"
	intsync "github.com/matheus3301/shiftsync/internal/sync"
)

var now = time.Date(2024, 1, 9, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc  *memremote.Service
	kv   *store.Memory
	cal  *availability.Calendar
	deps Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv := store.NewMemory()
	cal := availability.New(kv, time.UTC, zap.NewNop())
	require.NoError(t, cal.Load())
	svc := memremote.New()
	return &fixture{
		svc: svc,
		kv:  kv,
		cal: cal,
		deps: Deps{
			Remote:   svc,
			Bus:      bus.New(),
			Logger:   zap.NewNop(),
			Calendar: cal,
			Applied:  applied.New(kv),
			OfferTTL: 24 * time.Hour,
			Now:      func() time.Time { return now },
		},
	}
}

func waitFor[T any](t *testing.T, c *intsync.Collection[T], v uint64) intsync.State[T] {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		st := c.State()
		if st.Version >= v {
			return st
		}
		select {
		case <-deadline:
			t.Fatalf("%s: timeout waiting for version %d", c.Name(), v)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func shiftFields(status, offeredTo, start string) map[string]any {
	f := map[string]any{
		"status":     status,
		"ownerId":    "op1",
		"startTime":  start,
		"endTime":    start[:11] + "22:00:00Z",
		"payPerHour": 25,
	}
	if offeredTo != "" {
		f["offeredTo"] = offeredTo
	}
	return f
}

func cardIDs(cards []ShiftCard) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func TestAvailableShiftsScenario(t *testing.T) {
	f := newFixture(t)
	f.svc.Put(remote.Shifts, "s1", shiftFields("posted", "", "2024-01-10T18:00:00Z"))
	f.svc.Put(remote.Shifts, "s2", shiftFields("offered_to_worker", "W2", "2024-01-10T18:00:00Z"))

	s := NewAvailableShifts(f.deps)
	require.NoError(t, s.Subscribe(context.Background(), "W1"))
	defer s.Cleanup()

	waitFor(t, s.Collection, 1)
	cards := s.Cards(nil)
	require.Equal(t, []string{"s1"}, cardIDs(cards))
	assert.Equal(t, "100.00", cards[0].TotalPay)
	assert.Empty(t, cards[0].Distance, "unknown position omits distance")
	assert.False(t, cards[0].IsOffer)
}

func TestAvailableShiftsOffersFirstAndExpiry(t *testing.T) {
	f := newFixture(t)
	f.svc.Put(remote.Shifts, "posted-early", shiftFields("posted", "", "2024-01-10T08:00:00Z"))
	f.svc.Put(remote.Shifts, "offer-late", shiftFields("offered_to_worker", "W1", "2024-01-12T18:00:00Z"))
	expired := shiftFields("offered_to_worker", "W1", "2024-01-11T18:00:00Z")
	expired["offeredAt"] = now.Add(-25 * time.Hour).Format(time.RFC3339)
	f.svc.Put(remote.Shifts, "offer-expired", expired)
	f.svc.Put(remote.Shifts, "confirmed", shiftFields("confirmed", "", "2024-01-10T08:00:00Z"))

	s := NewAvailableShifts(f.deps)
	require.NoError(t, s.Subscribe(context.Background(), "W1"))
	defer s.Cleanup()

	waitFor(t, s.Collection, 1)
	cards := s.Cards(nil)
	assert.Equal(t, []string{"offer-late", "posted-early"}, cardIDs(cards))
	assert.True(t, cards[0].IsOffer)
}

func TestAvailableShiftsHonoursSavedAvailability(t *testing.T) {
	f := newFixture(t)
	f.svc.Put(remote.Shifts, "wed", shiftFields("posted", "", "2024-01-10T18:00:00Z"))
	f.svc.Put(remote.Shifts, "thu", shiftFields("posted", "", "2024-01-11T18:00:00Z"))

	s := NewAvailableShifts(f.deps)
	require.NoError(t, s.Subscribe(context.Background(), "W1"))
	defer s.Cleanup()
	waitFor(t, s.Collection, 1)

	_, _ = f.cal.Toggle("2024-01-10")
	_, _ = f.cal.Toggle("2024-01-10")
	assert.Len(t, s.Cards(nil), 2, "unsaved edits do not filter")

	require.NoError(t, f.cal.Save())
	assert.Equal(t, []string{"thu"}, cardIDs(s.Cards(nil)))

	require.NoError(t, f.cal.Reset())
	assert.Len(t, s.Cards(nil), 2)
}

func TestShiftCardDistance(t *testing.T) {
	f := newFixture(t)
	fields := shiftFields("posted", "", "2024-01-10T18:00:00Z")
	fields["coordinates"] = map[string]any{"lat": 51.5074, "lng": -0.1278}
	f.svc.Put(remote.Shifts, "london", fields)

	s := NewAvailableShifts(f.deps)
	require.NoError(t, s.Subscribe(context.Background(), "W1"))
	defer s.Cleanup()
	waitFor(t, s.Collection, 1)

	origin := geo.Resolve(context.Background(), &geo.StaticLocator{Position: geo.Coordinates{Lat: 48.8566, Lng: 2.3522}})
	cards := s.Cards(origin)
	require.Len(t, cards, 1)
	assert.Equal(t, "343.6 km", cards[0].Distance)

	var denied *geo.StaticLocator
	assert.Empty(t, s.Cards(geo.Resolve(context.Background(), denied))[0].Distance)
}

func TestAvailableShiftsRequiresViewer(t *testing.T) {
	s := NewAvailableShifts(newFixture(t).deps)
	assert.True(t, apperr.IsValidation(s.Subscribe(context.Background(), "")))
	assert.False(t, s.Active())
}

func TestMyShiftsTabs(t *testing.T) {
	f := newFixture(t)
	up := shiftFields("confirmed", "", "2024-01-10T18:00:00Z")
	up["assignedWorkerId"] = "W1"
	past := shiftFields("completed", "", "2024-01-02T18:00:00Z")
	past["assignedWorkerId"] = "W1"
	other := shiftFields("confirmed", "", "2024-01-10T18:00:00Z")
	other["assignedWorkerId"] = "W2"
	f.svc.Put(remote.Shifts, "up", up)
	f.svc.Put(remote.Shifts, "past", past)
	f.svc.Put(remote.Shifts, "other", other)

	s := NewMyShifts(f.deps)
	require.NoError(t, s.Subscribe(context.Background(), "W1"))
	defer s.Cleanup()
	waitFor(t, s.Collection, 1)

	assert.Equal(t, []string{"up"}, cardIDs(s.Tab(feed.Upcoming, nil)))
	assert.Equal(t, []string{"past"}, cardIDs(s.Tab(feed.Past, nil)))
}

func TestDashboardTabs(t *testing.T) {
	f := newFixture(t)
	f.svc.Put(remote.Shifts, "p", shiftFields("posted", "", "2024-01-10T18:00:00Z"))
	f.svc.Put(remote.Shifts, "c", shiftFields("confirmed", "", "2024-01-10T18:00:00Z"))
	f.svc.Put(remote.Shifts, "f", shiftFields("filled", "", "2024-01-11T18:00:00Z"))
	notMine := shiftFields("posted", "", "2024-01-10T18:00:00Z")
	notMine["ownerId"] = "op2"
	f.svc.Put(remote.Shifts, "x", notMine)
	f.svc.Put(remote.Jobs, "j-open", map[string]any{"status": "open", "ownerId": "op1"})
	f.svc.Put(remote.Jobs, "j-closed", map[string]any{"status": "closed", "ownerId": "op1"})

	d := NewDashboard(f.deps)
	require.NoError(t, d.Subscribe(context.Background(), "op1"))
	defer d.Cleanup()
	waitFor(t, d.Shifts, 1)
	waitFor(t, d.Jobs, 1)
	assert.False(t, d.Loading())

	unfilled := d.Tab(feed.Unfilled, nil)
	assert.Equal(t, []string{"p"}, cardIDs(unfilled.Shifts))
	require.Len(t, unfilled.Jobs, 1)
	assert.Equal(t, "j-open", unfilled.Jobs[0].ID)

	filled := d.Tab(feed.Filled, nil)
	assert.Equal(t, []string{"c", "f"}, cardIDs(filled.Shifts))
	assert.Empty(t, filled.Jobs)

	d.Cleanup()
	assert.Equal(t, 0, f.svc.Subscribers())
}

func TestJobsHasNewAndFilter(t *testing.T) {
	f := newFixture(t)
	t0 := now.Add(-time.Hour)
	require.NoError(t, f.kv.Set(readstate.KeyPrefix+"jobs", t0.Format(time.RFC3339Nano)))
	tracker, err := readstate.New("jobs", f.kv, zap.NewNop(), readstate.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	f.svc.Put(remote.Jobs, "old", map[string]any{
		"status": "open", "roleCategories": []any{"bar"}, "createdAt": t0.Add(-time.Hour).Format(time.RFC3339),
	})
	f.svc.Put(remote.Jobs, "no-date", map[string]any{"status": "open", "roleCategories": []any{"kitchen"}})

	j := NewJobs(f.deps, tracker)
	require.NoError(t, j.Subscribe(context.Background(), "W1"))
	defer j.Cleanup()
	waitFor(t, j.Collection, 1)
	assert.False(t, j.HasNew())

	f.svc.Put(remote.Jobs, "fresh", map[string]any{
		"status": "open", "roleCategories": []any{"kitchen"}, "createdAt": t0.Add(time.Second).Format(time.RFC3339),
	})
	st := waitFor(t, j.Collection, 2)
	assert.True(t, j.HasNew())
	assert.Equal(t, "fresh", st.Items[0].ID, "newest first")
	assert.Equal(t, "no-date", st.Items[len(st.Items)-1].ID, "undated last")

	cards := j.Cards()
	assert.True(t, cards[0].New)

	require.NoError(t, j.MarkViewed())
	assert.False(t, j.HasNew())
	assert.False(t, j.Cards()[0].New)

	j.SetFilter([]string{"bar"})
	items := j.State().Items
	require.Len(t, items, 1)
	assert.Equal(t, "old", items[0].ID)
	assert.Equal(t, []string{"bar"}, j.Filter())

	j.SetFilter(nil)
	assert.Len(t, j.State().Items, 3)
}

func TestJobsCleanupClearsHasNew(t *testing.T) {
	f := newFixture(t)
	tracker, err := readstate.New("jobs", f.kv, zap.NewNop(), readstate.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	j := NewJobs(f.deps, tracker)
	require.NoError(t, j.Subscribe(context.Background(), "W1"))
	waitFor(t, j.Collection, 1)
	assert.False(t, j.HasNew())

	f.svc.Put(remote.Jobs, "fresh", map[string]any{"status": "open", "createdAt": now.Format(time.RFC3339)})
	waitFor(t, j.Collection, 2)
	require.True(t, j.HasNew())

	j.Cleanup()
	assert.Empty(t, j.State().Items)
	assert.False(t, j.HasNew(), "no records, nothing new")
	assert.False(t, j.Active())
}

func TestConversationsOrderAndUnread(t *testing.T) {
	f := newFixture(t)
	f.svc.Put(remote.Conversations, "quiet", map[string]any{
		"participantIds": []any{"W1", "op1"},
	})
	f.svc.Put(remote.Conversations, "older", map[string]any{
		"participantIds": []any{"W1", "op2"},
		"lastMessage":    map[string]any{"text": "hi", "senderId": "op2", "timestamp": "2024-01-08T10:00:00Z"},
		"unreadCount":    map[string]any{"W1": 2},
	})
	f.svc.Put(remote.Conversations, "newer", map[string]any{
		"participantIds": []any{"W1", "op1"},
		"lastMessage":    map[string]any{"text": "ok", "senderId": "op1", "timestamp": "2024-01-09T10:00:00Z"},
		"unreadCount":    map[string]any{"W1": 1, "op1": 7},
	})
	f.svc.Put(remote.Conversations, "not-mine", map[string]any{
		"participantIds": []any{"W2", "op1"},
	})

	c := NewConversations(f.deps)
	require.NoError(t, c.Subscribe(context.Background(), "W1"))
	defer c.Cleanup()
	waitFor(t, c.Collection, 1)

	rows := c.Rows()
	got := make([]string, len(rows))
	for i, r := range rows {
		got[i] = r.ID
	}
	assert.Equal(t, []string{"newer", "older", "quiet"}, got)
	assert.Equal(t, 3, c.UnreadTotal())
}

func TestProfiles(t *testing.T) {
	f := newFixture(t)
	f.svc.Put(remote.Profiles, "W1", map[string]any{"displayName": "Sam", "role": "worker", "rating": 4.5})
	p := NewProfiles(f.deps)

	got, err := p.Get(context.Background(), "W1")
	require.NoError(t, err)
	assert.Equal(t, "Sam", got.DisplayName)
	require.NotNil(t, got.Rating)
	assert.Equal(t, 4.5, *got.Rating)

	_, err = p.Get(context.Background(), "ghost")
	assert.True(t, apperr.IsNotFound(err))
}
