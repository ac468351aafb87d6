package fileremote

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matheus3301/shiftsync/internal/apperr"
	"github.com/matheus3301/shiftsync/internal/remote"
)

func newService(t *testing.T) *Service {
	t.Helper()
	s, err := New(t.TempDir(), zap.NewNop(), WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func next(t *testing.T, sub remote.Subscription) remote.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Snapshots():
		require.True(t, ok, "snapshot channel closed")
		return snap
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for snapshot")
		return remote.Snapshot{}
	}
}

func ids(docs []remote.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestQueryInitialSnapshot(t *testing.T) {
	s := newService(t)
	require.NoError(t, s.Put(remote.Shifts, "b", map[string]any{"status": "posted", "ownerId": "op1"}))
	require.NoError(t, s.Put(remote.Shifts, "a", map[string]any{"status": "posted", "ownerId": "op2"}))
	require.NoError(t, s.Put(remote.Shifts, "c", map[string]any{"status": "completed", "ownerId": "op1"}))

	sub, err := s.Query(context.Background(), remote.Shifts, remote.Where("status", remote.Eq, "posted"))
	require.NoError(t, err)
	defer sub.Close()

	snap := next(t, sub)
	require.NoError(t, snap.Err)
	assert.Equal(t, []string{"a", "b"}, ids(snap.Docs))
}

func TestQueryLiveUpdate(t *testing.T) {
	s := newService(t)
	sub, err := s.Query(context.Background(), remote.Jobs, remote.Where("ownerId", remote.Eq, "op1"))
	require.NoError(t, err)
	defer sub.Close()
	assert.Empty(t, next(t, sub).Docs)

	require.NoError(t, s.Put(remote.Jobs, "j1", map[string]any{"ownerId": "op1", "status": "open"}))
	require.Eventually(t, func() bool {
		select {
		case snap := <-sub.Snapshots():
			return len(snap.Docs) == 1 && snap.Docs[0].ID == "j1"
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Delete(remote.Jobs, "j1"))
	require.Eventually(t, func() bool {
		select {
		case snap := <-sub.Snapshots():
			return len(snap.Docs) == 0
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSlowConsumerGetsEverySnapshotInOrder(t *testing.T) {
	s := newService(t)
	sub, err := s.Query(context.Background(), remote.Jobs)
	require.NoError(t, err)
	defer sub.Close()

	// Nothing is read: the initial snapshot fills the buffer and the
	// snapshot for j1 has to wait behind it.
	require.Eventually(t, func() bool { return len(sub.Snapshots()) == 1 }, 3*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Put(remote.Jobs, "j1", map[string]any{"status": "open"}))
	time.Sleep(200 * time.Millisecond)

	watchErr := errors.New("watcher gone")
	go s.failAll(watchErr)
	time.Sleep(50 * time.Millisecond)

	first := next(t, sub)
	require.NoError(t, first.Err)
	assert.Empty(t, first.Docs)

	second := next(t, sub)
	require.NoError(t, second.Err, "the error must not overtake the last good snapshot")
	assert.Equal(t, []string{"j1"}, ids(second.Docs))

	third := next(t, sub)
	assert.ErrorIs(t, third.Err, watchErr)

	select {
	case _, open := <-sub.Snapshots():
		assert.False(t, open)
	case <-time.After(3 * time.Second):
		t.Fatal("stream not closed after failure")
	}
}

func TestMalformedRecordSkipped(t *testing.T) {
	s := newService(t)
	require.NoError(t, s.Put(remote.Profiles, "ok", map[string]any{"displayName": "Ana"}))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), remote.Profiles, "bad.json"), []byte("{nope"), 0o644))

	sub, err := s.Query(context.Background(), remote.Profiles)
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, []string{"ok"}, ids(next(t, sub).Docs))

	_, err = s.GetOne(context.Background(), remote.Profiles, "bad")
	assert.Equal(t, apperr.CodeParse, apperr.CodeOf(err))
}

func TestCloseEndsStream(t *testing.T) {
	s := newService(t)
	sub, err := s.Query(context.Background(), remote.Shifts)
	require.NoError(t, err)
	next(t, sub)
	assert.Equal(t, 1, s.Subscribers())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, s.Subscribers())
	_, open := <-sub.Snapshots()
	assert.False(t, open)
}

func TestGetOne(t *testing.T) {
	s := newService(t)
	require.NoError(t, s.Put(remote.Profiles, "u1", map[string]any{"displayName": "Ana", "rating": 4.5}))

	doc, err := s.GetOne(context.Background(), remote.Profiles, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", doc.Fields["displayName"])

	_, err = s.GetOne(context.Background(), remote.Profiles, "missing")
	assert.True(t, apperr.IsNotFound(err))

	_, err = s.GetOne(context.Background(), remote.Profiles, "../etc")
	assert.True(t, apperr.IsNotFound(err))
}

func TestInvalidCollection(t *testing.T) {
	s := newService(t)
	_, err := s.Query(context.Background(), "../x")
	assert.Error(t, err)
	_, err = s.Query(context.Background(), callsDir)
	assert.Error(t, err)
}

func TestCallAppliesAndJournals(t *testing.T) {
	s := newService(t)
	require.NoError(t, s.Put(remote.Shifts, "s1", map[string]any{
		"status":    "offered_to_worker",
		"offeredTo": "w1",
	}))

	err := s.Call(context.Background(), remote.ProcAcceptOffer, map[string]any{
		"shiftId":  "s1",
		"workerId": "w1",
		"callId":   "c1",
	})
	require.NoError(t, err)

	doc, err := s.GetOne(context.Background(), remote.Shifts, "s1")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", doc.Fields["status"])
	assert.Equal(t, "w1", doc.Fields["assignedWorkerId"])

	err = s.Call(context.Background(), remote.ProcAcceptOffer, map[string]any{
		"shiftId":  "s1",
		"workerId": "w1",
		"callId":   "c2",
	})
	assert.Error(t, err, "offer already taken")

	calls, err := s.Calls()
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "c1", calls[0].ID)
	assert.Empty(t, calls[0].Error)
	assert.NotEmpty(t, calls[1].Error)
}

func TestCallPostJobAndApply(t *testing.T) {
	s := newService(t)
	err := s.Call(context.Background(), remote.ProcPostJob, map[string]any{
		"jobId":          "j1",
		"ownerId":        "op1",
		"title":          "Barista",
		"roleCategories": []string{"bar"},
		"status":         "open",
		"createdAt":      "2024-01-09T12:00:00Z",
	})
	require.NoError(t, err)

	require.NoError(t, s.Call(context.Background(), remote.ProcApplyToJob, map[string]any{"jobId": "j1", "workerId": "w1"}))
	assert.Error(t, s.Call(context.Background(), remote.ProcApplyToJob, map[string]any{"jobId": "j1", "workerId": "w1"}))

	doc, err := s.GetOne(context.Background(), remote.Jobs, "j1")
	require.NoError(t, err)
	assert.Equal(t, []any{"w1"}, doc.Fields["applicants"])
	assert.Equal(t, "Barista", doc.Fields["title"])

	err = s.Call(context.Background(), remote.ProcApplyToJob, map[string]any{"jobId": "nope", "workerId": "w1"})
	assert.True(t, apperr.IsNotFound(err))
}

func TestUnknownProcedureSucceeds(t *testing.T) {
	s := newService(t)
	require.NoError(t, s.Call(context.Background(), "ping", map[string]any{}))
	calls, err := s.Calls()
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "ping", calls[0].Procedure)
}

func TestPrefilter(t *testing.T) {
	raw := []byte(`{"status":"posted","n":5,"tags":["a"],"owner":{"id":"op1"}}`)
	tests := []struct {
		f    remote.Filter
		want bool
	}{
		{remote.Where("status", remote.Eq, "posted"), true},
		{remote.Where("status", remote.Eq, "open"), false},
		{remote.Where("missing", remote.Eq, "x"), false},
		{remote.Where("n", remote.Eq, "5"), true},
		{remote.Where("owner.id", remote.Eq, "op1"), true},
		{remote.Where("tags", remote.ArrayContains, "a"), true},
		{remote.Where("status", remote.ArrayContains, "a"), false},
		{remote.Where("status", remote.NotEq, "posted"), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, prefilter(raw, []remote.Filter{tt.f}), tt.f.String())
	}
}
