package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/matheus3301/shiftsync/internal/api"
	"github.com/matheus3301/shiftsync/internal/app"
	"github.com/matheus3301/shiftsync/internal/apperr"
	"github.com/matheus3301/shiftsync/internal/bus"
	"github.com/matheus3301/shiftsync/internal/feed"
	"github.com/matheus3301/shiftsync/internal/remote"
	"github.com/matheus3301/shiftsync/internal/remote/memremote"
	"github.com/matheus3301/shiftsync/internal/store"
)

func start(t *testing.T) (*Client, *memremote.Service) {
	t.Helper()
	svc := memremote.New()
	svc.Put(remote.Shifts, "s1", map[string]any{
		"status":    "posted",
		"ownerId":   "op1",
		"startTime": "2024-01-10T18:00:00Z",
	})
	sess, err := app.New(svc, store.NewMemory(), nil, bus.New(), zap.NewNop(), app.Options{
		Role:            feed.Worker,
		ViewerID:        "w1",
		Location:        time.UTC,
		RefreshInterval: -1,
		Now:             func() time.Time { return time.Date(2024, 1, 9, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	require.NoError(t, sess.Start(context.Background()))
	t.Cleanup(sess.Stop)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	api.NewService(sess, nil, "main", zap.NewNop()).Register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	c := New(conn)
	t.Cleanup(func() { _ = c.Close() })
	return c, svc
}

func TestStatusAndFeed(t *testing.T) {
	c, _ := start(t)
	ctx := context.Background()

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", st.Profile)
	assert.Equal(t, "w1", st.ViewerID)

	require.Eventually(t, func() bool {
		v, err := c.Feed(ctx, api.FeedAvailable, "")
		return err == nil && len(v.Shifts) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestErrorsCrossTheWire(t *testing.T) {
	c, _ := start(t)
	ctx := context.Background()

	_, err := c.Feed(ctx, "inbox", "")
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "feed", verr.Field)

	_, err = c.Act(ctx, api.ActRequest{Intent: api.IntentApplyJob, ID: "missing"})
	var nf *apperr.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "job", nf.Kind)
	assert.Equal(t, "missing", nf.ID)
}

func TestAvailabilityOverWire(t *testing.T) {
	c, _ := start(t)
	ctx := context.Background()

	v, err := c.Toggle(ctx, "2024-01-10")
	require.NoError(t, err)
	assert.True(t, v.Dirty)
	v, err = c.SaveAvailability(ctx)
	require.NoError(t, err)
	assert.False(t, v.Dirty)
	v, err = c.Availability(ctx)
	require.NoError(t, err)
	assert.Equal(t, "available", v.Dates["2024-01-10"])
}

func TestWatch(t *testing.T) {
	c, svc := start(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errStop := errors.New("stop")
	done := make(chan error, 1)
	seen := make(chan int, 16)
	go func() {
		done <- c.Watch(ctx, api.FeedAvailable, "", func(v api.FeedView) error {
			seen <- len(v.Shifts)
			if len(v.Shifts) == 2 {
				return errStop
			}
			return nil
		})
	}()

	select {
	case <-seen:
	case <-time.After(2 * time.Second):
		t.Fatal("no initial view")
	}
	svc.Put(remote.Shifts, "s2", map[string]any{
		"status":    "posted",
		"ownerId":   "op1",
		"startTime": "2024-01-12T18:00:00Z",
	})

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errStop)
	case <-time.After(3 * time.Second):
		t.Fatal("watch never saw the new shift")
	}
}

func TestWatchEndsOnCancel(t *testing.T) {
	c, _ := start(t)
	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, api.FeedAvailable, "", func(api.FeedView) error {
			select {
			case first <- struct{}{}:
			default:
			}
			return nil
		})
	}()
	<-first
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return")
	}
}
