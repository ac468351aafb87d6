// Package app assembles one signed-in user's state: the durable calendar and
// read markers, the live stores for their role, and the action sender. A
// Session is created when the user signs in and stopped when they sign out;
// nothing it holds outlives it.
package app

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/shiftsync/internal/actions"
	"github.com/matheus3301/shiftsync/internal/applied"
	"github.com/matheus3301/shiftsync/internal/apperr"
	"github.com/matheus3301/shiftsync/internal/availability"
	"github.com/matheus3301/shiftsync/internal/bus"
	"github.com/matheus3301/shiftsync/internal/feed"
	"github.com/matheus3301/shiftsync/internal/geo"
	"github.com/matheus3301/shiftsync/internal/readstate"
	"github.com/matheus3301/shiftsync/internal/remote"
	"github.com/matheus3301/shiftsync/internal/store"
	"github.com/matheus3301/shiftsync/internal/stores"
)

// DefaultRefreshInterval is how often derived feeds are recomputed so that
// lapsed offers and started shifts move without a remote change.
const DefaultRefreshInterval = time.Minute

// Options describe the signed-in viewer.
type Options struct {
	Role     feed.Role
	ViewerID string
	// Location is the timezone calendar dates are evaluated in.
	Location *time.Location
	// Locator yields the viewer's position; nil omits distances.
	Locator  geo.Locator
	OfferTTL time.Duration
	// RefreshInterval overrides DefaultRefreshInterval. Negative disables it.
	RefreshInterval time.Duration
	Now             func() time.Time
}

// Session is the per-user container of stores and services.
type Session struct {
	opts   Options
	bus    *bus.Bus
	logger *zap.Logger

	Calendar      *availability.Calendar
	Applied       *applied.Marks
	JobsRead      *readstate.Tracker
	Available     *stores.AvailableShifts
	MyShifts      *stores.MyShifts
	Jobs          *stores.Jobs
	Dashboard     *stores.Dashboard
	Conversations *stores.Conversations
	Profiles      *stores.Profiles
	Actions       *actions.Sender

	mu      stdsync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      stdsync.WaitGroup
}

// New builds a session. Durable state is read from kv; a malformed stored
// entry is logged and skipped rather than failing the session. journal may
// be nil.
func New(svc remote.Service, kv store.KV, journal actions.Journal, b *bus.Bus, logger *zap.Logger, opts Options) (*Session, error) {
	if _, err := feed.ParseRole(string(opts.Role)); err != nil {
		return nil, apperr.Invalid("role", "%v", err)
	}
	if opts.ViewerID == "" {
		return nil, apperr.Invalid("viewer", "user id is required")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RefreshInterval == 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}

	cal := availability.New(kv, opts.Location, logger)
	if err := cal.Load(); err != nil {
		if apperr.CodeOf(err) != apperr.CodeParse {
			return nil, fmt.Errorf("load availability: %w", err)
		}
		logger.Warn("availability partially loaded", zap.Error(err))
	}

	tracker, err := readstate.New(stores.NameJobs, kv, logger, readstate.WithClock(opts.Now))
	if err != nil && apperr.CodeOf(err) != apperr.CodeParse {
		return nil, fmt.Errorf("load read marker: %w", err)
	}

	marks := applied.New(kv)
	deps := stores.Deps{
		Remote:   svc,
		Bus:      b,
		Logger:   logger,
		Calendar: cal,
		Applied:  marks,
		OfferTTL: opts.OfferTTL,
		Now:      opts.Now,
	}

	senderOpts := []actions.Option{
		actions.WithClock(opts.Now),
		actions.WithOfferTTL(opts.OfferTTL),
	}
	if journal != nil {
		senderOpts = append(senderOpts, actions.WithJournal(journal))
	}

	s := &Session{
		opts:          opts,
		bus:           b,
		logger:        logger.With(zap.String("viewer", opts.ViewerID), zap.String("role", string(opts.Role))),
		Calendar:      cal,
		Applied:       marks,
		JobsRead:      tracker,
		Profiles:      stores.NewProfiles(deps),
		Conversations: stores.NewConversations(deps),
		Actions:       actions.NewSender(svc, marks, b, logger, senderOpts...),
	}
	switch opts.Role {
	case feed.Worker:
		s.Available = stores.NewAvailableShifts(deps)
		s.MyShifts = stores.NewMyShifts(deps)
		s.Jobs = stores.NewJobs(deps, tracker)
	case feed.Operator:
		s.Dashboard = stores.NewDashboard(deps)
	}
	return s, nil
}

// Role returns the viewer's role.
func (s *Session) Role() feed.Role { return s.opts.Role }

// ViewerID returns the signed-in user id.
func (s *Session) ViewerID() string { return s.opts.ViewerID }

// Now returns the session clock.
func (s *Session) Now() time.Time { return s.opts.Now() }

// Origin resolves the viewer's position once. nil means unknown.
func (s *Session) Origin(ctx context.Context) *geo.Coordinates {
	return geo.Resolve(ctx, s.opts.Locator)
}

// Start opens every live query of the viewer's role. A query that fails to
// open is recorded in its store's state and reported here; the other stores
// still start.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true

	id := s.opts.ViewerID
	var errs []error
	switch s.opts.Role {
	case feed.Worker:
		errs = append(errs,
			s.Available.Subscribe(ctx, id),
			s.MyShifts.Subscribe(ctx, id),
			s.Jobs.Subscribe(ctx, id),
		)
	case feed.Operator:
		errs = append(errs, s.Dashboard.Subscribe(ctx, id))
	}
	errs = append(errs, s.Conversations.Subscribe(ctx, id))

	if s.opts.RefreshInterval > 0 {
		tickCtx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.wg.Add(1)
		go s.refreshLoop(tickCtx)
	}

	err := errors.Join(errs...)
	if err != nil {
		s.logger.Warn("session started with failures", zap.Error(err))
	} else {
		s.logger.Info("session started")
	}
	return err
}

// Stop tears every live query down. Safe to call more than once.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.wg.Wait()
	for _, cleanup := range s.cleanups() {
		cleanup()
	}
	s.logger.Info("session stopped")
}

// Refresh re-derives every store from its last snapshot.
func (s *Session) Refresh() {
	switch s.opts.Role {
	case feed.Worker:
		s.Available.Refresh()
		s.MyShifts.Refresh()
		s.Jobs.Refresh()
	case feed.Operator:
		s.Dashboard.Refresh()
	}
	s.Conversations.Refresh()
}

// Running reports whether Start has been called without a matching Stop.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Session) cleanups() []func() {
	out := []func(){s.Conversations.Cleanup}
	switch s.opts.Role {
	case feed.Worker:
		out = append(out, s.Available.Cleanup, s.MyShifts.Cleanup, s.Jobs.Cleanup)
	case feed.Operator:
		out = append(out, s.Dashboard.Cleanup)
	}
	return out
}

func (s *Session) refreshLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh()
		}
	}
}

// Bus returns the session's event bus.
func (s *Session) Bus() *bus.Bus { return s.bus }
