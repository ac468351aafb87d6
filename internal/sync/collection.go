package sync

import (
	"context"
	"errors"
	"slices"
	stdsync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/shiftsync/internal/apperr"
	"github.com/matheus3301/shiftsync/internal/bus"
	"github.com/matheus3301/shiftsync/internal/model"
	"github.com/matheus3301/shiftsync/internal/remote"
)

// ErrStreamClosed is recorded when the remote ends a live query without
// reporting an error.
var ErrStreamClosed = errors.New("live query closed by remote")

// State is a store's exposed mirror. The zero value is the initial empty,
// non-loading shape.
type State[T any] struct {
	Items     []T
	Loading   bool
	Live      bool
	Err       error
	Version   uint64
	UpdatedAt time.Time
}

// Config describes one mirrored collection.
type Config[T any] struct {
	// Name identifies the store in logs and bus events.
	Name string
	// Collection is the remote collection queried.
	Collection string
	// Decode turns a remote document into a record. Failures drop the record.
	Decode func(remote.Document) (T, error)
	// Derive filters and sorts the decoded records. It must be pure and may
	// reorder its argument in place. nil keeps the remote order.
	Derive func([]T) []T
}

// Collection keeps a live mirror of one remote query. Snapshots are consumed
// by a single goroutine in delivery order; each one replaces the mirror.
type Collection[T any] struct {
	cfg    Config[T]
	remote remote.Service
	bus    *bus.Bus
	logger *zap.Logger
	life   Lifecycle

	// op serializes Subscribe and Cleanup.
	op stdsync.Mutex
	// apply serializes mirror writes with their update hooks.
	apply stdsync.Mutex

	mu    stdsync.RWMutex
	state State[T]
	raw   []T
	gen   uint64
	hooks []func(State[T])
}

// NewCollection returns an unsubscribed collection.
func NewCollection[T any](cfg Config[T], svc remote.Service, b *bus.Bus, logger *zap.Logger) *Collection[T] {
	return &Collection[T]{
		cfg:    cfg,
		remote: svc,
		bus:    b,
		logger: logger.With(zap.String("store", cfg.Name)),
	}
}

// Name returns the store name.
func (c *Collection[T]) Name() string { return c.cfg.Name }

// OnUpdate registers fn to run after every mirror write with the new state.
// Hooks run outside the state lock, one write at a time, and must not call
// Subscribe or Cleanup.
func (c *Collection[T]) OnUpdate(fn func(State[T])) {
	c.mu.Lock()
	c.hooks = append(c.hooks, fn)
	c.mu.Unlock()
}

// Subscribe opens the live query with filters, closing any prior one first.
// The store is loading until the first snapshot arrives. A query that fails
// to open is recorded as a SubscriptionError in State and returned.
func (c *Collection[T]) Subscribe(ctx context.Context, filters ...remote.Filter) error {
	c.op.Lock()
	defer c.op.Unlock()

	c.cleanupLocked()

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.state = State[T]{Loading: true}
	c.mu.Unlock()

	err := c.life.Replace(func() (func(), error) {
		sub, err := c.remote.Query(ctx, c.cfg.Collection, filters...)
		if err != nil {
			return nil, err
		}
		cctx, cancel := context.WithCancel(context.Background())
		go c.consume(cctx, gen, sub)
		return func() {
			cancel()
			sub.Close()
		}, nil
	})
	if err != nil {
		serr := &apperr.SubscriptionError{Store: c.cfg.Name, Err: err}
		c.mu.Lock()
		if c.gen == gen {
			c.state = State[T]{Err: serr}
		}
		c.mu.Unlock()
		c.logger.Warn("subscribe failed", zap.Error(err))
		c.bus.Emit(bus.StoreKind(c.cfg.Name, bus.StoreFailed), serr)
		return serr
	}
	c.logger.Debug("subscribed", zap.String("collection", c.cfg.Collection), zap.Int("filters", len(filters)))
	return nil
}

// Cleanup tears the live query down and resets the store to its initial
// empty, non-loading state. It is safe to call repeatedly or before any
// Subscribe.
func (c *Collection[T]) Cleanup() {
	c.op.Lock()
	defer c.op.Unlock()
	c.cleanupLocked()
}

func (c *Collection[T]) cleanupLocked() {
	closed := c.life.Close()

	// A snapshot already past its generation check finishes, hooks
	// included, before the reset.
	c.apply.Lock()
	c.mu.Lock()
	c.gen++
	wasEmpty := c.state.Version == 0 && !c.state.Loading && c.state.Err == nil
	c.state = State[T]{}
	c.raw = nil
	c.mu.Unlock()
	c.apply.Unlock()

	if closed || !wasEmpty {
		c.logger.Debug("cleaned up", zap.Bool("closed_subscription", closed))
		c.bus.Emit(bus.StoreKind(c.cfg.Name, bus.StoreReset), nil)
	}
}

// Active reports whether a live query is held.
func (c *Collection[T]) Active() bool { return c.life.Active() }

// OpenSubscriptions returns how many live queries this store holds. It is
// zero or one.
func (c *Collection[T]) OpenSubscriptions() int { return c.life.Open() }

// State returns a copy of the current mirror.
func (c *Collection[T]) State() State[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.copyLocked()
}

func (c *Collection[T]) copyLocked() State[T] {
	st := c.state
	st.Items = slices.Clone(st.Items)
	return st
}

// Refresh re-derives the mirror from the last snapshot, for when a local
// input to Derive changed. It does nothing before the first snapshot.
func (c *Collection[T]) Refresh() {
	c.apply.Lock()
	defer c.apply.Unlock()

	c.mu.Lock()
	if c.state.Version == 0 {
		c.mu.Unlock()
		return
	}
	c.state.Items = c.derive(c.raw)
	c.state.UpdatedAt = time.Now()
	st := c.copyLocked()
	hooks := slices.Clone(c.hooks)
	c.mu.Unlock()

	c.runHooks(hooks, st)
	c.bus.Emit(bus.StoreKind(c.cfg.Name, bus.StoreUpdated), st.Version)
}

func (c *Collection[T]) consume(ctx context.Context, gen uint64, sub remote.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-sub.Snapshots():
			if !ok {
				if ctx.Err() == nil {
					c.fail(gen, ErrStreamClosed)
				}
				return
			}
			if snap.Err != nil {
				c.fail(gen, snap.Err)
				return
			}
			c.applySnapshot(gen, snap.Docs)
		}
	}
}

func (c *Collection[T]) applySnapshot(gen uint64, docs []remote.Document) {
	items := model.DecodeAll(docs, c.cfg.Decode, c.logger)

	c.apply.Lock()
	defer c.apply.Unlock()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.raw = items
	c.state = State[T]{
		Items:     c.derive(items),
		Live:      true,
		Version:   c.state.Version + 1,
		UpdatedAt: time.Now(),
	}
	st := c.copyLocked()
	hooks := slices.Clone(c.hooks)
	c.mu.Unlock()

	c.runHooks(hooks, st)
	c.bus.Emit(bus.StoreKind(c.cfg.Name, bus.StoreUpdated), st.Version)
}

// fail records a SubscriptionError and keeps the last known-good items.
func (c *Collection[T]) fail(gen uint64, err error) {
	serr := &apperr.SubscriptionError{Store: c.cfg.Name, Err: err}

	c.apply.Lock()
	defer c.apply.Unlock()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.state.Loading = false
	c.state.Live = false
	c.state.Err = serr
	c.mu.Unlock()

	c.logger.Warn("live query interrupted", zap.Error(err))
	c.bus.Emit(bus.StoreKind(c.cfg.Name, bus.StoreFailed), serr)
}

func (c *Collection[T]) derive(items []T) []T {
	out := slices.Clone(items)
	if out == nil {
		out = []T{}
	}
	if c.cfg.Derive == nil {
		return out
	}
	return c.cfg.Derive(out)
}

func (c *Collection[T]) runHooks(hooks []func(State[T]), st State[T]) {
	for _, fn := range hooks {
		fn(st)
	}
}
