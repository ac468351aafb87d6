// Package readstate tracks when each feed was last viewed and whether it
// holds records created since.
package readstate

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/shiftsync/internal/apperr"
	"github.com/matheus3301/shiftsync/internal/instant"
	"github.com/matheus3301/shiftsync/internal/store"
)

// KeyPrefix namespaces read markers in the durable store.
const KeyPrefix = "readmarker/"

// Tracker holds the read marker of one feed. Records with no creation time
// never count as new. With no stored marker, any record with a creation time
// counts as new.
type Tracker struct {
	feed   string
	kv     store.KV
	now    func() time.Time
	logger *zap.Logger

	mu     sync.Mutex
	marker instant.Instant
	hasNew bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New returns a tracker for feed and reads its marker from kv. A malformed
// stored marker is logged and treated as absent.
func New(feed string, kv store.KV, logger *zap.Logger, opts ...Option) (*Tracker, error) {
	t := &Tracker{feed: feed, kv: kv, now: time.Now, logger: logger}
	for _, o := range opts {
		o(t)
	}

	raw, ok, err := kv.Get(t.key())
	if err != nil {
		return t, fmt.Errorf("load read marker %s: %w", feed, err)
	}
	if !ok {
		return t, nil
	}
	m, err := instant.Normalize(raw)
	if err != nil {
		perr := &apperr.ParseError{Source: t.key(), Err: err}
		logger.Warn("ignoring malformed read marker", zap.String("feed", feed), zap.Error(perr))
		return t, perr
	}
	t.marker = m
	return t, nil
}

func (t *Tracker) key() string { return KeyPrefix + t.feed }

// Feed returns the tracked feed name.
func (t *Tracker) Feed() string { return t.feed }

// Marker returns the last-viewed instant, absent if the feed was never viewed.
func (t *Tracker) Marker() instant.Instant {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.marker
}

// HasNew reports whether the last observed records include one created after
// the marker.
func (t *Tracker) HasNew() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasNew
}

// Observe recomputes HasNew from scratch against createdAts, the creation
// instants of the feed's current records.
func (t *Tracker) Observe(createdAts []instant.Instant) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hasNew = false
	for _, c := range createdAts {
		if !c.IsSet() {
			continue
		}
		if !t.marker.IsSet() || c.After(t.marker) {
			t.hasNew = true
			break
		}
	}
	return t.hasNew
}

// MarkAsViewed sets the marker to now and clears HasNew. It does nothing when
// HasNew is already false. The in-memory flip happens before the write; a
// failed write is logged and returned but the flag stays cleared.
func (t *Tracker) MarkAsViewed() error {
	t.mu.Lock()
	if !t.hasNew {
		t.mu.Unlock()
		return nil
	}
	t.marker = instant.Of(t.now())
	t.hasNew = false
	value := t.marker.String()
	t.mu.Unlock()

	if err := t.kv.Set(t.key(), value); err != nil {
		t.logger.Error("persist read marker", zap.String("feed", t.feed), zap.Error(err))
		return fmt.Errorf("persist read marker %s: %w", t.feed, err)
	}
	return nil
}
