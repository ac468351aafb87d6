// Package availability keeps the worker's local per-date availability
// preference. It never talks to the remote service: toggles go to an edit
// buffer, Save commits the buffer to the durable store and Reset wipes both.
// Only committed entries take part in filtering.
package availability

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/matheus3301/shiftsync/internal/apperr"
	"github.com/matheus3301/shiftsync/internal/model"
	"github.com/matheus3301/shiftsync/internal/store"
)

// State is the preference for one date.
type State int

const (
	Unset State = iota
	Available
	Unavailable
)

const numStates = 3

// Next returns the state one tap advances to. The cycle is
// unset → available → unavailable → unset.
func (s State) Next() State {
	return (s + 1) % numStates
}

func (s State) String() string {
	switch s {
	case Unset:
		return "unset"
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ParseState parses the stored representation of a state.
func ParseState(s string) (State, error) {
	switch s {
	case "unset":
		return Unset, nil
	case "available":
		return Available, nil
	case "unavailable":
		return Unavailable, nil
	default:
		return Unset, fmt.Errorf("unknown availability state %q", s)
	}
}

// KeyPrefix namespaces the calendar's entries in the durable store.
const KeyPrefix = "availability/"

// Calendar is the availability map for one worker profile.
type Calendar struct {
	kv     store.KV
	loc    *time.Location
	logger *zap.Logger

	mu        sync.Mutex
	committed map[string]State
	buffer    map[string]State
	onChange  []func()
}

// New returns an empty calendar; call Load to read the durable entries.
// Dates of shifts are resolved in loc.
func New(kv store.KV, loc *time.Location, logger *zap.Logger) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{
		kv:        kv,
		loc:       loc,
		logger:    logger,
		committed: make(map[string]State),
		buffer:    make(map[string]State),
	}
}

// Load reads the committed map from durable storage and clears the buffer.
// Malformed entries are dropped and reported as a ParseError; the rest of
// the calendar still loads. A storage failure leaves the calendar empty.
func (c *Calendar) Load() error {
	keys, err := c.kv.ListKeysWithPrefix(KeyPrefix)
	if err != nil {
		c.replace(map[string]State{})
		return fmt.Errorf("load availability: %w", err)
	}

	loaded := make(map[string]State, len(keys))
	var firstErr error
	for _, k := range keys {
		date := strings.TrimPrefix(k, KeyPrefix)
		raw, ok, err := c.kv.Get(k)
		if err != nil {
			c.replace(map[string]State{})
			return fmt.Errorf("load availability %s: %w", date, err)
		}
		if !ok {
			continue
		}
		st, perr := ParseState(raw)
		if perr == nil {
			perr = validDate(date)
		}
		if perr != nil {
			perr = &apperr.ParseError{Source: k, Err: perr}
			c.logger.Warn("ignoring malformed availability entry", zap.String("key", k), zap.Error(perr))
			if firstErr == nil {
				firstErr = perr
			}
			continue
		}
		if st != Unset {
			loaded[date] = st
		}
	}
	c.replace(loaded)
	return firstErr
}

func (c *Calendar) replace(committed map[string]State) {
	c.mu.Lock()
	c.committed = committed
	c.buffer = make(map[string]State)
	c.mu.Unlock()
}

func validDate(date string) error {
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return fmt.Errorf("date %q is not YYYY-MM-DD", date)
	}
	return nil
}

// Location returns the zone shift dates are resolved in.
func (c *Calendar) Location() *time.Location { return c.loc }

// OnChange registers fn to run after the committed map changes.
func (c *Calendar) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = append(c.onChange, fn)
	c.mu.Unlock()
}

func (c *Calendar) notify() {
	c.mu.Lock()
	hooks := slices.Clone(c.onChange)
	c.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// Get returns the state shown for date: the buffered edit if any, else the
// committed value.
func (c *Calendar) Get(date string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effectiveLocked(date)
}

func (c *Calendar) effectiveLocked(date string) State {
	if st, ok := c.buffer[date]; ok {
		return st
	}
	return c.committed[date]
}

// Committed returns the saved state for date.
func (c *Calendar) Committed(date string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed[date]
}

// Toggle advances date one step through the cycle in the edit buffer and
// returns the new state. Other dates are untouched.
func (c *Calendar) Toggle(date string) (State, error) {
	if err := validDate(date); err != nil {
		return Unset, &apperr.ValidationError{Field: "date", Message: err.Error()}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.effectiveLocked(date).Next()
	c.buffer[date] = next
	return next, nil
}

// Dirty reports whether the buffer holds unsaved edits.
func (c *Calendar) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for date, st := range c.buffer {
		if c.committed[date] != st {
			return true
		}
	}
	return false
}

// Discard drops unsaved edits.
func (c *Calendar) Discard() {
	c.mu.Lock()
	c.buffer = make(map[string]State)
	c.mu.Unlock()
}

// Save commits the buffer. Unset dates are removed from storage. Entries
// written before a storage failure stay committed; the rest stay buffered so
// a second Save retries them.
func (c *Calendar) Save() error {
	c.mu.Lock()
	pending := maps.Clone(c.buffer)
	c.mu.Unlock()

	var saveErr error
	written := 0
	for _, date := range slices.Sorted(maps.Keys(pending)) {
		st := pending[date]
		var err error
		if st == Unset {
			err = c.kv.Remove(KeyPrefix + date)
		} else {
			err = c.kv.Set(KeyPrefix+date, st.String())
		}
		if err != nil {
			saveErr = fmt.Errorf("save availability %s: %w", date, err)
			break
		}
		c.mu.Lock()
		if st == Unset {
			delete(c.committed, date)
		} else {
			c.committed[date] = st
		}
		if c.buffer[date] == st {
			delete(c.buffer, date)
		}
		c.mu.Unlock()
		written++
	}
	c.logger.Info("availability saved", zap.Int("written", written), zap.Int("pending", len(pending)))
	if written > 0 {
		c.notify()
	}
	return saveErr
}

// Reset clears the buffer and every committed entry, in memory and on disk.
func (c *Calendar) Reset() error {
	keys, err := c.kv.ListKeysWithPrefix(KeyPrefix)
	if err != nil {
		return fmt.Errorf("reset availability: %w", err)
	}
	for _, k := range keys {
		if err := c.kv.Remove(k); err != nil {
			return fmt.Errorf("reset availability: %w", err)
		}
	}
	c.replace(map[string]State{})
	c.logger.Info("availability reset", zap.Int("removed", len(keys)))
	c.notify()
	return nil
}

// Entries returns the dates with a non-unset state as they would look after
// a save, buffer applied over committed.
func (c *Calendar) Entries() map[string]State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := maps.Clone(c.committed)
	for date, st := range c.buffer {
		if st == Unset {
			delete(out, date)
			continue
		}
		out[date] = st
	}
	return out
}

// Excludes reports whether s falls on a date committed as unavailable.
func (c *Calendar) Excludes(s model.Shift) bool {
	date := s.Date(c.loc)
	if date == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed[date] == Unavailable
}

// ApplyRule sets every date produced by the RFC 5545 recurrence rule between
// from and until (inclusive) to st in the edit buffer. It returns the number
// of dates touched.
func (c *Calendar) ApplyRule(rule string, st State, from, until time.Time) (int, error) {
	if st < Unset || st > Unavailable {
		return 0, apperr.Invalid("state", "unknown state %d", int(st))
	}
	if until.Before(from) {
		return 0, apperr.Invalid("until", "must not be before from")
	}
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return 0, &apperr.ValidationError{Field: "rule", Message: err.Error()}
	}
	r.DTStart(from.In(c.loc))
	dates := r.Between(from.In(c.loc), until.In(c.loc), true)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range dates {
		c.buffer[d.In(c.loc).Format(time.DateOnly)] = st
	}
	return len(dates), nil
}
