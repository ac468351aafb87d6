// Package sync mirrors remote collections into local state. A Collection
// owns at most one live query at a time; its Lifecycle guarantees the prior
// query is torn down before a new one opens.
package sync

import (
	stdsync "sync"
)

// Lifecycle holds the teardown handle of at most one live subscription.
// The zero value is ready to use.
type Lifecycle struct {
	mu       stdsync.Mutex
	teardown func()
	opened   int
	closed   int
}

// Replace tears down the current subscription, if any, then calls open and
// keeps the handle it returns. When open fails nothing is held.
func (l *Lifecycle) Replace(open func() (teardown func(), err error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeLocked()
	td, err := open()
	if err != nil {
		return err
	}
	l.teardown = td
	l.opened++
	return nil
}

// Close runs the held teardown handle exactly once. It reports whether there
// was anything to close. Calling it again, or before any Replace, is a no-op.
func (l *Lifecycle) Close() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *Lifecycle) closeLocked() bool {
	if l.teardown == nil {
		return false
	}
	td := l.teardown
	l.teardown = nil
	td()
	l.closed++
	return true
}

// Active reports whether a subscription is held.
func (l *Lifecycle) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.teardown != nil
}

// Open returns the number of subscriptions opened and not yet torn down.
// It never exceeds one.
func (l *Lifecycle) Open() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opened - l.closed
}
