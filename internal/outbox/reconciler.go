// Package outbox settles procedure calls that a previous run of the daemon
// journaled but never finished, typically because it stopped while the call
// was in flight. Such calls are marked failed; they are never re-sent.
package outbox

import (
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/shiftsync/internal/actions"
	"github.com/matheus3301/shiftsync/internal/bus"
	"github.com/matheus3301/shiftsync/internal/store"
)

// Interrupted is the error recorded on a call that never settled.
const Interrupted = "interrupted before the remote answered"

// Journal is the part of *store.DB the reconciler needs.
type Journal interface {
	StaleCalls(cutoff time.Time) ([]store.Call, error)
	MarkCallFailed(callID, errMsg string) error
}

// Reconciler settles the calls left pending by earlier runs. The profile
// lock guarantees no other process is sending, so any call journaled before
// the reconciler was created and still pending can no longer complete.
// Calls of the current run are never touched.
type Reconciler struct {
	journal Journal
	bus     *bus.Bus
	logger  *zap.Logger
	started time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithStart overrides the instant that separates earlier runs from this one.
func WithStart(t time.Time) Option {
	return func(r *Reconciler) { r.started = t }
}

// NewReconciler creates a reconciler over j. Calls journaled from now on
// belong to the current run.
func NewReconciler(j Journal, b *bus.Bus, logger *zap.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		journal: j,
		bus:     b,
		logger:  logger,
		started: time.Now(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Reconcile marks every pending call from an earlier run as failed and
// publishes an action.failed event for it. It returns how many calls were
// settled. Running it again settles nothing new.
func (r *Reconciler) Reconcile() (int, error) {
	stale, err := r.journal.StaleCalls(r.started)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, c := range stale {
		if err := r.journal.MarkCallFailed(c.CallID, Interrupted); err != nil {
			r.logger.Error("failed to settle call", zap.String("call_id", c.CallID), zap.Error(err))
			continue
		}
		settled++
		r.logger.Warn("settled interrupted call",
			zap.String("call_id", c.CallID), zap.String("procedure", c.Procedure))
		r.bus.Emit(bus.KindActionFailed, actions.Result{
			Procedure: c.Procedure,
			CallID:    c.CallID,
			Error:     Interrupted,
		})
	}
	if settled > 0 {
		r.logger.Info("call journal reconciled", zap.Int("settled", settled))
	}
	return settled, nil
}
