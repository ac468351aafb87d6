// Package actions turns worker and operator intents into remote procedure
// calls. Every intent is checked locally first; an invalid one fails with a
// ValidationError before anything is sent or written. A failed call returns
// a ProcedureError and leaves local state as it was.
package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/shiftsync/internal/applied"
	"github.com/matheus3301/shiftsync/internal/apperr"
	"github.com/matheus3301/shiftsync/internal/bus"
	"github.com/matheus3301/shiftsync/internal/remote"
	"github.com/matheus3301/shiftsync/internal/status"
)

// Journal records procedure calls. *store.DB implements it.
type Journal interface {
	RecordCall(callID, procedure, argsJSON string) error
	MarkCallOK(callID string) error
	MarkCallFailed(callID, errMsg string) error
}

// Result is the bus payload published after each call.
type Result struct {
	Procedure string `json:"procedure"`
	CallID    string `json:"call_id"`
	Target    string `json:"target"`
	// Change is set for calls that move a shift between statuses.
	Change *status.Change `json:"change,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Sender executes intents against the remote service.
type Sender struct {
	remote   remote.Service
	journal  Journal
	marks    *applied.Marks
	bus      *bus.Bus
	logger   *zap.Logger
	validate *validator.Validate
	offerTTL time.Duration
	now      func() time.Time
	newID    func() string
}

// Option configures a Sender.
type Option func(*Sender)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sender) { s.now = now }
}

// WithJournal records every call in j.
func WithJournal(j Journal) Option {
	return func(s *Sender) { s.journal = j }
}

// WithOfferTTL sets the fallback offer lifetime used to refuse accepting a
// lapsed offer.
func WithOfferTTL(d time.Duration) Option {
	return func(s *Sender) { s.offerTTL = d }
}

// NewSender creates a Sender. marks may be nil when applied markers are not
// kept.
func NewSender(svc remote.Service, marks *applied.Marks, b *bus.Bus, logger *zap.Logger, opts ...Option) *Sender {
	s := &Sender{
		remote:   svc,
		marks:    marks,
		bus:      b,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// check runs struct validation and converts the first failure into a
// user-facing ValidationError.
func (s *Sender) check(intent any) error {
	err := s.validate.Struct(intent)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &apperr.ValidationError{Field: fe.Field(), Message: describe(fe)}
	}
	return &apperr.ValidationError{Message: err.Error()}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("needs at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q", fe.Tag())
	}
}

// call journals and sends one procedure call. args gains a "callId" entry.
// change may be nil.
func (s *Sender) call(ctx context.Context, procedure, target string, change *status.Change, args map[string]any) error {
	callID := s.newID()
	args["callId"] = callID
	res := Result{Procedure: procedure, CallID: callID, Target: target, Change: change}

	if s.journal != nil {
		raw, _ := json.Marshal(args)
		if err := s.journal.RecordCall(callID, procedure, string(raw)); err != nil {
			s.logger.Warn("failed to journal call", zap.String("call_id", callID), zap.Error(err))
		}
	}

	if err := s.remote.Call(ctx, procedure, args); err != nil {
		s.logger.Error("procedure failed",
			zap.String("procedure", procedure), zap.String("call_id", callID),
			zap.String("target", target), zap.Error(err))
		if s.journal != nil {
			_ = s.journal.MarkCallFailed(callID, err.Error())
		}
		res.Error = err.Error()
		s.bus.Emit(bus.KindActionFailed, res)
		return &apperr.ProcedureError{Procedure: procedure, CallID: callID, Err: err}
	}

	if s.journal != nil {
		if err := s.journal.MarkCallOK(callID); err != nil {
			s.logger.Warn("failed to mark call ok", zap.String("call_id", callID), zap.Error(err))
		}
	}
	s.logger.Info("procedure ok", zap.String("procedure", procedure), zap.String("call_id", callID), zap.String("target", target))
	s.bus.Emit(bus.KindActionSucceeded, res)
	return nil
}
