package actions

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/shiftsync/internal/applied"
	"github.com/matheus3301/shiftsync/internal/apperr"
	"github.com/matheus3301/shiftsync/internal/feed"
	"github.com/matheus3301/shiftsync/internal/model"
	"github.com/matheus3301/shiftsync/internal/remote"
	"github.com/matheus3301/shiftsync/internal/status"
)

// ShiftIntent names the shift a worker acts on.
type ShiftIntent struct {
	ShiftID  string `validate:"required"`
	WorkerID string `validate:"required"`
}

// CancelIntent is a worker cancelling a confirmed shift.
type CancelIntent struct {
	ShiftID  string `validate:"required"`
	WorkerID string `validate:"required"`
	Reason   string `validate:"max=500"`
}

// JobIntent names the job a worker applies to.
type JobIntent struct {
	JobID    string `validate:"required"`
	WorkerID string `validate:"required"`
	Message  string `validate:"max=1000"`
}

// NewJob is an operator's new job listing.
type NewJob struct {
	OwnerID        string   `validate:"required"`
	Title          string   `validate:"required,max=200"`
	RoleCategories []string `validate:"min=1,dive,required"`
	Location       string   `validate:"max=200"`
}

func transition(s model.Shift, to status.Shift) error {
	if err := status.Validate(s.Status, to); err != nil {
		return &apperr.ValidationError{Field: "status", Message: err.Error()}
	}
	return nil
}

func moved(s model.Shift, to status.Shift) *status.Change {
	return &status.Change{ShiftID: s.ID, From: s.Status, To: to}
}

// AcceptOffer confirms an offer addressed to the worker.
func (s *Sender) AcceptOffer(ctx context.Context, shift model.Shift, workerID string) error {
	if err := s.checkOffer(shift, workerID, status.Confirmed); err != nil {
		return err
	}
	if feed.OfferExpired(shift, s.now(), s.offerTTL) {
		return apperr.Invalid("shift", "this offer has expired")
	}
	return s.call(ctx, remote.ProcAcceptOffer, shift.ID, moved(shift, status.Confirmed), map[string]any{
		"shiftId":  shift.ID,
		"workerId": workerID,
	})
}

// DeclineOffer hands an offer back; the shift returns to posted.
func (s *Sender) DeclineOffer(ctx context.Context, shift model.Shift, workerID string) error {
	if err := s.checkOffer(shift, workerID, status.Posted); err != nil {
		return err
	}
	return s.call(ctx, remote.ProcDeclineOffer, shift.ID, moved(shift, status.Posted), map[string]any{
		"shiftId":  shift.ID,
		"workerId": workerID,
	})
}

func (s *Sender) checkOffer(shift model.Shift, workerID string, to status.Shift) error {
	if err := s.check(ShiftIntent{ShiftID: shift.ID, WorkerID: workerID}); err != nil {
		return err
	}
	if err := transition(shift, to); err != nil {
		return err
	}
	if shift.OfferedTo != workerID {
		return apperr.Invalid("shift", "this offer is not addressed to you")
	}
	return nil
}

// CancelShift cancels a confirmed shift assigned to the worker. It is only
// allowed while the shift has not started.
func (s *Sender) CancelShift(ctx context.Context, shift model.Shift, workerID, reason string) error {
	if err := s.check(CancelIntent{ShiftID: shift.ID, WorkerID: workerID, Reason: reason}); err != nil {
		return err
	}
	if err := transition(shift, status.Cancelled); err != nil {
		return err
	}
	if shift.AssignedWorkerID != workerID {
		return apperr.Invalid("shift", "this shift is not assigned to you")
	}
	start, ok := shift.StartTime.Time()
	if !ok {
		return apperr.Invalid("startTime", "shift has no start time")
	}
	if !s.now().Before(start) {
		return apperr.Invalid("startTime", "shift has already started")
	}
	args := map[string]any{"shiftId": shift.ID, "workerId": workerID}
	if reason != "" {
		args["reason"] = reason
	}
	return s.call(ctx, remote.ProcCancelShift, shift.ID, moved(shift, status.Cancelled), args)
}

// ApplyToShift applies for a posted shift and records the application
// locally on success.
func (s *Sender) ApplyToShift(ctx context.Context, shift model.Shift, workerID string) error {
	if err := s.check(ShiftIntent{ShiftID: shift.ID, WorkerID: workerID}); err != nil {
		return err
	}
	if shift.Status != status.Posted {
		return apperr.Invalid("status", "only posted shifts take applications, this one is %s", shift.Status)
	}
	if s.marks != nil && s.marks.Has(applied.Shift, shift.ID) {
		return apperr.Invalid("shift", "you have already applied")
	}
	if err := s.call(ctx, remote.ProcApplyToShift, shift.ID, nil, map[string]any{
		"shiftId":  shift.ID,
		"workerId": workerID,
	}); err != nil {
		return err
	}
	s.mark(applied.Shift, shift.ID)
	return nil
}

// ApplyToJob applies for an open job and records the application locally on
// success.
func (s *Sender) ApplyToJob(ctx context.Context, job model.Job, workerID, message string) error {
	if err := s.check(JobIntent{JobID: job.ID, WorkerID: workerID, Message: message}); err != nil {
		return err
	}
	if job.Status != status.Open {
		return apperr.Invalid("status", "job is %s", job.Status)
	}
	if s.marks != nil && s.marks.Has(applied.Job, job.ID) {
		return apperr.Invalid("job", "you have already applied")
	}
	args := map[string]any{"jobId": job.ID, "workerId": workerID}
	if message != "" {
		args["message"] = message
	}
	if err := s.call(ctx, remote.ProcApplyToJob, job.ID, nil, args); err != nil {
		return err
	}
	s.mark(applied.Job, job.ID)
	return nil
}

// PostJob creates a job listing and returns its id.
//
// This is the one place a creation time is filled in with the current
// instant: the listing does not exist remotely yet, so now is its creation
// time. Decoding never substitutes now for a missing createdAt.
func (s *Sender) PostJob(ctx context.Context, job NewJob) (string, error) {
	if err := s.check(job); err != nil {
		return "", err
	}
	id := s.newID()
	createdAt := s.now().UTC()
	err := s.call(ctx, remote.ProcPostJob, id, nil, map[string]any{
		"jobId":          id,
		"ownerId":        job.OwnerID,
		"title":          job.Title,
		"roleCategories": job.RoleCategories,
		"location":       job.Location,
		"status":         string(status.Open),
		"createdAt":      createdAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Sender) mark(kind applied.Kind, id string) {
	if s.marks == nil {
		return
	}
	if err := s.marks.Mark(kind, id, s.now()); err != nil {
		s.logger.Warn("failed to record application", zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
	}
}
