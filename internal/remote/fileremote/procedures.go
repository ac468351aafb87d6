package fileremote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/shiftsync/internal/remote"
	"github.com/matheus3301/shiftsync/internal/status"
)

// CallRecord is the journal entry written for every procedure call.
type CallRecord struct {
	ID        string         `json:"id"`
	Procedure string         `json:"procedure"`
	Args      map[string]any `json:"args"`
	At        time.Time      `json:"at"`
	Error     string         `json:"error,omitempty"`
}

// procedure applies a call to the records on disk. Unknown procedures are
// only journaled.
type procedure func(s *Service, args map[string]any) error

var procedures = map[string]procedure{
	remote.ProcAcceptOffer: func(s *Service, args map[string]any) error {
		worker, err := argString(args, "workerId")
		if err != nil {
			return err
		}
		return s.updateShift(args, func(doc map[string]any) error {
			if doc["status"] != string(status.OfferedToWorker) || doc["offeredTo"] != worker {
				return errors.New("offer is no longer open to this worker")
			}
			doc["status"] = string(status.Confirmed)
			doc["assignedWorkerId"] = worker
			return nil
		})
	},
	remote.ProcDeclineOffer: func(s *Service, args map[string]any) error {
		worker, err := argString(args, "workerId")
		if err != nil {
			return err
		}
		return s.updateShift(args, func(doc map[string]any) error {
			if doc["status"] != string(status.OfferedToWorker) || doc["offeredTo"] != worker {
				return errors.New("offer is no longer open to this worker")
			}
			doc["status"] = string(status.Posted)
			for _, k := range []string{"offeredTo", "offeredAt", "offerExpiresAt"} {
				delete(doc, k)
			}
			return nil
		})
	},
	remote.ProcCancelShift: func(s *Service, args map[string]any) error {
		worker, err := argString(args, "workerId")
		if err != nil {
			return err
		}
		return s.updateShift(args, func(doc map[string]any) error {
			if doc["status"] != string(status.Confirmed) || doc["assignedWorkerId"] != worker {
				return errors.New("shift is not confirmed for this worker")
			}
			doc["status"] = string(status.Cancelled)
			if r, ok := args["reason"]; ok {
				doc["cancelReason"] = r
			}
			return nil
		})
	},
	remote.ProcApplyToShift: func(s *Service, args map[string]any) error {
		worker, err := argString(args, "workerId")
		if err != nil {
			return err
		}
		return s.updateShift(args, func(doc map[string]any) error {
			return addApplicant(doc, worker)
		})
	},
	remote.ProcApplyToJob: func(s *Service, args map[string]any) error {
		worker, err := argString(args, "workerId")
		if err != nil {
			return err
		}
		id, err := argString(args, "jobId")
		if err != nil {
			return err
		}
		return s.update(remote.Jobs, id, func(doc map[string]any) error {
			return addApplicant(doc, worker)
		})
	},
	remote.ProcPostJob: func(s *Service, args map[string]any) error {
		id, err := argString(args, "jobId")
		if err != nil {
			return err
		}
		doc := make(map[string]any, len(args))
		for _, k := range []string{"ownerId", "title", "roleCategories", "location", "status", "createdAt"} {
			if v, ok := args[k]; ok {
				doc[k] = v
			}
		}
		return s.create(remote.Jobs, id, doc)
	},
}

func argString(args map[string]any, key string) (string, error) {
	v, _ := args[key].(string)
	if v == "" {
		return "", fmt.Errorf("missing argument %q", key)
	}
	return v, nil
}

func addApplicant(doc map[string]any, worker string) error {
	list, _ := doc["applicants"].([]any)
	if slices.Contains(list, any(worker)) {
		return errors.New("already applied")
	}
	doc["applicants"] = append(list, worker)
	return nil
}

// Call implements remote.Service. The call is journaled to
// <dir>/_calls/<id>.json, then applied.
func (s *Service) Call(ctx context.Context, name string, args map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, _ := args["callId"].(string)
	if !validID(id) {
		id = uuid.NewString()
	}
	rec := CallRecord{ID: id, Procedure: name, Args: args, At: time.Now().UTC()}

	var err error
	if p, ok := procedures[name]; ok {
		err = p(s, args)
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if werr := s.writeJSON(filepath.Join(s.dir, callsDir, id+".json"), rec); werr != nil {
		s.logger.Warn("failed to journal call", zap.String("procedure", name), zap.Error(werr))
	}
	return err
}

// Calls returns the journaled calls, oldest first.
func (s *Service) Calls() ([]CallRecord, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, callsDir))
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	var out []CallRecord
	for _, e := range entries {
		raw, err := os.ReadFile(filepath.Join(s.dir, callsDir, e.Name()))
		if err != nil {
			continue
		}
		var rec CallRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			s.logger.Warn("skipping malformed call record", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	slices.SortStableFunc(out, func(a, b CallRecord) int { return a.At.Compare(b.At) })
	return out, nil
}

// Put writes a record, replacing any existing one.
func (s *Service) Put(collection, id string, fields map[string]any) error {
	if !validID(id) {
		return fmt.Errorf("invalid id %q", id)
	}
	dir, err := s.collectionDir(collection)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create collection dir: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.writeJSON(filepath.Join(dir, id+".json"), fields)
}

// Delete removes a record. Removing a missing record is not an error.
func (s *Service) Delete(collection, id string) error {
	dir, err := s.collectionDir(collection)
	if err != nil {
		return err
	}
	if !validID(id) {
		return fmt.Errorf("invalid id %q", id)
	}
	err = os.Remove(filepath.Join(dir, id+".json"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Service) updateShift(args map[string]any, fn func(map[string]any) error) error {
	id, err := argString(args, "shiftId")
	if err != nil {
		return err
	}
	return s.update(remote.Shifts, id, fn)
}

// update applies fn to one record under the write lock.
func (s *Service) update(collection, id string, fn func(map[string]any) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	doc, err := s.GetOne(context.Background(), collection, id)
	if err != nil {
		return err
	}
	if err := fn(doc.Fields); err != nil {
		return err
	}
	dir, _ := s.collectionDir(collection)
	return s.writeJSON(filepath.Join(dir, id+".json"), doc.Fields)
}

func (s *Service) create(collection, id string, fields map[string]any) error {
	if !validID(id) {
		return fmt.Errorf("invalid id %q", id)
	}
	dir, err := s.collectionDir(collection)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create collection dir: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	path := filepath.Join(dir, id+".json")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s %q already exists", collection, id)
	}
	return s.writeJSON(path, fields)
}

// writeJSON writes v atomically through a temporary file so live queries
// never read a partial record.
func (s *Service) writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

var _ remote.Service = (*Service)(nil)
