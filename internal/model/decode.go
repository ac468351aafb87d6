package model

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"

	"github.com/matheus3301/shiftsync/internal/apperr"
	"github.com/matheus3301/shiftsync/internal/instant"
	"github.com/matheus3301/shiftsync/internal/remote"
	"github.com/matheus3301/shiftsync/internal/status"
)

var (
	instantType   = reflect.TypeOf(instant.Instant{})
	shiftStatType = reflect.TypeOf(status.Shift(""))
	jobStatType   = reflect.TypeOf(status.Job(""))
)

// normalizeHook turns every value headed for an instant.Instant field into a
// canonical instant, whatever shape the remote delivered it in.
func normalizeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != instantType {
		return data, nil
	}
	return instant.Normalize(data)
}

// statusHook rejects values outside the status enumerations.
func statusHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != shiftStatType && to != jobStatType {
		return data, nil
	}
	if from.Kind() != reflect.String {
		return nil, fmt.Errorf("%w: %v", status.ErrUnknownStatus, data)
	}
	s := reflect.ValueOf(data).String()
	if to == shiftStatType {
		return status.ParseShift(s)
	}
	return status.ParseJob(s)
}

func decode(fields map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(normalizeHook, statusHook),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(fields)
}

func parseErr(doc remote.Document, collection string, err error) error {
	return &apperr.ParseError{Source: collection + "/" + doc.ID, Err: err}
}

// DecodeShift decodes a shifts document. A missing or unknown status is a
// ParseError.
func DecodeShift(doc remote.Document) (Shift, error) {
	var s Shift
	if err := decode(doc.Fields, &s); err != nil {
		return Shift{}, parseErr(doc, remote.Shifts, err)
	}
	if s.Status == "" {
		return Shift{}, parseErr(doc, remote.Shifts, errors.New("missing status"))
	}
	s.ID = doc.ID
	return s, nil
}

// DecodeJob decodes a jobs document. An absent createdAt stays absent.
func DecodeJob(doc remote.Document) (Job, error) {
	var j Job
	if err := decode(doc.Fields, &j); err != nil {
		return Job{}, parseErr(doc, remote.Jobs, err)
	}
	if j.Status == "" {
		return Job{}, parseErr(doc, remote.Jobs, errors.New("missing status"))
	}
	j.ID = doc.ID
	return j, nil
}

// DecodeConversation decodes a conversations document. A conversation needs
// at least two participants.
func DecodeConversation(doc remote.Document) (Conversation, error) {
	var c Conversation
	if err := decode(doc.Fields, &c); err != nil {
		return Conversation{}, parseErr(doc, remote.Conversations, err)
	}
	if len(c.ParticipantIDs) < 2 {
		return Conversation{}, parseErr(doc, remote.Conversations,
			fmt.Errorf("%d participants, need at least 2", len(c.ParticipantIDs)))
	}
	c.ID = doc.ID
	return c, nil
}

// DecodeProfile decodes a profiles document.
func DecodeProfile(doc remote.Document) (Profile, error) {
	var p Profile
	if err := decode(doc.Fields, &p); err != nil {
		return Profile{}, parseErr(doc, remote.Profiles, err)
	}
	p.ID = doc.ID
	return p, nil
}

// DecodeAll decodes every document, dropping and logging the ones that fail.
// A malformed record never takes the rest of the snapshot down with it.
func DecodeAll[T any](docs []remote.Document, fn func(remote.Document) (T, error), logger *zap.Logger) []T {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := fn(doc)
		if err != nil {
			logger.Warn("dropping malformed record", zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		out = append(out, v)
	}
	return out
}
