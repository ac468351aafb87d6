// Package applied records which shifts and jobs the worker has applied to,
// so cards can show it before the remote reflects the application.
package applied

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/shiftsync/internal/store"
)

// Kind is the record type an application targets.
type Kind string

const (
	Shift Kind = "shift"
	Job   Kind = "job"
)

const keyPrefix = "applied/"

// Marks reads and writes applied markers in the durable store.
type Marks struct {
	kv store.KV
}

// New returns Marks backed by kv.
func New(kv store.KV) *Marks {
	return &Marks{kv: kv}
}

func key(kind Kind, id string) string {
	return keyPrefix + string(kind) + "/" + id
}

// Mark records an application made at at.
func (m *Marks) Mark(kind Kind, id string, at time.Time) error {
	if err := m.kv.Set(key(kind, id), at.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("mark applied %s %s: %w", kind, id, err)
	}
	return nil
}

// Has reports whether id was applied to. Storage errors read as false.
func (m *Marks) Has(kind Kind, id string) bool {
	_, ok, err := m.kv.Get(key(kind, id))
	return err == nil && ok
}

// Clear removes the marker for id.
func (m *Marks) Clear(kind Kind, id string) error {
	return m.kv.Remove(key(kind, id))
}

// IDs lists every id of kind with a marker.
func (m *Marks) IDs(kind Kind) ([]string, error) {
	prefix := keyPrefix + string(kind) + "/"
	keys, err := m.kv.ListKeysWithPrefix(prefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = strings.TrimPrefix(k, prefix)
	}
	return ids, nil
}
