// Package fileremote serves remote.Service from a directory of JSON files.
// Each record lives at <dir>/<collection>/<id>.json. Live queries re-read
// their collection and deliver a full snapshot whenever a file in it
// changes. Procedure calls are journaled under <dir>/_calls/ and applied to
// the records they target.
package fileremote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/matheus3301/shiftsync/internal/apperr"
	"github.com/matheus3301/shiftsync/internal/remote"
)

const callsDir = "_calls"

// DefaultDebounce is how long a live query waits after a change before
// re-reading its collection.
const DefaultDebounce = 50 * time.Millisecond

// ErrClosed is returned by operations on a closed Service.
var ErrClosed = errors.New("fileremote: service closed")

// Service is a directory-backed remote.Service.
type Service struct {
	dir      string
	logger   *zap.Logger
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	subs    map[int]*subscription
	next    int
	watched map[string]bool
	closed  bool

	writeMu sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(s *Service) { s.debounce = d }
}

// New opens dir, creating it when missing, and starts watching it.
func New(dir string, logger *zap.Logger, opts ...Option) (*Service, error) {
	if err := os.MkdirAll(filepath.Join(dir, callsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create remote dir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	s := &Service{
		dir:      dir,
		logger:   logger,
		debounce: DefaultDebounce,
		watcher:  w,
		subs:     make(map[int]*subscription),
		watched:  make(map[string]bool),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.wg.Add(1)
	go s.processEvents()
	return s, nil
}

// Dir returns the root directory.
func (s *Service) Dir() string { return s.dir }

// Close ends every live query and stops the watcher.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	close(s.done)
	err := s.watcher.Close()
	s.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (s *Service) collectionDir(collection string) (string, error) {
	if collection == "" || collection == callsDir || strings.ContainsAny(collection, `/\.`) {
		return "", fmt.Errorf("invalid collection %q", collection)
	}
	return filepath.Join(s.dir, collection), nil
}

func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}

// watch starts watching a collection directory, creating it if needed.
func (s *Service) watch(collection string) error {
	dir, err := s.collectionDir(collection)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.watched[collection] {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create collection dir: %w", err)
	}
	if err := s.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	s.watched[collection] = true
	return nil
}

// Query implements remote.Service.
func (s *Service) Query(ctx context.Context, collection string, filters ...remote.Filter) (remote.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.watch(collection); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	sub := &subscription{
		svc:        s,
		id:         s.next,
		collection: collection,
		filters:    filters,
		ch:         make(chan remote.Snapshot, 1),
		changed:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	s.next++
	s.subs[sub.id] = sub
	s.mu.Unlock()

	sub.changed <- struct{}{}
	go sub.run()
	return sub, nil
}

// GetOne implements remote.Service.
func (s *Service) GetOne(ctx context.Context, collection, id string) (remote.Document, error) {
	if err := ctx.Err(); err != nil {
		return remote.Document{}, err
	}
	dir, err := s.collectionDir(collection)
	if err != nil {
		return remote.Document{}, err
	}
	if !validID(id) {
		return remote.Document{}, &apperr.NotFoundError{Kind: collection, ID: id}
	}
	raw, err := os.ReadFile(filepath.Join(dir, id+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return remote.Document{}, &apperr.NotFoundError{Kind: collection, ID: id}
	}
	if err != nil {
		return remote.Document{}, fmt.Errorf("read %s/%s: %w", collection, id, err)
	}
	fields, err := decode(raw)
	if err != nil {
		return remote.Document{}, &apperr.ParseError{Source: collection + "/" + id, Err: err}
	}
	return remote.Document{ID: id, Fields: fields}, nil
}

// snapshot reads every record of collection matching filters, ordered by id.
// Unreadable records are logged and skipped.
func (s *Service) snapshot(collection string, filters []remote.Filter) ([]remote.Document, error) {
	dir, err := s.collectionDir(collection)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	docs := make([]remote.Document, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				s.logger.Warn("skipping unreadable record", zap.String("collection", collection), zap.String("id", id), zap.Error(err))
			}
			continue
		}
		if !gjson.ValidBytes(raw) {
			s.logger.Warn("skipping malformed record", zap.String("collection", collection), zap.String("id", id))
			continue
		}
		if !prefilter(raw, filters) {
			continue
		}
		fields, err := decode(raw)
		if err != nil {
			s.logger.Warn("skipping malformed record", zap.String("collection", collection), zap.String("id", id), zap.Error(err))
			continue
		}
		doc := remote.Document{ID: id, Fields: fields}
		if remote.Match(doc, filters) {
			docs = append(docs, doc)
		}
	}
	slices.SortFunc(docs, func(a, b remote.Document) int { return strings.Compare(a.ID, b.ID) })
	return docs, nil
}

// prefilter rejects records whose raw JSON cannot satisfy an equality filter
// on a string value, before paying for a full decode. It never rejects a
// record remote.Match would accept.
func prefilter(raw []byte, filters []remote.Filter) bool {
	for _, f := range filters {
		want, ok := f.Value.(string)
		if !ok || f.Field == "id" {
			continue
		}
		res := gjson.GetBytes(raw, gjsonPath(f.Field))
		switch f.Op {
		case remote.Eq:
			if !res.Exists() || (res.Type == gjson.String && res.Str != want) {
				return false
			}
		case remote.ArrayContains:
			if !res.IsArray() {
				return false
			}
		}
	}
	return true
}

// gjsonPath escapes gjson metacharacters in a dot-separated field path.
func gjsonPath(field string) string {
	r := strings.NewReplacer("*", `\*`, "?", `\?`, "#", `\#`, "|", `\|`, "@", `\@`)
	return r.Replace(field)
}

func decode(raw []byte) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("record is not an object")
	}
	return fields, nil
}

// processEvents routes watcher events to the live queries of the affected
// collection. A watcher error fails every open query.
func (s *Service) processEvents() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case evt, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(evt.Name, ".json") || (evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write)) {
				continue
			}
			collection := filepath.Base(filepath.Dir(evt.Name))
			s.notify(collection)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("watcher error", zap.Error(err))
			s.failAll(fmt.Errorf("watch %s: %w", s.dir, err))
		}
	}
}

func (s *Service) notify(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.collection != collection {
			continue
		}
		select {
		case sub.changed <- struct{}{}:
		default:
		}
	}
}

func (s *Service) failAll(err error) {
	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()
	for _, sub := range subs {
		sub.fail(err)
	}
}

// Subscribers returns the number of open live queries.
func (s *Service) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

type subscription struct {
	svc        *Service
	id         int
	collection string
	filters    []remote.Filter
	changed    chan struct{}
	done       chan struct{}
	once       sync.Once

	mu      sync.Mutex
	ch      chan remote.Snapshot
	closed  bool
	sending sync.WaitGroup
}

func (sub *subscription) Snapshots() <-chan remote.Snapshot { return sub.ch }

// Close ends the query and closes the snapshot channel.
func (sub *subscription) Close() {
	sub.once.Do(func() {
		sub.svc.mu.Lock()
		delete(sub.svc.subs, sub.id)
		sub.svc.mu.Unlock()

		sub.mu.Lock()
		sub.closed = true
		sub.mu.Unlock()
		close(sub.done)
		sub.sending.Wait()
		close(sub.ch)
	})
}

func (sub *subscription) fail(err error) {
	sub.send(remote.Snapshot{Err: err})
	sub.Close()
}

// send delivers snap in order behind any snapshot the consumer has not read
// yet. It gives up only when the query is closed.
func (sub *subscription) send(snap remote.Snapshot) {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}
	sub.sending.Add(1)
	sub.mu.Unlock()
	defer sub.sending.Done()

	select {
	case sub.ch <- snap:
	case <-sub.done:
	}
}

func (sub *subscription) run() {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	first := true
	for {
		select {
		case <-sub.done:
			return
		case <-sub.changed:
			if first {
				first = false
				sub.emit()
				continue
			}
			timer.Reset(sub.svc.debounce)
		case <-timer.C:
			sub.emit()
		}
	}
}

func (sub *subscription) emit() {
	docs, err := sub.svc.snapshot(sub.collection, sub.filters)
	if err != nil {
		sub.svc.logger.Error("live query failed", zap.String("collection", sub.collection), zap.Error(err))
		sub.send(remote.Snapshot{Err: err})
		sub.Close()
		return
	}
	sub.send(remote.Snapshot{Docs: docs})
}
