// Package memremote is an in-process remote.Service. Live queries receive a
// full snapshot on open and after every write to their collection.
package memremote

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/matheus3301/shiftsync/internal/apperr"
	"github.com/matheus3301/shiftsync/internal/remote"
)

// Call records one procedure invocation.
type Call struct {
	Procedure string
	Args      map[string]any
}

// Handler executes a procedure against the service's data.
type Handler func(s *Service, args map[string]any) error

// Service holds collections in memory.
type Service struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	subs        map[int]*subscription
	next        int
	handlers    map[string]Handler
	calls       []Call
	queryErr    error
}

// New creates an empty service.
func New() *Service {
	return &Service{
		collections: make(map[string]map[string]map[string]any),
		subs:        make(map[int]*subscription),
		handlers:    make(map[string]Handler),
	}
}

type subscription struct {
	svc        *Service
	id         int
	collection string
	filters    []remote.Filter
	ch         chan remote.Snapshot
	once       sync.Once
}

func (s *subscription) Snapshots() <-chan remote.Snapshot { return s.ch }

func (s *subscription) Close() {
	s.once.Do(func() {
		s.svc.mu.Lock()
		delete(s.svc.subs, s.id)
		s.svc.mu.Unlock()
		close(s.ch)
	})
}

// Query implements remote.Service.
func (s *Service) Query(_ context.Context, collection string, filters ...remote.Filter) (remote.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	sub := &subscription{
		svc:        s,
		id:         s.next,
		collection: collection,
		filters:    filters,
		ch:         make(chan remote.Snapshot, 256),
	}
	s.next++
	s.subs[sub.id] = sub
	sub.ch <- remote.Snapshot{Docs: s.matchLocked(collection, filters)}
	return sub, nil
}

// GetOne implements remote.Service.
func (s *Service) GetOne(_ context.Context, collection, id string) (remote.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.collections[collection][id]
	if !ok {
		return remote.Document{}, &apperr.NotFoundError{Kind: collection, ID: id}
	}
	return remote.Document{ID: id, Fields: maps.Clone(fields)}, nil
}

// Call implements remote.Service. Unregistered procedures succeed after
// being recorded.
func (s *Service) Call(_ context.Context, procedure string, args map[string]any) error {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Procedure: procedure, Args: maps.Clone(args)})
	h := s.handlers[procedure]
	s.mu.Unlock()
	if h == nil {
		return nil
	}
	return h(s, args)
}

// Handle registers a procedure handler.
func (s *Service) Handle(procedure string, h Handler) {
	s.mu.Lock()
	s.handlers[procedure] = h
	s.mu.Unlock()
}

// Calls returns the recorded procedure calls.
func (s *Service) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// FailQueries makes subsequent Query calls return err. nil clears it.
func (s *Service) FailQueries(err error) {
	s.mu.Lock()
	s.queryErr = err
	s.mu.Unlock()
}

// Put writes a document and notifies matching live queries.
func (s *Service) Put(collection, id string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collection]
	if !ok {
		c = make(map[string]map[string]any)
		s.collections[collection] = c
	}
	c[id] = maps.Clone(fields)
	s.notifyLocked(collection)
}

// Update merges fields into an existing document.
func (s *Service) Update(collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return &apperr.NotFoundError{Kind: collection, ID: id}
	}
	for k, v := range fields {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	s.notifyLocked(collection)
	return nil
}

// Delete removes a document.
func (s *Service) Delete(collection, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections[collection], id)
	s.notifyLocked(collection)
}

// Interrupt delivers err to every live query on collection and ends them.
func (s *Service) Interrupt(collection string, err error) {
	s.mu.Lock()
	var hit []*subscription
	for _, sub := range s.subs {
		if sub.collection == collection {
			hit = append(hit, sub)
		}
	}
	s.mu.Unlock()
	for _, sub := range hit {
		sub.deliver(remote.Snapshot{Err: fmt.Errorf("interrupted: %w", err)})
		sub.Close()
	}
}

// Subscribers returns the number of open live queries.
func (s *Service) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Service) notifyLocked(collection string) {
	for _, sub := range s.subs {
		if sub.collection != collection {
			continue
		}
		sub.ch <- remote.Snapshot{Docs: s.matchLocked(collection, sub.filters)}
	}
}

func (sub *subscription) deliver(snap remote.Snapshot) {
	sub.svc.mu.Lock()
	defer sub.svc.mu.Unlock()
	if _, open := sub.svc.subs[sub.id]; open {
		sub.ch <- snap
	}
}

func (s *Service) matchLocked(collection string, filters []remote.Filter) []remote.Document {
	ids := slices.Sorted(maps.Keys(s.collections[collection]))
	docs := make([]remote.Document, 0, len(ids))
	for _, id := range ids {
		doc := remote.Document{ID: id, Fields: maps.Clone(s.collections[collection][id])}
		if remote.Match(doc, filters) {
			docs = append(docs, doc)
		}
	}
	return docs
}
