package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// InMemoryStore keeps every document in a process-local map. It backs tests
// and local single-node runs; production uses the Redis store.
type InMemoryStore struct {
	mu     sync.RWMutex
	data   map[string]json.RawMessage
	subs   map[int]*subscription
	nextID int
}

type subscription struct {
	prefix string
	fn     func(Event)
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		data: make(map[string]json.RawMessage),
		subs: make(map[int]*subscription),
	}
}

func (s *InMemoryStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[path]
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

func (s *InMemoryStore) Set(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data[path] = raw
	s.mu.Unlock()

	s.notify(Event{Path: path, Value: raw})
	return nil
}

func (s *InMemoryStore) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	merged := map[string]any{}
	if existing, ok := s.data[path]; ok {
		if err := json.Unmarshal(existing, &merged); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.data[path] = raw
	s.mu.Unlock()

	s.notify(Event{Path: path, Value: raw})
	return nil
}

func (s *InMemoryStore) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	removed := make([]string, 0, 1)
	for key := range s.data {
		if key == path || strings.HasPrefix(key, path+"/") {
			removed = append(removed, key)
		}
	}
	for _, key := range removed {
		delete(s.data, key)
	}
	s.mu.Unlock()

	sort.Strings(removed)
	for _, key := range removed {
		s.notify(Event{Path: key})
	}
	return nil
}

func (s *InMemoryStore) Append(ctx context.Context, collectionPath string, value any) (string, error) {
	key := uuid.New().String()
	if err := s.Set(ctx, collectionPath+"/"+key, value); err != nil {
		return "", err
	}
	return key, nil
}

func (s *InMemoryStore) List(ctx context.Context, collectionPath string) (map[string]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]json.RawMessage)
	for key, value := range s.data {
		if strings.HasPrefix(key, collectionPath+"/") {
			result[strings.TrimPrefix(key, collectionPath+"/")] = value
		}
	}
	return result, nil
}

func (s *InMemoryStore) Subscribe(ctx context.Context, pathPrefix string, fn func(Event)) (UnsubscribeFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = &subscription{prefix: pathPrefix, fn: fn}

	// Snapshot the current state under the prefix so it can be replayed
	// outside the lock, in deterministic order.
	replay := make([]Event, 0)
	for key, value := range s.data {
		if matchesPrefix(key, pathPrefix) {
			replay = append(replay, Event{Path: key, Value: value})
		}
	}
	s.mu.Unlock()

	sort.Slice(replay, func(i, j int) bool { return replay[i].Path < replay[j].Path })
	for _, evt := range replay {
		fn(evt)
	}

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}, nil
}

// notify fans an event out to matching subscribers. Callbacks run without
// the store lock held so they are free to call back into the store.
func (s *InMemoryStore) notify(evt Event) {
	s.mu.RLock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, sub := range s.subs {
		if matchesPrefix(evt.Path, sub.prefix) {
			fns = append(fns, sub.fn)
		}
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(evt)
	}
}

func matchesPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
