package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore es un backend en proceso. Sirve como harness de pruebas y
// como modo standalone sin Redis ni Postgres.
type MemoryStore struct {
	mu     sync.Mutex
	paths  map[string]map[string]json.RawMessage
	subs   map[string][]chan Snapshot
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		paths: make(map[string]map[string]json.RawMessage),
		subs:  make(map[string][]chan Snapshot),
	}
}

func (s *MemoryStore) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	ch := make(chan Snapshot, subscriberBuffer)
	s.subs[path] = append(s.subs[path], ch)
	ch <- s.snapshotLocked(path)
	s.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		<-subCtx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		chans := s.subs[path]
		for i, c := range chans {
			if c == ch {
				s.subs[path] = append(chans[:i], chans[i+1:]...)
				close(ch)
				break
			}
		}
	}()
	return NewSubscription(ch, cancel), nil
}

func (s *MemoryStore) Push(_ context.Context, _ string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *MemoryStore) Set(_ context.Context, path, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	children, ok := s.paths[path]
	if !ok {
		children = make(map[string]json.RawMessage)
		s.paths[path] = children
	}
	children[key] = data
	s.publishLocked(path)
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, path, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if children, ok := s.paths[path]; ok {
		delete(children, key)
	}
	s.publishLocked(path)
	return nil
}

// Close desconecta a todos los suscriptores.
func (s *MemoryStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, chans := range s.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	s.subs = make(map[string][]chan Snapshot)
}

// snapshotLocked enumera los hijos en orden ascendente de key, el orden
// nativo de este backend.
func (s *MemoryStore) snapshotLocked(path string) Snapshot {
	children := s.paths[path]
	keys := make([]string, 0, len(children))
	for k := range children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	snap := Snapshot{Path: path, Children: make([]Child, 0, len(keys))}
	for _, k := range keys {
		snap.Children = append(snap.Children, Child{Key: k, Data: children[k]})
	}
	return snap
}

func (s *MemoryStore) publishLocked(path string) {
	snap := s.snapshotLocked(path)
	for _, ch := range s.subs[path] {
		offerLatest(ch, snap)
	}
}
