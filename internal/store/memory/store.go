// Package memory keeps documents in a process-local map. It backs tests and
// single-process local runs.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/shrimpsizemoose/logbook/internal/store"
)

type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]store.Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]store.Document)}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) NewKey() string { return uuid.NewString() }

func (s *MemoryStore) Get(_ context.Context, path string) (store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[path]
	if !ok {
		return nil, nil
	}
	return doc.Clone(), nil
}

func (s *MemoryStore) Set(_ context.Context, path string, doc store.Document) error {
	if err := store.ValidatePath(path); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[path] = doc.Clone()
	return nil
}

func (s *MemoryStore) Update(_ context.Context, patches ...store.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// patches are staged so a failing one leaves nothing applied
	staged := make(map[string]store.Document, len(patches))
	for _, p := range patches {
		if err := store.ValidatePath(p.Path); err != nil {
			return err
		}
		current, ok := staged[p.Path]
		if !ok {
			current = s.docs[p.Path]
		}
		next, err := p.Apply(current)
		if err != nil {
			return err
		}
		staged[p.Path] = next
	}

	for path, doc := range staged {
		s.docs[path] = doc
	}
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, path)
	return nil
}

func (s *MemoryStore) List(_ context.Context, parent string) (map[string]store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]store.Document)
	for path, doc := range s.docs {
		p, id := store.Split(path)
		if p == parent {
			out[id] = doc.Clone()
		}
	}
	return out, nil
}

func (s *MemoryStore) FindEqual(ctx context.Context, parent, field, value string) (map[string]store.Document, error) {
	if err := store.ValidateField(field); err != nil {
		return nil, err
	}
	children, err := s.List(ctx, parent)
	if err != nil {
		return nil, err
	}

	for id, doc := range children {
		if doc.String(field) != value {
			delete(children, id)
		}
	}
	return children, nil
}
