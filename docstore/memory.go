package docstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. Failures can be injected per
// document to simulate an unreachable backend.
type MemoryStore struct {
	mu       sync.Mutex
	db       map[string]map[string]Document
	failures map[string]error
	offline  error
	writes   int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		db:       make(map[string]map[string]Document),
		failures: make(map[string]error),
	}
}

func failureKey(collection, id string) string {
	return collection + "/" + id
}

// FailOn makes every write to collection/id return err. A nil err
// clears the failure.
func (m *MemoryStore) FailOn(collection, id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, failureKey(collection, id))
		return
	}
	m.failures[failureKey(collection, id)] = err
}

// SetOffline makes every read and write return err until it is
// called again with nil.
func (m *MemoryStore) SetOffline(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = err
}

// Writes returns how many merges succeeded.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline != nil {
		return nil, m.offline
	}
	doc, ok := m.db[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc.Clone(), nil
}

func (m *MemoryStore) Merge(ctx context.Context, collection, id string, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline != nil {
		return m.offline
	}
	if err := m.failures[failureKey(collection, id)]; err != nil {
		return err
	}
	if m.db[collection] == nil {
		m.db[collection] = make(map[string]Document)
	}
	m.db[collection][id] = Overlay(m.db[collection][id], doc)
	m.writes++
	return nil
}
