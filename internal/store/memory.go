package store

import (
	"context"
	"sync"
)

// Memory keeps documents in process memory
type Memory struct {
	mu     sync.RWMutex
	docs   map[string][]byte
	hub    *hub
	closed bool
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string][]byte),
		hub:  newHub(),
	}
}

func (m *Memory) Create(ctx context.Context, id string, doc []byte) (Snapshot, error) {
	data, err := initDocument(id, doc)
	if err != nil {
		return Snapshot{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Snapshot{}, ErrClosed
	}
	if _, ok := m.docs[id]; ok {
		return Snapshot{}, ErrExists
	}
	m.docs[id] = data

	snap := Snapshot{ID: id, Version: 1, Data: data}
	m.hub.publish(snap)
	return snap, nil
}

func (m *Memory) Get(ctx context.Context, id string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Snapshot{}, ErrClosed
	}
	data, ok := m.docs[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return snapshotOf(data)
}

func (m *Memory) Update(ctx context.Context, id string, version int64, updates Updates) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Snapshot{}, ErrClosed
	}

	data, ok := m.docs[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	meta, err := readMeta(data)
	if err != nil {
		return Snapshot{}, err
	}
	if meta.Version != version {
		return Snapshot{}, ErrVersionConflict
	}

	next, err := applyUpdates(data, version, updates)
	if err != nil {
		return Snapshot{}, err
	}
	m.docs[id] = next

	snap := Snapshot{ID: id, Version: version + 1, Data: next}
	m.hub.publish(snap)
	return snap, nil
}

func (m *Memory) Subscribe(ctx context.Context, id string) (<-chan Snapshot, error) {
	sub, err := m.hub.subscribe(ctx, id, m.Get)
	if err != nil {
		return nil, err
	}
	return sub.ch, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.hub.close()
	return nil
}
