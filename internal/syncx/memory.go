package syncx

import (
	"context"
	"sync"
)

// Memory is an in-process Channel for tests and single-node runs.
type Memory struct {
	mu   sync.Mutex
	subs map[string]map[int]chan struct{}
	next int
}

func NewMemory() *Memory {
	return &Memory{subs: map[string]map[int]chan struct{}{}}
}

func (m *Memory) Publish(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs[userID] {
		// non-blocking: a slow subscriber just coalesces signals
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (m *Memory) Subscribe(_ context.Context, userID string) (<-chan struct{}, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	ch := make(chan struct{}, 1)
	if m.subs[userID] == nil {
		m.subs[userID] = map[int]chan struct{}{}
	}
	m.subs[userID][id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if subs, ok := m.subs[userID]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(m.subs, userID)
			}
		}
	}
	return ch, cancel, nil
}
