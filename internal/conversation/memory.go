// ABOUTME: In-memory Store with one lock per conversation
// ABOUTME: The map lock is held only for cell lookup, never across a mutation

package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/2389/sms-gateway/internal/stats"
)

// cell pairs one conversation's state with its own lock so a slow mutation
// on one conversation never blocks any other.
type cell struct {
	mu    sync.Mutex
	state *State
}

// MemoryStore keeps all conversation state in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	cells map[ID]*cell
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cells: make(map[ID]*cell),
		now:   time.Now,
	}
}

// lookupOrCreate returns the cell for id, creating it on first contact.
func (m *MemoryStore) lookupOrCreate(id ID) *cell {
	m.mu.RLock()
	c, ok := m.cells[id]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cells[id]; ok {
		return c
	}
	c = &cell{state: &State{ID: id, Stats: stats.New(m.now())}}
	m.cells[id] = c
	return c
}

// Apply implements Store.
func (m *MemoryStore) Apply(ctx context.Context, id ID, fn func(*State) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := m.lookupOrCreate(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.state)
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, id ID) (*State, error) {
	m.mu.RLock()
	c, ok := m.cells[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone(), nil
}

// List implements Store.
func (m *MemoryStore) List(ctx context.Context) ([]*State, error) {
	m.mu.RLock()
	cells := make([]*cell, 0, len(m.cells))
	for _, c := range m.cells {
		cells = append(cells, c)
	}
	m.mu.RUnlock()

	out := make([]*State, 0, len(cells))
	for _, c := range cells {
		c.mu.Lock()
		out = append(out, c.state.Clone())
		c.mu.Unlock()
	}
	return out, nil
}

// Close implements Store. Nothing to release.
func (m *MemoryStore) Close() error {
	return nil
}
