package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/phrazzld/studyguide-api/internal/domain"
	"github.com/phrazzld/studyguide-api/internal/store"
)

// MockGuideStore implements store.GuideStore for testing. Methods without an
// Fn field fall back to an in-memory map with the real store semantics, and
// hand out copies so callers cannot mutate stored records.
type MockGuideStore struct {
	PutFn         func(ctx context.Context, guide *domain.Guide) error
	GetFn         func(ctx context.Context, id string) (*domain.Guide, error)
	ListByOwnerFn func(ctx context.Context, owner string) ([]*domain.Guide, error)
	UpdateFn      func(ctx context.Context, id string, fn store.UpdateFn) (*domain.Guide, error)
	DeleteFn      func(ctx context.Context, id string) error

	mu     sync.Mutex
	guides map[string]*domain.Guide
}

var _ store.GuideStore = (*MockGuideStore)(nil)

// NewMockGuideStore returns a store seeded with guides.
func NewMockGuideStore(guides ...*domain.Guide) *MockGuideStore {
	m := &MockGuideStore{guides: make(map[string]*domain.Guide)}
	for _, g := range guides {
		m.guides[g.ID] = clone(g)
	}
	return m
}

// Put implements store.GuideStore
func (m *MockGuideStore) Put(ctx context.Context, guide *domain.Guide) error {
	if m.PutFn != nil {
		return m.PutFn(ctx, guide)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	if _, ok := m.guides[guide.ID]; ok {
		return fmt.Errorf("%w: guide %s", store.ErrDuplicate, guide.ID)
	}
	m.guides[guide.ID] = clone(guide)
	return nil
}

// Get implements store.GuideStore
func (m *MockGuideStore) Get(ctx context.Context, id string) (*domain.Guide, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.guides[id]
	if !ok {
		return nil, store.ErrGuideNotFound
	}
	return clone(g), nil
}

// ListByOwner implements store.GuideStore
func (m *MockGuideStore) ListByOwner(ctx context.Context, owner string) ([]*domain.Guide, error) {
	if m.ListByOwnerFn != nil {
		return m.ListByOwnerFn(ctx, owner)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Guide, 0)
	for _, g := range m.guides {
		if g.Owner == owner {
			out = append(out, clone(g))
		}
	}
	return out, nil
}

// Update implements store.GuideStore
func (m *MockGuideStore) Update(ctx context.Context, id string, fn store.UpdateFn) (*domain.Guide, error) {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, id, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.guides[id]
	if !ok {
		return nil, store.ErrGuideNotFound
	}
	working := clone(current)
	if err := fn(working); err != nil {
		return nil, err
	}
	working.ID = id
	m.guides[id] = clone(working)
	return working, nil
}

// Delete implements store.GuideStore
func (m *MockGuideStore) Delete(ctx context.Context, id string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.guides, id)
	return nil
}

// Stored returns a copy of the stored guide, or nil.
func (m *MockGuideStore) Stored(id string) *domain.Guide {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.guides[id]; ok {
		return clone(g)
	}
	return nil
}

// Len returns the number of stored guides.
func (m *MockGuideStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.guides)
}

func (m *MockGuideStore) init() {
	if m.guides == nil {
		m.guides = make(map[string]*domain.Guide)
	}
}

func clone(g *domain.Guide) *domain.Guide {
	data, err := json.Marshal(g)
	if err != nil {
		// ALLOW-PANIC: test fixture guides always encode
		panic(err)
	}
	var out domain.Guide
	if err := json.Unmarshal(data, &out); err != nil {
		// ALLOW-PANIC
		panic(err)
	}
	return &out
}
