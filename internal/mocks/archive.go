package mocks

import (
	"context"
	"sync"
)

// MockArchive implements service.Archive for testing and records calls.
type MockArchive struct {
	PutFn    func(ctx context.Context, guideID, filename string, data []byte) error
	DeleteFn func(ctx context.Context, guideID string) error

	mu      sync.Mutex
	puts    []string
	deletes []string
}

// Put records guideID and calls PutFn when set.
func (m *MockArchive) Put(ctx context.Context, guideID, filename string, data []byte) error {
	m.mu.Lock()
	m.puts = append(m.puts, guideID)
	m.mu.Unlock()
	if m.PutFn != nil {
		return m.PutFn(ctx, guideID, filename, data)
	}
	return nil
}

// Delete records guideID and calls DeleteFn when set.
func (m *MockArchive) Delete(ctx context.Context, guideID string) error {
	m.mu.Lock()
	m.deletes = append(m.deletes, guideID)
	m.mu.Unlock()
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, guideID)
	}
	return nil
}

// Puts returns the guide ids passed to Put.
func (m *MockArchive) Puts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.puts...)
}

// Deletes returns the guide ids passed to Delete.
func (m *MockArchive) Deletes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deletes...)
}
