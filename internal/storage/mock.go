package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/drakos74/draw-guess/internal/model"
)

// MockStorage is an in-memory model store.
type MockStorage struct {
	mutex  *sync.RWMutex
	Stats  map[string]model.Stats
	Models map[string][]byte
	// Fail makes every call return the given error.
	Fail  error
	Saves int
}

// NewMockStorage creates a new in-memory store.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		mutex:  new(sync.RWMutex),
		Stats:  make(map[string]model.Stats),
		Models: make(map[string][]byte),
	}
}

// WithFailure makes the store fail all calls with the given error.
func (m *MockStorage) WithFailure(err error) *MockStorage {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.Fail = err
	return m
}

// Get returns the stored stats of the session.
func (m *MockStorage) Get(id string) (model.Stats, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	s, ok := m.Stats[id]
	return s, ok
}

func (m *MockStorage) LoadStats(_ context.Context, id string) (model.Stats, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.Fail != nil {
		return model.Stats{}, m.Fail
	}
	return m.Stats[id], nil
}

func (m *MockStorage) SaveStats(_ context.Context, id string, stats model.Stats) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.Stats[id] = stats
	m.Saves++
	return nil
}

func (m *MockStorage) LoadModel(_ context.Context, id string) ([]byte, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.Fail != nil {
		return nil, m.Fail
	}
	b, ok := m.Models[id]
	if !ok {
		return nil, fmt.Errorf("model for '%s': %w", id, NotFoundErr)
	}
	return b, nil
}

func (m *MockStorage) SaveModel(_ context.Context, id string, blob []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.Models[id] = blob
	return nil
}

func (m *MockStorage) DeleteModel(_ context.Context, id string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	if _, ok := m.Models[id]; !ok {
		return fmt.Errorf("model for '%s': %w", id, NotFoundErr)
	}
	delete(m.Models, id)
	return nil
}

// StatsOnly hides the model methods of the wrapped store.
type StatsOnly struct {
	Store
}
