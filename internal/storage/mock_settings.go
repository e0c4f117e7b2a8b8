package storage

import (
	"context"
	"sync"

	"github.com/canonica-labs/geometa/internal/errors"
)

// MockSettings is an in-memory implementation of SettingsStore for testing.
// It is thread-safe and respects context cancellation.
type MockSettings struct {
	mu     sync.RWMutex
	values map[string]string

	// Test helper fields for simulating failures
	connectivityFailure     bool
	persistenceFailure      bool
	connectivityCheckCalled bool
	writes                  map[string]int
}

// NewMockSettings creates a new mock settings store.
func NewMockSettings() *MockSettings {
	return &MockSettings{
		values: make(map[string]string),
		writes: make(map[string]int),
	}
}

// checkContext verifies the context is not cancelled or timed out.
func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// Get returns the value stored under key.
func (m *MockSettings) Get(ctx context.Context, key string) (string, bool, error) {
	if err := checkContext(ctx); err != nil {
		return "", false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.connectivityFailure {
		return "", false, errors.NewSettingsUnavailable(key, errors.NewDatabaseUnavailable("mock connectivity failure"))
	}
	v, ok := m.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (m *MockSettings) Set(ctx context.Context, key, value string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.persistenceFailure || m.connectivityFailure {
		return errors.NewSettingsUnavailable(key, errors.NewDatabaseUnavailable("persistence failure (simulated)"))
	}
	m.values[key] = value
	m.writes[key]++
	return nil
}

// Delete removes key.
func (m *MockSettings) Delete(ctx context.Context, key string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.persistenceFailure || m.connectivityFailure {
		return errors.NewSettingsUnavailable(key, errors.NewDatabaseUnavailable("persistence failure (simulated)"))
	}
	delete(m.values, key)
	return nil
}

// SetConnectivityFailure configures the mock to simulate connectivity failures.
func (m *MockSettings) SetConnectivityFailure(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectivityFailure = fail
}

// SetPersistenceFailure configures the mock to simulate write failures.
func (m *MockSettings) SetPersistenceFailure(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persistenceFailure = fail
}

// CheckConnectivity verifies database connectivity.
func (m *MockSettings) CheckConnectivity(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectivityCheckCalled = true

	if m.connectivityFailure {
		return errors.NewDatabaseUnavailable("mock connectivity failure")
	}
	return nil
}

// ConnectivityCheckCalled returns whether CheckConnectivity was called.
func (m *MockSettings) ConnectivityCheckCalled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connectivityCheckCalled
}

// Writes returns how many times key has been written.
func (m *MockSettings) Writes(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes[key]
}

// Verify MockSettings implements SettingsStore interface.
var _ SettingsStore = (*MockSettings)(nil)
