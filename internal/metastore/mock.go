package metastore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/canonica-labs/geometa/internal/errors"
)

// MockReader is an in-memory metadata store for tests.
type MockReader struct {
	mu       sync.RWMutex
	nextID   int64
	rows     map[ObjectType][]Row
	mirrored map[ObjectType]map[int64]bool
	failure  bool
}

// NewMockReader creates an empty store.
func NewMockReader() *MockReader {
	return &MockReader{
		rows:     make(map[ObjectType][]Row),
		mirrored: make(map[ObjectType]map[int64]bool),
	}
}

// Add stores a row and returns its id. Ids are unique across object types.
func (m *MockReader) Add(t ObjectType, objectID int64, key, value string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.rows[t] = append(m.rows[t], Row{MetaID: m.nextID, ObjectID: objectID, Key: key, Value: value})
	return m.nextID
}

// Remove deletes a row by id.
func (m *MockReader) Remove(t ObjectType, metaID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.rows[t][:0]
	for _, r := range m.rows[t] {
		if r.MetaID != metaID {
			rows = append(rows, r)
		}
	}
	m.rows[t] = rows
}

// MarkMirrored records that a row has a shadow row, hiding it from
// CandidatePage.
func (m *MockReader) MarkMirrored(t ObjectType, metaID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mirrored[t] == nil {
		m.mirrored[t] = make(map[int64]bool)
	}
	m.mirrored[t][metaID] = true
}

// SetFailure makes every read fail.
func (m *MockReader) SetFailure(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = fail
}

func (m *MockReader) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if m.failure {
		return errors.NewDatabaseUnavailable("mock metadata store failure")
	}
	return nil
}

// GetField returns the first value stored under key for the object.
func (m *MockReader) GetField(ctx context.Context, t ObjectType, objectID int64, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx); err != nil {
		return "", false, err
	}
	for _, r := range m.rows[t] {
		if r.ObjectID == objectID && r.Key == key {
			return r.Value, true, nil
		}
	}
	return "", false, nil
}

// SiblingRowID returns the id of the first row stored under key for the
// object.
func (m *MockReader) SiblingRowID(ctx context.Context, t ObjectType, objectID int64, key string) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx); err != nil {
		return 0, false, err
	}
	for _, r := range m.rows[t] {
		if r.ObjectID == objectID && r.Key == key {
			return r.MetaID, true, nil
		}
	}
	return 0, false, nil
}

// CandidatePage returns unmirrored rows matching LikePatterns.
func (m *MockReader) CandidatePage(ctx context.Context, t ObjectType, afterID int64, limit int) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	var page []Row
	for _, r := range m.sorted(t) {
		if r.MetaID <= afterID || m.mirrored[t][r.MetaID] || !MatchesBackfillPrefilter(r.Value) {
			continue
		}
		page = append(page, r)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

// LatLngRows joins latitude rows with their longitude siblings.
func (m *MockReader) LatLngRows(ctx context.Context, t ObjectType, latKey, lngKey string) ([]LatLngRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	var out []LatLngRow
	for _, lat := range m.sorted(t) {
		if lat.Key != latKey || lat.Value == "" {
			continue
		}
		for _, lng := range m.sorted(t) {
			if lng.Key == lngKey && lng.ObjectID == lat.ObjectID && lng.Value != "" {
				out = append(out, LatLngRow{MetaID: lat.MetaID, ObjectID: lat.ObjectID, Key: latKey, Lat: lat.Value, Lng: lng.Value})
			}
		}
	}
	return out, nil
}

func (m *MockReader) sorted(t ObjectType) []Row {
	rows := make([]Row, len(m.rows[t]))
	copy(rows, m.rows[t])
	sort.Slice(rows, func(i, j int) bool { return rows[i].MetaID < rows[j].MetaID })
	return rows
}

var (
	_ FieldReader = (*MockReader)(nil)
	_ Scanner     = (*MockReader)(nil)
)
