package journal

import (
	"context"
	"sync"
)

// maxMemoryRecords bounds the in-memory journal. The daemon appends for its
// whole lifetime, so the oldest records are evicted past this point.
const maxMemoryRecords = 1000

// MemoryStore keeps the most recent records in memory. It is the default
// journal backend and the one the tests use.
type MemoryStore struct {
	mu      sync.RWMutex
	records []TradeRecord
	byID    map[string]int
	evicted int

	total     int
	submitted int
	failed    int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]int)}
}

// Record implements Store. Once maxMemoryRecords is reached the oldest
// record is dropped; the lifetime counters behind Stats are not.
func (m *MemoryStore) Record(_ context.Context, record *TradeRecord) error {
	if err := prepare(record); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byID[record.ID] = m.evicted + len(m.records)
	m.records = append(m.records, *record)

	m.total++
	switch record.Status {
	case StatusSubmitted:
		m.submitted++
	case StatusFailed:
		m.failed++
	}

	if len(m.records) > maxMemoryRecords {
		delete(m.byID, m.records[0].ID)
		copy(m.records, m.records[1:])
		m.records = m.records[:len(m.records)-1]
		m.evicted++
	}
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (*TradeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.byID[id]
	if !ok {
		return nil, ErrTradeNotFound
	}
	record := m.records[pos-m.evicted]
	return &record, nil
}

// ListLatest implements Store. Records are returned newest first.
func (m *MemoryStore) ListLatest(_ context.Context, limit int) ([]TradeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	out := make([]TradeRecord, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

// Stats implements Store. Counts cover the store's lifetime, including
// records already evicted from the window.
func (m *MemoryStore) Stats(_ context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &Stats{
		Total:     m.total,
		Submitted: m.submitted,
		Failed:    m.failed,
	}, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
