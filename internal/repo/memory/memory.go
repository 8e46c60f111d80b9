package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hamed0406/homecheck/internal/domain"
)

// Line is one system log entry held in memory.
type Line struct {
	Timestamp time.Time
	Message   string
}

// Store is an in-memory audit sink and snapshot store. It backs the API's
// "latest snapshot" view and stands in for the file sink in tests.
type Store struct {
	mu      sync.RWMutex
	lines   []Line
	records []domain.Record
	latest  *domain.Snapshot
	now     func() time.Time
}

func New() *Store {
	return &Store{
		lines:   make([]Line, 0, 128),
		records: make([]domain.Record, 0, 32),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *Store) AppendSystemLog(message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, Line{Timestamp: m.now(), Message: message})
	return nil
}

func (m *Store) AppendRecord(rec domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = m.now()
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *Store) SaveSnapshot(ctx context.Context, s domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := copySnapshot(s)
	m.latest = &cp
	return nil
}

func (m *Store) LatestSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return nil, nil
	}
	cp := copySnapshot(*m.latest)
	return &cp, nil
}

// SystemLog returns a copy of the lines written so far.
func (m *Store) SystemLog() []Line {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Line, len(m.lines))
	copy(out, m.lines)
	return out
}

// Records returns a copy of the feedback records written so far.
func (m *Store) Records() []domain.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Record, len(m.records))
	copy(out, m.records)
	return out
}

func copySnapshot(s domain.Snapshot) domain.Snapshot {
	outcomes := make(map[domain.TargetID]domain.Outcome, len(s.Outcomes))
	for id, o := range s.Outcomes {
		outcomes[id] = o
	}
	return domain.Snapshot{Timestamp: s.Timestamp, Outcomes: outcomes}
}
