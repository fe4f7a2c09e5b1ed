package sink

import (
	"sync"

	"github.com/lixenwraith/logpipe/core"
)

// Memory keeps accepted records in memory, up to a limit when set.
// Useful in tests and for in-process inspection.
type Memory struct {
	core.LevelFilter

	mu      sync.Mutex
	records []core.Record
	limit   int
	evicted uint64
	flushes uint64
}

// NewMemory creates a recording sink; limit <= 0 keeps everything, otherwise
// the oldest records are evicted
func NewMemory(limit int) *Memory {
	return &Memory{limit: limit}
}

// Accept records rec
func (m *Memory) Accept(rec core.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limit > 0 && len(m.records) >= m.limit {
		copy(m.records, m.records[1:])
		m.records = m.records[:len(m.records)-1]
		m.evicted++
	}
	m.records = append(m.records, rec)
	return nil
}

// Flush counts the call
func (m *Memory) Flush() error {
	m.mu.Lock()
	m.flushes++
	m.mu.Unlock()
	return nil
}

// Records returns a copy of the stored records
func (m *Memory) Records() []core.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Record(nil), m.records...)
}

// Messages returns the messages of the stored records
func (m *Memory) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.records))
	for i, rec := range m.records {
		out[i] = rec.Message
	}
	return out
}

// Len returns the number of stored records
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Flushes returns the number of Flush calls
func (m *Memory) Flushes() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

// Evicted returns the number of records dropped by the limit
func (m *Memory) Evicted() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evicted
}

// Reset discards stored records
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
}
