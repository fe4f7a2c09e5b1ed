package sink

import (
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/lixenwraith/logpipe/core"
)

// Multi fans each record out to its children. Its own level gates the record
// before each child applies its level.
type Multi struct {
	core.LevelFilter
	sinks atomic.Pointer[[]core.Sink]
}

// NewMulti creates a composite sink over sinks, nil entries are skipped
func NewMulti(sinks ...core.Sink) *Multi {
	m := &Multi{}
	children := make([]core.Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			children = append(children, s)
		}
	}
	m.sinks.Store(&children)
	return m
}

// Add appends a child
func (m *Multi) Add(s core.Sink) {
	if s == nil {
		return
	}
	for {
		old := m.sinks.Load()
		next := append(append(make([]core.Sink, 0, len(*old)+1), *old...), s)
		if m.sinks.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Sinks returns the current children
func (m *Multi) Sinks() []core.Sink {
	return append([]core.Sink(nil), *m.sinks.Load()...)
}

// Accept delivers rec to every child whose level passes. All children are
// tried; their errors are combined.
func (m *Multi) Accept(rec core.Record) error {
	var err error
	for _, s := range *m.sinks.Load() {
		if s.ShouldLog(rec.Level) {
			err = multierr.Append(err, s.Accept(rec))
		}
	}
	return err
}

// Flush flushes every child
func (m *Multi) Flush() error {
	var err error
	for _, s := range *m.sinks.Load() {
		err = multierr.Append(err, s.Flush())
	}
	return err
}

// Close closes the children implementing io.Closer
func (m *Multi) Close() error {
	var err error
	for _, s := range *m.sinks.Load() {
		if c, ok := s.(interface{ Close() error }); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}
