package sink

import (
	"github.com/lixenwraith/logpipe/core"
)

// Predicate selects records
type Predicate func(rec core.Record) bool

// Filter forwards the records matching a predicate to a wrapped sink
type Filter struct {
	core.LevelFilter
	next core.Sink
	pred Predicate
}

// NewFilter wraps next; a nil predicate passes everything
func NewFilter(next core.Sink, pred Predicate) *Filter {
	if pred == nil {
		pred = func(core.Record) bool { return true }
	}
	return &Filter{next: next, pred: pred}
}

// Accept forwards rec when the predicate and the wrapped sink's level pass
func (f *Filter) Accept(rec core.Record) error {
	if !f.pred(rec) || !f.next.ShouldLog(rec.Level) {
		return nil
	}
	return f.next.Accept(rec)
}

// Flush flushes the wrapped sink
func (f *Filter) Flush() error {
	return f.next.Flush()
}

// Close closes the wrapped sink if it is closable
func (f *Filter) Close() error {
	if c, ok := f.next.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// ByLogger matches records from the named logger
func ByLogger(name string) Predicate {
	return func(rec core.Record) bool { return rec.Logger == name }
}

// ByLevelRange matches records with lo <= level <= hi
func ByLevelRange(lo, hi core.Level) Predicate {
	return func(rec core.Record) bool { return rec.Level >= lo && rec.Level <= hi }
}

// Not inverts p
func Not(p Predicate) Predicate {
	return func(rec core.Record) bool { return !p(rec) }
}
