package core

import "sync/atomic"

// Sink receives records from the dispatcher.
// Accept and Flush may be called from several worker goroutines at once
// when the dispatcher runs more than one worker.
type Sink interface {
	Accept(rec Record) error
	Flush() error
	ShouldLog(level Level) bool
	SetLevel(level Level)
	Level() Level
}

// LevelFilter implements the level half of Sink and is meant to be embedded.
// The zero value passes every level.
type LevelFilter struct {
	level atomic.Int32
}

// SetLevel sets the minimum level
func (f *LevelFilter) SetLevel(level Level) {
	f.level.Store(int32(level))
}

// Level returns the minimum level
func (f *LevelFilter) Level() Level {
	return Level(f.level.Load())
}

// ShouldLog reports whether level passes the filter
func (f *LevelFilter) ShouldLog(level Level) bool {
	threshold := f.Level()
	return threshold != LevelOff && level >= threshold
}
