package logpipe

import (
	"sync/atomic"
	"time"

	"github.com/lixenwraith/logpipe/core"
	"github.com/lixenwraith/logpipe/pool"
)

// State encapsulates the runtime state of the logger
type State struct {
	IsInitialized  atomic.Bool
	LoggerDisabled atomic.Bool
	ShutdownCalled atomic.Bool
	Started        atomic.Bool

	DroppedLogs   atomic.Uint64 // Drops not yet reported by a drop record
	IntervalDrops atomic.Uint64 // Drops since the last proc heartbeat
	TotalDropped  atomic.Uint64 // Drops through the logger lifecycle
	Submitted     atomic.Uint64 // Records accepted by the channel

	// Heartbeat statistics
	HeartbeatSequence atomic.Uint64
	LoggerStartTime   atomic.Value // stores time.Time for uptime calculation
}

// pipeline is one channel and the dispatcher draining it. A shut down
// pipeline is never reused; reinitializing after Shutdown builds a new one.
type pipeline struct {
	ch *Channel[core.Record]
	d  *Dispatcher
}

// LoggerStats is a snapshot of the logger and its pipeline
type LoggerStats struct {
	Level         core.Level
	Started       bool
	Uptime        time.Duration
	Submitted     uint64
	TotalDropped  uint64
	PendingDrops  uint64 // drops a drop report has not covered yet
	Heartbeats    uint64
	QueueLength   int
	QueueCapacity int
	Dispatcher    DispatcherStats
	Pool          pool.MultiPoolStats
}

// Stats returns a snapshot of the logger counters
func (l *Logger) Stats() LoggerStats {
	p := l.pipe.Load()
	stats := LoggerStats{
		Level:         l.Level(),
		Started:       l.state.Started.Load(),
		Submitted:     l.state.Submitted.Load(),
		TotalDropped:  l.state.TotalDropped.Load(),
		PendingDrops:  l.state.DroppedLogs.Load(),
		Heartbeats:    l.state.HeartbeatSequence.Load(),
		QueueLength:   p.ch.Len(),
		QueueCapacity: p.ch.Cap(),
		Dispatcher:    p.d.Stats(),
		Pool:          l.bufPool.Load().Stats(),
	}
	if start, ok := l.state.LoggerStartTime.Load().(time.Time); ok {
		stats.Uptime = time.Since(start)
	}
	return stats
}

// DropRate is the fraction of records rejected by the channel
func (l *Logger) DropRate() float64 {
	return l.pipe.Load().d.DropRate()
}

// ResetStats zeroes the pipeline counters and the logger drop totals
func (l *Logger) ResetStats() {
	l.pipe.Load().d.ResetStats()
	l.state.TotalDropped.Store(0)
	l.state.IntervalDrops.Store(0)
	l.state.Submitted.Store(0)
}

// WaitForCompletion waits until every queued record has been delivered
func (l *Logger) WaitForCompletion(timeout time.Duration) bool {
	return l.pipe.Load().d.WaitForCompletion(timeout)
}

// QueueLength returns the number of records waiting in the channel
func (l *Logger) QueueLength() int {
	return l.pipe.Load().ch.Len()
}

// QueueCapacity returns the channel capacity, 0 when unbounded
func (l *Logger) QueueCapacity() int {
	return l.pipe.Load().ch.Cap()
}
