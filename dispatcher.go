package logpipe

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/logpipe/core"
)

// DispatcherState is the lifecycle state of a Dispatcher
type DispatcherState int32

const (
	StateStopped DispatcherState = iota
	StateRunning
	StateStopRequested
)

func (s DispatcherState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateStopRequested:
		return "stop_requested"
	default:
		return "unknown"
	}
}

// ErrDispatcherRunning is returned by Configure while workers are active
var ErrDispatcherRunning = errors.New("log: dispatcher is running")

// DispatcherOptions configures batching, flushing and the worker count
type DispatcherOptions struct {
	BatchSize     int
	FlushInterval time.Duration
	Workers       int
	AutoFlush     bool
	// OnSinkError is called from a worker for every failed Accept or Flush
	OnSinkError func(s core.Sink, err error)
}

// DefaultDispatcherOptions mirrors the defaults of DefaultConfig
func DefaultDispatcherOptions() DispatcherOptions {
	return DispatcherOptions{
		BatchSize:     100,
		FlushInterval: time.Second,
		Workers:       1,
		AutoFlush:     true,
	}
}

func (o DispatcherOptions) normalized() DispatcherOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 1
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = time.Second
	}
	return o
}

// DispatcherStats is a snapshot of the dispatcher counters
type DispatcherStats struct {
	State        DispatcherState
	Workers      int
	Sinks        int
	Queued       int
	Capacity     int
	Enqueued     uint64
	Dropped      uint64
	DropRate     float64
	Processed    uint64 // records taken from the channel and fanned out
	Batches      uint64
	SinkFailures uint64
	Flushes      uint64
	InFlight     int64
	LastFlush    time.Time
}

// workerRun is one generation of workers, never reused after Stop
type workerRun struct {
	stop chan struct{}
	wg   sync.WaitGroup
}

// Dispatcher owns the worker goroutines that drain a Channel and fan records
// out to the registered sinks
type Dispatcher struct {
	ch   *Channel[core.Record]
	opts DispatcherOptions

	lifeMu  sync.Mutex
	state   atomic.Int32
	current *workerRun

	sinksMu sync.Mutex
	sinks   atomic.Pointer[[]core.Sink]

	onSinkError atomic.Pointer[func(core.Sink, error)]

	lastFlush    atomic.Int64 // unix nanoseconds
	inFlight     atomic.Int64
	processed    atomic.Uint64
	batches      atomic.Uint64
	sinkFailures atomic.Uint64
	flushes      atomic.Uint64
}

// NewDispatcher creates a stopped dispatcher draining ch
func NewDispatcher(ch *Channel[core.Record], opts DispatcherOptions) *Dispatcher {
	d := &Dispatcher{ch: ch}
	d.setOptions(opts)
	empty := make([]core.Sink, 0)
	d.sinks.Store(&empty)
	d.lastFlush.Store(time.Now().UnixNano())
	return d
}

// Channel returns the channel drained by the dispatcher
func (d *Dispatcher) Channel() *Channel[core.Record] {
	return d.ch
}

// Options returns the current options
func (d *Dispatcher) Options() DispatcherOptions {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()
	return d.opts
}

// Configure replaces the options, only allowed while stopped
func (d *Dispatcher) Configure(opts DispatcherOptions) error {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()
	if d.current != nil {
		return ErrDispatcherRunning
	}
	d.setOptions(opts)
	return nil
}

func (d *Dispatcher) setOptions(opts DispatcherOptions) {
	d.opts = opts.normalized()
	if opts.OnSinkError != nil {
		d.onSinkError.Store(&opts.OnSinkError)
	} else {
		d.onSinkError.Store(nil)
	}
}

// State returns the lifecycle state
func (d *Dispatcher) State() DispatcherState {
	return DispatcherState(d.state.Load())
}

// IsRunning reports whether workers are active and not asked to stop
func (d *Dispatcher) IsRunning() bool {
	return d.State() == StateRunning
}

// Start spawns the workers. Returns false if already running.
func (d *Dispatcher) Start() bool {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()

	if d.current != nil {
		if d.State() == StateRunning {
			return false
		}
		// A non-waiting Stop is still winding down
		d.current.wg.Wait()
		d.current = nil
	}

	run := &workerRun{stop: make(chan struct{})}
	d.current = run
	d.lastFlush.Store(time.Now().UnixNano())
	d.state.Store(int32(StateRunning))

	opts := d.opts
	run.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker(run, opts)
	}
	return true
}

// Stop asks the workers to exit. With wait, it blocks until they have exited,
// delivers the records queued at that point on the calling goroutine and
// flushes every sink. Without wait it returns immediately and queued records
// stay in the channel.
func (d *Dispatcher) Stop(wait bool) {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()

	run := d.current
	if run == nil {
		// Never started or already stopped: a waiting stop still delivers
		// what was queued meanwhile
		if wait && d.ch.Len() > 0 {
			d.drain()
			_ = d.Flush()
		}
		return
	}

	if d.State() == StateRunning {
		d.state.Store(int32(StateStopRequested))
		close(run.stop)
		if !wait {
			go func() {
				run.wg.Wait()
				d.finishRun(run)
			}()
			return
		}
	} else if !wait {
		return
	}

	run.wg.Wait()
	d.drain()
	_ = d.Flush()
	d.current = nil
	d.state.Store(int32(StateStopped))
}

// finishRun completes a non-waiting Stop once its workers have exited
func (d *Dispatcher) finishRun(run *workerRun) {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()
	if d.current == run {
		d.current = nil
		d.state.Store(int32(StateStopped))
	}
}

// drain processes queued records on the caller. With the channel shut down it
// empties it, otherwise it stops after the records present on entry.
func (d *Dispatcher) drain() {
	remaining := d.ch.Len()
	shutdown := d.ch.IsShutdown()
	batch := make([]core.Record, 0, d.opts.BatchSize)

	for shutdown || remaining > 0 {
		limit := d.opts.BatchSize
		if !shutdown {
			limit = min(limit, remaining)
		}
		batch = d.ch.popBatch(batch[:0], limit, 0, nil, &d.inFlight)
		if len(batch) == 0 {
			return
		}
		remaining -= len(batch)
		d.processBatch(batch)
		clear(batch)
	}
}

// AddSink registers s; nil is ignored
func (d *Dispatcher) AddSink(s core.Sink) {
	if s == nil {
		return
	}
	d.sinksMu.Lock()
	defer d.sinksMu.Unlock()

	old := *d.sinks.Load()
	next := make([]core.Sink, len(old), len(old)+1)
	copy(next, old)
	next = append(next, s)
	d.sinks.Store(&next)
}

// RemoveSink unregisters the first occurrence of s
func (d *Dispatcher) RemoveSink(s core.Sink) bool {
	d.sinksMu.Lock()
	defer d.sinksMu.Unlock()

	old := *d.sinks.Load()
	for i, existing := range old {
		if existing == s {
			next := make([]core.Sink, 0, len(old)-1)
			next = append(next, old[:i]...)
			next = append(next, old[i+1:]...)
			d.sinks.Store(&next)
			return true
		}
	}
	return false
}

// ReplaceSink swaps old for next in a single snapshot update. next is appended
// when old is not registered; a nil next only removes old.
func (d *Dispatcher) ReplaceSink(old, next core.Sink) {
	d.sinksMu.Lock()
	defer d.sinksMu.Unlock()

	current := *d.sinks.Load()
	updated := make([]core.Sink, 0, len(current)+1)
	replaced := false
	for _, s := range current {
		if old != nil && s == old && !replaced {
			replaced = true
			if next != nil {
				updated = append(updated, next)
			}
			continue
		}
		updated = append(updated, s)
	}
	if !replaced && next != nil {
		updated = append(updated, next)
	}
	d.sinks.Store(&updated)
}

// ClearSinks unregisters every sink
func (d *Dispatcher) ClearSinks() {
	d.sinksMu.Lock()
	defer d.sinksMu.Unlock()
	empty := make([]core.Sink, 0)
	d.sinks.Store(&empty)
}

// Sinks returns a copy of the registered sinks
func (d *Dispatcher) Sinks() []core.Sink {
	snapshot := *d.sinks.Load()
	out := make([]core.Sink, len(snapshot))
	copy(out, snapshot)
	return out
}

// Flush flushes every sink and restarts the auto-flush interval. It does not
// wait for queued records; see WaitForCompletion.
func (d *Dispatcher) Flush() error {
	var err error
	for _, s := range *d.sinks.Load() {
		if flushErr := d.flushSink(s); flushErr != nil {
			err = combineErrors(err, flushErr)
		}
	}
	d.lastFlush.Store(time.Now().UnixNano())
	d.flushes.Add(1)
	return err
}

// WaitForCompletion waits until the channel is empty and no batch is being
// delivered. Returns false if timeout elapses first.
func (d *Dispatcher) WaitForCompletion(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if d.ch.Len() == 0 && d.inFlight.Load() == 0 {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(min(time.Millisecond, time.Until(deadline)))
	}
}

// Dropped mirrors the channel drop counter
func (d *Dispatcher) Dropped() uint64 {
	return d.ch.Dropped()
}

// DropRate is dropped / (dropped + queued)
func (d *Dispatcher) DropRate() float64 {
	dropped := d.ch.Dropped()
	total := dropped + uint64(d.ch.Len())
	if total == 0 {
		return 0
	}
	return float64(dropped) / float64(total)
}

// Stats returns a snapshot of the counters
func (d *Dispatcher) Stats() DispatcherStats {
	d.lifeMu.Lock()
	workers := d.opts.Workers
	d.lifeMu.Unlock()

	return DispatcherStats{
		State:        d.State(),
		Workers:      workers,
		Sinks:        len(*d.sinks.Load()),
		Queued:       d.ch.Len(),
		Capacity:     d.ch.Cap(),
		Enqueued:     d.ch.Enqueued(),
		Dropped:      d.ch.Dropped(),
		DropRate:     d.DropRate(),
		Processed:    d.processed.Load(),
		Batches:      d.batches.Load(),
		SinkFailures: d.sinkFailures.Load(),
		Flushes:      d.flushes.Load(),
		InFlight:     d.inFlight.Load(),
		LastFlush:    time.Unix(0, d.lastFlush.Load()),
	}
}

// ResetStats zeroes the dispatcher counters and the channel drop counter
func (d *Dispatcher) ResetStats() {
	d.processed.Store(0)
	d.batches.Store(0)
	d.sinkFailures.Store(0)
	d.flushes.Store(0)
	d.ch.ResetDropped()
}
