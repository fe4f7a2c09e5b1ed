package logpipe

import (
	"time"

	"github.com/lixenwraith/logpipe/core"
)

// worker is the main processing loop of one dispatcher goroutine
func (d *Dispatcher) worker(run *workerRun, opts DispatcherOptions) {
	defer run.wg.Done()

	batch := make([]core.Record, 0, opts.BatchSize)

	for {
		select {
		case <-run.stop:
			return
		default:
		}

		wait := d.nextWait(opts)
		batch = d.ch.popBatch(batch[:0], opts.BatchSize, wait, run.stop, &d.inFlight)

		if len(batch) > 0 {
			d.processBatch(batch)
			clear(batch)
		} else if d.ch.IsShutdown() {
			// Nothing left to wait for on the channel, keep serving the flush clock
			select {
			case <-run.stop:
				return
			case <-time.After(wait):
			}
		}

		if opts.AutoFlush {
			d.maybeAutoFlush(opts.FlushInterval)
		}
	}
}

// nextWait bounds the channel wait by the time left until the next auto-flush
func (d *Dispatcher) nextWait(opts DispatcherOptions) time.Duration {
	if !opts.AutoFlush {
		return maxIdleWait
	}
	elapsed := time.Duration(time.Now().UnixNano() - d.lastFlush.Load())
	left := opts.FlushInterval - elapsed
	if left < time.Millisecond {
		left = time.Millisecond
	}
	return min(left, maxIdleWait)
}

// maybeAutoFlush flushes when the interval elapsed. Only the worker winning
// the clock update flushes.
func (d *Dispatcher) maybeAutoFlush(interval time.Duration) {
	last := d.lastFlush.Load()
	now := time.Now().UnixNano()
	if time.Duration(now-last) < interval {
		return
	}
	if !d.lastFlush.CompareAndSwap(last, now) {
		return
	}
	_ = d.Flush()
}

// processBatch fans every record out to the current sink snapshot and
// releases the in-flight reservation taken by the pop
func (d *Dispatcher) processBatch(batch []core.Record) {
	defer d.inFlight.Add(-int64(len(batch)))

	sinks := *d.sinks.Load()
	for i := range batch {
		rec := batch[i]
		for _, s := range sinks {
			if !s.ShouldLog(rec.Level) {
				continue
			}
			if err := d.deliver(s, rec); err != nil {
				d.reportSinkError(s, err)
			}
		}
	}
	d.processed.Add(uint64(len(batch)))
	d.batches.Add(1)
}

// deliver calls Accept, turning a panic into an error
func (d *Dispatcher) deliver(s core.Sink, rec core.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmtErrorf("sink panicked in Accept: %v", r)
		}
	}()
	return s.Accept(rec)
}

// flushSink calls Flush, turning a panic into an error
func (d *Dispatcher) flushSink(s core.Sink) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmtErrorf("sink panicked in Flush: %v", r)
		}
		if err != nil {
			d.reportSinkError(s, err)
		}
	}()
	return s.Flush()
}

func (d *Dispatcher) reportSinkError(s core.Sink, err error) {
	d.sinkFailures.Add(1)
	if hook := d.onSinkError.Load(); hook != nil {
		(*hook)(s, err)
	}
}
