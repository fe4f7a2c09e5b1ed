package logpipe

import (
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/logpipe/core"
	"github.com/lixenwraith/logpipe/formatter"
	"github.com/lixenwraith/logpipe/pool"
	"github.com/lixenwraith/logpipe/sink"
)

// Logger is the front end of the pipeline: it builds records, enqueues them
// without blocking and owns the dispatcher and the sinks created from its
// configuration. Independent loggers share nothing.
type Logger struct {
	currentConfig atomic.Pointer[Config]
	state         State
	initMu        sync.Mutex

	pipe    atomic.Pointer[pipeline]
	bufPool atomic.Pointer[pool.MultiPool]
	level   atomic.Int32
	seq     atomic.Uint64

	// Guarded by initMu
	console   core.Sink
	file      core.Sink
	heartbeat *heartbeatRun

	// File output read by disk heartbeats, nil unless it is a *sink.File
	diskFile atomic.Pointer[sink.File]
}

// NewLogger creates a new Logger instance with default settings.
// ApplyConfig must be called before records are accepted.
func NewLogger() *Logger {
	l := &Logger{}
	cfg := DefaultConfig()

	l.currentConfig.Store(cfg)
	l.level.Store(int32(cfg.level()))
	l.state.LoggerStartTime.Store(time.Now())
	l.pipe.Store(l.newPipeline(cfg))
	l.bufPool.Store(newMessagePool(cfg))

	return l
}

func (l *Logger) newPipeline(cfg *Config) *pipeline {
	ch := NewChannel[core.Record](int(cfg.QueueSize))
	opts := cfg.dispatcherOptions()
	opts.OnSinkError = l.handleSinkError
	return &pipeline{ch: ch, d: NewDispatcher(ch, opts)}
}

func newMessagePool(cfg *Config) *pool.MultiPool {
	return pool.NewMultiPool(int(cfg.MemoryPoolSize), int(cfg.PoolMaxBlockSize),
		cfg.PoolGrowthFactor, int(cfg.MaxMemoryPoolBlocks))
}

// ApplyConfig applies a validated configuration to the logger
// This is the primary way applications should configure the logger
func (l *Logger) ApplyConfig(cfg *Config) error {
	if cfg == nil {
		return fmtErrorf("configuration cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return fmtErrorf("invalid configuration: %w", err)
	}

	l.initMu.Lock()
	defer l.initMu.Unlock()

	return l.applyConfig(cfg.Clone())
}

// GetConfig returns a copy of current configuration
func (l *Logger) GetConfig() *Config {
	return l.getConfig().Clone()
}

// getConfig returns the current configuration (thread-safe)
func (l *Logger) getConfig() *Config {
	return l.currentConfig.Load()
}

// applyConfig is the internal implementation for applying configuration, assuming initMu is held
func (l *Logger) applyConfig(cfg *Config) error {
	oldCfg := l.getConfig()
	wasInitialized := l.state.IsInitialized.Load()
	wasStarted := l.state.Started.Load()

	// A shut down channel never reopens, build a fresh pipeline and carry the
	// user sinks over
	p := l.pipe.Load()
	if p.ch.IsShutdown() {
		next := l.newPipeline(cfg)
		for _, s := range l.userSinks(p.d) {
			next.d.AddSink(s)
		}
		l.pipe.Store(next)
		p = next
		l.console, l.file = nil, nil
		l.diskFile.Store(nil)
	}

	if cfg.QueueSize != oldCfg.QueueSize && !p.ch.SetCapacity(int(cfg.QueueSize)) {
		return fmtErrorf("cannot set queue_size to %d with %d records queued", cfg.QueueSize, p.ch.Len())
	}

	fileChanged := !wasInitialized || fileOutputOf(oldCfg) != fileOutputOf(cfg)
	optsChanged := dispatcherChanged(oldCfg, cfg)

	// Workers must not hold the file sink while it is swapped
	needsRestart := wasStarted && (optsChanged || (fileChanged && l.file != nil))
	if needsRestart {
		if err := l.stop(l.stopTimeout(oldCfg)); err != nil {
			return fmtErrorf("failed to stop dispatcher for restart: %w", err)
		}
	}

	if optsChanged {
		opts := cfg.dispatcherOptions()
		opts.OnSinkError = l.handleSinkError
		if err := p.d.Configure(opts); err != nil {
			return fmtErrorf("failed to reconfigure dispatcher: %w", err)
		}
	}

	// Console output
	var console core.Sink
	if cfg.EnableConsole {
		w, err := sink.NewConsole(cfg.ConsoleTarget, newFormatter(cfg).Color(cfg.ConsoleColor))
		if err != nil {
			return fmtErrorf("failed to create console output: %w", err)
		}
		console = w
	}
	p.d.ReplaceSink(l.console, console)
	l.console = console

	// File output
	if fileChanged || (cfg.EnableFile && l.file == nil) {
		if l.file != nil {
			p.d.RemoveSink(l.file)
			l.closeSink(l.file)
			l.file = nil
			l.diskFile.Store(nil)
		}
		if cfg.EnableFile {
			fs, err := l.newFileSink(cfg)
			if err != nil {
				l.state.LoggerDisabled.Store(true)
				if wasStarted {
					l.start(oldCfg)
				}
				return fmtErrorf("failed to create log file: %w", err)
			}
			l.file = fs
			if f, ok := fs.(*sink.File); ok {
				l.diskFile.Store(f)
			}
			p.d.AddSink(fs)
		}
	}

	if poolChanged(oldCfg, cfg) || !wasInitialized {
		l.bufPool.Store(newMessagePool(cfg))
	}

	l.level.Store(int32(cfg.level()))
	l.currentConfig.Store(cfg)

	// Mark as initialized
	l.state.IsInitialized.Store(true)
	l.state.ShutdownCalled.Store(false)
	l.state.LoggerDisabled.Store(false)

	switch {
	case needsRestart:
		l.start(cfg)
	case wasStarted && heartbeatChanged(oldCfg, cfg):
		l.stopHeartbeat()
		l.startHeartbeat(cfg)
	}

	return nil
}

// fileOutput holds the keys shaping the managed file sink
type fileOutput struct {
	enabled                 bool
	path, rotation          string
	format, timestampFormat string
	showTimestamp           bool
	showLevel               bool
	maxSizeMB               int64
	maxTotalSizeMB          int64
	minDiskFreeMB           int64
	maxBackups              int64
	maxAgeDays              int64
	retentionPeriodHrs      float64
	compress                bool
}

func fileOutputOf(c *Config) fileOutput {
	if !c.EnableFile {
		return fileOutput{}
	}
	return fileOutput{
		enabled:            true,
		path:               c.filePath(),
		rotation:           c.FileRotation,
		format:             c.Format,
		timestampFormat:    c.TimestampFormat,
		showTimestamp:      c.ShowTimestamp,
		showLevel:          c.ShowLevel,
		maxSizeMB:          c.MaxSizeMB,
		maxTotalSizeMB:     c.MaxTotalSizeMB,
		minDiskFreeMB:      c.MinDiskFreeMB,
		maxBackups:         c.MaxBackups,
		maxAgeDays:         c.MaxAgeDays,
		retentionPeriodHrs: c.RetentionPeriodHrs,
		compress:           c.Compress,
	}
}

func dispatcherChanged(a, b *Config) bool {
	return a.BatchSize != b.BatchSize ||
		a.FlushIntervalMs != b.FlushIntervalMs ||
		a.WorkerThreads != b.WorkerThreads ||
		a.AutoFlush != b.AutoFlush
}

func poolChanged(a, b *Config) bool {
	return a.MemoryPoolSize != b.MemoryPoolSize ||
		a.MaxMemoryPoolBlocks != b.MaxMemoryPoolBlocks ||
		a.PoolMaxBlockSize != b.PoolMaxBlockSize ||
		a.PoolGrowthFactor != b.PoolGrowthFactor
}

func heartbeatChanged(a, b *Config) bool {
	return a.HeartbeatLevel != b.HeartbeatLevel || a.HeartbeatIntervalS != b.HeartbeatIntervalS
}

// newFormatter builds the formatter shared by the layout keys of cfg
func newFormatter(cfg *Config) *formatter.Formatter {
	return formatter.New().
		Type(cfg.Format).
		TimestampFormat(cfg.TimestampFormat).
		ShowTimestamp(cfg.ShowTimestamp).
		ShowLevel(cfg.ShowLevel)
}

// newFileSink opens the file output selected by file_rotation
func (l *Logger) newFileSink(cfg *Config) (core.Sink, error) {
	if cfg.FileRotation == RotationLumberjack {
		r, err := sink.NewRotating(sink.RotatingOptions{
			Filename:   cfg.filePath(),
			MaxSizeMB:  int(cfg.MaxSizeMB),
			MaxBackups: int(cfg.MaxBackups),
			MaxAgeDays: int(cfg.MaxAgeDays),
			Compress:   cfg.Compress,
			LocalTime:  true,
			Formatter:  newFormatter(cfg),
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	}

	f, err := sink.NewFile(sink.FileOptions{
		Directory:          cfg.Directory,
		Name:               cfg.fileBaseName(),
		Extension:          cfg.Extension,
		MaxSizeMB:          cfg.MaxSizeMB,
		MaxTotalSizeMB:     cfg.MaxTotalSizeMB,
		MinDiskFreeMB:      cfg.MinDiskFreeMB,
		RetentionPeriodHrs: cfg.RetentionPeriodHrs,
		Compress:           cfg.Compress,
		Formatter:          newFormatter(cfg),
		Internal:           l.internalLog,
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// userSinks returns the sinks of d not created from configuration
func (l *Logger) userSinks(d *Dispatcher) []core.Sink {
	var out []core.Sink
	for _, s := range d.Sinks() {
		if s != l.console && s != l.file {
			out = append(out, s)
		}
	}
	return out
}

// closeSink closes a managed sink holding a resource
func (l *Logger) closeSink(s core.Sink) error {
	c, ok := s.(io.Closer)
	if !ok {
		return nil
	}
	if err := c.Close(); err != nil {
		l.internalLog("failed to close sink: %v\n", err)
		return err
	}
	return nil
}

// Start begins record processing. Safe to call multiple times
// Returns error if logger is not initialized
func (l *Logger) Start() error {
	l.initMu.Lock()
	defer l.initMu.Unlock()

	if !l.state.IsInitialized.Load() {
		return fmtErrorf("logger not initialized, call ApplyConfig first")
	}
	l.start(l.getConfig())
	return nil
}

// start assumes initMu is held
func (l *Logger) start(cfg *Config) {
	if !l.state.Started.CompareAndSwap(false, true) {
		return
	}
	l.pipe.Load().d.Start()
	l.startHeartbeat(cfg)
}

// Stop halts record processing after delivering what is queued. Can be
// restarted with Start(). Returns nil if already stopped.
// If no timeout is provided, uses a default of 2x flush interval.
func (l *Logger) Stop(timeout ...time.Duration) error {
	l.initMu.Lock()
	defer l.initMu.Unlock()

	return l.stop(l.effectiveTimeout(timeout))
}

// stop assumes initMu is held. The dispatcher keeps draining in the
// background when timeout elapses first.
func (l *Logger) stop(timeout time.Duration) error {
	if !l.state.Started.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	l.stopHeartbeat()

	d := l.pipe.Load().d
	done := make(chan struct{})
	go func() {
		d.Stop(true)
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmtErrorf("dispatcher did not stop within timeout (%v)", timeout)
	}
}

// Shutdown gracefully closes the logger: no record is accepted afterwards,
// queued records are delivered and flushed, and configuration sinks are closed.
// If no timeout is provided, uses a default of 2x flush interval.
func (l *Logger) Shutdown(timeout ...time.Duration) error {
	if !l.state.ShutdownCalled.CompareAndSwap(false, true) {
		return nil
	}

	l.state.LoggerDisabled.Store(true)

	if !l.state.IsInitialized.Load() {
		l.state.ShutdownCalled.Store(false)
		l.state.LoggerDisabled.Store(false)
		return nil
	}

	l.initMu.Lock()
	defer l.initMu.Unlock()

	effectiveTimeout := l.effectiveTimeout(timeout)
	p := l.pipe.Load()
	p.ch.Shutdown()

	l.state.Started.Store(false)
	l.stopHeartbeat()

	// The file closes only after the drain, which may outlive the timeout
	file := l.file
	done := make(chan error, 1)
	go func() {
		p.d.Stop(true)
		var err error
		if file != nil {
			if closeErr := l.closeSink(file); closeErr != nil {
				err = fmtErrorf("failed to close log file during shutdown: %w", closeErr)
			}
		}
		done <- err
	}()

	var finalErr error
	select {
	case err := <-done:
		finalErr = err
	case <-time.After(effectiveTimeout):
		finalErr = fmtErrorf("dispatcher did not stop within timeout (%v)", effectiveTimeout)
	}

	l.state.IsInitialized.Store(false)
	return finalErr
}

func (l *Logger) effectiveTimeout(timeout []time.Duration) time.Duration {
	if len(timeout) > 0 && timeout[0] > 0 {
		return timeout[0]
	}
	return l.stopTimeout(l.getConfig())
}

func (l *Logger) stopTimeout(cfg *Config) time.Duration {
	return 2 * cfg.flushInterval()
}

// Flush waits until queued records are delivered, then flushes every sink
func (l *Logger) Flush(timeout time.Duration) error {
	if !l.state.IsInitialized.Load() || l.state.ShutdownCalled.Load() {
		return fmtErrorf("logger not initialized or already shut down")
	}
	if !l.state.Started.Load() {
		return fmtErrorf("logger not started")
	}

	d := l.pipe.Load().d
	if !d.WaitForCompletion(timeout) {
		return fmtErrorf("timeout waiting for queued records (%v)", timeout)
	}
	return d.Flush()
}

// AddSink registers a sink. Sinks added by the caller are never closed by the logger.
func (l *Logger) AddSink(s core.Sink) {
	l.initMu.Lock()
	defer l.initMu.Unlock()
	l.pipe.Load().d.AddSink(s)
}

// RemoveSink unregisters a sink, reporting whether it was registered
func (l *Logger) RemoveSink(s core.Sink) bool {
	l.initMu.Lock()
	defer l.initMu.Unlock()
	return l.pipe.Load().d.RemoveSink(s)
}

// ClearSinks unregisters every sink. Console and file outputs are closed and
// come back on the next ApplyConfig.
func (l *Logger) ClearSinks() {
	l.initMu.Lock()
	defer l.initMu.Unlock()

	l.pipe.Load().d.ClearSinks()
	if l.file != nil {
		l.closeSink(l.file)
	}
	l.console, l.file = nil, nil
	l.diskFile.Store(nil)
}

// Sinks returns the registered sinks, configuration sinks included
func (l *Logger) Sinks() []core.Sink {
	return l.pipe.Load().d.Sinks()
}

// SetLevel sets the logger threshold and the level of every registered sink
func (l *Logger) SetLevel(level core.Level) {
	l.initMu.Lock()
	defer l.initMu.Unlock()

	l.level.Store(int32(level))
	for _, s := range l.pipe.Load().d.Sinks() {
		s.SetLevel(level)
	}

	cfg := l.getConfig().Clone()
	cfg.Level = strings.ToLower(level.String())
	l.currentConfig.Store(cfg)
}

// Level returns the logger threshold
func (l *Logger) Level() core.Level {
	return core.Level(l.level.Load())
}

// ShouldLog reports whether a record at level passes the logger threshold
func (l *Logger) ShouldLog(level core.Level) bool {
	threshold := l.Level()
	return threshold != LevelOff && level >= threshold
}

// handleSinkError reports sink failures raised on dispatcher workers
func (l *Logger) handleSinkError(_ core.Sink, err error) {
	l.internalLog("sink error: %v\n", err)
}
