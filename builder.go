package logpipe

import "github.com/lixenwraith/logpipe/core"

// Builder provides a fluent API for building logger configurations.
// It wraps a Config instance and provides chainable methods for setting values.
type Builder struct {
	cfg   *Config
	sinks []core.Sink
	err   error // Accumulate errors for deferred handling
}

// NewBuilder creates a new configuration builder with default values.
func NewBuilder() *Builder {
	return &Builder{
		cfg: DefaultConfig(),
	}
}

// Build creates a new Logger instance with the specified configuration and sinks.
// The logger is configured but not started.
func (b *Builder) Build() (*Logger, error) {
	if b.err != nil {
		return nil, b.err
	}

	logger := NewLogger()

	// ApplyConfig handles all initialization and validation
	if err := logger.ApplyConfig(b.cfg); err != nil {
		return nil, err
	}

	for _, s := range b.sinks {
		logger.AddSink(s)
	}

	return logger, nil
}

// Config returns a copy of the configuration built so far
func (b *Builder) Config() *Config {
	return b.cfg.Clone()
}

// Level sets the log level.
func (b *Builder) Level(level core.Level) *Builder {
	if !level.Valid() {
		if b.err == nil {
			b.err = fmtErrorf("invalid level: %d", level)
		}
		return b
	}
	b.cfg.Level = level.String()
	return b
}

// LevelString sets the log level from a string.
func (b *Builder) LevelString(level string) *Builder {
	if b.err != nil {
		return b
	}
	if _, err := ParseLevel(level); err != nil {
		b.err = err
		return b
	}
	b.cfg.Level = level
	return b
}

// Name sets the logger name, also the default file name.
func (b *Builder) Name(name string) *Builder {
	b.cfg.Name = name
	return b
}

// QueueSize sets the channel capacity, 0 for unbounded.
func (b *Builder) QueueSize(size int64) *Builder {
	b.cfg.QueueSize = size
	return b
}

// BatchSize sets the maximum records a worker takes at once.
func (b *Builder) BatchSize(size int64) *Builder {
	b.cfg.BatchSize = size
	return b
}

// FlushIntervalMs sets the auto-flush interval.
func (b *Builder) FlushIntervalMs(interval int64) *Builder {
	b.cfg.FlushIntervalMs = interval
	return b
}

// WorkerThreads sets the number of dispatcher workers.
func (b *Builder) WorkerThreads(n int64) *Builder {
	b.cfg.WorkerThreads = n
	return b
}

// AutoFlush enables periodic sink flushing.
func (b *Builder) AutoFlush(enable bool) *Builder {
	b.cfg.AutoFlush = enable
	return b
}

// MemoryPoolSize sets the smallest message buffer class.
func (b *Builder) MemoryPoolSize(size int64) *Builder {
	b.cfg.MemoryPoolSize = size
	return b
}

// MaxMemoryPoolBlocks sets the block ceiling of each buffer class.
func (b *Builder) MaxMemoryPoolBlocks(n int64) *Builder {
	b.cfg.MaxMemoryPoolBlocks = n
	return b
}

// IncludeCaller enables file and line capture.
func (b *Builder) IncludeCaller(enable bool) *Builder {
	b.cfg.IncludeCaller = enable
	return b
}

// TraceDepth sets the default call trace depth.
func (b *Builder) TraceDepth(depth int64) *Builder {
	b.cfg.TraceDepth = depth
	return b
}

// Format sets the output format.
func (b *Builder) Format(format string) *Builder {
	b.cfg.Format = format
	return b
}

// EnableConsole enables console output.
func (b *Builder) EnableConsole(enable bool) *Builder {
	b.cfg.EnableConsole = enable
	return b
}

// ConsoleTarget selects stdout, stderr or split console output.
func (b *Builder) ConsoleTarget(target string) *Builder {
	b.cfg.ConsoleTarget = target
	return b
}

// EnableFile enables file output.
func (b *Builder) EnableFile(enable bool) *Builder {
	b.cfg.EnableFile = enable
	return b
}

// Directory sets the log directory.
func (b *Builder) Directory(dir string) *Builder {
	b.cfg.Directory = dir
	return b
}

// Extension sets the log file extension.
func (b *Builder) Extension(ext string) *Builder {
	b.cfg.Extension = ext
	return b
}

// FileRotation selects "rename" or "lumberjack" file output.
func (b *Builder) FileRotation(mode string) *Builder {
	b.cfg.FileRotation = mode
	return b
}

// MaxSizeMB sets the maximum log file size in MB.
func (b *Builder) MaxSizeMB(size int64) *Builder {
	b.cfg.MaxSizeMB = size
	return b
}

// Compress enables gzip compression of rotated files.
func (b *Builder) Compress(enable bool) *Builder {
	b.cfg.Compress = enable
	return b
}

// HeartbeatLevel sets the heartbeat monitoring level.
func (b *Builder) HeartbeatLevel(level int64) *Builder {
	b.cfg.HeartbeatLevel = level
	return b
}

// HeartbeatIntervalS sets the heartbeat interval in seconds.
func (b *Builder) HeartbeatIntervalS(interval int64) *Builder {
	b.cfg.HeartbeatIntervalS = interval
	return b
}

// Override applies key=value strings to the configuration built so far.
func (b *Builder) Override(overrides ...string) *Builder {
	if b.err != nil {
		return b
	}
	b.err = b.cfg.Override(overrides...)
	return b
}

// Sink adds a sink registered on the built logger.
func (b *Builder) Sink(s core.Sink) *Builder {
	if s != nil {
		b.sinks = append(b.sinks, s)
	}
	return b
}

// Example usage:
// logger, err := logpipe.NewBuilder().
//
//	Directory("/var/log/app").
//	LevelString("debug").
//	Format("json").
//	QueueSize(4096).
//	EnableFile(true).
//	Build()
//
// if err == nil {
//
//	 logger.Start()
//	 defer logger.Shutdown()
//	 logger.Info("Logger initialized successfully")
//
// }
