package sink

import (
	"bufio"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lixenwraith/logpipe/core"
	"github.com/lixenwraith/logpipe/formatter"
)

// RotatingOptions configures a Rotating sink
type RotatingOptions struct {
	Filename   string // full path of the active file
	MaxSizeMB  int    // lumberjack defaults to 100 when 0
	MaxBackups int    // 0 keeps all
	MaxAgeDays int    // 0 keeps all
	Compress   bool
	LocalTime  bool
	Formatter  *formatter.Formatter
}

// Rotating writes through a lumberjack logger, which owns size rotation,
// backup pruning and archive compression
type Rotating struct {
	core.LevelFilter

	mu     sync.Mutex
	lj     *lumberjack.Logger
	w      *bufio.Writer
	fmt    *formatter.Formatter
	closed bool
}

// NewRotating creates the sink; the file is opened on first write
func NewRotating(opts RotatingOptions) (*Rotating, error) {
	if opts.Filename == "" {
		return nil, errors.New("sink: rotating file name cannot be empty")
	}
	lj := &lumberjack.Logger{
		Filename:   filepath.Clean(opts.Filename),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
		LocalTime:  opts.LocalTime,
	}
	return &Rotating{
		lj:  lj,
		w:   bufio.NewWriterSize(lj, fileBufferSize),
		fmt: defaultFormatter(opts.Formatter),
	}, nil
}

// Filename returns the path of the active file
func (r *Rotating) Filename() string {
	return r.lj.Filename
}

// Accept formats rec into the write buffer
func (r *Rotating) Accept(rec core.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if _, err := r.w.Write(r.fmt.Format(rec)); err != nil {
		return errors.Wrapf(err, "sink: write to '%s' failed", r.lj.Filename)
	}
	return nil
}

// Flush hands buffered data to lumberjack
func (r *Rotating) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	return errors.Wrapf(r.w.Flush(), "sink: flush of '%s' failed", r.lj.Filename)
}

// Rotate forces a rotation after flushing the buffer
func (r *Rotating) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if err := r.w.Flush(); err != nil {
		return errors.Wrap(err, "sink: flush before rotation failed")
	}
	return errors.Wrap(r.lj.Rotate(), "sink: rotation failed")
}

// Close flushes and closes the active file
func (r *Rotating) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return multierr.Combine(
		errors.Wrap(r.w.Flush(), "sink: final flush failed"),
		errors.Wrap(r.lj.Close(), "sink: close failed"),
	)
}
