package sink

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/lixenwraith/logpipe/core"
	"github.com/lixenwraith/logpipe/formatter"
)

// Console targets
const (
	TargetStdout = "stdout"
	TargetStderr = "stderr"
	TargetSplit  = "split" // WARN and above to stderr, the rest to stdout
)

// Writer formats records onto an io.Writer, one write per record
type Writer struct {
	core.LevelFilter

	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer // records at or above splitAt when set
	fmt    *formatter.Formatter
}

// NewWriter creates a sink writing to w. A nil formatter uses the txt default.
func NewWriter(w io.Writer, f *formatter.Formatter) *Writer {
	return &Writer{out: w, fmt: defaultFormatter(f)}
}

// NewConsole creates a writer on stdout, stderr, or both split by level
func NewConsole(target string, f *formatter.Formatter) (*Writer, error) {
	switch target {
	case TargetStdout, "":
		return NewWriter(os.Stdout, f), nil
	case TargetStderr:
		return NewWriter(os.Stderr, f), nil
	case TargetSplit:
		w := NewWriter(os.Stdout, f)
		w.errOut = os.Stderr
		return w, nil
	default:
		return nil, errors.Errorf("sink: invalid console target %q, expected stdout, stderr or split", target)
	}
}

// Accept formats rec and writes it
func (w *Writer) Accept(rec core.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := w.out
	if w.errOut != nil && rec.Level >= core.LevelWarn {
		out = w.errOut
	}
	if _, err := out.Write(w.fmt.Format(rec)); err != nil {
		return errors.Wrap(err, "sink: console write failed")
	}
	return nil
}

// Flush forwards to the underlying writer when it buffers
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, out := range []io.Writer{w.out, w.errOut} {
		if f, ok := out.(interface{ Flush() error }); ok {
			if err := f.Flush(); err != nil {
				return errors.Wrap(err, "sink: writer flush failed")
			}
		}
	}
	return nil
}
