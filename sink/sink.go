// Package sink provides the standard destinations records are delivered to.
//
// Every sink implements core.Sink. Sinks holding an OS resource also implement
// io.Closer; the logger closes the sinks it created itself on shutdown.
package sink

import (
	"github.com/pkg/errors"

	"github.com/lixenwraith/logpipe/core"
	"github.com/lixenwraith/logpipe/formatter"
)

var (
	// ErrClosed is returned by Accept and Flush after Close
	ErrClosed = errors.New("sink: closed")
	// ErrDiskFull is returned by File.Accept while the disk limits are exceeded
	ErrDiskFull = errors.New("sink: disk limits exceeded")
	// ErrLocked is returned when another process holds the file lock
	ErrLocked = errors.New("sink: log file is locked by another process")
)

// compile-time interface checks
var (
	_ core.Sink = (*Writer)(nil)
	_ core.Sink = (*File)(nil)
	_ core.Sink = (*Rotating)(nil)
	_ core.Sink = (*Multi)(nil)
	_ core.Sink = (*Filter)(nil)
	_ core.Sink = (*Memory)(nil)
)

func defaultFormatter(f *formatter.Formatter) *formatter.Formatter {
	if f == nil {
		return formatter.New()
	}
	return f
}
