package compat

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/lixenwraith/logpipe"
	"github.com/lixenwraith/logpipe/core"
)

var _ io.Writer = (*FiberAdapter)(nil)

// FiberAdapter wraps a logpipe.Logger to satisfy Fiber's AllLogger set
// (CommonLogger, FormatLogger and WithLogger) without importing Fiber
type FiberAdapter struct {
	logger       *logpipe.Logger
	fatalHandler func(msg string) // Customizable fatal behavior
	panicHandler func(msg string) // Customizable panic behavior
}

// NewFiberAdapter creates a new Fiber-compatible logger adapter
func NewFiberAdapter(logger *logpipe.Logger, opts ...FiberOption) *FiberAdapter {
	adapter := &FiberAdapter{
		logger: logger,
		fatalHandler: func(msg string) {
			os.Exit(1) // Default behavior
		},
		panicHandler: func(msg string) {
			panic(msg) // Default behavior
		},
	}

	for _, opt := range opts {
		opt(adapter)
	}

	return adapter
}

// FiberOption allows customizing adapter behavior
type FiberOption func(*FiberAdapter)

// WithFiberFatalHandler sets a custom fatal handler
func WithFiberFatalHandler(handler func(string)) FiberOption {
	return func(a *FiberAdapter) {
		a.fatalHandler = handler
	}
}

// WithFiberPanicHandler sets a custom panic handler
func WithFiberPanicHandler(handler func(string)) FiberOption {
	return func(a *FiberAdapter) {
		a.panicHandler = handler
	}
}

// emit logs msg for the caller two frames up and returns it
func (a *FiberAdapter) emit(level core.Level, msg string, keysAndValues []any) string {
	fields := make([]any, 0, len(keysAndValues)+2)
	fields = append(fields, "source", "fiber")
	fields = append(fields, keysAndValues...)
	a.logger.LogDepth(level, 2, msg, fields...)
	return msg
}

func (a *FiberAdapter) raiseFatal(msg string) {
	// Ensure log is flushed before exit
	_ = a.logger.Flush(100 * time.Millisecond)
	if a.fatalHandler != nil {
		a.fatalHandler(msg)
	}
}

func (a *FiberAdapter) raisePanic(msg string) {
	_ = a.logger.Flush(100 * time.Millisecond)
	if a.panicHandler != nil {
		a.panicHandler(msg)
	}
}

// --- CommonLogger ---

func (a *FiberAdapter) Trace(v ...any) { a.emit(core.LevelTrace, fmt.Sprint(v...), nil) }
func (a *FiberAdapter) Debug(v ...any) { a.emit(core.LevelDebug, fmt.Sprint(v...), nil) }
func (a *FiberAdapter) Info(v ...any)  { a.emit(core.LevelInfo, fmt.Sprint(v...), nil) }
func (a *FiberAdapter) Warn(v ...any)  { a.emit(core.LevelWarn, fmt.Sprint(v...), nil) }
func (a *FiberAdapter) Error(v ...any) { a.emit(core.LevelError, fmt.Sprint(v...), nil) }

// Fatal logs at fatal level and triggers the fatal handler
func (a *FiberAdapter) Fatal(v ...any) {
	a.raiseFatal(a.emit(core.LevelFatal, fmt.Sprint(v...), nil))
}

// Panic logs at error level and triggers the panic handler
func (a *FiberAdapter) Panic(v ...any) {
	a.raisePanic(a.emit(core.LevelError, fmt.Sprint(v...), []any{"panic", true}))
}

// Write makes FiberAdapter usable as Fiber's output writer
func (a *FiberAdapter) Write(p []byte) (n int, err error) {
	a.logger.LogDepth(core.LevelInfo, 1, strings.TrimSuffix(string(p), "\n"), "source", "fiber")
	return len(p), nil
}

// --- FormatLogger ---

func (a *FiberAdapter) Tracef(format string, v ...any) {
	a.emit(core.LevelTrace, fmt.Sprintf(format, v...), nil)
}

func (a *FiberAdapter) Debugf(format string, v ...any) {
	a.emit(core.LevelDebug, fmt.Sprintf(format, v...), nil)
}

func (a *FiberAdapter) Infof(format string, v ...any) {
	a.emit(core.LevelInfo, fmt.Sprintf(format, v...), nil)
}

func (a *FiberAdapter) Warnf(format string, v ...any) {
	a.emit(core.LevelWarn, fmt.Sprintf(format, v...), nil)
}

func (a *FiberAdapter) Errorf(format string, v ...any) {
	a.emit(core.LevelError, fmt.Sprintf(format, v...), nil)
}

func (a *FiberAdapter) Fatalf(format string, v ...any) {
	a.raiseFatal(a.emit(core.LevelFatal, fmt.Sprintf(format, v...), nil))
}

func (a *FiberAdapter) Panicf(format string, v ...any) {
	a.raisePanic(a.emit(core.LevelError, fmt.Sprintf(format, v...), []any{"panic", true}))
}

// --- WithLogger ---

func (a *FiberAdapter) Tracew(msg string, keysAndValues ...any) {
	a.emit(core.LevelTrace, msg, keysAndValues)
}

func (a *FiberAdapter) Debugw(msg string, keysAndValues ...any) {
	a.emit(core.LevelDebug, msg, keysAndValues)
}

func (a *FiberAdapter) Infow(msg string, keysAndValues ...any) {
	a.emit(core.LevelInfo, msg, keysAndValues)
}

func (a *FiberAdapter) Warnw(msg string, keysAndValues ...any) {
	a.emit(core.LevelWarn, msg, keysAndValues)
}

func (a *FiberAdapter) Errorw(msg string, keysAndValues ...any) {
	a.emit(core.LevelError, msg, keysAndValues)
}

func (a *FiberAdapter) Fatalw(msg string, keysAndValues ...any) {
	a.raiseFatal(a.emit(core.LevelFatal, msg, keysAndValues))
}

func (a *FiberAdapter) Panicw(msg string, keysAndValues ...any) {
	a.raisePanic(a.emit(core.LevelError, msg, append([]any{"panic", true}, keysAndValues...)))
}
