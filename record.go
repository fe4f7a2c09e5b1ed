package logpipe

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lixenwraith/logpipe/core"
)

// callerSkip is the number of frames between log and the user call site:
// log -> Logger.Info -> caller
const callerSkip = 2

// Submit enqueues rec without blocking. False means the record was dropped,
// because the channel is full, shut down, or the logger is disabled.
func (l *Logger) Submit(rec core.Record) bool {
	if rec.Sequence == 0 {
		rec.Sequence = l.seq.Add(1)
	}
	return l.sendRecord(rec, 0)
}

// sendRecord pushes rec. carried is the drop count a drop report stands for,
// 0 for every other record.
func (l *Logger) sendRecord(rec core.Record, carried uint64) bool {
	if l.state.ShutdownCalled.Load() || l.state.LoggerDisabled.Load() || !l.state.IsInitialized.Load() {
		l.handleFailedSend(carried)
		return false
	}

	if !l.pipe.Load().ch.TryPush(rec) {
		l.handleFailedSend(carried)
		return false
	}
	l.state.Submitted.Add(1)

	// Success on a regular record, report drops accumulated so far
	if carried == 0 && l.getConfig().ReportDrops {
		if dropped := l.state.DroppedLogs.Swap(0); dropped > 0 {
			// No success check is required, count is restored if it fails
			l.sendRecord(l.dropReport(dropped), dropped)
		}
	}
	return true
}

// handleFailedSend restores a drop report's count or counts a new drop
func (l *Logger) handleFailedSend(carried uint64) {
	if carried > 0 {
		l.state.DroppedLogs.Add(carried)
		return
	}
	l.state.DroppedLogs.Add(1)
	l.state.IntervalDrops.Add(1)
	l.state.TotalDropped.Add(1)
}

func (l *Logger) dropReport(dropped uint64) core.Record {
	return core.Record{
		Time:     time.Now(),
		Level:    LevelError,
		Message:  dropReportMessage,
		Logger:   l.getConfig().Name,
		Fields:   []any{"dropped_count", dropped},
		Sequence: l.seq.Add(1),
	}
}

// log handles the core logging logic. skip counts extra frames between the
// public entry point and the user call site.
func (l *Logger) log(level core.Level, depth int64, skip int, format string, args []any, fields []any) {
	if !l.state.IsInitialized.Load() || !l.ShouldLog(level) {
		return
	}

	cfg := l.getConfig()
	rec := core.Record{
		Time:    time.Now(),
		Level:   level,
		Message: l.buildMessage(format, args),
		Logger:  cfg.Name,
		Fields:  fields,
	}

	if cfg.CaptureGoroutine {
		rec.Goroutine = core.GoroutineID()
	}
	if cfg.IncludeCaller {
		rec.File, rec.Line, rec.Function = callerInfo(callerSkip + skip)
	}
	if depth > 0 {
		rec.Trace = getTrace(depth, callerSkip+skip)
	}
	rec.Sequence = l.seq.Add(1)

	l.sendRecord(rec, 0)
}

// buildMessage renders the message text in a pooled block
func (l *Logger) buildMessage(format string, args []any) string {
	if format == "" && len(args) == 1 {
		if s, ok := args[0].(string); ok {
			return s
		}
	}

	mp := l.bufPool.Load()
	block := mp.Get(min(len(format)+16*len(args), mp.MaxBlockSize()))
	var b []byte
	if format != "" {
		b = fmt.Appendf(block[:0], format, args...)
	} else {
		b = appendArgs(block[:0], args)
	}
	msg := string(b)
	_ = mp.Put(block)
	return msg
}

// copyFields detaches the caller's key/value slice from the record
func copyFields(keysAndValues []any) []any {
	if len(keysAndValues) == 0 {
		return nil
	}
	return append([]any(nil), keysAndValues...)
}

// internalLog handles writing internal logger diagnostics to stderr, if enabled.
func (l *Logger) internalLog(format string, args ...any) {
	// Check if internal error reporting is enabled
	cfg := l.getConfig()
	if !cfg.InternalErrorsToStderr {
		return
	}

	// Ensure consistent "log: " prefix
	if !strings.HasPrefix(format, "log: ") {
		format = "log: " + format
	}

	fmt.Fprintf(os.Stderr, format, args...)
}

// Trace logs a message at trace level
func (l *Logger) Trace(args ...any) {
	l.log(LevelTrace, l.getConfig().TraceDepth, 0, "", args, nil)
}

// Debug logs a message at debug level
func (l *Logger) Debug(args ...any) {
	l.log(LevelDebug, l.getConfig().TraceDepth, 0, "", args, nil)
}

// Info logs a message at info level
func (l *Logger) Info(args ...any) {
	l.log(LevelInfo, l.getConfig().TraceDepth, 0, "", args, nil)
}

// Warn logs a message at warning level
func (l *Logger) Warn(args ...any) {
	l.log(LevelWarn, l.getConfig().TraceDepth, 0, "", args, nil)
}

// Error logs a message at error level
func (l *Logger) Error(args ...any) {
	l.log(LevelError, l.getConfig().TraceDepth, 0, "", args, nil)
}

// Fatal logs a message at fatal level. It does not exit the process.
func (l *Logger) Fatal(args ...any) {
	l.log(LevelFatal, l.getConfig().TraceDepth, 0, "", args, nil)
}

// Tracef logs a formatted message at trace level
func (l *Logger) Tracef(format string, args ...any) {
	l.log(LevelTrace, l.getConfig().TraceDepth, 0, format, args, nil)
}

// Debugf logs a formatted message at debug level
func (l *Logger) Debugf(format string, args ...any) {
	l.log(LevelDebug, l.getConfig().TraceDepth, 0, format, args, nil)
}

// Infof logs a formatted message at info level
func (l *Logger) Infof(format string, args ...any) {
	l.log(LevelInfo, l.getConfig().TraceDepth, 0, format, args, nil)
}

// Warnf logs a formatted message at warning level
func (l *Logger) Warnf(format string, args ...any) {
	l.log(LevelWarn, l.getConfig().TraceDepth, 0, format, args, nil)
}

// Errorf logs a formatted message at error level
func (l *Logger) Errorf(format string, args ...any) {
	l.log(LevelError, l.getConfig().TraceDepth, 0, format, args, nil)
}

// Fatalf logs a formatted message at fatal level. It does not exit the process.
func (l *Logger) Fatalf(format string, args ...any) {
	l.log(LevelFatal, l.getConfig().TraceDepth, 0, format, args, nil)
}

// Tracew logs msg with alternating key/value pairs at trace level
func (l *Logger) Tracew(msg string, keysAndValues ...any) {
	l.log(LevelTrace, l.getConfig().TraceDepth, 0, "", []any{msg}, copyFields(keysAndValues))
}

// Debugw logs msg with alternating key/value pairs at debug level
func (l *Logger) Debugw(msg string, keysAndValues ...any) {
	l.log(LevelDebug, l.getConfig().TraceDepth, 0, "", []any{msg}, copyFields(keysAndValues))
}

// Infow logs msg with alternating key/value pairs at info level
func (l *Logger) Infow(msg string, keysAndValues ...any) {
	l.log(LevelInfo, l.getConfig().TraceDepth, 0, "", []any{msg}, copyFields(keysAndValues))
}

// Warnw logs msg with alternating key/value pairs at warning level
func (l *Logger) Warnw(msg string, keysAndValues ...any) {
	l.log(LevelWarn, l.getConfig().TraceDepth, 0, "", []any{msg}, copyFields(keysAndValues))
}

// Errorw logs msg with alternating key/value pairs at error level
func (l *Logger) Errorw(msg string, keysAndValues ...any) {
	l.log(LevelError, l.getConfig().TraceDepth, 0, "", []any{msg}, copyFields(keysAndValues))
}

// Fatalw logs msg with alternating key/value pairs at fatal level
func (l *Logger) Fatalw(msg string, keysAndValues ...any) {
	l.log(LevelFatal, l.getConfig().TraceDepth, 0, "", []any{msg}, copyFields(keysAndValues))
}

// DebugTrace logs a debug message with function call trace
func (l *Logger) DebugTrace(depth int, args ...any) {
	l.log(LevelDebug, int64(depth), 0, "", args, nil)
}

// InfoTrace logs an info message with function call trace
func (l *Logger) InfoTrace(depth int, args ...any) {
	l.log(LevelInfo, int64(depth), 0, "", args, nil)
}

// WarnTrace logs a warning message with function call trace
func (l *Logger) WarnTrace(depth int, args ...any) {
	l.log(LevelWarn, int64(depth), 0, "", args, nil)
}

// ErrorTrace logs an error message with function call trace
func (l *Logger) ErrorTrace(depth int, args ...any) {
	l.log(LevelError, int64(depth), 0, "", args, nil)
}

// Log logs a message at the given level
func (l *Logger) Log(level core.Level, args ...any) {
	l.log(level, l.getConfig().TraceDepth, 0, "", args, nil)
}

// LogTrace logs a message at the given level with a call trace of depth frames
func (l *Logger) LogTrace(level core.Level, depth int, args ...any) {
	l.log(level, int64(depth), 0, "", args, nil)
}

// LogDepth logs msg with key/value pairs, attributing the call site skip
// frames above the caller. Adapters wrapping the logger pass 1.
func (l *Logger) LogDepth(level core.Level, skip int, msg string, keysAndValues ...any) {
	l.log(level, l.getConfig().TraceDepth, skip, "", []any{msg}, copyFields(keysAndValues))
}
