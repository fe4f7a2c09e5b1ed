// Package zapsink forwards records into a zap core, so a pipeline can feed an
// existing zap setup.
package zapsink

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lixenwraith/logpipe/core"
)

var _ core.Sink = (*Sink)(nil)

// Sink writes each record as a zap entry. Entries are written to the core
// directly, so a FATAL record never terminates the process.
type Sink struct {
	core.LevelFilter
	zc zapcore.Core
}

// New wraps a zap core
func New(zc zapcore.Core) *Sink {
	return &Sink{zc: zc}
}

// NewFromLogger wraps the core of a zap logger
func NewFromLogger(l *zap.Logger) *Sink {
	return New(l.Core())
}

// ZapLevel maps a record level onto a zap level
func ZapLevel(level core.Level) zapcore.Level {
	switch level {
	case core.LevelTrace, core.LevelDebug:
		return zapcore.DebugLevel
	case core.LevelInfo:
		return zapcore.InfoLevel
	case core.LevelWarn:
		return zapcore.WarnLevel
	case core.LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel
	}
}

// Accept writes rec when the core is enabled for its level
func (s *Sink) Accept(rec core.Record) error {
	ent := zapcore.Entry{
		Level:      ZapLevel(rec.Level),
		Time:       rec.Time,
		LoggerName: rec.Logger,
		Message:    rec.Message,
		Stack:      rec.Trace,
	}
	if rec.HasCaller() {
		ent.Caller = zapcore.EntryCaller{Defined: true, File: rec.File, Line: rec.Line, Function: rec.Function}
	}

	ce := s.zc.Check(ent, nil)
	if ce == nil {
		return nil
	}
	// Write on the checked entry runs every core that accepted it
	ce.Write(Fields(rec)...)
	return nil
}

// Fields converts the record's key/value pairs and goroutine id to zap fields
func Fields(rec core.Record) []zap.Field {
	fields := make([]zap.Field, 0, len(rec.Fields)/2+2)
	if rec.Goroutine != 0 {
		fields = append(fields, zap.Uint64("goroutine", rec.Goroutine))
	}
	for i := 0; i < len(rec.Fields); i += 2 {
		if i+1 >= len(rec.Fields) {
			fields = append(fields, zap.Any("_extra", rec.Fields[i]))
			break
		}
		key, ok := rec.Fields[i].(string)
		if !ok {
			key = fmt.Sprint(rec.Fields[i])
		}
		fields = append(fields, zap.Any(key, rec.Fields[i+1]))
	}
	return fields
}

// Flush syncs the core
func (s *Sink) Flush() error {
	return errors.Wrap(s.zc.Sync(), "zapsink: sync failed")
}
