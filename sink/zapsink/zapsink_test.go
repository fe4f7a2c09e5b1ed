package zapsink

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lixenwraith/logpipe/core"
)

func TestAcceptForwardsEntry(t *testing.T) {
	zc, logs := observer.New(zapcore.DebugLevel)
	s := New(zc)

	now := time.Now()
	rec := core.Record{
		Time:      now,
		Level:     core.LevelWarn,
		Message:   "cache miss",
		Logger:    "cache",
		Fields:    []any{"key", "user:1", "attempt", 2, "err", errors.New("timeout")},
		Goroutine: 9,
		File:      "cache.go",
		Line:      17,
		Function:  "lookup",
	}
	require.NoError(t, s.Accept(rec))
	require.NoError(t, s.Flush())

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "cache miss", entry.Message)
	assert.Equal(t, "cache", entry.LoggerName)
	assert.True(t, entry.Time.Equal(now))
	assert.Equal(t, "cache.go", entry.Caller.File)
	assert.Equal(t, 17, entry.Caller.Line)

	ctx := entry.ContextMap()
	assert.Equal(t, "user:1", ctx["key"])
	assert.Equal(t, int64(2), ctx["attempt"])
	assert.Equal(t, "timeout", ctx["err"])
	assert.Equal(t, uint64(9), ctx["goroutine"])
}

func TestCoreLevelRespected(t *testing.T) {
	zc, logs := observer.New(zapcore.WarnLevel)
	s := New(zc)

	require.NoError(t, s.Accept(core.Record{Level: core.LevelInfo, Message: "skipped"}))
	require.NoError(t, s.Accept(core.Record{Level: core.LevelError, Message: "kept"}))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
}

func TestFatalDoesNotExit(t *testing.T) {
	zc, logs := observer.New(zapcore.DebugLevel)
	s := NewFromLogger(zap.New(zc))

	require.NoError(t, s.Accept(core.Record{Level: core.LevelFatal, Message: "fatal but alive"}))
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.FatalLevel).Len())
}

func TestZapLevel(t *testing.T) {
	tests := []struct {
		level    core.Level
		expected zapcore.Level
	}{
		{core.LevelTrace, zapcore.DebugLevel},
		{core.LevelDebug, zapcore.DebugLevel},
		{core.LevelInfo, zapcore.InfoLevel},
		{core.LevelWarn, zapcore.WarnLevel},
		{core.LevelError, zapcore.ErrorLevel},
		{core.LevelFatal, zapcore.FatalLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, ZapLevel(tt.level))
		})
	}
}

func TestFieldsOddLength(t *testing.T) {
	fields := Fields(core.Record{Fields: []any{1, "one", "dangling"}})
	require.Len(t, fields, 2)
	assert.Equal(t, "1", fields[0].Key)
	assert.Equal(t, "_extra", fields[1].Key)
}
