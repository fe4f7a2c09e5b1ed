package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelStrings(t *testing.T) {
	tests := []struct {
		level Level
		long  string
		short string
	}{
		{LevelTrace, "TRACE", "T"},
		{LevelDebug, "DEBUG", "D"},
		{LevelInfo, "INFO", "I"},
		{LevelWarn, "WARN", "W"},
		{LevelError, "ERROR", "E"},
		{LevelFatal, "FATAL", "F"},
		{LevelOff, "OFF", "O"},
		{Level(42), "UNKNOWN", "?"},
	}

	for _, tt := range tests {
		t.Run(tt.long, func(t *testing.T) {
			assert.Equal(t, tt.long, tt.level.String())
			assert.Equal(t, tt.short, tt.level.Short())
		})
	}

	assert.Equal(t, ColorReset(), Level(42).Color())
	assert.NotEqual(t, LevelError.Color(), LevelInfo.Color())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		wantErr  bool
	}{
		{"trace", LevelTrace, false},
		{"DEBUG", LevelDebug, false},
		{" Info ", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"W", LevelWarn, false},
		{"error", LevelError, false},
		{"fatal", LevelFatal, false},
		{"off", LevelOff, false},
		{"verbose", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLevelText(t *testing.T) {
	text, err := LevelWarn.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "warn", string(text))

	var l Level
	require.NoError(t, l.UnmarshalText([]byte("ERROR")))
	assert.Equal(t, LevelError, l)
	assert.Error(t, l.UnmarshalText([]byte("nope")))
}

func TestLevelFilter(t *testing.T) {
	var f LevelFilter
	assert.True(t, f.ShouldLog(LevelTrace), "zero value passes everything")

	f.SetLevel(LevelWarn)
	assert.Equal(t, LevelWarn, f.Level())
	assert.False(t, f.ShouldLog(LevelInfo))
	assert.True(t, f.ShouldLog(LevelWarn))
	assert.True(t, f.ShouldLog(LevelFatal))

	f.SetLevel(LevelOff)
	assert.False(t, f.ShouldLog(LevelFatal))
}

func TestRecordField(t *testing.T) {
	rec := Record{Fields: []any{"user", "alice", 7, "ignored", "count", 3, "dangling"}}

	v, ok := rec.Field("user")
	assert.True(t, ok)
	assert.Equal(t, "alice", v)

	v, ok = rec.Field("count")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = rec.Field("dangling")
	assert.False(t, ok)
	assert.False(t, rec.HasCaller())
}

func TestGoroutineID(t *testing.T) {
	main := GoroutineID()
	assert.NotZero(t, main)
	assert.Equal(t, main, GoroutineID())

	var other uint64
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		other = GoroutineID()
	}()
	wg.Wait()

	assert.NotZero(t, other)
	assert.NotEqual(t, main, other)
}
