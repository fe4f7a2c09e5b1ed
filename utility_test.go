package logpipe

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/logpipe/core"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected core.Level
		wantErr  bool
	}{
		{"trace", LevelTrace, false},
		{"DEBUG", LevelDebug, false},
		{" info ", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"fatal", LevelFatal, false},
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

func TestParseKeyValue(t *testing.T) {
	tests := []struct {
		input   string
		key     string
		value   string
		wantErr string
	}{
		{"key=value", "key", "value", ""},
		{" key = value ", "key", "value", ""},
		{"key=a=b", "key", "a=b", ""},
		{"key=", "key", "", ""},
		{"novalue", "", "", "invalid format"},
		{"=value", "", "", "key cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			key, value, err := parseKeyValue(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestFmtErrorf(t *testing.T) {
	err := fmtErrorf("test error: %s", "details")
	assert.Equal(t, "log: test error: details", err.Error())

	err = fmtErrorf("log: already prefixed")
	assert.Equal(t, "log: already prefixed", err.Error())

	base := errors.New("base")
	assert.ErrorIs(t, fmtErrorf("wrapped: %w", base), base)
}

func TestCombineErrors(t *testing.T) {
	a, b := errors.New("a"), errors.New("b")

	assert.NoError(t, combineErrors(nil, nil))
	assert.Equal(t, a, combineErrors(a, nil))
	assert.Equal(t, b, combineErrors(nil, b))

	both := combineErrors(a, b)
	assert.ErrorIs(t, both, a)
	assert.ErrorIs(t, both, b)
}

func TestCombineConfigErrors(t *testing.T) {
	single := fmtErrorf("only one")
	assert.Equal(t, single, combineConfigErrors([]error{single}))

	err := combineConfigErrors([]error{fmtErrorf("first"), errors.New("second")})
	assert.Equal(t, "log: multiple configuration errors:\n  1. first\n  2. second", err.Error())
}

func TestGetTrace(t *testing.T) {
	assert.Empty(t, getTrace(0, 0))
	assert.Empty(t, getTrace(maxTraceDepth+1, 0))

	assert.Equal(t, "TestGetTrace", getTrace(1, 0))
	assert.Equal(t, "tRunner -> TestGetTrace", getTrace(2, 0))

	func() {
		assert.Equal(t, "TestGetTrace -> (anonymous in logpipe.TestGetTrace)", getTrace(2, 0))
	}()
}

func TestShortFuncName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"github.com/lixenwraith/logpipe.(*Logger).Info", "Info"},
		{"main.main", "main"},
		{"github.com/lixenwraith/logpipe.TestX.func1", "(anonymous in logpipe.TestX)"},
		{"github.com/lixenwraith/logpipe.function", "function"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, shortFuncName(tt.input))
	}
}

func TestCallerInfo(t *testing.T) {
	file, line, fn := callerInfo(0)
	assert.Equal(t, "utility_test.go", file)
	assert.Positive(t, line)
	assert.Equal(t, "TestCallerInfo", fn)
}

type stringerValue struct{}

func (stringerValue) String() string { return "stringer" }

func TestAppendArgs(t *testing.T) {
	args := []any{
		"text", []byte("bytes"), 42, int64(-7), uint64(9), 1.5, true,
		errors.New("failure"), stringerValue{}, nil, struct{ A int }{1},
	}
	got := string(appendArgs(nil, args))
	assert.Equal(t, "text bytes 42 -7 9 1.5 true failure stringer <nil> {1}", got)

	assert.Equal(t, fmt.Sprint("a"), string(appendArgs(nil, []any{"a"})))
	assert.Empty(t, appendArgs(nil, nil))
}
