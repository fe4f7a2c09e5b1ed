package logpipe

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/multierr"

	"github.com/lixenwraith/logpipe/core"
)

const maxTraceDepth = 10

// getTrace returns the caller chain "outer -> inner" of at most depth frames,
// skipping skip frames above the caller of getTrace
func getTrace(depth int64, skip int) string {
	if depth <= 0 || depth > maxTraceDepth {
		return ""
	}
	pc := make([]uintptr, int(depth)+skip)
	n := runtime.Callers(skip+2, pc) // +2 skips runtime.Callers and getTrace
	if n == 0 {
		return "(unknown)"
	}
	frames := runtime.CallersFrames(pc[:n])
	trace := make([]string, 0, depth)
	for len(trace) < int(depth) {
		frame, more := frames.Next()
		trace = append(trace, shortFuncName(frame.Function))
		if !more {
			break
		}
	}
	if len(trace) == 0 {
		return "(unknown)"
	}
	for i, j := 0, len(trace)-1; i < j; i, j = i+1, j-1 {
		trace[i], trace[j] = trace[j], trace[i]
	}
	return strings.Join(trace, " -> ")
}

// shortFuncName strips the package path and names closures after their parent
func shortFuncName(fn string) string {
	parts := strings.Split(filepath.Base(fn), ".")
	last := parts[len(parts)-1]
	if strings.HasPrefix(last, "func") && len(last) > 4 && isDigits(last[4:]) && len(parts) > 1 {
		return fmt.Sprintf("(anonymous in %s)", strings.Join(parts[:len(parts)-1], "."))
	}
	return last
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// callerInfo returns file, line and function of the frame skip levels above its caller
func callerInfo(skip int) (string, int, string) {
	var pc [4]uintptr
	n := runtime.Callers(skip+2, pc[:]) // +2 skips runtime.Callers and callerInfo
	if n == 0 {
		return "", 0, ""
	}
	// Frames resolve inlined calls, FuncForPC would not
	frame, _ := runtime.CallersFrames(pc[:n]).Next()
	return filepath.Base(frame.File), frame.Line, shortFuncName(frame.Function)
}

// fmtErrorf wrapper
func fmtErrorf(format string, args ...any) error {
	if !strings.HasPrefix(format, "log: ") {
		format = "log: " + format
	}
	return fmt.Errorf(format, args...)
}

// combineErrors helper, nil-safe on both sides
func combineErrors(err1, err2 error) error {
	return multierr.Append(err1, err2)
}

// parseKeyValue splits a "key=value" string.
func parseKeyValue(arg string) (string, string, error) {
	parts := strings.SplitN(strings.TrimSpace(arg), "=", 2)
	if len(parts) != 2 {
		return "", "", fmtErrorf("invalid format in override string '%s', expected key=value", arg)
	}
	key := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])
	if key == "" {
		return "", "", fmtErrorf("key cannot be empty in override string '%s'", arg)
	}
	return key, value, nil
}

// ParseLevel converts a level string to a Level
func ParseLevel(levelStr string) (core.Level, error) {
	return core.ParseLevel(levelStr)
}

// appendArgs renders args space separated, without quoting
func appendArgs(buf []byte, args []any) []byte {
	for i, arg := range args {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = appendValue(buf, arg)
	}
	return buf
}

func appendValue(buf []byte, v any) []byte {
	switch val := v.(type) {
	case string:
		return append(buf, val...)
	case []byte:
		return append(buf, val...)
	case int:
		return strconv.AppendInt(buf, int64(val), 10)
	case int64:
		return strconv.AppendInt(buf, val, 10)
	case uint64:
		return strconv.AppendUint(buf, val, 10)
	case float64:
		return strconv.AppendFloat(buf, val, 'f', -1, 64)
	case bool:
		return strconv.AppendBool(buf, val)
	case error:
		return append(buf, val.Error()...)
	case fmt.Stringer:
		return append(buf, val.String()...)
	case nil:
		return append(buf, "<nil>"...)
	default:
		return fmt.Append(buf, val)
	}
}
