// Package core holds the types shared by every stage of the pipeline:
// levels, the immutable record and the sink contract.
package core

import (
	"fmt"
	"strings"
)

// Level is the ordered severity of a record
type Level int32

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
	LevelOff
)

// ANSI color codes used by console output
const (
	colorReset   = "\033[0m"
	colorWhite   = "\033[37m"
	colorCyan    = "\033[36m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorRed     = "\033[31m"
	colorMagenta = "\033[35m"
)

// String returns the upper-case level name
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	case LevelOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// Short returns the single letter form of the level
func (l Level) Short() string {
	switch l {
	case LevelTrace:
		return "T"
	case LevelDebug:
		return "D"
	case LevelInfo:
		return "I"
	case LevelWarn:
		return "W"
	case LevelError:
		return "E"
	case LevelFatal:
		return "F"
	case LevelOff:
		return "O"
	default:
		return "?"
	}
}

// Color returns the ANSI escape sequence for the level
func (l Level) Color() string {
	switch l {
	case LevelTrace:
		return colorWhite
	case LevelDebug:
		return colorCyan
	case LevelInfo:
		return colorGreen
	case LevelWarn:
		return colorYellow
	case LevelError:
		return colorRed
	case LevelFatal:
		return colorMagenta
	default:
		return colorReset
	}
}

// ColorReset returns the sequence that ends a colored span
func ColorReset() string {
	return colorReset
}

// Valid reports whether l is one of the defined levels
func (l Level) Valid() bool {
	return l >= LevelTrace && l <= LevelOff
}

// ParseLevel converts a level name or its short form to a Level, case-insensitive
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace", "t":
		return LevelTrace, nil
	case "debug", "d":
		return LevelDebug, nil
	case "info", "i":
		return LevelInfo, nil
	case "warn", "warning", "w":
		return LevelWarn, nil
	case "error", "e":
		return LevelError, nil
	case "fatal", "f":
		return LevelFatal, nil
	case "off", "o":
		return LevelOff, nil
	default:
		return LevelInfo, fmt.Errorf("log: invalid level string: '%s' (use trace, debug, info, warn, error, fatal, off)", s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (l Level) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(l.String())), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
