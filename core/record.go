package core

import (
	"bytes"
	"runtime"
	"strconv"
	"time"
)

// Record is a single log entry. A record is passed by value and no stage of the
// pipeline modifies it after construction, including the Fields slice.
type Record struct {
	Time      time.Time
	Level     Level
	Message   string
	Logger    string
	Fields    []any // alternating key/value pairs
	Goroutine uint64
	File      string
	Line      int
	Function  string
	Trace     string
	Sequence  uint64
}

// HasCaller reports whether source location was captured
func (r *Record) HasCaller() bool {
	return r.File != ""
}

// Field returns the value paired with key in Fields
func (r *Record) Field(key string) (any, bool) {
	for i := 0; i+1 < len(r.Fields); i += 2 {
		if k, ok := r.Fields[i].(string); ok && k == key {
			return r.Fields[i+1], true
		}
	}
	return nil, false
}

var goroutinePrefix = []byte("goroutine ")

// GoroutineID returns the id of the calling goroutine, 0 if it cannot be determined
func GoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
