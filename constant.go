package logpipe

import (
	"time"

	"github.com/lixenwraith/logpipe/core"
)

// Log levels re-exported for callers that only import the root package
const (
	LevelTrace = core.LevelTrace
	LevelDebug = core.LevelDebug
	LevelInfo  = core.LevelInfo
	LevelWarn  = core.LevelWarn
	LevelError = core.LevelError
	LevelFatal = core.LevelFatal
	LevelOff   = core.LevelOff
)

// Timers
const (
	// Minimum wait time used throughout the package
	minWaitTime = 10 * time.Millisecond
	// Longest a worker sleeps without checking the flush clock or the channel state
	maxIdleWait = time.Second
)

// Names of the records the logger generates itself
const (
	heartbeatLoggerName = "heartbeat"
	dropReportMessage   = "Logs were dropped"
)
