package logpipe

import (
	"fmt"
	"runtime"
	"time"

	"github.com/lixenwraith/logpipe/core"
)

// handleHeartbeat processes a heartbeat timer tick
func (l *Logger) handleHeartbeat() {
	c := l.getConfig()
	heartbeatLevel := c.HeartbeatLevel

	if heartbeatLevel >= 1 {
		l.logProcHeartbeat()
	}

	if heartbeatLevel >= 2 {
		l.logPoolHeartbeat()
		l.logDiskHeartbeat()
	}

	if heartbeatLevel >= 3 {
		l.logSysHeartbeat()
	}
}

// logProcHeartbeat logs pipeline statistics
func (l *Logger) logProcHeartbeat() {
	sequence := l.state.HeartbeatSequence.Add(1)
	stats := l.pipe.Load().d.Stats()

	var uptimeHours float64
	if startTime, ok := l.state.LoggerStartTime.Load().(time.Time); ok && !startTime.IsZero() {
		uptimeHours = time.Since(startTime).Hours()
	}

	// NOTE: If the heartbeat itself is dropped, the interval count is lost and
	// only the total keeps it
	droppedInInterval := l.state.IntervalDrops.Swap(0)

	procArgs := []any{
		"type", "proc",
		"sequence", sequence,
		"uptime_hours", fmt.Sprintf("%.2f", uptimeHours),
		"submitted_logs", l.state.Submitted.Load(),
		"processed_logs", stats.Processed,
		"queued_logs", stats.Queued,
		"sink_failures", stats.SinkFailures,
		"total_dropped_logs", l.state.TotalDropped.Load(),
	}

	// Add interval (since last proc heartbeat) drops if > 0
	if droppedInInterval > 0 {
		procArgs = append(procArgs, "dropped_since_last", droppedInInterval)
	}

	l.writeHeartbeatRecord(procArgs)
}

// logPoolHeartbeat logs message buffer pool statistics
func (l *Logger) logPoolHeartbeat() {
	stats := l.bufPool.Load().Stats()

	var hits, misses uint64
	for _, class := range stats.Classes {
		hits += class.Hits
		misses += class.Misses
	}

	l.writeHeartbeatRecord([]any{
		"type", "pool",
		"sequence", l.state.HeartbeatSequence.Load(),
		"classes", len(stats.Classes),
		"total_blocks", stats.Total,
		"in_use_blocks", stats.InUse,
		"hits", hits,
		"misses", misses,
		"fallbacks", stats.Fallbacks,
		"oversize", stats.Oversize,
	})
}

// logDiskHeartbeat logs file statistics when the file output manages rotation itself
func (l *Logger) logDiskHeartbeat() {
	fs := l.diskFile.Load()
	if fs == nil {
		return
	}

	stats := fs.Stats()
	diskArgs := []any{
		"type", "disk",
		"sequence", l.state.HeartbeatSequence.Load(),
		"rotated_files", stats.Rotations,
		"deleted_files", stats.Deletions,
		"current_file_size_mb", fmt.Sprintf("%.2f", float64(stats.Size)/(1024*1024)),
		"disk_status_ok", stats.DiskOK,
	}
	if !stats.Earliest.IsZero() {
		diskArgs = append(diskArgs, "oldest_archive", stats.Earliest.Format(time.RFC3339))
	}

	l.writeHeartbeatRecord(diskArgs)
}

// logSysHeartbeat logs system/runtime statistics heartbeat
func (l *Logger) logSysHeartbeat() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	sysArgs := []any{
		"type", "sys",
		"sequence", l.state.HeartbeatSequence.Load(),
		"alloc_mb", fmt.Sprintf("%.2f", float64(memStats.Alloc)/(1000*1000)),
		"sys_mb", fmt.Sprintf("%.2f", float64(memStats.Sys)/(1000*1000)),
		"num_gc", memStats.NumGC,
		"num_goroutine", runtime.NumGoroutine(),
	}

	l.writeHeartbeatRecord(sysArgs)
}

// writeHeartbeatRecord sends a heartbeat through the pipeline. Heartbeats
// bypass the logger threshold; sinks still apply their own level.
func (l *Logger) writeHeartbeatRecord(args []any) {
	if l.state.LoggerDisabled.Load() || l.state.ShutdownCalled.Load() {
		return
	}

	kind, _ := args[1].(string)
	rec := core.Record{
		Time:     time.Now(),
		Level:    LevelInfo,
		Message:  kind,
		Logger:   heartbeatLoggerName,
		Fields:   args,
		Sequence: l.seq.Add(1),
	}
	l.sendRecord(rec, 0)
}
