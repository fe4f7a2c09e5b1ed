package logpipe

import "time"

// heartbeatRun is one generation of the heartbeat ticker goroutine
type heartbeatRun struct {
	stop chan struct{}
	done chan struct{}
}

// startHeartbeat starts the heartbeat ticker if enabled, assuming initMu is held
func (l *Logger) startHeartbeat(cfg *Config) {
	if cfg.HeartbeatLevel <= 0 || l.heartbeat != nil {
		return
	}

	intervalS := cfg.HeartbeatIntervalS
	// Make sure interval is positive
	if intervalS <= 0 {
		intervalS = DefaultConfig().HeartbeatIntervalS
	}

	run := &heartbeatRun{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	l.heartbeat = run

	ticker := time.NewTicker(time.Duration(intervalS) * time.Second)
	go func() {
		defer close(run.done)
		defer ticker.Stop()
		for {
			select {
			case <-run.stop:
				return
			case <-ticker.C:
				l.handleHeartbeat()
			}
		}
	}()
}

// stopHeartbeat stops the ticker and waits for an in-progress tick, assuming initMu is held
func (l *Logger) stopHeartbeat() {
	run := l.heartbeat
	if run == nil {
		return
	}
	close(run.stop)
	<-run.done
	l.heartbeat = nil
}
