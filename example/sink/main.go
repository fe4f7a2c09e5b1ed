// Command sink composes several sinks behind one logger and walks the managed
// outputs through a few reconfigurations.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/lixenwraith/logpipe"
	"github.com/lixenwraith/logpipe/core"
	"github.com/lixenwraith/logpipe/sink"
	"github.com/lixenwraith/logpipe/sink/natsink"
	"github.com/lixenwraith/logpipe/sink/zapsink"
)

const logDirectory = "./temp_logs"

func main() {
	if err := os.RemoveAll(logDirectory); err != nil {
		fmt.Printf("Warning: could not remove old log directory: %v\n", err)
	}

	logger, err := logpipe.NewBuilder().
		Name("sinks").
		LevelString("debug").
		Directory(logDirectory).
		EnableFile(true).
		EnableConsole(true).
		ConsoleTarget(sink.TargetSplit).
		Build()
	if err != nil {
		fmt.Printf("Fatal: %v\n", err)
		os.Exit(1)
	}
	defer shutdown(logger)

	// Errors only, into a lumberjack managed file
	errorsFile, err := sink.NewRotating(sink.RotatingOptions{
		Filename:   filepath.Join(logDirectory, "errors.log"),
		MaxSizeMB:  1,
		MaxBackups: 3,
	})
	if err != nil {
		fmt.Printf("Fatal: %v\n", err)
		os.Exit(1)
	}
	errorsFile.SetLevel(core.LevelError)
	logger.AddSink(errorsFile)

	// Audit records routed to memory by predicate
	audit := sink.NewMemory(100)
	logger.AddSink(sink.NewFilter(audit, func(rec core.Record) bool {
		return rec.Logger == "audit"
	}))

	// Mirror into an existing zap setup
	zl, _ := zap.NewDevelopment()
	logger.AddSink(zapsink.NewFromLogger(zl))

	// Publish to NATS when a server is available
	if url := os.Getenv("NATS_URL"); url != "" {
		ns, err := natsink.Connect(url, natsink.Options{Subject: "logs", PerLevel: true})
		if err != nil {
			fmt.Printf("Warning: NATS disabled: %v\n", err)
		} else {
			logger.AddSink(ns)
		}
	}

	if err := logger.Start(); err != nil {
		fmt.Printf("Fatal: %v\n", err)
		os.Exit(1)
	}

	phase(logger, "initial")
	logger.Submit(core.Record{
		Time:    time.Now(),
		Level:   core.LevelInfo,
		Message: "user login",
		Logger:  "audit",
		Fields:  []any{"user", "alice"},
	})

	// File off, console only
	if err := logger.ApplyOverride("enable_file=false"); err != nil {
		fmt.Printf("Reconfigure error: %v\n", err)
	}
	phase(logger, "console only")

	// Back to file, now as JSON
	if err := logger.ApplyOverride("enable_file=true", "format=json"); err != nil {
		fmt.Printf("Reconfigure error: %v\n", err)
	}
	phase(logger, "file as json")

	if err := logger.Flush(time.Second); err != nil {
		fmt.Printf("Flush error: %v\n", err)
	}
	fmt.Printf("audit records: %d, sinks: %d\n", audit.Len(), len(logger.Sinks()))
}

func phase(logger *logpipe.Logger, name string) {
	logger.Debugw("phase", "name", name)
	logger.Infow("phase", "name", name)
	logger.Warnw("phase", "name", name)
	logger.Errorw("phase", "name", name)
}

func shutdown(logger *logpipe.Logger) {
	if err := logger.Shutdown(500 * time.Millisecond); err != nil {
		fmt.Printf("Shutdown error: %v\n", err)
	}
}
