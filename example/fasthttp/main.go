package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/lixenwraith/logpipe"
	"github.com/lixenwraith/logpipe/compat"
	"github.com/lixenwraith/logpipe/core"
)

func main() {
	logger, err := logpipe.NewBuilder().
		Directory("/var/log/fasthttp").
		LevelString("info").
		Format("txt").
		QueueSize(2048).
		EnableFile(true).
		HeartbeatLevel(1).
		Build()
	if err != nil {
		panic(err)
	}
	if err := logger.Start(); err != nil {
		panic(err)
	}
	defer logger.Shutdown()

	fasthttpAdapter := compat.NewFastHTTPAdapter(
		logger,
		compat.WithDefaultLevel(core.LevelInfo),
		compat.WithLevelDetector(customLevelDetector),
	)

	server := &fasthttp.Server{
		Handler: requestHandler,
		Logger:  fasthttpAdapter,

		Name:              "MyServer",
		Concurrency:       fasthttp.DefaultConcurrency,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		TCPKeepalive:      true,
		ReduceMemoryUsage: true,
	}

	fmt.Println("Starting server on :8080")
	if err := server.ListenAndServe(":8080"); err != nil {
		panic(err)
	}
}

func requestHandler(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("text/plain")
	fmt.Fprintf(ctx, "Hello, world! Path: %s\n", ctx.Path())
}

// customLevelDetector knows a few fasthttp messages and falls back to keywords
func customLevelDetector(msg string) (core.Level, bool) {
	if strings.Contains(msg, "connection cannot be served") {
		return core.LevelWarn, true
	}
	if strings.Contains(msg, "error when serving connection") {
		return core.LevelError, true
	}
	return compat.DetectLogLevel(msg)
}
