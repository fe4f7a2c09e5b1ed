// Command reconfig resizes the queue and worker pool while producers are logging.
package main

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/logpipe"
)

func main() {
	var count atomic.Int64

	logger, err := logpipe.NewBuilder().
		EnableConsole(false).
		Directory("./temp_logs").
		EnableFile(true).
		Name("reconfig").
		Build()
	if err != nil {
		fmt.Printf("Init error: %v\n", err)
		return
	}
	if err := logger.Start(); err != nil {
		fmt.Printf("Start error: %v\n", err)
		return
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			logger.Info("Test log", i)
			count.Add(1)
			time.Sleep(time.Millisecond)
		}
	}()

	for i := 0; i < 10; i++ {
		err := logger.ApplyOverride(
			fmt.Sprintf("queue_size=%d", 1000*(i+1)),
			fmt.Sprintf("worker_threads=%d", i%3+1),
		)
		if err != nil {
			fmt.Printf("Reconfigure error: %v\n", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	close(stop)
	wg.Wait()

	if err := logger.Flush(time.Second); err != nil {
		fmt.Printf("Flush error: %v\n", err)
	}
	stats := logger.Stats()
	fmt.Printf("attempted: %d submitted: %d processed: %d dropped: %d\n",
		count.Load(), stats.Submitted, stats.Dispatcher.Processed, stats.TotalDropped)

	if err := logger.Shutdown(time.Second); err != nil {
		fmt.Printf("Shutdown error: %v\n", err)
	}
}
