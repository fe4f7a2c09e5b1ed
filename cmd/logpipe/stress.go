package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lixenwraith/logpipe"
	"github.com/lixenwraith/logpipe/core"
	"github.com/lixenwraith/logpipe/sink"
)

const messageChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 "

var stressLevels = []core.Level{
	core.LevelDebug,
	core.LevelInfo,
	core.LevelWarn,
	core.LevelError,
}

type stressOptions struct {
	file        string
	overrides   []string
	output      string
	directory   string
	producers   int
	bursts      int
	burstSize   int
	maxMessage  int
	report      time.Duration
	waitTimeout time.Duration
}

func newStressCommand() *cobra.Command {
	var opts stressOptions
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Drive the pipeline with concurrent bursts and report its counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.file, "file", "f", "", "TOML file with a [log] table")
	flags.StringArrayVar(&opts.overrides, "set", nil, "key=value override, repeatable")
	flags.StringVar(&opts.output, "output", "memory", "where records go: memory, file or discard")
	flags.StringVar(&opts.directory, "dir", "./logs", "log directory for --output=file")
	flags.IntVar(&opts.producers, "producers", 64, "size of the producer goroutine pool")
	flags.IntVar(&opts.bursts, "bursts", 100, "number of bursts")
	flags.IntVar(&opts.burstSize, "burst-size", 500, "records per burst")
	flags.IntVar(&opts.maxMessage, "max-message", 256, "upper bound of random message length")
	flags.DurationVar(&opts.report, "report", time.Second, "progress report interval, 0 disables")
	flags.DurationVar(&opts.waitTimeout, "wait", 10*time.Second, "time allowed to drain the queue")
	return cmd
}

func runStress(ctx context.Context, out io.Writer, opts stressOptions) error {
	if opts.producers <= 0 || opts.bursts <= 0 || opts.burstSize <= 0 || opts.maxMessage <= 0 {
		return fmt.Errorf("producers, bursts, burst-size and max-message must be positive")
	}

	cfg, err := loadConfig(opts.file, opts.overrides)
	if err != nil {
		return err
	}
	cfg.EnableConsole = false

	var mem *sink.Memory
	switch opts.output {
	case "memory":
		mem = sink.NewMemory(opts.burstSize)
	case "file":
		cfg.EnableFile = true
		cfg.Directory = opts.directory
	case "discard":
	default:
		return fmt.Errorf("unknown output %q", opts.output)
	}

	logger := logpipe.NewLogger()
	if err := logger.ApplyConfig(cfg); err != nil {
		return err
	}
	if mem != nil {
		logger.AddSink(mem)
	}
	if err := logger.Start(); err != nil {
		return err
	}
	defer logger.Shutdown()

	pool, err := ants.NewPool(opts.producers)
	if err != nil {
		return err
	}
	defer pool.Release()

	fmt.Fprintf(out, "stress: %d bursts of %d records on %d producers, output %s\n",
		opts.bursts, opts.burstSize, opts.producers, opts.output)

	start := time.Now()
	var completed sync.WaitGroup
	done := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		for b := 0; b < opts.bursts; b++ {
			if err := gctx.Err(); err != nil {
				completed.Wait()
				return err
			}
			burst := b
			completed.Add(1)
			err := pool.Submit(func() {
				defer completed.Done()
				logBurst(logger, burst, opts)
			})
			if err != nil {
				completed.Done()
				completed.Wait()
				return err
			}
		}
		completed.Wait()
		return nil
	})
	if opts.report > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(opts.report)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return nil
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					st := logger.Stats()
					fmt.Fprintf(out, "progress: submitted=%d processed=%d queued=%d dropped=%d\n",
						st.Submitted, st.Dispatcher.Processed, st.QueueLength, st.TotalDropped)
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	if err := logger.Flush(opts.waitTimeout); err != nil {
		return err
	}
	printStressReport(out, logger.Stats(), elapsed)
	return nil
}

// logBurst emits one burst of records with random levels and message sizes
func logBurst(logger *logpipe.Logger, burst int, opts stressOptions) {
	for i := 0; i < opts.burstSize; i++ {
		level := stressLevels[rand.IntN(len(stressLevels))]
		msg := randomMessage(rand.IntN(opts.maxMessage) + 1)
		logger.LogDepth(level, 0, msg, "burst", burst, "seq", i, "rnd", rand.Int64())
	}
}

func randomMessage(size int) string {
	var sb strings.Builder
	sb.Grow(size)
	for i := 0; i < size; i++ {
		sb.WriteByte(messageChars[rand.IntN(len(messageChars))])
	}
	return sb.String()
}

func printStressReport(out io.Writer, st logpipe.LoggerStats, elapsed time.Duration) {
	rate := float64(st.Submitted) / elapsed.Seconds()
	fmt.Fprintf(out, "%-14s %s\n", "elapsed", elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "%-14s %d\n", "submitted", st.Submitted)
	fmt.Fprintf(out, "%-14s %d\n", "processed", st.Dispatcher.Processed)
	fmt.Fprintf(out, "%-14s %d\n", "dropped", st.TotalDropped)
	fmt.Fprintf(out, "%-14s %.4f\n", "drop_rate", st.Dispatcher.DropRate)
	fmt.Fprintf(out, "%-14s %d\n", "batches", st.Dispatcher.Batches)
	fmt.Fprintf(out, "%-14s %d\n", "sink_failures", st.Dispatcher.SinkFailures)
	fmt.Fprintf(out, "%-14s %d/%d\n", "pool_in_use", st.Pool.InUse, st.Pool.Total)
	fmt.Fprintf(out, "%-14s %.0f/s\n", "throughput", rate)
}
