// Command logpipe inspects logpipe configuration and load tests the pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lixenwraith/logpipe"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "logpipe",
		Short:         "Asynchronous logging pipeline tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newConfigCommand())
	root.AddCommand(newStressCommand())
	return root
}

// loadConfig reads path when set and applies key=value overrides on top
func loadConfig(path string, overrides []string) (*logpipe.Config, error) {
	cfg := logpipe.DefaultConfig()
	if path != "" {
		loaded, err := logpipe.NewConfigFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.Override(overrides...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
