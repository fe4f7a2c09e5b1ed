package logpipe

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/logpipe/sink"
)

func TestBuilder_Build(t *testing.T) {
	t.Run("successful build returns configured logger", func(t *testing.T) {
		tmpDir := t.TempDir()
		mem := sink.NewMemory(0)

		logger, err := NewBuilder().
			Name("builder").
			Directory(tmpDir).
			LevelString("debug").
			Format("json").
			QueueSize(2048).
			BatchSize(16).
			WorkerThreads(2).
			EnableConsole(false).
			EnableFile(true).
			MaxSizeMB(10).
			HeartbeatLevel(2).
			Sink(mem).
			Build()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Shutdown()

		cfg := logger.GetConfig()
		assert.Equal(t, tmpDir, cfg.Directory)
		assert.Equal(t, "debug", cfg.Level)
		assert.Equal(t, "json", cfg.Format)
		assert.Equal(t, int64(2048), cfg.QueueSize)
		assert.Equal(t, int64(2), cfg.WorkerThreads)
		assert.Equal(t, int64(2), cfg.HeartbeatLevel)
		assert.Equal(t, 2048, logger.QueueCapacity())

		// File output plus the added sink
		assert.Len(t, logger.Sinks(), 2)
		assert.FileExists(t, filepath.Join(tmpDir, "builder.log"))
	})

	t.Run("level from enum", func(t *testing.T) {
		b := NewBuilder().Level(LevelWarn)
		assert.Equal(t, "WARN", b.Config().Level)

		_, err := NewBuilder().Level(42).Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid level")
	})

	t.Run("builder error accumulation", func(t *testing.T) {
		logger, err := NewBuilder().
			LevelString("invalid-level-string").
			Directory("/some/dir").
			Build()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid level string")
		assert.Nil(t, logger)
	})

	t.Run("overrides", func(t *testing.T) {
		b := NewBuilder().Override("batch_size=7", "auto_flush=false")
		cfg := b.Config()
		assert.Equal(t, int64(7), cfg.BatchSize)
		assert.False(t, cfg.AutoFlush)

		_, err := NewBuilder().Override("batch_size=x", "unknown=1").Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "multiple configuration errors")
	})

	t.Run("apply config validation error", func(t *testing.T) {
		logger, err := NewBuilder().
			EnableConsole(false).
			WorkerThreads(0).
			Build()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Nil(t, logger)
	})
}
