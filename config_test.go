package logpipe

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "logpipe", cfg.Name)
	assert.Equal(t, int64(10000), cfg.QueueSize)
	assert.Equal(t, int64(100), cfg.BatchSize)
	assert.Equal(t, int64(1000), cfg.FlushIntervalMs)
	assert.Equal(t, int64(1), cfg.WorkerThreads)
	assert.True(t, cfg.AutoFlush)
	assert.Equal(t, int64(1024), cfg.MemoryPoolSize)
	assert.Equal(t, int64(1000), cfg.MaxMemoryPoolBlocks)
	assert.Equal(t, "txt", cfg.Format)
	assert.Equal(t, time.RFC3339Nano, cfg.TimestampFormat)
	assert.Equal(t, RotationRename, cfg.FileRotation)
	assert.NoError(t, cfg.Validate())

	// Callers get a copy
	cfg.Name = "changed"
	assert.Equal(t, "logpipe", DefaultConfig().Name)
}

func TestConfigClone(t *testing.T) {
	cfg1 := DefaultConfig()
	cfg1.Level = "debug"
	cfg1.Directory = "/custom/path"

	cfg2 := cfg1.Clone()
	assert.Equal(t, cfg1, cfg2)

	cfg1.Level = "error"
	assert.Equal(t, "debug", cfg2.Level)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantError string
	}{
		{"valid config", func(c *Config) {}, ""},
		{"unbounded queue", func(c *Config) { c.QueueSize = 0 }, ""},
		{"invalid level", func(c *Config) { c.Level = "verbose" }, "invalid level"},
		{"empty name", func(c *Config) { c.Name = " " }, "log name cannot be empty"},
		{"invalid format", func(c *Config) { c.Format = "xml" }, "invalid format"},
		{"extension with dot", func(c *Config) { c.Extension = ".log" }, "extension should not start with dot"},
		{"empty timestamp format", func(c *Config) { c.TimestampFormat = "" }, "timestamp_format cannot be empty"},
		{"invalid console target", func(c *Config) { c.ConsoleTarget = "printer" }, "invalid console_target"},
		{"invalid rotation", func(c *Config) { c.FileRotation = "daily" }, "invalid file_rotation"},
		{"negative queue size", func(c *Config) { c.QueueSize = -1 }, "queue_size cannot be negative"},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, "batch_size must be positive"},
		{"zero flush interval", func(c *Config) { c.FlushIntervalMs = 0 }, "flush_interval_ms must be positive"},
		{"zero workers", func(c *Config) { c.WorkerThreads = 0 }, "worker_threads must be positive"},
		{"growth factor", func(c *Config) { c.PoolGrowthFactor = 1 }, "pool_growth_factor must be greater than 1"},
		{"negative size limit", func(c *Config) { c.MaxTotalSizeMB = -1 }, "size limits cannot be negative"},
		{"negative retention", func(c *Config) { c.MaxBackups = -1 }, "retention settings cannot be negative"},
		{"invalid trace depth", func(c *Config) { c.TraceDepth = 11 }, "trace_depth must be between 0 and 10"},
		{"invalid heartbeat level", func(c *Config) { c.HeartbeatLevel = 4 }, "heartbeat_level must be between 0 and 3"},
		{"pool classes inverted", func(c *Config) { c.MemoryPoolSize = 8192 }, "cannot be greater than pool_max_block_size"},
		{
			"heartbeat without interval",
			func(c *Config) { c.HeartbeatLevel = 1; c.HeartbeatIntervalS = 0 },
			"heartbeat_interval_s must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()

			if tt.wantError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantError)
		})
	}
}

func TestNewConfigFromFile(t *testing.T) {
	t.Run("reads the log table", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.toml")
		content := `
[log]
level = "debug"
name = "svc"
queue_size = 500
worker_threads = 2
format = "json"
enable_console = false
pool_growth_factor = 1.5
retention_period_hrs = 2.5
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := NewConfigFromFile(path)
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.Level)
		assert.Equal(t, "svc", cfg.Name)
		assert.Equal(t, int64(500), cfg.QueueSize)
		assert.Equal(t, int64(2), cfg.WorkerThreads)
		assert.Equal(t, "json", cfg.Format)
		assert.False(t, cfg.EnableConsole)
		assert.Equal(t, 1.5, cfg.PoolGrowthFactor)
		assert.Equal(t, 2.5, cfg.RetentionPeriodHrs)
		// Untouched keys keep their defaults
		assert.Equal(t, int64(100), cfg.BatchSize)
	})

	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := NewConfigFromFile(filepath.Join(t.TempDir(), "absent.toml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		require.NoError(t, os.WriteFile(path, []byte("[log]\nbatch_size = 0\n"), 0644))

		_, err := NewConfigFromFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch_size must be positive")
	})
}

func TestSaveConfigRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "warn"
	cfg.Name = "roundtrip"
	cfg.WorkerThreads = 3
	cfg.EnableFile = true
	cfg.Compress = true
	cfg.RetentionPeriodHrs = 12.5

	path := filepath.Join(t.TempDir(), "nested", "log.toml")
	require.NoError(t, SaveConfig(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[log]")
	assert.Contains(t, string(data), `name = "roundtrip"`)

	loaded, err := NewConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestNewConfigFromDefaults(t *testing.T) {
	t.Run("weakly typed overrides", func(t *testing.T) {
		cfg, err := NewConfigFromDefaults(map[string]any{
			"level":          "warn",
			"queue_size":     42,
			"auto_flush":     "false",
			"max_size_mb":    "25",
			"console_target": "split",
		})
		require.NoError(t, err)

		assert.Equal(t, "warn", cfg.Level)
		assert.Equal(t, int64(42), cfg.QueueSize)
		assert.False(t, cfg.AutoFlush)
		assert.Equal(t, int64(25), cfg.MaxSizeMB)
		assert.Equal(t, "split", cfg.ConsoleTarget)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := NewConfigFromDefaults(map[string]any{"nope": 1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nope")
	})

	t.Run("invalid result", func(t *testing.T) {
		_, err := NewConfigFromDefaults(map[string]any{"worker_threads": 0})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "worker_threads must be positive")
	})

	t.Run("nil map", func(t *testing.T) {
		cfg, err := NewConfigFromDefaults(nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})
}

func TestApplyOverride(t *testing.T) {
	logger := NewLogger()
	cfg := DefaultConfig()
	cfg.EnableConsole = false
	require.NoError(t, logger.ApplyConfig(cfg))
	defer logger.Shutdown()

	t.Run("applies typed values", func(t *testing.T) {
		err := logger.ApplyOverride(
			"level=debug",
			"worker_threads=4",
			"format=json",
			"pool_growth_factor=1.5",
			"compress=true",
		)
		require.NoError(t, err)

		got := logger.GetConfig()
		assert.Equal(t, "debug", got.Level)
		assert.Equal(t, int64(4), got.WorkerThreads)
		assert.Equal(t, "json", got.Format)
		assert.Equal(t, 1.5, got.PoolGrowthFactor)
		assert.True(t, got.Compress)
		assert.Equal(t, LevelDebug, logger.Level())
	})

	t.Run("collects every error and applies nothing", func(t *testing.T) {
		before := logger.GetConfig()

		err := logger.ApplyOverride("bogus=1", "batch_size=abc", "noequals", "name=kept-out")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log: multiple configuration errors:")
		assert.Contains(t, err.Error(), "1. unknown configuration key 'bogus'")
		assert.Contains(t, err.Error(), "2. invalid value for batch_size 'abc'")
		assert.Contains(t, err.Error(), "3. invalid format in override string 'noequals'")

		assert.Equal(t, before, logger.GetConfig())
	})

	t.Run("single error is returned as is", func(t *testing.T) {
		err := logger.ApplyOverride("level=verbose")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid level value 'verbose'")
		assert.NotContains(t, err.Error(), "multiple")
	})

	t.Run("validation runs after overrides", func(t *testing.T) {
		err := logger.ApplyOverride("heartbeat_level=9")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "heartbeat_level must be between 0 and 3")
	})
}
