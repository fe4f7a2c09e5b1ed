package logpipe

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/lixenwraith/config"
	"github.com/mitchellh/mapstructure"

	"github.com/lixenwraith/logpipe/core"
	"github.com/lixenwraith/logpipe/sink"
)

// configPrefix is the table the logger keys live under in a config file
const configPrefix = "log."

// File output strategies
const (
	RotationRename     = "rename"     // rename-on-rotate with disk limits, sink.File
	RotationLumberjack = "lumberjack" // sink.Rotating
)

// Config holds all logger configuration values
type Config struct {
	// Basic settings
	Level string `toml:"level" yaml:"level" mapstructure:"level"`
	Name  string `toml:"name" yaml:"name" mapstructure:"name"` // Logger name, base name for log files

	// Pipeline
	QueueSize       int64 `toml:"queue_size" yaml:"queue_size" mapstructure:"queue_size"` // 0 = unbounded
	BatchSize       int64 `toml:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`
	FlushIntervalMs int64 `toml:"flush_interval_ms" yaml:"flush_interval_ms" mapstructure:"flush_interval_ms"`
	WorkerThreads   int64 `toml:"worker_threads" yaml:"worker_threads" mapstructure:"worker_threads"`
	AutoFlush       bool  `toml:"auto_flush" yaml:"auto_flush" mapstructure:"auto_flush"`
	ReportDrops     bool  `toml:"report_drops" yaml:"report_drops" mapstructure:"report_drops"` // Emit "Logs were dropped" records

	// Message buffer pool
	MemoryPoolSize      int64   `toml:"memory_pool_size" yaml:"memory_pool_size" mapstructure:"memory_pool_size"` // Smallest size class in bytes
	MaxMemoryPoolBlocks int64   `toml:"max_memory_pool_blocks" yaml:"max_memory_pool_blocks" mapstructure:"max_memory_pool_blocks"`
	PoolMaxBlockSize    int64   `toml:"pool_max_block_size" yaml:"pool_max_block_size" mapstructure:"pool_max_block_size"`
	PoolGrowthFactor    float64 `toml:"pool_growth_factor" yaml:"pool_growth_factor" mapstructure:"pool_growth_factor"`

	// Record capture
	IncludeCaller    bool  `toml:"include_caller" yaml:"include_caller" mapstructure:"include_caller"`
	TraceDepth       int64 `toml:"trace_depth" yaml:"trace_depth" mapstructure:"trace_depth"` // Default trace depth (0-10)
	CaptureGoroutine bool  `toml:"capture_goroutine" yaml:"capture_goroutine" mapstructure:"capture_goroutine"`

	// Formatting
	Format          string `toml:"format" yaml:"format" mapstructure:"format"` // "txt", "json", or "raw"
	ShowTimestamp   bool   `toml:"show_timestamp" yaml:"show_timestamp" mapstructure:"show_timestamp"`
	ShowLevel       bool   `toml:"show_level" yaml:"show_level" mapstructure:"show_level"`
	TimestampFormat string `toml:"timestamp_format" yaml:"timestamp_format" mapstructure:"timestamp_format"`

	// Console output
	EnableConsole bool   `toml:"enable_console" yaml:"enable_console" mapstructure:"enable_console"`
	ConsoleTarget string `toml:"console_target" yaml:"console_target" mapstructure:"console_target"` // "stdout", "stderr" or "split"
	ConsoleColor  bool   `toml:"console_color" yaml:"console_color" mapstructure:"console_color"`

	// File output
	EnableFile         bool    `toml:"enable_file" yaml:"enable_file" mapstructure:"enable_file"`
	Directory          string  `toml:"directory" yaml:"directory" mapstructure:"directory"`
	FileName           string  `toml:"file_name" yaml:"file_name" mapstructure:"file_name"` // Defaults to Name
	Extension          string  `toml:"extension" yaml:"extension" mapstructure:"extension"`
	FileRotation       string  `toml:"file_rotation" yaml:"file_rotation" mapstructure:"file_rotation"`
	MaxSizeMB          int64   `toml:"max_size_mb" yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxTotalSizeMB     int64   `toml:"max_total_size_mb" yaml:"max_total_size_mb" mapstructure:"max_total_size_mb"`
	MinDiskFreeMB      int64   `toml:"min_disk_free_mb" yaml:"min_disk_free_mb" mapstructure:"min_disk_free_mb"`
	RetentionPeriodHrs float64 `toml:"retention_period_hrs" yaml:"retention_period_hrs" mapstructure:"retention_period_hrs"`
	MaxBackups         int64   `toml:"max_backups" yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays         int64   `toml:"max_age_days" yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress           bool    `toml:"compress" yaml:"compress" mapstructure:"compress"`

	// Heartbeat configuration
	HeartbeatLevel     int64 `toml:"heartbeat_level" yaml:"heartbeat_level" mapstructure:"heartbeat_level"` // 0=disabled, 1=proc, 2=+pool/disk, 3=+sys
	HeartbeatIntervalS int64 `toml:"heartbeat_interval_s" yaml:"heartbeat_interval_s" mapstructure:"heartbeat_interval_s"`

	// Internal error handling
	InternalErrorsToStderr bool `toml:"internal_errors_to_stderr" yaml:"internal_errors_to_stderr" mapstructure:"internal_errors_to_stderr"`
}

// defaultConfig is the single source for all configurable default values
var defaultConfig = Config{
	Level: "info",
	Name:  "logpipe",

	QueueSize:       10000,
	BatchSize:       100,
	FlushIntervalMs: 1000,
	WorkerThreads:   1,
	AutoFlush:       true,
	ReportDrops:     true,

	MemoryPoolSize:      1024,
	MaxMemoryPoolBlocks: 1000,
	PoolMaxBlockSize:    4096,
	PoolGrowthFactor:    2.0,

	IncludeCaller:    false,
	TraceDepth:       0,
	CaptureGoroutine: true,

	Format:          "txt",
	ShowTimestamp:   true,
	ShowLevel:       true,
	TimestampFormat: time.RFC3339Nano,

	EnableConsole: true,
	ConsoleTarget: sink.TargetStdout,
	ConsoleColor:  false,

	EnableFile:         false,
	Directory:          "./logs",
	FileName:           "",
	Extension:          "log",
	FileRotation:       RotationRename,
	MaxSizeMB:          10,
	MaxTotalSizeMB:     0,
	MinDiskFreeMB:      0,
	RetentionPeriodHrs: 0,
	MaxBackups:         0,
	MaxAgeDays:         0,
	Compress:           false,

	HeartbeatLevel:     0,
	HeartbeatIntervalS: 60,

	InternalErrorsToStderr: false,
}

// DefaultConfig returns a copy of the default configuration
func DefaultConfig() *Config {
	copiedConfig := defaultConfig
	return &copiedConfig
}

// NewConfigFromFile loads configuration from the [log] table of a TOML file.
// A missing file yields the defaults.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	loader := config.New()
	if err := loader.RegisterStruct(configPrefix, *cfg); err != nil {
		return nil, fmtErrorf("failed to register config struct: %w", err)
	}

	if err := loader.Load(path, nil); err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return nil, fmtErrorf("failed to load config from %s: %w", path, err)
	}

	values := make(map[string]any)
	for _, key := range configKeys() {
		if val, found := loader.Get(configPrefix + key); found {
			values[key] = val
		}
	}
	if err := decodeConfig(cfg, values); err != nil {
		return nil, fmtErrorf("failed to extract config values: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConfigFromDefaults creates a Config with default values and applies overrides
// keyed by the toml names
func NewConfigFromDefaults(overrides map[string]any) (*Config, error) {
	cfg := DefaultConfig()
	if err := decodeConfig(cfg, overrides); err != nil {
		return nil, fmtErrorf("failed to apply overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes cfg as the [log] table of a TOML file
func SaveConfig(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmtErrorf("failed to create config directory '%s': %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmtErrorf("failed to create config file '%s': %w", path, err)
	}

	encErr := toml.NewEncoder(f).Encode(map[string]*Config{strings.TrimSuffix(configPrefix, "."): cfg})
	closeErr := f.Close()
	if encErr != nil {
		return fmtErrorf("failed to encode config: %w", encErr)
	}
	if closeErr != nil {
		return fmtErrorf("failed to write config file '%s': %w", path, closeErr)
	}
	return nil
}

// decodeConfig applies values onto cfg with weak typing, so "true", "10" and
// TOML's int64 all land in the right field type. Unknown keys are errors.
func decodeConfig(cfg *Config, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(values)
}

// configKeys lists every toml key of Config
func configKeys() []string {
	t := reflect.TypeOf(Config{})
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("toml"); tag != "" {
			keys = append(keys, tag)
		}
	}
	return keys
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	// String validations
	if _, err := core.ParseLevel(c.Level); err != nil {
		return fmtErrorf("invalid level '%s': %w", c.Level, err)
	}

	if strings.TrimSpace(c.Name) == "" {
		return fmtErrorf("log name cannot be empty")
	}

	if c.Format != "txt" && c.Format != "json" && c.Format != "raw" {
		return fmtErrorf("invalid format: '%s' (use txt, json, or raw)", c.Format)
	}

	if strings.HasPrefix(c.Extension, ".") {
		return fmtErrorf("extension should not start with dot: %s", c.Extension)
	}

	if strings.TrimSpace(c.TimestampFormat) == "" {
		return fmtErrorf("timestamp_format cannot be empty")
	}

	switch c.ConsoleTarget {
	case sink.TargetStdout, sink.TargetStderr, sink.TargetSplit:
	default:
		return fmtErrorf("invalid console_target: '%s' (use stdout, stderr or split)", c.ConsoleTarget)
	}

	if c.FileRotation != RotationRename && c.FileRotation != RotationLumberjack {
		return fmtErrorf("invalid file_rotation: '%s' (use rename or lumberjack)", c.FileRotation)
	}

	// Numeric validations
	if c.QueueSize < 0 {
		return fmtErrorf("queue_size cannot be negative: %d", c.QueueSize)
	}

	if c.BatchSize <= 0 {
		return fmtErrorf("batch_size must be positive: %d", c.BatchSize)
	}

	if c.FlushIntervalMs <= 0 {
		return fmtErrorf("flush_interval_ms must be positive: %d", c.FlushIntervalMs)
	}

	if c.WorkerThreads <= 0 {
		return fmtErrorf("worker_threads must be positive: %d", c.WorkerThreads)
	}

	if c.MemoryPoolSize <= 0 || c.PoolMaxBlockSize <= 0 {
		return fmtErrorf("pool block sizes must be positive")
	}

	if c.MaxMemoryPoolBlocks < 0 {
		return fmtErrorf("max_memory_pool_blocks cannot be negative: %d", c.MaxMemoryPoolBlocks)
	}

	if c.PoolGrowthFactor <= 1 {
		return fmtErrorf("pool_growth_factor must be greater than 1: %g", c.PoolGrowthFactor)
	}

	if c.MaxSizeMB < 0 || c.MaxTotalSizeMB < 0 || c.MinDiskFreeMB < 0 {
		return fmtErrorf("size limits cannot be negative")
	}

	if c.RetentionPeriodHrs < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmtErrorf("retention settings cannot be negative")
	}

	if c.TraceDepth < 0 || c.TraceDepth > maxTraceDepth {
		return fmtErrorf("trace_depth must be between 0 and %d: %d", maxTraceDepth, c.TraceDepth)
	}

	if c.HeartbeatLevel < 0 || c.HeartbeatLevel > 3 {
		return fmtErrorf("heartbeat_level must be between 0 and 3: %d", c.HeartbeatLevel)
	}

	// Cross-field validations
	if c.MemoryPoolSize > c.PoolMaxBlockSize {
		return fmtErrorf("memory_pool_size (%d) cannot be greater than pool_max_block_size (%d)",
			c.MemoryPoolSize, c.PoolMaxBlockSize)
	}

	if c.HeartbeatLevel > 0 && c.HeartbeatIntervalS <= 0 {
		return fmtErrorf("heartbeat_interval_s must be positive when heartbeat is enabled: %d",
			c.HeartbeatIntervalS)
	}

	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	copiedConfig := *c
	return &copiedConfig
}

// level returns the parsed level; the config is validated before use
func (c *Config) level() core.Level {
	level, _ := core.ParseLevel(c.Level)
	return level
}

func (c *Config) flushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMs) * time.Millisecond
}

// dispatcherOptions maps the pipeline keys onto dispatcher options
func (c *Config) dispatcherOptions() DispatcherOptions {
	return DispatcherOptions{
		BatchSize:     int(c.BatchSize),
		FlushInterval: c.flushInterval(),
		Workers:       int(c.WorkerThreads),
		AutoFlush:     c.AutoFlush,
	}
}

// fileBaseName is the log file name without extension
func (c *Config) fileBaseName() string {
	if c.FileName != "" {
		return c.FileName
	}
	return c.Name
}

// filePath is the full path of the active log file
func (c *Config) filePath() string {
	name := c.fileBaseName()
	if c.Extension != "" {
		name += "." + c.Extension
	}
	return filepath.Join(c.Directory, name)
}
