package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/logpipe"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigCommand(t *testing.T) {
	t.Run("defaults as toml", func(t *testing.T) {
		out, err := execute(t, "config")
		require.NoError(t, err)
		assert.Contains(t, out, "[log]")
		assert.Contains(t, out, `level = "info"`)
		assert.Contains(t, out, "queue_size = 10000")
	})

	t.Run("overrides as yaml", func(t *testing.T) {
		out, err := execute(t, "config", "--yaml", "--set", "level=debug", "--set", "worker_threads=3")
		require.NoError(t, err)

		var doc map[string]map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
		assert.Equal(t, "debug", doc["log"]["level"])
		assert.Equal(t, 3, doc["log"]["worker_threads"])
	})

	t.Run("file then save", func(t *testing.T) {
		dir := t.TempDir()
		in := filepath.Join(dir, "in.toml")
		saved := filepath.Join(dir, "saved.toml")
		require.NoError(t, os.WriteFile(in, []byte("[log]\nname = \"from-file\"\n"), 0644))

		_, err := execute(t, "config", "-f", in, "--save", saved)
		require.NoError(t, err)

		cfg, err := logpipe.NewConfigFromFile(saved)
		require.NoError(t, err)
		assert.Equal(t, "from-file", cfg.Name)
	})

	t.Run("invalid override", func(t *testing.T) {
		_, err := execute(t, "config", "--set", "batch_size=0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch_size must be positive")
	})
}

func TestStressCommand(t *testing.T) {
	out, err := execute(t, "stress",
		"--bursts", "8",
		"--burst-size", "50",
		"--producers", "4",
		"--max-message", "32",
		"--report", "0",
		"--set", "queue_size=0",
		// Bursts mix debug records in, keep all of them
		"--set", "level=debug",
	)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`submitted\s+400\n`), out)
	assert.Regexp(t, regexp.MustCompile(`processed\s+400\n`), out)
	assert.Regexp(t, regexp.MustCompile(`dropped\s+0\n`), out)
}

func TestStressCommandFileOutput(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "stress",
		"--output", "file",
		"--dir", dir,
		"--bursts", "2",
		"--burst-size", "10",
		"--report", "0",
		"--set", "name=stress",
	)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "stress.log"))
}

func TestStressCommandRejectsBadInput(t *testing.T) {
	_, err := execute(t, "stress", "--output", "printer")
	assert.Error(t, err)

	_, err = execute(t, "stress", "--bursts", "0")
	assert.Error(t, err)
}
