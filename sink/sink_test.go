package sink

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/logpipe/core"
	"github.com/lixenwraith/logpipe/formatter"
)

func testRecord(level core.Level, msg string) core.Record {
	return core.Record{Time: time.Now(), Level: level, Message: msg, Logger: "test"}
}

func plainFormatter() *formatter.Formatter {
	return formatter.New().ShowTimestamp(false).ShowLevel(false).ShowCaller(false).ShowGoroutine(false)
}

// createTestFile returns a file sink in a temp directory
func createTestFile(t *testing.T, opts FileOptions) *File {
	t.Helper()
	if opts.Directory == "" {
		opts.Directory = t.TempDir()
	}
	if opts.Name == "" {
		opts.Name = "app"
	}
	if opts.Extension == "" {
		opts.Extension = "log"
	}
	if opts.Formatter == nil {
		opts.Formatter = formatter.New().Type(formatter.FormatRaw)
	}
	f, err := NewFile(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, plainFormatter())

	require.NoError(t, w.Accept(testRecord(core.LevelInfo, "hello")))
	require.NoError(t, w.Flush())
	assert.Equal(t, "[test] hello\n", buf.String())

	w.SetLevel(core.LevelWarn)
	assert.False(t, w.ShouldLog(core.LevelInfo))
	assert.True(t, w.ShouldLog(core.LevelError))
}

func TestWriterSplit(t *testing.T) {
	var out, errOut bytes.Buffer
	w := NewWriter(&out, formatter.New().Type(formatter.FormatRaw))
	w.errOut = &errOut

	require.NoError(t, w.Accept(testRecord(core.LevelInfo, "info")))
	require.NoError(t, w.Accept(testRecord(core.LevelError, "error")))

	assert.Equal(t, "info\n", out.String())
	assert.Equal(t, "error\n", errOut.String())
}

func TestNewConsole(t *testing.T) {
	for _, target := range []string{TargetStdout, TargetStderr, TargetSplit, ""} {
		w, err := NewConsole(target, nil)
		require.NoError(t, err, target)
		assert.NotNil(t, w)
	}
	_, err := NewConsole("printer", nil)
	assert.Error(t, err)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWriterError(t *testing.T) {
	w := NewWriter(failingWriter{}, nil)
	err := w.Accept(testRecord(core.LevelInfo, "x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestFileWriteAndFlush(t *testing.T) {
	f := createTestFile(t, FileOptions{})

	for i := 0; i < 3; i++ {
		require.NoError(t, f.Accept(testRecord(core.LevelInfo, "line")))
	}
	require.NoError(t, f.Flush())

	content, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, "line\nline\nline\n", string(content))
	assert.Equal(t, int64(15), f.Stats().Size)
	assert.True(t, f.Stats().DiskOK)
}

func TestFileLock(t *testing.T) {
	dir := t.TempDir()
	first := createTestFile(t, FileOptions{Directory: dir})

	_, err := NewFile(FileOptions{Directory: dir, Name: "app", Extension: "log"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked))

	require.NoError(t, first.Close())
	second, err := NewFile(FileOptions{Directory: dir, Name: "app", Extension: "log"})
	require.NoError(t, err, "lock is released on close")
	require.NoError(t, second.Close())
}

func TestFileClosed(t *testing.T) {
	f := createTestFile(t, FileOptions{})
	require.NoError(t, f.Close())
	require.NoError(t, f.Close(), "close is idempotent")

	assert.ErrorIs(t, f.Accept(testRecord(core.LevelInfo, "late")), ErrClosed)
	assert.ErrorIs(t, f.Flush(), ErrClosed)
	assert.ErrorIs(t, f.Rotate(), ErrClosed)
}

func TestFileRotation(t *testing.T) {
	dir := t.TempDir()
	f := createTestFile(t, FileOptions{Directory: dir, MaxSizeMB: 1})

	payload := strings.Repeat("x", 600*1024)
	require.NoError(t, f.Accept(testRecord(core.LevelInfo, payload)))
	require.NoError(t, f.Accept(testRecord(core.LevelInfo, payload)), "second record triggers a rotation")
	require.NoError(t, f.Flush())

	stats := f.Stats()
	assert.Equal(t, uint64(1), stats.Rotations)
	assert.Equal(t, int64(len(payload)+1), stats.Size)
	assert.False(t, stats.Earliest.IsZero())

	archives, err := f.archives()
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.True(t, strings.HasPrefix(archives[0].name, "app_"))
	assert.True(t, strings.HasSuffix(archives[0].name, ".log"))
}

func TestFileRotateCompress(t *testing.T) {
	dir := t.TempDir()
	f := createTestFile(t, FileOptions{Directory: dir, Compress: true})

	require.NoError(t, f.Accept(testRecord(core.LevelInfo, "archived")))
	require.NoError(t, f.Rotate())
	require.NoError(t, f.Accept(testRecord(core.LevelInfo, "active")))
	require.NoError(t, f.Flush())

	matches, err := filepath.Glob(filepath.Join(dir, "app_*.log.gz"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	gzFile, err := os.Open(matches[0])
	require.NoError(t, err)
	defer gzFile.Close()
	zr, err := gzip.NewReader(gzFile)
	require.NoError(t, err)
	content, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "archived\n", string(content))

	active, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, "active\n", string(active))
}

func TestFileMaxTotalSize(t *testing.T) {
	dir := t.TempDir()
	f := createTestFile(t, FileOptions{Directory: dir, MaxTotalSizeMB: 1})

	payload := strings.Repeat("y", 400*1024)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.Accept(testRecord(core.LevelInfo, payload)))
		require.NoError(t, f.Rotate())
		time.Sleep(10 * time.Millisecond) // distinct modification times
	}
	require.NoError(t, f.Flush())

	stats := f.Stats()
	assert.True(t, stats.DiskOK)
	assert.Equal(t, uint64(1), stats.Deletions, "oldest archive removed to get under the limit")

	archives, err := f.archives()
	require.NoError(t, err)
	assert.Len(t, archives, 2)
}

func TestFileDiskFullRefusesRecords(t *testing.T) {
	f := createTestFile(t, FileOptions{MaxTotalSizeMB: 1})

	payload := strings.Repeat("z", 1100*1024)
	require.NoError(t, f.Accept(testRecord(core.LevelInfo, payload)))
	require.NoError(t, f.Flush())

	assert.False(t, f.Stats().DiskOK, "no archive can be removed to satisfy the limit")
	assert.ErrorIs(t, f.Accept(testRecord(core.LevelInfo, "refused")), ErrDiskFull)
}

func TestFileRetention(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "app_240101_000000_0.log")
	require.NoError(t, os.WriteFile(old, []byte("old\n"), 0644))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	f := createTestFile(t, FileOptions{Directory: dir, RetentionPeriodHrs: 24})
	assert.Equal(t, past.Unix(), f.Stats().Earliest.Unix())

	require.NoError(t, f.Flush())
	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, uint64(1), f.Stats().Deletions)
	assert.True(t, f.Stats().Earliest.IsZero())
}

func TestFileValidation(t *testing.T) {
	_, err := NewFile(FileOptions{Directory: t.TempDir()})
	assert.Error(t, err)
}

func TestRotating(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRotating(RotatingOptions{
		Filename:   filepath.Join(dir, "rot.log"),
		MaxSizeMB:  1,
		MaxBackups: 2,
		Formatter:  formatter.New().Type(formatter.FormatRaw),
	})
	require.NoError(t, err)

	require.NoError(t, r.Accept(testRecord(core.LevelInfo, "first")))
	require.NoError(t, r.Flush())
	require.NoError(t, r.Rotate())
	require.NoError(t, r.Accept(testRecord(core.LevelInfo, "second")))
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	content, err := os.ReadFile(r.Filename())
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(content))

	backups, err := filepath.Glob(filepath.Join(dir, "rot-*.log"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	assert.ErrorIs(t, r.Accept(testRecord(core.LevelInfo, "late")), ErrClosed)

	_, err = NewRotating(RotatingOptions{})
	assert.Error(t, err)
}

type brokenSink struct {
	core.LevelFilter
	err error
}

func (b *brokenSink) Accept(core.Record) error { return b.err }
func (b *brokenSink) Flush() error              { return b.err }

func TestMulti(t *testing.T) {
	a, b := NewMemory(0), NewMemory(0)
	b.SetLevel(core.LevelError)
	broken := &brokenSink{err: errors.New("broken")}
	m := NewMulti(a, nil, broken)
	m.Add(b)
	m.Add(nil)

	assert.Len(t, m.Sinks(), 3)

	err := m.Accept(testRecord(core.LevelInfo, "info"))
	assert.EqualError(t, err, "broken")
	require.Error(t, m.Accept(testRecord(core.LevelError, "error")))

	assert.Equal(t, []string{"info", "error"}, a.Messages(), "a failing child does not stop the others")
	assert.Equal(t, []string{"error"}, b.Messages())

	assert.Error(t, m.Flush())
	assert.Equal(t, uint64(1), a.Flushes())
	assert.NoError(t, m.Close())
}

func TestFilter(t *testing.T) {
	mem := NewMemory(0)
	f := NewFilter(mem, ByLogger("db"))

	db := testRecord(core.LevelInfo, "query")
	db.Logger = "db"
	require.NoError(t, f.Accept(db))
	require.NoError(t, f.Accept(testRecord(core.LevelInfo, "other")))
	assert.Equal(t, []string{"query"}, mem.Messages())

	mem.SetLevel(core.LevelWarn)
	require.NoError(t, f.Accept(db))
	assert.Equal(t, 1, mem.Len(), "wrapped sink level still applies")

	rng := NewFilter(NewMemory(0), Not(ByLevelRange(core.LevelDebug, core.LevelInfo)))
	require.NoError(t, rng.Accept(testRecord(core.LevelInfo, "skip")))
	require.NoError(t, rng.Accept(testRecord(core.LevelError, "keep")))
	assert.Equal(t, []string{"keep"}, rng.next.(*Memory).Messages())

	all := NewFilter(NewMemory(0), nil)
	require.NoError(t, all.Accept(testRecord(core.LevelTrace, "any")))
	require.NoError(t, all.Flush())
	require.NoError(t, all.Close())
}

func TestMemoryLimit(t *testing.T) {
	mem := NewMemory(2)
	for _, msg := range []string{"a", "b", "c"} {
		require.NoError(t, mem.Accept(testRecord(core.LevelInfo, msg)))
	}
	assert.Equal(t, []string{"b", "c"}, mem.Messages())
	assert.Equal(t, uint64(1), mem.Evicted())
	assert.Len(t, mem.Records(), 2)

	mem.Reset()
	assert.Zero(t, mem.Len())
}
