package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/lixenwraith/logpipe/core"
	"github.com/lixenwraith/logpipe/formatter"
)

const (
	bytesPerMB       = 1024 * 1024
	fileBufferSize   = 64 * 1024
	archiveTimestamp = "060102_150405"
)

// FileOptions configures a File sink
type FileOptions struct {
	Directory string
	Name      string
	Extension string // without the dot, may be empty

	// Rename-on-rotate once the active file would exceed this size, 0 disables
	MaxSizeMB int64
	// Oldest archives are removed while the directory exceeds this size, 0 disables
	MaxTotalSizeMB int64
	// Oldest archives are removed while free space is below this, 0 disables
	MinDiskFreeMB int64
	// Archives older than this are removed on flush, 0 disables
	RetentionPeriodHrs float64
	// Gzip archives after rotation
	Compress bool

	Formatter *formatter.Formatter
	// Internal receives problems that are not returned to the caller
	Internal func(format string, args ...any)
}

// FileStats is a snapshot of a File sink
type FileStats struct {
	Path      string
	Size      int64
	Rotations uint64
	Deletions uint64
	DiskOK    bool
	Earliest  time.Time // modification time of the oldest archive
}

// File appends formatted records to a single active file guarded by an
// exclusive lock file, with optional size based rotation and disk limits.
type File struct {
	core.LevelFilter

	mu       sync.Mutex
	opts     FileOptions
	fmt      *formatter.Formatter
	lock     *flock.Flock
	file     *os.File
	w        *bufio.Writer
	size     int64
	closed   bool
	diskOK   bool
	diskFull bool // a disk-full problem was already reported

	rotations uint64
	deletions uint64
	earliest  time.Time
}

// NewFile creates the directory if needed, takes the lock and opens the
// active file for appending
func NewFile(opts FileOptions) (*File, error) {
	if opts.Name == "" {
		return nil, errors.New("sink: file name cannot be empty")
	}
	if opts.Directory == "" {
		opts.Directory = "."
	}
	opts.Extension = strings.TrimPrefix(opts.Extension, ".")
	if opts.Internal == nil {
		opts.Internal = func(string, ...any) {}
	}

	if err := os.MkdirAll(opts.Directory, 0755); err != nil {
		return nil, errors.Wrapf(err, "sink: failed to create log directory '%s'", opts.Directory)
	}

	f := &File{opts: opts, fmt: defaultFormatter(opts.Formatter), diskOK: true}
	path := f.Path()

	f.lock = flock.New(path + ".lock")
	locked, err := f.lock.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "sink: failed to lock '%s'", path)
	}
	if !locked {
		return nil, errors.Wrapf(ErrLocked, "sink: '%s'", path)
	}

	if err := f.open(); err != nil {
		_ = f.lock.Unlock()
		return nil, err
	}
	f.updateEarliestFileTime()
	return f, nil
}

// Path returns the full path of the active file
func (f *File) Path() string {
	filename := f.opts.Name
	if f.opts.Extension != "" {
		filename = f.opts.Name + "." + f.opts.Extension
	}
	return filepath.Join(f.opts.Directory, filename)
}

func (f *File) open() error {
	path := f.Path()
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "sink: failed to open/create log file '%s'", path)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return errors.Wrapf(err, "sink: failed to stat log file '%s'", path)
	}
	f.file = file
	f.size = info.Size()
	if f.w == nil {
		f.w = bufio.NewWriterSize(file, fileBufferSize)
	} else {
		f.w.Reset(file)
	}
	return nil
}

// Accept formats rec into the write buffer, rotating first when the record
// would push the active file over MaxSizeMB
func (f *File) Accept(rec core.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	if !f.diskOK {
		return ErrDiskFull
	}

	data := f.fmt.Format(rec)
	if limit := f.opts.MaxSizeMB * bytesPerMB; limit > 0 && f.size > 0 && f.size+int64(len(data)) > limit {
		if err := f.rotate(); err != nil {
			return err
		}
	}

	n, err := f.w.Write(data)
	f.size += int64(n)
	if err != nil {
		return errors.Wrapf(err, "sink: write to '%s' failed", f.Path())
	}
	return nil
}

// Flush writes buffered data, syncs the file and applies the disk limits
func (f *File) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	if err := f.w.Flush(); err != nil {
		return errors.Wrapf(err, "sink: flush of '%s' failed", f.Path())
	}
	if err := f.file.Sync(); err != nil {
		return errors.Wrapf(err, "sink: sync of '%s' failed", f.Path())
	}

	if err := f.cleanExpiredLogs(); err != nil {
		f.opts.Internal("%v\n", err)
	}
	f.performDiskCheck()
	return nil
}

// Rotate archives the active file and opens a new one
func (f *File) Rotate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	return f.rotate()
}

// rotate implements the rename-on-rotate strategy
func (f *File) rotate() error {
	if err := f.w.Flush(); err != nil {
		f.opts.Internal("failed to flush log file before rotation: %v\n", err)
	}
	if err := f.file.Close(); err != nil {
		f.opts.Internal("failed to close log file before rotation: %v\n", err)
	}

	currentPath := f.Path()
	archivePath := filepath.Join(f.opts.Directory, f.archiveName(time.Now()))
	if err := os.Rename(currentPath, archivePath); err != nil {
		// Keep appending to the same file rather than losing records
		if openErr := f.open(); openErr != nil {
			return errors.Wrap(openErr, "sink: failed to reopen log file after failed rotation")
		}
		return errors.Wrapf(err, "sink: failed to rename '%s' to '%s'", currentPath, archivePath)
	}

	if err := f.open(); err != nil {
		return errors.Wrap(err, "sink: failed to create new log file after rotation")
	}
	f.rotations++

	if f.opts.Compress {
		if err := compressFile(archivePath); err != nil {
			f.opts.Internal("failed to compress '%s': %v\n", archivePath, err)
		}
	}
	f.updateEarliestFileTime()
	return nil
}

// archiveName creates a timestamped filename for a rotated file
func (f *File) archiveName(timestamp time.Time) string {
	ts := timestamp.Format(archiveTimestamp)
	if f.opts.Extension != "" {
		return fmt.Sprintf("%s_%s_%d.%s", f.opts.Name, ts, timestamp.Nanosecond(), f.opts.Extension)
	}
	return fmt.Sprintf("%s_%s_%d", f.opts.Name, ts, timestamp.Nanosecond())
}

// Close flushes, closes the file and releases the lock
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true

	var err error
	if flushErr := f.w.Flush(); flushErr != nil {
		err = multierr.Append(err, errors.Wrap(flushErr, "sink: final flush failed"))
	}
	if closeErr := f.file.Close(); closeErr != nil {
		err = multierr.Append(err, errors.Wrap(closeErr, "sink: close failed"))
	}
	if unlockErr := f.lock.Unlock(); unlockErr != nil {
		err = multierr.Append(err, errors.Wrap(unlockErr, "sink: unlock failed"))
	}
	return err
}

// Stats returns a snapshot of the file state
func (f *File) Stats() FileStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FileStats{
		Path:      f.Path(),
		Size:      f.size,
		Rotations: f.rotations,
		Deletions: f.deletions,
		DiskOK:    f.diskOK,
		Earliest:  f.earliest,
	}
}

// archive is a rotated file of this sink
type archive struct {
	name    string
	modTime time.Time
	size    int64
}

// archives lists rotated files, oldest first
func (f *File) archives() ([]archive, error) {
	entries, err := os.ReadDir(f.opts.Directory)
	if err != nil {
		return nil, errors.Wrapf(err, "sink: failed to read log directory '%s'", f.opts.Directory)
	}

	prefix := f.opts.Name + "_"
	var logs []archive
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, errInfo := entry.Info()
		if errInfo != nil {
			continue
		}
		logs = append(logs, archive{name: entry.Name(), modTime: info.ModTime(), size: info.Size()})
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].modTime.Before(logs[j].modTime) })
	return logs, nil
}

func (f *File) updateEarliestFileTime() {
	logs, err := f.archives()
	if err != nil || len(logs) == 0 {
		f.earliest = time.Time{}
		return
	}
	f.earliest = logs[0].modTime
}

// performDiskCheck removes archives while a limit is exceeded and refuses new
// records when cleanup cannot satisfy the limits
func (f *File) performDiskCheck() {
	maxTotal := f.opts.MaxTotalSizeMB * bytesPerMB
	minFreeRequired := f.opts.MinDiskFreeMB * bytesPerMB
	if maxTotal <= 0 && minFreeRequired <= 0 {
		f.setDiskOK(true)
		return
	}

	spaceToFree := int64(0)
	if minFreeRequired > 0 {
		freeSpace, err := diskFreeSpace(f.opts.Directory)
		if err != nil {
			f.opts.Internal("warning - failed to check free disk space for '%s': %v\n", f.opts.Directory, err)
			f.setDiskOK(false)
			return
		}
		if freeSpace < minFreeRequired {
			spaceToFree = minFreeRequired - freeSpace
		}
	}

	if maxTotal > 0 {
		dirSize, err := f.dirSize()
		if err != nil {
			f.opts.Internal("warning - failed to check log directory size for '%s': %v\n", f.opts.Directory, err)
			f.setDiskOK(false)
			return
		}
		if over := dirSize - maxTotal; over > spaceToFree {
			spaceToFree = over
		}
	}

	if spaceToFree == 0 {
		f.setDiskOK(true)
		return
	}
	if err := f.cleanOldLogs(spaceToFree); err != nil {
		if !f.diskFull {
			f.diskFull = true
			f.opts.Internal("log directory full or disk space low, cleanup failed: %v\n", err)
		}
		f.setDiskOK(false)
		return
	}
	f.setDiskOK(true)
	f.updateEarliestFileTime()
}

func (f *File) setDiskOK(ok bool) {
	f.diskOK = ok
	if ok {
		f.diskFull = false
	}
}

// dirSize is the size of the active file plus every archive
func (f *File) dirSize() (int64, error) {
	logs, err := f.archives()
	if err != nil {
		return 0, err
	}
	size := f.size
	for _, l := range logs {
		size += l.size
	}
	return size, nil
}

// cleanOldLogs removes oldest archives until required bytes are freed
func (f *File) cleanOldLogs(required int64) error {
	logs, err := f.archives()
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		return errors.Errorf("sink: no old logs available to delete in '%s', needed %d bytes", f.opts.Directory, required)
	}

	var freedSpace int64
	for _, l := range logs {
		if freedSpace >= required {
			break
		}
		path := filepath.Join(f.opts.Directory, l.name)
		if err := os.Remove(path); err != nil {
			f.opts.Internal("failed to remove old log file '%s': %v\n", path, err)
			continue
		}
		freedSpace += l.size
		f.deletions++
	}

	if freedSpace < required {
		return errors.Errorf("sink: could not free enough space in '%s': freed %d bytes, needed %d bytes", f.opts.Directory, freedSpace, required)
	}
	return nil
}

// cleanExpiredLogs removes archives older than the retention period
func (f *File) cleanExpiredLogs() error {
	retention := time.Duration(f.opts.RetentionPeriodHrs * float64(time.Hour))
	if retention <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-retention)
	if f.earliest.IsZero() || !f.earliest.Before(cutoff) {
		return nil
	}

	logs, err := f.archives()
	if err != nil {
		return err
	}
	for _, l := range logs {
		if !l.modTime.Before(cutoff) {
			break
		}
		path := filepath.Join(f.opts.Directory, l.name)
		if err := os.Remove(path); err != nil {
			f.opts.Internal("failed to remove expired log file '%s': %v\n", path, err)
			continue
		}
		f.deletions++
	}
	f.updateEarliestFileTime()
	return nil
}

// diskFreeSpace retrieves available disk space for the given path
func diskFreeSpace(path string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, errors.Wrapf(err, "sink: failed to get disk stats for '%s'", path)
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}

// compressFile gzips path into path.gz and removes the original
func compressFile(path string) (err error) {
	src, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening source file for compression")
	}
	defer src.Close()

	compressedPath := path + ".gz"
	dst, err := os.OpenFile(compressedPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrap(err, "creating compressed file")
	}
	defer func() {
		if err != nil {
			_ = dst.Close()
			_ = os.Remove(compressedPath)
		}
	}()

	gw := gzip.NewWriter(dst)
	if _, err = io.Copy(gw, src); err != nil {
		return errors.Wrap(err, "compressing file")
	}
	if err = gw.Close(); err != nil {
		return errors.Wrap(err, "closing gzip writer")
	}
	if err = dst.Close(); err != nil {
		return errors.Wrap(err, "closing compressed file")
	}
	_ = src.Close()
	if err = os.Remove(path); err != nil {
		_ = os.Remove(compressedPath)
		return errors.Wrap(err, "removing original file after compression")
	}
	return nil
}
