// Package natsink publishes records to NATS subjects.
package natsink

import (
	"strings"
	"sync/atomic"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/lixenwraith/logpipe/core"
	"github.com/lixenwraith/logpipe/formatter"
)

// Publisher is the subset of *nats.Conn the sink uses
type Publisher interface {
	Publish(subject string, data []byte) error
	Flush() error
}

var _ Publisher = (*nats.Conn)(nil)
var _ core.Sink = (*Sink)(nil)

// Options configures a Sink
type Options struct {
	// Subject records are published to
	Subject string
	// PerLevel appends the lowercase level, "logs" becomes "logs.warn"
	PerLevel bool
	// Formatter defaults to JSON
	Formatter *formatter.Formatter
}

// Sink publishes one message per record
type Sink struct {
	core.LevelFilter

	pub       Publisher
	conn      *nats.Conn // set when the sink dialed the connection itself
	subject   string
	subjects  [core.LevelOff + 1]string
	perLevel  bool
	fmt       *formatter.Formatter
	published atomic.Uint64
	failed    atomic.Uint64
}

// New creates a sink over an existing publisher
func New(pub Publisher, opts Options) (*Sink, error) {
	if pub == nil {
		return nil, errors.New("natsink: publisher cannot be nil")
	}
	if opts.Subject == "" {
		return nil, errors.New("natsink: subject cannot be empty")
	}
	f := opts.Formatter
	if f == nil {
		f = formatter.New().Type(formatter.FormatJSON)
	}
	s := &Sink{pub: pub, subject: opts.Subject, perLevel: opts.PerLevel, fmt: f}
	for l := core.LevelTrace; l <= core.LevelOff; l++ {
		s.subjects[l] = opts.Subject + "." + strings.ToLower(l.String())
	}
	return s, nil
}

// Connect dials url and creates a sink owning the connection
func Connect(url string, opts Options, natsOpts ...nats.Option) (*Sink, error) {
	natsOpts = append([]nats.Option{nats.Name("logpipe")}, natsOpts...)
	conn, err := nats.Connect(url, natsOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "natsink: failed to connect to %s", url)
	}
	s, err := New(conn, opts)
	if err != nil {
		conn.Close()
		return nil, err
	}
	s.conn = conn
	return s, nil
}

// SubjectFor returns the subject a record at level is published to
func (s *Sink) SubjectFor(level core.Level) string {
	if s.perLevel && level.Valid() {
		return s.subjects[level]
	}
	return s.subject
}

// Accept formats rec into a pooled buffer and publishes it
func (s *Sink) Accept(rec core.Record) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.B = s.fmt.Append(buf.B, rec)
	// drop the line terminator, messages are framed by NATS
	payload := buf.B
	if n := len(payload); n > 0 && payload[n-1] == '\n' {
		payload = payload[:n-1]
	}

	subject := s.SubjectFor(rec.Level)
	if err := s.pub.Publish(subject, payload); err != nil {
		s.failed.Add(1)
		return errors.Wrapf(err, "natsink: publish to %s failed", subject)
	}
	s.published.Add(1)
	return nil
}

// Flush round-trips to the server so published messages are processed
func (s *Sink) Flush() error {
	return errors.Wrap(s.pub.Flush(), "natsink: flush failed")
}

// Close flushes and closes the connection when the sink dialed it
func (s *Sink) Close() error {
	if s.conn == nil {
		return s.Flush()
	}
	err := s.conn.Drain()
	return errors.Wrap(err, "natsink: drain failed")
}

// Published returns the number of successfully published records
func (s *Sink) Published() uint64 {
	return s.published.Load()
}

// Failed returns the number of failed publishes
func (s *Sink) Failed() uint64 {
	return s.failed.Load()
}
