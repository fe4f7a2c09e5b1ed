package natsink

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/logpipe/core"
	"github.com/lixenwraith/logpipe/formatter"
)

type message struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []message
	flushes  int
	err      error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, message{subject: subject, data: append([]byte(nil), data...)})
	return nil
}

func (p *fakePublisher) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushes++
	return p.err
}

func createTestSink(t *testing.T, opts Options) (*Sink, *fakePublisher) {
	t.Helper()
	pub := &fakePublisher{}
	s, err := New(pub, opts)
	require.NoError(t, err)
	return s, pub
}

func TestPublishJSON(t *testing.T) {
	s, pub := createTestSink(t, Options{Subject: "logs"})

	rec := core.Record{Time: time.Now(), Level: core.LevelWarn, Message: "slow query", Fields: []any{"ms", 250}}
	require.NoError(t, s.Accept(rec))
	require.NoError(t, s.Flush())

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "logs", pub.messages[0].subject)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(pub.messages[0].data, &payload))
	assert.Equal(t, "WARN", payload["level"])
	assert.Equal(t, "slow query", payload["msg"])
	assert.Equal(t, map[string]any{"ms": float64(250)}, payload["fields"])

	assert.Equal(t, 1, pub.flushes)
	assert.Equal(t, uint64(1), s.Published())
}

func TestPerLevelSubjects(t *testing.T) {
	s, pub := createTestSink(t, Options{
		Subject:   "app",
		PerLevel:  true,
		Formatter: formatter.New().Type(formatter.FormatRaw),
	})

	require.NoError(t, s.Accept(core.Record{Level: core.LevelError, Message: "e"}))
	require.NoError(t, s.Accept(core.Record{Level: core.LevelDebug, Message: "d"}))

	require.Len(t, pub.messages, 2)
	assert.Equal(t, "app.error", pub.messages[0].subject)
	assert.Equal(t, "e", string(pub.messages[0].data), "line terminator is stripped")
	assert.Equal(t, "app.debug", pub.messages[1].subject)
	assert.Equal(t, "app", s.SubjectFor(core.Level(42)))
}

func TestPublishFailure(t *testing.T) {
	s, pub := createTestSink(t, Options{Subject: "logs"})
	pub.err = errors.New("connection closed")

	err := s.Accept(core.Record{Level: core.LevelInfo, Message: "lost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection closed")
	assert.Equal(t, uint64(1), s.Failed())
	assert.Error(t, s.Flush())
	assert.Error(t, s.Close())
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Options{Subject: "x"})
	assert.Error(t, err)
	_, err = New(&fakePublisher{}, Options{})
	assert.Error(t, err)
}

func TestLevelGate(t *testing.T) {
	s, _ := createTestSink(t, Options{Subject: "logs"})
	s.SetLevel(core.LevelError)
	assert.False(t, s.ShouldLog(core.LevelWarn))
	assert.True(t, s.ShouldLog(core.LevelFatal))
}
