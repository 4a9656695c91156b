package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qwikask/qwikask/internal/model"
	"github.com/qwikask/qwikask/pkg/logger"
)

type recordingSink struct {
	mu     sync.Mutex
	events []model.SessionEvent
	err    error
}

func (s *recordingSink) Publish(_ context.Context, event *model.SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return s.err
}

func (s *recordingSink) types() []model.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.EventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

func TestPersisterPreservesOrder(t *testing.T) {
	history := newMemoryHistory()
	sink := &recordingSink{}
	p := NewPersister(history, sink, time.Second, logger.NewNop())
	defer p.Close()

	// Messages would fail if they ran before the conversation row exists.
	p.CreateConversation("c1", "Title")
	var last *Pending
	for i := 0; i < 20; i++ {
		last = p.AddMessage("m"+string(rune('a'+i)), "c1", model.RoleUser, "hi")
	}
	require.NoError(t, last.Wait(t.Context()))

	assert.Len(t, history.stored(), 20)
	require.NoError(t, p.Flush(t.Context()))
	types := sink.types()
	require.Len(t, types, 21)
	assert.Equal(t, model.EventConversationCreated, types[0])
	assert.Equal(t, model.EventMessagePersisted, types[20])
}

func TestPersisterReportsFailures(t *testing.T) {
	history := newMemoryHistory()
	history.err = errors.New("database is locked")
	p := NewPersister(history, nil, time.Second, logger.NewNop())
	defer p.Close()

	err := p.CreateConversation("c1", "Title").Wait(t.Context())
	assert.EqualError(t, err, "database is locked")

	// Later writes still run.
	history.mu.Lock()
	history.err = nil
	history.mu.Unlock()
	assert.NoError(t, p.CreateConversation("c2", "Title").Wait(t.Context()))
}

func TestPersisterEventFailureDoesNotFailWrite(t *testing.T) {
	sink := &recordingSink{err: errors.New("nats down")}
	p := NewPersister(newMemoryHistory(), sink, time.Second, logger.NewNop())
	defer p.Close()

	assert.NoError(t, p.CreateConversation("c1", "Title").Wait(t.Context()))
	assert.NoError(t, p.StreamFailed("c1", "HTTP error 500").Wait(t.Context()))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 2)
	assert.Equal(t, "HTTP error 500", sink.events[1].Reason)
}

func TestPersisterClose(t *testing.T) {
	p := NewPersister(newMemoryHistory(), nil, time.Second, logger.NewNop())

	pending := p.CreateConversation("c1", "Title")
	p.Close()

	select {
	case <-pending.Done():
	default:
		t.Fatal("close must drain queued writes")
	}
	assert.NoError(t, pending.Wait(t.Context()))

	assert.ErrorIs(t, p.CreateConversation("c2", "Title").Wait(t.Context()), ErrPersisterClosed)
	assert.NoError(t, p.Flush(t.Context()))
	p.Close()
}

func TestPersisterFlushWhenIdle(t *testing.T) {
	p := NewPersister(newMemoryHistory(), nil, time.Second, logger.NewNop())
	defer p.Close()

	require.NoError(t, p.CreateConversation("c1", "Title").Wait(t.Context()))
	assert.True(t, p.Idle())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, p.Flush(ctx))
}
