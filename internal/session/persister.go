package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qwikask/qwikask/internal/model"
	"github.com/qwikask/qwikask/pkg/logger"
	"github.com/qwikask/qwikask/pkg/metrics"
)

// ErrPersisterClosed is the outcome of writes submitted after Close.
var ErrPersisterClosed = errors.New("persister closed")

// HistoryWriter is the part of the history store the session writes to.
type HistoryWriter interface {
	CreateConversation(ctx context.Context, id, title string) error
	AddMessage(ctx context.Context, id, conversationID string, role model.Role, content string) error
	UpdateConversationTitle(ctx context.Context, id, title string) error
}

// EventSink receives session events. Delivery is best-effort.
type EventSink interface {
	Publish(ctx context.Context, event *model.SessionEvent) error
}

// Pending is the outcome of a best-effort write. Callers may ignore it.
type Pending struct {
	done chan struct{}
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) resolve(err error) {
	p.err = err
	close(p.done)
}

// Done is closed once the write finished.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the write finished or ctx is done.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type job struct {
	op      string
	run     func(ctx context.Context) error
	pending *Pending
}

// Persister runs best-effort writes one at a time in submission order, so a
// conversation row always exists before its messages are inserted. Failures
// are logged and counted, never returned to the chat flow.
type Persister struct {
	history HistoryWriter
	events  EventSink
	logger  *logger.Logger
	timeout time.Duration
	now     func() time.Time
	newID   func() string

	mu     sync.Mutex
	queue  []job
	busy   bool
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// NewPersister starts the write worker. A nil events sink disables events.
func NewPersister(history HistoryWriter, events EventSink, timeout time.Duration, log *logger.Logger) *Persister {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	p := &Persister{
		history: history,
		events:  events,
		logger:  log.Named("persister"),
		timeout: timeout,
		now:     time.Now,
		newID:   newID,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// CreateConversation records a new conversation.
func (p *Persister) CreateConversation(id, title string) *Pending {
	return p.submit("create_conversation", func(ctx context.Context) error {
		if err := p.history.CreateConversation(ctx, id, title); err != nil {
			return err
		}
		p.emit(ctx, id, model.EventConversationCreated, "", map[string]string{"title": title})
		return nil
	})
}

// AddMessage records a transcript message.
func (p *Persister) AddMessage(id, conversationID string, role model.Role, content string) *Pending {
	return p.submit("add_message", func(ctx context.Context) error {
		if err := p.history.AddMessage(ctx, id, conversationID, role, content); err != nil {
			return err
		}
		p.emit(ctx, conversationID, model.EventMessagePersisted, "", map[string]string{
			"message_id": id,
			"role":       string(role),
		})
		return nil
	})
}

// UpdateTitle renames a conversation.
func (p *Persister) UpdateTitle(conversationID, title string) *Pending {
	return p.submit("update_title", func(ctx context.Context) error {
		if err := p.history.UpdateConversationTitle(ctx, conversationID, title); err != nil {
			return err
		}
		p.emit(ctx, conversationID, model.EventTitleUpdated, "", map[string]string{"title": title})
		return nil
	})
}

// StreamFailed records a failed stream as an event only.
func (p *Persister) StreamFailed(conversationID, reason string) *Pending {
	return p.submit("stream_failed", func(ctx context.Context) error {
		p.emit(ctx, conversationID, model.EventStreamFailed, reason, nil)
		return nil
	})
}

// Idle reports whether no write is queued or running.
func (p *Persister) Idle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue) == 0 && !p.busy
}

// Flush waits until every write submitted before the call has finished.
func (p *Persister) Flush(ctx context.Context) error {
	if p.Idle() {
		return nil
	}
	barrier := p.submit("flush", func(context.Context) error { return nil })
	err := barrier.Wait(ctx)
	if errors.Is(err, ErrPersisterClosed) {
		return nil
	}
	return err
}

// Close drains the queue and stops the worker.
func (p *Persister) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.signal()
	<-p.done
}

func (p *Persister) submit(op string, run func(ctx context.Context) error) *Pending {
	pending := newPending()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		pending.resolve(ErrPersisterClosed)
		return pending
	}
	p.queue = append(p.queue, job{op: op, run: run, pending: pending})
	p.mu.Unlock()

	p.signal()
	return pending
}

func (p *Persister) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Persister) run() {
	defer close(p.done)

	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			closed := p.closed
			p.mu.Unlock()
			if closed {
				return
			}
			<-p.wake
			continue
		}
		next := p.queue[0]
		p.queue[0] = job{}
		p.queue = p.queue[1:]
		p.busy = true
		p.mu.Unlock()

		err := p.execute(next)
		p.mu.Lock()
		p.busy = false
		p.mu.Unlock()
		next.pending.resolve(err)
	}
}

func (p *Persister) execute(j job) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err := j.run(ctx)
	if err != nil {
		metrics.BestEffortFailures.WithLabelValues(j.op).Inc()
		p.logger.Warn("best-effort write failed", zap.String("operation", j.op), zap.Error(err))
	}
	return err
}

func (p *Persister) emit(ctx context.Context, conversationID string, typ model.EventType, reason string, metadata map[string]string) {
	if p.events == nil {
		return
	}

	event := &model.SessionEvent{
		ID:             p.newID(),
		ConversationID: conversationID,
		Type:           typ,
		Reason:         reason,
		Metadata:       metadata,
		CreatedAt:      p.now().UnixMilli(),
	}

	if err := p.events.Publish(ctx, event); err != nil {
		metrics.BestEffortFailures.WithLabelValues("publish_event").Inc()
		p.logger.Debug("failed to publish session event",
			zap.String("type", string(typ)),
			zap.Error(err),
		)
	}
}
