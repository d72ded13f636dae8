// Package publisher emits audit events to an audit.Store. Emission is best
// effort: failures are logged and never fail the business operation.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "imrich/pkg/platform/audit"
	"imrich/pkg/requestcontext"
)

// Publisher writes audit events synchronously, or through a bounded buffer
// drained by one goroutine when WithAsyncBuffer is set.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	buffer chan audit.Event
	wg     sync.WaitGroup
	once   sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*Publisher)

// WithLogger sets a logger for dropped and failed events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithAsyncBuffer enables asynchronous delivery with a buffer of size n.
// Events that do not fit are dropped and logged.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = make(chan audit.Event, n)
		}
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit enriches the event with id, category, timestamp and request id, then
// stores it. In async mode it only enqueues.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Category = audit.AuditEvent(event.Action).Category()
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx).UTC()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if p.buffer == nil {
		if err := p.store.Append(ctx, event); err != nil {
			p.logger.ErrorContext(ctx, "failed to append audit event",
				"action", event.Action,
				"serial", event.Serial,
				"error", err,
				"request_id", event.RequestID,
			)
			return err
		}
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.WarnContext(ctx, "audit publisher closed, event dropped",
			"action", event.Action,
			"serial", event.Serial,
			"request_id", event.RequestID,
		)
		return nil
	}
	select {
	case p.buffer <- event:
	default:
		p.logger.WarnContext(ctx, "audit buffer full, event dropped",
			"action", event.Action,
			"serial", event.Serial,
			"request_id", event.RequestID,
		)
	}
	return nil
}

// List returns the recorded events for a serial.
func (p *Publisher) List(ctx context.Context, serial string) ([]audit.Event, error) {
	return p.store.ListBySerial(ctx, serial)
}

// Close stops accepting async events and waits for the buffer to drain.
// Events emitted afterwards are dropped.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer == nil {
			return
		}
		p.mu.Lock()
		p.closed = true
		close(p.buffer)
		p.mu.Unlock()
		p.wg.Wait()
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.store.Append(ctx, event); err != nil {
			p.logger.Error("failed to append audit event",
				"action", event.Action,
				"serial", event.Serial,
				"error", err,
				"request_id", event.RequestID,
			)
		}
		cancel()
	}
}
