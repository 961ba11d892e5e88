package audit

import (
	"context"
	"log/slog"
	"sync"
)

// Publisher emits audit events to a store, optionally through an async
// buffer. Emit never fails the caller's write path: a full buffer drops the
// event with a logged warning instead of blocking.
type Publisher struct {
	store  Store
	logger *slog.Logger

	inbox   chan Event
	done    chan struct{}
	stopped chan struct{}
	closed  sync.Once
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithAsyncBuffer makes Emit enqueue events to a background worker instead of
// appending synchronously.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		p.inbox = make(chan Event, size)
	}
}

// NewPublisher builds an audit publisher over the given store.
func NewPublisher(store Store, logger *slog.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store:   store,
		logger:  logger,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		go p.run()
	}
	return p
}

// Emit records an audit event. In async mode the event is queued; in sync
// mode it is appended directly. Failures are logged, never propagated, so an
// audit sink outage cannot roll back an attendance write.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p.inbox == nil {
		if err := p.store.Append(ctx, event); err != nil {
			p.logger.ErrorContext(ctx, "audit append failed", "action", event.Action, "error", err)
		}
		return
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit buffer full, event dropped", "action", event.Action)
	}
}

func (p *Publisher) run() {
	defer close(p.stopped)
	for {
		select {
		case event := <-p.inbox:
			if err := p.store.Append(context.Background(), event); err != nil {
				p.logger.Error("audit append failed", "action", event.Action, "error", err)
			}
		case <-p.done:
			// Drain whatever is queued before shutting down.
			for {
				select {
				case event := <-p.inbox:
					if err := p.store.Append(context.Background(), event); err != nil {
						p.logger.Error("audit append failed", "action", event.Action, "error", err)
					}
				default:
					return
				}
			}
		}
	}
}

// Close stops the background worker after draining the buffer.
func (p *Publisher) Close() {
	p.closed.Do(func() {
		if p.inbox != nil {
			close(p.done)
			<-p.stopped
		}
	})
}
