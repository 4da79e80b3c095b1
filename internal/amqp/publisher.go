package amqp

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"casaspese/internal/analytics"
	"casaspese/internal/log"
)

// EventPublisher sends one message to the broker.
type EventPublisher interface {
	PublishEvent(ctx context.Context, msg *EventMessage) error
}

const DefaultBufferSize = 256

// Publisher is an analytics.Sink that hands events to a background
// goroutine. Write never blocks: when the buffer is full the event is
// dropped and counted.
type Publisher struct {
	client EventPublisher
	logger *log.Logger
	events chan analytics.Event

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	failed  atomic.Int64
	done    chan struct{}
}

var _ analytics.Sink = (*Publisher)(nil)

// NewPublisher starts the publishing goroutine. It runs until Close.
func NewPublisher(client EventPublisher, buffer int, logger *log.Logger) *Publisher {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	if logger == nil {
		logger = log.Discard()
	}
	p := &Publisher{
		client: client,
		logger: logger.WithComponent(log.ComponentAMQP),
		events: make(chan analytics.Event, buffer),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Publisher) Write(e analytics.Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.events <- e:
	default:
		p.dropped.Add(1)
		p.logger.Warn("analytics buffer full, dropping event",
			log.FieldInstanceID, e.InstanceID,
			log.FieldSeq, e.Seq,
			log.FieldEvent, string(e.Name))
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for e := range p.events {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := p.client.PublishEvent(ctx, NewEventMessage(e)); err != nil {
			p.failed.Add(1)
			p.logger.Warn("failed to publish analytics event",
				log.FieldError, err.Error(),
				log.FieldInstanceID, e.InstanceID,
				log.FieldSeq, e.Seq)
		}
		cancel()
	}
}

// Close stops accepting events and waits for the buffer to drain, or for
// ctx to end.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if n := p.dropped.Load(); n > 0 {
		p.logger.Info("publisher closed with dropped events", "dropped", n)
	}
	return nil
}

// Dropped reports how many events were discarded because the buffer was full.
func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

// Failed reports how many events the broker refused.
func (p *Publisher) Failed() int64 { return p.failed.Load() }

// flushDelay bounds how long Close waits in the cmd shutdown path.
const flushDelay = 2 * time.Second

// CloseWithDeadline is Close with the default flush delay.
func (p *Publisher) CloseWithDeadline() error {
	ctx, cancel := context.WithTimeout(context.Background(), flushDelay)
	defer cancel()
	return p.Close(ctx)
}
