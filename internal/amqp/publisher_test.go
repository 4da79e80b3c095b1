package amqp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casaspese/internal/analytics"
)

type fakeBroker struct {
	mu    sync.Mutex
	msgs  []*EventMessage
	err   error
	block chan struct{}
}

func (f *fakeBroker) PublishEvent(ctx context.Context, msg *EventMessage) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeBroker) published() []*EventMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*EventMessage(nil), f.msgs...)
}

func event(seq int64, name analytics.Name) analytics.Event {
	return analytics.Event{InstanceID: "inst", Seq: seq, Name: name, At: time.Now()}
}

func TestPublisher_PublishesInOrder(t *testing.T) {
	broker := &fakeBroker{}
	p := NewPublisher(broker, 8, nil)

	p.Write(event(1, analytics.EventOpen))
	p.Write(event(2, analytics.EventSubmitStart))
	p.Write(event(3, analytics.EventSubmitSuccess))
	require.NoError(t, p.Close(context.Background()))

	msgs := broker.published()
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.Seq)
		assert.Equal(t, "inst", m.InstanceID)
	}
	assert.Zero(t, p.Dropped())
}

func TestPublisher_DropsWhenFull(t *testing.T) {
	broker := &fakeBroker{block: make(chan struct{})}
	p := NewPublisher(broker, 1, nil)

	// One event may be picked up by the goroutine, one fills the buffer;
	// the rest must be dropped without blocking.
	for i := int64(1); i <= 10; i++ {
		p.Write(event(i, analytics.EventOpen))
	}
	assert.GreaterOrEqual(t, p.Dropped(), int64(8))

	close(broker.block)
	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, int64(10), p.Dropped()+int64(len(broker.published())))
}

func TestPublisher_FailuresAreCounted(t *testing.T) {
	broker := &fakeBroker{err: errors.New("connection refused")}
	p := NewPublisher(broker, 4, nil)

	p.Write(event(1, analytics.EventOpen))
	p.Write(event(2, analytics.EventSubmitStart))
	require.NoError(t, p.Close(context.Background()))

	assert.Equal(t, int64(2), p.Failed())
	assert.Empty(t, broker.published())
}

func TestPublisher_WriteAfterCloseIsIgnored(t *testing.T) {
	broker := &fakeBroker{}
	p := NewPublisher(broker, 4, nil)
	require.NoError(t, p.Close(context.Background()))
	require.NoError(t, p.Close(context.Background()))

	assert.NotPanics(t, func() { p.Write(event(1, analytics.EventOpen)) })
	assert.Empty(t, broker.published())
}

func TestPublisher_CloseHonoursContext(t *testing.T) {
	broker := &fakeBroker{block: make(chan struct{})}
	defer close(broker.block)
	p := NewPublisher(broker, 4, nil)
	p.Write(event(1, analytics.EventOpen))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Close(ctx), context.DeadlineExceeded)
}
