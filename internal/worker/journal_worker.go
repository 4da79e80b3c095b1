// Package worker drains analytics events from the broker into the journal
// and checks each form instance's trail as it completes.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"casaspese/internal/amqp"
	"casaspese/internal/analytics"
	"casaspese/internal/log"
)

// Journal is the durable side of the worker.
type Journal interface {
	Append(ctx context.Context, e analytics.Event) (bool, error)
	ListByInstance(ctx context.Context, instanceID string) ([]analytics.Event, error)
}

// Consumer feeds messages to a handler until ctx ends.
type Consumer interface {
	ConsumeEvents(ctx context.Context, handler amqp.Handler) error
}

// Stats counts what the worker has seen since start.
type Stats struct {
	Processed  int64
	Duplicates int64
	Checked    int64
	Violations int64
}

type JournalWorker struct {
	journal Journal
	logger  *log.Logger

	processed  atomic.Int64
	duplicates atomic.Int64
	checked    atomic.Int64
	violations atomic.Int64
}

func NewJournalWorker(journal Journal, logger *log.Logger) *JournalWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &JournalWorker{
		journal: journal,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// Run consumes until ctx is cancelled. Cancellation is not an error.
func (w *JournalWorker) Run(ctx context.Context, consumer Consumer) error {
	w.logger.InfoContext(ctx, "journal worker started")
	err := consumer.ConsumeEvents(ctx, w.HandleEventMessage)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	s := w.Stats()
	w.logger.InfoContext(ctx, "journal worker stopped",
		"processed", s.Processed,
		"duplicates", s.Duplicates,
		"violations", s.Violations)
	return err
}

// HandleEventMessage journals one message. A journal failure is returned so
// the broker redelivers; a lifecycle violation is only reported.
func (w *JournalWorker) HandleEventMessage(ctx context.Context, msg *amqp.EventMessage) error {
	e := msg.Event()
	inserted, err := w.journal.Append(ctx, e)
	if err != nil {
		return fmt.Errorf("journal event %s/%d: %w", e.InstanceID, e.Seq, err)
	}
	if !inserted {
		w.duplicates.Add(1)
		w.logger.DebugContext(ctx, "duplicate analytics event",
			log.FieldInstanceID, e.InstanceID,
			log.FieldSeq, e.Seq)
		return nil
	}
	w.processed.Add(1)

	if !settles(e.Name) {
		return nil
	}
	return w.check(ctx, e.InstanceID)
}

// settles reports whether name leaves the trail in a state worth checking.
func settles(name analytics.Name) bool {
	switch name {
	case analytics.EventSubmitSuccess, analytics.EventSubmitError,
		analytics.EventSaveAddAnother, analytics.EventDiscardPrompted:
		return true
	}
	return false
}

func (w *JournalWorker) check(ctx context.Context, instanceID string) error {
	trail, err := w.journal.ListByInstance(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("load trail %s: %w", instanceID, err)
	}
	// Deliveries can arrive out of order; wait until the trail has no gaps.
	for i, e := range trail {
		if e.Seq != int64(i+1) {
			return nil
		}
	}

	w.checked.Add(1)
	if err := analytics.ValidateLifecycle(trail); err != nil {
		w.violations.Add(1)
		w.logger.WarnContext(ctx, "analytics trail violates lifecycle",
			log.FieldInstanceID, instanceID,
			log.FieldError, err.Error(),
			"events", len(trail))
	}
	return nil
}

func (w *JournalWorker) Stats() Stats {
	return Stats{
		Processed:  w.processed.Load(),
		Duplicates: w.duplicates.Load(),
		Checked:    w.checked.Load(),
		Violations: w.violations.Load(),
	}
}
