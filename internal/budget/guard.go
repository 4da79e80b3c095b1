// Package budget shows the remaining monthly budget next to the expense form.
// Lookups are best effort: only the most recently started one may update the
// displayed value, and failures just leave the hint empty.
package budget

import (
	"context"
	"sync"
	"time"

	"casaspese/internal/api"
	"casaspese/internal/core"
	"casaspese/internal/log"
)

// DefaultTimeout bounds a single lookup.
const DefaultTimeout = 400 * time.Millisecond

// Guard runs at most one budget lookup at a time.
type Guard struct {
	reader  api.BudgetReader
	timeout time.Duration
	now     func() time.Time
	logger  *log.Logger

	mu        sync.Mutex
	gen       uint64
	cancel    context.CancelFunc
	remaining core.Money
	known     bool
	onChange  func(core.Money)

	wg sync.WaitGroup
}

// Option configures a Guard.
type Option func(*Guard)

func WithTimeout(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(g *Guard) { g.logger = l.WithComponent(log.ComponentBudget) }
}

// OnChange registers fn to run, outside the lock, whenever a lookup result
// is applied.
func OnChange(fn func(core.Money)) Option {
	return func(g *Guard) { g.onChange = fn }
}

func NewGuard(reader api.BudgetReader, opts ...Option) *Guard {
	g := &Guard{
		reader:  reader,
		timeout: DefaultTimeout,
		now:     time.Now,
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Trigger supersedes any outstanding lookup and starts a new one for the
// current month. The previous value stays displayed until the new one lands.
func (g *Guard) Trigger(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.gen++
	if g.cancel != nil {
		g.cancel()
	}
	lookupCtx, cancel := context.WithTimeout(ctx, g.timeout)
	g.cancel = cancel

	today := g.now()
	g.wg.Add(1)
	go g.lookup(lookupCtx, cancel, g.gen, today.Year(), int(today.Month()))
}

func (g *Guard) lookup(ctx context.Context, cancel context.CancelFunc, gen uint64, year, month int) {
	defer g.wg.Done()
	defer cancel()

	start := time.Now()
	summary, err := g.reader.Get(ctx, year, month)
	fields := log.NewFields().
		WithOperation(log.OpLookup).
		WithPeriod(year, month).
		WithDuration(time.Since(start).Milliseconds(), err == nil)
	fields[log.FieldGeneration] = gen

	if err != nil {
		g.logger.Debug("budget lookup failed", fields.WithError(err).ToSlice()...)
		return
	}

	g.mu.Lock()
	if gen != g.gen || ctx.Err() != nil {
		g.mu.Unlock()
		g.logger.Debug("budget lookup superseded", fields.ToSlice()...)
		return
	}
	g.remaining = summary.Remaining
	g.known = true
	onChange := g.onChange
	g.mu.Unlock()

	if onChange != nil {
		onChange(summary.Remaining)
	}
}

// Cancel drops the outstanding lookup, if any. Its result will never apply.
func (g *Guard) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen++
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}

// Reset cancels any lookup and forgets the displayed value.
func (g *Guard) Reset() {
	g.Cancel()
	g.mu.Lock()
	g.remaining = core.Money{}
	g.known = false
	g.mu.Unlock()
}

// Remaining returns the last applied value and whether there is one.
func (g *Guard) Remaining() (core.Money, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remaining, g.known
}

// Wait blocks until every started lookup goroutine has returned.
func (g *Guard) Wait() {
	g.wg.Wait()
}
