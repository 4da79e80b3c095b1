// Package submission drives the add-expense form: it validates input, shows
// the new expense immediately as an optimistic row, confirms it with the
// server and rolls the row back when the server refuses. Failed attempts can
// be retried by hand.
package submission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"casaspese/internal/analytics"
	"casaspese/internal/api"
	"casaspese/internal/budget"
	"casaspese/internal/core"
	"casaspese/internal/expenselist"
	"casaspese/internal/form"
	"casaspese/internal/log"
)

const (
	DefaultCreateTimeout = 15 * time.Second

	// PlaceholderName is shown for a category or payer the directory does not
	// know yet.
	PlaceholderName = "..."
)

var tempIDs atomic.Int64

// nextTempID returns a process-wide unique negative id.
func nextTempID() int64 {
	return -tempIDs.Add(1)
}

// RetryPayload is what a failed attempt leaves behind for a manual retry.
type RetryPayload struct {
	Fields     form.Fields
	Optimistic core.ExpenseRecord
	AddAnother bool
}

// Options tunes a Coordinator. Zero values pick defaults.
type Options struct {
	// Categories, when set, is used instead of fetching the category
	// directory on open.
	Categories    []core.DirectoryEntry
	CreateTimeout time.Duration
	BudgetTimeout time.Duration
	Now           func() time.Time
	Logger        *log.Logger
	Sink          analytics.Sink
	// OnBudget receives every budget hint that applies.
	OnBudget      func(core.Money)
}

// session is the state of one open modal.
type session struct {
	form       *form.Controller
	events     *analytics.Session
	categories []core.DirectoryEntry
	users      []core.DirectoryEntry
	catNames   map[int64]string
	userNames  map[int64]string

	mu     sync.Mutex
	retry  *RetryPayload
	prompt bool
}

func (s *session) retryPayload() *RetryPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retry
}

func (s *session) setRetry(p *RetryPayload) {
	s.mu.Lock()
	s.retry = p
	s.mu.Unlock()
}

// Coordinator is safe for concurrent use. Host mutations for one submission
// are always issued in insert then commit-or-remove order.
type Coordinator struct {
	backend api.Backend
	host    Host
	opts    Options
	logger  *log.Logger
	budget  *budget.Guard

	baseCtx context.Context
	stop    context.CancelFunc

	mu      sync.Mutex
	current *session
}

// New builds a coordinator over the given backend and host.
func New(backend api.Backend, host Host, opts Options) *Coordinator {
	if opts.CreateTimeout <= 0 {
		opts.CreateTimeout = DefaultCreateTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Sink == nil {
		opts.Sink = analytics.Discard
	}
	logger := opts.Logger.WithComponent(log.ComponentSubmission)
	ctx, stop := context.WithCancel(context.Background())
	return &Coordinator{
		backend: backend,
		host:    host,
		opts:    opts,
		logger:  logger,
		budget: budget.NewGuard(backend.Budgets,
			budget.WithTimeout(opts.BudgetTimeout),
			budget.WithClock(opts.Now),
			budget.WithLogger(opts.Logger),
			budget.OnChange(opts.OnBudget),
		),
		baseCtx: ctx,
		stop:    stop,
	}
}

func (c *Coordinator) active() (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, ErrNotOpen
	}
	return c.current, nil
}

// Open shows the form. Directories are fetched concurrently; a failed fetch
// only costs display names. Opening an already open form does nothing.
func (c *Coordinator) Open(ctx context.Context) error {
	if c.IsOpen() {
		return nil
	}

	var categories, users []core.DirectoryEntry
	g, gctx := errgroup.WithContext(ctx)
	if c.opts.Categories != nil {
		categories = append(categories, c.opts.Categories...)
	} else if c.backend.Categories != nil {
		g.Go(func() error {
			list, err := c.backend.Categories.List(gctx)
			if err != nil {
				return fmt.Errorf("list categories: %w", err)
			}
			categories = list
			return nil
		})
	}
	if c.backend.Users != nil {
		g.Go(func() error {
			list, err := c.backend.Users.List(gctx)
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}
			users = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("directory fetch failed, using placeholders",
			log.NewFields().WithOperation(log.OpList).WithError(err).ToSlice()...)
	}

	s := &session{
		form:       form.NewController(form.DefaultFields(), c.opts.Now),
		events:     analytics.NewSession(c.opts.Sink, c.opts.Now),
		categories: categories,
		users:      users,
		catNames:   api.Names(categories),
		userNames:  api.Names(users),
	}

	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return nil
	}
	c.current = s
	c.mu.Unlock()

	s.events.Emit(analytics.EventOpen, nil)
	c.logger.Debug("form opened", log.FieldInstanceID, s.events.ID())
	return nil
}

// SetField updates one field. Changing the category starts a new budget
// lookup.
func (c *Coordinator) SetField(name form.Field, value string) error {
	s, err := c.active()
	if err != nil {
		return err
	}
	before := s.form.Fields().CategoryID
	if err := s.form.SetField(name, value); err != nil {
		return err
	}
	if name == form.FieldCategoryID && s.form.Fields().CategoryID != before && c.backend.Budgets != nil {
		c.budget.Trigger(c.baseCtx)
	}
	return nil
}

// Submit validates and saves the form. On success the form is reset and the
// modal closes. Validation failures return a *form.ValidationError, failed
// create calls a *SubmitError.
func (c *Coordinator) Submit(ctx context.Context) error {
	return c.submit(ctx, false)
}

// SaveAndAddAnother saves like Submit but keeps the modal open, clearing
// amount, description and date while keeping category, payer and split.
func (c *Coordinator) SaveAndAddAnother(ctx context.Context) error {
	return c.submit(ctx, true)
}

func (c *Coordinator) submit(ctx context.Context, addAnother bool) error {
	s, err := c.active()
	if err != nil {
		return err
	}
	err = s.form.Submit(ctx, func(ctx context.Context, fields form.Fields) error {
		if err := c.confirm(ctx, s, fields, addAnother); err != nil {
			return err
		}
		c.finish(s, addAnother)
		return nil
	})

	var verr *form.ValidationError
	if errors.As(err, &verr) {
		s.events.Emit(analytics.EventValidationError, analytics.Payload{
			analytics.KeyFields: verr.Validation.InvalidFields(),
		})
		c.logger.Debug("validation failed",
			log.FieldInstanceID, s.events.ID(),
			log.FieldErrorType, log.ErrorTypeValidation,
			"fields", verr.Validation.InvalidFields())
	}
	return err
}

// confirm runs one validated attempt: optimistic insert, create call, then
// commit or rollback.
func (c *Coordinator) confirm(ctx context.Context, s *session, fields form.Fields, addAnother bool) error {
	payload, err := fields.Payload()
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}
	optimistic := c.optimisticRecord(s, payload)
	c.host.UpdateExpenses(func(prev []core.ExpenseRecord) []core.ExpenseRecord {
		return expenselist.Insert(prev, optimistic)
	})
	s.events.Emit(analytics.EventSubmitStart, analytics.Payload{analytics.KeyRetry: false})

	record, latency, err := c.create(ctx, payload)
	lf := log.NewFields().
		WithOperation(log.OpSubmit).
		WithInstance(s.events.ID()).
		WithExpense(optimistic.ID, payload.Amount.Cents, payload.CategoryID, payload.PaidByUserID).
		WithDuration(latency.Milliseconds(), err == nil)
	if err != nil {
		c.host.UpdateExpenses(func(prev []core.ExpenseRecord) []core.ExpenseRecord {
			return expenselist.Remove(prev, optimistic.ID)
		})
		s.setRetry(&RetryPayload{Fields: fields, Optimistic: optimistic, AddAnother: addAnother})
		serr := newSubmitError(err, false)
		s.events.Emit(analytics.EventSubmitError, errorPayload(serr))
		lf[log.FieldFailure] = string(serr.Class)
		c.logger.WarnContext(ctx, "expense create failed, rolled back", lf.WithError(err).ToSlice()...)
		return serr
	}

	record = c.withNames(s, record)
	c.host.UpdateExpenses(func(prev []core.ExpenseRecord) []core.ExpenseRecord {
		return expenselist.Commit(prev, optimistic.ID, record)
	})
	s.setRetry(nil)
	s.events.Emit(analytics.EventSubmitSuccess, analytics.Payload{
		analytics.KeyServerID:  record.ID,
		analytics.KeyLatencyMS: latency.Milliseconds(),
	})
	lf[log.FieldExpenseID] = record.ID
	c.logger.InfoContext(ctx, "expense created", lf.ToSlice()...)
	return nil
}

// Retry re-sends the snapshot of the last failed attempt. It shares the
// single-submission guard with Submit.
func (c *Coordinator) Retry(ctx context.Context) error {
	s, err := c.active()
	if err != nil {
		return err
	}
	if s.retryPayload() == nil {
		return ErrNoRetryPayload
	}
	return s.form.Exclusive(ctx, func(ctx context.Context) error {
		p := s.retryPayload()
		if p == nil {
			return ErrNoRetryPayload
		}
		payload, err := p.Fields.Payload()
		if err != nil {
			return fmt.Errorf("build payload: %w", err)
		}
		s.events.Emit(analytics.EventSubmitStart, analytics.Payload{analytics.KeyRetry: true})

		record, latency, err := c.create(ctx, payload)
		lf := log.NewFields().
			WithOperation(log.OpRetry).
			WithInstance(s.events.ID()).
			WithExpense(p.Optimistic.ID, payload.Amount.Cents, payload.CategoryID, payload.PaidByUserID).
			WithDuration(latency.Milliseconds(), err == nil)
		if err != nil {
			serr := newSubmitError(err, true)
			s.events.Emit(analytics.EventSubmitError, errorPayload(serr))
			lf[log.FieldFailure] = string(serr.Class)
			c.logger.WarnContext(ctx, "expense retry failed", lf.WithError(err).ToSlice()...)
			return serr
		}

		record = c.withNames(s, record)
		c.host.UpdateExpenses(func(prev []core.ExpenseRecord) []core.ExpenseRecord {
			return expenselist.Commit(prev, p.Optimistic.ID, record)
		})
		s.setRetry(nil)
		s.events.Emit(analytics.EventSubmitSuccess, analytics.Payload{
			analytics.KeyServerID:  record.ID,
			analytics.KeyLatencyMS: latency.Milliseconds(),
			analytics.KeyRetry:     true,
		})
		lf[log.FieldExpenseID] = record.ID
		c.logger.InfoContext(ctx, "expense created on retry", lf.ToSlice()...)
		c.finish(s, p.AddAnother)
		return nil
	})
}

func (c *Coordinator) create(ctx context.Context, payload core.CreatePayload) (core.ExpenseRecord, time.Duration, error) {
	if c.backend.Expenses == nil {
		return core.ExpenseRecord{}, 0, fmt.Errorf("create expense: %w", api.ErrNotConfigured)
	}
	cctx, cancel := context.WithTimeout(ctx, c.opts.CreateTimeout)
	defer cancel()

	start := time.Now()
	record, err := c.backend.Expenses.Create(cctx, payload)
	latency := time.Since(start)
	if err != nil {
		return core.ExpenseRecord{}, latency, fmt.Errorf("create expense: %w", err)
	}
	if record.ID <= 0 {
		return core.ExpenseRecord{}, latency, fmt.Errorf("create expense: server id %d: %w", record.ID, core.ErrMalformedResponse)
	}
	record.Provenance = core.Committed
	return record, latency, nil
}

// finish applies the outcome of a confirmed attempt to the form.
func (c *Coordinator) finish(s *session, addAnother bool) {
	if addAnother {
		s.form.ClearTransient()
		s.events.Emit(analytics.EventSaveAddAnother, nil)
		return
	}
	c.close(s)
}

func (c *Coordinator) optimisticRecord(s *session, p core.CreatePayload) core.ExpenseRecord {
	date := core.DateOf(c.opts.Now())
	if p.Date != nil {
		date = *p.Date
	}
	return core.ExpenseRecord{
		ID:              nextTempID(),
		Date:            date,
		Amount:          p.Amount,
		Description:     p.Description,
		CategoryID:      p.CategoryID,
		PaidByUserID:    p.PaidByUserID,
		SplitType:       p.SplitType,
		SplitRatioUser1: p.SplitRatioUser1,
		SplitRatioUser2: p.SplitRatioUser2,
		CategoryName:    nameOr(s.catNames, p.CategoryID),
		PaidByName:      nameOr(s.userNames, p.PaidByUserID),
		Provenance:      core.Optimistic,
	}
}

func (c *Coordinator) withNames(s *session, r core.ExpenseRecord) core.ExpenseRecord {
	if r.CategoryName == "" {
		r.CategoryName = nameOr(s.catNames, r.CategoryID)
	}
	if r.PaidByName == "" {
		r.PaidByName = nameOr(s.userNames, r.PaidByUserID)
	}
	return r
}

func nameOr(names map[int64]string, id int64) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return PlaceholderName
}

func errorPayload(e *SubmitError) analytics.Payload {
	p := analytics.Payload{
		analytics.KeyClassification: string(e.Class),
		analytics.KeyRetry:          e.Retry,
	}
	if e.Status != 0 {
		p[analytics.KeyStatus] = e.Status
	}
	return p
}

// RequestClose asks to close the modal. A clean form closes at once and true
// is returned. A dirty form shows the discard prompt instead; asking again
// while the prompt is up changes nothing. The modal cannot be closed while a
// submission is in flight.
func (c *Coordinator) RequestClose() bool {
	s, err := c.active()
	if err != nil {
		return true
	}
	if s.form.Submitting() {
		return false
	}
	if !s.form.Dirty() {
		c.close(s)
		return true
	}
	s.mu.Lock()
	if s.prompt {
		s.mu.Unlock()
		return false
	}
	s.prompt = true
	s.mu.Unlock()
	s.events.Emit(analytics.EventDiscardPrompted, nil)
	return false
}

// ConfirmDiscard drops the fields and closes the modal.
func (c *Coordinator) ConfirmDiscard() error {
	s, err := c.active()
	if err != nil {
		return err
	}
	if !c.PromptShown() {
		return ErrNoDiscardPrompt
	}
	c.close(s)
	return nil
}

// CancelDiscard hides the prompt and leaves everything else as it was.
func (c *Coordinator) CancelDiscard() error {
	s, err := c.active()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.prompt {
		return ErrNoDiscardPrompt
	}
	s.prompt = false
	return nil
}

// close tears down s if it is still the open session.
func (c *Coordinator) close(s *session) {
	c.mu.Lock()
	if c.current != s {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.mu.Unlock()

	s.form.Reset()
	s.mu.Lock()
	s.retry = nil
	s.prompt = false
	s.mu.Unlock()
	c.budget.Reset()
	c.host.OnClose()
	c.logger.Debug("form closed", log.FieldInstanceID, s.events.ID())
}

func (c *Coordinator) IsOpen() bool {
	_, err := c.active()
	return err == nil
}

func (c *Coordinator) PromptShown() bool {
	s, err := c.active()
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompt
}

// RetryPayload returns the pending retry snapshot, if any.
func (c *Coordinator) RetryPayload() (RetryPayload, bool) {
	s, err := c.active()
	if err != nil {
		return RetryPayload{}, false
	}
	p := s.retryPayload()
	if p == nil {
		return RetryPayload{}, false
	}
	return *p, true
}

// Fields returns the current form values.
func (c *Coordinator) Fields() (form.Fields, error) {
	s, err := c.active()
	if err != nil {
		return form.Fields{}, err
	}
	return s.form.Fields(), nil
}

// Errors returns the validation errors shown next to the fields.
func (c *Coordinator) Errors() form.Validation {
	s, err := c.active()
	if err != nil {
		return nil
	}
	return s.form.Errors()
}

func (c *Coordinator) Submitting() bool {
	s, err := c.active()
	if err != nil {
		return false
	}
	return s.form.Submitting()
}

// InstanceID identifies the open form in analytics, empty when closed.
func (c *Coordinator) InstanceID() string {
	s, err := c.active()
	if err != nil {
		return ""
	}
	return s.events.ID()
}

// Categories returns the category directory of the open form.
func (c *Coordinator) Categories() []core.DirectoryEntry {
	s, err := c.active()
	if err != nil {
		return nil
	}
	return append([]core.DirectoryEntry(nil), s.categories...)
}

// Users returns the household members of the open form.
func (c *Coordinator) Users() []core.DirectoryEntry {
	s, err := c.active()
	if err != nil {
		return nil
	}
	return append([]core.DirectoryEntry(nil), s.users...)
}

// BudgetRemaining returns the last budget hint, if one arrived.
func (c *Coordinator) BudgetRemaining() (core.Money, bool) {
	return c.budget.Remaining()
}

// Shutdown cancels background lookups and waits for them to return.
func (c *Coordinator) Shutdown() {
	c.stop()
	c.budget.Cancel()
	c.budget.Wait()
}
