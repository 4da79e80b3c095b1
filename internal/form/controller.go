package form

import (
	"context"
	"errors"
	"sync"
	"time"

	"casaspese/internal/core"
)

var (
	ErrSubmitInProgress  = errors.New("submission already in progress")
	ErrUnknownField      = errors.New("unknown field")
	ErrInvalidFieldValue = errors.New("invalid field value")
)

// Action receives a snapshot of the validated fields and performs the
// actual work of a submission.
type Action func(ctx context.Context, snapshot Fields) error

// Controller owns the field values of one open form and guarantees that at
// most one submission runs at a time.
type Controller struct {
	mu         sync.Mutex
	initial    Fields
	fields     Fields
	errors     Validation
	submitting bool
	now        func() time.Time
}

// NewController returns a controller whose fields start at initial. A nil
// now uses time.Now.
func NewController(initial Fields, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{initial: initial, fields: initial, now: now}
}

// Fields returns a copy of the current values.
func (c *Controller) Fields() Fields {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fields
}

// Dirty reports whether any field differs from its initial value.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fields != c.initial
}

func (c *Controller) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// Errors returns the validation shown next to the fields, nil when none.
func (c *Controller) Errors() Validation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append(Validation(nil), c.errors...)
}

// Today is the calendar date the controller validates against.
func (c *Controller) Today() core.Date {
	return core.DateOf(c.now())
}

// SetField updates one field and clears any error previously shown for it.
func (c *Controller) SetField(name Field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.fields
	if err := next.set(name, value); err != nil {
		return err
	}
	c.fields = next
	c.errors = c.errors.without(name)
	return nil
}

// Validate checks the current fields without changing state.
func (c *Controller) Validate() Validation {
	return Validate(c.Fields(), c.Today())
}

// Submit validates the fields and, when they pass, runs action with a
// snapshot of them. A call made while another submission is running returns
// ErrSubmitInProgress without touching state. Validation failures return a
// *ValidationError and action is not invoked. Otherwise the action's error
// is returned.
func (c *Controller) Submit(ctx context.Context, action Action) error {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return ErrSubmitInProgress
	}
	c.submitting = true
	v := Validate(c.fields, core.DateOf(c.now()))
	if !v.Valid() {
		c.errors = v
		c.submitting = false
		c.mu.Unlock()
		return &ValidationError{Validation: v}
	}
	c.errors = nil
	snapshot := c.fields
	c.mu.Unlock()

	defer c.release()
	return action(ctx, snapshot)
}

// Exclusive runs fn under the same single-submission guard as Submit but
// without validating the current fields.
func (c *Controller) Exclusive(ctx context.Context, fn func(context.Context) error) error {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return ErrSubmitInProgress
	}
	c.submitting = true
	c.mu.Unlock()

	defer c.release()
	return fn(ctx)
}

func (c *Controller) release() {
	c.mu.Lock()
	c.submitting = false
	c.mu.Unlock()
}

// Reset restores the initial values and drops all errors.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields = c.initial
	c.errors = nil
}

// ClearTransient resets amount, description and date while keeping the
// selected category, payer and split.
func (c *Controller) ClearTransient() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields.Amount = c.initial.Amount
	c.fields.Description = c.initial.Description
	c.fields.Date = c.initial.Date
	for _, name := range []Field{FieldAmount, FieldDescription, FieldDate} {
		c.errors = c.errors.without(name)
	}
}
